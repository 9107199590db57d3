//go:build integration

// Package testutils provides shared test infrastructure for integration tests.
package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"

	"github.com/guygriffiths/wildfire/internal/tigge"
)

// MARSServer is an in-process fake of the ECMWF MARS HTTP API. Each
// submitted request is queued for a configurable number of polls before
// completing with a payload derived from the request's target name.
type MARSServer struct {
	*httptest.Server

	// PollsUntilComplete is how many status polls a request stays
	// "active" for before completing. Default 1.
	PollsUntilComplete int

	// FailTargets maps target names to abort instead of completing.
	FailTargets map[string]bool

	mu       sync.Mutex
	requests map[string]*marsRequest
	nextID   int
}

type marsRequest struct {
	req   tigge.Request
	polls int
}

// StartMARSServer starts the fake MARS API.
func StartMARSServer(t *testing.T) *MARSServer {
	t.Helper()

	s := &MARSServer{
		PollsUntilComplete: 1,
		FailTargets:        make(map[string]bool),
		requests:           make(map[string]*marsRequest),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /datasets/tigge/requests", s.handleSubmit)
	mux.HandleFunc("GET /requests/{id}", s.handlePoll)
	mux.HandleFunc("GET /results/{id}", s.handleResult)
	mux.HandleFunc("DELETE /requests/{id}", s.handleDelete)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// Payload returns the bytes the fake archive serves for a target.
func (s *MARSServer) Payload(target string) []byte {
	return []byte("netcdf:" + target)
}

// SubmittedTargets returns the target names of all submitted requests.
func (s *MARSServer) SubmittedTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := make([]string, 0, len(s.requests))
	for _, r := range s.requests {
		targets = append(targets, r.req.Target)
	}
	return targets
}

func (s *MARSServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Ecmwf-Key") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req tigge.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("req-%d", s.nextID)
	s.requests[id] = &marsRequest{req: req}
	s.mu.Unlock()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"name":   id,
		"status": "queued",
		"href":   "/requests/" + id,
		"retry":  0.001,
	})
}

func (s *MARSServer) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	req, ok := s.requests[id]
	if ok {
		req.polls++
	}
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if s.FailTargets[req.req.Target] {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":     id,
			"status":   "aborted",
			"href":     "/requests/" + id,
			"messages": []string{"retrieval aborted"},
		})
		return
	}

	if req.polls < s.PollsUntilComplete {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":   id,
			"status": "active",
			"href":   "/requests/" + id,
			"retry":  0.001,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":   id,
		"status": "complete",
		"href":   "/requests/" + id,
		"result": "/results/" + id,
	})
}

func (s *MARSServer) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	req, ok := s.requests[id]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(s.Payload(req.req.Target))
}

func (s *MARSServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// MinioEnv contains connection information for a Minio test environment.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Close terminates the Minio container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// OpenBucket opens a gocloud bucket connection to the Minio environment.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// StartMinioContainer starts a Minio container with a pre-created bucket.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	networkName := fmt.Sprintf("wildfire-test-net-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{
			Name: networkName,
		},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(ctx) })

	minioReq := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Networks:     []string{networkName},
		NetworkAliases: map[string][]string{
			networkName: {"minio"},
		},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	}

	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: minioReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	createBucketWithMC(t, ctx, networkName, accessKey, secretKey, bucketName)

	host, err := minioContainer.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}

	port, err := minioContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	bucketURL := fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
		bucketName,
		endpoint,
	)

	t.Setenv("AWS_ACCESS_KEY_ID", accessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", secretKey)

	return &MinioEnv{
		Container: minioContainer,
		BucketURL: bucketURL,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// createBucketWithMC creates a bucket using a separate minio/mc container.
func createBucketWithMC(t *testing.T, ctx context.Context, networkName, accessKey, secretKey, bucketName string) {
	t.Helper()

	mcReq := testcontainers.ContainerRequest{
		Image:      "minio/mc:latest",
		Networks:   []string{networkName},
		Entrypoint: []string{"/bin/sh", "-c"},
		Cmd: []string{
			fmt.Sprintf(
				"/usr/bin/mc config host add myminio http://minio:9000 %s %s && "+
					"/usr/bin/mc mb myminio/%s && "+
					"/usr/bin/mc policy set download myminio/%s; "+
					"exit 0",
				accessKey, secretKey, bucketName, bucketName,
			),
		},
		WaitingFor: wait.ForExit(),
	}

	mcContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: mcReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mc container: %v", err)
	}
	defer mcContainer.Terminate(ctx)
}
