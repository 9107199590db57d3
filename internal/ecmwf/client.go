package ecmwf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guygriffiths/wildfire/internal/tigge"
)

// Common errors.
var (
	ErrUnauthorized = errors.New("ecmwf: invalid or missing API key")
	ErrForbidden    = errors.New("ecmwf: access forbidden")
	ErrNotFound     = errors.New("ecmwf: resource not found")
	ErrServerError  = errors.New("ecmwf: server error")
	ErrAborted      = errors.New("ecmwf: request aborted by the service")
)

// Options configures the MARS API client.
type Options struct {
	// BaseURL is the API root, e.g. "https://api.ecmwf.int/v1".
	BaseURL string

	// Timeout for individual HTTP requests. This bounds single round
	// trips, not a whole retrieval: a queued MARS request can sit for
	// hours and the client polls for as long as the context allows.
	// Default: 60s
	Timeout time.Duration

	// PollInterval is how long to wait between status polls when the
	// service gives no retry hint.
	// Default: 30s
	PollInterval time.Duration

	// RetryAttempts is the maximum number of retry attempts for a single
	// HTTP call that fails with a transport or 5xx error.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		BaseURL:             "https://api.ecmwf.int/v1",
		Timeout:             60 * time.Second,
		PollInterval:        30 * time.Second,
		RetryAttempts:       5,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
		MaxIdleConnsPerHost: 16,
	}
}

// Client talks to the ECMWF MARS HTTP API. Retrievals are synchronous:
// Retrieve submits the request, polls until the archive has staged the
// data, then streams the result. A Client is safe for concurrent use; the
// credential is supplied per call so one client serves all workers.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new MARS API client with the given options. Zero
// option fields get their defaults.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = def.RetryAttempts
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if opts.RetryMaxBackoff == 0 {
		opts.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if opts.MaxIdleConnsPerHost == 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// status is the JSON body the API returns for a submitted request.
type status struct {
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Code     int      `json:"code"`
	Href     string   `json:"href"`
	Retry    float64  `json:"retry"` // seconds until the next poll
	Result   string   `json:"result"`
	Error    string   `json:"error"`
	Messages []string `json:"messages"`
}

// Retrieve submits a MARS request under the given credential, waits for the
// archive to stage the data and streams the result into w. It returns the
// number of bytes written. The call blocks until the retrieval completes,
// fails, or ctx is cancelled — queue time is dictated entirely by the
// service.
func (c *Client) Retrieve(ctx context.Context, cred tigge.Credential, req tigge.Request, w io.Writer) (int64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	submitURL := fmt.Sprintf("%s/datasets/%s/requests", c.opts.BaseURL, req.Dataset)
	st, err := c.postJSON(ctx, cred, submitURL, body)
	if err != nil {
		return 0, fmt.Errorf("submit request: %w", err)
	}

	st, err = c.await(ctx, cred, st)
	if err != nil {
		return 0, err
	}

	resultURL := st.Result
	if resultURL == "" {
		resultURL = st.Href
	}

	n, err := c.download(ctx, cred, c.resolve(resultURL), w)

	// Drop the finished request from the service's queue regardless of
	// whether the download itself succeeded.
	if st.Href != "" {
		c.delete(ctx, cred, c.resolve(st.Href))
	}

	return n, err
}

// await polls the request status until it leaves the queue.
func (c *Client) await(ctx context.Context, cred tigge.Credential, st *status) (*status, error) {
	for {
		switch strings.ToLower(st.Status) {
		case "complete":
			return st, nil
		case "aborted", "rejected":
			if len(st.Messages) > 0 {
				return nil, fmt.Errorf("%w: %s", ErrAborted, strings.Join(st.Messages, "; "))
			}
			if st.Error != "" {
				return nil, fmt.Errorf("%w: %s", ErrAborted, st.Error)
			}
			return nil, ErrAborted
		}

		wait := c.opts.PollInterval
		if st.Retry > 0 {
			wait = time.Duration(st.Retry * float64(time.Second))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		next, err := c.getStatus(ctx, cred, c.resolve(st.Href))
		if err != nil {
			return nil, fmt.Errorf("poll request: %w", err)
		}
		if next.Href == "" {
			next.Href = st.Href
		}
		st = next
	}
}

// postJSON submits the retrieval request, retrying transient failures.
func (c *Client) postJSON(ctx context.Context, cred tigge.Credential, url string, body []byte) (*status, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req, cred)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		st, err := decodeStatus(resp)
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	return nil, fmt.Errorf("submit failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// getStatus fetches the current state of a submitted request.
func (c *Client) getStatus(ctx context.Context, cred tigge.Credential, url string) (*status, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		c.authorize(req, cred)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		st, err := decodeStatus(resp)
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	return nil, fmt.Errorf("status failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// download streams the staged result into w. The body is not retried
// mid-stream; a failed transfer surfaces as an error and the caller
// discards the partial write.
func (c *Client) download(ctx context.Context, cred tigge.Credential, url string, w io.Writer) (int64, error) {
	// No per-request timeout here: results can be large and the transport
	// timeout would cut long transfers short. ctx still applies.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req, cred)

	client := &http.Client{Transport: c.client.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch result: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read result: %w", err)
	}
	return n, nil
}

// delete removes a finished request from the service. Best effort.
func (c *Client) delete(ctx context.Context, cred tigge.Credential, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return
	}
	c.authorize(req, cred)

	resp, err := c.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (c *Client) authorize(req *http.Request, cred tigge.Credential) {
	req.Header.Set("X-ECMWF-Key", cred.Key)
	req.Header.Set("From", cred.Email)
	req.Header.Set("Accept", "application/json")
}

// resolve turns a possibly-relative href from the API into an absolute URL.
func (c *Client) resolve(href string) string {
	if href == "" {
		return c.opts.BaseURL
	}
	u, err := url.Parse(href)
	if err == nil && u.IsAbs() {
		return href
	}
	return c.opts.BaseURL + "/" + strings.TrimPrefix(href, "/")
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

func decodeStatus(resp *http.Response) (*status, error) {
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return nil, err
	}

	var st status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &st, nil
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}
