//go:build integration

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guygriffiths/wildfire/internal/ecmwf"
	"github.com/guygriffiths/wildfire/internal/store"
	"github.com/guygriffiths/wildfire/internal/testutils"
	"github.com/guygriffiths/wildfire/internal/tigge"
)

// TestBulkRunAgainstMinio drives a full bulk run: real MARS client against
// the fake API, real store against a Minio bucket.
func TestBulkRunAgainstMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	mars := testutils.StartMARSServer(t)
	mars.PollsUntilComplete = 2
	mars.FailTargets["2007-03-05T12-wildfire.nc"] = true

	env := testutils.StartMinioContainer(t, ctx, "wildfire-test")
	defer env.Close(ctx)

	bucket, err := env.OpenBucket(ctx)
	require.NoError(t, err)
	defer bucket.Close()

	st := store.FromBucket(bucket)

	client := ecmwf.NewClient(ecmwf.Options{
		BaseURL:         mars.URL,
		Timeout:         10 * time.Second,
		PollInterval:    time.Millisecond,
		RetryAttempts:   2,
		RetryBackoff:    time.Millisecond,
		RetryMaxBackoff: 10 * time.Millisecond,
	})

	sched, err := New(st, client.Retrieve, Options{
		Credentials: []tigge.Credential{
			{Key: "key-a", Email: "a@example.com"},
			{Key: "key-b", Email: "b@example.com"},
		},
		WorkersPerKey: 2,
		Variables:     tigge.Full,
	})
	require.NoError(t, err)

	start := time.Date(2007, time.March, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2007, time.March, 6, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sched.Run(ctx, start, end))

	assert.Len(t, mars.SubmittedTargets(), 8)

	// 7 of 8 forecasts landed in the bucket with the fake payload.
	var stored int
	for _, task := range tigge.Tasks(start, end, tigge.Full) {
		size, err := st.Size(ctx, task.Filename())
		require.NoError(t, err)
		if task.Filename() == "2007-03-05T12-wildfire.nc" {
			assert.Zero(t, size, "failed task must not commit an object")
			continue
		}
		assert.Equal(t, int64(len(mars.Payload(task.Filename()))), size, task.Filename())
		stored++
	}
	assert.Equal(t, 7, stored)

	// A second run only re-attempts the failed task.
	mars2 := testutils.StartMARSServer(t)
	client2 := ecmwf.NewClient(ecmwf.Options{
		BaseURL:         mars2.URL,
		Timeout:         10 * time.Second,
		PollInterval:    time.Millisecond,
		RetryAttempts:   2,
		RetryBackoff:    time.Millisecond,
		RetryMaxBackoff: 10 * time.Millisecond,
	})
	sched2, err := New(st, client2.Retrieve, Options{
		Credentials: []tigge.Credential{{Key: "key-a", Email: "a@example.com"}},
		Variables:   tigge.Full,
	})
	require.NoError(t, err)

	require.NoError(t, sched2.Run(ctx, start, end))
	assert.Equal(t, []string{"2007-03-05T12-wildfire.nc"}, mars2.SubmittedTargets())
}
