package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/guygriffiths/wildfire/internal/store"
	"github.com/guygriffiths/wildfire/internal/tigge"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func memStore(t *testing.T) *store.Store {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })
	return store.FromBucket(bucket)
}

// fakeRetriever records every retrieval and writes a canned payload, or
// fails for targets listed in failTargets.
type fakeRetriever struct {
	mu          sync.Mutex
	calls       []string // target names in call order
	keys        []string // credential key per call
	failTargets map[string]bool
	payload     []byte
}

func newFakeRetriever() *fakeRetriever {
	return &fakeRetriever{
		failTargets: make(map[string]bool),
		payload:     []byte("netcdf"),
	}
}

func (f *fakeRetriever) retrieve(ctx context.Context, cred tigge.Credential, req tigge.Request, w io.Writer) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Target)
	f.keys = append(f.keys, cred.Key)
	fail := f.failTargets[req.Target]
	f.mu.Unlock()

	if fail {
		return 0, errors.New("service unavailable")
	}

	n, err := w.Write(f.payload)
	return int64(n), err
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRetriever) keyCounts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, k := range f.keys {
		counts[k]++
	}
	return counts
}

func newScheduler(t *testing.T, st *store.Store, f *fakeRetriever, opts Options) *Scheduler {
	t.Helper()
	if opts.Credentials == nil {
		opts.Credentials = []tigge.Credential{{Key: "k1", Email: "one@example.com"}}
	}
	s, err := New(st, f.retrieve, opts)
	require.NoError(t, err)
	return s
}

func writeObject(t *testing.T, st *store.Store, name string, data []byte) {
	t.Helper()
	w, err := st.NewWriter(context.Background(), name)
	require.NoError(t, err)
	if len(data) > 0 {
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestNewRequiresCredentials(t *testing.T) {
	f := newFakeRetriever()
	_, err := New(memStore(t), f.retrieve, Options{})
	assert.ErrorContains(t, err, "credential")
}

func TestNeedsDownload(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	s := newScheduler(t, st, newFakeRetriever(), Options{})

	task := tigge.Task{Date: date(2016, time.October, 24), Hour: 0, Variables: tigge.Full}

	// Nothing stored yet.
	need, err := s.NeedsDownload(ctx, task)
	require.NoError(t, err)
	assert.True(t, need)

	// A zero-length object does not count as downloaded.
	writeObject(t, st, task.Filename(), nil)
	need, err = s.NeedsDownload(ctx, task)
	require.NoError(t, err)
	assert.True(t, need)

	// A non-empty object does.
	writeObject(t, st, task.Filename(), []byte("data"))
	need, err = s.NeedsDownload(ctx, task)
	require.NoError(t, err)
	assert.False(t, need)
}

func TestNeedsDownloadMissingDate(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	s := newScheduler(t, st, newFakeRetriever(), Options{})

	task := tigge.Task{Date: date(2015, time.December, 3), Hour: 12, Variables: tigge.Full}

	need, err := s.NeedsDownload(ctx, task)
	require.NoError(t, err)
	assert.False(t, need, "permanently missing dates are never downloadable")

	// Store contents are irrelevant for missing dates.
	writeObject(t, st, task.Filename(), []byte("stray object"))
	need, err = s.NeedsDownload(ctx, task)
	require.NoError(t, err)
	assert.False(t, need)
}

func TestGetIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	f := newFakeRetriever()
	s := newScheduler(t, st, f, Options{})

	task := tigge.Task{Date: date(2016, time.October, 24), Hour: 0, Variables: tigge.Full}
	cred := tigge.Credential{Key: "k1", Email: "one@example.com"}

	require.NoError(t, s.Get(ctx, task, cred, false))
	assert.Equal(t, 1, f.callCount())

	size, err := st.Size(ctx, "2016-10-24T00-wildfire.nc")
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	// Second call is a no-op skip: no second network call.
	require.NoError(t, s.Get(ctx, task, cred, false))
	assert.Equal(t, 1, f.callCount())
}

func TestGetForceRedownloads(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	f := newFakeRetriever()
	s := newScheduler(t, st, f, Options{})

	task := tigge.Task{Date: date(2016, time.October, 24), Hour: 6, Variables: tigge.Full}
	cred := tigge.Credential{Key: "k1", Email: "one@example.com"}

	require.NoError(t, s.Get(ctx, task, cred, false))
	require.NoError(t, s.Get(ctx, task, cred, true))
	assert.Equal(t, 2, f.callCount())
}

func TestGetMissingDateSkipped(t *testing.T) {
	// Without force, a permanently-missing date never reaches the
	// service, whatever the store contains.
	ctx := context.Background()
	f := newFakeRetriever()
	s := newScheduler(t, memStore(t), f, Options{})

	task := tigge.Task{Date: date(2016, time.June, 24), Hour: 0, Variables: tigge.Full}
	cred := tigge.Credential{Key: "k1"}

	require.NoError(t, s.Get(ctx, task, cred, false))
	assert.Zero(t, f.callCount())
}

func TestGetPropagatesFailure(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	f := newFakeRetriever()
	task := tigge.Task{Date: date(2016, time.October, 24), Hour: 12, Variables: tigge.Full}
	f.failTargets[task.Filename()] = true
	s := newScheduler(t, st, f, Options{})

	err := s.Get(ctx, task, tigge.Credential{Key: "k1"}, false)
	require.Error(t, err)

	// The aborted write must not leave a committed object behind,
	// otherwise the next run would consider the task done.
	size, err := st.Size(ctx, task.Filename())
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRunTwoDaySingleKey(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	f := newFakeRetriever()
	s := newScheduler(t, st, f, Options{
		WorkersPerKey: 4,
		Variables:     tigge.Full,
	})

	assert.Equal(t, 4, s.Workers())

	err := s.Run(ctx, date(2007, time.March, 5), date(2007, time.March, 6))
	require.NoError(t, err)

	// Exactly 8 tasks, all on the single key.
	assert.Equal(t, 8, f.callCount())
	assert.Equal(t, map[string]int{"k1": 8}, f.keyCounts())

	for _, day := range []string{"2007-03-05", "2007-03-06"} {
		for _, hour := range []string{"00", "06", "12", "18"} {
			name := fmt.Sprintf("%sT%s-wildfire.nc", day, hour)
			size, err := st.Size(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, int64(6), size, name)
		}
	}
}

func TestRunIsolatesTaskFailure(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	f := newFakeRetriever()
	f.failTargets["2007-03-05T12-wildfire.nc"] = true
	s := newScheduler(t, st, f, Options{Variables: tigge.Full})

	err := s.Run(ctx, date(2007, time.March, 5), date(2007, time.March, 6))
	require.NoError(t, err, "a failing task must not abort the batch")

	assert.Equal(t, 8, f.callCount())

	size, err := st.Size(ctx, "2007-03-05T12-wildfire.nc")
	require.NoError(t, err)
	assert.Zero(t, size)

	size, err = st.Size(ctx, "2007-03-06T18-wildfire.nc")
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)
}

func TestRunRoundRobinsCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFakeRetriever()
	s := newScheduler(t, memStore(t), f, Options{
		Credentials: []tigge.Credential{
			{Key: "a", Email: "a@example.com"},
			{Key: "b", Email: "b@example.com"},
		},
		WorkersPerKey: 2,
		Variables:     tigge.Minimal,
	})

	assert.Equal(t, 4, s.Workers())

	err := s.Run(ctx, date(2007, time.March, 5), date(2007, time.March, 6))
	require.NoError(t, err)

	// 8 tasks over 2 keys, assigned eagerly in list order: 4 each.
	assert.Equal(t, map[string]int{"a": 4, "b": 4}, f.keyCounts())
}

func TestRunSkipsSatisfiedAndMissing(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	f := newFakeRetriever()
	s := newScheduler(t, st, f, Options{Variables: tigge.Full})

	// 2015-12-03 is permanently missing; pre-store one file of 12-04.
	writeObject(t, st, "2015-12-04T00-wildfire.nc", []byte("already here"))

	err := s.Run(ctx, date(2015, time.December, 3), date(2015, time.December, 4))
	require.NoError(t, err)

	// Only the three remaining 12-04 retrievals hit the service.
	assert.Equal(t, 3, f.callCount())
}

func TestRunForceRetrievesEverything(t *testing.T) {
	ctx := context.Background()
	st := memStore(t)
	f := newFakeRetriever()
	s := newScheduler(t, st, f, Options{Variables: tigge.Full, Force: true})

	writeObject(t, st, "2007-03-05T00-wildfire.nc", []byte("stale"))

	err := s.Run(ctx, date(2007, time.March, 5), date(2007, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, 4, f.callCount())
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFakeRetriever()
	s := newScheduler(t, memStore(t), f, Options{Variables: tigge.Full})

	err := s.Run(ctx, date(2007, time.March, 5), date(2007, time.March, 6))
	assert.ErrorIs(t, err, context.Canceled)
}
