package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/guygriffiths/wildfire/internal/progress"
	"github.com/guygriffiths/wildfire/internal/store"
	"github.com/guygriffiths/wildfire/internal/tigge"
)

// DefaultWorkersPerKey is the number of pool workers per API key. MARS
// allows 3 active requests per key; one extra keeps a pending request
// queued so the slot is never idle between downloads.
const DefaultWorkersPerKey = 4

// RetrieveFunc performs one synchronous archive retrieval, streaming the
// result into w and returning the number of bytes written. The production
// implementation is (*ecmwf.Client).Retrieve.
type RetrieveFunc func(ctx context.Context, cred tigge.Credential, req tigge.Request, w io.Writer) (int64, error)

// Options configures a Scheduler.
type Options struct {
	// Credentials is the ordered API key sequence to rotate through.
	// Must be non-empty.
	Credentials []tigge.Credential

	// WorkersPerKey scales the worker pool: pool size is
	// len(Credentials) * WorkersPerKey.
	// Default: DefaultWorkersPerKey
	WorkersPerKey int

	// Variables selects which parameter set every task requests.
	Variables tigge.VariableSet

	// Force retrieves tasks even when their target already exists.
	Force bool

	// Progress is an optional progress reporter, driven per task.
	Progress *progress.Reporter
}

// Scheduler plans and runs bulk forecast retrievals: it enumerates the
// task list, filters out satisfied or unobtainable tasks, assigns
// credentials round-robin and dispatches to a fixed worker pool.
type Scheduler struct {
	store    *store.Store
	retrieve RetrieveFunc
	rotator  *Rotator
	opts     Options
}

// New creates a Scheduler. An empty credential list is a configuration
// error and fails here, before any task runs.
func New(st *store.Store, retrieve RetrieveFunc, opts Options) (*Scheduler, error) {
	if len(opts.Credentials) == 0 {
		return nil, errors.New("scheduler: at least one API credential is required")
	}
	if retrieve == nil {
		return nil, errors.New("scheduler: retrieve function is required")
	}
	if opts.WorkersPerKey <= 0 {
		opts.WorkersPerKey = DefaultWorkersPerKey
	}

	return &Scheduler{
		store:    st,
		retrieve: retrieve,
		rotator:  NewRotator(opts.Credentials),
		opts:     opts,
	}, nil
}

// Workers returns the worker-pool size for bulk runs.
func (s *Scheduler) Workers() int {
	return s.rotator.Len() * s.opts.WorkersPerKey
}

type job struct {
	task tigge.Task
	cred tigge.Credential
}

// Run downloads every forecast in the inclusive date range. A zero start
// defaults to the archive epoch, a zero end to today. It blocks until
// every task has completed, been skipped, or failed; per-task failures
// are logged and never abort the batch. Only ctx cancellation stops a
// run early, and its error is returned.
//
// Tasks are unique per (date, hour, variable set) and each is dispatched
// to exactly one worker, which is what makes the unlocked check-then-act
// in Get safe. Retries or multiple passes over the same list would break
// that invariant.
func (s *Scheduler) Run(ctx context.Context, start, end time.Time) error {
	if start.IsZero() {
		start = tigge.Epoch
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	tasks := tigge.Tasks(start, end, s.opts.Variables)

	// Credentials are assigned eagerly in list order, so the assignment
	// is deterministic and the rotation balanced regardless of how the
	// pool interleaves execution.
	creds := make([]tigge.Credential, len(tasks))
	for i := range tasks {
		creds[i] = s.rotator.Next()
	}

	workers := s.Workers()
	slog.Info("starting bulk retrieval",
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"tasks", len(tasks),
		"keys", s.rotator.Len(),
		"workers", workers,
	)

	// Unbuffered channel: workers pull one task at a time, so dispatch
	// stays close to list order. MARS processes chronologically-ordered
	// submissions more efficiently.
	jobs := make(chan job)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				s.runTask(ctx, j)
			}
		}()
	}

	for i, task := range tasks {
		select {
		case jobs <- job{task: task, cred: creds[i]}:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	slog.Info("bulk retrieval finished", "tasks", len(tasks))
	return ctx.Err()
}

// runTask is the worker wrapper around Get: it catches the failure, logs
// the full task identity, and lets the batch carry on.
func (s *Scheduler) runTask(ctx context.Context, j job) {
	if s.opts.Progress != nil {
		s.opts.Progress.TaskStarted()
	}

	err := s.Get(ctx, j.task, j.cred, s.opts.Force)
	if err != nil {
		slog.Error("retrieval failed",
			"date", j.task.Date.Format("2006-01-02"),
			"hour", j.task.Hour,
			"variables", j.task.Variables.String(),
			"key", j.cred.Email,
			"error", err,
		)
		if s.opts.Progress != nil {
			s.opts.Progress.TaskFailed()
		}
	}
}

// NeedsDownload reports whether the task's forecast still has to be
// retrieved: false for dates the archive permanently lacks and for targets
// already stored with non-zero size. Advisory only — Run dispatches every
// task exactly once, so nobody else races this check.
func (s *Scheduler) NeedsDownload(ctx context.Context, task tigge.Task) (bool, error) {
	if tigge.Missing(task.Date) {
		return false, nil
	}

	size, err := s.store.Size(ctx, task.Filename())
	if err != nil {
		return false, err
	}
	return size == 0, nil
}

// Get retrieves a single forecast synchronously, blocking until the
// archive has served it. Without force, a satisfied or unobtainable task
// is a logged no-op. Retrieval errors propagate to the caller; in a bulk
// run the worker wrapper is the layer that absorbs them.
func (s *Scheduler) Get(ctx context.Context, task tigge.Task, cred tigge.Credential, force bool) error {
	target := task.Filename()

	if !force {
		need, err := s.NeedsDownload(ctx, task)
		if err != nil {
			return fmt.Errorf("check %s: %w", target, err)
		}
		if !need {
			slog.Info("already downloaded, skipping", "target", target)
			if s.opts.Progress != nil {
				s.opts.Progress.TaskSkipped()
			}
			return nil
		}
	}

	n, err := s.fetch(ctx, task, cred, target)
	if err != nil {
		return err
	}

	slog.Info("downloaded",
		"target", target,
		"bytes", n,
		"key", cred.Email,
	)
	if s.opts.Progress != nil {
		s.opts.Progress.TaskCompleted(n)
	}
	return nil
}

// fetch streams one retrieval into the store. The write only commits if
// the retrieval succeeds end to end; on failure the partial object is
// aborted so the task is re-attempted by the next run.
func (s *Scheduler) fetch(ctx context.Context, task tigge.Task, cred tigge.Credential, target string) (int64, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.store.NewWriter(wctx, target)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", target, err)
	}

	n, err := s.retrieve(ctx, cred, task.Request(target), w)
	if err != nil {
		cancel()
		w.Close()
		return 0, fmt.Errorf("retrieve %s: %w", target, err)
	}

	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", target, err)
	}
	return n, nil
}
