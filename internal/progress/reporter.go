package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalTasks is the number of retrieval tasks in the run.
	TotalTasks int

	// Workers is the number of parallel workers.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 2s (retrievals are slow; no point redrawing faster)
	UpdateInterval time.Duration

	// Range describes the date range being retrieved (for display).
	Range string
}

// Reporter outputs human-readable progress for a bulk retrieval run.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	completed  atomic.Int32
	skipped    atomic.Int32
	failed     atomic.Int32
	inProgress atomic.Int32
	bytes      atomic.Int64
	startTime  time.Time
	stopCh     chan struct{}
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 2 * time.Second
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()

	fmt.Fprintf(r.opts.Output, "[wildfire] Retrieving %s\n", r.opts.Range)
	fmt.Fprintf(r.opts.Output, "[wildfire] Forecasts: %d | Workers: %d\n",
		r.opts.TotalTasks, r.opts.Workers)

	go r.updateLoop()
}

// Stop stops the progress reporter and prints the final summary.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
}

// TaskStarted marks a task as in progress.
func (r *Reporter) TaskStarted() {
	r.inProgress.Add(1)
}

// TaskCompleted marks a task as downloaded, recording the payload size.
func (r *Reporter) TaskCompleted(bytes int64) {
	r.bytes.Add(bytes)
	r.completed.Add(1)
	r.inProgress.Add(-1)
}

// TaskSkipped marks a task that needed no retrieval (already on disk or a
// known-missing date).
func (r *Reporter) TaskSkipped() {
	r.skipped.Add(1)
	r.inProgress.Add(-1)
}

// TaskFailed marks a task whose retrieval failed.
func (r *Reporter) TaskFailed() {
	r.failed.Add(1)
	r.inProgress.Add(-1)
}

// Failed returns the number of failed tasks so far.
func (r *Reporter) Failed() int {
	return int(r.failed.Load())
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	completed := int(r.completed.Load())
	skipped := int(r.skipped.Load())
	failed := int(r.failed.Load())
	inProgress := int(r.inProgress.Load())

	done := completed + skipped + failed
	pending := r.opts.TotalTasks - done - inProgress
	if pending < 0 {
		pending = 0
	}

	var percent float64
	if r.opts.TotalTasks > 0 {
		percent = float64(done) / float64(r.opts.TotalTasks) * 100
	}

	fmt.Fprintf(r.opts.Output,
		"\r[wildfire] Progress: %.1f%% | %d/%d done | %d downloading | %d pending | %s    ",
		percent, done, r.opts.TotalTasks, inProgress, pending,
		formatBytes(r.bytes.Load()),
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	completed := int(r.completed.Load())
	skipped := int(r.skipped.Load())
	failed := int(r.failed.Load())
	duration := time.Since(r.startTime)

	fmt.Fprintf(r.opts.Output,
		"\r[wildfire] Finished: %d downloaded | %d skipped | %d failed | %s retrieved    \n",
		completed, skipped, failed, formatBytes(r.bytes.Load()),
	)
	fmt.Fprintf(r.opts.Output, "[wildfire] Total time: %s\n", formatDuration(duration))
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
