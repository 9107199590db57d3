// Package progress provides progress reporting for bulk retrieval runs.
//
// The reporter counts tasks rather than bytes-of-one-file: a run is a list
// of forecast retrievals, each of which completes, is skipped, or fails.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalTasks: len(tasks),
//	    Workers:    workers,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Per task, from workers:
//	reporter.TaskStarted()
//	reporter.TaskCompleted(bytesRetrieved)
//
// # Output Format
//
//	[wildfire] Retrieving 2007-03-05 to 2016-12-31
//	[wildfire] Forecasts: 14304 | Workers: 8
//	[wildfire] Progress: 45.2% | 6466/14304 done | 8 downloading | 7830 pending | 1.13 TB
package progress
