// Package scheduler orchestrates bulk forecast retrieval.
//
// A bulk run expands a date range into the ordered task list (four
// initialization hours per date), drops tasks that are already stored or
// that the archive permanently lacks, assigns API credentials round-robin
// and feeds the tasks one at a time to a fixed pool of workers. Each
// worker performs one blocking archive retrieval at a time; one task's
// failure is logged and never disturbs the rest of the batch.
//
// Pool sizing follows the MARS service limit of 3 active requests per
// key: len(credentials) * WorkersPerKey workers keep every key's slots
// full with a request to spare.
//
// # Usage
//
//	sched, err := scheduler.New(store, client.Retrieve, scheduler.Options{
//	    Credentials: creds,
//	    Variables:   tigge.Full,
//	})
//	err = sched.Run(ctx, startDate, endDate)
package scheduler
