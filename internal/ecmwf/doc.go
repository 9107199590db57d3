// Package ecmwf is a client for the ECMWF MARS HTTP API.
//
// A MARS retrieval is asynchronous on the service side: the request is
// submitted, sits in a queue while the archive stages the data from tape,
// and only then becomes downloadable. This client hides that behind a
// single blocking call:
//
//	client := ecmwf.NewClient(ecmwf.Options{})
//	n, err := client.Retrieve(ctx, cred, task.Request(target), writer)
//
// Individual HTTP calls are retried with exponential backoff on transport
// and 5xx errors; queue waits honor the service's retry hints. There is no
// overall deadline — a retrieval takes as long as the archive takes —
// so cancellation comes from the caller's context.
package ecmwf
