// Package store persists retrieved forecast files.
//
// It is a thin wrapper over a gocloud.dev blob bucket, so the data
// directory can be a local directory, an S3 bucket or anything else with a
// registered driver. The wrapper exposes exactly what the scheduler needs:
// object size (the "already downloaded" check), committed writes and
// delete-on-failure.
package store
