// Package flock provides cross-platform exclusive file locks.
//
// The run store serializes result writes and latest-pointer updates across
// concurrent gantry processes with a per-pipeline lock file. Locks are
// exclusive and non-blocking; callers that need a bounded wait retry around
// Exclusive themselves.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.Exclusive(file.Fd()); err != nil {
//	    // Lock not acquired - another runner holds it
//	}
//	defer flock.Unlock(file.Fd())
package flock
