// Package workflow advances watermark tasks through their lifecycle.
//
// The Manager runs a pool of workers that claim runnable tasks from the
// store, invoke the ffmpeg engine, and persist results. Single-file tasks
// retry with exponential backoff by scheduling a next-attempt time in the
// store; batch tasks give each input exactly one attempt and record failures
// as skip entries, so a batch always reaches completed unless persisting its
// own state fails. Lifecycle hooks fire on the first processing entry and on
// terminal transitions.
//
// The Reaper complements the workers by deleting terminal tasks older than
// the retention window on a fixed interval.
package workflow
