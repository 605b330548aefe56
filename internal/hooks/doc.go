// Package hooks delivers task lifecycle events to user-configured targets.
//
// A target is either an http(s) URL, which receives the task snapshot as a
// JSON POST, or a path to a local program, which is invoked with the snapshot
// as its first argument. Delivery failures are logged and swallowed so a
// broken hook never affects task processing. The workflow depends only on the
// Service interface, and an unconfigured service degrades to a no-op.
package hooks
