// Package daemon coordinates the long-running Stamper process.
//
// It wires configuration, task storage, the workflow manager, and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances. The daemon exposes task maintenance helpers, validates and
// enqueues watermark requests, renders sample previews, and reports status
// for the CLI and API surfaces.
//
// Keep orchestration logic here: watermark processing itself lives in the
// workflow and ffmpeg packages while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
