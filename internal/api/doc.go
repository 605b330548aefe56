// Package api defines the transport-neutral task representations shared by
// the HTTP API, the daemon IPC socket, and lifecycle hook payloads.
package api
