// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and hook targets Stamper depends on.
//
// These checks run in two contexts:
//   - The daemon entrypoint runs RunAll at startup and logs failures so a
//     misconfigured install is visible before the first task arrives.
//   - The CLI "stamper status" command uses the results to display
//     environment health alongside daemon state.
//
// Each check degrades to a descriptive detail string instead of an error
// so callers can render the full set regardless of individual failures.
package preflight
