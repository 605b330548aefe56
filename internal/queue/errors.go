package queue

import "errors"

// ErrInvalidTransition indicates an update attempted a state machine edge
// that does not exist, including any transition out of a terminal status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound indicates the task id does not exist in the store.
var ErrNotFound = errors.New("task not found")
