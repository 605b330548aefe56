package queue

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Kind distinguishes single-file tasks from batch tasks.
type Kind string

const (
	KindSingle Kind = "single"
	KindBatch  Kind = "batch"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusRetrying,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// validTransitions is the authoritative edge set of the task state machine.
// A terminal status has no outgoing edges; Update enforces this.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusRetrying, StatusCompleted, StatusFailed},
	StatusRetrying:   {StatusProcessing},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case KindSingle, KindBatch:
		return normalized, true
	default:
		return "", false
	}
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// CanTransition reports whether moving from one status to another is a legal
// state machine edge. Re-asserting the current status is always allowed so
// in-flight tasks can persist progress updates.
func CanTransition(from, to Status) bool {
	if from == to {
		_, known := statusSet[from]
		return known
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Task is the unit of trackable watermarking work persisted in SQLite.
type Task struct {
	ID           string
	Kind         Kind
	Label        string
	Status       Status
	InputPaths   []string
	Text         string
	Position     string
	StyleJSON    string
	ResultJSON   string
	ErrorMessage string
	RetryCount   int
	MaxRetries   int
	RetryDelay   int // seconds; backoff base
	NextAttempt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// IsTerminal reports whether the task reached a terminal status.
func (t Task) IsTerminal() bool {
	return IsTerminal(t.Status)
}

// SetFailed marks the task as failed with the given error message.
func (t *Task) SetFailed(message string) {
	t.Status = StatusFailed
	t.ErrorMessage = message
	t.NextAttempt = nil
}

// HealthSummary describes aggregated task counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Retrying   int
	Completed  int
	Failed     int
}

var labelCaser = cases.Title(language.Und)

// DeriveLabel produces a human-readable task label from a source path:
// separators collapse to spaces and words are title-cased.
func DeriveLabel(sourcePath string) string {
	if sourcePath == "" {
		return "Untitled Task"
	}
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	label := strings.TrimSpace(cleaned.String())
	if label == "" {
		return "Untitled Task"
	}
	return labelCaser.String(label)
}
