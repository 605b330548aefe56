// Package queue persists watermark tasks in SQLite and enforces the task
// state machine. Tasks move pending -> processing -> {retrying, completed,
// failed}, with retrying -> processing on re-claim; terminal states never
// transition again. The store schedules retries through next_attempt_at
// rather than sleeping, so workers only ever claim runnable work.
package queue
