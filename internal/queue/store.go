package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"stamper/internal/config"
)

// Store manages task persistence backed by SQLite. SQLite serializes writes,
// which gives every task id the per-id update ordering pollers rely on.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the task database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "tasks.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the task database.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// NewTaskParams carries everything fixed at task creation.
type NewTaskParams struct {
	Kind       Kind
	InputPaths []string
	Text       string
	Position   string
	StyleJSON  string
	MaxRetries int
	RetryDelay int
}

// NewTask allocates an id and inserts a pending task. Retry parameters are
// fixed for the task's lifetime.
func (s *Store) NewTask(ctx context.Context, params NewTaskParams) (*Task, error) {
	if len(params.InputPaths) == 0 {
		return nil, errors.New("at least one input path is required")
	}
	if params.Kind != KindSingle && params.Kind != KindBatch {
		return nil, fmt.Errorf("unknown task kind %q", params.Kind)
	}
	if params.MaxRetries < 0 {
		return nil, errors.New("max retries must not be negative")
	}

	inputs, err := json.Marshal(params.InputPaths)
	if err != nil {
		return nil, fmt.Errorf("marshal input paths: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(timeFormat)

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (
            id, kind, label, status, input_paths, text, position, style_json,
            retry_count, max_retries, retry_delay, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		string(params.Kind),
		DeriveLabel(params.InputPaths[0]),
		StatusPending,
		string(inputs),
		nullableString(params.Text),
		nullableString(params.Position),
		nullableString(params.StyleJSON),
		0,
		params.MaxRetries,
		params.RetryDelay,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task snapshot by identifier. Unknown ids return nil
// without error so status polls stay a pure read.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update persists the task's current fields, enforcing the state machine and
// deriving started_at/completed_at. The read-check-write runs in one
// transaction so concurrent updates on the same id serialize cleanly.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		currentStatus string
		startedRaw    sql.NullString
		completedRaw  sql.NullString
	)
	row := tx.QueryRowContext(ctx, `SELECT status, started_at, completed_at FROM tasks WHERE id = ?`, task.ID)
	if err := row.Scan(&currentStatus, &startedRaw, &completedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("read current task: %w", err)
	}

	if !CanTransition(Status(currentStatus), task.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, task.Status)
	}

	now := time.Now().UTC()
	task.UpdatedAt = now

	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			task.StartedAt = &started
		}
	} else if task.Status == StatusProcessing {
		started := now
		task.StartedAt = &started
	}

	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			task.CompletedAt = &completed
		}
	} else if IsTerminal(task.Status) {
		completed := now
		task.CompletedAt = &completed
	}

	inputs, err := json.Marshal(task.InputPaths)
	if err != nil {
		return fmt.Errorf("marshal input paths: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE tasks
         SET kind = ?, label = ?, status = ?, input_paths = ?, text = ?, position = ?,
             style_json = ?, result_json = ?, error_message = ?, retry_count = ?,
             max_retries = ?, retry_delay = ?, next_attempt_at = ?, updated_at = ?,
             started_at = ?, completed_at = ?
         WHERE id = ?`,
		string(task.Kind),
		nullableString(task.Label),
		task.Status,
		string(inputs),
		nullableString(task.Text),
		nullableString(task.Position),
		nullableString(task.StyleJSON),
		nullableString(task.ResultJSON),
		nullableString(task.ErrorMessage),
		task.RetryCount,
		task.MaxRetries,
		task.RetryDelay,
		nullableTime(task.NextAttempt),
		task.UpdatedAt.Format(timeFormat),
		nullableTime(task.StartedAt),
		nullableTime(task.CompletedAt),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the oldest runnable task (pending, or retrying
// whose backoff has elapsed) and transitions it to processing. The second
// return value reports whether this is the task's first processing entry.
// Returns (nil, false, nil) when nothing is runnable.
func (s *Store) ClaimNext(ctx context.Context) (*Task, bool, error) {
	now := time.Now().UTC()
	nowStr := now.Format(timeFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT id, status FROM tasks
         WHERE status = ? OR (status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?)
         ORDER BY created_at LIMIT 1`,
		StatusPending,
		StatusRetrying,
		nowStr,
	)
	var (
		id         string
		prevStatus string
	)
	if err := row.Scan(&id, &prevStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("select runnable task: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE tasks
         SET status = ?, started_at = COALESCE(started_at, ?), next_attempt_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing,
		nowStr,
		nowStr,
		id,
		prevStatus,
	)
	if err != nil {
		return nil, false, fmt.Errorf("claim task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		// Lost the race to another worker; caller polls again.
		return nil, false, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit claim: %w", err)
	}

	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if task == nil {
		return nil, false, nil
	}
	return task, Status(prevStatus) == StatusPending, nil
}

// List returns tasks filtered by status set (or all tasks when no status is
// provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates task state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusRetrying:
			health.Retrying += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// timeFormat keeps a fixed-width fractional second so stored timestamps sort
// and compare correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const taskColumns = "id, kind, label, status, input_paths, text, position, style_json, result_json, error_message, retry_count, max_retries, retry_delay, next_attempt_at, created_at, updated_at, started_at, completed_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id             string
		kind           string
		label          sql.NullString
		statusStr      string
		inputsRaw      string
		text           sql.NullString
		position       sql.NullString
		styleJSON      sql.NullString
		resultJSON     sql.NullString
		errorMessage   sql.NullString
		retryCount     int
		maxRetries     int
		retryDelay     int
		nextAttemptRaw sql.NullString
		createdRaw     string
		updatedRaw     string
		startedRaw     sql.NullString
		completedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&label,
		&statusStr,
		&inputsRaw,
		&text,
		&position,
		&styleJSON,
		&resultJSON,
		&errorMessage,
		&retryCount,
		&maxRetries,
		&retryDelay,
		&nextAttemptRaw,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:           id,
		Kind:         Kind(kind),
		Label:        label.String,
		Status:       Status(statusStr),
		Text:         text.String,
		Position:     position.String,
		StyleJSON:    styleJSON.String,
		ResultJSON:   resultJSON.String,
		ErrorMessage: errorMessage.String,
		RetryCount:   retryCount,
		MaxRetries:   maxRetries,
		RetryDelay:   retryDelay,
	}

	if inputsRaw != "" {
		if err := json.Unmarshal([]byte(inputsRaw), &task.InputPaths); err != nil {
			return nil, fmt.Errorf("decode input paths: %w", err)
		}
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	if nextAttemptRaw.Valid {
		if next, err := parseTimeString(nextAttemptRaw.String); err == nil {
			task.NextAttempt = &next
		}
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			task.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			task.CompletedAt = &completed
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeFormat)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
