// Package queue implements the persistent, at-least-once outbound delivery
// queue backed by SQLite.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/nanogate/nanogate/internal/utils"
)

// Status is a delivery-message lifecycle state.
type Status int

const (
	Pending Status = iota
	Processing
	Delivered
	Failed
	DeadLetter
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	case DeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// backoff is the fixed retry schedule, indexed by attempt_count-1 and
// clamped to the last entry.
var backoff = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// MaxAttempts is the default attempt budget before a message becomes a dead letter.
const MaxAttempts = 5

func backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoff) {
		idx = len(backoff) - 1
	}
	return backoff[idx]
}

// Message is one outbound delivery attempt record.
type Message struct {
	ID            string
	Channel       string
	Recipient     string
	Content       string
	ThreadID      string
	SessionKey    string
	Priority      int
	Status        Status
	AttemptCount  int
	MaxAttempts   int
	LastError     string
	CreatedAt     time.Time
	ScheduledAt   *time.Time
	DeliveredAt   *time.Time
	NextAttemptAt *time.Time
}

// Stats is a per-status count returned by GetStats.
type Stats struct {
	Pending    int
	Processing int
	Delivered  int
	Failed     int
	DeadLetter int
	Total      int
}

// Queue is the SQLite-backed delivery queue.
type Queue struct {
	db      *sql.DB
	entropy *rand.Rand
}

// Open opens or creates a delivery queue database at path.
func Open(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("queue: create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("queue: open db: %w", err)
	}
	q := &Queue{db: db, entropy: rand.New(rand.NewSource(time.Now().UnixNano()))}
	if err := q.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: migrate: %w", err)
	}
	return q, nil
}

func (q *Queue) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id               TEXT PRIMARY KEY,
		channel          TEXT NOT NULL,
		recipient        TEXT NOT NULL,
		content          TEXT NOT NULL,
		thread_id        TEXT,
		session_key      TEXT,
		priority         INTEGER NOT NULL DEFAULT 0,
		status           INTEGER NOT NULL DEFAULT 0,
		attempt_count    INTEGER NOT NULL DEFAULT 0,
		max_attempts     INTEGER NOT NULL DEFAULT 5,
		last_error       TEXT,
		created_at       TEXT NOT NULL,
		scheduled_at     TEXT,
		delivered_at     TEXT,
		next_attempt_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_messages_ready ON messages(status, scheduled_at, next_attempt_at);
	CREATE INDEX IF NOT EXISTS idx_messages_priority ON messages(priority DESC, created_at ASC);
	`
	_, err := q.db.Exec(schema)
	return err
}

func (q *Queue) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), q.entropy).String()
}

// EnqueueParams describes an outbound message to persist.
type EnqueueParams struct {
	Channel     string
	Recipient   string
	Content     string
	ThreadID    string
	SessionKey  string
	ScheduledAt *time.Time
	Priority    int
}

// Enqueue inserts a new pending delivery message and returns its id.
func (q *Queue) Enqueue(ctx context.Context, p EnqueueParams) (string, error) {
	id := q.newID()
	var scheduledAt *string
	if p.ScheduledAt != nil {
		s := p.ScheduledAt.UTC().Format(time.RFC3339)
		scheduledAt = &s
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO messages (id, channel, recipient, content, thread_id, session_key, priority, status, attempt_count, max_attempts, created_at, scheduled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id, p.Channel, p.Recipient, p.Content, nullIfEmpty(p.ThreadID), nullIfEmpty(p.SessionKey),
		p.Priority, Pending, MaxAttempts, utils.Timestamp(), scheduledAt)
	if err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return id, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetPending returns ready-to-send messages ordered by priority DESC,
// created_at ASC, limited to limit (default 10 when limit <= 0).
func (q *Queue) GetPending(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	now := utils.Timestamp()
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, channel, recipient, content, thread_id, session_key, priority, status,
		        attempt_count, max_attempts, last_error, created_at, scheduled_at, delivered_at, next_attempt_at
		 FROM messages
		 WHERE status IN (?, ?)
		   AND attempt_count < max_attempts
		   AND (scheduled_at IS NULL OR scheduled_at <= ?)
		   AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		 ORDER BY priority DESC, created_at ASC
		 LIMIT ?`, Pending, Failed, now, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// MarkProcessing atomically transitions a message to Processing and
// increments attempt_count.
func (q *Queue) MarkProcessing(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, attempt_count = attempt_count + 1 WHERE id = ?`,
		Processing, id)
	if err != nil {
		return err
	}
	return checkAffected(res, id)
}

// MarkDelivered transitions a message to the terminal Delivered state.
func (q *Queue) MarkDelivered(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, delivered_at = ?, next_attempt_at = NULL, last_error = NULL WHERE id = ?`,
		Delivered, utils.Timestamp(), id)
	if err != nil {
		return err
	}
	return checkAffected(res, id)
}

// MarkFailed records a failed delivery attempt. If attempt_count has reached
// max_attempts the message becomes a dead letter; otherwise it is scheduled
// for retry per the fixed back-off.
func (q *Queue) MarkFailed(ctx context.Context, id, errMsg string) error {
	var attemptCount, maxAttempts int
	err := q.db.QueryRowContext(ctx,
		`SELECT attempt_count, max_attempts FROM messages WHERE id = ?`, id).Scan(&attemptCount, &maxAttempts)
	if err != nil {
		return fmt.Errorf("queue: message %q not found: %w", id, err)
	}

	if attemptCount >= maxAttempts {
		_, err = q.db.ExecContext(ctx,
			`UPDATE messages SET status = ?, last_error = ?, next_attempt_at = NULL WHERE id = ?`,
			DeadLetter, errMsg, id)
		return err
	}

	next := time.Now().UTC().Add(backoffFor(attemptCount)).Format(time.RFC3339)
	_, err = q.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		Failed, errMsg, next, id)
	return err
}

// RetryDeadLetter is the only allowed reverse transition: resets attempt
// count, clears last_error/next_attempt_at, and sets status back to Pending.
func (q *Queue) RetryDeadLetter(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, attempt_count = 0, last_error = NULL, next_attempt_at = NULL
		 WHERE id = ? AND status = ?`, Pending, id, DeadLetter)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("queue: message %q is not a dead letter", id)
	}
	return nil
}

// GetDeadLetters returns up to limit dead-lettered messages, most recent first.
func (q *Queue) GetDeadLetters(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, channel, recipient, content, thread_id, session_key, priority, status,
		        attempt_count, max_attempts, last_error, created_at, scheduled_at, delivered_at, next_attempt_at
		 FROM messages WHERE status = ? ORDER BY created_at DESC LIMIT ?`, DeadLetter, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetStats returns one count per status plus a total.
func (q *Queue) GetStats(ctx context.Context) (Stats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM messages GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case Pending:
			s.Pending = count
		case Processing:
			s.Processing = count
		case Delivered:
			s.Delivered = count
		case Failed:
			s.Failed = count
		case DeadLetter:
			s.DeadLetter = count
		}
		s.Total += count
	}
	return s, nil
}

// Close closes the underlying database handle.
func (q *Queue) Close() error {
	return q.db.Close()
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("queue: message %q not found", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (Message, error) {
	var m Message
	var threadID, sessionKey, lastError, scheduledAt, deliveredAt, nextAttemptAt sql.NullString
	var createdAt string

	err := row.Scan(&m.ID, &m.Channel, &m.Recipient, &m.Content, &threadID, &sessionKey,
		&m.Priority, &m.Status, &m.AttemptCount, &m.MaxAttempts, &lastError,
		&createdAt, &scheduledAt, &deliveredAt, &nextAttemptAt)
	if err != nil {
		return m, err
	}

	m.ThreadID = threadID.String
	m.SessionKey = sessionKey.String
	m.LastError = lastError.String
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if scheduledAt.Valid {
		t, _ := time.Parse(time.RFC3339, scheduledAt.String)
		m.ScheduledAt = &t
	}
	if deliveredAt.Valid {
		t, _ := time.Parse(time.RFC3339, deliveredAt.String)
		m.DeliveredAt = &t
	}
	if nextAttemptAt.Valid {
		t, _ := time.Parse(time.RFC3339, nextAttemptAt.String)
		m.NextAttemptAt = &t
	}
	return m, nil
}
