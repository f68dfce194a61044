// Package store is the persistence collaborator for debates, agents, and
// turn records, backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/openagora/agora/pkg/debate"
	"github.com/rs/zerolog"
)

// ErrNotFound marks a lookup for a debate that does not exist, distinct
// from transient I/O failures.
var ErrNotFound = debate.ErrNotFound

// Store persists debates and their messages.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds store configuration.
type Config struct {
	Path   string
	Logger zerolog.Logger
}

// New opens (or creates) the database and ensures the schema exists.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.Path).Msg("Store initialized")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS debates (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			max_turns INTEGER NOT NULL DEFAULT 20,
			current_turn INTEGER NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			debate_id TEXT NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			system_prompt TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			temperature REAL NOT NULL DEFAULT 0.7,
			order_index INTEGER NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_agents_debate ON agents(debate_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			debate_id TEXT NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
			agent_id TEXT NOT NULL DEFAULT '',
			agent_name TEXT NOT NULL,
			content TEXT NOT NULL,
			message_type TEXT NOT NULL DEFAULT 'argument',
			turn_number INTEGER NOT NULL,
			model_used TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_debate_turn
			ON messages(debate_id, turn_number);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateDebate persists a new debate with its agents. Agent names must be
// unique within the debate (case-insensitive); order indices are assigned
// from list position starting at 1.
func (s *Store) CreateDebate(ctx context.Context, d *debate.Debate) (*debate.Debate, error) {
	seen := make(map[string]bool, len(d.Agents))
	for _, a := range d.Agents {
		key := strings.ToLower(strings.TrimSpace(a.Name))
		if seen[key] {
			return nil, fmt.Errorf("agent names must be unique: %s", a.Name)
		}
		seen[key] = true
	}

	now := time.Now().UTC()
	d.ID = uuid.New().String()
	d.Status = debate.StatusPending
	d.CurrentTurn = 0
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.MaxTurns <= 0 {
		d.MaxTurns = 20
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO debates (id, topic, description, status, max_turns, current_turn, summary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		d.ID, d.Topic, d.Description, d.Status, d.MaxTurns, d.CurrentTurn, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert debate: %w", err)
	}

	for i := range d.Agents {
		a := &d.Agents[i]
		a.ID = uuid.New().String()
		a.DebateID = d.ID
		a.OrderIndex = i + 1
		a.Active = true
		if a.SystemPrompt == "" {
			a.SystemPrompt = fmt.Sprintf("You are %s, acting as a %s in this debate.", a.Name, a.Role)
		}
		if a.Temperature <= 0 {
			a.Temperature = 0.7
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO agents (id, debate_id, name, role, system_prompt, provider, model, temperature, order_index, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			a.ID, a.DebateID, a.Name, a.Role, a.SystemPrompt, a.Provider, a.Model, a.Temperature, a.OrderIndex,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert agent: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit debate: %w", err)
	}
	return d, nil
}

// GetDebate loads a debate with its agents in turn order.
func (s *Store) GetDebate(ctx context.Context, id string) (*debate.Debate, error) {
	d := &debate.Debate{}
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, topic, description, status, max_turns, current_turn, summary, created_at, updated_at, completed_at
		FROM debates WHERE id = ?`, id,
	).Scan(&d.ID, &d.Topic, &d.Description, &d.Status, &d.MaxTurns, &d.CurrentTurn, &d.Summary,
		&d.CreatedAt, &d.UpdatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load debate: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		d.CompletedAt = &t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, debate_id, name, role, system_prompt, provider, model, temperature, order_index, active
		FROM agents WHERE debate_id = ? ORDER BY order_index ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a debate.Agent
		if err := rows.Scan(&a.ID, &a.DebateID, &a.Name, &a.Role, &a.SystemPrompt,
			&a.Provider, &a.Model, &a.Temperature, &a.OrderIndex, &a.Active); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		d.Agents = append(d.Agents, a)
	}
	return d, rows.Err()
}

// ListDebates returns debates ordered by creation time, newest first.
func (s *Store) ListDebates(ctx context.Context, offset, limit int) ([]debate.Debate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, description, status, max_turns, current_turn, summary, created_at, updated_at, completed_at
		FROM debates ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	var out []debate.Debate
	for rows.Next() {
		var d debate.Debate
		var completedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.Topic, &d.Description, &d.Status, &d.MaxTurns, &d.CurrentTurn,
			&d.Summary, &d.CreatedAt, &d.UpdatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan debate: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			d.CompletedAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDebate removes a debate and, via cascade, its agents and messages.
func (s *Store) DeleteDebate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM debates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Messages returns a debate's messages ordered by turn number. A
// non-positive limit returns everything.
func (s *Store) Messages(ctx context.Context, debateID string, offset, limit int) ([]debate.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, debate_id, agent_id, agent_name, content, message_type, turn_number, model_used, created_at
		FROM messages WHERE debate_id = ?
		ORDER BY turn_number ASC, created_at ASC LIMIT ? OFFSET ?`, debateID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var out []debate.Message
	for rows.Next() {
		var m debate.Message
		if err := rows.Scan(&m.ID, &m.DebateID, &m.AgentID, &m.AgentName, &m.Content,
			&m.Type, &m.TurnNumber, &m.ModelUsed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendTurn persists a turn record, assigning the debate's next turn
// number and advancing its current-turn counter in the same transaction.
// An observer never sees a turn-complete event for a turn that failed to
// persist: the runner broadcasts only after this commit returns.
func (s *Store) AppendTurn(ctx context.Context, debateID string, msg debate.Message) (*debate.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM debates WHERE id = ?", debateID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check debate: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	var nextTurn int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(turn_number), 0) + 1 FROM messages WHERE debate_id = ?", debateID,
	).Scan(&nextTurn)
	if err != nil {
		return nil, fmt.Errorf("failed to assign turn number: %w", err)
	}

	msg.ID = uuid.New().String()
	msg.DebateID = debateID
	msg.TurnNumber = nextTurn
	msg.CreatedAt = time.Now().UTC()
	if msg.Type == "" {
		msg.Type = debate.DefaultMessageType
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, debate_id, agent_id, agent_name, content, message_type, turn_number, model_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.DebateID, msg.AgentID, msg.AgentName, msg.Content, msg.Type, msg.TurnNumber, msg.ModelUsed, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE debates SET current_turn = ?, updated_at = ? WHERE id = ?",
		msg.TurnNumber, msg.CreatedAt, debateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to advance turn counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit turn: %w", err)
	}
	return &msg, nil
}

// SetStatus updates the persisted debate status. Reaching
// StatusCompleted also records the completion time.
func (s *Store) SetStatus(ctx context.Context, id string, status debate.Status) error {
	now := time.Now().UTC()
	var err error
	var res sql.Result
	if status == debate.StatusCompleted {
		res, err = s.db.ExecContext(ctx,
			"UPDATE debates SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?",
			status, now, now, id,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE debates SET status = ?, updated_at = ? WHERE id = ?",
			status, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSummary stores the consensus summary text on the debate record.
func (s *Store) SetSummary(ctx context.Context, id string, summary string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE debates SET summary = ?, updated_at = ? WHERE id = ?",
		summary, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeCompletedBefore deletes completed debates whose completion time is
// older than the cutoff. Used by the retention job.
func (s *Store) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM debates WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?",
		debate.StatusCompleted, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge debates: %w", err)
	}
	return res.RowsAffected()
}
