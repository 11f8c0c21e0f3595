// Package store persists analysis results to a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/dialogue-metrics/dialogue"
)

// GlobalScope is the act_transitions scope for the run-wide matrix.
const GlobalScope = "global"

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS threads (
    thread TEXT PRIMARY KEY,
    conversation_id TEXT,
    title TEXT,
    total_messages INTEGER,
    user_turns INTEGER,
    assistant_turns INTEGER,
    duration_seconds REAL,
    contradiction_ratio REAL,
    contradiction_ratio_infinite INTEGER NOT NULL DEFAULT 0,
    convergence_trend TEXT,
    dominant_affect TEXT,
    summary_json TEXT
);

CREATE TABLE IF NOT EXISTS messages (
    thread TEXT NOT NULL,
    seq INTEGER NOT NULL,
    role TEXT,
    model TEXT,
    timestamp TEXT,
    word_count INTEGER,
    token_count INTEGER,
    dialogue_act TEXT,
    sentiment_label TEXT,
    sentiment_score REAL,
    features_json TEXT,
    PRIMARY KEY (thread, seq)
);

CREATE TABLE IF NOT EXISTS act_transitions (
    scope TEXT NOT NULL,
    from_act TEXT NOT NULL,
    to_act TEXT NOT NULL,
    count INTEGER,
    probability REAL,
    PRIMARY KEY (scope, from_act, to_act)
);
`

// Store wraps the results database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store.Open: path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(SchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveReport stores every thread, each thread's transitions, and the global matrix.
// Rows for a thread or scope already present are replaced.
func (s *Store) SaveReport(ctx context.Context, r dialogue.Report) error {
	for _, t := range r.Threads {
		if err := s.SaveThread(ctx, t); err != nil {
			return err
		}
		if err := s.SaveTransitions(ctx, t.Key, t.Transitions); err != nil {
			return err
		}
	}
	return s.SaveTransitions(ctx, GlobalScope, r.GlobalTransitions)
}

// SaveThread replaces the summary row and message rows for t.Key.
func (s *Store) SaveThread(ctx context.Context, t dialogue.ThreadResult) error {
	summary, err := json.Marshal(t.Summary)
	if err != nil {
		return fmt.Errorf("SaveThread: marshal summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread = ?`, t.Key); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	sum := t.Summary
	ratio, inf := ratioColumns(sum.ContradictionRatio)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO threads(thread, conversation_id, title, total_messages, user_turns, assistant_turns,
			duration_seconds, contradiction_ratio, contradiction_ratio_infinite, convergence_trend, dominant_affect, summary_json)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Key, t.ID, t.Title, sum.TotalMessages, sum.UserTurns, sum.AssistantTurns,
		nullFloat(sum.DurationSeconds), ratio, inf, sum.ConvergenceTrend, sum.DominantAffect, string(summary),
	); err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages(thread, seq, role, model, timestamp, word_count, token_count, dialogue_act,
			sentiment_label, sentiment_score, features_json)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range t.Messages {
		features, err := json.Marshal(m.Features)
		if err != nil {
			return fmt.Errorf("marshal features (seq=%d): %w", m.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx,
			t.Key, m.Seq, m.Role, m.Model, m.Timestamp, m.WordCount, m.TokenCount, m.DialogueAct,
			m.Sentiment.Label, m.Sentiment.Score, string(features),
		); err != nil {
			return fmt.Errorf("insert message (seq=%d): %w", m.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SaveTransitions replaces the transition rows for scope. Only observed transitions
// (count > 0) are stored.
func (s *Store) SaveTransitions(ctx context.Context, scope string, m dialogue.TransitionMatrix) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM act_transitions WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("clear transitions: %w", err)
	}
	for i, from := range m.Labels {
		for j, to := range m.Labels {
			n := m.Counts[i][j]
			if n == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO act_transitions(scope, from_act, to_act, count, probability) VALUES(?,?,?,?,?)`,
				scope, from, to, n, m.Probabilities[i][j],
			); err != nil {
				return fmt.Errorf("insert transition %s->%s: %w", from, to, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ThreadRow is the stored headline of one thread.
type ThreadRow struct {
	Thread             string
	ConversationID     string
	Title              string
	TotalMessages      int
	ContradictionRatio dialogue.Ratio
	ConvergenceTrend   string
}

// Threads returns the stored thread rows ordered by thread name.
func (s *Store) Threads(ctx context.Context) ([]ThreadRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread, conversation_id, title, total_messages, contradiction_ratio, contradiction_ratio_infinite, convergence_trend
		FROM threads ORDER BY thread`)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var out []ThreadRow
	for rows.Next() {
		var (
			r     ThreadRow
			ratio sql.NullFloat64
			inf   bool
		)
		if err := rows.Scan(&r.Thread, &r.ConversationID, &r.Title, &r.TotalMessages, &ratio, &inf, &r.ConvergenceTrend); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		switch {
		case inf:
			r.ContradictionRatio = dialogue.InfRatio
		case ratio.Valid:
			r.ContradictionRatio = dialogue.Ratio(ratio.Float64)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return out, nil
}

// CountRows returns the number of rows in one of the schema's tables.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "threads", "messages", "act_transitions":
	default:
		return 0, fmt.Errorf("CountRows: unknown table %q", table)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ratioColumns stores an infinite ratio as NULL plus a flag.
func ratioColumns(r dialogue.Ratio) (any, bool) {
	if r.IsInf() {
		return nil, true
	}
	if math.IsNaN(float64(r)) {
		return nil, false
	}
	return float64(r), false
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
