// Package store persists what the dialogue engine produces: an append-only
// turn log in SQLite and periodic session snapshots in Badger. Neither is on
// the turn's critical path.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"contractbot/internal/logging"

	_ "github.com/mattn/go-sqlite3" // driver "sqlite3"
	_ "modernc.org/sqlite"          // driver "sqlite"
)

// Supported database/sql driver names.
const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

// TurnRecord is one logged turn.
type TurnRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	UserID         string    `json:"userId,omitempty"`
	TurnNumber     int       `json:"turnNumber"`
	Input          string    `json:"input"`
	CorrectedInput string    `json:"correctedInput"`
	Role           string    `json:"role"`
	QueryType      string    `json:"queryType"`
	ActionType     string    `json:"actionType"`
	Phase          string    `json:"phase"`
	Success        bool      `json:"success"`
	ProcessingMs   int64     `json:"processingMs"`
	Response       string    `json:"response,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TurnLog is the SQLite turn history.
type TurnLog struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	driver string
}

const turnLogSchema = `
CREATE TABLE IF NOT EXISTS turn_log (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id TEXT,
	turn_number INTEGER NOT NULL,
	input TEXT NOT NULL,
	corrected_input TEXT,
	role TEXT,
	query_type TEXT,
	action_type TEXT,
	phase TEXT,
	success INTEGER NOT NULL,
	processing_ms INTEGER,
	response_json TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turn_log_session ON turn_log(session_id, turn_number);
`

// OpenTurnLog opens (creating if needed) the turn log at path with the given
// driver. ":memory:" is accepted.
func OpenTurnLog(driver, path string) (*TurnLog, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenTurnLog")
	defer timer.Stop()

	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPure {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.StoreError("Failed to open turn log at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open turn log: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("%s failed: %v", pragma, err)
		}
	}

	if _, err := db.Exec(turnLogSchema); err != nil {
		db.Close()
		logging.StoreError("Failed to initialize turn log schema: %v", err)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("Turn log ready at %s (driver %s)", path, driver)
	return &TurnLog{db: db, path: path, driver: driver}, nil
}

// Driver returns the database/sql driver in use.
func (l *TurnLog) Driver() string { return l.driver }

// RecordTurn appends rec, numbering it after the session's last turn.
// Records with an already-logged ID are ignored.
func (l *TurnLog) RecordTurn(ctx context.Context, rec TurnRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO turn_log (
			id, session_id, user_id, turn_number, input, corrected_input, role,
			query_type, action_type, phase, success, processing_ms, response_json, created_at
		) VALUES (
			?, ?, ?, (SELECT COALESCE(MAX(turn_number), 0) + 1 FROM turn_log WHERE session_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)`,
		rec.ID, rec.SessionID, rec.UserID, rec.SessionID,
		rec.Input, rec.CorrectedInput, rec.Role,
		rec.QueryType, rec.ActionType, rec.Phase, rec.Success, rec.ProcessingMs, rec.Response,
		rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		logging.StoreError("Failed to record turn %s for session %s: %v", rec.ID, rec.SessionID, err)
		return fmt.Errorf("record turn: %w", err)
	}
	logging.StoreDebug("Recorded turn %s for session %s", rec.ID, rec.SessionID)
	return nil
}

// History returns the latest limit turns of a session, oldest first.
func (l *TurnLog) History(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	timer := logging.StartTimer(logging.CategoryStore, "TurnLog.History")
	defer timer.Stop()

	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, turn_number, input, corrected_input, role,
		        query_type, action_type, phase, success, processing_ms, response_json, created_at
		 FROM turn_log
		 WHERE session_id = ?
		 ORDER BY turn_number DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		logging.StoreError("Failed to query history for %s: %v", sessionID, err)
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		var userID, corrected, role, qt, at, phase, response sql.NullString
		var processingMs sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &userID, &rec.TurnNumber, &rec.Input, &corrected, &role,
			&qt, &at, &phase, &rec.Success, &processingMs, &response, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		rec.UserID = userID.String
		rec.CorrectedInput = corrected.String
		rec.Role = role.String
		rec.QueryType = qt.String
		rec.ActionType = at.String
		rec.Phase = phase.String
		rec.ProcessingMs = processingMs.Int64
		rec.Response = response.String
		rec.CreatedAt = time.Unix(0, createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// Count returns the number of logged turns.
func (l *TurnLog) Count(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM turn_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (l *TurnLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}
