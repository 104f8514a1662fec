package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"example.com/mastermind/internal/game"
	"example.com/mastermind/internal/migrate"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteEventLog is the single-node event log: the whole game history in one
// file, no server to run.
type SQLiteEventLog struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLiteEventLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection: SQLite has a single writer anyway, and this keeps
	// concurrent appends from failing with SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate.UpSQLite(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteEventLog{db: db, now: time.Now}, nil
}

func (s *SQLiteEventLog) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteEventLog) Append(ctx context.Context, id game.ID, expectedSeq uint64, records []game.Record) ([]game.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM game_events WHERE game_id = ?`,
		string(id),
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("read last seq: %w", err)
	}
	if uint64(last) != expectedSeq {
		return nil, game.ErrConcurrencyConflict
	}

	stamped := game.StampRecords(id, expectedSeq, records, s.now())
	for _, r := range stamped {
		var commandID any
		if r.CommandID != "" {
			commandID = r.CommandID
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO game_events (game_id, seq, type, payload, command_id, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(r.GameID), int64(r.Seq), string(r.Type), []byte(r.Payload), commandID, r.RecordedAt.UnixMilli(),
		)
		if err != nil {
			if isConstraintError(err) {
				return nil, game.ErrConcurrencyConflict
			}
			return nil, fmt.Errorf("insert event %d: %w", r.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stamped, nil
}

func (s *SQLiteEventLog) ReadAll(ctx context.Context, id game.ID) ([]game.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, type, payload, COALESCE(command_id, ''), recorded_at
		 FROM game_events WHERE game_id = ?
		 ORDER BY seq`,
		string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.Record
	for rows.Next() {
		var (
			seq, recordedAt int64
			typ             string
			payload         []byte
			r               = game.Record{GameID: id}
		)
		if err := rows.Scan(&seq, &typ, &payload, &r.CommandID, &recordedAt); err != nil {
			return nil, err
		}
		r.Seq = uint64(seq)
		r.Type = game.EventType(typ)
		r.Payload = payload
		r.RecordedAt = time.UnixMilli(recordedAt).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
