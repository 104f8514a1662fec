package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/mastermind/internal/game"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresEventLog stores game streams in game_events, one row per event.
// The (game_id, seq) primary key is what rejects a concurrent append.
type PostgresEventLog struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgresEventLog(db *pgxpool.Pool) *PostgresEventLog {
	return &PostgresEventLog{db: db, now: time.Now}
}

func (s *PostgresEventLog) Append(ctx context.Context, id game.ID, expectedSeq uint64, records []game.Record) ([]game.Record, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var last int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM game_events WHERE game_id = $1`,
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
		_, err := tx.Exec(ctx,
			`INSERT INTO game_events (game_id, seq, type, payload, command_id, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			string(r.GameID), int64(r.Seq), string(r.Type), []byte(r.Payload), nullable(r.CommandID), r.RecordedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, game.ErrConcurrencyConflict
			}
			return nil, fmt.Errorf("insert event %d: %w", r.Seq, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, game.ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stamped, nil
}

func (s *PostgresEventLog) ReadAll(ctx context.Context, id game.ID) ([]game.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT seq, type, payload, COALESCE(command_id, ''), recorded_at
		 FROM game_events WHERE game_id = $1
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
			seq     int64
			typ     string
			payload []byte
			r       = game.Record{GameID: id}
		)
		if err := rows.Scan(&seq, &typ, &payload, &r.CommandID, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Seq = uint64(seq)
		r.Type = game.EventType(typ)
		r.Payload = payload
		r.RecordedAt = r.RecordedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
