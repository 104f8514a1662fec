package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"example.com/mastermind/internal/board"
	"example.com/mastermind/internal/game"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBoardStore keeps decoding boards as JSONB documents with their
// version in a separate column for the compare-and-swap.
type PostgresBoardStore struct {
	db *pgxpool.Pool
}

func NewPostgresBoardStore(db *pgxpool.Pool) *PostgresBoardStore {
	return &PostgresBoardStore{db: db}
}

func (s *PostgresBoardStore) Get(ctx context.Context, id game.ID) (board.DecodingBoard, error) {
	var doc []byte
	err := s.db.QueryRow(ctx,
		`SELECT document FROM decoding_boards WHERE game_id = $1`,
		string(id),
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return board.DecodingBoard{}, board.ErrNotFound
	}
	if err != nil {
		return board.DecodingBoard{}, err
	}

	var b board.DecodingBoard
	if err := json.Unmarshal(doc, &b); err != nil {
		return board.DecodingBoard{}, fmt.Errorf("decode board %s: %w", id, err)
	}
	return b, nil
}

func (s *PostgresBoardStore) Put(ctx context.Context, b board.DecodingBoard, expectedVersion uint64) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return err
	}

	var affected int64
	if expectedVersion == 0 {
		tag, err := s.db.Exec(ctx,
			`INSERT INTO decoding_boards (game_id, version, document)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (game_id) DO NOTHING`,
			string(b.GameID), int64(b.Version), doc,
		)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
	} else {
		tag, err := s.db.Exec(ctx,
			`UPDATE decoding_boards
			 SET version = $2, document = $3, updated_at = now()
			 WHERE game_id = $1 AND version = $4`,
			string(b.GameID), int64(b.Version), doc, int64(expectedVersion),
		)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
	}

	if affected == 0 {
		return board.ErrVersionConflict
	}
	return nil
}
