// Package repository archives finished games.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/cheese-reversi/internal/domain"
)

var ErrDuplicateGame = errors.New("reversi game already archived")

type Repository interface {
	InsertGame(ctx context.Context, game *domain.Game) (int64, error)
	GetGame(ctx context.Context, id int64) (*domain.Game, error)
	GetGameBySession(ctx context.Context, sessionID string) (*domain.Game, error)
	RecentGames(ctx context.Context, limit int) ([]*domain.Game, error)
}

const schema = `
	CREATE TABLE IF NOT EXISTS reversi_games (
		id          BIGSERIAL PRIMARY KEY,
		session_id  TEXT NOT NULL UNIQUE,
		mode        TEXT NOT NULL,
		level       TEXT NOT NULL DEFAULT '',
		result      TEXT NOT NULL,
		black_discs INTEGER NOT NULL,
		white_discs INTEGER NOT NULL,
		moves       JSONB NOT NULL,
		transcript  TEXT NOT NULL,
		start_board TEXT NOT NULL,
		start_side  TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		ended_at    TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT
	)`

const selectColumns = `
		SELECT
			id,
			session_id,
			mode,
			level,
			result,
			black_discs,
			white_discs,
			moves,
			transcript,
			start_board,
			start_side,
			started_at,
			ended_at,
			duration_ms
		FROM reversi_games`

type postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) Repository {
	return &postgres{db: db}
}

// EnsureSchema creates the archive table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create reversi_games: %w", err)
	}
	return nil
}

func (r *postgres) InsertGame(ctx context.Context, game *domain.Game) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil reversi game payload")
	}
	moves, err := json.Marshal(game.Moves)
	if err != nil {
		return 0, fmt.Errorf("marshal moves: %w", err)
	}

	const query = `
		INSERT INTO reversi_games (
			session_id,
			mode,
			level,
			result,
			black_discs,
			white_discs,
			moves,
			transcript,
			start_board,
			start_side,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.SessionID,
		game.Mode,
		game.Level,
		game.Result,
		game.BlackDiscs,
		game.WhiteDiscs,
		moves,
		game.Transcript,
		game.StartBoard,
		game.StartSide,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert reversi game: %w", err)
	}
	return id.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.Game, error) {
	var (
		game       domain.Game
		movesJSON  []byte
		durationMS sql.NullInt64
	)
	if err := row.Scan(
		&game.ID,
		&game.SessionID,
		&game.Mode,
		&game.Level,
		&game.Result,
		&game.BlackDiscs,
		&game.WhiteDiscs,
		&movesJSON,
		&game.Transcript,
		&game.StartBoard,
		&game.StartSide,
		&game.StartedAt,
		&game.EndedAt,
		&durationMS,
	); err != nil {
		return nil, err
	}
	if durationMS.Valid {
		game.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(movesJSON, &game.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	return &game, nil
}

func (r *postgres) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	game, err := scanGame(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select reversi game: %w", err)
	}
	return game, nil
}

func (r *postgres) GetGameBySession(ctx context.Context, sessionID string) (*domain.Game, error) {
	game, err := scanGame(r.db.QueryRowContext(ctx, selectColumns+` WHERE session_id = $1`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select reversi game by session: %w", err)
	}
	return game, nil
}

func (r *postgres) RecentGames(ctx context.Context, limit int) ([]*domain.Game, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select reversi games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.Game, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reversi game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}
