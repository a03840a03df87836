// Package store persists accounts and match history in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/zayn-rush/rush-backend/db"
	"github.com/zayn-rush/rush-backend/internal/protocol"
)

// TimeLayout is how last-login timestamps are rendered on the wire.
const TimeLayout = "2006-01-02 15:04:05"

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
)

type Store struct {
	db    *sql.DB
	cache *StatsCache
}

// New wraps an open database handle. cache may be nil to disable the
// stats cache.
func New(sqlDB *sql.DB, cache *StatsCache) *Store {
	return &Store{
		db:    sqlDB,
		cache: cache,
	}
}

// EnsureSchema creates the two tables if they don't exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const accounts = `
		CREATE TABLE IF NOT EXISTS accounts (
			username   TEXT PRIMARY KEY,
			password   TEXT NOT NULL,
			last_login TIMESTAMPTZ NOT NULL,
			car        TEXT NOT NULL DEFAULT 'A',
			wins       INTEGER NOT NULL DEFAULT 0,
			games      INTEGER NOT NULL DEFAULT 0
		)`
	const matches = `
		CREATE TABLE IF NOT EXISTS matches (
			id      BIGSERIAL PRIMARY KEY,
			player1 TEXT NOT NULL,
			player2 TEXT NOT NULL,
			result  TEXT NOT NULL DEFAULT 'Pending'
		)`
	if _, err := s.db.ExecContext(ctx, accounts); err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, matches); err != nil {
		return fmt.Errorf("failed to create matches table: %w", err)
	}
	return nil
}

// CreateAccount registers a new player with zero stats.
func (s *Store) CreateAccount(ctx context.Context, username, password, car string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password cannot be empty")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if car == "" {
		car = protocol.DefaultCar
	}

	query := `
		INSERT INTO accounts (username, password, last_login, car, wins, games)
		VALUES ($1, $2, $3, $4, 0, 0)`
	_, err = s.db.ExecContext(ctx, query, username, string(hashedPassword), time.Now(), car)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return err
	}
	s.cache.Invalidate(ctx, username)
	return nil
}

// Authenticate verifies credentials and stamps the login time.
func (s *Store) Authenticate(ctx context.Context, username, password string) error {
	var hashed string
	err := s.db.QueryRowContext(ctx,
		`SELECT password FROM accounts WHERE username = $1`, username).Scan(&hashed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) != nil {
		return ErrInvalidCredentials
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET last_login = $1 WHERE username = $2`, time.Now(), username); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, username)
	return nil
}

// Stats returns a player's car choice and record, read through the cache.
func (s *Store) Stats(ctx context.Context, username string) (db.Stats, error) {
	if stats, ok := s.cache.Get(ctx, username); ok {
		return stats, nil
	}

	var (
		stats     db.Stats
		lastLogin time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT car, wins, games, last_login FROM accounts WHERE username = $1`, username).
		Scan(&stats.Car, &stats.Wins, &stats.Games, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Stats{}, ErrAccountNotFound
		}
		return db.Stats{}, err
	}
	stats.LastLogin = lastLogin.Format(TimeLayout)

	s.cache.Set(ctx, username, stats)
	return stats, nil
}

// CreateMatch appends a Pending match record and returns its id.
func (s *Store) CreateMatch(ctx context.Context, player1, player2 string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO matches (player1, player2, result) VALUES ($1, $2, $3) RETURNING id`,
		player1, player2, db.ResultPending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to log match: %w", err)
	}
	return id, nil
}

// ReportResult finalizes the most recent Pending match between the
// unordered pair and bumps the win/game counters, all in one
// transaction. A duplicate report finds no Pending record and leaves
// the counters alone.
func (s *Store) ReportResult(ctx context.Context, player1, player2, winner string) error {
	resultText := winner
	if winner == protocol.Draw {
		resultText = db.ResultDraw
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE matches SET result = $1
		WHERE id = (
			SELECT id FROM matches
			WHERE ((player1 = $2 AND player2 = $3) OR (player1 = $3 AND player2 = $2))
			  AND result = $4
			ORDER BY id DESC
			LIMIT 1
		)`,
		resultText, player1, player2, db.ResultPending)
	if err != nil {
		return fmt.Errorf("failed to update match result: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		// No Pending record left: duplicate or unknown pair. Nothing to count.
		return tx.Commit()
	}

	if winner != protocol.Draw {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET wins = wins + 1 WHERE username = $1`, winner); err != nil {
			return fmt.Errorf("failed to update wins: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET games = games + 1 WHERE username = $1 OR username = $2`,
		player1, player2); err != nil {
		return fmt.Errorf("failed to update game counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, player1, player2)
	return nil
}
