// Package postgres stores links in the short_urls table of a PostgreSQL
// database reached through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/linkregistry/internal/errx"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
)

const (
	uniqueViolation      = "23505"
	shortCodeUniqueIndex = "short_urls_short_code_unique"
)

// dbtx is the part of *pgxpool.Pool (or pgx.Tx) the store needs.
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db dbtx
}

func New(db dbtx) *Store {
	return &Store{db: db}
}

func (s *Store) GetByCode(ctx context.Context, code string) (shortener.Link, error) {
	const op = "postgres.GetByCode"

	const query = `SELECT id, long_url, short_code, created_at, click_count
		FROM short_urls WHERE short_code = $1`

	var link shortener.Link
	err := s.db.QueryRow(ctx, query, code).Scan(
		&link.ID, &link.LongURL, &link.Code, &link.CreatedAt, &link.ClickCount,
	)
	if err != nil {
		return shortener.Link{}, mapError(op, err)
	}
	link.CreatedAt = link.CreatedAt.UTC()
	return link, nil
}

// InsertIfAbsent inserts unless the code exists. ON CONFLICT DO NOTHING
// returns no row for a lost race; the unique violation branch in mapError
// covers a concurrent insert that still surfaces as an error.
func (s *Store) InsertIfAbsent(ctx context.Context, link shortener.Link) (shortener.Link, error) {
	const op = "postgres.InsertIfAbsent"

	const query = `INSERT INTO short_urls (long_url, short_code, created_at)
		VALUES ($1, $2, COALESCE($3, now()))
		ON CONFLICT (short_code) DO NOTHING
		RETURNING id, created_at, click_count`

	var createdAt any
	if !link.CreatedAt.IsZero() {
		createdAt = link.CreatedAt
	}

	err := s.db.QueryRow(ctx, query, link.LongURL, link.Code, createdAt).Scan(
		&link.ID, &link.CreatedAt, &link.ClickCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shortener.Link{}, errx.E(op, errx.CodeTaken,
				fmt.Errorf("code %q already exists", link.Code))
		}
		return shortener.Link{}, mapError(op, err)
	}
	link.CreatedAt = link.CreatedAt.UTC()
	return link, nil
}

func (s *Store) IncrementClickCount(ctx context.Context, code string) error {
	const op = "postgres.IncrementClickCount"

	const query = `UPDATE short_urls SET click_count = click_count + 1 WHERE short_code = $1`

	tag, err := s.db.Exec(ctx, query, code)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, fmt.Errorf("code %q not found", code))
	}
	return nil
}

func mapError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isShortCodeUniqueViolation(err):
		return errx.E(op, errx.CodeTaken, err)

	default:
		return errx.E(op, errx.StorageUnavailable, err)
	}
}

func isShortCodeUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == shortCodeUniqueIndex
}
