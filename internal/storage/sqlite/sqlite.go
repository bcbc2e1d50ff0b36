// Package sqlite stores links in the short_urls table of an SQLite database.
// A plain path or ":memory:" opens an embedded database file through
// modernc.org/sqlite; a libsql://, wss:// or https:// URL talks to a remote
// libSQL (Turso) server instead. Both speak the same SQL dialect, so one
// implementation serves both.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/sundayezeilo/linkregistry/internal/errx"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
)

const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"

	busyTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS short_urls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	long_url TEXT NOT NULL,
	short_code VARCHAR(10) UNIQUE NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	click_count INTEGER DEFAULT 0
)`

// Config selects the database. DSN is a file path, ":memory:" or a remote
// libSQL URL. AuthToken is only used for remote databases.
type Config struct {
	DSN       string
	AuthToken string
}

type Store struct {
	db     *sql.DB
	driver string
}

// DriverFor returns the database/sql driver name that serves dsn.
func DriverFor(dsn string) string {
	for _, prefix := range []string{"libsql://", "wss://", "ws://", "https://", "http://"} {
		if strings.HasPrefix(dsn, prefix) {
			return DriverLibSQL
		}
	}
	return DriverSQLite
}

// Open connects, verifies the connection and creates the table if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sqlite: empty DSN")
	}

	driver := DriverFor(cfg.DSN)
	dsn := cfg.DSN
	if driver == DriverLibSQL && cfg.AuthToken != "" {
		var err error
		if dsn, err = withAuthToken(dsn, cfg.AuthToken); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// A single connection serialises writers and keeps ":memory:" databases alive.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if s.driver == DriverSQLite {
		pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("set busy timeout: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create short_urls table: %w", err)
	}
	return nil
}

// Driver reports which driver the store was opened with.
func (s *Store) Driver() string { return s.driver }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetByCode(ctx context.Context, code string) (shortener.Link, error) {
	const op = "sqlite.GetByCode"

	const query = `SELECT id, long_url, short_code, created_at, click_count
		FROM short_urls WHERE short_code = ?`

	var (
		link      shortener.Link
		createdAt timestamp
	)
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&link.ID, &link.LongURL, &link.Code, &createdAt, &link.ClickCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shortener.Link{}, errx.E(op, errx.NotFound, err)
		}
		return shortener.Link{}, errx.E(op, errx.StorageUnavailable, err)
	}
	link.CreatedAt = createdAt.Time
	return link, nil
}

// InsertIfAbsent relies on the UNIQUE constraint: a conflicting insert does
// nothing and returns no row.
func (s *Store) InsertIfAbsent(ctx context.Context, link shortener.Link) (shortener.Link, error) {
	const op = "sqlite.InsertIfAbsent"

	const query = `INSERT INTO short_urls (long_url, short_code, created_at, click_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(short_code) DO NOTHING
		RETURNING id`

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	link.CreatedAt = link.CreatedAt.UTC()

	err := s.db.QueryRowContext(ctx, query,
		link.LongURL, link.Code, link.CreatedAt.Format(time.RFC3339Nano),
	).Scan(&link.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shortener.Link{}, errx.E(op, errx.CodeTaken,
				fmt.Errorf("code %q already exists", link.Code))
		}
		return shortener.Link{}, errx.E(op, errx.StorageUnavailable, err)
	}

	link.ClickCount = 0
	return link, nil
}

func (s *Store) IncrementClickCount(ctx context.Context, code string) error {
	const op = "sqlite.IncrementClickCount"

	const query = `UPDATE short_urls SET click_count = click_count + 1 WHERE short_code = ?`

	res, err := s.db.ExecContext(ctx, query, code)
	if err != nil {
		return errx.E(op, errx.StorageUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.E(op, errx.StorageUnavailable, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, fmt.Errorf("code %q not found", code))
	}
	return nil
}

func withAuthToken(dsn, token string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse libsql url: %w", err)
	}
	q := u.Query()
	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
