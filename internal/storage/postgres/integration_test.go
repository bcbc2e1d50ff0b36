package postgres

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sundayezeilo/linkregistry/internal/errx"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
)

// setupPostgres starts a container, applies the migrations and returns a
// pool connected to it.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Migrate(connStr, logger); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	// A second run is a no-op.
	if err := Migrate(connStr, logger); err != nil {
		t.Fatalf("second migration run: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestStore_Integration(t *testing.T) {
	pool := setupPostgres(t)
	store := New(pool)
	ctx := context.Background()

	inserted, err := store.InsertIfAbsent(ctx, shortener.Link{LongURL: "https://example.com/a", Code: "abc123"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID == 0 || inserted.CreatedAt.IsZero() || inserted.ClickCount != 0 {
		t.Errorf("inserted = %+v", inserted)
	}

	if _, err := store.InsertIfAbsent(ctx, shortener.Link{LongURL: "https://example.com/b", Code: "abc123"}); !errx.Is(err, errx.CodeTaken) {
		t.Errorf("duplicate insert error = %v, want CodeTaken", err)
	}

	for range 3 {
		if err := store.IncrementClickCount(ctx, "abc123"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := store.IncrementClickCount(ctx, "nothere"); !errx.Is(err, errx.NotFound) {
		t.Errorf("increment missing = %v, want NotFound", err)
	}

	got, err := store.GetByCode(ctx, "abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LongURL != "https://example.com/a" || got.ClickCount != 3 || got.ID != inserted.ID {
		t.Errorf("got = %+v", got)
	}

	if _, err := store.GetByCode(ctx, "nothere"); !errx.Is(err, errx.NotFound) {
		t.Errorf("get missing = %v, want NotFound", err)
	}
}

func TestStore_Integration_ConcurrentInsertSameCode(t *testing.T) {
	pool := setupPostgres(t)
	store := New(pool)
	ctx := context.Background()

	const writers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		taken   int
	)
	for range writers {
		wg.Go(func() {
			_, err := store.InsertIfAbsent(ctx, shortener.Link{LongURL: "https://example.com", Code: "race"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errx.Is(err, errx.CodeTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	wg.Wait()

	if success != 1 || taken != writers-1 {
		t.Errorf("success=%d taken=%d, want 1 and %d", success, taken, writers-1)
	}
}
