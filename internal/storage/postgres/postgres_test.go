package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/linkregistry/internal/errx"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
)

/***************
 * Mocks / Stubs
 ***************/

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return stubRow{err: pgx.ErrNoRows}
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

// stubRow scans a fixed set of values, or fails with err.
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("stubRow: column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return errors.New("stubRow: unsupported destination")
		}
	}
	return nil
}

/***************
 * GetByCode
 ***************/

func TestStore_GetByCode(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("WIB", 7*3600))

	tests := []struct {
		name     string
		row      stubRow
		wantKind errx.Kind
		want     shortener.Link
	}{
		{
			name: "found",
			row:  stubRow{values: []any{int64(7), "https://example.com", "abc123", created, int64(4)}},
			want: shortener.Link{
				ID: 7, LongURL: "https://example.com", Code: "abc123",
				CreatedAt: created.UTC(), ClickCount: 4,
			},
		},
		{
			name:     "no rows",
			row:      stubRow{err: pgx.ErrNoRows},
			wantKind: errx.NotFound,
		},
		{
			name:     "connection failure",
			row:      stubRow{err: errors.New("connection refused")},
			wantKind: errx.StorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotArgs []any
			store := New(&mockDB{
				queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
					gotArgs = args
					return tt.row
				},
			})

			link, err := store.GetByCode(context.Background(), "abc123")
			if tt.wantKind != errx.Unknown {
				if !errx.Is(err, tt.wantKind) {
					t.Fatalf("error kind = %v, want %v (err=%v)", errx.KindOf(err), tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(gotArgs) != 1 || gotArgs[0] != "abc123" {
				t.Errorf("query args = %v", gotArgs)
			}
			if link != tt.want {
				t.Errorf("link = %+v, want %+v", link, tt.want)
			}
			if link.CreatedAt.Location() != time.UTC {
				t.Errorf("created_at location = %v, want UTC", link.CreatedAt.Location())
			}
		})
	}
}

/***************
 * InsertIfAbsent
 ***************/

func TestStore_InsertIfAbsent(t *testing.T) {
	created := time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)

	t.Run("inserted", func(t *testing.T) {
		var gotArgs []any
		store := New(&mockDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				gotArgs = args
				return stubRow{values: []any{int64(11), created, int64(0)}}
			},
		})

		link, err := store.InsertIfAbsent(context.Background(), shortener.Link{
			LongURL: "https://example.com", Code: "promo", CreatedAt: created,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if link.ID != 11 || link.Code != "promo" || link.ClickCount != 0 || !link.CreatedAt.Equal(created) {
			t.Errorf("link = %+v", link)
		}
		if len(gotArgs) != 3 || gotArgs[0] != "https://example.com" || gotArgs[1] != "promo" {
			t.Errorf("args = %v", gotArgs)
		}
	})

	t.Run("zero created_at defers to the column default", func(t *testing.T) {
		var gotCreated any = "unset"
		store := New(&mockDB{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				gotCreated = args[2]
				return stubRow{values: []any{int64(1), created, int64(0)}}
			},
		})

		if _, err := store.InsertIfAbsent(context.Background(), shortener.Link{LongURL: "https://a.b", Code: "abc"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotCreated != nil {
			t.Errorf("created_at arg = %v, want nil", gotCreated)
		}
	})

	errorCases := []struct {
		name     string
		err      error
		wantKind errx.Kind
	}{
		{"conflict returns no row", pgx.ErrNoRows, errx.CodeTaken},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "short_urls_short_code_unique"}, errx.CodeTaken},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "something_else"}, errx.StorageUnavailable},
		{"check violation", &pgconn.PgError{Code: "23514"}, errx.StorageUnavailable},
		{"timeout", context.DeadlineExceeded, errx.StorageUnavailable},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			store := New(&mockDB{
				queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
					return stubRow{err: tc.err}
				},
			})

			_, err := store.InsertIfAbsent(context.Background(), shortener.Link{LongURL: "https://a.b", Code: "abc"})
			if !errx.Is(err, tc.wantKind) {
				t.Errorf("error kind = %v, want %v (err=%v)", errx.KindOf(err), tc.wantKind, err)
			}
		})
	}
}

/***************
 * IncrementClickCount
 ***************/

func TestStore_IncrementClickCount(t *testing.T) {
	tests := []struct {
		name     string
		tag      string
		err      error
		wantKind errx.Kind
	}{
		{name: "one row", tag: "UPDATE 1"},
		{name: "missing code", tag: "UPDATE 0", wantKind: errx.NotFound},
		{name: "exec failure", err: errors.New("broken pipe"), wantKind: errx.StorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New(&mockDB{
				execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
					return pgconn.NewCommandTag(tt.tag), tt.err
				},
			})

			err := store.IncrementClickCount(context.Background(), "abc123")
			if tt.wantKind == errx.Unknown {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errx.Is(err, tt.wantKind) {
				t.Errorf("error kind = %v, want %v (err=%v)", errx.KindOf(err), tt.wantKind, err)
			}
		})
	}
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "pgx5://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://u@db/links", "pgx5://u@db/links"},
		{"pgx5://already", "pgx5://already"},
	}
	for _, tt := range tests {
		if got := migrateURL(tt.in); got != tt.want {
			t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
