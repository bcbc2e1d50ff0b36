package shortener

import "context"

// Repository is the storage backend contract. Uniqueness of codes is owned
// by the implementation: InsertIfAbsent must be atomic with respect to
// concurrent callers using the same code.
//
// Implementations report failures with errx kinds:
//   - GetByCode: errx.NotFound when no record exists.
//   - InsertIfAbsent: errx.CodeTaken when the code is already bound. On
//     success the stored record, including its assigned ID, is returned.
//   - IncrementClickCount: errx.NotFound when no record exists.
//
// Transport failures and expired deadlines are errx.StorageUnavailable.
type Repository interface {
	GetByCode(ctx context.Context, code string) (Link, error)
	InsertIfAbsent(ctx context.Context, link Link) (Link, error)
	IncrementClickCount(ctx context.Context, code string) error
}
