// Package idgen issues identifiers for click events. Time-ordered UUID v7
// values let consumers of the event stream sort and de-duplicate deliveries.
package idgen

import (
	"github.com/google/uuid"
)

// Generator generates unique identifiers.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() uuid.UUID
}

type v7Gen struct {
	maxRetries int
}

type Option func(*v7Gen)

// WithRetries sets how many times uuid.NewV7 is retried after the first
// failure before falling back to a random v4 value. Negative values are ignored.
func WithRetries(n int) Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// NewV7 returns a Generator that produces UUID v7 values and never fails.
func NewV7(opts ...Option) Generator {
	g := &v7Gen{maxRetries: 1}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() uuid.UUID {
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if id, err := uuid.NewV7(); err == nil {
			return id
		}
	}
	return uuid.New()
}

// Static always returns the same identifier. Intended for tests.
type Static uuid.UUID

func (s Static) Generate() uuid.UUID { return uuid.UUID(s) }
