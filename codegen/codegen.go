// Package codegen produces random short-code candidates.
// Generators should be safe for concurrent use. They make no uniqueness
// promise; callers resolve collisions against storage.
package codegen

import (
	"crypto/rand"
	"errors"
	mrand "math/rand/v2"
	"sync"
)

const (
	// Alphabet is the 62-character set candidates are drawn from.
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// DefaultLength is the length of a generated code when none is configured.
	DefaultLength = 6

	// bytes at or above this value are rejected so that every symbol is equally likely
	unbiasedLimit = 256 - 256%len(Alphabet)
)

var errLength = errors.New("length must be positive")

// Generator generates short-code candidates.
type Generator interface {
	Generate(length int) (string, error)
}

// base62Generator draws symbols from crypto/rand.
type base62Generator struct{}

// NewBase62 returns a Generator backed by crypto/rand.
func NewBase62() Generator {
	return &base62Generator{}
}

func (g *base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= unbiasedLimit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

// seededGenerator is a reproducible generator for tests and tooling.
type seededGenerator struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded returns a deterministic Generator. Two generators built with the
// same seed yield the same sequence of codes.
func NewSeeded(seed uint64) Generator {
	return &seededGenerator{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *seededGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errLength
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, length)
	for i := range b {
		b[i] = Alphabet[g.rng.IntN(len(Alphabet))]
	}
	return string(b), nil
}

// Func adapts a plain function to the Generator interface.
type Func func(length int) (string, error)

func (f Func) Generate(length int) (string, error) { return f(length) }
