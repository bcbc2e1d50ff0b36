// Package memory keeps links in process memory. Data does not survive a
// restart; it backs local development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/sundayezeilo/linkregistry/internal/errx"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	links  map[string]shortener.Link
}

func New() *Store {
	return &Store{links: make(map[string]shortener.Link)}
}

func (s *Store) GetByCode(ctx context.Context, code string) (shortener.Link, error) {
	const op = "memory.GetByCode"

	if err := ctx.Err(); err != nil {
		return shortener.Link{}, errx.E(op, errx.StorageUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[code]
	if !ok {
		return shortener.Link{}, errx.E(op, errx.NotFound, errors.New("link not found"))
	}
	return link, nil
}

func (s *Store) InsertIfAbsent(ctx context.Context, link shortener.Link) (shortener.Link, error) {
	const op = "memory.InsertIfAbsent"

	if err := ctx.Err(); err != nil {
		return shortener.Link{}, errx.E(op, errx.StorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.Code]; ok {
		return shortener.Link{}, errx.E(op, errx.CodeTaken, errors.New("code already exists"))
	}

	s.nextID++
	link.ID = s.nextID
	link.ClickCount = 0
	s.links[link.Code] = link
	return link, nil
}

func (s *Store) IncrementClickCount(ctx context.Context, code string) error {
	const op = "memory.IncrementClickCount"

	if err := ctx.Err(); err != nil {
		return errx.E(op, errx.StorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[code]
	if !ok {
		return errx.E(op, errx.NotFound, errors.New("link not found"))
	}
	link.ClickCount++
	s.links[code] = link
	return nil
}

// Len reports how many links are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

func (s *Store) Close() error { return nil }
