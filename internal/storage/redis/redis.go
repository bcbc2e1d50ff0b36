// Package redis stores each link as a hash under "<prefix>:link:<code>".
// Ids come from an INCR counter at "<prefix>:seq". Insert and increment run
// as Lua scripts so the existence check and the write are one atomic step.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/linkregistry/internal/errx"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
)

const DefaultKeyPrefix = "short_urls"

const (
	fieldID         = "id"
	fieldLongURL    = "long_url"
	fieldShortCode  = "short_code"
	fieldCreatedAt  = "created_at"
	fieldClickCount = "click_count"
)

// KEYS[1] link hash, KEYS[2] id counter.
// ARGV[1] long_url, ARGV[2] short_code, ARGV[3] created_at.
// Returns the new id, or 0 when the code already exists.
var insertScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
local id = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1],
    'id', id,
    'long_url', ARGV[1],
    'short_code', ARGV[2],
    'created_at', ARGV[3],
    'click_count', 0)
return id
`)

// KEYS[1] link hash. Returns the new count, or -1 when the code is missing.
var incrementScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return -1
end
return redis.call('HINCRBY', KEYS[1], 'click_count', 1)
`)

type Store struct {
	client goredis.UniversalClient
	prefix string
}

// New wraps an existing client. An empty prefix uses DefaultKeyPrefix.
func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Options configures Connect.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return New(client, opts.Prefix), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) linkKey(code string) string {
	return s.prefix + ":link:" + code
}

func (s *Store) seqKey() string {
	return s.prefix + ":seq"
}

func (s *Store) GetByCode(ctx context.Context, code string) (shortener.Link, error) {
	const op = "redis.GetByCode"

	fields, err := s.client.HGetAll(ctx, s.linkKey(code)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return shortener.Link{}, errx.E(op, errx.NotFound, err)
		}
		return shortener.Link{}, errx.E(op, errx.StorageUnavailable, err)
	}
	if len(fields) == 0 {
		return shortener.Link{}, errx.E(op, errx.NotFound, fmt.Errorf("code %q not found", code))
	}

	link, err := parseLink(fields)
	if err != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (s *Store) InsertIfAbsent(ctx context.Context, link shortener.Link) (shortener.Link, error) {
	const op = "redis.InsertIfAbsent"

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	link.CreatedAt = link.CreatedAt.UTC()

	id, err := insertScript.Run(ctx, s.client,
		[]string{s.linkKey(link.Code), s.seqKey()},
		link.LongURL, link.Code, link.CreatedAt.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return shortener.Link{}, errx.E(op, errx.StorageUnavailable, err)
	}
	if id == 0 {
		return shortener.Link{}, errx.E(op, errx.CodeTaken,
			fmt.Errorf("code %q already exists", link.Code))
	}

	link.ID = id
	link.ClickCount = 0
	return link, nil
}

func (s *Store) IncrementClickCount(ctx context.Context, code string) error {
	const op = "redis.IncrementClickCount"

	n, err := incrementScript.Run(ctx, s.client, []string{s.linkKey(code)}).Int64()
	if err != nil {
		return errx.E(op, errx.StorageUnavailable, err)
	}
	if n < 0 {
		return errx.E(op, errx.NotFound, fmt.Errorf("code %q not found", code))
	}
	return nil
}

func parseLink(fields map[string]string) (shortener.Link, error) {
	id, err := strconv.ParseInt(fields[fieldID], 10, 64)
	if err != nil {
		return shortener.Link{}, fmt.Errorf("parse %s: %w", fieldID, err)
	}
	clicks, err := strconv.ParseInt(fields[fieldClickCount], 10, 64)
	if err != nil {
		return shortener.Link{}, fmt.Errorf("parse %s: %w", fieldClickCount, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return shortener.Link{}, fmt.Errorf("parse %s: %w", fieldCreatedAt, err)
	}

	return shortener.Link{
		ID:         id,
		LongURL:    fields[fieldLongURL],
		Code:       fields[fieldShortCode],
		CreatedAt:  createdAt.UTC(),
		ClickCount: clicks,
	}, nil
}
