package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sundayezeilo/linkregistry/codegen"
	"github.com/sundayezeilo/linkregistry/internal/errx"
	"github.com/sundayezeilo/linkregistry/internal/metrics"
	"github.com/sundayezeilo/linkregistry/internal/notify"
)

const (
	DefaultCodeLength     = codegen.DefaultLength
	DefaultMaxAttempts    = 20
	DefaultStorageTimeout = 3 * time.Second
)

// DefaultReservedCodes are path segments the router serves itself. A short
// code equal to one of them would never be reachable.
var DefaultReservedCodes = []string{"api", "metrics"}

// ShortenRequest represents the parameters for creating a new link.
type ShortenRequest struct {
	LongURL string
	Code    string // Optional: if empty, a code will be generated
}

// Service defines the link registry operations.
type Service interface {
	Shorten(ctx context.Context, req ShortenRequest) (Link, error)
	Resolve(ctx context.Context, code, clientIP string) (ResolvedLink, error)
	Stats(ctx context.Context, code string) (LinkStats, error)
}

// Notifier receives click events. Dispatch must not block on delivery.
type Notifier interface {
	Dispatch(evt notify.ClickEvent)
}

// service implements the Service interface.
type service struct {
	repo           Repository
	generator      codegen.Generator
	codeLength     int
	maxAttempts    int
	storageTimeout time.Duration
	readRetries    int
	notifier       Notifier
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
	reserved       map[string]struct{}
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Generator      codegen.Generator
	CodeLength     int
	MaxAttempts    int           // generated codes tried before giving up (default: 20)
	StorageTimeout time.Duration // bound on each storage call (default: 3s)
	ReadRetries    int           // extra attempts for lookups that hit StorageUnavailable
	Notifier       Notifier
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Now            func() time.Time
	ReservedCodes  []string // nil means DefaultReservedCodes
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	gen := config.Generator
	if gen == nil {
		gen = codegen.NewBase62()
	}

	codeLength := config.CodeLength
	if codeLength < MinCodeLength || codeLength > MaxCodeLength {
		codeLength = DefaultCodeLength
	}

	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	timeout := config.StorageTimeout
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	reservedCodes := config.ReservedCodes
	if reservedCodes == nil {
		reservedCodes = DefaultReservedCodes
	}
	reserved := make(map[string]struct{}, len(reservedCodes))
	for _, c := range reservedCodes {
		reserved[c] = struct{}{}
	}

	return &service{
		repo:           repo,
		generator:      gen,
		codeLength:     codeLength,
		maxAttempts:    attempts,
		storageTimeout: timeout,
		readRetries:    max(config.ReadRetries, 0),
		notifier:       config.Notifier,
		metrics:        config.Metrics,
		logger:         logger,
		now:            now,
		reserved:       reserved,
	}
}

// Shorten stores a link under the requested code, or under a generated one
// when none is given.
func (s *service) Shorten(ctx context.Context, req ShortenRequest) (Link, error) {
	const op = "shortener.service.Shorten"

	if err := validateURL(req.LongURL); err != nil {
		return Link{}, errx.E(op, errx.InvalidURL, err)
	}

	if req.Code != "" {
		return s.shortenCustom(ctx, req)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.generator.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Internal, err)
		}
		if s.isReserved(code) {
			s.metrics.CodeCollision()
			continue
		}

		created, err := s.insert(ctx, req.LongURL, code)
		if err == nil {
			s.metrics.LinkCreated(false)
			return created, nil
		}

		// Retry on collision, fail on anything else
		if !errx.Is(err, errx.CodeTaken) {
			return Link{}, errx.Wrap(op, err)
		}
		s.metrics.CodeCollision()
		s.logger.DebugContext(ctx, "generated code collided",
			"code", code,
			"attempt", attempt,
		)
	}

	return Link{}, errx.E(op, errx.CodeSpaceExhausted,
		fmt.Errorf("no free code of length %d after %d attempts", s.codeLength, s.maxAttempts))
}

func (s *service) shortenCustom(ctx context.Context, req ShortenRequest) (Link, error) {
	const op = "shortener.service.Shorten"

	if !ValidCode(req.Code) {
		return Link{}, errx.E(op, errx.InvalidCodeFormat,
			fmt.Errorf("code %q must be %d-%d characters of [A-Za-z0-9_-]", req.Code, MinCodeLength, MaxCodeLength))
	}
	if s.isReserved(req.Code) {
		return Link{}, errx.E(op, errx.CodeTaken, fmt.Errorf("code %q is reserved", req.Code))
	}

	// The lookup only saves a write for codes that are obviously taken. The
	// insert below is what decides a race.
	_, err := s.get(ctx, req.Code)
	switch {
	case err == nil:
		return Link{}, errx.E(op, errx.CodeTaken, fmt.Errorf("code %q already exists", req.Code))
	case !errx.Is(err, errx.NotFound):
		return Link{}, errx.Wrap(op, err)
	}

	created, err := s.insert(ctx, req.LongURL, req.Code)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	s.metrics.LinkCreated(true)
	return created, nil
}

// Resolve looks up code, counts the click and emits a click event. Counting
// and notification are best-effort: once the record is found the caller
// always gets the destination.
func (s *service) Resolve(ctx context.Context, code, clientIP string) (ResolvedLink, error) {
	const op = "shortener.service.Resolve"

	if !ValidCode(code) {
		s.metrics.Resolved("not_found")
		return ResolvedLink{}, errx.E(op, errx.NotFound, fmt.Errorf("malformed code %q", code))
	}

	link, err := s.get(ctx, code)
	if err != nil {
		if errx.Is(err, errx.NotFound) {
			s.metrics.Resolved("not_found")
		} else {
			s.metrics.Resolved("error")
		}
		return ResolvedLink{}, errx.Wrap(op, err)
	}

	if err := s.increment(ctx, code); err != nil {
		s.metrics.ClickCountFailed()
		s.logger.WarnContext(ctx, "click count not recorded",
			"code", code,
			"error", err.Error(),
			"error_kind", errx.KindOf(err).String(),
		)
	}

	if s.notifier != nil {
		s.notifier.Dispatch(notify.ClickEvent{
			Code:      link.Code,
			LongURL:   link.LongURL,
			ClientIP:  clientIP,
			Timestamp: s.now(),
		})
	}

	s.metrics.Resolved("found")
	return ResolvedLink{Code: link.Code, LongURL: link.LongURL}, nil
}

func (s *service) Stats(ctx context.Context, code string) (LinkStats, error) {
	const op = "shortener.service.Stats"

	if code == "" {
		return LinkStats{}, errx.E(op, errx.MissingParameter, errors.New("code cannot be empty"))
	}
	if !ValidCode(code) {
		return LinkStats{}, errx.E(op, errx.NotFound, fmt.Errorf("malformed code %q", code))
	}

	link, err := s.get(ctx, code)
	if err != nil {
		return LinkStats{}, errx.Wrap(op, err)
	}
	return LinkStats{
		Code:       link.Code,
		ClickCount: link.ClickCount,
		CreatedAt:  link.CreatedAt,
	}, nil
}

// get reads a record, retrying lookups that failed for transient reasons.
func (s *service) get(ctx context.Context, code string) (Link, error) {
	var (
		link Link
		err  error
	)
	for attempt := 0; attempt <= s.readRetries; attempt++ {
		if attempt > 0 && ctx.Err() != nil {
			break
		}
		link, err = s.getOnce(ctx, code)
		if err == nil || !errx.Is(err, errx.StorageUnavailable) {
			return link, err
		}
		s.logger.DebugContext(ctx, "lookup failed, retrying",
			"code", code,
			"attempt", attempt+1,
			"error", err.Error(),
		)
	}
	return Link{}, err
}

func (s *service) getOnce(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.get"

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

func (s *service) insert(ctx context.Context, longURL, code string) (Link, error) {
	const op = "shortener.service.insert"

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	created, err := s.repo.InsertIfAbsent(ctx, Link{
		LongURL:   longURL,
		Code:      code,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return created, nil
}

func (s *service) increment(ctx context.Context, code string) error {
	const op = "shortener.service.increment"

	// The redirect is already decided; a client hanging up must not drop the click.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storageTimeout)
	defer cancel()

	return errx.Wrap(op, s.repo.IncrementClickCount(ctx, code))
}

func (s *service) isReserved(code string) bool {
	_, ok := s.reserved[code]
	return ok
}
