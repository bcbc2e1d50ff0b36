package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkregistry/internal/idgen"
	"github.com/sundayezeilo/linkregistry/internal/metrics"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxInFlight = 64
)

// Dispatcher runs sink deliveries detached from the caller. Each delivery
// gets its own timeout and panic boundary; failures are logged and counted,
// never returned.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	ids     idgen.Generator
	timeout time.Duration

	slots chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// DispatcherConfig holds configuration for a Dispatcher.
type DispatcherConfig struct {
	Sinks       []Sink
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	IDGenerator idgen.Generator
	Timeout     time.Duration
	MaxInFlight int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	ids := cfg.IDGenerator
	if ids == nil {
		ids = idgen.NewV7()
	}

	d := &Dispatcher{
		logger:  logger,
		metrics: cfg.Metrics,
		ids:     ids,
		timeout: timeout,
		slots:   make(chan struct{}, maxInFlight),
	}

	switch len(cfg.Sinks) {
	case 0:
		d.sink = Discard{}
	default:
		d.sink = &Multi{Sinks: cfg.Sinks, OnResult: d.record}
	}
	return d
}

// Enabled reports whether any real sink is configured.
func (d *Dispatcher) Enabled() bool {
	_, discard := d.sink.(Discard)
	return !discard
}

// Dispatch hands evt to the sinks without waiting. When the in-flight limit
// is reached or the dispatcher is closed the event is dropped.
func (d *Dispatcher) Dispatch(evt ClickEvent) {
	if !d.Enabled() {
		return
	}
	if evt.ID == uuid.Nil {
		evt.ID = d.ids.Generate()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(evt, "dispatcher closed")
		return
	}

	select {
	case d.slots <- struct{}{}:
	default:
		d.drop(evt, "too many notifications in flight")
		return
	}

	d.wg.Add(1)
	go d.deliver(evt)
}

func (d *Dispatcher) deliver(evt ClickEvent) {
	defer d.wg.Done()
	defer func() { <-d.slots }()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("click notification panicked",
				"event_id", evt.ID.String(),
				"code", evt.Code,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Notify(ctx, evt); err != nil {
		d.logger.Warn("click notification failed",
			"event_id", evt.ID.String(),
			"code", evt.Code,
			"error", err.Error(),
		)
	}
}

func (d *Dispatcher) record(sink string, err error) {
	d.metrics.Notified(sink, err)
}

func (d *Dispatcher) drop(evt ClickEvent, reason string) {
	d.metrics.NotificationDropped()
	d.logger.Warn("click notification dropped",
		"event_id", evt.ID.String(),
		"code", evt.Code,
		"reason", reason,
	)
}

// Close stops accepting events and waits for in-flight deliveries until ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for click notifications: %w", ctx.Err())
	}
}
