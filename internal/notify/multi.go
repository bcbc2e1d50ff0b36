package notify

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Multi fans an event out to several sinks concurrently.
type Multi struct {
	Sinks []Sink

	// OnResult, when set, is called once per sink with that sink's outcome.
	OnResult func(sink string, err error)
}

func (m *Multi) Name() string { return "multi" }

// Notify delivers to every sink and returns the joined errors. A failing
// or panicking sink does not cancel the others.
func (m *Multi) Notify(ctx context.Context, evt ClickEvent) error {
	errs := make([]error, len(m.Sinks))

	var g errgroup.Group
	for i, s := range m.Sinks {
		g.Go(func() error {
			err := notifyOne(ctx, s, evt)
			if m.OnResult != nil {
				m.OnResult(s.Name(), err)
			}
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// notifyOne runs a single sink and turns a panic into an error. errgroup
// goroutines are not covered by the caller's recover.
func notifyOne(ctx context.Context, s Sink, evt ClickEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return s.Notify(ctx, evt)
}
