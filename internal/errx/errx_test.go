package errx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestE tests the E function constructor
func TestE(t *testing.T) {
	t.Run("returns nil when error is nil", func(t *testing.T) {
		got := E("op", NotFound, nil)
		if got != nil {
			t.Errorf("E() with nil error = %v, want nil", got)
		}
	})

	t.Run("constructs Error with all fields", func(t *testing.T) {
		root := errors.New("root cause")
		err := E("repo.GetByCode", NotFound, root)

		var e *Error
		if !errors.As(err, &e) {
			t.Fatal("expected error to be of type *errx.Error")
		}

		if got, want := e.Op, "repo.GetByCode"; got != want {
			t.Errorf("Op = %q, want %q", got, want)
		}
		if got, want := e.Kind, NotFound; got != want {
			t.Errorf("Kind = %v, want %v", got, want)
		}
		if !errors.Is(e.Err, root) {
			t.Errorf("Err = %v, want %v", e.Err, root)
		}
	})

	t.Run("preserves all error kinds", func(t *testing.T) {
		kinds := []Kind{
			Unknown, InvalidURL, InvalidCodeFormat, CodeTaken, CodeSpaceExhausted,
			NotFound, MissingParameter, StorageUnavailable, Internal,
		}
		root := errors.New("test error")

		for _, kind := range kinds {
			t.Run(fmt.Sprintf("kind_%d", kind), func(t *testing.T) {
				err := E("operation", kind, root)
				if got := KindOf(err); got != kind {
					t.Errorf("KindOf() = %v, want %v", got, kind)
				}
			})
		}
	})
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "nil inner error returns op",
			err:  &Error{Op: "handler.Redirect", Kind: NotFound, Err: nil},
			want: "handler.Redirect",
		},
		{
			name: "empty op returns inner error message",
			err:  &Error{Op: "", Kind: Unknown, Err: errors.New("root cause")},
			want: "root cause",
		},
		{
			name: "normal case formats op and error",
			err:  &Error{Op: "shortener.service.Resolve", Kind: NotFound, Err: errors.New("root cause")},
			want: "shortener.service.Resolve: root cause",
		},
		{
			name: "both empty returns empty op",
			err:  &Error{Op: "", Kind: Unknown, Err: nil},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Run("unwraps to inner error", func(t *testing.T) {
		root := errors.New("root")
		err := E("repo.GetByCode", NotFound, root)

		if !errors.Is(err, root) {
			t.Error("errors.Is() failed to identify root error through unwrapping")
		}
	})

	t.Run("supports nested wrapping", func(t *testing.T) {
		root := errors.New("database error")
		layer1 := E("repo.Query", StorageUnavailable, root)
		layer2 := E("service.Get", KindOf(layer1), layer1)
		layer3 := E("handler.Handle", KindOf(layer2), layer2)

		if !errors.Is(layer3, root) {
			t.Error("errors.Is() failed with deeply nested errors")
		}
		if KindOf(layer3) != StorageUnavailable {
			t.Errorf("KindOf() = %v, want %v", KindOf(layer3), StorageUnavailable)
		}
	})

	t.Run("returns nil when Err is nil", func(t *testing.T) {
		err := &Error{Op: "test", Kind: Unknown, Err: nil}
		if unwrapped := err.Unwrap(); unwrapped != nil {
			t.Errorf("Unwrap() = %v, want nil", unwrapped)
		}
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil error", err: nil, want: Unknown},
		{name: "plain error", err: errors.New("plain"), want: Unknown},
		{name: "direct errx error", err: E("op", CodeTaken, errors.New("dup")), want: CodeTaken},
		{
			name: "wrapped with fmt.Errorf",
			err:  fmt.Errorf("outer: %w", E("op", NotFound, errors.New("missing"))),
			want: NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpOf(t *testing.T) {
	if got := OpOf(errors.New("plain")); got != "" {
		t.Errorf("OpOf(plain) = %q, want empty", got)
	}
	if got := OpOf(E("shortener.service.Stats", NotFound, errors.New("x"))); got != "shortener.service.Stats" {
		t.Errorf("OpOf() = %q, want %q", got, "shortener.service.Stats")
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Unknown, "Unknown"},
		{InvalidURL, "InvalidURL"},
		{InvalidCodeFormat, "InvalidCodeFormat"},
		{CodeTaken, "CodeTaken"},
		{CodeSpaceExhausted, "CodeSpaceExhausted"},
		{NotFound, "NotFound"},
		{MissingParameter, "MissingParameter"},
		{StorageUnavailable, "StorageUnavailable"},
		{Internal, "Internal"},
		{Kind(200), "Kind(200)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKind_Client(t *testing.T) {
	client := []Kind{InvalidURL, InvalidCodeFormat, CodeTaken, NotFound, MissingParameter}
	server := []Kind{Unknown, CodeSpaceExhausted, StorageUnavailable, Internal}

	for _, k := range client {
		if !k.Client() {
			t.Errorf("%v.Client() = false, want true", k)
		}
	}
	for _, k := range server {
		if k.Client() {
			t.Errorf("%v.Client() = true, want false", k)
		}
	}
}

func TestIs(t *testing.T) {
	err := E("op", CodeTaken, errors.New("dup"))
	if !Is(err, CodeTaken) {
		t.Error("Is(err, CodeTaken) = false, want true")
	}
	if Is(err, NotFound) {
		t.Error("Is(err, NotFound) = true, want false")
	}
	if Is(nil, Unknown) {
		t.Error("Is(nil, Unknown) = true, want false")
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if err := Wrap("op", nil); err != nil {
			t.Errorf("Wrap(nil) = %v, want nil", err)
		}
	})

	t.Run("keeps existing kind", func(t *testing.T) {
		inner := E("repo.Insert", CodeTaken, errors.New("dup"))
		err := Wrap("service.Shorten", inner)
		if KindOf(err) != CodeTaken {
			t.Errorf("KindOf() = %v, want %v", KindOf(err), CodeTaken)
		}
		if OpOf(err) != "service.Shorten" {
			t.Errorf("OpOf() = %q, want %q", OpOf(err), "service.Shorten")
		}
	})

	t.Run("deadline becomes storage unavailable", func(t *testing.T) {
		err := Wrap("op", fmt.Errorf("query: %w", context.DeadlineExceeded))
		if KindOf(err) != StorageUnavailable {
			t.Errorf("KindOf() = %v, want %v", KindOf(err), StorageUnavailable)
		}
	})

	t.Run("untyped error becomes internal", func(t *testing.T) {
		err := Wrap("op", errors.New("boom"))
		if KindOf(err) != Internal {
			t.Errorf("KindOf() = %v, want %v", KindOf(err), Internal)
		}
	})
}
