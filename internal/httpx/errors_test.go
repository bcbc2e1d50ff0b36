package httpx

import (
	"net/http"
	"testing"

	"github.com/sundayezeilo/linkregistry/internal/errx"
)

func TestErrorKindToStatus(t *testing.T) {
	tests := []struct {
		name       string
		kind       errx.Kind
		wantStatus int
	}{
		{
			name:       "invalid url",
			kind:       errx.InvalidURL,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid code format",
			kind:       errx.InvalidCodeFormat,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing parameter",
			kind:       errx.MissingParameter,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "code taken",
			kind:       errx.CodeTaken,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "not found",
			kind:       errx.NotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "code space exhausted",
			kind:       errx.CodeSpaceExhausted,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "storage unavailable",
			kind:       errx.StorageUnavailable,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "internal",
			kind:       errx.Internal,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown",
			kind:       errx.Unknown,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "invalid kind value",
			kind:       errx.Kind(99),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorKindToStatus(tt.kind)
			if got != tt.wantStatus {
				t.Errorf("ErrorKindToStatus(%v) = %d, want %d", tt.kind, got, tt.wantStatus)
			}
		})
	}
}
