package httpx

import (
	"net/http"

	"github.com/sundayezeilo/linkregistry/internal/errx"
)

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
// Handlers can use this as a helper when mapping their own errors.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.InvalidURL, errx.InvalidCodeFormat, errx.MissingParameter:
		return http.StatusBadRequest
	case errx.CodeTaken:
		return http.StatusConflict
	case errx.NotFound:
		return http.StatusNotFound
	case errx.CodeSpaceExhausted, errx.StorageUnavailable:
		return http.StatusServiceUnavailable
	case errx.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
