package shortener

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sundayezeilo/linkregistry/internal/errx"
	"github.com/sundayezeilo/linkregistry/internal/httpx"
)

// User-facing error strings.
const (
	msgInvalidURL    = "URL is invalid"
	msgInvalidCode   = "Custom code invalid (3-10 chars, alphanumeric, _-)"
	msgCodeTaken     = "Custom code already taken"
	msgURLNotFound   = "URL not found"
	msgCodeNotFound  = "Short code not found"
	msgCodeRequired  = "Code parameter required"
	msgRouteNotFound = "Not Found"
	msgExhausted     = "Could not allocate a short code, please try again later"
	msgUnavailable   = "Service temporarily unavailable, please try again later"
	msgInternal      = "Internal server error"
)

// ShortenRequestBody is the JSON (or form) body of POST /api/shorten.
type ShortenRequestBody struct {
	LongURL   string `json:"long_url"`
	ShortCode string `json:"short_code,omitempty"`
}

// ShortenResponse is returned for a stored link.
type ShortenResponse struct {
	Success   bool   `json:"success"`
	ShortCode string `json:"short_code"`
	ShortURL  string `json:"short_url"`
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	Success bool      `json:"success"`
	Stats   StatsBody `json:"stats"`
}

type StatsBody struct {
	ShortCode  string `json:"short_code"`
	ClickCount int64  `json:"click_count"`
	CreatedAt  string `json:"created_at"`
}

// Handler provides HTTP handlers for the link registry.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://ebd.biz.id")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Shorten handles POST /api/shorten.
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	body, err := decodeShortenBody(r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	link, err := h.service.Shorten(ctx, ShortenRequest{
		LongURL: body.LongURL,
		Code:    body.ShortCode,
	})
	if err != nil {
		h.writeError(ctx, logger, w, err, shortenMessage)
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", link.ID,
		"code", link.Code,
		"custom_code", body.ShortCode != "",
	)

	httpx.WriteJSON(w, http.StatusOK, ShortenResponse{
		Success:   true,
		ShortCode: link.Code,
		ShortURL:  h.shortURL(link.Code),
	})
}

// Redirect handles GET /{code}: a 302 to the stored destination.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.PathValue("code")
	resolved, err := h.service.Resolve(ctx, code, httpx.ClientIP(r))
	if err != nil {
		h.writeError(ctx, logger.With("code", code), w, err, resolveMessage)
		return
	}

	logger.InfoContext(ctx, "code resolved",
		"code", resolved.Code,
		"long_url", resolved.LongURL,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, resolved.LongURL, http.StatusFound)
}

// Stats handles GET /api/stats?code=...
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	code := r.URL.Query().Get("code")
	stats, err := h.service.Stats(ctx, code)
	if err != nil {
		h.writeError(ctx, logger.With("code", code), w, err, statsMessage)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, StatsResponse{
		Success: true,
		Stats: StatsBody{
			ShortCode:  stats.Code,
			ClickCount: stats.ClickCount,
			CreatedAt:  stats.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}

// NotFound answers every request no route matched.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, http.StatusNotFound, msgRouteNotFound)
}

func (h *Handler) writeError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error, message func(errx.Kind) string) {
	kind := errx.KindOf(err)
	status := httpx.ErrorKindToStatus(kind)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind.String(),
		"operation", errx.OpOf(err),
	}
	if kind.Client() {
		logger.WarnContext(ctx, "request rejected", logAttrs...)
	} else {
		logger.ErrorContext(ctx, "request failed", logAttrs...)
	}

	httpx.WriteError(w, status, message(kind))
}

func shortenMessage(kind errx.Kind) string {
	switch kind {
	case errx.InvalidURL:
		return msgInvalidURL
	case errx.InvalidCodeFormat:
		return msgInvalidCode
	case errx.CodeTaken:
		return msgCodeTaken
	default:
		return serverMessage(kind)
	}
}

func resolveMessage(kind errx.Kind) string {
	if kind == errx.NotFound {
		return msgURLNotFound
	}
	return serverMessage(kind)
}

func statsMessage(kind errx.Kind) string {
	switch kind {
	case errx.NotFound:
		return msgCodeNotFound
	case errx.MissingParameter:
		return msgCodeRequired
	default:
		return serverMessage(kind)
	}
}

func serverMessage(kind errx.Kind) string {
	switch kind {
	case errx.CodeSpaceExhausted:
		return msgExhausted
	case errx.StorageUnavailable:
		return msgUnavailable
	default:
		return msgInternal
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func (h *Handler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

// decodeShortenBody accepts the JSON body of API clients and the form body
// posted by plain HTML pages.
func decodeShortenBody(r *http.Request) (ShortenRequestBody, error) {
	if httpx.IsForm(r) {
		values, err := httpx.DecodeForm(r)
		if err != nil {
			return ShortenRequestBody{}, err
		}
		return ShortenRequestBody{
			LongURL:   values.Get("long_url"),
			ShortCode: values.Get("short_code"),
		}, nil
	}
	return httpx.DecodeJSON[ShortenRequestBody](r)
}
