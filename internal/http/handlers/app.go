package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"companion/internal/domain"
	"companion/internal/infra"
	"companion/internal/middleware"
	"companion/internal/pipeline"
)

// Pinger reports whether the image store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Pipeline *pipeline.Service
	Store    Pinger
	Logger   infra.Logger
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
}

func NewApp(svc *pipeline.Service, store Pinger, logger *infra.Logger) *App {
	return &App{Pipeline: svc, Store: store, Logger: infra.LoggerOrNop(logger), MaxBodyBytes: 1 << 20}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// fail maps pipeline errors onto the JSON error envelope. Provider details
// are logged, never returned.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "image not found")
	case errors.Is(err, domain.ErrContentRejected):
		a.error(w, http.StatusUnprocessableEntity, "content_rejected", "request cannot be fulfilled")
	case errors.Is(err, domain.ErrValidationFailed),
		errors.Is(err, domain.ErrProviderFailure),
		errors.Is(err, domain.ErrRenderTimeout):
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("generation failed")
		a.error(w, http.StatusBadGateway, "generation_failed", "generation failed, please retry")
	case errors.Is(err, domain.ErrInvalidIntent):
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("invalid intent")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
