package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researcher/internal/agent"
	"github.com/mohammad-safakhou/researcher/internal/budget"
	"github.com/mohammad-safakhou/researcher/internal/engine"
	"github.com/mohammad-safakhou/researcher/internal/knowledge"
	"github.com/mohammad-safakhou/researcher/internal/store"
)

// InternalErrorMessage is the only detail exposed for unclassified failures.
const InternalErrorMessage = "Internal server error occurred"

// Error kinds reported alongside the detail.
const (
	KindInvalidIdentifier  = "invalid_identifier"
	KindUnsupportedFormat  = "unsupported_format"
	KindInvalidURL         = "invalid_url"
	KindExtractionFailed   = "extraction_failed"
	KindTokenLimitExceeded = "token_limit_exceeded"
	KindEngineFailure      = "engine_failure"
	KindConflict           = "conflict"
	KindValidation         = "validation_error"
	KindUnauthorized       = "unauthorized"
	KindInternal           = "internal"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail any          `json:"detail"`
	Kind   string       `json:"kind"`
	Limit  *LimitDetail `json:"limit,omitempty"`
}

type LimitDetail struct {
	Current    int `json:"current"`
	Additional int `json:"additional"`
	Projected  int `json:"projected"`
	Max        int `json:"max"`
}

// ValidationItem mirrors a single field error.
type ValidationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// validationError is a 422 raised by handlers for malformed input.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// classify maps an error to its status and response body.
func classify(err error) (int, ErrorResponse) {
	var (
		badID       *store.ErrInvalidIdentifier
		unsupported *knowledge.ErrUnsupportedFormat
		badURL      *knowledge.ErrInvalidURL
		extraction  *knowledge.ErrExtractionFailed
		limit       *budget.ErrTokenLimitExceeded
		failure     *engine.ErrEngineFailure
		validation  *validationError
		he          *echo.HTTPError
	)
	switch {
	case errors.As(err, &badID):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Kind: KindInvalidIdentifier,
			Detail: []ValidationItem{{
				Loc:  []string{"path", "agent_id"},
				Msg:  store.InvalidAgentIDMessage,
				Type: "value_error",
			}},
		}
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, ErrorResponse{Kind: KindUnsupportedFormat, Detail: unsupported.Error()}
	case errors.As(err, &badURL):
		return http.StatusBadRequest, ErrorResponse{Kind: KindInvalidURL, Detail: badURL.Error()}
	case errors.As(err, &limit):
		return http.StatusBadRequest, ErrorResponse{
			Kind:   KindTokenLimitExceeded,
			Detail: limit.Error(),
			Limit: &LimitDetail{
				Current:    limit.Current,
				Additional: limit.Additional,
				Projected:  limit.Projected,
				Max:        limit.Max,
			},
		}
	case errors.As(err, &extraction):
		return http.StatusBadRequest, ErrorResponse{Kind: KindExtractionFailed, Detail: extraction.Error()}
	case errors.As(err, &failure):
		return http.StatusInternalServerError, ErrorResponse{Kind: KindEngineFailure, Detail: InternalErrorMessage}
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, ErrorResponse{Kind: KindConflict, Detail: "Agent was modified concurrently, retry the request"}
	case errors.Is(err, agent.ErrLockTimeout):
		return http.StatusConflict, ErrorResponse{Kind: KindConflict, Detail: "Agent is busy, retry the request"}
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, ErrorResponse{Kind: KindValidation, Detail: validation.msg}
	case errors.As(err, &he):
		resp := ErrorResponse{Kind: httpKind(he.Code), Detail: fmt.Sprint(he.Message)}
		if he.Code >= http.StatusInternalServerError {
			resp.Detail = InternalErrorMessage
		}
		return he.Code, resp
	default:
		return http.StatusInternalServerError, ErrorResponse{Kind: KindInternal, Detail: InternalErrorMessage}
	}
}

func httpKind(code int) string {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusUnprocessableEntity, http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return KindValidation
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return "http_error"
	default:
		if code >= http.StatusInternalServerError {
			return KindInternal
		}
		return "http_error"
	}
}

// errorHandler is the unified echo error handler: it logs once and renders
// the classified payload.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, body := classify(err)
		req := c.Request()
		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.String("kind", body.Kind),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			log.Error("request failed", fields...)
		} else {
			log.Info("request rejected", fields...)
		}
		if c.Response().Committed {
			return
		}
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}
