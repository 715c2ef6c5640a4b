package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicorex/hms/internal/platform/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Entity    string `json:"entity,omitempty"`
	ID        string `json:"id,omitempty"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:        http.StatusBadRequest,
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindForeignKey:        http.StatusUnprocessableEntity,
	apperr.KindIllegalTransition: http.StatusConflict,
	apperr.KindInvalidAmount:     http.StatusUnprocessableEntity,
	apperr.KindDuplicateKey:      http.StatusConflict,
	apperr.KindExhaustedIDSpace:  http.StatusInsufficientStorage,
	apperr.KindSlotUnavailable:   http.StatusConflict,
	apperr.KindUnauthorized:      http.StatusUnauthorized,
	apperr.KindInternal:          http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an application error kind.
func StatusFor(k apperr.Kind) int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders *apperr.Error and *echo.HTTPError values as ErrorBody.
// Internal error details are logged, never returned to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		rid := RequestIDFromContext(c.Request().Context())
		status := http.StatusInternalServerError
		body := ErrorBody{Error: http.StatusText(status), RequestID: rid}

		var ae *apperr.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			status = StatusFor(ae.Kind)
			body.Kind = string(ae.Kind)
			body.Entity = ae.Entity
			body.ID = ae.EntityID
			body.Field = ae.Field
			if status == http.StatusInternalServerError {
				logger.Error().Err(err).Str("request_id", rid).Msg("internal error")
			} else {
				body.Error = ae.Error()
			}
		case errors.As(err, &he):
			status = he.Code
			body.Error = fmt.Sprint(he.Message)
		default:
			logger.Error().Err(err).Str("request_id", rid).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error().Err(err).Str("request_id", rid).Msg("write error response")
		}
	}
}
