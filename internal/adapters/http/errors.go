package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/infrastructure/logger"
)

const internalMessage = "Internal server error"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// StatusFor maps a domain error kind onto its HTTP status
func StatusFor(kind entities.Kind) int {
	switch kind {
	case entities.KindUnauthenticated:
		return http.StatusUnauthorized
	case entities.KindForbidden:
		return http.StatusForbidden
	case entities.KindNotFound:
		return http.StatusNotFound
	case entities.KindConflict:
		return http.StatusConflict
	case entities.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders domain, validation and echo errors as ErrorResponse.
// Internal failures are logged and reported with a generic message.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err)
		if code >= http.StatusInternalServerError {
			log.WithRequestID(c.Response().Header().Get(echo.HeaderXRequestID)).Errorw("Internal server error",
				"error", err,
				"path", c.Request().URL.Path,
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Errorw("Error sending response", "error", err)
		}
	}
}

func resolveError(err error) (int, ErrorResponse) {
	var (
		validationErr *ValidationError
		domainErr     *entities.Error
		httpErr       *echo.HTTPError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: validationErr.Fields}
	case errors.As(err, &domainErr):
		code := StatusFor(domainErr.Kind)
		if code == http.StatusInternalServerError {
			return code, ErrorResponse{Message: internalMessage}
		}
		return code, ErrorResponse{Message: domainErr.Message}
	case errors.As(err, &httpErr):
		if httpErr.Code >= http.StatusInternalServerError {
			return httpErr.Code, ErrorResponse{Message: http.StatusText(httpErr.Code)}
		}
		return httpErr.Code, ErrorResponse{Message: fmt.Sprint(httpErr.Message)}
	default:
		return http.StatusInternalServerError, ErrorResponse{Message: internalMessage}
	}
}
