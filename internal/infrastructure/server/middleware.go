package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	httpapi "github.com/taskmaster/todos/internal/adapters/http"
	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/policy"
	"github.com/taskmaster/todos/internal/infrastructure/logger"
	"github.com/taskmaster/todos/internal/ports"
)

// TokenValidator is the part of the auth service the middleware needs
type TokenValidator interface {
	ValidateToken(tokenString string) (*ports.Claims, error)
}

var errMissingToken = entities.NewError(entities.KindUnauthenticated, "Missing or malformed authorization header")

// Authenticate validates the bearer token and stores the requester on the context
func Authenticate(tokens TokenValidator, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, ok := bearerToken(authHeader)
			if !ok {
				return errMissingToken
			}

			claims, err := tokens.ValidateToken(tokenString)
			if err != nil {
				log.LogSecurityEvent("invalid_token", err.Error(), map[string]interface{}{
					"ip":   c.RealIP(),
					"path": c.Request().URL.Path,
				})
				return err
			}

			httpapi.SetRequester(c, claims.Requester())
			return next(c)
		}
	}
}

// RequireRole rejects requesters whose role ranks below required
func RequireRole(required entities.Role, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requester, ok := httpapi.RequesterFrom(c)
			if !ok {
				return errMissingToken
			}

			if !policy.HasRole(requester.Role, required) {
				log.LogSecurityEvent("insufficient_permissions", "role", map[string]interface{}{
					"user_id":       requester.ID,
					"user_role":     requester.Role,
					"required_role": required,
					"endpoint":      c.Request().URL.Path,
				})
				return entities.ErrForbidden
			}

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
