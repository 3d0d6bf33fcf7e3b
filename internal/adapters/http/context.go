package http

import (
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/todos/internal/domain/entities"
	"github.com/taskmaster/todos/internal/domain/policy"
)

const requesterKey = "requester"

// SetRequester stores the authenticated identity on the request context
func SetRequester(c echo.Context, r policy.Requester) {
	c.Set(requesterKey, r)
}

// RequesterFrom returns the identity stored by SetRequester
func RequesterFrom(c echo.Context) (policy.Requester, bool) {
	r, ok := c.Get(requesterKey).(policy.Requester)
	return r, ok
}

func mustRequester(c echo.Context) (policy.Requester, error) {
	r, ok := RequesterFrom(c)
	if !ok {
		return policy.Requester{}, entities.NewError(entities.KindUnauthenticated, "Authentication required")
	}
	return r, nil
}
