// Package policy holds the authorization decisions shared by every resource service.
// All functions are pure: callers pass in everything they need.
package policy

import (
	"github.com/taskmaster/todos/internal/domain/entities"
)

// Requester is the authenticated identity carried by a request.
type Requester struct {
	ID       int64
	Username string
	Role     entities.Role
}

func (r Requester) IsAdmin() bool {
	return r.Role == entities.RoleAdmin
}

// CanAccess reports whether requester may act on a resource owned by ownerID.
func CanAccess(ownerID int64, requester Requester) bool {
	if requester.IsAdmin() {
		return true
	}
	return requester.ID == ownerID
}

// Authorize is CanAccess expressed as an error.
func Authorize(ownerID int64, requester Requester) error {
	if !CanAccess(ownerID, requester) {
		return entities.ErrForbidden
	}
	return nil
}

// HasRole reports whether have satisfies a requirement of required.
func HasRole(have, required entities.Role) bool {
	return have.Rank() > 0 && have.Rank() >= required.Rank()
}

// AssertNotLastAdmin rejects a role change that would leave no admin behind.
// adminCount must be read inside the same transaction as the role write.
func AssertNotLastAdmin(adminCount int64, target *entities.User, newRole entities.Role) error {
	if target.Role == entities.RoleAdmin && newRole != entities.RoleAdmin && adminCount <= 1 {
		return entities.ErrLastAdmin
	}
	return nil
}
