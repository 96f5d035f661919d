// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrForbidden is returned when a role lacks every required permission.
var ErrForbidden = apperr.Forbidden("You do not have permission to perform this action")

// UserCtx returns the signed-in user's name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "", NilObjectID, false. Callers can trust that ok=true means a valid,
// authenticated user with a valid ObjectID.
func UserCtx(r *http.Request) (name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "", primitive.NilObjectID, false
	}
	return user.Name, userID, true
}

// Has reports whether roleName holds perm.
// Unknown and empty role names hold nothing.
func Has(roleName, perm string) bool {
	perms, ok := matrix[roleName]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}

// CheckPermission returns ErrForbidden unless roleName holds at least one
// of required. An empty required list is also forbidden.
func CheckPermission(roleName string, required ...string) error {
	for _, p := range required {
		if Has(roleName, p) {
			return nil
		}
	}
	return ErrForbidden
}
