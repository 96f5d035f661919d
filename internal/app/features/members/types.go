// internal/app/features/members/types.go
package members

import (
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/services/membership"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type addMemberInput struct {
	Email  string  `json:"email" validate:"required,email" label:"Email"`
	RoleID *string `json:"roleId" validate:"objectid" label:"Role ID"`
}

type updateRoleInput struct {
	RoleID string `json:"roleId" validate:"required,objectid" label:"Role ID"`
}

type joinResponse struct {
	Message     string             `json:"message"`
	WorkspaceID primitive.ObjectID `json:"workspaceId"`
	Role        string             `json:"role"`
}

type listResponse struct {
	Message      string                      `json:"message"`
	Members      []models.ExpandedMembership `json:"members"`
	TotalMembers int64                       `json:"totalMembers"`
}

type countResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

type memberResponse struct {
	Message string                    `json:"message"`
	Member  models.ExpandedMembership `json:"member"`
}

// memberIDParam parses {memberId}. A malformed id cannot name a member.
func memberIDParam(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "memberId"))
	if err != nil {
		return primitive.NilObjectID, membership.ErrMemberNotFound
	}
	return id, nil
}
