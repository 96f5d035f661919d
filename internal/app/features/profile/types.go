// internal/app/features/profile/types.go
package profile

import (
	"encoding/json"
	"time"

	activitystore "github.com/dalemusser/teamhub/internal/app/store/activity"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// userView is a user with its current workspace expanded.
type userView struct {
	models.User
	CurrentWorkspace *models.WorkspaceSummary `json:"currentWorkspace"`
}

type userResponse struct {
	Message string   `json:"message"`
	User    userView `json:"user"`
}

type statistics struct {
	Workspaces int64 `json:"workspaces"`
}

type recentWorkspace struct {
	WorkspaceID primitive.ObjectID `json:"workspaceId"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Role        string             `json:"role"`
	JoinedAt    time.Time          `json:"joinedAt"`
}

type profileResponse struct {
	Message          string            `json:"message"`
	User             userView          `json:"user"`
	Statistics       statistics        `json:"statistics"`
	RecentWorkspaces []recentWorkspace `json:"recentWorkspaces"`
}

type pagination struct {
	CurrentPage  int64 `json:"currentPage"`
	TotalPages   int64 `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int64 `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

type activityResponse struct {
	Message    string                `json:"message"`
	Activities []activitystore.Entry `json:"activities"`
	Pagination pagination            `json:"pagination"`
	Summary    map[string]int64      `json:"summary"`
}

// nullableID distinguishes an absent field from an explicit null.
type nullableID struct {
	Set   bool
	Null  bool
	Value string
}

func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Null = true
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

type updateProfileInput struct {
	Name             *string    `json:"name" validate:"min=2,max=100" label:"Name"`
	Email            *string    `json:"email" validate:"email" label:"Email"`
	ProfilePicture   *string    `json:"profilePicture" validate:"httpurl" label:"Profile picture"`
	Description      *string    `json:"description" validate:"max=500" label:"Description"`
	CurrentWorkspace nullableID `json:"currentWorkspace"`
}

type changePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required" label:"Current password"`
	NewPassword     string `json:"newPassword" validate:"required,max=128" label:"New password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required" label:"Password confirmation"`
}

type activityQuery struct {
	Type      string `json:"type" validate:"oneof=workspace project task member user all" label:"Type"`
	StartDate string `json:"startDate" validate:"rfc3339" label:"Start date"`
	EndDate   string `json:"endDate" validate:"rfc3339" label:"End date"`
}
