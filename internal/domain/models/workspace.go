package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workspace is the tenant boundary in teamhub.
// Every membership, project, and task belongs to exactly one workspace.
//
// OwnerID is set once at creation and never changes. The owner always
// holds an OWNER membership in the members collection.
type Workspace struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// Display name for the workspace
	Name   string `bson:"name" json:"name"`
	NameCI string `bson:"name_ci" json:"-"` // Case-insensitive for sorting

	Description string `bson:"description,omitempty" json:"description,omitempty"`

	// Creator of the workspace (immutable)
	OwnerID primitive.ObjectID `bson:"owner_id" json:"ownerId"`

	// Self-service join token; unique across all workspaces
	InviteCode string `bson:"invite_code" json:"inviteCode"`

	// Audit fields
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsOwner reports whether userID is the workspace owner.
func (w Workspace) IsOwner(userID primitive.ObjectID) bool {
	return !userID.IsZero() && w.OwnerID == userID
}

// WorkspaceSummary is the public subset of a workspace embedded in other
// responses (current workspace, recent workspaces).
type WorkspaceSummary struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"created_at,omitempty" json:"createdAt,omitempty"`
}
