package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership is the authoritative join between users and workspaces.
// Exactly one document per (user_id, workspace_id); role_id points at roles.
type Membership struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"userId"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspaceId"`
	RoleID      primitive.ObjectID `bson:"role_id" json:"roleId"`
	JoinedAt    time.Time          `bson:"joined_at" json:"joinedAt"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// MemberUser is the public slice of a user shown next to a membership.
type MemberUser struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Email          string             `bson:"email" json:"email"`
	ProfilePicture string             `bson:"profile_picture,omitempty" json:"profilePicture,omitempty"`
}

// MemberRole is the role slice shown next to a membership.
type MemberRole struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Permissions []string           `bson:"permissions" json:"permissions"`
}

// ExpandedMembership is the read model returned to callers: a membership
// joined with its user's public fields and its role.
type ExpandedMembership struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspaceId"`
	User        MemberUser         `bson:"user" json:"user"`
	Role        MemberRole         `bson:"role" json:"role"`
	JoinedAt    time.Time          `bson:"joined_at" json:"joinedAt"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}
