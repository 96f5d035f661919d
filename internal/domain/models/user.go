// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an identity record. Email is stored lowercased and trimmed.
//
// NOTE:
//   - Workspace membership is not embedded on User.
//     Use the members collection to discover a user's workspaces.
//   - PasswordHash is empty for OAuth-only users.
type User struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name             string              `bson:"name" json:"name"`
	NameCI           string              `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email            string              `bson:"email" json:"email"`
	PasswordHash     string              `bson:"password_hash,omitempty" json:"-"`
	ProfilePicture   string              `bson:"profile_picture,omitempty" json:"profilePicture,omitempty"`
	Description      string              `bson:"description,omitempty" json:"description,omitempty"`
	CurrentWorkspace *primitive.ObjectID `bson:"current_workspace,omitempty" json:"currentWorkspace,omitempty"`
	IsActive         bool                `bson:"is_active" json:"isActive"`
	LastLogin        *time.Time          `bson:"last_login,omitempty" json:"lastLogin,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasPassword reports whether the user can sign in with a local password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}
