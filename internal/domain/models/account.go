package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is a credential linked to a User.
// Exactly one document per (user_id, provider) and per (provider, provider_id).
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"user_id" json:"userId"`
	Provider     string             `bson:"provider" json:"provider"`       // "email" | "google"
	ProviderID   string             `bson:"provider_id" json:"providerId"` // email address for local accounts
	Email        string             `bson:"email,omitempty" json:"email,omitempty"`
	AccessToken  string             `bson:"access_token,omitempty" json:"-"`
	RefreshToken string             `bson:"refresh_token,omitempty" json:"-"`
	TokenExpiry  *time.Time         `bson:"token_expiry,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Tokens carries opaque provider tokens from an OAuth exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}
