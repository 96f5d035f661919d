// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/normalize"
	"github.com/dalemusser/teamhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the users collection name.
const Collection = "users"

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to store an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Collection exposes the underlying collection for compensating writes.
func (s *Store) Collection() *mongo.Collection { return s.c }

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case wafflemongo.IsDup(err):
		return ErrDuplicateEmail
	default:
		return err
	}
}

// Create inserts a new active user after normalizing name and email.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = normalize.NameCI(u.Name)
	u.Email = normalize.Email(u.Email)
	u.IsActive = true

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		return models.User{}, mapErr(err)
	}
	return u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// GetByEmail looks up a user by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// SetCurrentWorkspace points the user's default workspace at wsID.
// A nil wsID clears it.
func (s *Store) SetCurrentWorkspace(ctx context.Context, id primitive.ObjectID, wsID *primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"current_workspace": wsID, "updated_at": time.Now().UTC()}}
	if wsID == nil {
		update = bson.M{
			"$unset": bson.M{"current_workspace": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		}
	}
	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCurrentWorkspaceIf unsets the current workspace only when it equals wsID.
// Used when a member leaves or is removed.
func (s *Store) ClearCurrentWorkspaceIf(ctx context.Context, id, wsID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "current_workspace": wsID},
		bson.M{
			"$unset": bson.M{"current_workspace": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		})
	return err
}

// SetPictureIfEmpty sets the profile picture only when the user has none.
// It reports whether the picture was written.
func (s *Store) SetPictureIfEmpty(ctx context.Context, id primitive.ObjectID, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"profile_picture": bson.M{"$exists": false}},
				bson.M{"profile_picture": ""},
			},
		},
		bson.M{"$set": bson.M{"profile_picture": url, "updated_at": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ProfileUpdate lists the mutable profile fields. Nil fields are left alone.
type ProfileUpdate struct {
	Name             *string
	Email            *string
	ProfilePicture   *string
	Description      *string
	CurrentWorkspace *primitive.ObjectID
	ClearWorkspace   bool
}

// IsEmpty reports whether no field is set.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.ProfilePicture == nil &&
		p.Description == nil && p.CurrentWorkspace == nil && !p.ClearWorkspace
}

// UpdateProfile applies upd and returns the updated user.
// Returns ErrDuplicateEmail if the new email belongs to another user.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}

	if upd.Name != nil {
		name := normalize.Name(*upd.Name)
		set["name"] = name
		set["name_ci"] = normalize.NameCI(name)
	}
	if upd.Email != nil {
		set["email"] = normalize.Email(*upd.Email)
	}
	if upd.ProfilePicture != nil {
		set["profile_picture"] = *upd.ProfilePicture
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	switch {
	case upd.ClearWorkspace:
		unset["current_workspace"] = ""
	case upd.CurrentWorkspace != nil:
		set["current_workspace"] = *upd.CurrentWorkspace
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var u models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// EmailExistsForOther checks if an email already exists for a user other than the given ID.
func (s *Store) EmailExistsForOther(ctx context.Context, email string, excludeID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"email": normalize.Email(email),
		"_id":   bson.M{"$ne": excludeID},
	}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// SetPasswordHash replaces the stored password hash.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful sign-in.
func (s *Store) TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login": at.UTC()}})
	return err
}

// Deactivate soft-deletes the user by clearing is_active.
func (s *Store) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
