package membership

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SetClearCurrent replaces the current-workspace reset run after a removal.
func SetClearCurrent(s *Service, f func(ctx context.Context, userID, workspaceID primitive.ObjectID) error) {
	s.clearCurrent = f
}
