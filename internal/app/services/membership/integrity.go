// internal/app/services/membership/integrity.go
package membership

import (
	"context"
	"errors"

	membershipstore "github.com/dalemusser/teamhub/internal/app/store/memberships"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Violation describes a workspace whose ownership is inconsistent.
type Violation struct {
	WorkspaceID primitive.ObjectID
	OwnerID     primitive.ObjectID
	Reason      string
}

// Violation reasons.
const (
	ReasonOwnerNotMember = "owner_not_member"
	ReasonOwnerWrongRole = "owner_wrong_role"
	ReasonExtraOwners    = "extra_owner_memberships"
)

// CheckOwnerInvariant scans every workspace and reports those where the
// owner does not hold exactly one OWNER membership, or where another member
// holds OWNER. The violation count is published to the recorder.
func (s *Service) CheckOwnerInvariant(ctx context.Context) ([]Violation, error) {
	owner, err := s.roles.Required(ctx, authz.RoleOwner)
	if err != nil {
		return nil, err
	}

	var out []Violation
	err = s.workspaces.Each(ctx, func(ws models.Workspace) error {
		v, err := s.checkWorkspace(ctx, ws, owner.ID)
		if err != nil {
			return err
		}
		out = append(out, v...)
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}

	s.rec.OwnerViolations(len(out))
	return out, nil
}

func (s *Service) checkWorkspace(ctx context.Context, ws models.Workspace, ownerRoleID primitive.ObjectID) ([]Violation, error) {
	var out []Violation
	add := func(reason string) {
		out = append(out, Violation{WorkspaceID: ws.ID, OwnerID: ws.OwnerID, Reason: reason})
	}

	m, err := s.members.GetByUserWorkspace(ctx, ws.OwnerID, ws.ID)
	switch {
	case errors.Is(err, membershipstore.ErrNotFound):
		add(ReasonOwnerNotMember)
	case err != nil:
		return nil, err
	case m.RoleID != ownerRoleID:
		add(ReasonOwnerWrongRole)
	}

	n, err := s.members.CountWithRole(ctx, ws.ID, ownerRoleID)
	if err != nil {
		return nil, err
	}
	if n > 1 || (n == 1 && len(out) > 0) {
		add(ReasonExtraOwners)
	}
	return out, nil
}
