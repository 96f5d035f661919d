// internal/app/services/membership/membership.go
package membership

import (
	"context"
	"errors"

	membershipstore "github.com/dalemusser/teamhub/internal/app/store/memberships"
	rolestore "github.com/dalemusser/teamhub/internal/app/store/roles"
	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	workspacestore "github.com/dalemusser/teamhub/internal/app/store/workspaces"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/app/system/metrics"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Caller-facing failures. Compare with errors.Is.
var (
	ErrWorkspaceNotFound  = apperr.NotFound("Workspace not found")
	ErrUserNotMember      = apperr.NotFound("User is not a member of this workspace")
	ErrNotMember          = apperr.NotFound("You are not a member of this workspace")
	ErrMemberNotFound     = apperr.NotFound("Member not found in this workspace")
	ErrUserEmailNotFound  = apperr.NotFound("User with this email not found")
	ErrRoleNotFound       = apperr.NotFound("Role not found")
	ErrInvalidInviteCode  = apperr.Conflict("Invitation code is invalid")
	ErrAlreadyMember      = apperr.Conflict("User is already a member of this workspace")
	ErrOwnerRoleChange    = apperr.Forbidden("Cannot change the role of the workspace owner")
	ErrOwnerRemoval       = apperr.Forbidden("Cannot remove the workspace owner")
	ErrOwnerLeave         = apperr.Forbidden("Workspace owner cannot leave. Transfer ownership or delete the workspace instead.")
	ErrOwnerRoleAssign    = apperr.Forbidden("The owner role cannot be assigned")
	ErrMemberRoleMissing  = apperr.Precondition("Member role not found. Please seed roles first.")
)

// Service is the membership registry. It owns every rule about who belongs
// to which workspace with which role.
type Service struct {
	users      *userstore.Store
	workspaces *workspacestore.Store
	members    *membershipstore.Store
	roles      *rolestore.Catalog
	rec        metrics.Recorder
	log        *zap.Logger

	clearCurrent func(ctx context.Context, userID, workspaceID primitive.ObjectID) error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for non-fatal follow-up failures.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New wires a Service over db. rec may be nil.
func New(db *mongo.Database, roles *rolestore.Catalog, rec metrics.Recorder, opts ...Option) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	s := &Service{
		users:      userstore.New(db),
		workspaces: workspacestore.New(db),
		members:    membershipstore.New(db),
		roles:      roles,
		rec:        rec,
		log:        zap.NewNop(),
	}
	s.clearCurrent = s.users.ClearCurrentWorkspaceIf
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) record(op string, err error) error {
	s.rec.MembershipOp(op, err)
	return err
}

func internal(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Internal(err)
}

// workspace loads workspaceID, mapping absence to ErrWorkspaceNotFound.
func (s *Service) workspace(ctx context.Context, workspaceID primitive.ObjectID) (models.Workspace, error) {
	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if errors.Is(err, workspacestore.ErrNotFound) {
		return models.Workspace{}, ErrWorkspaceNotFound
	}
	return ws, internal(err)
}

func (s *Service) requireWorkspace(ctx context.Context, workspaceID primitive.ObjectID) error {
	ok, err := s.workspaces.Exists(ctx, workspaceID)
	if err != nil {
		return internal(err)
	}
	if !ok {
		return ErrWorkspaceNotFound
	}
	return nil
}

func (s *Service) memberRole(ctx context.Context) (models.Role, error) {
	r, err := s.roles.Required(ctx, authz.RoleMember)
	if errors.Is(err, rolestore.ErrCatalogMissing) {
		return models.Role{}, ErrMemberRoleMissing
	}
	return r, internal(err)
}

// assignableRole resolves roleID for AddByEmail and UpdateRole. OWNER is
// reserved for the workspace owner and is never assignable.
func (s *Service) assignableRole(ctx context.Context, roleID primitive.ObjectID) (models.Role, error) {
	r, err := s.roles.ByID(ctx, roleID)
	if errors.Is(err, rolestore.ErrNotFound) {
		return models.Role{}, ErrRoleNotFound
	}
	if err != nil {
		return models.Role{}, internal(err)
	}
	if r.Name == authz.RoleOwner {
		return models.Role{}, ErrOwnerRoleAssign
	}
	return r, nil
}

func (s *Service) expanded(ctx context.Context, id, workspaceID primitive.ObjectID) (models.ExpandedMembership, error) {
	m, err := s.members.ExpandedByID(ctx, id, workspaceID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return models.ExpandedMembership{}, ErrMemberNotFound
	}
	return m, internal(err)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Reads                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// GetRoleInWorkspace returns the name of the role userID holds in workspaceID.
func (s *Service) GetRoleInWorkspace(ctx context.Context, userID, workspaceID primitive.ObjectID) (string, error) {
	if err := s.requireWorkspace(ctx, workspaceID); err != nil {
		return "", err
	}
	roleID, err := s.members.RoleIDInWorkspace(ctx, userID, workspaceID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return "", ErrUserNotMember
	}
	if err != nil {
		return "", internal(err)
	}
	r, err := s.roles.ByID(ctx, roleID)
	if errors.Is(err, rolestore.ErrNotFound) {
		// A dangling role reference grants nothing.
		return "", nil
	}
	return r.Name, internal(err)
}

// MemberList is a workspace's members, newest first, and their total.
type MemberList struct {
	Members []models.ExpandedMembership `json:"members"`
	Total   int64                       `json:"totalMembers"`
}

// ListMembers returns every member of workspaceID with user and role.
// The list and the count are read in parallel.
func (s *Service) ListMembers(ctx context.Context, workspaceID primitive.ObjectID) (MemberList, error) {
	if err := s.requireWorkspace(ctx, workspaceID); err != nil {
		return MemberList{}, err
	}

	var out MemberList
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Members, err = s.members.ExpandedByWorkspace(gctx, workspaceID)
		return err
	})
	g.Go(func() error {
		var err error
		out.Total, err = s.members.CountByWorkspace(gctx, workspaceID)
		return err
	})
	if err := g.Wait(); err != nil {
		return MemberList{}, internal(err)
	}
	return out, nil
}

// GetMember returns membership memberID of workspaceID with user and role.
func (s *Service) GetMember(ctx context.Context, memberID, workspaceID primitive.ObjectID) (models.ExpandedMembership, error) {
	return s.expanded(ctx, memberID, workspaceID)
}

// Count returns the number of members in workspaceID.
func (s *Service) Count(ctx context.Context, workspaceID primitive.ObjectID) (int64, error) {
	if err := s.requireWorkspace(ctx, workspaceID); err != nil {
		return 0, err
	}
	n, err := s.members.CountByWorkspace(ctx, workspaceID)
	return n, internal(err)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Writes                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// JoinResult is returned by JoinByInviteCode.
type JoinResult struct {
	WorkspaceID primitive.ObjectID `json:"workspaceId"`
	Role        string             `json:"role"`
}

// JoinByInviteCode adds userID to the workspace owning code as a MEMBER.
func (s *Service) JoinByInviteCode(ctx context.Context, code string, userID primitive.ObjectID) (JoinResult, error) {
	res, err := s.join(ctx, code, userID)
	return res, s.record("join", err)
}

func (s *Service) join(ctx context.Context, code string, userID primitive.ObjectID) (JoinResult, error) {
	ws, err := s.workspaces.GetByInviteCode(ctx, code)
	if errors.Is(err, workspacestore.ErrNotFound) {
		return JoinResult{}, ErrInvalidInviteCode
	}
	if err != nil {
		return JoinResult{}, internal(err)
	}

	exists, err := s.members.Exists(ctx, userID, ws.ID)
	if err != nil {
		return JoinResult{}, internal(err)
	}
	if exists {
		return JoinResult{}, ErrAlreadyMember
	}

	role, err := s.memberRole(ctx)
	if err != nil {
		return JoinResult{}, err
	}

	if err := s.insert(ctx, userID, ws.ID, role.ID); err != nil {
		return JoinResult{}, err
	}
	return JoinResult{WorkspaceID: ws.ID, Role: role.Name}, nil
}

// insert creates the membership row, mapping a lost uniqueness race to
// ErrAlreadyMember.
func (s *Service) insert(ctx context.Context, userID, workspaceID, roleID primitive.ObjectID) error {
	_, err := s.members.Create(ctx, models.Membership{
		UserID:      userID,
		WorkspaceID: workspaceID,
		RoleID:      roleID,
	})
	if errors.Is(err, membershipstore.ErrDuplicateMembership) {
		return ErrAlreadyMember
	}
	return internal(err)
}

// AddByEmail adds the user registered under email to workspaceID. roleID
// selects the role; nil means MEMBER.
func (s *Service) AddByEmail(ctx context.Context, workspaceID primitive.ObjectID, email string, roleID *primitive.ObjectID) (models.ExpandedMembership, error) {
	m, err := s.addByEmail(ctx, workspaceID, email, roleID)
	return m, s.record("add", err)
}

func (s *Service) addByEmail(ctx context.Context, workspaceID primitive.ObjectID, email string, roleID *primitive.ObjectID) (models.ExpandedMembership, error) {
	if err := s.requireWorkspace(ctx, workspaceID); err != nil {
		return models.ExpandedMembership{}, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		return models.ExpandedMembership{}, ErrUserEmailNotFound
	}
	if err != nil {
		return models.ExpandedMembership{}, internal(err)
	}

	exists, err := s.members.Exists(ctx, u.ID, workspaceID)
	if err != nil {
		return models.ExpandedMembership{}, internal(err)
	}
	if exists {
		return models.ExpandedMembership{}, ErrAlreadyMember
	}

	var role models.Role
	if roleID != nil {
		role, err = s.assignableRole(ctx, *roleID)
	} else {
		role, err = s.memberRole(ctx)
	}
	if err != nil {
		return models.ExpandedMembership{}, err
	}

	if err := s.insert(ctx, u.ID, workspaceID, role.ID); err != nil {
		return models.ExpandedMembership{}, err
	}
	m, err := s.members.GetByUserWorkspace(ctx, u.ID, workspaceID)
	if err != nil {
		return models.ExpandedMembership{}, internal(err)
	}
	return s.expanded(ctx, m.ID, workspaceID)
}

// UpdateRole changes the role of membership memberID. The owner's role
// cannot be changed.
func (s *Service) UpdateRole(ctx context.Context, memberID, workspaceID, roleID primitive.ObjectID) (models.ExpandedMembership, error) {
	m, err := s.updateRole(ctx, memberID, workspaceID, roleID)
	return m, s.record("update_role", err)
}

func (s *Service) updateRole(ctx context.Context, memberID, workspaceID, roleID primitive.ObjectID) (models.ExpandedMembership, error) {
	m, ws, err := s.target(ctx, memberID, workspaceID)
	if err != nil {
		return models.ExpandedMembership{}, err
	}
	if ws.IsOwner(m.UserID) {
		return models.ExpandedMembership{}, ErrOwnerRoleChange
	}

	role, err := s.assignableRole(ctx, roleID)
	if err != nil {
		return models.ExpandedMembership{}, err
	}

	err = s.members.UpdateRole(ctx, memberID, workspaceID, role.ID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return models.ExpandedMembership{}, ErrMemberNotFound
	}
	if err != nil {
		return models.ExpandedMembership{}, internal(err)
	}
	return s.expanded(ctx, memberID, workspaceID)
}

// target resolves membership memberID and its workspace.
func (s *Service) target(ctx context.Context, memberID, workspaceID primitive.ObjectID) (models.Membership, models.Workspace, error) {
	m, err := s.members.Get(ctx, memberID, workspaceID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return models.Membership{}, models.Workspace{}, ErrMemberNotFound
	}
	if err != nil {
		return models.Membership{}, models.Workspace{}, internal(err)
	}
	ws, err := s.workspace(ctx, workspaceID)
	if err != nil {
		return models.Membership{}, models.Workspace{}, err
	}
	return m, ws, nil
}

// Removal is the snapshot of a deleted membership.
type Removal struct {
	Member        models.ExpandedMembership
	IsSelfRemoval bool
}

// Remove deletes membership memberID on behalf of requestingUserID. The
// owner cannot be removed.
func (s *Service) Remove(ctx context.Context, memberID, workspaceID, requestingUserID primitive.ObjectID) (Removal, error) {
	r, err := s.remove(ctx, memberID, workspaceID, requestingUserID)
	return r, s.record("remove", err)
}

func (s *Service) remove(ctx context.Context, memberID, workspaceID, requestingUserID primitive.ObjectID) (Removal, error) {
	m, ws, err := s.target(ctx, memberID, workspaceID)
	if err != nil {
		return Removal{}, err
	}
	if ws.IsOwner(m.UserID) {
		return Removal{}, ErrOwnerRemoval
	}

	snap, err := s.deleteExpanded(ctx, m)
	if err != nil {
		return Removal{}, err
	}
	return Removal{Member: snap, IsSelfRemoval: m.UserID == requestingUserID}, nil
}

// Leave removes userID's own membership of workspaceID. The owner cannot
// leave.
func (s *Service) Leave(ctx context.Context, userID, workspaceID primitive.ObjectID) (models.ExpandedMembership, error) {
	m, err := s.leave(ctx, userID, workspaceID)
	return m, s.record("leave", err)
}

func (s *Service) leave(ctx context.Context, userID, workspaceID primitive.ObjectID) (models.ExpandedMembership, error) {
	m, err := s.members.GetByUserWorkspace(ctx, userID, workspaceID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return models.ExpandedMembership{}, ErrNotMember
	}
	if err != nil {
		return models.ExpandedMembership{}, internal(err)
	}
	ws, err := s.workspace(ctx, workspaceID)
	if err != nil {
		return models.ExpandedMembership{}, err
	}
	if ws.IsOwner(userID) {
		return models.ExpandedMembership{}, ErrOwnerLeave
	}
	return s.deleteExpanded(ctx, m)
}

// deleteExpanded snapshots m with user and role, deletes it, and clears
// the user's current workspace when it pointed here. Once the delete lands
// the removal stands and a failed clear is only logged.
func (s *Service) deleteExpanded(ctx context.Context, m models.Membership) (models.ExpandedMembership, error) {
	snap, err := s.expanded(ctx, m.ID, m.WorkspaceID)
	if err != nil {
		return models.ExpandedMembership{}, err
	}
	err = s.members.Delete(ctx, m.ID, m.WorkspaceID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return models.ExpandedMembership{}, ErrMemberNotFound
	}
	if err != nil {
		return models.ExpandedMembership{}, internal(err)
	}
	if err := s.clearCurrent(ctx, m.UserID, m.WorkspaceID); err != nil {
		s.log.Warn("clear current workspace after removal failed",
			zap.String("user_id", m.UserID.Hex()),
			zap.String("workspace_id", m.WorkspaceID.Hex()),
			zap.Error(err))
	}
	return snap, nil
}
