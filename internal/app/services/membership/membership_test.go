package membership_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/teamhub/internal/app/services/membership"
	"github.com/dalemusser/teamhub/internal/app/services/provisioning"
	membershipstore "github.com/dalemusser/teamhub/internal/app/store/memberships"
	rolestore "github.com/dalemusser/teamhub/internal/app/store/roles"
	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu         sync.Mutex
	ops        map[string][]error
	violations int
}

func (r *recorder) MembershipOp(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = map[string][]error{}
	}
	r.ops[op] = append(r.ops[op], err)
}
func (r *recorder) Provisioning(string, error) {}
func (r *recorder) Login(string, error)        {}
func (r *recorder) RateLimited(string)         {}
func (r *recorder) OwnerViolations(n int)      { r.violations = n }

func newService(t *testing.T) (*membership.Service, *testutil.Fixtures, *recorder) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.SeedRoles(ctx)
	rec := &recorder{}
	return membership.New(db, rolestore.NewCatalog(rolestore.New(db)), rec), fx, rec
}

func TestGetRoleInWorkspace(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	admin := fx.CreateUser(ctx, "Admin", "admin@example.com")
	fx.CreateMembership(ctx, admin.ID, ws.ID, authz.RoleAdmin)
	stranger := fx.CreateUser(ctx, "Stranger", "stranger@example.com")

	tests := []struct {
		name    string
		userID  primitive.ObjectID
		wsID    primitive.ObjectID
		want    string
		wantErr error
	}{
		{"owner", owner.ID, ws.ID, authz.RoleOwner, nil},
		{"admin", admin.ID, ws.ID, authz.RoleAdmin, nil},
		{"non-member", stranger.ID, ws.ID, "", membership.ErrUserNotMember},
		{"missing workspace", owner.ID, primitive.NewObjectID(), "", membership.ErrWorkspaceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GetRoleInWorkspace(ctx, tt.userID, tt.wsID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinByInviteCode(t *testing.T) {
	svc, fx, rec := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	joiner := fx.CreateUser(ctx, "Joiner", "joiner@example.com")

	res, err := svc.JoinByInviteCode(ctx, "  "+ws.InviteCode+" ", joiner.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, res.WorkspaceID)
	assert.Equal(t, authz.RoleMember, res.Role)

	_, err = svc.JoinByInviteCode(ctx, ws.InviteCode, joiner.ID)
	assert.ErrorIs(t, err, membership.ErrAlreadyMember)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.JoinByInviteCode(ctx, ws.InviteCode, owner.ID)
	assert.ErrorIs(t, err, membership.ErrAlreadyMember)

	_, err = svc.JoinByInviteCode(ctx, "nope0000", joiner.ID)
	assert.ErrorIs(t, err, membership.ErrInvalidInviteCode)

	_, err = svc.JoinByInviteCode(ctx, "", joiner.ID)
	assert.ErrorIs(t, err, membership.ErrInvalidInviteCode)

	n, err := svc.Count(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, rec.ops["join"], 5)
	assert.NoError(t, rec.ops["join"][0])
}

func TestJoinByInviteCode_Concurrent(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	joiner := fx.CreateUser(ctx, "Joiner", "joiner@example.com")

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.JoinByInviteCode(ctx, ws.InviteCode, joiner.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, membership.ErrAlreadyMember)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(1), fx.Count(ctx, membershipstore.Collection, bson.M{"user_id": joiner.ID}))
}

func TestJoinByInviteCode_MissingMemberRole(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	joiner := fx.CreateUser(ctx, "Joiner", "joiner@example.com")

	_, err := fx.DB().Collection(rolestore.Collection).DeleteOne(ctx, bson.M{"name": authz.RoleMember})
	require.NoError(t, err)

	_, err = svc.JoinByInviteCode(ctx, ws.InviteCode, joiner.ID)
	assert.ErrorIs(t, err, membership.ErrMemberRoleMissing)
	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
}

func TestListMembersAndGetMember(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	member := fx.CreateUser(ctx, "Member", "member@example.com")
	m := fx.CreateMembership(ctx, member.ID, ws.ID, authz.RoleMember)

	list, err := svc.ListMembers(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Members, 2)
	for _, em := range list.Members {
		assert.NotEmpty(t, em.User.Email)
		assert.NotEmpty(t, em.Role.Name)
	}

	got, err := svc.GetMember(ctx, m.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", got.User.Email)
	assert.Equal(t, authz.RoleMember, got.Role.Name)

	other := fx.CreateWorkspace(ctx, "Other", owner.ID)
	_, err = svc.GetMember(ctx, m.ID, other.ID)
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)

	_, err = svc.ListMembers(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, membership.ErrWorkspaceNotFound)
}

func TestAddByEmail(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	fx.CreateUser(ctx, "Plain", "plain@example.com")
	fx.CreateUser(ctx, "Boss", "boss@example.com")
	adminID := fx.Role(ctx, authz.RoleAdmin).ID
	ownerRoleID := fx.Role(ctx, authz.RoleOwner).ID
	missingRole := primitive.NewObjectID()

	got, err := svc.AddByEmail(ctx, ws.ID, "  PLAIN@example.com ", nil)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, got.Role.Name)
	assert.Equal(t, "plain@example.com", got.User.Email)

	got, err = svc.AddByEmail(ctx, ws.ID, "boss@example.com", &adminID)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, got.Role.Name)

	tests := []struct {
		name    string
		wsID    primitive.ObjectID
		email   string
		roleID  *primitive.ObjectID
		wantErr error
	}{
		{"already member", ws.ID, "plain@example.com", nil, membership.ErrAlreadyMember},
		{"owner already member", ws.ID, "owner@example.com", nil, membership.ErrAlreadyMember},
		{"unknown email", ws.ID, "ghost@example.com", nil, membership.ErrUserEmailNotFound},
		{"missing workspace", primitive.NewObjectID(), "plain@example.com", nil, membership.ErrWorkspaceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddByEmail(ctx, tt.wsID, tt.email, tt.roleID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	fx.CreateUser(ctx, "New", "new@example.com")
	_, err = svc.AddByEmail(ctx, ws.ID, "new@example.com", &missingRole)
	assert.ErrorIs(t, err, membership.ErrRoleNotFound)
	_, err = svc.AddByEmail(ctx, ws.ID, "new@example.com", &ownerRoleID)
	assert.ErrorIs(t, err, membership.ErrOwnerRoleAssign)
}

func TestAddByEmail_Concurrent(t *testing.T) {
	svc, fx, rec := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	invitee := fx.CreateUser(ctx, "Invitee", "invitee@example.com")

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddByEmail(ctx, ws.ID, "invitee@example.com", nil)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, membership.ErrAlreadyMember)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(1), fx.Count(ctx, membershipstore.Collection, bson.M{"user_id": invitee.ID, "workspace_id": ws.ID}))
	assert.Len(t, rec.ops["add"], n)
}

// Count follows a provisioned workspace through an add and a removal.
func TestCount_ProvisionedWorkspace(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	prov := provisioning.New(fx.DB(), rolestore.NewCatalog(rolestore.New(fx.DB())), zaptest.NewLogger(t))
	res, err := prov.RegisterLocalUser(ctx, provisioning.LocalRegistration{
		Email: "founder@example.com", Name: "Founder", Password: "Secret123",
	})
	require.NoError(t, err)
	wsID := res.WorkspaceID

	n, err := svc.Count(ctx, wsID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	fx.CreateUser(ctx, "Teammate", "teammate@example.com")
	added, err := svc.AddByEmail(ctx, wsID, "teammate@example.com", nil)
	require.NoError(t, err)

	n, err = svc.Count(ctx, wsID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = svc.Remove(ctx, added.ID, wsID, res.User.ID)
	require.NoError(t, err)

	n, err = svc.Count(ctx, wsID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRemove_ClearCurrentFailureKeepsRemoval(t *testing.T) {
	svc, fx, rec := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	member := fx.CreateUser(ctx, "Member", "member@example.com")
	m := fx.CreateMembership(ctx, member.ID, ws.ID, authz.RoleMember)

	membership.SetClearCurrent(svc, func(context.Context, primitive.ObjectID, primitive.ObjectID) error {
		return errors.New("users collection unavailable")
	})

	res, err := svc.Remove(ctx, m.ID, ws.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", res.Member.User.Email)
	assert.Equal(t, int64(0), fx.Count(ctx, membershipstore.Collection, bson.M{"_id": m.ID}))

	require.Len(t, rec.ops["remove"], 1)
	assert.NoError(t, rec.ops["remove"][0])
}

func TestUpdateRole(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	member := fx.CreateUser(ctx, "Member", "member@example.com")
	m := fx.CreateMembership(ctx, member.ID, ws.ID, authz.RoleMember)
	ownerMembership, err := membershipstore.New(fx.DB()).GetByUserWorkspace(ctx, owner.ID, ws.ID)
	require.NoError(t, err)

	adminID := fx.Role(ctx, authz.RoleAdmin).ID
	got, err := svc.UpdateRole(ctx, m.ID, ws.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, got.Role.Name)

	_, err = svc.UpdateRole(ctx, ownerMembership.ID, ws.ID, adminID)
	assert.ErrorIs(t, err, membership.ErrOwnerRoleChange)

	_, err = svc.UpdateRole(ctx, m.ID, ws.ID, fx.Role(ctx, authz.RoleOwner).ID)
	assert.ErrorIs(t, err, membership.ErrOwnerRoleAssign)

	_, err = svc.UpdateRole(ctx, m.ID, ws.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, membership.ErrRoleNotFound)

	_, err = svc.UpdateRole(ctx, primitive.NewObjectID(), ws.ID, adminID)
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)

	role, err := svc.GetRoleInWorkspace(ctx, member.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, role)
}

func TestRemove(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	admin := fx.CreateUser(ctx, "Admin", "admin@example.com")
	fx.CreateMembership(ctx, admin.ID, ws.ID, authz.RoleAdmin)
	member := fx.CreateUser(ctx, "Member", "member@example.com")
	m := fx.CreateMembership(ctx, member.ID, ws.ID, authz.RoleMember)

	users := userstore.New(fx.DB())
	require.NoError(t, users.SetCurrentWorkspace(ctx, member.ID, &ws.ID))

	res, err := svc.Remove(ctx, m.ID, ws.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, res.IsSelfRemoval)
	assert.Equal(t, "member@example.com", res.Member.User.Email)

	u, err := users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, u.CurrentWorkspace)

	_, err = svc.Remove(ctx, m.ID, ws.ID, admin.ID)
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)

	adminM, err := membershipstore.New(fx.DB()).GetByUserWorkspace(ctx, admin.ID, ws.ID)
	require.NoError(t, err)
	res, err = svc.Remove(ctx, adminM.ID, ws.ID, admin.ID)
	require.NoError(t, err)
	assert.True(t, res.IsSelfRemoval)

	ownerM, err := membershipstore.New(fx.DB()).GetByUserWorkspace(ctx, owner.ID, ws.ID)
	require.NoError(t, err)
	_, err = svc.Remove(ctx, ownerM.ID, ws.ID, owner.ID)
	assert.ErrorIs(t, err, membership.ErrOwnerRemoval)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestLeave(t *testing.T) {
	svc, fx, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	ws := fx.CreateWorkspace(ctx, "WS", owner.ID)
	other := fx.CreateWorkspace(ctx, "Other", owner.ID)
	member := fx.CreateUser(ctx, "Member", "member@example.com")
	fx.CreateMembership(ctx, member.ID, ws.ID, authz.RoleMember)
	fx.CreateMembership(ctx, member.ID, other.ID, authz.RoleMember)

	users := userstore.New(fx.DB())
	require.NoError(t, users.SetCurrentWorkspace(ctx, member.ID, &other.ID))

	snap, err := svc.Leave(ctx, member.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, snap.User.ID)

	// Current workspace points elsewhere and is kept.
	u, err := users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, u.CurrentWorkspace)
	assert.Equal(t, other.ID, *u.CurrentWorkspace)

	_, err = svc.Leave(ctx, member.ID, ws.ID)
	assert.ErrorIs(t, err, membership.ErrNotMember)

	_, err = svc.Leave(ctx, owner.ID, ws.ID)
	assert.ErrorIs(t, err, membership.ErrOwnerLeave)

	n, err := svc.Count(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCount_MissingWorkspace(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := svc.Count(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, membership.ErrWorkspaceNotFound)
}

func TestCheckOwnerInvariant(t *testing.T) {
	svc, fx, rec := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner", "owner@example.com")
	healthy := fx.CreateWorkspace(ctx, "Healthy", owner.ID)
	broken := fx.CreateWorkspace(ctx, "Broken", owner.ID)
	member := fx.CreateUser(ctx, "Member", "member@example.com")
	fx.CreateMembership(ctx, member.ID, healthy.ID, authz.RoleMember)

	v, err := svc.CheckOwnerInvariant(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.Equal(t, 0, rec.violations)

	_, err = fx.DB().Collection(membershipstore.Collection).DeleteOne(ctx, bson.M{"user_id": owner.ID, "workspace_id": broken.ID})
	require.NoError(t, err)
	fx.CreateMembership(ctx, member.ID, broken.ID, authz.RoleOwner)

	v, err = svc.CheckOwnerInvariant(ctx)
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.Equal(t, broken.ID, v[0].WorkspaceID)
	assert.Equal(t, membership.ReasonOwnerNotMember, v[0].Reason)
	assert.Equal(t, membership.ReasonExtraOwners, v[1].Reason)
	assert.Equal(t, 2, rec.violations)
}

