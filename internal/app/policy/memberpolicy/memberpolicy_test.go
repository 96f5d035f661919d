package memberpolicy_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dalemusser/teamhub/internal/app/policy/memberpolicy"
	"github.com/dalemusser/teamhub/internal/app/services/membership"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeRoles struct {
	role string
	err  error
}

func (f fakeRoles) GetRoleInWorkspace(context.Context, primitive.ObjectID, primitive.ObjectID) (string, error) {
	return f.role, f.err
}

func TestGate_Require(t *testing.T) {
	user := testutil.RandomUser()
	wsID := primitive.NewObjectID().Hex()

	tests := []struct {
		name       string
		roles      fakeRoles
		signedIn   bool
		wsParam    string
		perms      []string
		wantStatus int
		wantMsg    string
	}{
		{"owner may remove", fakeRoles{role: authz.RoleOwner}, true, wsID, []string{authz.RemoveMember}, http.StatusOK, ""},
		{"member may view", fakeRoles{role: authz.RoleMember}, true, wsID, []string{authz.ViewOnly}, http.StatusOK, ""},
		{"member may not add", fakeRoles{role: authz.RoleMember}, true, wsID, []string{authz.AddMember}, http.StatusForbidden, "You do not have permission to perform this action"},
		{"dangling role", fakeRoles{role: ""}, true, wsID, []string{authz.ViewOnly}, http.StatusForbidden, ""},
		{"signed out", fakeRoles{role: authz.RoleOwner}, false, wsID, []string{authz.ViewOnly}, http.StatusUnauthorized, "Unauthorized"},
		{"malformed id", fakeRoles{role: authz.RoleOwner}, true, "nope", []string{authz.ViewOnly}, http.StatusNotFound, "Workspace not found"},
		{"missing workspace", fakeRoles{err: membership.ErrWorkspaceNotFound}, true, wsID, []string{authz.ViewOnly}, http.StatusNotFound, "Workspace not found"},
		{"non-member", fakeRoles{err: membership.ErrUserNotMember}, true, wsID, []string{authz.ViewOnly}, http.StatusNotFound, "Workspace not found"},
		{"store failure", fakeRoles{err: errors.New("boom")}, true, wsID, []string{authz.ViewOnly}, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := memberpolicy.New(tt.roles, nil)

			var got memberpolicy.Access
			reached := false
			h := gate.Require(tt.perms...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				got, _ = memberpolicy.FromRequest(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := testutil.NewRequest(http.MethodGet, "/member/workspace/"+tt.wsParam+"/all")
			if tt.signedIn {
				req = testutil.WithUser(req, user)
			}
			req = testutil.WithChiURLParams(req, memberpolicy.WorkspaceParam, tt.wsParam)

			rec := testutil.NewRecorder()
			h.ServeHTTP(rec, req)

			rec.AssertStatus(t, tt.wantStatus)
			if want := tt.wantStatus == http.StatusOK; reached != want {
				t.Errorf("handler reached = %v, want %v", reached, want)
			}
			if tt.wantMsg != "" {
				rec.AssertMessage(t, tt.wantMsg)
			}
			if reached {
				if got.Role != tt.roles.role {
					t.Errorf("Access.Role = %q, want %q", got.Role, tt.roles.role)
				}
				if got.WorkspaceID.Hex() != tt.wsParam {
					t.Errorf("Access.WorkspaceID = %s, want %s", got.WorkspaceID.Hex(), tt.wsParam)
				}
				if got.UserID.Hex() != user.ID {
					t.Errorf("Access.UserID = %s, want %s", got.UserID.Hex(), user.ID)
				}
			}
		})
	}
}

func TestAccess_Can(t *testing.T) {
	a := memberpolicy.Access{Role: authz.RoleAdmin}
	if !a.Can(authz.AddMember) {
		t.Error("ADMIN should be able to add members")
	}
	if a.Can(authz.DeleteWorkspace) {
		t.Error("ADMIN should not be able to delete the workspace")
	}

	r := memberpolicy.WithAccess(testutil.NewRequest(http.MethodGet, "/"), a)
	got, ok := memberpolicy.FromRequest(r)
	if !ok {
		t.Fatal("expected Access on request")
	}
	if got.Role != authz.RoleAdmin {
		t.Errorf("Role = %q, want ADMIN", got.Role)
	}

	if _, ok := memberpolicy.FromRequest(testutil.NewRequest(http.MethodGet, "/")); ok {
		t.Error("expected no Access on a bare request")
	}
}
