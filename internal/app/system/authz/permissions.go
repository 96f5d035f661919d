package authz

import "sort"

// Role names.
const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// Permission tokens.
const (
	CreateWorkspace         = "CREATE_WORKSPACE"
	DeleteWorkspace         = "DELETE_WORKSPACE"
	EditWorkspace           = "EDIT_WORKSPACE"
	ManageWorkspaceSettings = "MANAGE_WORKSPACE_SETTINGS"

	AddMember        = "ADD_MEMBER"
	ChangeMemberRole = "CHANGE_MEMBER_ROLE"
	RemoveMember     = "REMOVE_MEMBER"

	CreateProject = "CREATE_PROJECT"
	EditProject   = "EDIT_PROJECT"
	DeleteProject = "DELETE_PROJECT"

	CreateTask = "CREATE_TASK"
	EditTask   = "EDIT_TASK"
	DeleteTask = "DELETE_TASK"

	ViewOnly = "VIEW_ONLY"
)

// AllPermissions is the closed set of permission tokens.
var AllPermissions = []string{
	CreateWorkspace, DeleteWorkspace, EditWorkspace, ManageWorkspaceSettings,
	AddMember, ChangeMemberRole, RemoveMember,
	CreateProject, EditProject, DeleteProject,
	CreateTask, EditTask, DeleteTask,
	ViewOnly,
}

// RoleNames lists the seeded roles.
var RoleNames = []string{RoleOwner, RoleAdmin, RoleMember}

var rolePermissions = map[string][]string{
	RoleOwner: AllPermissions,
	RoleAdmin: {
		AddMember, ChangeMemberRole, RemoveMember,
		EditWorkspace, ManageWorkspaceSettings,
		CreateProject, EditProject, DeleteProject,
		CreateTask, EditTask, DeleteTask,
		ViewOnly,
	},
	RoleMember: {
		ViewOnly, CreateTask, EditTask,
	},
}

var matrix = func() map[string]map[string]struct{} {
	m := make(map[string]map[string]struct{}, len(rolePermissions))
	for role, perms := range rolePermissions {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		m[role] = set
	}
	return m
}()

// PermissionsFor returns a sorted copy of the permissions held by roleName.
func PermissionsFor(roleName string) []string {
	perms := rolePermissions[roleName]
	out := make([]string, len(perms))
	copy(out, perms)
	sort.Strings(out)
	return out
}

// IsValidPermission reports whether p is a known permission token.
func IsValidPermission(p string) bool {
	_, ok := matrix[RoleOwner][p]
	return ok
}
