package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity actions recorded in activity_logs.
const (
	ActionWorkspaceCreated   = "workspace_created"
	ActionWorkspaceJoined    = "workspace_joined"
	ActionWorkspaceLeft      = "workspace_left"
	ActionInviteCodeReset    = "invite_code_reset"
	ActionMemberAdded        = "member_added"
	ActionMemberRemoved      = "member_removed"
	ActionMemberRoleUpdated  = "member_role_updated"
	ActionLogin              = "login"
	ActionLogout             = "logout"
	ActionRegistered         = "registered"
	ActionProfileUpdated     = "profile_updated"
	ActionPasswordChanged    = "password_changed"
	ActionAccountDeactivated = "account_deactivated"
)

// Resource types an activity can point at.
const (
	ResourceWorkspace = "workspace"
	ResourceProject   = "project"
	ResourceTask      = "task"
	ResourceMember    = "member"
	ResourceUser      = "user"
)

// ResourceTypes lists every valid resource type.
var ResourceTypes = []string{ResourceWorkspace, ResourceProject, ResourceTask, ResourceMember, ResourceUser}

// ActivityLog is an append-only audit record. Entries expire after 90 days
// via the TTL index on created_at.
type ActivityLog struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID  `bson:"user_id" json:"userId"`
	Action       string              `bson:"action" json:"action"`
	ResourceType string              `bson:"resource_type" json:"resourceType"`
	ResourceID   *primitive.ObjectID `bson:"resource_id,omitempty" json:"resourceId,omitempty"`
	WorkspaceID  *primitive.ObjectID `bson:"workspace_id,omitempty" json:"workspaceId,omitempty"`
	Metadata     map[string]string   `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IPAddress    string              `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
	UserAgent    string              `bson:"user_agent,omitempty" json:"userAgent,omitempty"`
	CreatedAt    time.Time           `bson:"created_at" json:"createdAt"`
}
