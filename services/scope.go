package services

import (
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/commtrack/commtrack_backend/models"
)

// AccessScope narrows every read and write to the rows the acting user may
// touch. Admins and owners see everything; agent-role users see only the
// rows belonging to their associated agent. An agent who has not been
// associated yet resolves to the empty set, which the caller renders as
// "no data" rather than an error.
type AccessScope struct {
	Role              string
	AssociatedAgentID *primitive.ObjectID
}

// NewAccessScope builds a scope from the identity tuple carried in the JWT.
func NewAccessScope(role string, associatedAgentID *primitive.ObjectID) AccessScope {
	return AccessScope{Role: role, AssociatedAgentID: associatedAgentID}
}

// IsManager reports whether the scope is unrestricted (admin or owner).
func (s AccessScope) IsManager() bool {
	return s.Role == models.RoleAdmin || s.Role == models.RoleOwner
}

// matchNothing is a filter no document satisfies, used for agent-role users
// with no association: their listings are empty, not errors.
func matchNothing(field string) bson.M {
	return bson.M{field: primitive.NilObjectID}
}

// AgentFilter scopes the agents collection.
func (s AccessScope) AgentFilter() bson.M {
	if s.IsManager() {
		return bson.M{}
	}
	if s.AssociatedAgentID == nil {
		return matchNothing("_id")
	}
	return bson.M{"_id": *s.AssociatedAgentID}
}

// ClientFilter scopes the clients collection.
func (s AccessScope) ClientFilter() bson.M {
	if s.IsManager() {
		return bson.M{}
	}
	if s.AssociatedAgentID == nil {
		return matchNothing("agentId")
	}
	return bson.M{"agentId": *s.AssociatedAgentID}
}

// TransactionFilter scopes the transactions collection.
func (s AccessScope) TransactionFilter() bson.M {
	if s.IsManager() {
		return bson.M{}
	}
	if s.AssociatedAgentID == nil {
		return matchNothing("clientId")
	}
	return bson.M{"clientId": *s.AssociatedAgentID}
}

// CanMutateTransaction reports whether the scope may create or update a
// transaction attributed to the given agent.
func (s AccessScope) CanMutateTransaction(clientID primitive.ObjectID) bool {
	if s.IsManager() {
		return true
	}
	return s.AssociatedAgentID != nil && *s.AssociatedAgentID == clientID
}

// CanManage reports whether the scope may perform admin-level mutations
// (agent/client management, user administration, invoice state).
func (s AccessScope) CanManage() bool {
	return s.IsManager()
}

// CanDeleteUser reports whether the scope may delete the target user.
// Only owners delete users, and never another owner.
func (s AccessScope) CanDeleteUser(target *models.User) bool {
	return s.Role == models.RoleOwner && target.Role != models.RoleOwner
}

// ApprovalPolicy is the single source of truth for who may approve a
// commission. The roles come from the APPROVAL_ROLES environment variable
// (comma separated), defaulting to admin and owner; deployments wanting the
// stricter owner-only rule set APPROVAL_ROLES=owner.
type ApprovalPolicy struct {
	roles map[string]bool
}

// LoadApprovalPolicy reads APPROVAL_ROLES from the environment.
func LoadApprovalPolicy() ApprovalPolicy {
	return ParseApprovalPolicy(os.Getenv("APPROVAL_ROLES"))
}

// ParseApprovalPolicy builds a policy from a comma separated role list.
func ParseApprovalPolicy(spec string) ApprovalPolicy {
	roles := make(map[string]bool)
	for _, r := range strings.Split(spec, ",") {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			roles[r] = true
		}
	}
	if len(roles) == 0 {
		roles[models.RoleAdmin] = true
		roles[models.RoleOwner] = true
	}
	return ApprovalPolicy{roles: roles}
}

// MayApprove reports whether the given role may approve commissions.
func (p ApprovalPolicy) MayApprove(role string) bool {
	return p.roles[role]
}
