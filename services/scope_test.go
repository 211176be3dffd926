package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/commtrack/commtrack_backend/models"
)

func TestAccessScopeManagerSeesEverything(t *testing.T) {
	for _, role := range []string{models.RoleAdmin, models.RoleOwner} {
		scope := NewAccessScope(role, nil)
		assert.True(t, scope.IsManager())
		assert.Equal(t, bson.M{}, scope.AgentFilter())
		assert.Equal(t, bson.M{}, scope.ClientFilter())
		assert.Equal(t, bson.M{}, scope.TransactionFilter())
	}
}

func TestAccessScopeAssociatedAgent(t *testing.T) {
	agentID := primitive.NewObjectID()
	scope := NewAccessScope(models.RoleAgent, &agentID)

	assert.False(t, scope.IsManager())
	assert.Equal(t, bson.M{"_id": agentID}, scope.AgentFilter())
	assert.Equal(t, bson.M{"agentId": agentID}, scope.ClientFilter())
	assert.Equal(t, bson.M{"clientId": agentID}, scope.TransactionFilter())
}

func TestAccessScopeUnassociatedAgentMatchesNothing(t *testing.T) {
	// An agent-role user with no association gets empty listings, not
	// errors. The filters must match no real document.
	scope := NewAccessScope(models.RoleAgent, nil)

	assert.Equal(t, bson.M{"_id": primitive.NilObjectID}, scope.AgentFilter())
	assert.Equal(t, bson.M{"agentId": primitive.NilObjectID}, scope.ClientFilter())
	assert.Equal(t, bson.M{"clientId": primitive.NilObjectID}, scope.TransactionFilter())
}

func TestCanMutateTransaction(t *testing.T) {
	mine := primitive.NewObjectID()
	other := primitive.NewObjectID()

	admin := NewAccessScope(models.RoleAdmin, nil)
	assert.True(t, admin.CanMutateTransaction(other))

	associated := NewAccessScope(models.RoleAgent, &mine)
	assert.True(t, associated.CanMutateTransaction(mine))
	assert.False(t, associated.CanMutateTransaction(other))

	unassociated := NewAccessScope(models.RoleAgent, nil)
	assert.False(t, unassociated.CanMutateTransaction(mine))
}

func TestCanDeleteUser(t *testing.T) {
	owner := NewAccessScope(models.RoleOwner, nil)
	admin := NewAccessScope(models.RoleAdmin, nil)

	assert.True(t, owner.CanDeleteUser(&models.User{Role: models.RoleAdmin}))
	assert.True(t, owner.CanDeleteUser(&models.User{Role: models.RoleAgent}))
	assert.False(t, owner.CanDeleteUser(&models.User{Role: models.RoleOwner}))
	assert.False(t, admin.CanDeleteUser(&models.User{Role: models.RoleAgent}))
}

func TestParseApprovalPolicy(t *testing.T) {
	tests := []struct {
		name string
		spec string
		may  []string
		deny []string
	}{
		{
			name: "empty spec defaults to admin and owner",
			spec: "",
			may:  []string{models.RoleAdmin, models.RoleOwner},
			deny: []string{models.RoleAgent},
		},
		{
			name: "owner only",
			spec: "owner",
			may:  []string{models.RoleOwner},
			deny: []string{models.RoleAdmin, models.RoleAgent},
		},
		{
			name: "whitespace and case are forgiven",
			spec: " Admin , OWNER ",
			may:  []string{models.RoleAdmin, models.RoleOwner},
			deny: []string{models.RoleAgent},
		},
		{
			name: "stray commas fall back to the default",
			spec: ", ,",
			may:  []string{models.RoleAdmin, models.RoleOwner},
			deny: []string{models.RoleAgent},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := ParseApprovalPolicy(tt.spec)
			for _, role := range tt.may {
				assert.True(t, policy.MayApprove(role), "role %s should approve", role)
			}
			for _, role := range tt.deny {
				assert.False(t, policy.MayApprove(role), "role %s should not approve", role)
			}
		})
	}
}
