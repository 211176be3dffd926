package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValidateDisposition(t *testing.T) {
	agentID := primitive.NewObjectID()
	target := primitive.NewObjectID()

	assert.NoError(t, ValidateDisposition(agentID, AgentDisposition{}))
	assert.NoError(t, ValidateDisposition(agentID, AgentDisposition{Reassign: true, ReassignTo: target}))
	assert.ErrorIs(t,
		ValidateDisposition(agentID, AgentDisposition{Reassign: true, ReassignTo: agentID}),
		ErrReassignTargetIsSelf,
	)
}
