package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/commtrack/commtrack_backend/models"
)

// AgentDisposition is the chosen handling for an agent's dependents when
// the agent is deleted: unlink them, or reassign them to another agent.
type AgentDisposition struct {
	Reassign   bool
	ReassignTo primitive.ObjectID
}

// AgentLifecycleManager retires an agent without orphaning dependents.
// User associations and client references are unlinked or reassigned and
// the agent row deleted, all inside one store transaction; transactions
// keep their historical clientId so the original attribution survives.
type AgentLifecycleManager struct {
	DB       *mongo.Database
	Audit    *AuditService
	Notifier *Notifier
}

// NewAgentLifecycleManager creates the lifecycle manager.
func NewAgentLifecycleManager(db *mongo.Database, audit *AuditService, notifier *Notifier) *AgentLifecycleManager {
	return &AgentLifecycleManager{DB: db, Audit: audit, Notifier: notifier}
}

// ValidateDisposition checks the lifecycle preconditions that do not need
// store state: a reassignment target must not be the agent itself.
func ValidateDisposition(agentID primitive.ObjectID, d AgentDisposition) error {
	if d.Reassign && d.ReassignTo == agentID {
		return ErrReassignTargetIsSelf
	}
	return nil
}

// DeleteAgent removes the agent under the given disposition. Either every
// dependent row is updated and the agent deleted, or nothing changes.
func (m *AgentLifecycleManager) DeleteAgent(ctx context.Context, actorID, agentID primitive.ObjectID, d AgentDisposition) error {
	if err := ValidateDisposition(agentID, d); err != nil {
		return err
	}

	agents := m.DB.Collection("agents")

	var agent models.Agent
	if err := agents.FindOne(ctx, bson.M{"_id": agentID}).Decode(&agent); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrAgentNotFound
		}
		return ErrStoreUnavailable
	}
	if d.Reassign {
		err := agents.FindOne(ctx, bson.M{"_id": d.ReassignTo}).Err()
		if err == mongo.ErrNoDocuments {
			return ErrReassignTargetNotFound
		}
		if err != nil {
			return ErrStoreUnavailable
		}
	}

	var userUpdate, clientUpdate bson.M
	if d.Reassign {
		userUpdate = bson.M{"$set": bson.M{"associatedAgentId": d.ReassignTo, "updatedAt": time.Now()}}
		clientUpdate = bson.M{"$set": bson.M{"agentId": d.ReassignTo, "updatedAt": time.Now()}}
	} else {
		userUpdate = bson.M{
			"$set":   bson.M{"isAssociated": false, "updatedAt": time.Now()},
			"$unset": bson.M{"associatedAgentId": ""},
		}
		clientUpdate = bson.M{
			"$set":   bson.M{"updatedAt": time.Now()},
			"$unset": bson.M{"agentId": ""},
		}
	}

	session, err := m.DB.Client().StartSession()
	if err != nil {
		return ErrStoreUnavailable
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := m.DB.Collection("users").UpdateMany(sc, bson.M{"associatedAgentId": agentID}, userUpdate); err != nil {
			return nil, err
		}
		if _, err := m.DB.Collection("clients").UpdateMany(sc, bson.M{"agentId": agentID}, clientUpdate); err != nil {
			return nil, err
		}
		result, err := agents.DeleteOne(sc, bson.M{"_id": agentID})
		if err != nil {
			return nil, err
		}
		if result.DeletedCount == 0 {
			return nil, mongo.ErrNoDocuments
		}
		return nil, nil
	})
	if err == mongo.ErrNoDocuments {
		// The agent vanished between the precondition check and the
		// transaction; the rollback left every dependent untouched.
		return ErrAgentNotFound
	}
	if err != nil {
		log.Printf("Agent lifecycle transaction failed for %s: %v", agentID.Hex(), err)
		return ErrStoreUnavailable
	}

	details := map[string]interface{}{"disposition": "unlink"}
	if d.Reassign {
		details["disposition"] = "reassign"
		details["reassignTo"] = d.ReassignTo.Hex()
	}
	m.Audit.Record(ctx, actorID, models.AuditAgentDeleted, agentID, details)
	m.Notifier.AgentDeleted(&agent)
	return nil
}
