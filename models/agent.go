package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Agent is a commission-earning party tracked by the dashboard.
// CommissionRate is a percentage in [0,100] and is the default rate
// applied to the agent's transactions when no override is present.
type Agent struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	FirstName      string             `json:"firstName" bson:"firstName"`
	LastName       string             `json:"lastName" bson:"lastName"`
	Company        string             `json:"company,omitempty" bson:"company,omitempty"`
	Email          string             `json:"email" bson:"email"`
	CommissionRate float64            `json:"commissionRate" bson:"commissionRate"`

	// Running totals shown on the dashboard. Informational only; they are
	// not derived from the transactions collection.
	TotalEarnings float64    `json:"totalEarnings" bson:"totalEarnings"`
	LastPayment   *time.Time `json:"lastPayment,omitempty" bson:"lastPayment,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DisplayName returns the name rendered in transaction listings.
func (a *Agent) DisplayName() string {
	if a.Company != "" {
		return a.Company
	}
	return a.FirstName + " " + a.LastName
}

// AgentRequest is the payload for creating or updating an agent.
type AgentRequest struct {
	FirstName      string  `json:"firstName" validate:"required"`
	LastName       string  `json:"lastName" validate:"required"`
	Company        string  `json:"company"`
	Email          string  `json:"email" validate:"required,email"`
	CommissionRate float64 `json:"commissionRate"`
}

// Disposition modes for deleting an agent.
const (
	DispositionUnlink   = "unlink"
	DispositionReassign = "reassign"
)

// DeleteAgentRequest carries the disposition for the agent's dependents:
// either unlink them or reassign them to another agent.
type DeleteAgentRequest struct {
	Disposition string `json:"disposition" validate:"required,oneof=unlink reassign"`
	ReassignTo  string `json:"reassignTo,omitempty"`
}
