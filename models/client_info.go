package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientInfo is a billable client company. AgentID is a weak reference used
// for lookups only; it is cleared or reassigned when the agent is deleted.
// CommissionOverride, when set, takes precedence over the agent's default
// rate for transactions linked to this client.
type ClientInfo struct {
	ID                 primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	CompanyName        string              `json:"companyName" bson:"companyName"`
	AgentID            *primitive.ObjectID `json:"agentId,omitempty" bson:"agentId,omitempty"`
	CommissionOverride *float64            `json:"commissionOverride,omitempty" bson:"commissionOverride,omitempty"`
	AccountingID       string              `json:"accountingId,omitempty" bson:"accountingId,omitempty"`
	CreatedAt          time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// ClientInfoRequest is the payload for creating or updating a client.
// AgentID and CommissionOverride accept the legacy "none" sentinel from
// older dashboard builds; it is normalized to absent at the API edge and
// never reaches the stored model.
type ClientInfoRequest struct {
	CompanyName        string `json:"companyName" validate:"required"`
	AgentID            string `json:"agentId,omitempty"`
	CommissionOverride string `json:"commissionOverride,omitempty"`
	AccountingID       string `json:"accountingId,omitempty"`
}
