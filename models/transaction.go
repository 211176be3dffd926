package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction is one commission-bearing event. ClientID references the
// earning Agent and is kept even after that agent is deleted, so the
// historical attribution survives; readers render a dangling reference as
// "Unknown Agent". Commission is derived by the resolver and is never set
// directly by any other path.
type Transaction struct {
	ID           primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	ClientID     primitive.ObjectID  `json:"clientId" bson:"clientId"`
	ClientInfoID *primitive.ObjectID `json:"clientInfoId,omitempty" bson:"clientInfoId,omitempty"`
	Amount       float64             `json:"amount" bson:"amount"`

	// Invoice payment state, independent of commission approval/payment.
	IsPaid          bool       `json:"isPaid" bson:"isPaid"`
	DatePaid        *time.Time `json:"datePaid,omitempty" bson:"datePaid,omitempty"`
	PaymentMethod   string     `json:"paymentMethod,omitempty" bson:"paymentMethod,omitempty"`
	ReferenceNumber string     `json:"referenceNumber,omitempty" bson:"referenceNumber,omitempty"`

	// Commission workflow state. IsApproved requires IsPaid;
	// CommissionPaidDate requires IsApproved.
	IsApproved         bool       `json:"isApproved" bson:"isApproved"`
	CommissionPaidDate *time.Time `json:"commissionPaidDate,omitempty" bson:"commissionPaidDate,omitempty"`

	CommissionOverride *float64 `json:"commissionOverride,omitempty" bson:"commissionOverride,omitempty"`
	Commission         float64  `json:"commission" bson:"commission"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// TransactionView is a listing row enriched with the agent's display name.
type TransactionView struct {
	Transaction `bson:",inline"`
	AgentName   string `json:"agentName" bson:"-"`
}

// TransactionRequest is the payload for creating or updating a transaction.
// Optional references accept the legacy "none" sentinel and are normalized
// at the edge. Commission is absent on purpose: it is derived.
type TransactionRequest struct {
	ClientID           string     `json:"clientId" validate:"required"`
	ClientInfoID       string     `json:"clientInfoId,omitempty"`
	Amount             float64    `json:"amount"`
	IsPaid             *bool      `json:"isPaid,omitempty"`
	DatePaid           *time.Time `json:"datePaid,omitempty"`
	PaymentMethod      string     `json:"paymentMethod,omitempty"`
	ReferenceNumber    string     `json:"referenceNumber,omitempty"`
	IsApproved         *bool      `json:"isApproved,omitempty"`
	CommissionPaidDate *time.Time `json:"commissionPaidDate,omitempty"`
	CommissionOverride string     `json:"commissionOverride,omitempty"`
}

// InvoicePaymentRequest marks an invoice paid or unpaid.
type InvoicePaymentRequest struct {
	IsPaid          bool       `json:"isPaid"`
	DatePaid        *time.Time `json:"datePaid,omitempty"`
	PaymentMethod   string     `json:"paymentMethod,omitempty"`
	ReferenceNumber string     `json:"referenceNumber,omitempty"`
}

// ApproveCommissionRequest approves a commission. OverrideUnpaidGuard is
// the explicit confirmation path that bypasses the invoice-paid guard; it
// is audited under a separate action.
type ApproveCommissionRequest struct {
	OverrideUnpaidGuard bool `json:"overrideUnpaidGuard,omitempty"`
}

// PayCommissionRequest records the commission payout.
type PayCommissionRequest struct {
	PaidDate        *time.Time `json:"paidDate" validate:"required"`
	PaymentMethod   string     `json:"paymentMethod"`
	ReferenceNumber string     `json:"referenceNumber,omitempty"`
}
