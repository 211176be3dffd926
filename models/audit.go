package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audit actions recorded for privileged state changes.
const (
	AuditCommissionApproved        = "commission_approved"
	AuditCommissionApproveOverride = "commission_approve_override"
	AuditCommissionPaid            = "commission_paid"
	AuditInvoiceMarkedPaid         = "invoice_marked_paid"
	AuditInvoiceMarkedUnpaid       = "invoice_marked_unpaid"
	AuditAgentDeleted              = "agent_deleted"
	AuditAgentAssociationChanged   = "agent_association_changed"
	AuditUserRoleChanged           = "user_role_changed"
	AuditUserPasswordReset         = "user_password_reset"
	AuditUserDeleted               = "user_deleted"
)

// AuditLog is one append-only record of a privileged state change. Writes
// are best-effort: a failed audit insert never fails the primary operation.
type AuditLog struct {
	ID            primitive.ObjectID     `json:"id,omitempty" bson:"_id,omitempty"`
	ActorID       primitive.ObjectID     `json:"actorId" bson:"actorId"`
	Action        string                 `json:"action" bson:"action"`
	RecordID      primitive.ObjectID     `json:"recordId,omitempty" bson:"recordId,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
	CorrelationID string                 `json:"correlationId" bson:"correlationId"`
	CreatedAt     time.Time              `json:"createdAt" bson:"createdAt"`
}
