package services

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commtrack/commtrack_backend/models"
	"github.com/commtrack/commtrack_backend/utils"
)

// TransactionWorkflow owns every state change on a transaction: invoice
// payment, commission approval, commission payout and plain edits. All
// guarded moves are single conditional updates so the guard is evaluated
// against the freshest persisted state, never a value read earlier in the
// request.
type TransactionWorkflow struct {
	DB       *mongo.Database
	Audit    *AuditService
	Notifier *Notifier
	Policy   ApprovalPolicy

	// freezePaidCommissions stops edits from recomputing the commission of
	// a transaction whose commission has already been paid out. Off by
	// default: the dashboard historically recomputed unconditionally.
	freezePaidCommissions bool
}

// NewTransactionWorkflow creates the workflow service.
func NewTransactionWorkflow(db *mongo.Database, audit *AuditService, notifier *Notifier) *TransactionWorkflow {
	return &TransactionWorkflow{
		DB:                    db,
		Audit:                 audit,
		Notifier:              notifier,
		Policy:                LoadApprovalPolicy(),
		freezePaidCommissions: os.Getenv("FREEZE_PAID_COMMISSIONS") == "true",
	}
}

func (w *TransactionWorkflow) transactions() *mongo.Collection {
	return w.DB.Collection("transactions")
}

// validateTransactionState checks the invariants every persisted
// transaction must satisfy.
func validateTransactionState(t *models.Transaction) error {
	if t.Amount < 0 {
		return ErrValidation
	}
	if t.CommissionOverride != nil && !ValidRate(*t.CommissionOverride) {
		return ErrValidation
	}
	if t.IsPaid && t.DatePaid == nil {
		return ErrValidation
	}
	if !t.IsPaid && t.DatePaid != nil {
		return ErrValidation
	}
	if t.IsApproved && !t.IsPaid {
		return ErrInvalidStateTransition
	}
	if t.CommissionPaidDate != nil && !t.IsApproved {
		return ErrInvalidStateTransition
	}
	return nil
}

// rateSources looks up the client override and agent rate feeding the
// resolver for a transaction. A missing agent yields a nil rate; the
// resolved commission is then 0 and the row shows up as a data-integrity
// warning in listings, not an error.
func (w *TransactionWorkflow) rateSources(ctx context.Context, t *models.Transaction) (clientOverride, agentRate *float64) {
	if t.ClientInfoID != nil {
		var client models.ClientInfo
		err := w.DB.Collection("clients").FindOne(ctx, bson.M{"_id": *t.ClientInfoID}).Decode(&client)
		if err == nil {
			clientOverride = client.CommissionOverride
		} else if err != mongo.ErrNoDocuments {
			log.Printf("Error loading client %s for commission resolution: %v", t.ClientInfoID.Hex(), err)
		}
	}

	var agent models.Agent
	err := w.DB.Collection("agents").FindOne(ctx, bson.M{"_id": t.ClientID}).Decode(&agent)
	if err == nil {
		rate := agent.CommissionRate
		agentRate = &rate
	} else if err != mongo.ErrNoDocuments {
		log.Printf("Error loading agent %s for commission resolution: %v", t.ClientID.Hex(), err)
	}
	return clientOverride, agentRate
}

// recompute resolves and stores the effective commission on t.
func (w *TransactionWorkflow) recompute(ctx context.Context, t *models.Transaction) {
	clientOverride, agentRate := w.rateSources(ctx, t)
	_, t.Commission = ResolveCommission(t.Amount, t.CommissionOverride, clientOverride, agentRate)
}

// Create inserts a new transaction after scope and invariant checks. The
// commission is resolved before the insert; is_paid may be set on creation,
// approval and commission payment may not.
func (w *TransactionWorkflow) Create(ctx context.Context, scope AccessScope, t *models.Transaction) (*models.Transaction, error) {
	if !scope.CanMutateTransaction(t.ClientID) {
		return nil, ErrForbidden
	}
	t.IsApproved = false
	t.CommissionPaidDate = nil
	if t.IsPaid && t.ReferenceNumber == "" {
		t.ReferenceNumber = utils.GenerateReference()
	}
	if err := validateTransactionState(t); err != nil {
		return nil, err
	}

	w.recompute(ctx, t)
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	result, err := w.transactions().InsertOne(ctx, t)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid
	}
	return t, nil
}

// authorizeEditTransitions gates the workflow fields on the edit path so a
// plain PUT cannot reach a state the dedicated endpoints would refuse. Any
// change to the invoice or commission state requires an unrestricted scope,
// and an approval flip additionally requires an approval-policy role.
func (w *TransactionWorkflow) authorizeEditTransitions(scope AccessScope, existing, next *models.Transaction) error {
	changed := existing.IsPaid != next.IsPaid ||
		existing.IsApproved != next.IsApproved ||
		!equalTimePtr(existing.DatePaid, next.DatePaid) ||
		!equalTimePtr(existing.CommissionPaidDate, next.CommissionPaidDate)
	if !changed {
		return nil
	}
	if !scope.CanManage() {
		return ErrForbidden
	}
	if next.IsApproved && !existing.IsApproved && !w.Policy.MayApprove(scope.Role) {
		return ErrForbidden
	}
	return nil
}

func equalTimePtr(a, b *time.Time) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.Equal(*b)
}

// editGuardFilter pins the replace to the workflow state the edit was
// computed from. A concurrent approve or payout changes one of these fields
// and makes the replace match nothing instead of wiping the newer state.
func editGuardFilter(id primitive.ObjectID, existing *models.Transaction) bson.M {
	return bson.M{
		"_id":                id,
		"isPaid":             existing.IsPaid,
		"isApproved":         existing.IsApproved,
		"commissionPaidDate": existing.CommissionPaidDate,
	}
}

// auditEditTransitions records the workflow transitions an edit performed,
// under the same actions the dedicated endpoints use.
func (w *TransactionWorkflow) auditEditTransitions(ctx context.Context, actorID primitive.ObjectID, existing, next *models.Transaction) {
	switch {
	case next.IsPaid && !existing.IsPaid:
		w.Audit.Record(ctx, actorID, models.AuditInvoiceMarkedPaid, next.ID, map[string]interface{}{
			"datePaid":      next.DatePaid,
			"paymentMethod": next.PaymentMethod,
		})
	case !next.IsPaid && existing.IsPaid:
		w.Audit.Record(ctx, actorID, models.AuditInvoiceMarkedUnpaid, next.ID, nil)
	}
	if next.IsApproved && !existing.IsApproved {
		w.Audit.Record(ctx, actorID, models.AuditCommissionApproved, next.ID, map[string]interface{}{
			"commission": next.Commission,
		})
	}
	if next.CommissionPaidDate != nil && existing.CommissionPaidDate == nil {
		w.Audit.Record(ctx, actorID, models.AuditCommissionPaid, next.ID, map[string]interface{}{
			"commission": next.Commission,
			"paidDate":   next.CommissionPaidDate,
		})
	}
}

// Edit applies an edit to a transaction. The edit must leave the record in
// a valid state; in particular re-opening an approved transaction
// (is_approved=false) must also clear the commission paid date. Workflow
// fields may only move under an unrestricted scope, approval flips only
// under an approval-policy role, and the transitions are audited the same
// way the dedicated endpoints audit them. Any change to the amount or an
// override input re-resolves the commission, including on transactions
// already marked commission-paid, unless the freeze flag is set.
func (w *TransactionWorkflow) Edit(ctx context.Context, scope AccessScope, actorID, id primitive.ObjectID, apply func(*models.Transaction)) (*models.Transaction, error) {
	var existing models.Transaction
	filter := scope.TransactionFilter()
	filter["_id"] = id
	err := w.transactions().FindOne(ctx, filter).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	next := existing
	apply(&next)
	next.ID = existing.ID

	if !scope.CanMutateTransaction(next.ClientID) {
		return nil, ErrForbidden
	}
	if err := w.authorizeEditTransitions(scope, &existing, &next); err != nil {
		return nil, err
	}
	if next.IsPaid && !existing.IsPaid && next.DatePaid == nil {
		return nil, ErrValidation
	}
	if !next.IsPaid {
		next.DatePaid = nil
	}
	if err := validateTransactionState(&next); err != nil {
		return nil, err
	}

	if w.freezePaidCommissions && existing.CommissionPaidDate != nil {
		next.Commission = existing.Commission
	} else {
		w.recompute(ctx, &next)
	}
	next.UpdatedAt = time.Now()

	// The replace carries the workflow state the edit was computed from; a
	// concurrent approve or payout makes it match nothing.
	result, err := w.transactions().ReplaceOne(ctx, editGuardFilter(id, &existing), &next)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if result.MatchedCount == 0 {
		return nil, ErrStoreUnavailable
	}

	w.auditEditTransitions(ctx, actorID, &existing, &next)
	return &next, nil
}

// SetInvoicePaid marks the invoice paid or unpaid. Marking paid requires a
// payment date and method; marking unpaid clears the payment date and is
// refused while the commission is approved, since approval requires a paid
// invoice.
func (w *TransactionWorkflow) SetInvoicePaid(ctx context.Context, actorID primitive.ObjectID, id primitive.ObjectID, req *models.InvoicePaymentRequest) (*models.Transaction, error) {
	if req.IsPaid {
		return w.markInvoicePaid(ctx, actorID, id, req)
	}
	return w.markInvoiceUnpaid(ctx, actorID, id)
}

func (w *TransactionWorkflow) markInvoicePaid(ctx context.Context, actorID, id primitive.ObjectID, req *models.InvoicePaymentRequest) (*models.Transaction, error) {
	if req.DatePaid == nil || req.PaymentMethod == "" {
		return nil, ErrValidation
	}
	reference := req.ReferenceNumber
	if reference == "" {
		reference = utils.GenerateReference()
	}

	var updated models.Transaction
	err := w.transactions().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"isPaid":          true,
			"datePaid":        req.DatePaid,
			"paymentMethod":   req.PaymentMethod,
			"referenceNumber": reference,
			"updatedAt":       time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	w.Audit.Record(ctx, actorID, models.AuditInvoiceMarkedPaid, id, map[string]interface{}{
		"datePaid":      req.DatePaid,
		"paymentMethod": req.PaymentMethod,
	})
	return &updated, nil
}

func (w *TransactionWorkflow) markInvoiceUnpaid(ctx context.Context, actorID, id primitive.ObjectID) (*models.Transaction, error) {
	// Conditional on is_approved=false: reverting the invoice under an
	// approved commission would break the approved-requires-paid invariant.
	var updated models.Transaction
	err := w.transactions().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isApproved": false},
		bson.M{
			"$set":   bson.M{"isPaid": false, "updatedAt": time.Now()},
			"$unset": bson.M{"datePaid": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		w.Audit.Record(ctx, actorID, models.AuditInvoiceMarkedUnpaid, id, nil)
		return &updated, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, ErrStoreUnavailable
	}

	var current models.Transaction
	err = w.transactions().FindOne(ctx, bson.M{"_id": id}).Decode(&current)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	return nil, classifyUnpaidConflict(&current)
}

// Approve moves a commission from unapproved to approved. The guard is a
// single conditional update on is_paid=true evaluated at commit time. The
// override path skips the guard after an explicit confirmation and is
// audited under its own action. Approving an already-approved transaction
// is a no-op success so dashboard retries stay harmless.
func (w *TransactionWorkflow) Approve(ctx context.Context, actor AccessScope, actorID, id primitive.ObjectID, overrideUnpaidGuard bool) (*models.Transaction, error) {
	if !w.Policy.MayApprove(actor.Role) {
		return nil, ErrForbidden
	}

	filter := bson.M{"_id": id, "isApproved": false}
	if !overrideUnpaidGuard {
		filter["isPaid"] = true
	}

	var updated models.Transaction
	err := w.transactions().FindOneAndUpdate(ctx,
		filter,
		bson.M{"$set": bson.M{"isApproved": true, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		action := models.AuditCommissionApproved
		if overrideUnpaidGuard {
			action = models.AuditCommissionApproveOverride
		}
		w.Audit.Record(ctx, actorID, action, id, map[string]interface{}{
			"commission": updated.Commission,
		})
		w.Notifier.CommissionApproved(&updated)
		return &updated, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, ErrStoreUnavailable
	}

	var current models.Transaction
	err = w.transactions().FindOne(ctx, bson.M{"_id": id}).Decode(&current)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	return classifyApproveConflict(&current)
}

// PayCommission records the commission payout. Both guards (approved and
// invoice still paid) are re-checked atomically at commit time, since the
// invoice state can change between approval and payout. Paying an already
// paid commission is a no-op success.
func (w *TransactionWorkflow) PayCommission(ctx context.Context, actor AccessScope, actorID, id primitive.ObjectID, req *models.PayCommissionRequest) (*models.Transaction, error) {
	if !actor.CanManage() {
		return nil, ErrForbidden
	}
	if req.PaidDate == nil {
		return nil, ErrValidation
	}
	reference := req.ReferenceNumber
	if reference == "" {
		reference = utils.GenerateReference()
	}

	var updated models.Transaction
	err := w.transactions().FindOneAndUpdate(ctx,
		bson.M{
			"_id":                id,
			"isApproved":         true,
			"isPaid":             true,
			"commissionPaidDate": nil,
		},
		bson.M{"$set": bson.M{
			"commissionPaidDate": req.PaidDate,
			"updatedAt":          time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		w.Audit.Record(ctx, actorID, models.AuditCommissionPaid, id, map[string]interface{}{
			"commission":      updated.Commission,
			"paidDate":        req.PaidDate,
			"paymentMethod":   req.PaymentMethod,
			"referenceNumber": reference,
		})
		w.Notifier.CommissionPaid(&updated)
		return &updated, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, ErrStoreUnavailable
	}

	var current models.Transaction
	err = w.transactions().FindOne(ctx, bson.M{"_id": id}).Decode(&current)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	return classifyPayConflict(&current)
}

// classifyApproveConflict explains why the conditional approve update
// matched nothing, given the current persisted state.
func classifyApproveConflict(current *models.Transaction) (*models.Transaction, error) {
	if current.IsApproved {
		// Already approved: idempotent success.
		return current, nil
	}
	if !current.IsPaid {
		return nil, ErrInvoiceNotPaid
	}
	// The record changed under us between the update and the re-read; the
	// whole mutation is safe to retry.
	return nil, ErrStoreUnavailable
}

// classifyPayConflict explains a failed conditional commission payout.
func classifyPayConflict(current *models.Transaction) (*models.Transaction, error) {
	if current.CommissionPaidDate != nil {
		return current, nil
	}
	if !current.IsApproved {
		return nil, ErrInvalidStateTransition
	}
	if !current.IsPaid {
		return nil, ErrInvoiceNotPaid
	}
	return nil, ErrStoreUnavailable
}

// classifyUnpaidConflict explains a refused invoice-unpaid revert.
func classifyUnpaidConflict(current *models.Transaction) error {
	if current.IsApproved {
		return ErrInvalidStateTransition
	}
	return ErrStoreUnavailable
}

// RecomputeForAgent re-resolves the commission of every transaction
// attributed to the agent, after the agent's default rate changed.
func (w *TransactionWorkflow) RecomputeForAgent(ctx context.Context, agentID primitive.ObjectID) error {
	return w.recomputeMatching(ctx, bson.M{"clientId": agentID})
}

// RecomputeForClient re-resolves the commission of every transaction linked
// to the client record, after the client's override changed.
func (w *TransactionWorkflow) RecomputeForClient(ctx context.Context, clientInfoID primitive.ObjectID) error {
	return w.recomputeMatching(ctx, bson.M{"clientInfoId": clientInfoID})
}

func (w *TransactionWorkflow) recomputeMatching(ctx context.Context, filter bson.M) error {
	cursor, err := w.transactions().Find(ctx, filter)
	if err != nil {
		return ErrStoreUnavailable
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var t models.Transaction
		if err := cursor.Decode(&t); err != nil {
			log.Printf("Error decoding transaction during recompute: %v", err)
			continue
		}
		if w.freezePaidCommissions && t.CommissionPaidDate != nil {
			continue
		}
		previous := t.Commission
		w.recompute(ctx, &t)
		if t.Commission == previous {
			continue
		}
		_, err := w.transactions().UpdateOne(ctx,
			bson.M{"_id": t.ID},
			bson.M{"$set": bson.M{"commission": t.Commission, "updatedAt": time.Now()}},
		)
		if err != nil {
			log.Printf("Error updating commission for transaction %s: %v", t.ID.Hex(), err)
		}
	}
	if err := cursor.Err(); err != nil {
		return ErrStoreUnavailable
	}
	return nil
}

// Delete removes a transaction within the caller's scope.
func (w *TransactionWorkflow) Delete(ctx context.Context, scope AccessScope, id primitive.ObjectID) error {
	if !scope.CanManage() {
		return ErrForbidden
	}
	result, err := w.transactions().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return ErrStoreUnavailable
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IsConflict reports whether the error is one of the guard failures that
// are part of the workflow contract rather than infrastructure faults.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvoiceNotPaid) || errors.Is(err, ErrInvalidStateTransition)
}
