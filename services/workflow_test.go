package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/commtrack/commtrack_backend/models"
)

func paidTransaction() models.Transaction {
	paid := time.Now()
	return models.Transaction{
		Amount:        1000,
		IsPaid:        true,
		DatePaid:      &paid,
		PaymentMethod: "bank_transfer",
	}
}

func TestValidateTransactionState(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		mutate  func(*models.Transaction)
		wantErr error
	}{
		{
			name:   "paid invoice is valid",
			mutate: func(t *models.Transaction) {},
		},
		{
			name: "unpaid invoice without date is valid",
			mutate: func(t *models.Transaction) {
				t.IsPaid = false
				t.DatePaid = nil
			},
		},
		{
			name:    "negative amount",
			mutate:  func(t *models.Transaction) { t.Amount = -1 },
			wantErr: ErrValidation,
		},
		{
			name:    "override above 100",
			mutate:  func(t *models.Transaction) { t.CommissionOverride = ptr(150) },
			wantErr: ErrValidation,
		},
		{
			name:    "paid without date",
			mutate:  func(t *models.Transaction) { t.DatePaid = nil },
			wantErr: ErrValidation,
		},
		{
			name: "unpaid with a stale date",
			mutate: func(t *models.Transaction) {
				t.IsPaid = false
			},
			wantErr: ErrValidation,
		},
		{
			name: "approved requires a paid invoice",
			mutate: func(t *models.Transaction) {
				t.IsPaid = false
				t.DatePaid = nil
				t.IsApproved = true
			},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name: "commission paid requires approval",
			mutate: func(t *models.Transaction) {
				t.CommissionPaidDate = &now
			},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name: "fully settled is valid",
			mutate: func(t *models.Transaction) {
				t.IsApproved = true
				t.CommissionPaidDate = &now
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := paidTransaction()
			tt.mutate(&txn)
			err := validateTransactionState(&txn)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestClassifyApproveConflict(t *testing.T) {
	t.Run("already approved is an idempotent success", func(t *testing.T) {
		txn := paidTransaction()
		txn.IsApproved = true
		current, err := classifyApproveConflict(&txn)
		assert.NoError(t, err)
		assert.Same(t, &txn, current)
	})

	t.Run("unpaid invoice blocks approval", func(t *testing.T) {
		txn := paidTransaction()
		txn.IsPaid = false
		txn.DatePaid = nil
		_, err := classifyApproveConflict(&txn)
		assert.ErrorIs(t, err, ErrInvoiceNotPaid)
	})

	t.Run("state that should have matched means a lost race", func(t *testing.T) {
		txn := paidTransaction()
		_, err := classifyApproveConflict(&txn)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestClassifyPayConflict(t *testing.T) {
	now := time.Now()

	t.Run("already paid is an idempotent success", func(t *testing.T) {
		txn := paidTransaction()
		txn.IsApproved = true
		txn.CommissionPaidDate = &now
		current, err := classifyPayConflict(&txn)
		assert.NoError(t, err)
		assert.Same(t, &txn, current)
	})

	t.Run("unapproved commission cannot be paid", func(t *testing.T) {
		txn := paidTransaction()
		_, err := classifyPayConflict(&txn)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("invoice reverted after approval blocks payout", func(t *testing.T) {
		txn := paidTransaction()
		txn.IsApproved = true
		txn.IsPaid = false
		txn.DatePaid = nil
		_, err := classifyPayConflict(&txn)
		assert.ErrorIs(t, err, ErrInvoiceNotPaid)
	})
}

func TestClassifyUnpaidConflict(t *testing.T) {
	txn := paidTransaction()
	txn.IsApproved = true
	assert.ErrorIs(t, classifyUnpaidConflict(&txn), ErrInvalidStateTransition)

	txn.IsApproved = false
	assert.ErrorIs(t, classifyUnpaidConflict(&txn), ErrStoreUnavailable)
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(ErrInvoiceNotPaid))
	assert.True(t, IsConflict(ErrInvalidStateTransition))
	assert.False(t, IsConflict(ErrNotFound))
	assert.False(t, IsConflict(nil))
}

func TestAuthorizeEditTransitions(t *testing.T) {
	now := time.Now()
	agentID := primitive.NewObjectID()
	agentScope := NewAccessScope(models.RoleAgent, &agentID)
	adminScope := NewAccessScope(models.RoleAdmin, nil)

	w := &TransactionWorkflow{Policy: ParseApprovalPolicy("")}

	t.Run("agent cannot self-approve through an edit", func(t *testing.T) {
		existing := paidTransaction()
		existing.ClientID = agentID
		next := existing
		next.IsApproved = true
		assert.ErrorIs(t, w.authorizeEditTransitions(agentScope, &existing, &next), ErrForbidden)
	})

	t.Run("agent cannot self-pay a commission through an edit", func(t *testing.T) {
		existing := paidTransaction()
		existing.ClientID = agentID
		existing.IsApproved = true
		next := existing
		next.CommissionPaidDate = &now
		assert.ErrorIs(t, w.authorizeEditTransitions(agentScope, &existing, &next), ErrForbidden)
	})

	t.Run("agent cannot move invoice state through an edit", func(t *testing.T) {
		existing := models.Transaction{ClientID: agentID, Amount: 100}
		next := existing
		next.IsPaid = true
		next.DatePaid = &now
		assert.ErrorIs(t, w.authorizeEditTransitions(agentScope, &existing, &next), ErrForbidden)
	})

	t.Run("agent may edit non-workflow fields", func(t *testing.T) {
		existing := paidTransaction()
		existing.ClientID = agentID
		next := existing
		next.Amount = 2000
		next.CommissionOverride = ptr(9)
		assert.NoError(t, w.authorizeEditTransitions(agentScope, &existing, &next))
	})

	t.Run("admin may move workflow state under the default policy", func(t *testing.T) {
		existing := paidTransaction()
		next := existing
		next.IsApproved = true
		assert.NoError(t, w.authorizeEditTransitions(adminScope, &existing, &next))
	})

	t.Run("approval flip honors the configured policy", func(t *testing.T) {
		strict := &TransactionWorkflow{Policy: ParseApprovalPolicy("owner")}
		existing := paidTransaction()
		next := existing
		next.IsApproved = true
		assert.ErrorIs(t, strict.authorizeEditTransitions(adminScope, &existing, &next), ErrForbidden)

		ownerScope := NewAccessScope(models.RoleOwner, nil)
		assert.NoError(t, strict.authorizeEditTransitions(ownerScope, &existing, &next))
	})

	t.Run("un-approving is a manager move but needs no approval role", func(t *testing.T) {
		strict := &TransactionWorkflow{Policy: ParseApprovalPolicy("owner")}
		existing := paidTransaction()
		existing.IsApproved = true
		next := existing
		next.IsApproved = false
		assert.NoError(t, strict.authorizeEditTransitions(adminScope, &existing, &next))
	})
}

func TestEditGuardFilter(t *testing.T) {
	id := primitive.NewObjectID()
	now := time.Now()

	t.Run("pins the workflow state the edit was computed from", func(t *testing.T) {
		existing := paidTransaction()
		existing.IsApproved = true
		existing.CommissionPaidDate = &now

		filter := editGuardFilter(id, &existing)
		assert.Equal(t, id, filter["_id"])
		assert.Equal(t, true, filter["isPaid"])
		assert.Equal(t, true, filter["isApproved"])
		assert.Equal(t, &now, filter["commissionPaidDate"])
	})

	t.Run("an unpaid commission pins commissionPaidDate to absent", func(t *testing.T) {
		existing := paidTransaction()
		filter := editGuardFilter(id, &existing)
		assert.Equal(t, (*time.Time)(nil), filter["commissionPaidDate"])
		assert.Equal(t, false, filter["isApproved"])
	})
}

func TestEqualTimePtr(t *testing.T) {
	now := time.Now()
	same := now

	assert.True(t, equalTimePtr(nil, nil))
	assert.True(t, equalTimePtr(&now, &same))
	assert.False(t, equalTimePtr(&now, nil))
	assert.False(t, equalTimePtr(nil, &now))
	later := now.Add(time.Second)
	assert.False(t, equalTimePtr(&now, &later))
}
