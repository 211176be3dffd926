package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commtrack/commtrack_backend/models"
	"github.com/commtrack/commtrack_backend/services"
	"github.com/commtrack/commtrack_backend/utils"
)

// unknownAgentName is rendered for transactions whose agent record no
// longer resolves; the historical attribution is kept, not errored on.
const unknownAgentName = "Unknown Agent"

// TransactionController handles transaction CRUD and the commission
// approval/payment workflow endpoints
type TransactionController struct {
	DB       *mongo.Database
	Workflow *services.TransactionWorkflow
}

// NewTransactionController creates a new transaction controller
func NewTransactionController(db *mongo.Database, workflow *services.TransactionWorkflow) *TransactionController {
	return &TransactionController{DB: db, Workflow: workflow}
}

// GetTransactions lists transactions within the caller's scope, enriched
// with the agent display name.
func (tc *TransactionController) GetTransactions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	cursor, err := tc.DB.Collection("transactions").Find(ctx, scope.TransactionFilter(),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	defer cursor.Close(ctx)

	var transactions []models.Transaction
	if err = cursor.All(ctx, &transactions); err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	views, err := tc.enrich(ctx, transactions)
	if err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Transactions retrieved successfully",
		Data:    views,
	})
}

// enrich joins agent display names onto transaction rows. Dangling agent
// references resolve to "Unknown Agent".
func (tc *TransactionController) enrich(ctx context.Context, transactions []models.Transaction) ([]models.TransactionView, error) {
	ids := make([]primitive.ObjectID, 0, len(transactions))
	seen := make(map[primitive.ObjectID]bool)
	for _, t := range transactions {
		if !seen[t.ClientID] {
			seen[t.ClientID] = true
			ids = append(ids, t.ClientID)
		}
	}

	names := make(map[primitive.ObjectID]string)
	if len(ids) > 0 {
		cursor, err := tc.DB.Collection("agents").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, services.ErrStoreUnavailable
		}
		defer cursor.Close(ctx)
		for cursor.Next(ctx) {
			var agent models.Agent
			if err := cursor.Decode(&agent); err != nil {
				continue
			}
			names[agent.ID] = agent.DisplayName()
		}
	}

	views := make([]models.TransactionView, 0, len(transactions))
	for _, t := range transactions {
		name, ok := names[t.ClientID]
		if !ok {
			name = unknownAgentName
		}
		views = append(views, models.TransactionView{Transaction: t, AgentName: name})
	}
	return views, nil
}

// GetTransaction retrieves one transaction within the caller's scope.
func (tc *TransactionController) GetTransaction(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid transaction ID",
		})
	}

	filter := scope.TransactionFilter()
	filter["_id"] = id

	var transaction models.Transaction
	err = tc.DB.Collection("transactions").FindOne(ctx, filter).Decode(&transaction)
	if err == mongo.ErrNoDocuments {
		return respondServiceError(c, scope, services.ErrNotFound)
	}
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	views, err := tc.enrich(ctx, []models.Transaction{transaction})
	if err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Transaction retrieved successfully",
		Data:    views[0],
	})
}

// transactionFromRequest normalizes a transaction payload into the stored
// shape. Optional references accept the legacy "none" sentinel.
func transactionFromRequest(req *models.TransactionRequest) (*models.Transaction, error) {
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		return nil, err
	}
	clientInfoID, err := utils.NormalizeOptionalID(req.ClientInfoID)
	if err != nil {
		return nil, err
	}
	override, err := utils.NormalizeOptionalRate(req.CommissionOverride)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ClientID:           clientID,
		ClientInfoID:       clientInfoID,
		Amount:             req.Amount,
		PaymentMethod:      req.PaymentMethod,
		ReferenceNumber:    req.ReferenceNumber,
		CommissionOverride: override,
	}
	if req.IsPaid != nil {
		t.IsPaid = *req.IsPaid
	}
	t.DatePaid = req.DatePaid
	return t, nil
}

// CreateTransaction creates a transaction. The commission is resolved
// before the insert; the record starts unapproved.
func (tc *TransactionController) CreateTransaction(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)

	var req models.TransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "An agent reference is required",
		})
	}

	transaction, err := transactionFromRequest(&req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	created, err := tc.Workflow.Create(ctx, scope, transaction)
	if err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Transaction created successfully",
		Data:    created,
	})
}

// UpdateTransaction applies an edit through the workflow, which enforces
// the ordering invariants and re-resolves the commission.
func (tc *TransactionController) UpdateTransaction(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid transaction ID",
		})
	}

	var req models.TransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "An agent reference is required",
		})
	}

	fields, err := transactionFromRequest(&req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	updated, err := tc.Workflow.Edit(ctx, scope, actorIDFromContext(c), id, func(t *models.Transaction) {
		t.ClientID = fields.ClientID
		t.ClientInfoID = fields.ClientInfoID
		t.Amount = fields.Amount
		t.CommissionOverride = fields.CommissionOverride
		if req.PaymentMethod != "" {
			t.PaymentMethod = req.PaymentMethod
		}
		if req.ReferenceNumber != "" {
			t.ReferenceNumber = req.ReferenceNumber
		}
		if req.IsPaid != nil {
			t.IsPaid = *req.IsPaid
		}
		if req.DatePaid != nil {
			t.DatePaid = req.DatePaid
		}
		if req.IsApproved != nil {
			t.IsApproved = *req.IsApproved
		}
		if req.CommissionPaidDate != nil {
			t.CommissionPaidDate = req.CommissionPaidDate
		} else if req.IsApproved != nil && !*req.IsApproved {
			// Re-opening a transaction clears the commission payment;
			// the workflow rejects the edit otherwise.
			t.CommissionPaidDate = nil
		}
	})
	if err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Transaction updated successfully",
		Data:    updated,
	})
}

// DeleteTransaction removes a transaction.
func (tc *TransactionController) DeleteTransaction(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid transaction ID",
		})
	}

	if err := tc.Workflow.Delete(ctx, scope, id); err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Transaction deleted successfully",
	})
}

// SetInvoicePaid marks the invoice paid or unpaid.
func (tc *TransactionController) SetInvoicePaid(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid transaction ID",
		})
	}

	var req models.InvoicePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	updated, err := tc.Workflow.SetInvoicePaid(ctx, actorIDFromContext(c), id, &req)
	if err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Invoice payment state updated",
		Data:    updated,
	})
}

// ApproveCommission approves a commission, optionally through the explicit
// unpaid-invoice override confirmation.
func (tc *TransactionController) ApproveCommission(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid transaction ID",
		})
	}

	var req models.ApproveCommissionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	updated, err := tc.Workflow.Approve(ctx, scope, actorIDFromContext(c), id, req.OverrideUnpaidGuard)
	if err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission approved",
		Data:    updated,
	})
}

// PayCommission records the commission payout.
func (tc *TransactionController) PayCommission(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid transaction ID",
		})
	}

	var req models.PayCommissionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	updated, err := tc.Workflow.PayCommission(ctx, scope, actorIDFromContext(c), id, &req)
	if err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission payment recorded",
		Data:    updated,
	})
}
