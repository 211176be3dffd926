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

// ClientController handles client company CRUD
type ClientController struct {
	DB       *mongo.Database
	Workflow *services.TransactionWorkflow
}

// NewClientController creates a new client controller
func NewClientController(db *mongo.Database, workflow *services.TransactionWorkflow) *ClientController {
	return &ClientController{DB: db, Workflow: workflow}
}

// clientFromRequest normalizes a client payload. The legacy "none" sentinel
// on agentId and commissionOverride becomes absent here and never reaches
// the stored model.
func clientFromRequest(req *models.ClientInfoRequest) (*models.ClientInfo, error) {
	agentID, err := utils.NormalizeOptionalID(req.AgentID)
	if err != nil {
		return nil, err
	}
	override, err := utils.NormalizeOptionalRate(req.CommissionOverride)
	if err != nil {
		return nil, err
	}
	return &models.ClientInfo{
		CompanyName:        req.CompanyName,
		AgentID:            agentID,
		CommissionOverride: override,
		AccountingID:       req.AccountingID,
	}, nil
}

// GetClients lists clients within the caller's scope.
func (cc *ClientController) GetClients(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	cursor, err := cc.DB.Collection("clients").Find(ctx, scope.ClientFilter(),
		options.Find().SetSort(bson.D{{Key: "companyName", Value: 1}}))
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	defer cursor.Close(ctx)

	clients := []models.ClientInfo{}
	if err = cursor.All(ctx, &clients); err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Clients retrieved successfully",
		Data:    clients,
	})
}

// GetClient retrieves a single client within the caller's scope.
func (cc *ClientController) GetClient(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid client ID",
		})
	}

	filter := scope.ClientFilter()
	filter["_id"] = id

	var client models.ClientInfo
	err = cc.DB.Collection("clients").FindOne(ctx, filter).Decode(&client)
	if err == mongo.ErrNoDocuments {
		return respondServiceError(c, scope, services.ErrNotFound)
	}
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Client retrieved successfully",
		Data:    client,
	})
}

// CreateClient creates a new client company.
func (cc *ClientController) CreateClient(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	var req models.ClientInfoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Company name is required",
		})
	}

	client, err := clientFromRequest(&req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now

	result, err := cc.DB.Collection("clients").InsertOne(ctx, client)
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	client.ID = result.InsertedID.(primitive.ObjectID)

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Client created successfully",
		Data:    client,
	})
}

// UpdateClient edits a client. A change to the commission override
// re-resolves the commission of every transaction linked to this client.
func (cc *ClientController) UpdateClient(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid client ID",
		})
	}

	var req models.ClientInfoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Company name is required",
		})
	}

	next, err := clientFromRequest(&req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	var existing models.ClientInfo
	err = cc.DB.Collection("clients").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		return respondServiceError(c, scope, services.ErrNotFound)
	}
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	update := bson.M{
		"$set": bson.M{
			"companyName":  next.CompanyName,
			"accountingId": next.AccountingID,
			"updatedAt":    time.Now(),
		},
	}
	set := update["$set"].(bson.M)
	unset := bson.M{}
	if next.AgentID != nil {
		set["agentId"] = *next.AgentID
	} else {
		unset["agentId"] = ""
	}
	if next.CommissionOverride != nil {
		set["commissionOverride"] = *next.CommissionOverride
	} else {
		unset["commissionOverride"] = ""
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	_, err = cc.DB.Collection("clients").UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	if overrideChanged(existing.CommissionOverride, next.CommissionOverride) {
		if err := cc.Workflow.RecomputeForClient(ctx, id); err != nil {
			return respondServiceError(c, scope, err)
		}
	}

	var updated models.ClientInfo
	if err := cc.DB.Collection("clients").FindOne(ctx, bson.M{"_id": id}).Decode(&updated); err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Client updated successfully",
		Data:    updated,
	})
}

// DeleteClient removes a client company.
func (cc *ClientController) DeleteClient(c echo.Context) error {
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
			Message: "Invalid client ID",
		})
	}

	result, err := cc.DB.Collection("clients").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	if result.DeletedCount == 0 {
		return respondServiceError(c, scope, services.ErrNotFound)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Client deleted successfully",
	})
}

func overrideChanged(a, b *float64) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	return a != nil && *a != *b
}
