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

// AgentController handles agent CRUD and the delete-with-disposition flow
type AgentController struct {
	DB        *mongo.Database
	Workflow  *services.TransactionWorkflow
	Lifecycle *services.AgentLifecycleManager
}

// NewAgentController creates a new agent controller
func NewAgentController(db *mongo.Database, workflow *services.TransactionWorkflow, lifecycle *services.AgentLifecycleManager) *AgentController {
	return &AgentController{DB: db, Workflow: workflow, Lifecycle: lifecycle}
}

// GetAgents lists agents within the caller's scope. An agent-role user sees
// only their own record; an unassociated one gets an empty list.
func (ac *AgentController) GetAgents(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	cursor, err := ac.DB.Collection("agents").Find(ctx, scope.AgentFilter(),
		options.Find().SetSort(bson.D{{Key: "lastName", Value: 1}}))
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	defer cursor.Close(ctx)

	agents := []models.Agent{}
	if err = cursor.All(ctx, &agents); err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Agents retrieved successfully",
		Data:    agents,
	})
}

// GetAgent retrieves a single agent within the caller's scope.
func (ac *AgentController) GetAgent(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid agent ID",
		})
	}

	filter := scope.AgentFilter()
	filter["_id"] = id

	var agent models.Agent
	err = ac.DB.Collection("agents").FindOne(ctx, filter).Decode(&agent)
	if err == mongo.ErrNoDocuments {
		return respondServiceError(c, scope, services.ErrNotFound)
	}
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Agent retrieved successfully",
		Data:    agent,
	})
}

// CreateAgent creates a new agent record.
func (ac *AgentController) CreateAgent(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	var req models.AgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "First name, last name and a valid email are required",
		})
	}
	if !services.ValidRate(req.CommissionRate) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Commission rate must be between 0 and 100",
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format",
		})
	}

	now := time.Now()
	agent := models.Agent{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Company:        req.Company,
		Email:          email,
		CommissionRate: req.CommissionRate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result, err := ac.DB.Collection("agents").InsertOne(ctx, agent)
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	agent.ID = result.InsertedID.(primitive.ObjectID)

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Agent created successfully",
		Data:    agent,
	})
}

// UpdateAgent edits an agent. A change to the default commission rate
// re-resolves the commission of every transaction attributed to the agent.
func (ac *AgentController) UpdateAgent(c echo.Context) error {
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
			Message: "Invalid agent ID",
		})
	}

	var req models.AgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "First name, last name and a valid email are required",
		})
	}
	if !services.ValidRate(req.CommissionRate) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Commission rate must be between 0 and 100",
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format",
		})
	}

	var existing models.Agent
	err = ac.DB.Collection("agents").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		return respondServiceError(c, scope, services.ErrAgentNotFound)
	}
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	update := bson.M{"$set": bson.M{
		"firstName":      req.FirstName,
		"lastName":       req.LastName,
		"company":        req.Company,
		"email":          email,
		"commissionRate": req.CommissionRate,
		"updatedAt":      time.Now(),
	}}
	_, err = ac.DB.Collection("agents").UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	// The default rate feeds the resolver; a change invalidates every
	// stored commission that fell through to it.
	if existing.CommissionRate != req.CommissionRate {
		if err := ac.Workflow.RecomputeForAgent(ctx, id); err != nil {
			return respondServiceError(c, scope, err)
		}
	}

	var updated models.Agent
	if err := ac.DB.Collection("agents").FindOne(ctx, bson.M{"_id": id}).Decode(&updated); err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Agent updated successfully",
		Data:    updated,
	})
}

// DeleteAgent retires the agent under the requested disposition. The
// dependent updates and the delete run as one store transaction.
func (ac *AgentController) DeleteAgent(c echo.Context) error {
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
			Message: "Invalid agent ID",
		})
	}

	var req models.DeleteAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Disposition must be unlink or reassign",
		})
	}

	disposition := services.AgentDisposition{}
	if req.Disposition == models.DispositionReassign {
		target, err := utils.NormalizeOptionalID(req.ReassignTo)
		if err != nil || target == nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "A reassign target agent is required",
			})
		}
		disposition.Reassign = true
		disposition.ReassignTo = *target
	}

	if err := ac.Lifecycle.DeleteAgent(ctx, actorIDFromContext(c), id, disposition); err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Agent deleted successfully",
	})
}
