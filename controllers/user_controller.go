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
	"golang.org/x/crypto/bcrypt"

	"github.com/commtrack/commtrack_backend/models"
	"github.com/commtrack/commtrack_backend/repositories"
	"github.com/commtrack/commtrack_backend/services"
	"github.com/commtrack/commtrack_backend/utils"
)

// UserController handles the admin user-management surface: account
// creation, agent association, role changes, password resets and deletion.
// Every mutation here is audit-logged.
type UserController struct {
	DB    *mongo.Database
	Users *repositories.UserRepository
	Audit *services.AuditService
}

// NewUserController creates a new user controller
func NewUserController(db *mongo.Database, users *repositories.UserRepository, audit *services.AuditService) *UserController {
	return &UserController{DB: db, Users: users, Audit: audit}
}

// GetUsers lists all user accounts.
func (uc *UserController) GetUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	cursor, err := uc.DB.Collection("users").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "fullName", Value: 1}}))
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	for i := range users {
		users[i].Password = ""
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Users retrieved successfully",
		Data:    users,
	})
}

// CreateUser creates a new account.
func (uc *UserController) CreateUser(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	var req models.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email, full name, role and a password of at least 8 characters are required",
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format",
		})
	}

	// Only owners may mint owner accounts
	if req.Role == models.RoleOwner && scope.Role != models.RoleOwner {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	existing, err := uc.Users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "A user with this email already exists",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to hash password",
		})
	}

	now := time.Now()
	user := models.User{
		Email:     email,
		Password:  string(hashed),
		FullName:  req.FullName,
		Role:      req.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := uc.DB.Collection("users").InsertOne(ctx, user)
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	user.ID = result.InsertedID.(primitive.ObjectID)
	user.Password = ""

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "User created successfully",
		Data:    user,
	})
}

// AssociateAgent links a user to an agent record, or clears the link when
// the payload carries the "none" sentinel.
func (uc *UserController) AssociateAgent(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	var req models.AssociateAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	agentID, err := utils.NormalizeOptionalID(req.AgentID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid agent ID",
		})
	}

	var update bson.M
	details := map[string]interface{}{}
	if agentID != nil {
		// The association must point at a live agent
		err := uc.DB.Collection("agents").FindOne(ctx, bson.M{"_id": *agentID}).Err()
		if err == mongo.ErrNoDocuments {
			return respondServiceError(c, scope, services.ErrAgentNotFound)
		}
		if err != nil {
			return respondServiceError(c, scope, services.ErrStoreUnavailable)
		}
		update = bson.M{"$set": bson.M{
			"associatedAgentId": *agentID,
			"isAssociated":      true,
			"updatedAt":         time.Now(),
		}}
		details["agentId"] = agentID.Hex()
	} else {
		update = bson.M{
			"$set":   bson.M{"isAssociated": false, "updatedAt": time.Now()},
			"$unset": bson.M{"associatedAgentId": ""},
		}
		details["agentId"] = nil
	}

	result, err := uc.DB.Collection("users").UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	if result.MatchedCount == 0 {
		return respondServiceError(c, scope, services.ErrNotFound)
	}

	uc.Audit.Record(ctx, actorIDFromContext(c), models.AuditAgentAssociationChanged, userID, details)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Agent association updated",
	})
}

// ChangeRole changes a user's role.
func (uc *UserController) ChangeRole(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	var req models.ChangeRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Role must be owner, admin or agent",
		})
	}

	// Promoting to owner is an owner-only action
	if req.Role == models.RoleOwner && scope.Role != models.RoleOwner {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	target, err := uc.Users.FindByID(ctx, userID)
	if err != nil {
		return respondServiceError(c, scope, services.ErrNotFound)
	}
	// Admins cannot change an owner's role
	if target.Role == models.RoleOwner && scope.Role != models.RoleOwner {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	_, err = uc.DB.Collection("users").UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$set": bson.M{"role": req.Role, "updatedAt": time.Now()}})
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}

	uc.Audit.Record(ctx, actorIDFromContext(c), models.AuditUserRoleChanged, userID, map[string]interface{}{
		"from": target.Role,
		"to":   req.Role,
	})

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Role updated successfully",
	})
}

// ResetPassword sets a new password on a user account.
func (uc *UserController) ResetPassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Password must be at least 8 characters",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to hash password",
		})
	}

	result, err := uc.DB.Collection("users").UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$set": bson.M{"password": string(hashed), "updatedAt": time.Now()}})
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	if result.MatchedCount == 0 {
		return respondServiceError(c, scope, services.ErrNotFound)
	}

	uc.Audit.Record(ctx, actorIDFromContext(c), models.AuditUserPasswordReset, userID, nil)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password reset successfully",
	})
}

// DeleteUser removes a user account. Owner-only, and never another owner.
func (uc *UserController) DeleteUser(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	target, err := uc.Users.FindByID(ctx, userID)
	if err != nil {
		return respondServiceError(c, scope, services.ErrNotFound)
	}
	if !scope.CanDeleteUser(target) {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	result, err := uc.DB.Collection("users").DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return respondServiceError(c, scope, services.ErrStoreUnavailable)
	}
	if result.DeletedCount == 0 {
		return respondServiceError(c, scope, services.ErrNotFound)
	}

	uc.Audit.Record(ctx, actorIDFromContext(c), models.AuditUserDeleted, userID, map[string]interface{}{
		"email": target.Email,
	})

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User deleted successfully",
	})
}
