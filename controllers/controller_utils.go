package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/commtrack/commtrack_backend/middleware"
	"github.com/commtrack/commtrack_backend/models"
	"github.com/commtrack/commtrack_backend/services"
)

// scopeFromContext builds the caller's access scope from the JWT claims.
func scopeFromContext(c echo.Context) services.AccessScope {
	claims := middleware.GetUserFromToken(c)
	if claims == nil {
		return services.AccessScope{}
	}

	var associated *primitive.ObjectID
	if claims.AssociatedAgentID != "" {
		if id, err := primitive.ObjectIDFromHex(claims.AssociatedAgentID); err == nil {
			associated = &id
		}
	}
	return services.NewAccessScope(claims.Role, associated)
}

// actorIDFromContext returns the acting user's id for audit attribution.
func actorIDFromContext(c echo.Context) primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(middleware.GetUserIDFromToken(c))
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

// respondServiceError maps a domain error to an HTTP response. Forbidden is
// reported as not-found toward agent-role callers so an out-of-scope record
// leaks no information about its existence.
func respondServiceError(c echo.Context, scope services.AccessScope, err error) error {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
		message = "Validation failed"
	case errors.Is(err, services.ErrInvoiceNotPaid):
		status = http.StatusConflict
		message = "Invoice must be paid first"
	case errors.Is(err, services.ErrInvalidStateTransition):
		status = http.StatusConflict
		message = "Edit would violate the approval ordering"
	case errors.Is(err, services.ErrForbidden):
		if scope.Role == models.RoleAgent {
			status = http.StatusNotFound
			message = "Record not found"
		} else {
			status = http.StatusForbidden
			message = "Access denied"
		}
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
		message = "Record not found"
	case errors.Is(err, services.ErrAgentNotFound):
		status = http.StatusNotFound
		message = "Agent not found"
	case errors.Is(err, services.ErrReassignTargetNotFound):
		status = http.StatusNotFound
		message = "Reassign target agent not found"
	case errors.Is(err, services.ErrReassignTargetIsSelf):
		status = http.StatusBadRequest
		message = "Cannot reassign an agent's records to itself"
	case errors.Is(err, services.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		message = "Store temporarily unavailable, please retry"
	}

	return c.JSON(status, models.Response{
		Status:  status,
		Message: message,
	})
}
