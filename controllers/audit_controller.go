package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/commtrack/commtrack_backend/models"
	"github.com/commtrack/commtrack_backend/services"
)

// AuditController exposes the audit trail to admins and owners
type AuditController struct {
	Audit *services.AuditService
}

// NewAuditController creates a new audit controller
func NewAuditController(audit *services.AuditService) *AuditController {
	return &AuditController{Audit: audit}
}

// GetAuditLogs returns a page of audit entries, newest first.
func (ac *AuditController) GetAuditLogs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scope := scopeFromContext(c)
	if !scope.CanManage() {
		return respondServiceError(c, scope, services.ErrForbidden)
	}

	page, _ := strconv.ParseInt(c.QueryParam("page"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	entries, err := ac.Audit.List(ctx, page, limit)
	if err != nil {
		return respondServiceError(c, scope, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Audit logs retrieved successfully",
		Data:    entries,
	})
}
