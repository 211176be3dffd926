package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/commtrack/commtrack_backend/controllers"
	"github.com/commtrack/commtrack_backend/middleware"
	"github.com/commtrack/commtrack_backend/models"
	"github.com/commtrack/commtrack_backend/repositories"
	"github.com/commtrack/commtrack_backend/services"
	"github.com/commtrack/commtrack_backend/utils"
	"github.com/commtrack/commtrack_backend/websocket"
)

// RegisterAPIRoutes sets up the dashboard API: agents, clients,
// transactions, user administration, audit trail and the event stream.
func RegisterAPIRoutes(e *echo.Echo, db *mongo.Database, wsHub *websocket.Hub) {
	audit := services.NewAuditService(db)
	notifier := services.NewNotifier(wsHub)
	workflow := services.NewTransactionWorkflow(db, audit, notifier)
	lifecycle := services.NewAgentLifecycleManager(db, audit, notifier)
	userRepo := repositories.NewUserRepository(db)

	agentController := controllers.NewAgentController(db, workflow, lifecycle)
	clientController := controllers.NewClientController(db, workflow)
	transactionController := controllers.NewTransactionController(db, workflow)
	userController := controllers.NewUserController(db, userRepo, audit)
	auditController := controllers.NewAuditController(audit)

	api := e.Group("/api")
	api.Use(middleware.JWTMiddleware())

	// Agents. Reads are scope-filtered inside the controller; writes are
	// restricted to admins and owners.
	api.GET("/agents", agentController.GetAgents)
	api.GET("/agents/:id", agentController.GetAgent)
	api.POST("/agents", agentController.CreateAgent, middleware.RequireManager())
	api.PUT("/agents/:id", agentController.UpdateAgent, middleware.RequireManager())
	api.DELETE("/agents/:id", agentController.DeleteAgent, middleware.RequireManager())

	// Clients
	api.GET("/clients", clientController.GetClients)
	api.GET("/clients/:id", clientController.GetClient)
	api.POST("/clients", clientController.CreateClient, middleware.RequireManager())
	api.PUT("/clients/:id", clientController.UpdateClient, middleware.RequireManager())
	api.DELETE("/clients/:id", clientController.DeleteClient, middleware.RequireManager())

	// Transactions. Agent-role users may create and edit their own rows;
	// the workflow endpoints stay with admins/owners (approval roles are
	// additionally checked against the approval policy inside).
	api.GET("/transactions", transactionController.GetTransactions)
	api.GET("/transactions/:id", transactionController.GetTransaction)
	api.POST("/transactions", transactionController.CreateTransaction)
	api.PUT("/transactions/:id", transactionController.UpdateTransaction)
	api.DELETE("/transactions/:id", transactionController.DeleteTransaction, middleware.RequireManager())
	api.PUT("/transactions/:id/invoice-paid", transactionController.SetInvoicePaid, middleware.RequireManager())
	api.PUT("/transactions/:id/approve", transactionController.ApproveCommission, middleware.RequireManager())
	api.PUT("/transactions/:id/pay", transactionController.PayCommission, middleware.RequireManager())

	// User administration
	api.GET("/users", userController.GetUsers, middleware.RequireManager())
	api.POST("/users", userController.CreateUser, middleware.RequireManager())
	api.PUT("/users/:id/associate", userController.AssociateAgent, middleware.RequireManager())
	api.PUT("/users/:id/role", userController.ChangeRole, middleware.RequireManager())
	api.PUT("/users/:id/password", userController.ResetPassword, middleware.RequireManager())
	api.DELETE("/users/:id", userController.DeleteUser, middleware.RequireRole(models.RoleOwner))

	// Audit trail
	api.GET("/audit-logs", auditController.GetAuditLogs, middleware.RequireManager())

	// Dashboard event stream
	api.GET("/ws", func(c echo.Context) error {
		userID, err := utils.GetUserIDFromToken(c)
		if err != nil {
			return echo.ErrUnauthorized
		}
		return websocket.HandleWebSocket(c, wsHub, userID)
	})
}
