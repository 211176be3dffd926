package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/commtrack/commtrack_backend/controllers"
	"github.com/commtrack/commtrack_backend/middleware"
)

// RegisterAuthRoutes sets up login and session routes
func RegisterAuthRoutes(e *echo.Echo, db *mongo.Database) {
	authController := controllers.NewAuthController(db)

	// Public
	e.POST("/api/auth/login", authController.Login)

	// Authenticated
	auth := e.Group("/api/auth")
	auth.Use(middleware.JWTMiddleware())
	auth.POST("/logout", authController.Logout)
	auth.GET("/validate", authController.ValidateSession)
}
