package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles. Agents see only the data of their associated agent record;
// admins and owners see everything. Owners additionally may delete users.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// User model
type User struct {
	ID                primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	Email             string              `json:"email" bson:"email"`
	Password          string              `json:"password,omitempty" bson:"password"`
	FullName          string              `json:"fullName" bson:"fullName"`
	Role              string              `json:"role" bson:"role"`
	IsAssociated      bool                `json:"isAssociated" bson:"isAssociated"`
	AssociatedAgentID *primitive.ObjectID `json:"associatedAgentId,omitempty" bson:"associatedAgentId,omitempty"`
	IsActive          bool                `json:"isActive" bson:"isActive"`
	CreatedAt         time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// LoginRequest model
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued tokens and the sanitized user.
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// CreateUserRequest is the admin payload for creating an account.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"fullName" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=owner admin agent"`
}

// AssociateAgentRequest links a user to an agent record. AgentID accepts
// the legacy "none" sentinel to clear the association.
type AssociateAgentRequest struct {
	AgentID string `json:"agentId" validate:"required"`
}

// ChangeRoleRequest changes a user's role.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=owner admin agent"`
}

// ResetPasswordRequest is the admin-initiated password reset payload.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
