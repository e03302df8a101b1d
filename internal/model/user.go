package model

import (
	"time"

	"github.com/google/uuid"
)

// UserRole distinguishes the three account types.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// User represents an account: administrators author assessments,
// students take them.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateUserRequest is the payload for creating a new account.
type CreateUserRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	Name     string   `json:"name" binding:"required,min=2,max=100"`
	Role     UserRole `json:"role" binding:"required,oneof=ADMIN INSTRUCTOR STUDENT"`
	Password string   `json:"password" binding:"required,min=6,max=128"`
}

// UpdateUserRequest is the payload for updating an existing account.
type UpdateUserRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	Name     string   `json:"name" binding:"required,min=2,max=100"`
	Role     UserRole `json:"role" binding:"required,oneof=ADMIN INSTRUCTOR STUDENT"`
	Password string   `json:"password" binding:"omitempty,min=6,max=128"`
}
