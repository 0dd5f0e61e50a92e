package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */
// User represents the user entity
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"` // Unique username for the user
	Password  string    `json:"-"`                                    // Password is hashed and never returned in responses
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

/** -------------------- DTOs -------------------- */
// Request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the request for user login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Response
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PersonResponse is one entry of the contact list
type PersonResponse struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}
