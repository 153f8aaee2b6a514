package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is the directory view of an account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	IsOnline  bool      `json:"is_online"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile holds the public personal details of a user.
type Profile struct {
	Name     string     `json:"name"`
	LastName string     `json:"last_name"`
	Birthday *time.Time `json:"birthday,omitempty"`
	Age      *int       `json:"age,omitempty"`
}
