package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleMainAdmin Role = "main_admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin, RoleMainAdmin:
		return r, true
	default:
		return "", false
	}
}

type Account struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password_hash"`
	Role         Role               `json:"role" bson:"role"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updated_at"`
}

// AccountSummary is the subset of an account embedded in request views.
type AccountSummary struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email,omitempty"`
	Role  Role               `json:"role,omitempty"`
}

func (a *Account) Summary() *AccountSummary {
	return &AccountSummary{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role}
}

// Caller is the authenticated identity attached to a request by the auth middleware.
type Caller struct {
	AccountID primitive.ObjectID
	Role      Role
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
