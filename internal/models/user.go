package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	// RoleShop is never stored; it is the effective role of an approved shop account.
	RoleShop Role = "shop"
)

// AccountType is what the account was registered as. It never changes after registration.
type AccountType string

const (
	AccountTypeIndividual AccountType = "individual"
	AccountTypeShop       AccountType = "shop"
)

func (r Role) IsValidStored() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered account.
type User struct {
	Base         `bson:",inline"`
	Username     string      `bson:"username" json:"username"`
	Email        *string     `bson:"email,omitempty" json:"email,omitempty"` // optional, unique when present
	PasswordHash string      `bson:"password" json:"-"`
	Role         Role        `bson:"role" json:"role"`
	AccountType  AccountType `bson:"account_type" json:"accountType"`
	PhoneNumber  string      `bson:"phone_number" json:"phoneNumber"`
	IsBanned     bool        `bson:"is_banned" json:"isBanned"`
	LastLogin    *time.Time  `bson:"last_login,omitempty" json:"lastLogin,omitempty"`
}

// EmailAddress returns the email or an empty string.
func (u *User) EmailAddress() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}

// UserSummary is the public projection of a user embedded in other responses.
type UserSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
	Email    string             `json:"email,omitempty"`
}
