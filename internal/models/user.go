package models

import (
	"time"
)

// Role represents what a user may do in the marketplace
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleClient Role = "client"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleFarmer || r == RoleClient
}

// User represents an identity in the marketplace
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	PhoneNumber  string    `json:"phoneNumber" db:"phone_number"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	FarmName     *string   `json:"farmName,omitempty" db:"farm_name"`
	Location     *string   `json:"location,omitempty" db:"location"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// UserRegistration represents user registration data
type UserRegistration struct {
	Name        string  `json:"name" validate:"required,max=100"`
	PhoneNumber string  `json:"phoneNumber" validate:"required,phone"`
	Password    string  `json:"password" validate:"required,min=6,max=72"`
	Role        Role    `json:"role" validate:"required,oneof=farmer client"`
	FarmName    *string `json:"farmName,omitempty" validate:"max=100"`
	Location    *string `json:"location,omitempty" validate:"max=200"`
}

// UserLogin represents user login data
type UserLogin struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Password    string `json:"password" validate:"required,max=128"`
}

// UserSummary is the public slice of a user joined into other records
type UserSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	FarmName *string `json:"farmName,omitempty"`
}

// IsFarmer checks if the user sells produce
func (u *User) IsFarmer() bool {
	return u.Role == RoleFarmer
}

// IsClient checks if the user buys produce
func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

// HasRole checks the user's role
func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}

// Summary returns the user's public fields
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, FarmName: u.FarmName}
}
