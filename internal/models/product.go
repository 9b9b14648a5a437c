package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category represents a product category
type Category struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// CategoryCreation represents the add-category payload
type CategoryCreation struct {
	Name string `json:"name" form:"name" validate:"required,max=60"`
}

// Product represents produce listed by a farmer
type Product struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ImageURL    string          `json:"imageUrl" db:"image_url"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`

	Farmer   Ref[UserSummary] `json:"farmer"`
	Category Ref[Category]    `json:"category"`
}

// ProductCreation represents the add-product payload. It binds from JSON or
// from the multipart form the mobile app posts. Any "farmer" field sent by
// the client is deliberately absent: ownership comes from the credential.
type ProductCreation struct {
	Name        string         `json:"name" form:"name" validate:"required,max=120"`
	Description string         `json:"description" form:"description" validate:"max=2000"`
	Quantity    FlexibleNumber `json:"quantity" form:"quantity" validate:"required"`
	Price       FlexibleNumber `json:"price" form:"price" validate:"required"`
	Category    string         `json:"category" form:"category"`
}

// ProductSummary is the slice of a product joined into transactions
type ProductSummary struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// InStock reports whether any units are left
func (p *Product) InStock() bool {
	return p.Quantity > 0
}

// IsOwnedBy checks product ownership
func (p *Product) IsOwnedBy(userID string) bool {
	return p.Farmer.ID == userID
}
