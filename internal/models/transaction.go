package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the state of a purchase
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Transaction is the ledger entry written for one purchase. TotalAmount is
// frozen at purchase time and never recomputed from the product.
type Transaction struct {
	ID          string            `json:"id" db:"id"`
	Quantity    int               `json:"quantity" db:"quantity"`
	TotalAmount decimal.Decimal   `json:"totalAmount" db:"total_amount"`
	Status      TransactionStatus `json:"status" db:"status"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`

	Product Ref[ProductSummary] `json:"product"`
	Farmer  Ref[UserSummary]    `json:"farmer"`
	Client  Ref[UserSummary]    `json:"client"`
}

// PurchaseRequest represents the buy payload
type PurchaseRequest struct {
	ProductID string         `json:"productId" validate:"required"`
	Quantity  FlexibleNumber `json:"quantity"`
}
