package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/internal/metrics"
	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/utils"
)

// TransactionService runs purchases and serves the purchase ledgers
type TransactionService struct {
	db        *sql.DB
	publisher SalePublisher
	log       logrus.FieldLogger
}

// NewTransactionService creates a new transaction service. publisher may be nil.
func NewTransactionService(db *sql.DB, publisher SalePublisher, log logrus.FieldLogger) *TransactionService {
	return &TransactionService{
		db:        db,
		publisher: publisher,
		log:       log,
	}
}

// BuyProduct purchases quantity units of a product for client. The stock
// decrement is a single conditional UPDATE, and it commits together with
// the ledger row or not at all.
func (s *TransactionService) BuyProduct(ctx context.Context, client *models.User, req *models.PurchaseRequest) (transaction *models.Transaction, err error) {
	defer func() {
		units := 0
		if transaction != nil {
			units = transaction.Quantity
		}
		metrics.RecordPurchase(purchaseResult(err), units)
	}()

	if !client.IsClient() {
		return nil, newError(ErrForbidden, "Only clients can buy products")
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(ErrValidation, "%s", err.Error())
	}

	quantity := 1
	if req.Quantity.IsSet() {
		quantity, err = req.Quantity.Int()
		if err != nil || quantity < 1 {
			return nil, newError(ErrValidation, "quantity must be a positive whole number")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := now()

	result, err := tx.ExecContext(ctx,
		"UPDATE products SET quantity = quantity - ?, updated_at = ? WHERE id = ? AND quantity >= ?",
		quantity, createdAt, req.ProductID, quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	if affected == 0 {
		var count int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE id = ?", req.ProductID).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("failed to check product: %w", err)
		}
		if count == 0 {
			return nil, newError(ErrNotFound, "Product not found")
		}
		return nil, newError(ErrInsufficientStock, "Not enough stock")
	}

	var product models.ProductSummary
	var farmer models.UserSummary
	err = tx.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.price, p.farmer_id, u.name
		FROM products p
		INNER JOIN users u ON u.id = p.farmer_id
		WHERE p.id = ?
	`, req.ProductID).Scan(&product.ID, &product.Name, &product.Price, &farmer.ID, &farmer.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read product: %w", err)
	}

	transaction = &models.Transaction{
		ID:          uuid.New().String(),
		Quantity:    quantity,
		TotalAmount: product.Price.Mul(decimal.NewFromInt(int64(quantity))),
		Status:      models.TransactionStatusCompleted,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		Product:     models.Expand(product.ID, product),
		Farmer:      models.Expand(farmer.ID, farmer),
		Client:      models.Expand(client.ID, client.Summary()),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, product_id, farmer_id, client_id, quantity, total_amount,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		transaction.ID, product.ID, farmer.ID, client.ID, transaction.Quantity,
		transaction.TotalAmount, transaction.Status, transaction.CreatedAt, transaction.UpdatedAt,
	)
	if err != nil {
		transaction = nil
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		transaction = nil
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": transaction.ID,
		"product_id":     product.ID,
		"client_id":      client.ID,
		"quantity":       quantity,
		"total":          transaction.TotalAmount.String(),
	}).Info("purchase completed")

	if s.publisher != nil {
		s.publisher.PublishSale(transaction)
	}

	return transaction, nil
}

func purchaseResult(err error) string {
	switch {
	case err == nil:
		return metrics.PurchaseCompleted
	case errors.Is(err, ErrNotFound):
		return metrics.PurchaseNotFound
	case errors.Is(err, ErrInsufficientStock):
		return metrics.PurchaseInsufficientStock
	case errors.Is(err, ErrValidation), errors.Is(err, ErrForbidden):
		return metrics.PurchaseInvalid
	default:
		return metrics.PurchaseFailed
	}
}

const selectTransactionColumns = `
	SELECT t.id, t.quantity, t.total_amount, t.status, t.created_at, t.updated_at,
		   t.product_id, p.name, p.price,
		   t.farmer_id, f.name,
		   t.client_id, cl.name
	FROM transactions t
	LEFT JOIN products p ON p.id = t.product_id
	LEFT JOIN users f ON f.id = t.farmer_id
	LEFT JOIN users cl ON cl.id = t.client_id
`

// GetClientTransactions returns a client's purchases, newest first
func (s *TransactionService) GetClientTransactions(ctx context.Context, clientID string) ([]*models.Transaction, error) {
	return s.listTransactions(ctx, "t.client_id", clientID)
}

// GetFarmerTransactions returns a farmer's sales, newest first
func (s *TransactionService) GetFarmerTransactions(ctx context.Context, farmerID string) ([]*models.Transaction, error) {
	return s.listTransactions(ctx, "t.farmer_id", farmerID)
}

func (s *TransactionService) listTransactions(ctx context.Context, column, userID string) ([]*models.Transaction, error) {
	query := selectTransactionColumns + " WHERE " + column + " = ? ORDER BY t.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		transaction := &models.Transaction{}
		var productID, farmerID, clientID string
		var productName, farmerName, clientName sql.NullString
		var productPrice decimal.NullDecimal

		err := rows.Scan(
			&transaction.ID, &transaction.Quantity, &transaction.TotalAmount,
			&transaction.Status, &transaction.CreatedAt, &transaction.UpdatedAt,
			&productID, &productName, &productPrice,
			&farmerID, &farmerName,
			&clientID, &clientName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		// the product row is gone once a sold-out listing is deleted
		if productName.Valid {
			transaction.Product = models.Expand(productID, models.ProductSummary{
				ID:    productID,
				Name:  productName.String,
				Price: productPrice.Decimal,
			})
		} else {
			transaction.Product = models.RefTo[models.ProductSummary](productID)
		}
		transaction.Farmer = summaryRef(farmerID, farmerName)
		transaction.Client = summaryRef(clientID, clientName)

		transactions = append(transactions, transaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

func summaryRef(id string, name sql.NullString) models.Ref[models.UserSummary] {
	if !name.Valid {
		return models.RefTo[models.UserSummary](id)
	}
	return models.Expand(id, models.UserSummary{ID: id, Name: name.String})
}
