package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/utils"
)

// CatalogService handles products and categories
type CatalogService struct {
	db *sql.DB
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db *sql.DB) *CatalogService {
	return &CatalogService{db: db}
}

// CreateCategory adds a category; names are unique
func (s *CatalogService) CreateCategory(ctx context.Context, creation *models.CategoryCreation) (*models.Category, error) {
	creation.Name = utils.SanitizeString(creation.Name)
	if creation.Name == "" {
		return nil, newError(ErrValidation, "Category name is required")
	}
	if err := utils.ValidateStruct(creation); err != nil {
		return nil, newError(ErrValidation, "%s", err.Error())
	}

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories WHERE name = ?", creation.Name).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to check category: %w", err)
	}
	if count > 0 {
		return nil, newError(ErrConflict, "Category already exists")
	}

	category := &models.Category{
		ID:        uuid.New().String(),
		Name:      creation.Name,
		CreatedAt: now(),
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)",
		category.ID, category.Name, category.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, newError(ErrConflict, "Category already exists")
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return category, nil
}

// ListCategories returns every category ordered by name
func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM categories ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		category := &models.Category{}
		if err := rows.Scan(&category.ID, &category.Name, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

// GetCategoryByID retrieves a category
func (s *CatalogService) GetCategoryByID(ctx context.Context, categoryID string) (*models.Category, error) {
	category := &models.Category{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM categories WHERE id = ?", categoryID,
	).Scan(&category.ID, &category.Name, &category.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(ErrNotFound, "Category not found")
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// CreateProduct lists produce for the given farmer. Ownership always comes
// from the authenticated identity.
func (s *CatalogService) CreateProduct(ctx context.Context, creation *models.ProductCreation, farmer *models.User, imageURL string) (*models.Product, error) {
	if !farmer.IsFarmer() {
		return nil, newError(ErrForbidden, "Only farmers can add products")
	}

	creation.Name = utils.SanitizeString(creation.Name)
	creation.Description = utils.SanitizeString(creation.Description)
	if err := utils.ValidateStruct(creation); err != nil {
		return nil, newError(ErrValidation, "%s", err.Error())
	}

	quantity, err := creation.Quantity.Int()
	if err != nil || quantity < 0 {
		return nil, newError(ErrValidation, "quantity must be a non-negative whole number")
	}

	price, err := creation.Price.Decimal()
	if err != nil || !price.IsPositive() {
		return nil, newError(ErrValidation, "price must be a positive number")
	}

	var categoryID sql.NullString
	if id := strings.TrimSpace(creation.Category); id != "" {
		if _, err := s.GetCategoryByID(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, newError(ErrValidation, "Category not found")
			}
			return nil, err
		}
		categoryID = sql.NullString{String: id, Valid: true}
	}

	createdAt := now()
	productID := uuid.New().String()

	query := `
		INSERT INTO products (
			id, name, description, quantity, price, farmer_id, category_id,
			image_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		productID, creation.Name, creation.Description, quantity, price,
		farmer.ID, categoryID, imageURL, createdAt, createdAt,
	)
	if err != nil {
		if isCheckViolation(err) {
			return nil, newError(ErrValidation, "quantity cannot be negative")
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return s.GetProduct(ctx, productID)
}

const selectProductColumns = `
	SELECT p.id, p.name, p.description, p.quantity, p.price, p.image_url,
		   p.created_at, p.updated_at,
		   p.farmer_id, u.name, u.farm_name,
		   p.category_id, c.name
	FROM products p
	INNER JOIN users u ON u.id = p.farmer_id
	LEFT JOIN categories c ON c.id = p.category_id
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	var farmer models.UserSummary
	var farmName, categoryID, categoryName sql.NullString

	err := row.Scan(
		&product.ID, &product.Name, &product.Description, &product.Quantity,
		&product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt,
		&farmer.ID, &farmer.Name, &farmName,
		&categoryID, &categoryName,
	)
	if err != nil {
		return nil, err
	}

	farmer.FarmName = stringPtr(farmName)
	product.Farmer = models.Expand(farmer.ID, farmer)
	if categoryID.Valid {
		if categoryName.Valid {
			product.Category = models.Expand(categoryID.String, models.Category{ID: categoryID.String, Name: categoryName.String})
		} else {
			product.Category = models.RefTo[models.Category](categoryID.String)
		}
	}

	return product, nil
}

// ListProducts returns every product, newest first, with farmer and
// category joined in
func (s *CatalogService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx, selectProductColumns+" ORDER BY p.created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}

	return products, nil
}

// GetProduct retrieves one product with farmer and category joined in
func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, selectProductColumns+" WHERE p.id = ?", productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(ErrNotFound, "Product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// DeleteProduct removes a sold-out product. Only the owning farmer may do
// so; the statement re-checks owner and stock so it cannot race a purchase.
func (s *CatalogService) DeleteProduct(ctx context.Context, productID string, farmer *models.User) (*models.Product, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if !product.IsOwnedBy(farmer.ID) {
		return nil, newError(ErrForbidden, "You can only delete your own products")
	}
	if product.InStock() {
		return nil, newError(ErrValidation, "Only sold-out products can be deleted")
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM products WHERE id = ? AND farmer_id = ? AND quantity = 0",
		productID, farmer.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}
	if affected == 0 {
		return nil, newError(ErrNotFound, "Product not found")
	}

	return product, nil
}
