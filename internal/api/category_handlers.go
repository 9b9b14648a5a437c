package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/services"
)

// CategoryHandlers handles product categories
type CategoryHandlers struct {
	catalog *services.CatalogService
	log     logrus.FieldLogger
}

// NewCategoryHandlers creates new category handlers
func NewCategoryHandlers(catalog *services.CatalogService, log logrus.FieldLogger) *CategoryHandlers {
	return &CategoryHandlers{catalog: catalog, log: log}
}

// GetCategories lists categories by name
func (h *CategoryHandlers) GetCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// CreateCategory adds a category
func (h *CategoryHandlers) CreateCategory(c *gin.Context) {
	var req models.CategoryCreation
	if err := c.ShouldBind(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Category name is required")
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}
