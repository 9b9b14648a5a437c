package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/internal/middleware"
	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/services"
)

// image form fields, in order of preference
var imageFields = []string{"imageUrl", "image"}

// ProductHandlers handles product listing and management
type ProductHandlers struct {
	catalog *services.CatalogService
	images  *ImageStore
	log     logrus.FieldLogger
}

// NewProductHandlers creates new product handlers
func NewProductHandlers(catalog *services.CatalogService, images *ImageStore, log logrus.FieldLogger) *ProductHandlers {
	return &ProductHandlers{
		catalog: catalog,
		images:  images,
		log:     log,
	}
}

// GetProducts lists every product
func (h *ProductHandlers) GetProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GetProduct returns one product
func (h *ProductHandlers) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// CreateProduct lists a product for the calling farmer. Accepts JSON or
// the multipart form with an optional image.
func (h *ProductHandlers) CreateProduct(c *gin.Context) {
	farmer, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req models.ProductCreation
	if err := c.ShouldBind(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request data")
		return
	}

	imageURL := ""
	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		url, err := h.saveImage(c)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		imageURL = url
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), &req, farmer, imageURL)
	if err != nil {
		h.images.Remove(imageURL)
		respondError(c, h.log, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"product_id": product.ID,
		"farmer_id":  farmer.ID,
	}).Info("product created")

	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandlers) saveImage(c *gin.Context) (string, error) {
	for _, field := range imageFields {
		header, err := c.FormFile(field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			return "", &services.Error{Kind: services.ErrValidation, Message: "Invalid image upload"}
		}
		return h.images.Save(header)
	}
	return "", nil
}

// DeleteProduct removes a sold-out product owned by the caller
func (h *ProductHandlers) DeleteProduct(c *gin.Context) {
	farmer, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	product, err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id"), farmer)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.images.Remove(product.ImageURL)
	respondMessage(c, http.StatusOK, "Product deleted")
}
