package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/internal/middleware"
	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/services"
)

// TransactionHandlers handles purchases, ledgers and the sales feed
type TransactionHandlers struct {
	transactions *services.TransactionService
	feed         *services.SalesFeed
	log          logrus.FieldLogger
}

// NewTransactionHandlers creates new transaction handlers
func NewTransactionHandlers(transactions *services.TransactionService, feed *services.SalesFeed, log logrus.FieldLogger) *TransactionHandlers {
	return &TransactionHandlers{
		transactions: transactions,
		feed:         feed,
		log:          log,
	}
}

// BuyProduct purchases a product for the calling client
func (h *TransactionHandlers) BuyProduct(c *gin.Context) {
	client, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request data")
		return
	}

	transaction, err := h.transactions.BuyProduct(c.Request.Context(), client, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, transaction)
}

// GetClientTransactions lists the caller's purchases
func (h *TransactionHandlers) GetClientTransactions(c *gin.Context) {
	client, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	transactions, err := h.transactions.GetClientTransactions(c.Request.Context(), client.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

// GetFarmerTransactions lists the caller's sales
func (h *TransactionHandlers) GetFarmerTransactions(c *gin.Context) {
	farmer, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	transactions, err := h.transactions.GetFarmerTransactions(c.Request.Context(), farmer.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

// SalesFeed upgrades to a websocket streaming the caller's sales
func (h *TransactionHandlers) SalesFeed(c *gin.Context) {
	farmer, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	h.feed.Serve(c, farmer.ID)
}
