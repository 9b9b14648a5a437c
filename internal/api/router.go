package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/config"
	"agrimarket-backend/internal/logging"
	"agrimarket-backend/internal/metrics"
	"agrimarket-backend/internal/middleware"
	"agrimarket-backend/internal/services"
)

// multipart framing on top of the largest accepted image
const formOverhead = 1 << 20

// Dependencies are the process-wide components the router is built from.
// Nil limiters fall back to in-memory ones sized from Config; a nil Feed
// gets a fresh hub.
type Dependencies struct {
	Config      *config.Config
	DB          *sql.DB
	Log         *logrus.Logger
	Limiter     middleware.Limiter
	AuthLimiter middleware.Limiter
	Feed        *services.SalesFeed
}

// NewRouter builds the HTTP API
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	log := deps.Log

	if deps.Limiter == nil {
		deps.Limiter = middleware.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod())
	}
	if deps.AuthLimiter == nil {
		deps.AuthLimiter = middleware.NewMemoryLimiter(cfg.AuthRateLimitRequests, cfg.RateLimitPeriod())
	}
	if deps.Feed == nil {
		deps.Feed = services.NewSalesFeed(log, cfg.AllowedOrigins)
	}

	userService := services.NewUserService(deps.DB)
	authService := services.NewAuthService(cfg.JWTSecret, cfg.TokenTTL())
	catalogService := services.NewCatalogService(deps.DB)
	transactionService := services.NewTransactionService(deps.DB, deps.Feed, log)

	authMiddleware := middleware.NewAuthMiddleware(authService, userService)

	authHandlers := NewAuthHandlers(userService, authService, log)
	productHandlers := NewProductHandlers(catalogService, NewImageStore(cfg.UploadPath, cfg.MaxFileSize, cfg.AllowedFileTypes), log)
	categoryHandlers := NewCategoryHandlers(catalogService, log)
	transactionHandlers := NewTransactionHandlers(transactionService, deps.Feed, log)

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxFileSize + formOverhead

	router.Use(gin.Recovery())
	router.Use(logging.GinLogger(log))
	if cfg.EnableMetrics {
		router.Use(metrics.GinMiddleware())
	}
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.SecurityMiddleware(&middleware.SecurityConfig{
		MaxRequestSize: cfg.MaxFileSize + formOverhead,
	}))
	router.Use(middleware.RateLimit(deps.Limiter, "Rate limit exceeded"))

	liveness := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"message":   "AgriMarket API is running",
			"timestamp": time.Now().UTC(),
		})
	}
	router.GET("/", liveness)
	router.GET("/health", liveness)

	if cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	router.Static("/uploads", cfg.UploadPath)

	apiGroup := router.Group("/api")

	auth := apiGroup.Group("/auth")
	{
		auth.POST("/register", middleware.RateLimit(deps.AuthLimiter, "Too many authentication attempts. Please try again later."), authHandlers.Register)
		auth.POST("/login", middleware.RateLimit(deps.AuthLimiter, "Too many authentication attempts. Please try again later."), authHandlers.Login)
		auth.GET("/me", authMiddleware.AuthRequired(), authHandlers.Me)
	}

	products := apiGroup.Group("/products")
	{
		products.GET("", productHandlers.GetProducts)
		products.GET("/:id", productHandlers.GetProduct)
		products.POST("", authMiddleware.AuthRequired(), authMiddleware.FarmerOnly(), productHandlers.CreateProduct)
		products.DELETE("/:id", authMiddleware.AuthRequired(), authMiddleware.FarmerOnly(), productHandlers.DeleteProduct)
	}

	categories := apiGroup.Group("/categories")
	{
		categories.GET("", categoryHandlers.GetCategories)
		categories.POST("", categoryHandlers.CreateCategory)
	}

	transactions := apiGroup.Group("/transactions")
	{
		transactions.POST("/buy", authMiddleware.AuthRequired(), authMiddleware.ClientOnly(), transactionHandlers.BuyProduct)
		transactions.GET("/client", authMiddleware.AuthRequired(), authMiddleware.ClientOnly(), transactionHandlers.GetClientTransactions)
		transactions.GET("/farmer", authMiddleware.AuthRequired(), authMiddleware.FarmerOnly(), transactionHandlers.GetFarmerTransactions)
		transactions.GET("/feed", authMiddleware.WebSocketAuth(), authMiddleware.FarmerOnly(), transactionHandlers.SalesFeed)
	}

	router.NoRoute(func(c *gin.Context) {
		respondMessage(c, http.StatusNotFound, "Route not found")
	})

	return router
}
