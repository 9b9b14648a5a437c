package helpers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"agrimarket-backend/config"
	"agrimarket-backend/database"
	"agrimarket-backend/internal/api"
	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/services"
)

const TestJWTSecret = "test-jwt-secret-key-12345678901234567890"

// TestUser is a seeded identity with a ready credential
type TestUser struct {
	*models.User
	Password string
	Token    string
}

// NewTestConfig returns a config whose files live under t.TempDir
func NewTestConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Environment:           "test",
		Port:                  "0",
		DatabaseURL:           filepath.Join(dir, "test.db"),
		JWTSecret:             TestJWTSecret,
		JWTExpiration:         3600,
		MaxFileSize:           1024 * 1024,
		AllowedFileTypes:      []string{"image/jpeg", "image/png", "image/webp"},
		UploadPath:            filepath.Join(dir, "uploads"),
		RateLimitRequests:     10000,
		RateLimitWindow:       60,
		AuthRateLimitRequests: 10000,
		LogLevel:              "error",
		LogFormat:             "text",
		EnableMetrics:         true,
	}
}

// NewTestLogger returns a logger that writes nowhere
func NewTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// SetupTestDatabase opens a migrated SQLite file database. A file is used
// rather than :memory: so every pooled connection sees the same data.
func SetupTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { db.Close() })
	return db
}

// CreateTestUser registers a user through the identity store
func CreateTestUser(t *testing.T, db *sql.DB, role models.Role, phone string) TestUser {
	t.Helper()

	password := "password123"
	reg := &models.UserRegistration{
		Name:        string(role) + " " + phone[len(phone)-4:],
		PhoneNumber: phone,
		Password:    password,
		Role:        role,
	}
	if role == models.RoleFarmer {
		farm := "Green Acres"
		reg.FarmName = &farm
	}

	user, err := services.NewUserService(db).CreateUser(context.Background(), reg)
	require.NoError(t, err)

	token, err := services.NewAuthService(TestJWTSecret, time.Hour).GenerateToken(user)
	require.NoError(t, err)

	return TestUser{User: user, Password: password, Token: token}
}

// CreateTestProduct inserts a product owned by farmerID
func CreateTestProduct(t *testing.T, db *sql.DB, farmerID string, quantity int, price string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO products (id, name, description, quantity, price, farmer_id, image_url)
		VALUES (?, ?, ?, ?, ?, ?, '')
	`, id, "Tomatoes", "Fresh tomatoes", quantity, decimal.RequireFromString(price), farmerID)
	require.NoError(t, err)

	return id
}

// ProductQuantity reads current stock
func ProductQuantity(t *testing.T, db *sql.DB, productID string) int {
	t.Helper()

	var quantity int
	require.NoError(t, db.QueryRow("SELECT quantity FROM products WHERE id = ?", productID).Scan(&quantity))
	return quantity
}

// CountRows counts rows in table
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
	return count
}

// TestSuite represents a test suite with common setup
type TestSuite struct {
	DB     *sql.DB
	Router *gin.Engine
	Config *config.Config
	Feed   *services.SalesFeed
	Users  map[string]TestUser
}

// NewTestSuite builds the full router over a fresh database seeded with
// two farmers and two clients
func NewTestSuite(t *testing.T) *TestSuite {
	gin.SetMode(gin.TestMode)

	cfg := NewTestConfig(t)
	db := SetupTestDatabase(t)
	log := NewTestLogger()
	feed := services.NewSalesFeed(log, nil)
	t.Cleanup(feed.Close)

	router := api.NewRouter(api.Dependencies{
		Config: cfg,
		DB:     db,
		Log:    log,
		Feed:   feed,
	})

	users := map[string]TestUser{
		"farmer":  CreateTestUser(t, db, models.RoleFarmer, "+254700000001"),
		"farmer2": CreateTestUser(t, db, models.RoleFarmer, "+254700000002"),
		"client":  CreateTestUser(t, db, models.RoleClient, "+254700000003"),
		"client2": CreateTestUser(t, db, models.RoleClient, "+254700000004"),
	}

	return &TestSuite{
		DB:     db,
		Router: router,
		Config: cfg,
		Feed:   feed,
		Users:  users,
	}
}

// GetAuthHeaders returns authorization headers for a seeded user
func (ts *TestSuite) GetAuthHeaders(userType string) map[string]string {
	user, exists := ts.Users[userType]
	if !exists {
		return nil
	}

	return map[string]string{
		"Authorization": "Bearer " + user.Token,
	}
}

// MakeRequest makes an HTTP request to the test router
func MakeRequest(router http.Handler, method, url string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, url, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// DecodeObject unmarshals a JSON object response
func DecodeObject(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

// DecodeArray unmarshals a JSON array response
func DecodeArray(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()

	var response []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}
