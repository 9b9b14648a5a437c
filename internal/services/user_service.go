package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/utils"
)

const invalidCredentialsMessage = "Invalid phone number or password"

// UserService is the identity store
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new user service
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser registers a new identity. The password is hashed before it
// reaches the database; a phone number that is already registered yields
// ErrConflict.
func (s *UserService) CreateUser(ctx context.Context, registration *models.UserRegistration) (*models.User, error) {
	if err := utils.ValidateStruct(registration); err != nil {
		return nil, newError(ErrValidation, "%s", err.Error())
	}

	registration.PhoneNumber = utils.NormalizePhoneNumber(registration.PhoneNumber)
	registration.Name = utils.SanitizeString(registration.Name)
	if registration.Name == "" {
		return nil, newError(ErrValidation, "name is required")
	}

	exists, err := s.UserExists(ctx, registration.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists {
		return nil, newError(ErrConflict, "User already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(registration.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	createdAt := now()
	user := &models.User{
		ID:           uuid.New().String(),
		Name:         registration.Name,
		PhoneNumber:  registration.PhoneNumber,
		PasswordHash: string(hashedPassword),
		Role:         registration.Role,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if registration.FarmName != nil {
		user.FarmName = utils.SafeStringPointer(utils.SanitizeString(*registration.FarmName))
	}
	if registration.Location != nil {
		user.Location = utils.SafeStringPointer(utils.SanitizeString(*registration.Location))
	}

	query := `
		INSERT INTO users (
			id, name, phone_number, password_hash, role, farm_name, location,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.PhoneNumber, user.PasswordHash, user.Role,
		nullString(user.FarmName), nullString(user.Location),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		// lost a race with a concurrent registration of the same phone
		if isUniqueViolation(err) {
			return nil, newError(ErrConflict, "User already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// AuthenticateUser checks a phone/password pair. Unknown phone numbers and
// wrong passwords produce the same error.
func (s *UserService) AuthenticateUser(ctx context.Context, login *models.UserLogin) (*models.User, error) {
	if err := utils.ValidateStruct(login); err != nil {
		return nil, newError(ErrValidation, "%s", err.Error())
	}

	user, err := s.GetUserByPhone(ctx, utils.NormalizePhoneNumber(login.PhoneNumber))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrUnauthenticated, invalidCredentialsMessage)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(login.Password)); err != nil {
		return nil, newError(ErrUnauthenticated, invalidCredentialsMessage)
	}

	return user, nil
}

const selectUserColumns = `
	SELECT id, name, phone_number, password_hash, role, farm_name, location,
		   created_at, updated_at
	FROM users
`

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.getUser(ctx, selectUserColumns+" WHERE id = ?", userID)
}

// GetUserByPhone retrieves a user by normalized phone number
func (s *UserService) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.getUser(ctx, selectUserColumns+" WHERE phone_number = ?", phone)
}

func (s *UserService) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	var farmName, location sql.NullString

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.PhoneNumber, &user.PasswordHash, &user.Role,
		&farmName, &location, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(ErrNotFound, "User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.FarmName = stringPtr(farmName)
	user.Location = stringPtr(location)
	return user, nil
}

// UserExists checks if a phone number is already registered
func (s *UserService) UserExists(ctx context.Context, phone string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE phone_number = ?", phone).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
