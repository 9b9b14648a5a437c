package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// defaultParams are appended to file DSNs that carry no options of their own.
// _txlock=immediate makes every BEGIN take the write lock up front, so two
// purchases of the same product queue behind each other instead of failing
// with a lock upgrade error.
const defaultParams = "_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1&_txlock=immediate"

// DSN normalizes a database URL into a go-sqlite3 DSN
func DSN(databaseURL string) string {
	if strings.Contains(databaseURL, "?") {
		if !strings.Contains(databaseURL, "_txlock=") {
			databaseURL += "&_txlock=immediate"
		}
		return databaseURL
	}
	return databaseURL + "?" + defaultParams
}

// Initialize creates and returns a database connection
func Initialize(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", DSN(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = memory",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logrus.WithError(err).Warnf("failed to set pragma %s", pragma)
		}
	}

	logrus.WithField("database", databaseURL).Info("Database connection established")
	return db, nil
}

// Migrate runs database migrations
func Migrate(db *sql.DB) error {
	migrations := []string{
		createUsersTable,
		createCategoriesTable,
		createProductsTable,
		createTransactionsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	logrus.Debug("Database migrations completed")
	return nil
}

const createUsersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone_number TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('farmer', 'client')),
		farm_name TEXT,
		location TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
`

const createCategoriesTable = `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
`

// price is TEXT so decimals round-trip exactly
const createProductsTable = `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		price TEXT NOT NULL,
		farmer_id TEXT NOT NULL REFERENCES users(id),
		category_id TEXT REFERENCES categories(id),
		image_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
`

// product_id carries no foreign key: the ledger outlives deleted products
const createTransactionsTable = `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		farmer_id TEXT NOT NULL REFERENCES users(id),
		client_id TEXT NOT NULL REFERENCES users(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
`

const createIndexes = `
	CREATE INDEX IF NOT EXISTS idx_products_farmer_id ON products(farmer_id);
	CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_client_id ON transactions(client_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_farmer_id ON transactions(farmer_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_product_id ON transactions(product_id);
`
