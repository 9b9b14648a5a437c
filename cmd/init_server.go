package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/config"
	"agrimarket-backend/database"
	"agrimarket-backend/internal/logging"
	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/services"
)

// categories offered to farmers on a fresh install
var defaultCategories = []string{
	"Vegetables",
	"Fruits",
	"Grains",
	"Legumes",
	"Dairy",
	"Poultry",
	"Herbs",
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.WithField("database", cfg.DatabaseURL).Info("Initializing AgriMarket database")

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if err := os.MkdirAll(cfg.UploadPath, 0755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	names := defaultCategories
	if raw := os.Getenv("SEED_CATEGORIES"); raw != "" {
		names = strings.Split(raw, ",")
	}

	created, err := seedCategories(context.Background(), services.NewCatalogService(db), names, log)
	if err != nil {
		log.Fatalf("Failed to seed categories: %v", err)
	}

	for _, table := range []string{"users", "categories", "products", "transactions"} {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			log.Fatalf("Integrity check failed for %s: %v", table, err)
		}
		log.WithFields(logrus.Fields{"table": table, "rows": count}).Info("table ready")
	}

	log.WithField("categories_created", created).Info("Initialization completed")
}

// seedCategories adds each missing category; existing names are skipped
func seedCategories(ctx context.Context, catalog *services.CatalogService, names []string, log logrus.FieldLogger) (int, error) {
	created := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		_, err := catalog.CreateCategory(ctx, &models.CategoryCreation{Name: name})
		switch {
		case err == nil:
			created++
		case errors.Is(err, services.ErrConflict):
			log.WithField("category", name).Debug("category exists")
		default:
			return created, err
		}
	}
	return created, nil
}
