// pkg/database/postgres.go
package database

import (
	"fmt"

	"incident-quiz/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	DSN      string
	LogLevel logger.LogLevel
}

func NewPostgresDB(config *Config) (*gorm.DB, error) {
	level := config.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(config.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates every table the service owns or reads.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("Database migrated", zap.Int("tables", len(models.All())))
	return nil
}
