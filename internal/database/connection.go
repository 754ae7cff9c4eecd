package database

import (
	"fmt"
	"strings"

	"quote_manager/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Options struct {
	Driver   string
	URL      string
	LogLevel string
}

func Initialize(opts Options, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(opts.Driver, opts.URL)
	if err != nil {
		return nil, err
	}

	// Configure GORM
	config := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(opts.LogLevel)),
	}

	// Connect to database
	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.WithField("driver", dialector.Name()).Info("database connected")
	return db, nil
}

// Dialector picks the gorm driver for name.
func Dialector(name, url string) (gorm.Dialector, error) {
	switch strings.ToLower(name) {
	case DriverPostgres, "postgresql", "":
		return postgres.Open(url), nil
	case DriverSQLite, "sqlite3":
		return sqlite.Open(url), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", name)
	}
}

// AutoMigrate creates or updates every table the quote core persists.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Customer{},
		&models.Product{},
		&models.Quote{},
		&models.Task{},
		&models.MaterialLine{},
		&models.QuoteSequence{},
		&models.PricingSetting{},
		&models.CalculationHistory{},
	)
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
