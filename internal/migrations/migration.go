package migrations

import (
	"context"
	"errors"
	"fmt"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/database"
	"quote_manager/internal/models"
	"quote_manager/internal/money"
	"quote_manager/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultSettings are seeded when no setting with the same name exists.
func DefaultSettings() []models.PricingSetting {
	return []models.PricingSetting{
		{
			SettingName:     models.SettingDefaultMarkupRate,
			PercentageValue: decimal.NewFromInt(10),
			FixedAmount:     money.Zero,
			IsPercentage:    true,
			IsActive:        true,
		},
		{
			SettingName:     models.SettingDefaultComplexityCharge,
			PercentageValue: decimal.Zero,
			FixedAmount:     money.Zero,
			IsPercentage:    false,
			IsActive:        true,
		},
	}
}

// RunMigrations creates or updates the schema and seeds default data. With
// reset set, every table is dropped first.
func RunMigrations(ctx context.Context, db *gorm.DB, reset bool, log *logrus.Logger) error {
	if reset {
		log.Warn("dropping existing tables")
		err := db.Migrator().DropTable(
			&models.CalculationHistory{},
			&models.MaterialLine{},
			&models.Task{},
			&models.Quote{},
			&models.QuoteSequence{},
			&models.PricingSetting{},
			&models.Product{},
			&models.Customer{},
		)
		if err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}

	log.Info("running database migrations")
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := seedSettings(ctx, repository.NewPricingSettingRepository(db), log); err != nil {
		return err
	}
	if err := seedSequence(ctx, db); err != nil {
		return err
	}

	log.Info("database migrations completed")
	return nil
}

func seedSettings(ctx context.Context, settings repository.PricingSettingRepository, log *logrus.Logger) error {
	for _, setting := range DefaultSettings() {
		_, err := settings.GetSetting(ctx, setting.SettingName)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		setting := setting
		if err := settings.SaveSetting(ctx, &setting); err != nil {
			return err
		}
		log.WithField("setting", setting.SettingName).Info("seeded pricing setting")
	}
	return nil
}

// seedSequence makes sure the quote counter row exists and is not behind the
// highest quote number already stored.
func seedSequence(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	var maxID int64
	if err := db.Model(&models.Quote{}).Select("COALESCE(MAX(sequential_id), 0)").Scan(&maxID).Error; err != nil {
		return fmt.Errorf("failed to read highest quote number: %w", err)
	}

	var seq models.QuoteSequence
	err := db.Where("name = ?", models.QuoteSequenceName).First(&seq).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		seq = models.QuoteSequence{Name: models.QuoteSequenceName, Value: maxID}
		if err := db.Create(&seq).Error; err != nil {
			return fmt.Errorf("failed to create quote sequence: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read quote sequence: %w", err)
	case seq.Value < maxID:
		if err := db.Model(&seq).Update("value", maxID).Error; err != nil {
			return fmt.Errorf("failed to advance quote sequence: %w", err)
		}
	}
	return nil
}
