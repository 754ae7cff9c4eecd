package repository

import (
	"context"
	"errors"
	"fmt"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PricingSettingRepository interface {
	GetSetting(ctx context.Context, settingName string) (*models.PricingSetting, error)
	SaveSetting(ctx context.Context, setting *models.PricingSetting) error
}

type pricingSettingRepository struct {
	db *gorm.DB
}

func NewPricingSettingRepository(db *gorm.DB) PricingSettingRepository {
	return &pricingSettingRepository{db: db}
}

func (r *pricingSettingRepository) GetSetting(ctx context.Context, settingName string) (*models.PricingSetting, error) {
	var setting models.PricingSetting
	err := r.db.WithContext(ctx).Where("setting_name = ? AND is_active = ?", settingName, true).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("pricing setting", settingName)
		}
		return nil, fmt.Errorf("failed to get pricing setting %s: %w", settingName, err)
	}
	return &setting, nil
}

// SaveSetting inserts the setting or overwrites the one with the same name.
func (r *pricingSettingRepository) SaveSetting(ctx context.Context, setting *models.PricingSetting) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"percentage_value", "fixed_amount", "is_percentage", "is_active", "updated_at"}),
	}).Create(setting).Error
	if err != nil {
		return fmt.Errorf("failed to save pricing setting %s: %w", setting.SettingName, err)
	}
	return nil
}
