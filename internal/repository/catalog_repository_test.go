package repository

import (
	"context"
	"testing"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/models"
	"quote_manager/internal/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	customer := &models.Customer{Name: "Ada", Phone: "0811"}
	require.NoError(t, repo.Create(ctx, customer))
	require.NotEmpty(t, customer.ID)

	got, err := repo.GetByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, NewTransactor(db).Transact(ctx, func(tx Tx) error {
		ok, err := repo.Exists(tx, customer.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.Exists(tx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestProductRepository_GetActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	active := &models.Product{Name: "Drywall sheet", UnitPrice: money.MustParse("12.40"), IsActive: true}
	retired := &models.Product{Name: "Asbestos board", UnitPrice: money.MustParse("1.00"), IsActive: true}
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, retired))
	require.NoError(t, db.Model(retired).Update("is_active", false).Error)

	require.NoError(t, NewTransactor(db).Transact(ctx, func(tx Tx) error {
		got, err := repo.GetActive(tx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, "12.40", got.UnitPrice.String())

		_, err = repo.GetActive(tx, retired.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		return nil
	}))

	got, err := repo.GetByID(ctx, retired.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestPricingSettingRepository_SaveOverwritesByName(t *testing.T) {
	db := newTestDB(t)
	repo := NewPricingSettingRepository(db)
	ctx := context.Background()

	_, err := repo.GetSetting(ctx, models.SettingDefaultMarkupRate)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.SaveSetting(ctx, &models.PricingSetting{
		SettingName:     models.SettingDefaultMarkupRate,
		PercentageValue: decimal.NewFromInt(10),
		IsPercentage:    true,
		IsActive:        true,
	}))
	require.NoError(t, repo.SaveSetting(ctx, &models.PricingSetting{
		SettingName:     models.SettingDefaultMarkupRate,
		PercentageValue: decimal.RequireFromString("12.5"),
		IsPercentage:    true,
		IsActive:        true,
	}))

	got, err := repo.GetSetting(ctx, models.SettingDefaultMarkupRate)
	require.NoError(t, err)
	assert.Equal(t, "12.50", got.PercentageValue.StringFixed(2))

	var count int64
	require.NoError(t, db.Model(&models.PricingSetting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInactiveRecordsAreStoredInactive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	products := NewProductRepository(db)
	draft := &models.Product{Name: "Unreleased panel", UnitPrice: money.MustParse("3.00"), IsActive: false}
	require.NoError(t, products.Create(ctx, draft))
	stored, err := products.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	require.NoError(t, NewTransactor(db).Transact(ctx, func(tx Tx) error {
		_, err := products.GetActive(tx, draft.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		return nil
	}))

	settings := NewPricingSettingRepository(db)
	require.NoError(t, settings.SaveSetting(ctx, &models.PricingSetting{
		SettingName:  models.SettingDefaultComplexityCharge,
		FixedAmount:  money.MustParse("25.00"),
		IsPercentage: false,
		IsActive:     false,
	}))
	_, err = settings.GetSetting(ctx, models.SettingDefaultComplexityCharge)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
