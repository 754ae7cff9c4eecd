package models

import (
	"time"

	"quote_manager/internal/money"

	"github.com/shopspring/decimal"
)

// PricingSetting holds a named default applied to new quotes.
type PricingSetting struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	SettingName     string          `json:"setting_name" gorm:"uniqueIndex;not null"` // default_markup_rate, default_complexity_charge
	PercentageValue decimal.Decimal `json:"percentage_value" gorm:"type:decimal(9,2);not null;default:0"`
	FixedAmount     money.Money     `json:"fixed_amount" gorm:"not null;default:0"`
	IsPercentage    bool            `json:"is_percentage" gorm:"not null"`
	IsActive        bool            `json:"is_active" gorm:"not null"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

const (
	SettingDefaultMarkupRate       = "default_markup_rate"
	SettingDefaultComplexityCharge = "default_complexity_charge"
)

// CalculationHistory records the totals produced by each committed recalculation.
type CalculationHistory struct {
	ID                uint        `json:"id" gorm:"primaryKey"`
	QuoteID           string      `json:"quote_id" gorm:"type:varchar(36);not null;index"`
	Operation         string      `json:"operation" gorm:"type:varchar(40);not null"` // add_task, update_charges, ...
	SubtotalTasks     money.Money `json:"subtotal_tasks"`
	SubtotalMaterials money.Money `json:"subtotal_materials"`
	ComplexityCharge  money.Money `json:"complexity_charge"`
	MarkupCharge      money.Money `json:"markup_charge"`
	GrandTotal        money.Money `json:"grand_total"`
	QuoteVersion      int64       `json:"quote_version"`
	CalculatedAt      time.Time   `json:"calculated_at"`
	CreatedAt         time.Time   `json:"created_at"`
}

// NewCalculationHistory snapshots the stored totals of q.
func NewCalculationHistory(q *Quote, operation string, at time.Time) *CalculationHistory {
	return &CalculationHistory{
		QuoteID:           q.ID,
		Operation:         operation,
		SubtotalTasks:     q.SubtotalTasks,
		SubtotalMaterials: q.SubtotalMaterials,
		ComplexityCharge:  q.ComplexityCharge,
		MarkupCharge:      q.MarkupCharge,
		GrandTotal:        q.GrandTotal,
		QuoteVersion:      q.Version,
		CalculatedAt:      at,
	}
}
