package services

import (
	"strings"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/models"
	"quote_manager/internal/money"

	"github.com/shopspring/decimal"
)

type TaskInput struct {
	Description           string              `json:"description" binding:"required"`
	LaborPrice            money.Money         `json:"labor_price"`
	MaterialMode          models.MaterialMode `json:"material_mode" binding:"required,oneof=lump_sum itemized"`
	EstimatedMaterialCost *money.Money        `json:"estimated_material_cost,omitempty"`
	Materials             []MaterialInput     `json:"materials,omitempty" binding:"dive"`
}

// TaskPatch updates only the fields that are set.
type TaskPatch struct {
	Description           *string              `json:"description,omitempty"`
	LaborPrice            *money.Money         `json:"labor_price,omitempty"`
	MaterialMode          *models.MaterialMode `json:"material_mode,omitempty" binding:"omitempty,oneof=lump_sum itemized"`
	EstimatedMaterialCost *money.Money         `json:"estimated_material_cost,omitempty"`
}

// MaterialInput describes a new material line. UnitPrice may be omitted when
// ProductID names an active catalog product; its price is used instead.
type MaterialInput struct {
	ProductID *string      `json:"product_id,omitempty"`
	Quantity  int          `json:"quantity" binding:"min=1"`
	UnitPrice *money.Money `json:"unit_price,omitempty"`
	Notes     string       `json:"notes,omitempty"`
}

type MaterialPatch struct {
	Quantity  *int         `json:"quantity,omitempty" binding:"omitempty,min=1"`
	UnitPrice *money.Money `json:"unit_price,omitempty"`
	Notes     *string      `json:"notes,omitempty"`
}

// ChargesInput rewrites the charge inputs of a quote. At most one of
// MarkupPercentage and MarkupOverride may be set; when neither is, the
// current markup policy is kept. A nil ComplexityCharge keeps the current one.
type ChargesInput struct {
	ComplexityCharge *money.Money     `json:"complexity_charge,omitempty"`
	MarkupPercentage *decimal.Decimal `json:"markup_percentage,omitempty"`
	MarkupOverride   *money.Money     `json:"markup_override,omitempty"`
}

type CreateQuoteInput struct {
	CustomerID string `json:"customer_id" binding:"required"`
	Notes      string `json:"notes,omitempty"`
	ChargesInput
	Tasks []TaskInput `json:"tasks,omitempty" binding:"dive"`
}

func checkAmount(field string, m money.Money) error {
	if m.IsNegative() {
		return apperrors.InvalidAmount(field, "must not be negative, got %s", m)
	}
	if m.Exceeds() {
		return apperrors.InvalidAmount(field, "%s exceeds the supported maximum", m)
	}
	return nil
}

func checkOptionalAmount(field string, m *money.Money) error {
	if m == nil {
		return nil
	}
	return checkAmount(field, *m)
}

func checkDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return apperrors.InvalidState("description", "task description must not be empty")
	}
	return nil
}

func checkQuantity(quantity int) error {
	if quantity < 1 {
		return apperrors.InvalidAmount("quantity", "must be at least 1, got %d", quantity)
	}
	return nil
}

func (in TaskInput) validate() error {
	if err := checkDescription(in.Description); err != nil {
		return err
	}
	if err := checkAmount("labor_price", in.LaborPrice); err != nil {
		return err
	}
	if !in.MaterialMode.Valid() {
		return apperrors.InvalidState("material_mode", "unknown material mode %q", in.MaterialMode)
	}
	if err := checkOptionalAmount("estimated_material_cost", in.EstimatedMaterialCost); err != nil {
		return err
	}
	switch in.MaterialMode {
	case models.LumpSum:
		if len(in.Materials) > 0 {
			return apperrors.InvalidState("materials", "lump-sum tasks cannot carry material lines")
		}
	case models.Itemized:
		if in.EstimatedMaterialCost != nil {
			return apperrors.InvalidState("estimated_material_cost", "itemized tasks take their material cost from material lines")
		}
	}
	for _, m := range in.Materials {
		if err := m.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p TaskPatch) validate(current models.MaterialMode) error {
	if p.Description != nil {
		if err := checkDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.LaborPrice != nil {
		if err := checkAmount("labor_price", *p.LaborPrice); err != nil {
			return err
		}
	}
	mode := current
	if p.MaterialMode != nil {
		if !p.MaterialMode.Valid() {
			return apperrors.InvalidState("material_mode", "unknown material mode %q", *p.MaterialMode)
		}
		mode = *p.MaterialMode
	}
	if p.EstimatedMaterialCost != nil {
		if mode != models.LumpSum {
			return apperrors.InvalidState("estimated_material_cost", "task is itemized; estimated material cost applies to lump-sum tasks only")
		}
		if err := checkAmount("estimated_material_cost", *p.EstimatedMaterialCost); err != nil {
			return err
		}
	}
	return nil
}

func (p TaskPatch) apply(task *models.Task) {
	if p.Description != nil {
		task.Description = strings.TrimSpace(*p.Description)
	}
	if p.LaborPrice != nil {
		task.LaborPrice = *p.LaborPrice
	}
	switch {
	case p.MaterialMode != nil && *p.MaterialMode != task.MaterialMode:
		task.SwitchMode(*p.MaterialMode, p.EstimatedMaterialCost)
	case p.EstimatedMaterialCost != nil:
		cost := *p.EstimatedMaterialCost
		task.EstimatedMaterialCost = &cost
	}
}

func (in MaterialInput) validate() error {
	if err := checkQuantity(in.Quantity); err != nil {
		return err
	}
	if in.UnitPrice == nil && in.ProductID == nil {
		return apperrors.InvalidAmount("unit_price", "unit price is required when no product is referenced")
	}
	return checkOptionalAmount("unit_price", in.UnitPrice)
}

func (p MaterialPatch) validate() error {
	if p.Quantity != nil {
		if err := checkQuantity(*p.Quantity); err != nil {
			return err
		}
	}
	return checkOptionalAmount("unit_price", p.UnitPrice)
}

func (p MaterialPatch) apply(line *models.MaterialLine) {
	if p.Quantity != nil {
		line.Quantity = *p.Quantity
	}
	if p.UnitPrice != nil {
		line.UnitPrice = *p.UnitPrice
	}
	if p.Notes != nil {
		line.Notes = *p.Notes
	}
}

func (in ChargesInput) validate() error {
	if in.MarkupPercentage != nil && in.MarkupOverride != nil {
		return apperrors.InvalidAmount("markup", "give either a markup percentage or a fixed markup override, not both")
	}
	if err := checkOptionalAmount("complexity_charge", in.ComplexityCharge); err != nil {
		return err
	}
	if err := checkOptionalAmount("markup_override", in.MarkupOverride); err != nil {
		return err
	}
	if in.MarkupPercentage != nil {
		if in.MarkupPercentage.IsNegative() {
			return apperrors.InvalidAmount("markup_percentage", "must not be negative, got %s", in.MarkupPercentage)
		}
		if in.MarkupPercentage.GreaterThan(maxMarkupPercentage) {
			return apperrors.InvalidAmount("markup_percentage", "%s exceeds %s", in.MarkupPercentage, maxMarkupPercentage)
		}
	}
	return nil
}

// maxMarkupPercentage matches the decimal(9,2) column.
var maxMarkupPercentage = decimal.New(9999999, 0)

// apply writes the charge inputs, rounded to two places, into q.
func (in ChargesInput) apply(q *models.Quote) {
	if in.ComplexityCharge != nil {
		q.ComplexityCharge = money.Round(in.ComplexityCharge.Decimal())
	}
	switch {
	case in.MarkupOverride != nil:
		q.SetMarkup(models.FixedMarkup(money.Round(in.MarkupOverride.Decimal())))
	case in.MarkupPercentage != nil:
		q.SetMarkup(models.PercentageMarkup(*in.MarkupPercentage))
	}
}
