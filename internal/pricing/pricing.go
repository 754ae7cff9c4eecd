// Package pricing derives the monetary totals of a quote from its tasks,
// materials and charge inputs. Everything here is pure: no I/O, no mutation
// of the caller's quote.
package pricing

import (
	"fmt"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/models"
	"quote_manager/internal/money"
)

// Breakdown contains every intermediate value of a recalculation.
type Breakdown struct {
	SubtotalTasks     money.Money `json:"subtotal_tasks"`
	SubtotalMaterials money.Money `json:"subtotal_materials"`
	CombinedSubtotal  money.Money `json:"combined_subtotal"`
	ComplexityCharge  money.Money `json:"complexity_charge"`
	MarkupBase        money.Money `json:"markup_base"`
	MarkupCharge      money.Money `json:"markup_charge"`
	GrandTotal        money.Money `json:"grand_total"`
}

// MaterialsCost is the lump-sum estimate or the sum of line totals, depending
// on the task's material mode.
func MaterialsCost(task models.Task) (money.Money, error) {
	switch task.MaterialMode {
	case models.LumpSum:
		if task.EstimatedMaterialCost == nil {
			return money.Zero, nil
		}
		return *task.EstimatedMaterialCost, nil
	case models.Itemized:
		total := money.Zero
		for _, m := range task.Materials {
			total = total.Add(m.LineTotal())
		}
		return total, nil
	default:
		return money.Zero, apperrors.InvalidState("material_mode", "task %s has unknown material mode %q", task.ID, task.MaterialMode)
	}
}

// Compute runs the full calculation over q and returns the breakdown.
func Compute(q models.Quote) (Breakdown, error) {
	subtotalTasks := money.Zero
	subtotalMaterials := money.Zero
	for _, task := range q.Tasks {
		cost, err := MaterialsCost(task)
		if err != nil {
			return Breakdown{}, err
		}
		subtotalTasks = subtotalTasks.Add(task.LaborPrice)
		subtotalMaterials = subtotalMaterials.Add(cost)
	}

	combined := subtotalTasks.Add(subtotalMaterials)
	complexity := q.ComplexityCharge
	markupBase := combined.Add(complexity)

	policy := q.Markup()
	var markup money.Money
	switch policy.Mode {
	case models.MarkupFixed:
		markup = policy.Override
	case models.MarkupPercentage:
		markup = markupBase.PercentageOf(policy.Percentage)
	default:
		return Breakdown{}, apperrors.InvalidState("markup_mode", "unknown markup mode %q", policy.Mode)
	}

	b := Breakdown{
		SubtotalTasks:     subtotalTasks,
		SubtotalMaterials: subtotalMaterials,
		CombinedSubtotal:  combined,
		ComplexityCharge:  complexity,
		MarkupBase:        markupBase,
		MarkupCharge:      markup,
		GrandTotal:        combined.Add(complexity).Add(markup),
	}
	if err := b.checkBounds(); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}

// Recalculate returns a copy of q with subtotal, markup and grand total fields
// replaced. Charge inputs (complexity charge, markup policy) are never written.
func Recalculate(q models.Quote) (models.Quote, error) {
	b, err := Compute(q)
	if err != nil {
		return q, err
	}
	q.SubtotalTasks = b.SubtotalTasks
	q.SubtotalMaterials = b.SubtotalMaterials
	q.MarkupCharge = b.MarkupCharge
	q.GrandTotal = b.GrandTotal
	return q, nil
}

// Verify reports whether the stored totals of q match a fresh computation.
func Verify(q models.Quote) error {
	b, err := Compute(q)
	if err != nil {
		return err
	}
	stored := []struct {
		name      string
		got, want money.Money
	}{
		{"subtotal_tasks", q.SubtotalTasks, b.SubtotalTasks},
		{"subtotal_materials", q.SubtotalMaterials, b.SubtotalMaterials},
		{"markup_charge", q.MarkupCharge, b.MarkupCharge},
		{"grand_total", q.GrandTotal, b.GrandTotal},
	}
	for _, s := range stored {
		if !s.got.Equal(s.want) {
			return fmt.Errorf("quote %s: stored %s %s, computed %s", q.ID, s.name, s.got, s.want)
		}
	}
	sum := q.SubtotalTasks.Add(q.SubtotalMaterials).Add(q.ComplexityCharge).Add(q.MarkupCharge)
	if !sum.Equal(q.GrandTotal) {
		return fmt.Errorf("quote %s: grand total %s is not the sum of its parts %s", q.ID, q.GrandTotal, sum)
	}
	return nil
}

func (b Breakdown) checkBounds() error {
	values := map[string]money.Money{
		"subtotal_tasks":     b.SubtotalTasks,
		"subtotal_materials": b.SubtotalMaterials,
		"markup_charge":      b.MarkupCharge,
		"grand_total":        b.GrandTotal,
	}
	for field, v := range values {
		if v.Exceeds() {
			return apperrors.InternalComputation(field, "%s exceeds the supported maximum of %s", v, money.MaxAmount.StringFixed(money.Scale))
		}
	}
	return nil
}
