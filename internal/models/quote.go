package models

import (
	"time"

	"quote_manager/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Quote struct {
	ID                string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	SequentialID      int64           `json:"sequential_id" gorm:"uniqueIndex;not null"`
	Status            QuoteStatus     `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	CustomerID        string          `json:"customer_id" gorm:"type:varchar(36);not null;index"`
	Notes             string          `json:"notes" gorm:"type:text"`
	Tasks             []Task          `json:"tasks" gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
	MarkupMode        MarkupMode      `json:"markup_mode" gorm:"type:varchar(20);not null;default:'percentage'"`
	MarkupPercentage  decimal.Decimal `json:"markup_percentage" gorm:"type:decimal(9,2);not null;default:0"`
	MarkupOverride    money.Money     `json:"markup_override" gorm:"not null;default:0"`
	ComplexityCharge  money.Money     `json:"complexity_charge" gorm:"not null;default:0"`
	SubtotalTasks     money.Money     `json:"subtotal_tasks" gorm:"not null;default:0"`
	SubtotalMaterials money.Money     `json:"subtotal_materials" gorm:"not null;default:0"`
	MarkupCharge      money.Money     `json:"markup_charge" gorm:"not null;default:0"`
	GrandTotal        money.Money     `json:"grand_total" gorm:"not null;default:0"`
	Version           int64           `json:"version" gorm:"not null;default:1"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected:
		return true
	}
	return false
}

type MarkupMode string

const (
	MarkupPercentage MarkupMode = "percentage"
	MarkupFixed      MarkupMode = "fixed"
)

// MarkupPolicy selects how the markup charge is derived: a percentage of the
// markup base, or a fixed override that recalculation never touches.
type MarkupPolicy struct {
	Mode       MarkupMode
	Percentage decimal.Decimal
	Override   money.Money
}

func PercentageMarkup(pct decimal.Decimal) MarkupPolicy {
	return MarkupPolicy{Mode: MarkupPercentage, Percentage: pct.Round(2)}
}

func FixedMarkup(override money.Money) MarkupPolicy {
	return MarkupPolicy{Mode: MarkupFixed, Percentage: decimal.Zero, Override: override}
}

func (q *Quote) Markup() MarkupPolicy {
	mode := q.MarkupMode
	if mode == "" {
		mode = MarkupPercentage
	}
	return MarkupPolicy{Mode: mode, Percentage: q.MarkupPercentage, Override: q.MarkupOverride}
}

func (q *Quote) SetMarkup(p MarkupPolicy) {
	q.MarkupMode = p.Mode
	q.MarkupPercentage = p.Percentage
	q.MarkupOverride = p.Override
	if p.Mode != MarkupFixed {
		q.MarkupOverride = money.Zero
	}
}

// IsLocked reports whether structural and charge edits are refused.
func (q *Quote) IsLocked() bool {
	return q.Status == QuoteAccepted
}

func (q *Quote) FindTask(taskID string) *Task {
	for i := range q.Tasks {
		if q.Tasks[i].ID == taskID {
			return &q.Tasks[i]
		}
	}
	return nil
}

// FindMaterial returns the owning task and the material line.
func (q *Quote) FindMaterial(materialID string) (*Task, *MaterialLine) {
	for i := range q.Tasks {
		if m := q.Tasks[i].FindMaterial(materialID); m != nil {
			return &q.Tasks[i], m
		}
	}
	return nil, nil
}

// NextTaskOrder returns max(order)+1, or 1 for an empty quote.
func (q *Quote) NextTaskOrder() int {
	next := 1
	for _, t := range q.Tasks {
		if t.Order >= next {
			next = t.Order + 1
		}
	}
	return next
}

// AppendTask assigns the task to this quote at the end of the task order.
func (q *Quote) AppendTask(t Task) *Task {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.QuoteID = q.ID
	t.Order = q.NextTaskOrder()
	for i := range t.Materials {
		t.Materials[i].TaskID = t.ID
	}
	q.Tasks = append(q.Tasks, t)
	return &q.Tasks[len(q.Tasks)-1]
}

func (q *Quote) RemoveTask(taskID string) bool {
	for i := range q.Tasks {
		if q.Tasks[i].ID == taskID {
			q.Tasks = append(q.Tasks[:i], q.Tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Status == "" {
		q.Status = QuoteDraft
	}
	if q.MarkupMode == "" {
		q.MarkupMode = MarkupPercentage
	}
	if q.Version == 0 {
		q.Version = 1
	}
	return nil
}

// QuoteSequence backs the human-facing quote numbers.
type QuoteSequence struct {
	Name  string `json:"name" gorm:"type:varchar(50);primaryKey"`
	Value int64  `json:"value" gorm:"not null;default:0"`
}

const QuoteSequenceName = "quote"

// QuoteSummary is the totals-only view of a quote served to list and dashboard reads.
type QuoteSummary struct {
	ID                string      `json:"id"`
	SequentialID      int64       `json:"sequential_id"`
	Status            QuoteStatus `json:"status"`
	CustomerID        string      `json:"customer_id"`
	TaskCount         int         `json:"task_count"`
	SubtotalTasks     money.Money `json:"subtotal_tasks"`
	SubtotalMaterials money.Money `json:"subtotal_materials"`
	ComplexityCharge  money.Money `json:"complexity_charge"`
	MarkupCharge      money.Money `json:"markup_charge"`
	GrandTotal        money.Money `json:"grand_total"`
	Version           int64       `json:"version"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (q *Quote) Summary() QuoteSummary {
	return QuoteSummary{
		ID:                q.ID,
		SequentialID:      q.SequentialID,
		Status:            q.Status,
		CustomerID:        q.CustomerID,
		TaskCount:         len(q.Tasks),
		SubtotalTasks:     q.SubtotalTasks,
		SubtotalMaterials: q.SubtotalMaterials,
		ComplexityCharge:  q.ComplexityCharge,
		MarkupCharge:      q.MarkupCharge,
		GrandTotal:        q.GrandTotal,
		Version:           q.Version,
		UpdatedAt:         q.UpdatedAt,
	}
}
