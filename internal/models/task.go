package models

import (
	"time"

	"quote_manager/internal/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Task struct {
	ID                    string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	QuoteID               string         `json:"quote_id" gorm:"type:varchar(36);not null;index"`
	Description           string         `json:"description" gorm:"type:text;not null"`
	LaborPrice            money.Money    `json:"labor_price" gorm:"not null;default:0"`
	MaterialMode          MaterialMode   `json:"material_mode" gorm:"type:varchar(20);not null"`
	EstimatedMaterialCost *money.Money   `json:"estimated_material_cost"`
	Materials             []MaterialLine `json:"materials" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	Order                 int            `json:"order" gorm:"column:sort_order;not null"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

type MaterialMode string

const (
	LumpSum  MaterialMode = "lump_sum"
	Itemized MaterialMode = "itemized"
)

func (m MaterialMode) Valid() bool {
	return m == LumpSum || m == Itemized
}

// SwitchMode moves the task to mode, clearing the representation that is no
// longer authoritative. estimate is only used when switching to LumpSum; nil
// means 0.00.
func (t *Task) SwitchMode(mode MaterialMode, estimate *money.Money) {
	switch mode {
	case LumpSum:
		cost := money.Zero
		if estimate != nil {
			cost = *estimate
		}
		t.MaterialMode = LumpSum
		t.EstimatedMaterialCost = &cost
		t.Materials = nil
	case Itemized:
		t.MaterialMode = Itemized
		t.EstimatedMaterialCost = nil
		if t.Materials == nil {
			t.Materials = []MaterialLine{}
		}
	}
}

func (t *Task) FindMaterial(materialID string) *MaterialLine {
	for i := range t.Materials {
		if t.Materials[i].ID == materialID {
			return &t.Materials[i]
		}
	}
	return nil
}

func (t *Task) AppendMaterial(m MaterialLine) *MaterialLine {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.TaskID = t.ID
	m.Position = 1
	for _, existing := range t.Materials {
		if existing.Position >= m.Position {
			m.Position = existing.Position + 1
		}
	}
	t.Materials = append(t.Materials, m)
	return &t.Materials[len(t.Materials)-1]
}

func (t *Task) RemoveMaterial(materialID string) bool {
	for i := range t.Materials {
		if t.Materials[i].ID == materialID {
			t.Materials = append(t.Materials[:i], t.Materials[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// AfterFind restores the mode invariant for rows whose nullable estimate
// column was scanned as a value.
func (t *Task) AfterFind(tx *gorm.DB) error {
	switch t.MaterialMode {
	case Itemized:
		t.EstimatedMaterialCost = nil
	case LumpSum:
		if t.EstimatedMaterialCost == nil {
			zero := money.Zero
			t.EstimatedMaterialCost = &zero
		}
	}
	return nil
}

type MaterialLine struct {
	ID        string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	TaskID    string      `json:"task_id" gorm:"type:varchar(36);not null;index"`
	ProductID *string     `json:"product_id" gorm:"type:varchar(36);index"`
	Quantity  int         `json:"quantity" gorm:"not null"`
	UnitPrice money.Money `json:"unit_price" gorm:"not null;default:0"`
	Notes     string      `json:"notes" gorm:"type:text"`
	Position  int         `json:"position" gorm:"not null;default:0"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LineTotal is derived, never stored.
func (m MaterialLine) LineTotal() money.Money {
	return m.UnitPrice.MulQuantity(m.Quantity)
}

func (m *MaterialLine) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
