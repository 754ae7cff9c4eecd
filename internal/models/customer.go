package models

import (
	"time"

	"quote_manager/internal/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Customer struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name      string    `json:"name" gorm:"not null" binding:"required"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Product is a catalog entry a material line may reference.
type Product struct {
	ID        string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name      string      `json:"name" gorm:"not null" binding:"required"`
	Unit      string      `json:"unit" gorm:"type:varchar(20);default:'unit'"`
	UnitPrice money.Money `json:"unit_price" gorm:"not null;default:0"`
	IsActive  bool        `json:"is_active" gorm:"not null"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
