package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Medicine struct {
	ID               uuid.UUID `db:"id" json:"id"`
	BrandName        string    `db:"brand_name" json:"brand_name"`
	GenericName      string    `db:"generic_name" json:"generic_name"`
	Manufacturer     string    `db:"manufacturer" json:"manufacturer,omitempty"`
	DefaultDosage    string    `db:"default_dosage" json:"default_dosage,omitempty"`
	DefaultFrequency string    `db:"default_frequency" json:"default_frequency,omitempty"`
	Unit             string    `db:"unit" json:"unit"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// InventoryBatch is one purchasable lot of a medicine. Batches are
// consumed oldest-expiry-first and stock_level never goes below zero.
type InventoryBatch struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	MedicineID  uuid.UUID       `db:"medicine_id" json:"medicine_id"`
	BatchNumber string          `db:"batch_number" json:"batch_number"`
	ExpiryDate  time.Time       `db:"expiry_date" json:"expiry_date"`
	StockLevel  int             `db:"stock_level" json:"stock_level"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
