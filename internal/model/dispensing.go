package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DispensingStatus string

const (
	DispensingStatusIssued DispensingStatus = "Issued"
)

// Dispensing records the issuing of physical medicine against a
// prescription. At most one dispensing exists per prescription, which
// is what caps quantity_issued at the prescribed quantity.
type Dispensing struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	PrescriptionID uuid.UUID        `db:"prescription_id" json:"prescription_id"`
	PharmacistID   uuid.UUID        `db:"pharmacist_id" json:"pharmacist_id"`
	Status         DispensingStatus `db:"status" json:"status"`
	DispensedAt    time.Time        `db:"dispensed_at" json:"dispensed_at"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`

	Items []*DispensingItem `db:"-" json:"items,omitempty"`
}

// DispensingItem is one draw against a specific inventory batch. A
// single prescription item may produce several of these when it spans
// batches.
type DispensingItem struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	DispensingID       uuid.UUID       `db:"dispensing_id" json:"dispensing_id"`
	PrescriptionItemID uuid.UUID       `db:"prescription_item_id" json:"prescription_item_id"`
	InventoryID        uuid.UUID       `db:"inventory_id" json:"inventory_id"`
	QuantityIssued     int             `db:"quantity_issued" json:"quantity_issued"`
	PriceAtIssue       decimal.Decimal `db:"price_at_issue" json:"price_at_issue"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// DispensedItemView is the billing projection of a dispensing item,
// joined with the medicine name.
type DispensedItemView struct {
	MedicineName   string          `db:"medicine_name" json:"medicine_name"`
	Unit           string          `db:"unit" json:"unit"`
	QuantityIssued int             `db:"quantity_issued" json:"quantity_issued"`
	PriceAtIssue   decimal.Decimal `db:"price_at_issue" json:"price_at_issue"`
}

type DispenseItemRequest struct {
	PrescriptionItemID uuid.UUID `json:"prescription_item_id" binding:"required"`
	MedicineID         uuid.UUID `json:"medicine_id" binding:"required"`
	Quantity           int       `json:"quantity" binding:"required,min=1"`
}

type DispenseRequest struct {
	Items []DispenseItemRequest `json:"items" binding:"required,min=1,dive"`
}
