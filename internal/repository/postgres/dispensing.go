package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hms-api/internal/model"
)

func (r *dispensingRepository) Create(ctx context.Context, tx *sqlx.Tx, d *model.Dispensing) error {
	query := `
		INSERT INTO dispensings (
			id, prescription_id, pharmacist_id, status, dispensed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	d.CreatedAt = time.Now()

	_, err := extOf(r.db, tx).ExecContext(ctx, query,
		d.ID,
		d.PrescriptionID,
		d.PharmacistID,
		d.Status,
		d.DispensedAt,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dispensing: %w", err)
	}
	return nil
}

func (r *dispensingRepository) CreateItem(ctx context.Context, tx *sqlx.Tx, item *model.DispensingItem) error {
	query := `
		INSERT INTO dispensing_items (
			id, dispensing_id, prescription_item_id, inventory_id,
			quantity_issued, price_at_issue, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	item.CreatedAt = time.Now()

	_, err := extOf(r.db, tx).ExecContext(ctx, query,
		item.ID,
		item.DispensingID,
		item.PrescriptionItemID,
		item.InventoryID,
		item.QuantityIssued,
		item.PriceAtIssue,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dispensing item: %w", err)
	}
	return nil
}

func (r *dispensingRepository) GetByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*model.Dispensing, error) {
	query := `
		SELECT id, prescription_id, pharmacist_id, status, dispensed_at, created_at
		FROM dispensings
		WHERE prescription_id = $1
	`
	var d model.Dispensing
	if err := r.db.GetContext(ctx, &d, query, prescriptionID); err != nil {
		return nil, fmt.Errorf("failed to get dispensing: %w", err)
	}
	return &d, nil
}

func (r *dispensingRepository) ListItemsByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*model.DispensedItemView, error) {
	query := `
		SELECT m.brand_name AS medicine_name,
			   m.unit AS unit,
			   di.quantity_issued,
			   di.price_at_issue
		FROM dispensing_items di
		JOIN dispensings d ON d.id = di.dispensing_id
		JOIN prescription_items pi ON pi.id = di.prescription_item_id
		JOIN medicines m ON m.id = pi.medicine_id
		WHERE d.prescription_id = $1
		ORDER BY di.created_at ASC
	`
	var items []*model.DispensedItemView
	if err := r.db.SelectContext(ctx, &items, query, prescriptionID); err != nil {
		return nil, fmt.Errorf("failed to list dispensed items: %w", err)
	}
	return items, nil
}
