package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hms-api/internal/model"
)

// ListBatchesForUpdate locks a medicine's in-stock batches for the
// duration of the transaction. Lock order is expiry ascending, which is
// also the consumption order, so concurrent dispensings of the same
// medicine serialize on the same first batch.
func (r *inventoryRepository) ListBatchesForUpdate(ctx context.Context, tx *sqlx.Tx, medicineID uuid.UUID) ([]*model.InventoryBatch, error) {
	query := `
		SELECT id, medicine_id, batch_number, expiry_date,
			   stock_level, unit_price, created_at, updated_at
		FROM inventory
		WHERE medicine_id = $1
		AND stock_level > 0
		ORDER BY expiry_date ASC
		FOR UPDATE
	`
	var batches []*model.InventoryBatch
	err := tx.SelectContext(ctx, &batches, query, medicineID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory batches: %w", err)
	}
	return batches, nil
}

// DeductStock decrements conditionally so stock_level can never go
// negative even if the pre-check raced.
func (r *inventoryRepository) DeductStock(ctx context.Context, tx *sqlx.Tx, batchID uuid.UUID, quantity int) error {
	query := `
		UPDATE inventory
		SET stock_level = stock_level - $1, updated_at = $2
		WHERE id = $3 AND stock_level >= $1
	`
	result, err := tx.ExecContext(ctx, query, quantity, time.Now(), batchID)
	if err != nil {
		return fmt.Errorf("failed to deduct stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *inventoryRepository) List(ctx context.Context) ([]*model.InventoryBatch, error) {
	query := `
		SELECT id, medicine_id, batch_number, expiry_date,
			   stock_level, unit_price, created_at, updated_at
		FROM inventory
		ORDER BY expiry_date ASC
	`
	var batches []*model.InventoryBatch
	err := r.db.SelectContext(ctx, &batches, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return batches, nil
}

func (r *medicineRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	query := `
		SELECT id, brand_name, generic_name, manufacturer,
			   default_dosage, default_frequency, unit,
			   created_at, updated_at
		FROM medicines
		WHERE id = $1
	`
	var medicine model.Medicine
	if err := r.db.GetContext(ctx, &medicine, query, id); err != nil {
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}
	return &medicine, nil
}

func (r *medicineRepository) Search(ctx context.Context, search string, limit int) ([]*model.Medicine, error) {
	query := `
		SELECT id, brand_name, generic_name, manufacturer,
			   default_dosage, default_frequency, unit,
			   created_at, updated_at
		FROM medicines
		WHERE brand_name ILIKE $1 OR generic_name ILIKE $1
		ORDER BY brand_name ASC
		LIMIT $2
	`
	var medicines []*model.Medicine
	if err := r.db.SelectContext(ctx, &medicines, query, "%"+search+"%", limit); err != nil {
		return nil, fmt.Errorf("failed to search medicines: %w", err)
	}
	return medicines, nil
}
