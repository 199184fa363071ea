package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hms-api/internal/model"
)

func (r *invoiceRepository) Create(ctx context.Context, tx *sqlx.Tx, inv *model.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, appointment_id, total_amount, payment_method,
			payment_status, issued_by, paid_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = time.Now()

	_, err := extOf(r.db, tx).ExecContext(ctx, query,
		inv.ID,
		inv.AppointmentID,
		inv.TotalAmount,
		inv.PaymentMethod,
		inv.PaymentStatus,
		inv.IssuedBy,
		inv.PaidAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) CreateItem(ctx context.Context, tx *sqlx.Tx, item *model.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (
			id, invoice_id, description, amount, source_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	item.CreatedAt = time.Now()

	_, err := extOf(r.db, tx).ExecContext(ctx, query,
		item.ID,
		item.InvoiceID,
		item.Description,
		item.Amount,
		item.SourceType,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice item: %w", err)
	}
	return nil
}

func (r *invoiceRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Invoice, error) {
	query := `
		SELECT id, appointment_id, total_amount, payment_method,
			   payment_status, issued_by, paid_at, created_at, updated_at
		FROM invoices
		WHERE appointment_id = $1
	`
	var inv model.Invoice
	if err := r.db.GetContext(ctx, &inv, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}
