package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hms-api/internal/model"
)

func (r *prescriptionRepository) Create(ctx context.Context, tx *sqlx.Tx, rx *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, appointment_id, doctor_id, notes, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`
	rx.CreatedAt = time.Now()

	_, err := extOf(r.db, tx).ExecContext(ctx, query,
		rx.ID,
		rx.AppointmentID,
		rx.DoctorID,
		rx.Notes,
		rx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) CreateItems(ctx context.Context, tx *sqlx.Tx, items []*model.PrescriptionItem) error {
	query := `
		INSERT INTO prescription_items (
			id, prescription_id, medicine_id, dosage, frequency,
			duration_days, quantity, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, item := range items {
		item.CreatedAt = time.Now()
		_, err := extOf(r.db, tx).ExecContext(ctx, query,
			item.ID,
			item.PrescriptionID,
			item.MedicineID,
			item.Dosage,
			item.Frequency,
			item.DurationDays,
			item.Quantity,
			item.Notes,
			item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create prescription item: %w", err)
		}
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	query := `
		SELECT id, appointment_id, doctor_id, notes, created_at
		FROM prescriptions
		WHERE id = $1
	`
	var rx model.Prescription
	if err := r.db.GetContext(ctx, &rx, query, id); err != nil {
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}

	if err := r.loadItems(ctx, &rx); err != nil {
		return nil, err
	}
	return &rx, nil
}

func (r *prescriptionRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	query := `
		SELECT id, appointment_id, doctor_id, notes, created_at
		FROM prescriptions
		WHERE appointment_id = $1
	`
	var rx model.Prescription
	if err := r.db.GetContext(ctx, &rx, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to get prescription by appointment: %w", err)
	}

	if err := r.loadItems(ctx, &rx); err != nil {
		return nil, err
	}
	return &rx, nil
}

func (r *prescriptionRepository) loadItems(ctx context.Context, rx *model.Prescription) error {
	query := `
		SELECT id, prescription_id, medicine_id, dosage, frequency,
			   duration_days, quantity, notes, created_at
		FROM prescription_items
		WHERE prescription_id = $1
		ORDER BY created_at ASC
	`
	if err := r.db.SelectContext(ctx, &rx.Items, query, rx.ID); err != nil {
		return fmt.Errorf("failed to load prescription items: %w", err)
	}
	return nil
}
