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

func (r *appointmentRepository) Create(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, date, time_slot,
			queue_number, status, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := extOf(r.db, tx).ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date,
		appointment.TimeSlot,
		appointment.QueueNumber,
		appointment.Status,
		appointment.Reason,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, date, time_slot,
			   queue_number, status, reason, doctor_notes,
			   created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// UpdateStatus guards on the expected current status so a concurrent
// transition fails instead of silently overwriting.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := extOf(r.db, tx).ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
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

func (r *appointmentRepository) SetConsultation(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, notes string, from, to model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET doctor_notes = $1, status = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := extOf(r.db, tx).ExecContext(ctx, query, notes, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to save consultation: %w", err)
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

func (r *appointmentRepository) CountActive(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE doctor_id = $1
		AND date = $2
		AND status != $3
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, doctorID, date, model.AppointmentStatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

// NextQueueNumber upserts the per doctor/date counter row and returns
// the incremented value. The row acts as the serialization point for
// concurrent bookings on the same queue.
func (r *appointmentRepository) NextQueueNumber(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, date time.Time) (int, error) {
	query := `
		INSERT INTO appointment_queues (
			id, doctor_id, queue_date, total_appointments, created_at, updated_at
		) VALUES ($1, $2, $3, 1, NOW(), NOW())
		ON CONFLICT (doctor_id, queue_date)
		DO UPDATE SET
			total_appointments = appointment_queues.total_appointments + 1,
			updated_at = NOW()
		RETURNING total_appointments
	`
	var queueNumber int
	err := sqlx.GetContext(ctx, extOf(r.db, tx), &queueNumber, query, uuid.New(), doctorID, date)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate queue number: %w", err)
	}
	return queueNumber, nil
}

func (r *appointmentRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, date, time_slot,
			   queue_number, status, reason, doctor_notes,
			   created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		AND date = $2
		ORDER BY queue_number ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, date, time_slot,
			   queue_number, status, reason, doctor_notes,
			   created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, queue_number ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByStatus(ctx context.Context, status model.AppointmentStatus) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, date, time_slot,
			   queue_number, status, reason, doctor_notes,
			   created_at, updated_at
		FROM appointments
		WHERE status = $1
		ORDER BY updated_at ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments by status: %w", err)
	}
	return appointments, nil
}
