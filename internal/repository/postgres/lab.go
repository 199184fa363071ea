package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/hms-api/internal/model"
)

func (r *labRepository) CreateReport(ctx context.Context, tx *sqlx.Tx, report *model.LabReport) error {
	query := `
		INSERT INTO lab_reports (
			id, appointment_id, lab_test_type_id, test_name,
			status, price, requested_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	report.CreatedAt = time.Now()
	report.UpdatedAt = time.Now()

	_, err := extOf(r.db, tx).ExecContext(ctx, query,
		report.ID,
		report.AppointmentID,
		report.LabTestTypeID,
		report.TestName,
		report.Status,
		report.Price,
		report.RequestedBy,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lab report: %w", err)
	}
	return nil
}

func (r *labRepository) GetReport(ctx context.Context, id uuid.UUID) (*model.LabReport, error) {
	query := `
		SELECT id, appointment_id, lab_test_type_id, test_name,
			   status, price, requested_by, processed_by,
			   created_at, updated_at
		FROM lab_reports
		WHERE id = $1
	`
	var report model.LabReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, fmt.Errorf("failed to get lab report: %w", err)
	}
	return &report, nil
}

func (r *labRepository) ListReportsByStatus(ctx context.Context, status model.LabReportStatus) ([]*model.LabReport, error) {
	query := `
		SELECT id, appointment_id, lab_test_type_id, test_name,
			   status, price, requested_by, processed_by,
			   created_at, updated_at
		FROM lab_reports
		WHERE status = $1
		ORDER BY created_at ASC
	`
	var reports []*model.LabReport
	if err := r.db.SelectContext(ctx, &reports, query, status); err != nil {
		return nil, fmt.Errorf("failed to list lab reports: %w", err)
	}
	return reports, nil
}

func (r *labRepository) ListReportsByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.LabReport, error) {
	query := `
		SELECT id, appointment_id, lab_test_type_id, test_name,
			   status, price, requested_by, processed_by,
			   created_at, updated_at
		FROM lab_reports
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`
	var reports []*model.LabReport
	if err := r.db.SelectContext(ctx, &reports, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list lab reports for appointment: %w", err)
	}
	return reports, nil
}

func (r *labRepository) UpdateReportStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.LabReportStatus, processedBy *uuid.UUID) error {
	query := `
		UPDATE lab_reports
		SET status = $1,
			processed_by = COALESCE($2, processed_by),
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := extOf(r.db, tx).ExecContext(ctx, query, to, processedBy, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update lab report status: %w", err)
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

func (r *labRepository) CreateFile(ctx context.Context, tx *sqlx.Tx, file *model.LabReportFile) error {
	query := `
		INSERT INTO lab_report_files (
			id, lab_report_id, file_url, file_type, file_name,
			uploaded_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	file.CreatedAt = time.Now()

	_, err := extOf(r.db, tx).ExecContext(ctx, query,
		file.ID,
		file.LabReportID,
		file.FileURL,
		file.FileType,
		file.FileName,
		file.UploadedBy,
		file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lab report file: %w", err)
	}
	return nil
}

func (r *labRepository) ListTestTypes(ctx context.Context) ([]*model.LabTestType, error) {
	query := `
		SELECT id, name, description, price, created_at, updated_at
		FROM lab_test_types
		ORDER BY name ASC
	`
	var types []*model.LabTestType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("failed to list lab test types: %w", err)
	}
	return types, nil
}

func (r *labRepository) GetTestTypes(ctx context.Context, ids []uuid.UUID) ([]*model.LabTestType, error) {
	query := `
		SELECT id, name, description, price, created_at, updated_at
		FROM lab_test_types
		WHERE id = ANY($1)
	`
	var types []*model.LabTestType
	if err := r.db.SelectContext(ctx, &types, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get lab test types: %w", err)
	}
	return types, nil
}
