package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hms-api/internal/model"
)

// TxManager runs a function inside a single database transaction. All
// multi-step workflow writes go through it so partial failure is never
// visible.
type TxManager interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// UpdateStatus commits a status transition guarded by the expected
	// current status; sql.ErrNoRows is returned when the row moved on
	// concurrently.
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.AppointmentStatus) error
	// SetConsultation writes the doctor notes together with the status
	// transition, guarded like UpdateStatus.
	SetConsultation(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, notes string, from, to model.AppointmentStatus) error
	// CountActive counts non-cancelled appointments for a doctor/date.
	CountActive(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)
	// NextQueueNumber atomically increments and returns the queue
	// counter for a doctor/date pair.
	NextQueueNumber(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, date time.Time) (int, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
	ListByStatus(ctx context.Context, status model.AppointmentStatus) ([]*model.Appointment, error)
}

type DoctorRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	List(ctx context.Context, specialization, search string) ([]*model.Doctor, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, rx *model.Prescription) error
	CreateItems(ctx context.Context, tx *sqlx.Tx, items []*model.PrescriptionItem) error
	Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error)
}

type DispensingRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, d *model.Dispensing) error
	CreateItem(ctx context.Context, tx *sqlx.Tx, item *model.DispensingItem) error
	GetByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*model.Dispensing, error)
	ListItemsByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*model.DispensedItemView, error)
}

type InventoryRepository interface {
	// ListBatchesForUpdate returns a medicine's in-stock batches ordered
	// by expiry date ascending, row-locked for the transaction.
	ListBatchesForUpdate(ctx context.Context, tx *sqlx.Tx, medicineID uuid.UUID) ([]*model.InventoryBatch, error)
	// DeductStock decrements a batch conditionally; sql.ErrNoRows is
	// returned when the batch no longer holds the requested quantity.
	DeductStock(ctx context.Context, tx *sqlx.Tx, batchID uuid.UUID, quantity int) error
	List(ctx context.Context) ([]*model.InventoryBatch, error)
}

type MedicineRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error)
	Search(ctx context.Context, query string, limit int) ([]*model.Medicine, error)
}

type LabRepository interface {
	CreateReport(ctx context.Context, tx *sqlx.Tx, report *model.LabReport) error
	GetReport(ctx context.Context, id uuid.UUID) (*model.LabReport, error)
	ListReportsByStatus(ctx context.Context, status model.LabReportStatus) ([]*model.LabReport, error)
	ListReportsByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.LabReport, error)
	// UpdateReportStatus is guarded by the expected current status like
	// AppointmentRepository.UpdateStatus.
	UpdateReportStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.LabReportStatus, processedBy *uuid.UUID) error
	CreateFile(ctx context.Context, tx *sqlx.Tx, file *model.LabReportFile) error
	ListTestTypes(ctx context.Context) ([]*model.LabTestType, error)
	GetTestTypes(ctx context.Context, ids []uuid.UUID) ([]*model.LabTestType, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, inv *model.Invoice) error
	CreateItem(ctx context.Context, tx *sqlx.Tx, item *model.InvoiceItem) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Invoice, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
	GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
	MarkFailed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, errMsg string, retryAt *time.Time) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
