package model

import (
	"time"

	"github.com/google/uuid"
)

// Prescription is created at most once per appointment and is immutable
// once dispensed.
type Prescription struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`

	Items []*PrescriptionItem `db:"-" json:"items,omitempty"`
}

type PrescriptionItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicineID     uuid.UUID `db:"medicine_id" json:"medicine_id"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      string    `db:"frequency" json:"frequency"`
	DurationDays   int       `db:"duration_days" json:"duration_days"`
	Quantity       int       `db:"quantity" json:"quantity"`
	Notes          string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// PrescriptionItemRequest carries one prescription line as entered by
// the doctor. Quantity is supplied by the caller (frequency segments x
// duration days); the recorder stores it as-is but bounds it to keep a
// bad client from prescribing absurd amounts.
type PrescriptionItemRequest struct {
	MedicineID   uuid.UUID `json:"medicine_id" binding:"required"`
	Dosage       string    `json:"dosage" binding:"required,max=100"`
	Frequency    string    `json:"frequency" binding:"required,max=100"`
	DurationDays int       `json:"duration_days" binding:"required,min=1,max=365"`
	Quantity     int       `json:"quantity" binding:"required,min=1,max=1000"`
	Notes        string    `json:"notes" binding:"max=500"`
}

type SaveConsultationRequest struct {
	Notes      string                    `json:"notes" binding:"max=5000"`
	Items      []PrescriptionItemRequest `json:"items" binding:"dive"`
	LabTestIDs []uuid.UUID               `json:"lab_test_ids"`
}
