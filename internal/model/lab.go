package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LabReportStatus string

const (
	LabReportStatusRequested  LabReportStatus = "Requested"
	LabReportStatusProcessing LabReportStatus = "Processing"
	LabReportStatusCompleted  LabReportStatus = "Completed"
)

type LabTestType struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// LabReport is one requested test tied to an appointment. Name and
// price are copied from the test type at request time so later catalog
// edits do not change historical bills.
type LabReport struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	AppointmentID uuid.UUID       `db:"appointment_id" json:"appointment_id"`
	LabTestTypeID uuid.UUID       `db:"lab_test_type_id" json:"lab_test_type_id"`
	TestName      string          `db:"test_name" json:"test_name"`
	Status        LabReportStatus `db:"status" json:"status"`
	Price         decimal.Decimal `db:"price" json:"price"`
	RequestedBy   *uuid.UUID      `db:"requested_by" json:"requested_by,omitempty"`
	ProcessedBy   *uuid.UUID      `db:"processed_by" json:"processed_by,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Files []*LabReportFile `db:"-" json:"files,omitempty"`
}

type LabReportFile struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	LabReportID uuid.UUID  `db:"lab_report_id" json:"lab_report_id"`
	FileURL     string     `db:"file_url" json:"file_url"`
	FileType    string     `db:"file_type" json:"file_type,omitempty"`
	FileName    string     `db:"file_name" json:"file_name,omitempty"`
	UploadedBy  *uuid.UUID `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

type CompleteLabTestRequest struct {
	FileURL  string `json:"file_url" binding:"required,url"`
	FileName string `json:"file_name" binding:"max=255"`
	FileType string `json:"file_type" binding:"max=50"`
}
