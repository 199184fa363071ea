package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "Cash"
	PaymentMethodCard PaymentMethod = "Card"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

type InvoiceItemSource string

const (
	InvoiceItemSourceConsultation InvoiceItemSource = "consultation"
	InvoiceItemSourceMedicine     InvoiceItemSource = "medicine"
	InvoiceItemSourceLab          InvoiceItemSource = "lab"
)

// Invoice aggregates the consultation fee, dispensed medicine cost and
// lab test cost for one appointment. Creation is one-way; there is no
// refund or void flow.
type Invoice struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	AppointmentID uuid.UUID       `db:"appointment_id" json:"appointment_id"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	IssuedBy      uuid.UUID       `db:"issued_by" json:"issued_by"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Items []*InvoiceItem `db:"-" json:"items,omitempty"`
}

type InvoiceItem struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	InvoiceID   uuid.UUID         `db:"invoice_id" json:"invoice_id"`
	Description string            `db:"description" json:"description"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	SourceType  InvoiceItemSource `db:"source_type" json:"source_type"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// BillingLine is one priced component of an invoice breakdown.
type BillingLine struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// InvoiceBreakdown is the computed total payable for an appointment
// before an invoice is created.
type InvoiceBreakdown struct {
	AppointmentID uuid.UUID       `json:"appointment_id"`
	DoctorFee     decimal.Decimal `json:"doctor_fee"`
	MedicineItems []BillingLine   `json:"medicine_items"`
	MedicineTotal decimal.Decimal `json:"medicine_total"`
	LabItems      []BillingLine   `json:"lab_items"`
	LabTotal      decimal.Decimal `json:"lab_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

type CreateInvoiceRequest struct {
	Total  decimal.Decimal `json:"total" binding:"required"`
	Method PaymentMethod   `json:"method" binding:"required,oneof=Cash Card"`
}
