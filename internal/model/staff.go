package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Doctor is a read-only projection of the externally owned staff
// record; the workflow core needs the consultation fee for billing.
type Doctor struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	FirstName       string          `db:"first_name" json:"first_name"`
	LastName        string          `db:"last_name" json:"last_name"`
	Specialization  string          `db:"specialization" json:"specialization"`
	ConsultationFee decimal.Decimal `db:"consultation_fee" json:"consultation_fee"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
