package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusBooked         AppointmentStatus = "Booked"
	AppointmentStatusArrived        AppointmentStatus = "Arrived"
	AppointmentStatusInConsultation AppointmentStatus = "In_Consultation"
	AppointmentStatusPharmacy       AppointmentStatus = "Pharmacy"
	AppointmentStatusLab            AppointmentStatus = "Lab"
	AppointmentStatusCompleted      AppointmentStatus = "Completed"
	AppointmentStatusCancelled      AppointmentStatus = "Cancelled"
	AppointmentStatusAbsent         AppointmentStatus = "Absent"
)

// IsTerminal reports whether no further transitions are possible.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusAbsent:
		return true
	}
	return false
}

// Appointment is the clinical workflow aggregate. Cancellation is a
// status, not a deletion; rows are never removed.
type Appointment struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	PatientID   uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Date        time.Time         `db:"date" json:"date"`
	TimeSlot    string            `db:"time_slot" json:"time_slot"`
	QueueNumber int               `db:"queue_number" json:"queue_number"`
	Status      AppointmentStatus `db:"status" json:"status"`
	Reason      string            `db:"reason" json:"reason,omitempty"`
	DoctorNotes *string           `db:"doctor_notes" json:"doctor_notes,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

type BookAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
	Date     string    `json:"date" binding:"required,datetime=2006-01-02"`
	Reason   string    `json:"reason" binding:"max=500"`
}

type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,appointmentstatus"`
}

// Availability is the advisory queue estimate for a doctor/date pair.
// It is recomputed at booking time; the authoritative queue number is
// allocated there.
type Availability struct {
	DoctorID        uuid.UUID `json:"doctor_id"`
	Date            string    `json:"date"`
	NextQueueNumber int       `json:"next_queue_number"`
	EstimatedTime   string    `json:"estimated_time"`
	QueueSize       int       `json:"queue_size"`
}
