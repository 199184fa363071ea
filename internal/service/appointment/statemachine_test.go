package appointment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/hms-api/internal/model"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

func TestAuthorize(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()

	apt := func(status model.AppointmentStatus) *model.Appointment {
		return &model.Appointment{
			ID:        uuid.New(),
			PatientID: patientID,
			DoctorID:  doctorID,
			Status:    status,
		}
	}

	tests := []struct {
		name     string
		apt      *model.Appointment
		to       model.AppointmentStatus
		actor    model.Actor
		wantCode apperrors.ErrorCode
	}{
		{
			name:  "patient cancels own booked appointment",
			apt:   apt(model.AppointmentStatusBooked),
			to:    model.AppointmentStatusCancelled,
			actor: model.Actor{ID: patientID, Role: model.RolePatient},
		},
		{
			name:     "patient cannot cancel someone else's appointment",
			apt:      apt(model.AppointmentStatusBooked),
			to:       model.AppointmentStatusCancelled,
			actor:    model.Actor{ID: uuid.New(), Role: model.RolePatient},
			wantCode: apperrors.ErrUnauthorized,
		},
		{
			name:  "receptionist checks in",
			apt:   apt(model.AppointmentStatusBooked),
			to:    model.AppointmentStatusArrived,
			actor: model.Actor{ID: uuid.New(), Role: model.RoleReceptionist},
		},
		{
			name:     "doctor cannot check in",
			apt:      apt(model.AppointmentStatusBooked),
			to:       model.AppointmentStatusArrived,
			actor:    model.Actor{ID: doctorID, Role: model.RoleDoctor},
			wantCode: apperrors.ErrUnauthorized,
		},
		{
			name:  "assigned doctor starts consultation",
			apt:   apt(model.AppointmentStatusArrived),
			to:    model.AppointmentStatusInConsultation,
			actor: model.Actor{ID: doctorID, Role: model.RoleDoctor},
		},
		{
			name:     "other doctor cannot start consultation",
			apt:      apt(model.AppointmentStatusArrived),
			to:       model.AppointmentStatusInConsultation,
			actor:    model.Actor{ID: uuid.New(), Role: model.RoleDoctor},
			wantCode: apperrors.ErrUnauthorized,
		},
		{
			name:  "receptionist marks no-show",
			apt:   apt(model.AppointmentStatusArrived),
			to:    model.AppointmentStatusAbsent,
			actor: model.Actor{ID: uuid.New(), Role: model.RoleReceptionist},
		},
		{
			name:  "doctor hands off to pharmacy",
			apt:   apt(model.AppointmentStatusInConsultation),
			to:    model.AppointmentStatusPharmacy,
			actor: model.Actor{ID: doctorID, Role: model.RoleDoctor},
		},
		{
			name:  "pharmacist completes",
			apt:   apt(model.AppointmentStatusPharmacy),
			to:    model.AppointmentStatusCompleted,
			actor: model.Actor{ID: uuid.New(), Role: model.RolePharmacist},
		},
		{
			name:     "cannot cancel after arrival",
			apt:      apt(model.AppointmentStatusArrived),
			to:       model.AppointmentStatusCancelled,
			actor:    model.Actor{ID: patientID, Role: model.RolePatient},
			wantCode: apperrors.ErrInvalidTransition,
		},
		{
			name:     "cannot skip from booked to pharmacy",
			apt:      apt(model.AppointmentStatusBooked),
			to:       model.AppointmentStatusPharmacy,
			actor:    model.Actor{ID: doctorID, Role: model.RoleDoctor},
			wantCode: apperrors.ErrInvalidTransition,
		},
		{
			name:     "completed is terminal",
			apt:      apt(model.AppointmentStatusCompleted),
			to:       model.AppointmentStatusPharmacy,
			actor:    model.Actor{ID: doctorID, Role: model.RoleDoctor},
			wantCode: apperrors.ErrInvalidTransition,
		},
		{
			name:     "cancelled is terminal",
			apt:      apt(model.AppointmentStatusCancelled),
			to:       model.AppointmentStatusArrived,
			actor:    model.Actor{ID: uuid.New(), Role: model.RoleReceptionist},
			wantCode: apperrors.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.apt, tt.to, tt.actor)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestAuthorizeDoesNotMutate(t *testing.T) {
	apt := &model.Appointment{
		ID:     uuid.New(),
		Status: model.AppointmentStatusBooked,
	}
	_ = Authorize(apt, model.AppointmentStatusArrived, model.Actor{ID: uuid.New(), Role: model.RoleReceptionist})
	assert.Equal(t, model.AppointmentStatusBooked, apt.Status)
}
