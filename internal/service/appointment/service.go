package appointment

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
	"github.com/jwalitptl/hms-api/pkg/errors"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

type Service struct {
	repo       repository.AppointmentRepository
	doctorRepo repository.DoctorRepository
	outbox     repository.OutboxRepository
	tx         repository.TxManager
	estimator  *QueueEstimator
	metrics    *metrics.Metrics
}

func NewService(
	repo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	outbox repository.OutboxRepository,
	tx repository.TxManager,
	estimator *QueueEstimator,
	m *metrics.Metrics,
) *Service {
	if estimator == nil {
		estimator = DefaultQueueEstimator()
	}
	return &Service{
		repo:       repo,
		doctorRepo: doctorRepo,
		outbox:     outbox,
		tx:         tx,
		estimator:  estimator,
		metrics:    m,
	}
}

// CheckAvailability computes the advisory next queue position for a
// doctor/date pair. The number is recomputed authoritatively at booking
// time, so this result may be stale by the time the patient confirms.
func (s *Service) CheckAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time) (*model.Availability, error) {
	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("doctor", err)
		}
		return nil, errors.Internal(err)
	}

	count, err := s.repo.CountActive(ctx, doctorID, date)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &model.Availability{
		DoctorID:        doctorID,
		Date:            date.Format("2006-01-02"),
		NextQueueNumber: count + 1,
		EstimatedTime:   s.estimator.EstimateSlot(count),
		QueueSize:       count,
	}, nil
}

// Book creates an appointment in Booked status. The queue number comes
// from the per doctor/date counter row, so concurrent bookings never
// collide.
func (s *Service) Book(ctx context.Context, actor model.Actor, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if actor.Role != model.RolePatient {
		return nil, errors.Unauthorized("only patients can book appointments")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, errors.BadRequest("invalid date", err)
	}

	if _, err := s.doctorRepo.Get(ctx, req.DoctorID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("doctor", err)
		}
		return nil, errors.Internal(err)
	}

	apt := &model.Appointment{
		ID:        uuid.New(),
		PatientID: actor.ID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Status:    model.AppointmentStatusBooked,
		Reason:    req.Reason,
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		queueNumber, err := s.repo.NextQueueNumber(ctx, tx, req.DoctorID, date)
		if err != nil {
			return err
		}
		apt.QueueNumber = queueNumber
		apt.TimeSlot = s.estimator.EstimateSlot(queueNumber - 1)

		if err := s.repo.Create(ctx, tx, apt); err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventAppointmentBooked, apt)
	})
	if err != nil {
		return nil, errors.Persistence("appointment booking", err)
	}

	s.metrics.AppointmentsBooked.Inc()
	return apt, nil
}

// Cancel moves an appointment to Cancelled. Only the owning patient may
// cancel, and only before the appointment has been acted upon.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	apt, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	if err := Authorize(apt, model.AppointmentStatusCancelled, actor); err != nil {
		s.metrics.TransitionRejections.WithLabelValues(rejectionReason(err)).Inc()
		return err
	}

	return s.commitTransition(ctx, apt, model.AppointmentStatusCancelled, model.EventAppointmentCancelled)
}

// UpdateStatus applies one workflow transition on behalf of the actor
// (reception check-in, consultation start, no-show marking). Invalid
// transitions leave the appointment unchanged.
func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, to model.AppointmentStatus) (*model.Appointment, error) {
	apt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := Authorize(apt, to, actor); err != nil {
		s.metrics.TransitionRejections.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	if err := s.commitTransition(ctx, apt, to, model.EventAppointmentStatus); err != nil {
		return nil, err
	}
	return apt, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Patients only see their own appointments; staff see everything.
	if actor.Role == model.RolePatient && apt.PatientID != actor.ID {
		return nil, errors.Unauthorized("appointment belongs to a different patient")
	}
	return apt, nil
}

// DoctorQueue lists the calling doctor's appointments for a date in
// queue order. Appointments are stored on the calendar date at
// midnight, so the lookup date is truncated before querying; callers
// may pass a wall-clock time such as time.Now().
func (s *Service) DoctorQueue(ctx context.Context, actor model.Actor, date time.Time) ([]*model.Appointment, error) {
	if actor.Role != model.RoleDoctor {
		return nil, errors.Unauthorized("only doctors can view their queue")
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	appointments, err := s.repo.ListForDoctor(ctx, actor.ID, day)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return appointments, nil
}

// PharmacyQueue lists appointments waiting at the pharmacy stage,
// oldest handoff first.
func (s *Service) PharmacyQueue(ctx context.Context, actor model.Actor) ([]*model.Appointment, error) {
	if actor.Role != model.RolePharmacist {
		return nil, errors.Unauthorized("only pharmacists can view the pharmacy queue")
	}

	appointments, err := s.repo.ListByStatus(ctx, model.AppointmentStatusPharmacy)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return appointments, nil
}

func (s *Service) PatientAppointments(ctx context.Context, actor model.Actor) ([]*model.Appointment, error) {
	if actor.Role != model.RolePatient {
		return nil, errors.Unauthorized("only patients can view their appointments")
	}

	appointments, err := s.repo.ListForPatient(ctx, actor.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return appointments, nil
}

func (s *Service) ListDoctors(ctx context.Context, specialization, search string) ([]*model.Doctor, error) {
	doctors, err := s.doctorRepo.List(ctx, specialization, search)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return doctors, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Internal(err)
	}
	return apt, nil
}

func (s *Service) commitTransition(ctx context.Context, apt *model.Appointment, to model.AppointmentStatus, eventType string) error {
	from := apt.Status

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateStatus(ctx, tx, apt.ID, from, to); err != nil {
			return err
		}
		apt.Status = to
		return s.emit(ctx, tx, eventType, apt)
	})
	if err != nil {
		apt.Status = from
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.Conflict("appointment was modified concurrently")
		}
		return errors.Persistence("status transition", err)
	}

	s.metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

func (s *Service) emit(ctx context.Context, tx *sqlx.Tx, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.outbox.Create(ctx, tx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	})
}

func rejectionReason(err error) string {
	switch errors.CodeOf(err) {
	case errors.ErrInvalidTransition:
		return "invalid_transition"
	case errors.ErrUnauthorized:
		return "unauthorized"
	}
	return "other"
}
