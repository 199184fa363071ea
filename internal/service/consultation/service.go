package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
	"github.com/jwalitptl/hms-api/internal/service/appointment"
	"github.com/jwalitptl/hms-api/pkg/errors"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

type Service struct {
	appointments  repository.AppointmentRepository
	prescriptions repository.PrescriptionRepository
	labs          repository.LabRepository
	outbox        repository.OutboxRepository
	tx            repository.TxManager
	metrics       *metrics.Metrics
}

func NewService(
	appointments repository.AppointmentRepository,
	prescriptions repository.PrescriptionRepository,
	labs repository.LabRepository,
	outbox repository.OutboxRepository,
	tx repository.TxManager,
	m *metrics.Metrics,
) *Service {
	return &Service{
		appointments:  appointments,
		prescriptions: prescriptions,
		labs:          labs,
		outbox:        outbox,
		tx:            tx,
		metrics:       m,
	}
}

// ConsultationResult is what the doctor gets back after saving: the
// updated appointment plus whatever the consultation produced.
type ConsultationResult struct {
	Appointment  *model.Appointment  `json:"appointment"`
	Prescription *model.Prescription `json:"prescription,omitempty"`
	LabReports   []*model.LabReport  `json:"lab_reports,omitempty"`
}

// Save records a consultation outcome in one transaction: the doctor's
// notes, an optional prescription with its items, and any requested lab
// tests. The appointment always ends up in Pharmacy, even when no
// medicines were prescribed, so the pharmacist signs off every visit.
func (s *Service) Save(ctx context.Context, actor model.Actor, appointmentID uuid.UUID, req *model.SaveConsultationRequest) (*ConsultationResult, error) {
	apt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Internal(err)
	}

	// A doctor may save directly from Arrived; that implicitly starts
	// the consultation, so both hops need authorizing.
	from := apt.Status
	if from == model.AppointmentStatusArrived {
		if err := appointment.Authorize(apt, model.AppointmentStatusInConsultation, actor); err != nil {
			return nil, err
		}
		staged := *apt
		staged.Status = model.AppointmentStatusInConsultation
		if err := appointment.Authorize(&staged, model.AppointmentStatusPharmacy, actor); err != nil {
			return nil, err
		}
	} else {
		if err := appointment.Authorize(apt, model.AppointmentStatusPharmacy, actor); err != nil {
			return nil, err
		}
	}

	labTypes, err := s.resolveLabTypes(ctx, req.LabTestIDs)
	if err != nil {
		return nil, err
	}

	result := &ConsultationResult{Appointment: apt}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.appointments.SetConsultation(ctx, tx, apt.ID, req.Notes, from, model.AppointmentStatusPharmacy); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.Conflict("appointment was modified concurrently")
			}
			return err
		}
		apt.Status = model.AppointmentStatusPharmacy
		apt.DoctorNotes = &req.Notes

		if len(req.Items) > 0 {
			rx, err := s.createPrescription(ctx, tx, apt, actor, req)
			if err != nil {
				return err
			}
			result.Prescription = rx
		}

		for _, lt := range labTypes {
			report := &model.LabReport{
				ID:            uuid.New(),
				AppointmentID: apt.ID,
				LabTestTypeID: lt.ID,
				TestName:      lt.Name,
				Status:        model.LabReportStatusRequested,
				Price:         lt.Price,
				RequestedBy:   &actor.ID,
			}
			if err := s.labs.CreateReport(ctx, tx, report); err != nil {
				return err
			}
			result.LabReports = append(result.LabReports, report)
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return s.outbox.Create(ctx, tx, &model.OutboxEvent{
			EventType: model.EventConsultationRecorded,
			Payload:   payload,
		})
	})
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, err
		}
		return nil, errors.Persistence("consultation save", err)
	}

	s.metrics.StatusTransitions.WithLabelValues(string(from), string(model.AppointmentStatusPharmacy)).Inc()
	if result.Prescription != nil {
		s.metrics.PrescriptionsIssued.Inc()
	}
	return result, nil
}

// GetPrescription returns the prescription recorded for an appointment,
// with items.
func (s *Service) GetPrescription(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	rx, err := s.prescriptions.GetByAppointment(ctx, appointmentID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("prescription", err)
		}
		return nil, errors.Internal(err)
	}
	return rx, nil
}

func (s *Service) createPrescription(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment, actor model.Actor, req *model.SaveConsultationRequest) (*model.Prescription, error) {
	rx := &model.Prescription{
		ID:            uuid.New(),
		AppointmentID: apt.ID,
		DoctorID:      actor.ID,
	}
	if req.Notes != "" {
		rx.Notes = &req.Notes
	}
	if err := s.prescriptions.Create(ctx, tx, rx); err != nil {
		return nil, err
	}

	items := make([]*model.PrescriptionItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, &model.PrescriptionItem{
			ID:             uuid.New(),
			PrescriptionID: rx.ID,
			MedicineID:     it.MedicineID,
			Dosage:         it.Dosage,
			Frequency:      it.Frequency,
			DurationDays:   it.DurationDays,
			Quantity:       it.Quantity,
			Notes:          it.Notes,
		})
	}
	if err := s.prescriptions.CreateItems(ctx, tx, items); err != nil {
		return nil, err
	}
	rx.Items = items
	return rx, nil
}

func (s *Service) resolveLabTypes(ctx context.Context, ids []uuid.UUID) ([]*model.LabTestType, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	types, err := s.labs.GetTestTypes(ctx, ids)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if len(types) != len(ids) {
		return nil, errors.NotFound("lab test type", fmt.Errorf("requested %d lab test types, found %d", len(ids), len(types)))
	}
	return types, nil
}
