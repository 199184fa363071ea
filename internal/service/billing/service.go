package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
	"github.com/jwalitptl/hms-api/pkg/errors"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

type Service struct {
	appointments  repository.AppointmentRepository
	doctors       repository.DoctorRepository
	prescriptions repository.PrescriptionRepository
	dispensings   repository.DispensingRepository
	labs          repository.LabRepository
	invoices      repository.InvoiceRepository
	outbox        repository.OutboxRepository
	tx            repository.TxManager
	metrics       *metrics.Metrics
}

func NewService(
	appointments repository.AppointmentRepository,
	doctors repository.DoctorRepository,
	prescriptions repository.PrescriptionRepository,
	dispensings repository.DispensingRepository,
	labs repository.LabRepository,
	invoices repository.InvoiceRepository,
	outbox repository.OutboxRepository,
	tx repository.TxManager,
	m *metrics.Metrics,
) *Service {
	return &Service{
		appointments:  appointments,
		doctors:       doctors,
		prescriptions: prescriptions,
		dispensings:   dispensings,
		labs:          labs,
		invoices:      invoices,
		outbox:        outbox,
		tx:            tx,
		metrics:       m,
	}
}

// Breakdown aggregates everything an appointment owes: the doctor's
// consultation fee, medicines at the price they were issued at, and lab
// tests at the price captured when they were requested.
func (s *Service) Breakdown(ctx context.Context, actor model.Actor, appointmentID uuid.UUID) (*model.InvoiceBreakdown, error) {
	if actor.Role != model.RoleReceptionist && actor.Role != model.RoleAdmin {
		return nil, errors.Unauthorized("only reception staff can view billing")
	}

	apt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Internal(err)
	}

	doctor, err := s.doctors.Get(ctx, apt.DoctorID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("doctor", err)
		}
		return nil, errors.Internal(err)
	}

	breakdown := &model.InvoiceBreakdown{
		AppointmentID: appointmentID,
		DoctorFee:     doctor.ConsultationFee,
		MedicineTotal: decimal.Zero,
		LabTotal:      decimal.Zero,
	}

	rx, err := s.prescriptions.GetByAppointment(ctx, appointmentID)
	switch {
	case err == nil:
		views, err := s.dispensings.ListItemsByPrescription(ctx, rx.ID)
		if err != nil {
			return nil, errors.Internal(err)
		}
		for _, v := range views {
			lineTotal := v.PriceAtIssue.Mul(decimal.NewFromInt(int64(v.QuantityIssued)))
			breakdown.MedicineItems = append(breakdown.MedicineItems, model.BillingLine{
				Description: fmt.Sprintf("%s (%s)", v.MedicineName, v.Unit),
				Quantity:    v.QuantityIssued,
				UnitPrice:   v.PriceAtIssue,
				Total:       lineTotal,
			})
			breakdown.MedicineTotal = breakdown.MedicineTotal.Add(lineTotal)
		}
	case stderrors.Is(err, sql.ErrNoRows):
		// Consultation without a prescription; nothing to bill.
	default:
		return nil, errors.Internal(err)
	}

	reports, err := s.labs.ListReportsByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	for _, r := range reports {
		breakdown.LabItems = append(breakdown.LabItems, model.BillingLine{
			Description: r.TestName,
			Quantity:    1,
			UnitPrice:   r.Price,
			Total:       r.Price,
		})
		breakdown.LabTotal = breakdown.LabTotal.Add(r.Price)
	}

	breakdown.GrandTotal = breakdown.DoctorFee.Add(breakdown.MedicineTotal).Add(breakdown.LabTotal)
	return breakdown, nil
}

// CreateInvoice settles an appointment. The client's total must match
// the server-side breakdown exactly, and an appointment can only be
// billed once.
func (s *Service) CreateInvoice(ctx context.Context, actor model.Actor, appointmentID uuid.UUID, req *model.CreateInvoiceRequest) (*model.Invoice, error) {
	breakdown, err := s.Breakdown(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}

	// Fast-path rejection; the unique constraint on
	// invoices.appointment_id catches concurrent callers that both get
	// past this read.
	if _, err := s.invoices.GetByAppointment(ctx, appointmentID); err == nil {
		return nil, errors.AlreadyBilled(appointmentID.String())
	} else if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Internal(err)
	}

	if !req.Total.Equal(breakdown.GrandTotal) {
		return nil, errors.Conflict(fmt.Sprintf("total %s does not match computed amount %s", req.Total, breakdown.GrandTotal))
	}

	now := time.Now()
	inv := &model.Invoice{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		TotalAmount:   breakdown.GrandTotal,
		PaymentMethod: req.Method,
		PaymentStatus: model.PaymentStatusPaid,
		IssuedBy:      actor.ID,
		PaidAt:        &now,
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.invoices.Create(ctx, tx, inv); err != nil {
			return err
		}

		addItem := func(description string, amount decimal.Decimal, source model.InvoiceItemSource) error {
			item := &model.InvoiceItem{
				ID:          uuid.New(),
				InvoiceID:   inv.ID,
				Description: description,
				Amount:      amount,
				SourceType:  source,
			}
			if err := s.invoices.CreateItem(ctx, tx, item); err != nil {
				return err
			}
			inv.Items = append(inv.Items, item)
			return nil
		}

		if err := addItem("Consultation fee", breakdown.DoctorFee, model.InvoiceItemSourceConsultation); err != nil {
			return err
		}
		for _, line := range breakdown.MedicineItems {
			if err := addItem(line.Description, line.Total, model.InvoiceItemSourceMedicine); err != nil {
				return err
			}
		}
		for _, line := range breakdown.LabItems {
			if err := addItem(line.Description, line.Total, model.InvoiceItemSourceLab); err != nil {
				return err
			}
		}

		payload, err := json.Marshal(inv)
		if err != nil {
			return err
		}
		return s.outbox.Create(ctx, tx, &model.OutboxEvent{
			EventType: model.EventInvoiceCreated,
			Payload:   payload,
		})
	})
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, errors.AlreadyBilled(appointmentID.String())
		}
		return nil, errors.Persistence("invoice creation", err)
	}

	s.metrics.InvoicesCreated.Inc()
	return inv, nil
}

// Invoice returns the settled invoice for an appointment.
func (s *Service) Invoice(ctx context.Context, actor model.Actor, appointmentID uuid.UUID) (*model.Invoice, error) {
	if actor.Role == model.RolePatient {
		apt, err := s.appointments.Get(ctx, appointmentID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return nil, errors.NotFound("appointment", err)
			}
			return nil, errors.Internal(err)
		}
		if apt.PatientID != actor.ID {
			return nil, errors.Unauthorized("appointment belongs to a different patient")
		}
	}

	inv, err := s.invoices.GetByAppointment(ctx, appointmentID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("invoice", err)
		}
		return nil, errors.Internal(err)
	}
	return inv, nil
}
