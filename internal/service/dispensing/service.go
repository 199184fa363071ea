package dispensing

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
	"github.com/jwalitptl/hms-api/internal/service/appointment"
	"github.com/jwalitptl/hms-api/pkg/errors"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

type Service struct {
	appointments  repository.AppointmentRepository
	prescriptions repository.PrescriptionRepository
	dispensings   repository.DispensingRepository
	inventory     repository.InventoryRepository
	medicines     repository.MedicineRepository
	outbox        repository.OutboxRepository
	tx            repository.TxManager
	metrics       *metrics.Metrics
}

func NewService(
	appointments repository.AppointmentRepository,
	prescriptions repository.PrescriptionRepository,
	dispensings repository.DispensingRepository,
	inventory repository.InventoryRepository,
	medicines repository.MedicineRepository,
	outbox repository.OutboxRepository,
	tx repository.TxManager,
	m *metrics.Metrics,
) *Service {
	return &Service{
		appointments:  appointments,
		prescriptions: prescriptions,
		dispensings:   dispensings,
		inventory:     inventory,
		medicines:     medicines,
		outbox:        outbox,
		tx:            tx,
		metrics:       m,
	}
}

// Dispense issues medicines against a prescription. Stock is drawn from
// batches in expiry order under row locks, every deduction is
// conditional on sufficient stock, and the whole issue plus the
// appointment handoff to Completed commits as one transaction. A
// prescription can be dispensed exactly once.
func (s *Service) Dispense(ctx context.Context, actor model.Actor, prescriptionID uuid.UUID, req *model.DispenseRequest) (*model.Dispensing, error) {
	if actor.Role != model.RolePharmacist {
		return nil, errors.Unauthorized("only pharmacists can dispense")
	}

	rx, err := s.prescriptions.Get(ctx, prescriptionID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("prescription", err)
		}
		return nil, errors.Internal(err)
	}

	apt, err := s.appointments.Get(ctx, rx.AppointmentID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, errors.Internal(err)
	}
	if err := appointment.Authorize(apt, model.AppointmentStatusCompleted, actor); err != nil {
		return nil, err
	}

	if _, err := s.dispensings.GetByPrescription(ctx, prescriptionID); err == nil {
		s.metrics.DispenseRejections.WithLabelValues("already_dispensed").Inc()
		return nil, errors.AlreadyDispensed(prescriptionID.String())
	} else if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Internal(err)
	}

	if err := s.validateAgainstPrescription(rx, req); err != nil {
		return nil, err
	}

	dispensing := &model.Dispensing{
		ID:             uuid.New(),
		PrescriptionID: prescriptionID,
		PharmacistID:   actor.ID,
		Status:         model.DispensingStatusIssued,
		DispensedAt:    time.Now(),
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Lock and plan all deductions before touching anything, so a
		// shortfall in the last item leaves no partial issue behind.
		plans := make([][]deduction, 0, len(req.Items))
		for _, item := range req.Items {
			plan, err := s.planDeductions(ctx, tx, item)
			if err != nil {
				return err
			}
			plans = append(plans, plan)
		}

		if err := s.dispensings.Create(ctx, tx, dispensing); err != nil {
			return err
		}

		for i, item := range req.Items {
			for _, d := range plans[i] {
				if err := s.inventory.DeductStock(ctx, tx, d.batch.ID, d.take); err != nil {
					if stderrors.Is(err, sql.ErrNoRows) {
						return errors.Conflict("stock changed while dispensing, retry")
					}
					return err
				}
				di := &model.DispensingItem{
					ID:                 uuid.New(),
					DispensingID:       dispensing.ID,
					PrescriptionItemID: item.PrescriptionItemID,
					InventoryID:        d.batch.ID,
					QuantityIssued:     d.take,
					PriceAtIssue:       d.batch.UnitPrice,
				}
				if err := s.dispensings.CreateItem(ctx, tx, di); err != nil {
					return err
				}
				dispensing.Items = append(dispensing.Items, di)
			}
		}

		if err := s.appointments.UpdateStatus(ctx, tx, apt.ID, model.AppointmentStatusPharmacy, model.AppointmentStatusCompleted); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.Conflict("appointment was modified concurrently")
			}
			return err
		}

		payload, err := json.Marshal(dispensing)
		if err != nil {
			return err
		}
		return s.outbox.Create(ctx, tx, &model.OutboxEvent{
			EventType: model.EventPrescriptionDispensed,
			Payload:   payload,
		})
	})
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			if appErr.Code == errors.ErrInsufficientStock {
				s.metrics.DispenseRejections.WithLabelValues("insufficient_stock").Inc()
			}
			return nil, err
		}
		return nil, errors.Persistence("dispensing", err)
	}

	s.metrics.StatusTransitions.WithLabelValues(string(model.AppointmentStatusPharmacy), string(model.AppointmentStatusCompleted)).Inc()
	return dispensing, nil
}

// Inventory lists the current batch stock for the pharmacist view.
func (s *Service) Inventory(ctx context.Context, actor model.Actor) ([]*model.InventoryBatch, error) {
	if actor.Role != model.RolePharmacist && actor.Role != model.RoleAdmin {
		return nil, errors.Unauthorized("only pharmacy staff can view inventory")
	}
	batches, err := s.inventory.List(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return batches, nil
}

func (s *Service) SearchMedicines(ctx context.Context, query string, limit int) ([]*model.Medicine, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	meds, err := s.medicines.Search(ctx, query, limit)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return meds, nil
}

type deduction struct {
	batch *model.InventoryBatch
	take  int
}

// planDeductions locks the medicine's batches and splits the requested
// quantity across them, oldest expiry first.
func (s *Service) planDeductions(ctx context.Context, tx *sqlx.Tx, item model.DispenseItemRequest) ([]deduction, error) {
	batches, err := s.inventory.ListBatchesForUpdate(ctx, tx, item.MedicineID)
	if err != nil {
		return nil, err
	}

	remaining := item.Quantity
	available := 0
	plan := make([]deduction, 0, len(batches))
	for _, b := range batches {
		available += b.StockLevel
		if remaining <= 0 {
			continue
		}
		take := b.StockLevel
		if take > remaining {
			take = remaining
		}
		plan = append(plan, deduction{batch: b, take: take})
		remaining -= take
	}

	if remaining > 0 {
		name := item.MedicineID.String()
		if med, err := s.medicines.Get(ctx, item.MedicineID); err == nil {
			name = med.BrandName
		}
		return nil, errors.InsufficientStock(name, item.Quantity, available)
	}
	return plan, nil
}

// validateAgainstPrescription rejects items the doctor never prescribed
// and quantities above the prescribed amount.
func (s *Service) validateAgainstPrescription(rx *model.Prescription, req *model.DispenseRequest) error {
	prescribed := make(map[uuid.UUID]*model.PrescriptionItem, len(rx.Items))
	for _, it := range rx.Items {
		prescribed[it.ID] = it
	}

	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, item := range req.Items {
		pi, ok := prescribed[item.PrescriptionItemID]
		if !ok {
			return errors.NotFound("prescription item", nil)
		}
		if pi.MedicineID != item.MedicineID {
			return errors.BadRequest("medicine does not match prescription item", nil)
		}
		if seen[item.PrescriptionItemID] {
			return errors.BadRequest("duplicate prescription item in request", nil)
		}
		seen[item.PrescriptionItemID] = true
		if item.Quantity > pi.Quantity {
			return errors.Conflict("quantity exceeds prescribed amount")
		}
	}
	return nil
}
