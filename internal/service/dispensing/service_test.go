package dispensing

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hms-api/internal/model"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("dispensing_test")

type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
}

func (f *fakeAppointmentRepo) Create(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	f.appointments[apt.ID] = apt
	return nil
}

func (f *fakeAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := f.appointments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *apt
	return &cp, nil
}

func (f *fakeAppointmentRepo) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to model.AppointmentStatus) error {
	apt, ok := f.appointments[id]
	if !ok || apt.Status != from {
		return sql.ErrNoRows
	}
	apt.Status = to
	return nil
}

func (f *fakeAppointmentRepo) SetConsultation(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, notes string, from, to model.AppointmentStatus) error {
	return nil
}

func (f *fakeAppointmentRepo) CountActive(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	return 0, nil
}

func (f *fakeAppointmentRepo) NextQueueNumber(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, date time.Time) (int, error) {
	return 1, nil
}

func (f *fakeAppointmentRepo) ListForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeAppointmentRepo) ListByStatus(ctx context.Context, status model.AppointmentStatus) ([]*model.Appointment, error) {
	return nil, nil
}

type fakePrescriptionRepo struct {
	prescriptions map[uuid.UUID]*model.Prescription
}

func (f *fakePrescriptionRepo) Create(ctx context.Context, tx *sqlx.Tx, rx *model.Prescription) error {
	f.prescriptions[rx.ID] = rx
	return nil
}

func (f *fakePrescriptionRepo) CreateItems(ctx context.Context, tx *sqlx.Tx, items []*model.PrescriptionItem) error {
	return nil
}

func (f *fakePrescriptionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	rx, ok := f.prescriptions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rx, nil
}

func (f *fakePrescriptionRepo) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	for _, rx := range f.prescriptions {
		if rx.AppointmentID == appointmentID {
			return rx, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeDispensingRepo struct {
	dispensings map[uuid.UUID]*model.Dispensing
	items       []*model.DispensingItem
}

func (f *fakeDispensingRepo) Create(ctx context.Context, tx *sqlx.Tx, d *model.Dispensing) error {
	f.dispensings[d.ID] = d
	return nil
}

func (f *fakeDispensingRepo) CreateItem(ctx context.Context, tx *sqlx.Tx, item *model.DispensingItem) error {
	f.items = append(f.items, item)
	return nil
}

func (f *fakeDispensingRepo) GetByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*model.Dispensing, error) {
	for _, d := range f.dispensings {
		if d.PrescriptionID == prescriptionID {
			return d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDispensingRepo) ListItemsByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*model.DispensedItemView, error) {
	return nil, nil
}

type fakeInventoryRepo struct {
	batches map[uuid.UUID]*model.InventoryBatch
}

func (f *fakeInventoryRepo) ListBatchesForUpdate(ctx context.Context, tx *sqlx.Tx, medicineID uuid.UUID) ([]*model.InventoryBatch, error) {
	var out []*model.InventoryBatch
	for _, b := range f.batches {
		if b.MedicineID == medicineID && b.StockLevel > 0 {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiryDate.Before(out[j].ExpiryDate)
	})
	return out, nil
}

func (f *fakeInventoryRepo) DeductStock(ctx context.Context, tx *sqlx.Tx, batchID uuid.UUID, quantity int) error {
	b, ok := f.batches[batchID]
	if !ok || b.StockLevel < quantity {
		return sql.ErrNoRows
	}
	b.StockLevel -= quantity
	return nil
}

func (f *fakeInventoryRepo) List(ctx context.Context) ([]*model.InventoryBatch, error) {
	var out []*model.InventoryBatch
	for _, b := range f.batches {
		out = append(out, b)
	}
	return out, nil
}

type fakeMedicineRepo struct {
	medicines map[uuid.UUID]*model.Medicine
}

func (f *fakeMedicineRepo) Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	m, ok := f.medicines[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return m, nil
}

func (f *fakeMedicineRepo) Search(ctx context.Context, query string, limit int) ([]*model.Medicine, error) {
	return nil, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	svc        *Service
	inventory  *fakeInventoryRepo
	dispensing *fakeDispensingRepo
	outbox     *fakeOutboxRepo
	apts       *fakeAppointmentRepo

	pharmacist model.Actor
	medicineID uuid.UUID
	rx         *model.Prescription
	rxItem     *model.PrescriptionItem
}

func newFixture(t *testing.T, prescribedQty int) *fixture {
	t.Helper()

	medicineID := uuid.New()
	apt := &model.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Status:    model.AppointmentStatusPharmacy,
	}

	rxItem := &model.PrescriptionItem{
		ID:         uuid.New(),
		MedicineID: medicineID,
		Quantity:   prescribedQty,
	}
	rx := &model.Prescription{
		ID:            uuid.New(),
		AppointmentID: apt.ID,
		DoctorID:      apt.DoctorID,
		Items:         []*model.PrescriptionItem{rxItem},
	}
	rxItem.PrescriptionID = rx.ID

	apts := &fakeAppointmentRepo{appointments: map[uuid.UUID]*model.Appointment{apt.ID: apt}}
	rxRepo := &fakePrescriptionRepo{prescriptions: map[uuid.UUID]*model.Prescription{rx.ID: rx}}
	dispRepo := &fakeDispensingRepo{dispensings: make(map[uuid.UUID]*model.Dispensing)}
	invRepo := &fakeInventoryRepo{batches: make(map[uuid.UUID]*model.InventoryBatch)}
	medRepo := &fakeMedicineRepo{medicines: map[uuid.UUID]*model.Medicine{
		medicineID: {ID: medicineID, BrandName: "Panadol"},
	}}
	outbox := &fakeOutboxRepo{}

	return &fixture{
		svc:        NewService(apts, rxRepo, dispRepo, invRepo, medRepo, outbox, &fakeTxManager{}, testMetrics),
		inventory:  invRepo,
		dispensing: dispRepo,
		outbox:     outbox,
		apts:       apts,
		pharmacist: model.Actor{ID: uuid.New(), Role: model.RolePharmacist},
		medicineID: medicineID,
		rx:         rx,
		rxItem:     rxItem,
	}
}

func (f *fixture) addBatch(stock int, expiry time.Time, price int64) uuid.UUID {
	id := uuid.New()
	f.inventory.batches[id] = &model.InventoryBatch{
		ID:         id,
		MedicineID: f.medicineID,
		ExpiryDate: expiry,
		StockLevel: stock,
		UnitPrice:  decimal.NewFromInt(price),
	}
	return id
}

func (f *fixture) dispense(qty int) (*model.Dispensing, error) {
	return f.svc.Dispense(context.Background(), f.pharmacist, f.rx.ID, &model.DispenseRequest{
		Items: []model.DispenseItemRequest{{
			PrescriptionItemID: f.rxItem.ID,
			MedicineID:         f.medicineID,
			Quantity:           qty,
		}},
	})
}

func TestDispenseDrawsFromEarliestExpiryFirst(t *testing.T) {
	f := newFixture(t, 30)
	early := f.addBatch(10, time.Now().AddDate(0, 1, 0), 12)
	late := f.addBatch(20, time.Now().AddDate(0, 6, 0), 15)

	d, err := f.dispense(25)
	require.NoError(t, err)

	// 10 from the earlier batch, 15 from the later one.
	require.Len(t, d.Items, 2)
	assert.Equal(t, early, d.Items[0].InventoryID)
	assert.Equal(t, 10, d.Items[0].QuantityIssued)
	assert.True(t, d.Items[0].PriceAtIssue.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, late, d.Items[1].InventoryID)
	assert.Equal(t, 15, d.Items[1].QuantityIssued)
	assert.True(t, d.Items[1].PriceAtIssue.Equal(decimal.NewFromInt(15)))

	assert.Equal(t, 0, f.inventory.batches[early].StockLevel)
	assert.Equal(t, 5, f.inventory.batches[late].StockLevel)

	// The appointment moves on to billing.
	apt, _ := f.apts.Get(context.Background(), f.rx.AppointmentID)
	assert.Equal(t, model.AppointmentStatusCompleted, apt.Status)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, model.EventPrescriptionDispensed, f.outbox.events[0].EventType)
}

func TestDispenseInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t, 50)
	b1 := f.addBatch(10, time.Now().AddDate(0, 1, 0), 12)
	b2 := f.addBatch(25, time.Now().AddDate(0, 6, 0), 15)

	_, err := f.dispense(50)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInsufficientStock, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "Panadol")
	assert.Contains(t, err.Error(), "requested 50, available 35")

	assert.Equal(t, 10, f.inventory.batches[b1].StockLevel)
	assert.Equal(t, 25, f.inventory.batches[b2].StockLevel)
	assert.Empty(t, f.dispensing.items)

	apt, _ := f.apts.Get(context.Background(), f.rx.AppointmentID)
	assert.Equal(t, model.AppointmentStatusPharmacy, apt.Status)
}

func TestDispenseTwiceRejected(t *testing.T) {
	f := newFixture(t, 10)
	f.addBatch(100, time.Now().AddDate(1, 0, 0), 10)

	_, err := f.dispense(10)
	require.NoError(t, err)

	_, err = f.dispense(10)
	assert.Equal(t, apperrors.ErrAlreadyDispensed, apperrors.CodeOf(err))
}

func TestDispenseQuantityAbovePrescribed(t *testing.T) {
	f := newFixture(t, 10)
	f.addBatch(100, time.Now().AddDate(1, 0, 0), 10)

	_, err := f.dispense(11)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}

func TestDispenseUnknownPrescriptionItem(t *testing.T) {
	f := newFixture(t, 10)
	f.addBatch(100, time.Now().AddDate(1, 0, 0), 10)

	_, err := f.svc.Dispense(context.Background(), f.pharmacist, f.rx.ID, &model.DispenseRequest{
		Items: []model.DispenseItemRequest{{
			PrescriptionItemID: uuid.New(),
			MedicineID:         f.medicineID,
			Quantity:           1,
		}},
	})
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestDispenseRequiresPharmacist(t *testing.T) {
	f := newFixture(t, 10)
	f.addBatch(100, time.Now().AddDate(1, 0, 0), 10)

	doctor := model.Actor{ID: uuid.New(), Role: model.RoleDoctor}
	_, err := f.svc.Dispense(context.Background(), doctor, f.rx.ID, &model.DispenseRequest{
		Items: []model.DispenseItemRequest{{
			PrescriptionItemID: f.rxItem.ID,
			MedicineID:         f.medicineID,
			Quantity:           1,
		}},
	})
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}

func TestDispensePartialQuantityAllowed(t *testing.T) {
	f := newFixture(t, 20)
	b := f.addBatch(100, time.Now().AddDate(1, 0, 0), 10)

	d, err := f.dispense(15)
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, 15, d.Items[0].QuantityIssued)
	assert.Equal(t, 85, f.inventory.batches[b].StockLevel)
}
