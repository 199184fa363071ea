package appointment

import (
	"context"
	"database/sql"
	"fmt"
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

var testMetrics = metrics.NewMetrics("appointment_test")

type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
	counters     map[string]int
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{
		appointments: make(map[uuid.UUID]*model.Appointment),
		counters:     make(map[string]int),
	}
}

func (f *fakeAppointmentRepo) Create(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	cp := *apt
	f.appointments[apt.ID] = &cp
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
	apt, ok := f.appointments[id]
	if !ok || apt.Status != from {
		return sql.ErrNoRows
	}
	apt.Status = to
	apt.DoctorNotes = &notes
	return nil
}

func (f *fakeAppointmentRepo) CountActive(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	count := 0
	for _, apt := range f.appointments {
		if apt.DoctorID == doctorID &&
			apt.Date.Format("2006-01-02") == date.Format("2006-01-02") &&
			apt.Status != model.AppointmentStatusCancelled {
			count++
		}
	}
	return count, nil
}

func (f *fakeAppointmentRepo) NextQueueNumber(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, date time.Time) (int, error) {
	key := fmt.Sprintf("%s/%s", doctorID, date.Format("2006-01-02"))
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeAppointmentRepo) ListForDoctor(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	// Exact match, like the SQL date equality: a wall-clock timestamp
	// never matches a stored midnight date.
	var out []*model.Appointment
	for _, apt := range f.appointments {
		if apt.DoctorID == doctorID && apt.Date.Equal(date) {
			cp := *apt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range f.appointments {
		if apt.PatientID == patientID {
			cp := *apt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListByStatus(ctx context.Context, status model.AppointmentStatus) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range f.appointments {
		if apt.Status == status {
			cp := *apt
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeDoctorRepo struct {
	doctors map[uuid.UUID]*model.Doctor
}

func newFakeDoctorRepo(ids ...uuid.UUID) *fakeDoctorRepo {
	f := &fakeDoctorRepo{doctors: make(map[uuid.UUID]*model.Doctor)}
	for _, id := range ids {
		f.doctors[id] = &model.Doctor{
			ID:              id,
			FirstName:       "Asha",
			LastName:        "Perera",
			ConsultationFee: decimal.NewFromInt(2000),
		}
	}
	return f
}

func (f *fakeDoctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

func (f *fakeDoctorRepo) List(ctx context.Context, specialization, search string) ([]*model.Doctor, error) {
	var out []*model.Doctor
	for _, d := range f.doctors {
		out = append(out, d)
	}
	return out, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	event.ID = uuid.New()
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

func newTestService(repo *fakeAppointmentRepo, doctors *fakeDoctorRepo, outbox *fakeOutboxRepo) *Service {
	return NewService(repo, doctors, outbox, &fakeTxManager{}, nil, testMetrics)
}

func TestBookAssignsSequentialQueueNumbers(t *testing.T) {
	doctorID := uuid.New()
	repo := newFakeAppointmentRepo()
	outbox := &fakeOutboxRepo{}
	svc := newTestService(repo, newFakeDoctorRepo(doctorID), outbox)

	req := &model.BookAppointmentRequest{
		DoctorID: doctorID,
		Date:     "2026-09-01",
		Reason:   "checkup",
	}

	for i := 1; i <= 3; i++ {
		patient := model.Actor{ID: uuid.New(), Role: model.RolePatient}
		apt, err := svc.Book(context.Background(), patient, req)
		require.NoError(t, err)
		assert.Equal(t, i, apt.QueueNumber)
		assert.Equal(t, model.AppointmentStatusBooked, apt.Status)
	}

	first, err := svc.Book(context.Background(), model.Actor{ID: uuid.New(), Role: model.RolePatient}, req)
	require.NoError(t, err)
	assert.Equal(t, 4, first.QueueNumber)
	assert.Equal(t, "09:45", first.TimeSlot)

	assert.Len(t, outbox.events, 4)
	assert.Equal(t, model.EventAppointmentBooked, outbox.events[0].EventType)
}

func TestBookQueueNumbersSurviveCancellation(t *testing.T) {
	doctorID := uuid.New()
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, newFakeDoctorRepo(doctorID), &fakeOutboxRepo{})

	patient := model.Actor{ID: uuid.New(), Role: model.RolePatient}
	req := &model.BookAppointmentRequest{DoctorID: doctorID, Date: "2026-09-01"}

	apt1, err := svc.Book(context.Background(), patient, req)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), patient, apt1.ID))

	// The counter never decrements, so the next booking keeps a unique
	// number even after a cancellation.
	apt2, err := svc.Book(context.Background(), patient, req)
	require.NoError(t, err)
	assert.Equal(t, 2, apt2.QueueNumber)
}

func TestBookRejectsNonPatients(t *testing.T) {
	doctorID := uuid.New()
	svc := newTestService(newFakeAppointmentRepo(), newFakeDoctorRepo(doctorID), &fakeOutboxRepo{})

	_, err := svc.Book(context.Background(), model.Actor{ID: uuid.New(), Role: model.RoleDoctor}, &model.BookAppointmentRequest{
		DoctorID: doctorID,
		Date:     "2026-09-01",
	})
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}

func TestBookUnknownDoctor(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), newFakeDoctorRepo(), &fakeOutboxRepo{})

	_, err := svc.Book(context.Background(), model.Actor{ID: uuid.New(), Role: model.RolePatient}, &model.BookAppointmentRequest{
		DoctorID: uuid.New(),
		Date:     "2026-09-01",
	})
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestCheckAvailability(t *testing.T) {
	doctorID := uuid.New()
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, newFakeDoctorRepo(doctorID), &fakeOutboxRepo{})

	date, _ := time.Parse("2006-01-02", "2026-09-01")

	availability, err := svc.CheckAvailability(context.Background(), doctorID, date)
	require.NoError(t, err)
	assert.Equal(t, 1, availability.NextQueueNumber)
	assert.Equal(t, "09:00", availability.EstimatedTime)
	assert.Equal(t, 0, availability.QueueSize)

	req := &model.BookAppointmentRequest{DoctorID: doctorID, Date: "2026-09-01"}
	_, err = svc.Book(context.Background(), model.Actor{ID: uuid.New(), Role: model.RolePatient}, req)
	require.NoError(t, err)

	availability, err = svc.CheckAvailability(context.Background(), doctorID, date)
	require.NoError(t, err)
	assert.Equal(t, 2, availability.NextQueueNumber)
	assert.Equal(t, "09:15", availability.EstimatedTime)
}

func TestCancelOwnership(t *testing.T) {
	doctorID := uuid.New()
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, newFakeDoctorRepo(doctorID), &fakeOutboxRepo{})

	owner := model.Actor{ID: uuid.New(), Role: model.RolePatient}
	apt, err := svc.Book(context.Background(), owner, &model.BookAppointmentRequest{DoctorID: doctorID, Date: "2026-09-01"})
	require.NoError(t, err)

	stranger := model.Actor{ID: uuid.New(), Role: model.RolePatient}
	err = svc.Cancel(context.Background(), stranger, apt.ID)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	require.NoError(t, svc.Cancel(context.Background(), owner, apt.ID))

	got, err := repo.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)
}

func TestUpdateStatusWorkflow(t *testing.T) {
	doctorID := uuid.New()
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, newFakeDoctorRepo(doctorID), &fakeOutboxRepo{})

	patient := model.Actor{ID: uuid.New(), Role: model.RolePatient}
	apt, err := svc.Book(context.Background(), patient, &model.BookAppointmentRequest{DoctorID: doctorID, Date: "2026-09-01"})
	require.NoError(t, err)

	receptionist := model.Actor{ID: uuid.New(), Role: model.RoleReceptionist}
	doctor := model.Actor{ID: doctorID, Role: model.RoleDoctor}

	_, err = svc.UpdateStatus(context.Background(), receptionist, apt.ID, model.AppointmentStatusArrived)
	require.NoError(t, err)

	// Doctor cannot jump straight to pharmacy.
	_, err = svc.UpdateStatus(context.Background(), doctor, apt.ID, model.AppointmentStatusPharmacy)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err))

	updated, err := svc.UpdateStatus(context.Background(), doctor, apt.ID, model.AppointmentStatusInConsultation)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInConsultation, updated.Status)
}

func TestDoctorQueueAcceptsWallClockTime(t *testing.T) {
	doctorID := uuid.New()
	repo := newFakeAppointmentRepo()
	svc := newTestService(repo, newFakeDoctorRepo(doctorID), &fakeOutboxRepo{})

	patient := model.Actor{ID: uuid.New(), Role: model.RolePatient}
	_, err := svc.Book(context.Background(), patient, &model.BookAppointmentRequest{DoctorID: doctorID, Date: "2026-09-01"})
	require.NoError(t, err)

	doctor := model.Actor{ID: doctorID, Role: model.RoleDoctor}

	// Appointments are stored on the midnight date; a lookup with a
	// mid-afternoon timestamp (the no-date "today" path) must still
	// find them.
	queue, err := svc.DoctorQueue(context.Background(), doctor, time.Date(2026, 9, 1, 14, 32, 7, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, doctorID, queue[0].DoctorID)

	queue, err = svc.DoctorQueue(context.Background(), doctor, time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), newFakeDoctorRepo(), &fakeOutboxRepo{})

	_, err := svc.UpdateStatus(context.Background(), model.Actor{ID: uuid.New(), Role: model.RoleReceptionist}, uuid.New(), model.AppointmentStatusArrived)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestPharmacyQueueRole(t *testing.T) {
	svc := newTestService(newFakeAppointmentRepo(), newFakeDoctorRepo(), &fakeOutboxRepo{})

	_, err := svc.PharmacyQueue(context.Background(), model.Actor{ID: uuid.New(), Role: model.RoleDoctor})
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	queue, err := svc.PharmacyQueue(context.Background(), model.Actor{ID: uuid.New(), Role: model.RolePharmacist})
	require.NoError(t, err)
	assert.Empty(t, queue)
}
