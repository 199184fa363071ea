package lab

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
	"github.com/jwalitptl/hms-api/pkg/errors"
)

const testTypeCacheKey = "lab_test_types"

type Service struct {
	labs    repository.LabRepository
	outbox  repository.OutboxRepository
	tx      repository.TxManager
	catalog *cache.Cache
}

func NewService(labs repository.LabRepository, outbox repository.OutboxRepository, tx repository.TxManager) *Service {
	return &Service{
		labs:    labs,
		outbox:  outbox,
		tx:      tx,
		catalog: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Worklist returns pending lab reports for the assistants, oldest
// request first. Status filters to Requested or Processing; empty means
// Requested.
func (s *Service) Worklist(ctx context.Context, actor model.Actor, status model.LabReportStatus) ([]*model.LabReport, error) {
	if actor.Role != model.RoleLabAssistant && actor.Role != model.RoleAdmin {
		return nil, errors.Unauthorized("only lab staff can view the worklist")
	}

	if status == "" {
		status = model.LabReportStatusRequested
	}
	if status != model.LabReportStatusRequested && status != model.LabReportStatusProcessing {
		return nil, errors.BadRequest("status must be Requested or Processing", nil)
	}

	reports, err := s.labs.ListReportsByStatus(ctx, status)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return reports, nil
}

// StartProcessing claims a requested report for the calling assistant.
func (s *Service) StartProcessing(ctx context.Context, actor model.Actor, reportID uuid.UUID) (*model.LabReport, error) {
	if actor.Role != model.RoleLabAssistant {
		return nil, errors.Unauthorized("only lab assistants can process tests")
	}

	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != model.LabReportStatusRequested {
		return nil, errors.InvalidTransition(string(report.Status), string(model.LabReportStatusProcessing))
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.labs.UpdateReportStatus(ctx, tx, reportID, model.LabReportStatusRequested, model.LabReportStatusProcessing, &actor.ID)
	})
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Conflict("lab report was claimed concurrently")
		}
		return nil, errors.Persistence("lab report claim", err)
	}

	report.Status = model.LabReportStatusProcessing
	report.ProcessedBy = &actor.ID
	return report, nil
}

// Complete attaches the result file and marks the report Completed. A
// report can be completed straight from Requested; claiming it first is
// optional.
func (s *Service) Complete(ctx context.Context, actor model.Actor, reportID uuid.UUID, req *model.CompleteLabTestRequest) (*model.LabReport, error) {
	if actor.Role != model.RoleLabAssistant {
		return nil, errors.Unauthorized("only lab assistants can complete tests")
	}

	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == model.LabReportStatusCompleted {
		return nil, errors.InvalidTransition(string(report.Status), string(model.LabReportStatusCompleted))
	}

	file := &model.LabReportFile{
		ID:          uuid.New(),
		LabReportID: reportID,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		FileType:    req.FileType,
		UploadedBy:  &actor.ID,
	}

	from := report.Status
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.labs.UpdateReportStatus(ctx, tx, reportID, from, model.LabReportStatusCompleted, &actor.ID); err != nil {
			return err
		}
		if err := s.labs.CreateFile(ctx, tx, file); err != nil {
			return err
		}

		report.Status = model.LabReportStatusCompleted
		report.ProcessedBy = &actor.ID
		report.Files = append(report.Files, file)

		payload, err := json.Marshal(report)
		if err != nil {
			return err
		}
		return s.outbox.Create(ctx, tx, &model.OutboxEvent{
			EventType: model.EventLabReportCompleted,
			Payload:   payload,
		})
	})
	if err != nil {
		report.Status = from
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Conflict("lab report was modified concurrently")
		}
		return nil, errors.Persistence("lab report completion", err)
	}
	return report, nil
}

// Reports lists the lab reports for an appointment, files included.
func (s *Service) Reports(ctx context.Context, appointmentID uuid.UUID) ([]*model.LabReport, error) {
	reports, err := s.labs.ListReportsByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return reports, nil
}

// TestTypes lists the orderable lab test catalog. The catalog changes
// rarely, so results are cached for a few minutes.
func (s *Service) TestTypes(ctx context.Context) ([]*model.LabTestType, error) {
	if cached, ok := s.catalog.Get(testTypeCacheKey); ok {
		return cached.([]*model.LabTestType), nil
	}

	types, err := s.labs.ListTestTypes(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	s.catalog.Set(testTypeCacheKey, types, cache.DefaultExpiration)
	return types, nil
}

func (s *Service) getReport(ctx context.Context, id uuid.UUID) (*model.LabReport, error) {
	report, err := s.labs.GetReport(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("lab report", err)
		}
		return nil, errors.Internal(err)
	}
	return report, nil
}
