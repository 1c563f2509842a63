package cron

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/internal/fines"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type stubOverdueOrders struct {
	orders []models.Order
	err    error
}

func (s *stubOverdueOrders) ListOverdueWithoutLateFine(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.orders) > limit {
		return s.orders[:limit], nil
	}
	return s.orders, nil
}

type stubIssuer struct {
	inputs []fines.IssueInput
	errs   map[uuid.UUID]error
}

func (s *stubIssuer) Issue(ctx context.Context, input fines.IssueInput) (*models.Fine, error) {
	if err, ok := s.errs[input.OrderID]; ok {
		return nil, err
	}
	s.inputs = append(s.inputs, input)
	return &models.Fine{ID: uuid.New(), OrderID: input.OrderID, Status: enums.FineStatusIssued}, nil
}

func overdueOrder(deadlineAgo time.Duration, submitted bool) models.Order {
	order := models.Order{
		ID:                 uuid.New(),
		OrderNumber:        9001,
		TotalPrice:         decimal.NewFromInt(400),
		WriterCompensation: decimal.NewFromInt(200),
		Deadline:           time.Now().Add(-deadlineAgo),
	}
	if submitted {
		at := order.Deadline.Add(time.Hour)
		order.SubmittedAt = &at
	}
	return order
}

func TestLatenessSweepIssuesFines(t *testing.T) {
	submitted := overdueOrder(5*time.Hour, true)
	unsubmitted := overdueOrder(3*time.Hour, false)
	orders := &stubOverdueOrders{orders: []models.Order{submitted, unsubmitted}}
	issuer := &stubIssuer{}

	job, err := NewLatenessSweepJob(LatenessSweepJobParams{
		Logger:  testLogger(),
		Orders:  orders,
		Fines:   issuer,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(issuer.inputs) != 2 {
		t.Fatalf("expected 2 issued fines, got %d", len(issuer.inputs))
	}
	for _, input := range issuer.inputs {
		if input.FineTypeCode != enums.FineTypeLateSubmission {
			t.Fatalf("unexpected fine type %s", input.FineTypeCode)
		}
	}

	// The submitted order computes lateness from its timestamps; the
	// unsubmitted one gets an explicit hours override.
	var sawOverride bool
	for _, input := range issuer.inputs {
		if input.OrderID == unsubmitted.ID {
			sawOverride = input.HoursLate != nil && input.HoursLate.GreaterThan(decimal.NewFromInt(2))
		}
		if input.OrderID == submitted.ID && input.HoursLate != nil {
			t.Fatal("submitted order should not carry an hours override")
		}
	}
	if !sawOverride {
		t.Fatal("unsubmitted order must carry an hours override")
	}
}

func TestLatenessSweepSkipsConflicts(t *testing.T) {
	raced := overdueOrder(2*time.Hour, true)
	clean := overdueOrder(4*time.Hour, true)
	orders := &stubOverdueOrders{orders: []models.Order{raced, clean}}
	issuer := &stubIssuer{errs: map[uuid.UUID]error{
		raced.ID: pkgerrors.New(pkgerrors.CodeConflict, "an open fine of this type already exists for the order"),
	}}

	job, err := NewLatenessSweepJob(LatenessSweepJobParams{
		Logger:  testLogger(),
		Orders:  orders,
		Fines:   issuer,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("conflicts must not fail the sweep: %v", err)
	}
	if len(issuer.inputs) != 1 || issuer.inputs[0].OrderID != clean.ID {
		t.Fatalf("expected only the clean order to be fined, got %+v", issuer.inputs)
	}
}

func TestLatenessSweepAggregatesHardErrors(t *testing.T) {
	broken := overdueOrder(2*time.Hour, true)
	clean := overdueOrder(4*time.Hour, true)
	orders := &stubOverdueOrders{orders: []models.Order{broken, clean}}
	issuer := &stubIssuer{errs: map[uuid.UUID]error{
		broken.ID: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable"),
	}}

	job, err := NewLatenessSweepJob(LatenessSweepJobParams{
		Logger:  testLogger(),
		Orders:  orders,
		Fines:   issuer,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("hard errors must surface from the sweep")
	}
	if len(issuer.inputs) != 1 || issuer.inputs[0].OrderID != clean.ID {
		t.Fatal("sweep must continue past a failing order")
	}
}

func TestLatenessSweepHonorsBatchSize(t *testing.T) {
	orders := &stubOverdueOrders{orders: []models.Order{
		overdueOrder(6*time.Hour, true),
		overdueOrder(5*time.Hour, true),
		overdueOrder(4*time.Hour, true),
	}}
	issuer := &stubIssuer{}

	job, err := NewLatenessSweepJob(LatenessSweepJobParams{
		Logger:    testLogger(),
		Orders:    orders,
		Fines:     issuer,
		ActorID:   uuid.New(),
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("job constructor failed: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(issuer.inputs) != 2 {
		t.Fatalf("expected batch cap of 2, got %d", len(issuer.inputs))
	}
}
