package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/quillmarket/fines-backend/internal/fines"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/logger"
	"github.com/quillmarket/fines-backend/pkg/metrics"
)

const defaultLatenessBatch = 200

type latenessIssuer interface {
	Issue(ctx context.Context, input fines.IssueInput) (*models.Fine, error)
}

type overdueOrdersRepo interface {
	ListOverdueWithoutLateFine(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
}

// LatenessSweepJobParams configure the automatic lateness fine sweep.
type LatenessSweepJobParams struct {
	Logger  *logger.Logger
	Orders  overdueOrdersRepo
	Fines   latenessIssuer
	Metrics *metrics.JobMetrics
	// ActorID identifies the system principal the sweep issues fines as.
	ActorID   uuid.UUID
	BatchSize int
}

// NewLatenessSweepJob builds the job that fines overdue orders which have no
// lateness fine yet. The fine amount accrues per the resolved policy at
// issue time; unsubmitted orders are fined for the hours elapsed so far.
func NewLatenessSweepJob(params LatenessSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Fines == nil {
		return nil, fmt.Errorf("fine issuer required")
	}
	if params.ActorID == uuid.Nil {
		return nil, fmt.Errorf("system actor id required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultLatenessBatch
	}
	return &latenessSweepJob{
		logg:    params.Logger,
		orders:  params.Orders,
		fines:   params.Fines,
		metrics: params.Metrics,
		actorID: params.ActorID,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type latenessSweepJob struct {
	logg    *logger.Logger
	orders  overdueOrdersRepo
	fines   latenessIssuer
	metrics *metrics.JobMetrics
	actorID uuid.UUID
	batch   int
	now     func() time.Time
}

func (j *latenessSweepJob) Name() string { return "lateness-sweep" }

func (j *latenessSweepJob) Run(ctx context.Context) error {
	now := j.now()
	orders, err := j.orders.ListOverdueWithoutLateFine(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("list overdue orders: %w", err)
	}

	var (
		issued  int
		skipped int
		errs    error
	)
	for _, order := range orders {
		input := fines.IssueInput{
			OrderID:      order.ID,
			FineTypeCode: enums.FineTypeLateSubmission,
			Reason:       "order delivered past deadline",
			ActorID:      j.actorID,
			ActorRole:    enums.ActorRoleAdmin,
		}
		// Unsubmitted orders keep accruing; fine them for the lateness so far.
		if order.SubmittedAt == nil {
			hours := decimal.NewFromFloat(now.Sub(order.Deadline).Seconds()).Div(decimal.NewFromInt(3600))
			input.HoursLate = &hours
		}

		if _, err := j.fines.Issue(ctx, input); err != nil {
			// A racing manual fine or an inapplicable policy is not a sweep
			// failure; anything else is.
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				skipped++
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		issued++
		j.metrics.IncIssued(enums.FineTypeLateSubmission)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orders_checked": len(orders),
		"fines_issued":   issued,
		"skipped":        skipped,
	})
	j.logg.Info(logCtx, "lateness sweep complete")
	return errs
}
