package calc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/money"
)

// OrderFacts carries the order economics and timestamps a calculation reads.
// The calculator never touches storage; callers snapshot these up front.
type OrderFacts struct {
	WriterCompensation decimal.Decimal
	TotalPrice         decimal.Decimal
	Deadline           time.Time
	SubmittedAt        time.Time

	// HoursLate overrides the deadline/submission delta when the trigger
	// already knows the lateness (manual issuance with explicit hours).
	HoursLate *decimal.Decimal
}

// Result is the outcome of a fine calculation. Amount is rounded to two
// decimal places exactly once; TotalPercent records the pre-conversion
// percentage for progressive-hourly audits.
type Result struct {
	Applicable   bool
	Amount       decimal.Decimal
	TotalPercent decimal.Decimal
	HoursLate    decimal.Decimal
}

func notApplicable() Result {
	return Result{Applicable: false, Amount: money.Zero()}
}

// Calculate computes the fine amount for the given policy snapshot and order
// facts. It is deterministic and side-effect free: identical inputs always
// produce identical results.
func Calculate(cfg *models.FineTypeConfig, facts OrderFacts) (Result, error) {
	if cfg == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "fine type config required")
	}

	// Lateness fines only apply once the deadline has passed, whatever the
	// calculation kind configured for the code.
	if cfg.Code == enums.FineTypeLateSubmission && !hoursLate(facts).GreaterThan(decimal.Zero) {
		return notApplicable(), nil
	}

	var (
		res Result
		err error
	)
	switch cfg.CalculationKind {
	case enums.CalculationKindFixed:
		res, err = calculateFixed(cfg)
	case enums.CalculationKindPercentage:
		res, err = calculatePercentage(cfg, facts)
	case enums.CalculationKindProgressiveHourly:
		res, err = calculateProgressiveHourly(cfg, facts)
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown calculation kind").
			WithDetails(map[string]any{"calculation_kind": cfg.CalculationKind})
	}
	if err != nil {
		return Result{}, err
	}
	if !res.Applicable {
		return res, nil
	}

	amount := money.Clamp(res.Amount, cfg.MinAmount, cfg.MaxAmount)
	amount = money.Round(amount)
	res.Amount = amount
	res.Applicable = money.IsPositive(amount)
	return res, nil
}

func calculateFixed(cfg *models.FineTypeConfig) (Result, error) {
	if cfg.FixedAmount == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "fixed policy missing fixed amount")
	}
	return Result{Applicable: true, Amount: *cfg.FixedAmount}, nil
}

func calculatePercentage(cfg *models.FineTypeConfig, facts OrderFacts) (Result, error) {
	if cfg.Percentage == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "percentage policy missing percentage")
	}
	base, err := baseAmount(cfg, facts)
	if err != nil {
		return Result{}, err
	}
	if !money.IsPositive(base) {
		return notApplicable(), nil
	}
	return Result{
		Applicable:   true,
		Amount:       money.Percent(base, *cfg.Percentage),
		TotalPercent: *cfg.Percentage,
	}, nil
}

func baseAmount(cfg *models.FineTypeConfig, facts OrderFacts) (decimal.Decimal, error) {
	kind := enums.BaseAmountWriterCompensation
	if cfg.BaseAmountKind != nil {
		kind = *cfg.BaseAmountKind
	}
	switch kind {
	case enums.BaseAmountWriterCompensation:
		return facts.WriterCompensation, nil
	case enums.BaseAmountOrderTotal:
		return facts.TotalPrice, nil
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown base amount kind").
			WithDetails(map[string]any{"base_amount_kind": kind})
	}
}
