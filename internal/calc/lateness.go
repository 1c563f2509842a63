package calc

import (
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	"github.com/quillmarket/fines-backend/pkg/money"
)

// Hours 4 through 24 accrue the subsequent-hour rate, so at most 21 hourly
// increments before the daily rate takes over.
const maxSubsequentHours = 21

var (
	defaultHourOne        = decimal.NewFromInt(5)
	defaultHourTwo        = decimal.NewFromInt(10)
	defaultHourThree      = decimal.NewFromInt(15)
	defaultSubsequentHour = decimal.NewFromInt(5)
	defaultDaily          = decimal.NewFromInt(20)
	defaultMaxPercent     = decimal.NewFromInt(100)

	hoursPerDay = decimal.NewFromInt(24)
	three       = decimal.NewFromInt(3)
)

// DefaultLatenessRule is the platform fallback applied when a tenant has no
// explicit progressive-hourly rule: 5%/10%/15% for hours one to three, 5% per
// hour through hour 24, 20% per day beyond, capped at 100% of the base.
func DefaultLatenessRule() models.LatenessFineRule {
	cap := defaultMaxPercent
	return models.LatenessFineRule{
		HourOnePercent:        defaultHourOne,
		HourTwoPercent:        defaultHourTwo,
		HourThreePercent:      defaultHourThree,
		SubsequentHourPercent: defaultSubsequentHour,
		DailyPercent:          defaultDaily,
		CalculationMode:       enums.LatenessModeCumulative,
		MaxFinePercent:        &cap,
	}
}

func calculateProgressiveHourly(cfg *models.FineTypeConfig, facts OrderFacts) (Result, error) {
	hours := hoursLate(facts)
	if !hours.GreaterThan(decimal.Zero) {
		return notApplicable(), nil
	}

	rule := DefaultLatenessRule()
	if cfg.LatenessRule != nil {
		rule = *cfg.LatenessRule
	}

	var percent decimal.Decimal
	switch rule.CalculationMode {
	case enums.LatenessModeProgressive:
		percent = progressivePercent(rule, hours)
	default:
		percent = cumulativePercent(rule, hours)
	}

	if rule.MaxFinePercent != nil && percent.GreaterThan(*rule.MaxFinePercent) {
		percent = *rule.MaxFinePercent
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
		Amount:       money.Percent(base, percent),
		TotalPercent: percent,
		HoursLate:    hours,
	}, nil
}

// cumulativePercent sums every hour bucket the lateness has reached.
func cumulativePercent(rule models.LatenessFineRule, hours decimal.Decimal) decimal.Decimal {
	percent := decimal.Zero
	if hours.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		percent = percent.Add(rule.HourOnePercent)
	}
	if hours.GreaterThanOrEqual(decimal.NewFromInt(2)) {
		percent = percent.Add(rule.HourTwoPercent)
	}
	if hours.GreaterThanOrEqual(three) {
		percent = percent.Add(rule.HourThreePercent)
	}
	if hours.GreaterThan(three) {
		extra := hours.Sub(three).Floor()
		if extra.GreaterThan(decimal.NewFromInt(maxSubsequentHours)) {
			extra = decimal.NewFromInt(maxSubsequentHours)
		}
		percent = percent.Add(rule.SubsequentHourPercent.Mul(extra))
	}
	if hours.GreaterThanOrEqual(hoursPerDay) {
		days := hours.Sub(hoursPerDay).Div(hoursPerDay).Floor().Add(decimal.NewFromInt(1))
		percent = percent.Add(rule.DailyPercent.Mul(days))
	}
	return percent
}

// progressivePercent charges only the bucket the current hour falls in.
func progressivePercent(rule models.LatenessFineRule, hours decimal.Decimal) decimal.Decimal {
	hourNumber := hours.Floor()
	switch {
	case hourNumber.LessThan(decimal.NewFromInt(1)):
		return decimal.Zero
	case hourNumber.Equal(decimal.NewFromInt(1)):
		return rule.HourOnePercent
	case hourNumber.Equal(decimal.NewFromInt(2)):
		return rule.HourTwoPercent
	case hourNumber.Equal(three):
		return rule.HourThreePercent
	case hourNumber.LessThanOrEqual(hoursPerDay):
		return rule.HourThreePercent.Add(rule.SubsequentHourPercent.Mul(hourNumber.Sub(three)))
	default:
		return rule.DailyPercent.Mul(hours.Div(hoursPerDay).Floor())
	}
}

func hoursLate(facts OrderFacts) decimal.Decimal {
	if facts.HoursLate != nil {
		return *facts.HoursLate
	}
	if facts.SubmittedAt.IsZero() || facts.Deadline.IsZero() {
		return decimal.Zero
	}
	seconds := facts.SubmittedAt.Sub(facts.Deadline).Seconds()
	return decimal.NewFromFloat(seconds).Div(decimal.NewFromInt(3600))
}
