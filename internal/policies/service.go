package policies

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/outbox"
	pkgpagination "github.com/quillmarket/fines-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes fine policy resolution and admin management.
type Service interface {
	Resolve(ctx context.Context, code string, websiteID *uuid.UUID, at time.Time) (*models.FineTypeConfig, error)
	Create(ctx context.Context, input CreateConfigInput) (*models.FineTypeConfig, error)
	Update(ctx context.Context, input UpdateConfigInput) (*models.FineTypeConfig, error)
	Deactivate(ctx context.Context, input DeactivateConfigInput) error
	Get(ctx context.Context, id uuid.UUID) (*models.FineTypeConfig, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// LatenessRuleInput is the hour-by-hour percentage schedule attached to a
// progressive-hourly config.
type LatenessRuleInput struct {
	HourOnePercent        decimal.Decimal
	HourTwoPercent        decimal.Decimal
	HourThreePercent      decimal.Decimal
	SubsequentHourPercent decimal.Decimal
	DailyPercent          decimal.Decimal
	CalculationMode       enums.LatenessMode
	MaxFinePercent        *decimal.Decimal
}

// CreateConfigInput carries the fields an admin supplies when defining a policy.
type CreateConfigInput struct {
	Code            string
	WebsiteID       *uuid.UUID
	CalculationKind enums.CalculationKind
	FixedAmount     *decimal.Decimal
	Percentage      *decimal.Decimal
	BaseAmountKind  *enums.BaseAmountKind
	MinAmount       *decimal.Decimal
	MaxAmount       *decimal.Decimal
	StartDate       time.Time
	EndDate         *time.Time
	LatenessRule    *LatenessRuleInput

	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// UpdateConfigInput amends an existing policy. Code and calculation kind are
// immutable on system configs; omitting a field leaves it unchanged.
type UpdateConfigInput struct {
	ConfigID        uuid.UUID
	CalculationKind *enums.CalculationKind
	FixedAmount     *decimal.Decimal
	Percentage      *decimal.Decimal
	BaseAmountKind  *enums.BaseAmountKind
	MinAmount       *decimal.Decimal
	MaxAmount       *decimal.Decimal
	EndDate         *time.Time
	LatenessRule    *LatenessRuleInput

	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// DeactivateConfigInput soft-disables a policy; rows are never hard-deleted.
type DeactivateConfigInput struct {
	ConfigID  uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// NewService builds a policy service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("policies repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

// Resolve picks the policy governing the code at the given instant. A
// tenant-scoped config always beats a global one; ties within a scope go to
// the latest start date.
func (s *service) Resolve(ctx context.Context, code string, websiteID *uuid.UUID, at time.Time) (*models.FineTypeConfig, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine type code required")
	}
	if at.IsZero() {
		at = time.Now()
	}

	candidates, err := s.repo.FindCandidates(ctx, code, websiteID, at)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fine policies")
	}

	// Rows arrive newest start_date first, so the first tenant match wins.
	for i := range candidates {
		if candidates[i].WebsiteID != nil {
			return &candidates[i], nil
		}
	}
	if len(candidates) > 0 {
		return &candidates[0], nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active fine policy").
		WithDetails(map[string]any{"code": code})
}

func (s *service) Create(ctx context.Context, input CreateConfigInput) (*models.FineTypeConfig, error) {
	if err := requirePolicyManager(input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if input.StartDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start_date is required")
	}
	if input.EndDate != nil && !input.EndDate.After(input.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end_date must be after start_date")
	}

	cfg := &models.FineTypeConfig{
		Code:            code,
		WebsiteID:       input.WebsiteID,
		CalculationKind: input.CalculationKind,
		FixedAmount:     input.FixedAmount,
		Percentage:      input.Percentage,
		BaseAmountKind:  input.BaseAmountKind,
		MinAmount:       input.MinAmount,
		MaxAmount:       input.MaxAmount,
		Active:          true,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		System:          enums.IsSystemFineTypeCode(code),
		LatenessRule:    latenessRuleModel(input.LatenessRule),
		CreatedBy:       input.ActorID,
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, cfg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fine policy")
		}
		return s.outbox.Emit(ctx, tx, policyEvent(enums.EventFinePolicyCreated, cfg, input.ActorID, input.ActorRole))
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *service) Update(ctx context.Context, input UpdateConfigInput) (*models.FineTypeConfig, error) {
	if err := requirePolicyManager(input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	if input.ConfigID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "config id required")
	}

	var updated *models.FineTypeConfig
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cfg, err := repo.FindByID(ctx, input.ConfigID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fine policy not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fine policy")
		}

		if input.CalculationKind != nil && *input.CalculationKind != cfg.CalculationKind {
			if cfg.System {
				return pkgerrors.New(pkgerrors.CodeConflict, "system policies cannot change calculation kind")
			}
			cfg.CalculationKind = *input.CalculationKind
		}
		if input.FixedAmount != nil {
			cfg.FixedAmount = input.FixedAmount
		}
		if input.Percentage != nil {
			cfg.Percentage = input.Percentage
		}
		if input.BaseAmountKind != nil {
			cfg.BaseAmountKind = input.BaseAmountKind
		}
		if input.MinAmount != nil {
			cfg.MinAmount = input.MinAmount
		}
		if input.MaxAmount != nil {
			cfg.MaxAmount = input.MaxAmount
		}
		if input.EndDate != nil {
			cfg.EndDate = input.EndDate
		}
		if input.LatenessRule != nil {
			rule := latenessRuleModel(input.LatenessRule)
			if cfg.LatenessRule != nil {
				rule.ID = cfg.LatenessRule.ID
				rule.ConfigID = cfg.LatenessRule.ConfigID
			}
			cfg.LatenessRule = rule
		}

		if err := validateConfig(cfg); err != nil {
			return err
		}
		if err := repo.Update(ctx, cfg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fine policy")
		}
		updated = cfg
		return s.outbox.Emit(ctx, tx, policyEvent(enums.EventFinePolicyUpdated, cfg, input.ActorID, input.ActorRole))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Deactivate(ctx context.Context, input DeactivateConfigInput) error {
	if err := requirePolicyManager(input.ActorID, input.ActorRole); err != nil {
		return err
	}
	if input.ConfigID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "config id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cfg, err := repo.FindByID(ctx, input.ConfigID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "fine policy not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fine policy")
		}
		if !cfg.Active {
			return nil
		}
		cfg.Active = false
		if err := repo.Update(ctx, cfg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate fine policy")
		}
		return s.outbox.Emit(ctx, tx, policyEvent(enums.EventFinePolicyDeactivated, cfg, input.ActorID, input.ActorRole))
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.FineTypeConfig, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "config id required")
	}
	cfg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fine policy not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fine policy")
	}
	return cfg, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pkgpagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.List(ctx, listQuery{
		code:       strings.TrimSpace(params.Code),
		websiteID:  params.WebsiteID,
		activeOnly: params.ActiveOnly,
		limit:      limit + 1,
		cursor:     cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fine policies")
	}

	result := &ListResult{Items: make([]ListItem, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for _, row := range rows {
		result.Items = append(result.Items, toListItem(row))
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		result.Cursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

func requirePolicyManager(actorID uuid.UUID, role enums.ActorRole) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !role.CanManagePolicies() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot manage fine policies")
	}
	return nil
}

func validateConfig(cfg *models.FineTypeConfig) error {
	if !cfg.CalculationKind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid calculation kind")
	}
	if cfg.MinAmount != nil && cfg.MinAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_amount cannot be negative")
	}
	if cfg.MinAmount != nil && cfg.MaxAmount != nil && cfg.MinAmount.GreaterThan(*cfg.MaxAmount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_amount cannot exceed max_amount")
	}

	switch cfg.CalculationKind {
	case enums.CalculationKindFixed:
		if cfg.FixedAmount == nil || !cfg.FixedAmount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "fixed policies require a positive fixed_amount")
		}
	case enums.CalculationKindPercentage:
		if cfg.Percentage == nil || !cfg.Percentage.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage policies require a positive percentage")
		}
		if cfg.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage cannot exceed 100")
		}
		if cfg.BaseAmountKind != nil && !cfg.BaseAmountKind.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid base_amount_kind")
		}
	case enums.CalculationKindProgressiveHourly:
		if cfg.Code != enums.FineTypeLateSubmission {
			return pkgerrors.New(pkgerrors.CodeValidation, "progressive_hourly is only valid for late_submission")
		}
		if cfg.LatenessRule != nil {
			if err := validateLatenessRule(cfg.LatenessRule); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateLatenessRule(rule *models.LatenessFineRule) error {
	rates := []decimal.Decimal{
		rule.HourOnePercent,
		rule.HourTwoPercent,
		rule.HourThreePercent,
		rule.SubsequentHourPercent,
		rule.DailyPercent,
	}
	for _, rate := range rates {
		if rate.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "lateness rates cannot be negative")
		}
	}
	if !rule.CalculationMode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid lateness calculation mode")
	}
	if rule.MaxFinePercent != nil && !rule.MaxFinePercent.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_fine_percent must be positive")
	}
	return nil
}

func latenessRuleModel(input *LatenessRuleInput) *models.LatenessFineRule {
	if input == nil {
		return nil
	}
	mode := input.CalculationMode
	if mode == "" {
		mode = enums.LatenessModeCumulative
	}
	return &models.LatenessFineRule{
		HourOnePercent:        input.HourOnePercent,
		HourTwoPercent:        input.HourTwoPercent,
		HourThreePercent:      input.HourThreePercent,
		SubsequentHourPercent: input.SubsequentHourPercent,
		DailyPercent:          input.DailyPercent,
		CalculationMode:       mode,
		MaxFinePercent:        input.MaxFinePercent,
	}
}

// policyEvent builds the audit payload emitted on every policy mutation.
func policyEvent(eventType enums.OutboxEventType, cfg *models.FineTypeConfig, actorID uuid.UUID, role enums.ActorRole) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateFineTypeConfig,
		AggregateID:   cfg.ID,
		Actor: &outbox.ActorRef{
			UserID:    actorID,
			WebsiteID: cfg.WebsiteID,
			Role:      role.String(),
		},
		Data: map[string]any{
			"code":             cfg.Code,
			"calculation_kind": cfg.CalculationKind,
			"active":           cfg.Active,
			"system":           cfg.System,
		},
		Version: 1,
	}
}
