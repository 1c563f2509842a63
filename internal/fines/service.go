package fines

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/internal/calc"
	"github.com/quillmarket/fines-backend/internal/compensation"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/money"
	"github.com/quillmarket/fines-backend/pkg/outbox"
	pkgpagination "github.com/quillmarket/fines-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type policyResolver interface {
	Resolve(ctx context.Context, code string, websiteID *uuid.UUID, at time.Time) (*models.FineTypeConfig, error)
}

// Service drives the fine state machine. Every mutation runs in a single
// transaction covering the fine row, the compensation movement, and the
// outbox audit event.
type Service interface {
	Issue(ctx context.Context, input IssueInput) (*models.Fine, error)
	Waive(ctx context.Context, input WaiveInput) (*models.Fine, error)
	Void(ctx context.Context, input VoidInput) (*models.Fine, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Fine, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)

	// Tx-scoped transitions for callers that manage their own transaction,
	// such as the appeal workflow.
	WaiveWithTx(ctx context.Context, tx *gorm.DB, input WaiveInput) (*models.Fine, error)
	ResolveWithTx(ctx context.Context, tx *gorm.DB, input ResolveInput) (*models.Fine, error)
	MarkDisputedWithTx(ctx context.Context, tx *gorm.DB, fineID, actorID uuid.UUID) (*models.Fine, error)
	MarkEscalatedWithTx(ctx context.Context, tx *gorm.DB, fineID, actorID uuid.UUID) (*models.Fine, error)
}

type service struct {
	repo            Repository
	tx              txRunner
	outbox          outboxPublisher
	policies        policyResolver
	ledger          compensation.Adjuster
	defaultCurrency enums.Currency
}

// IssueInput carries everything needed to impose a fine on an order.
type IssueInput struct {
	OrderID      uuid.UUID
	FineTypeCode string
	Reason       string

	// CustomAmount overrides the calculated amount. Must be positive.
	CustomAmount *decimal.Decimal
	// HoursLate overrides the deadline/submission delta for lateness fines.
	HoursLate *decimal.Decimal

	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// WaiveInput cancels a fine with compensation restored.
type WaiveInput struct {
	FineID    uuid.UUID
	Reason    string
	ActorID   uuid.UUID
	ActorRole enums.ActorRole

	// skipRoleCheck is set when the waive is the outcome of an accepted
	// appeal, where the reviewer's authority was already verified.
	skipRoleCheck bool
}

// VoidInput cancels a fine without touching compensation.
type VoidInput struct {
	FineID    uuid.UUID
	Reason    string
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// ResolveInput closes a disputed fine keeping the penalty in force.
type ResolveInput struct {
	FineID  uuid.UUID
	Reason  string
	ActorID uuid.UUID
}

// NewService builds the fine lifecycle service.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, policies policyResolver, ledger compensation.Adjuster, defaultCurrency enums.Currency) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fines repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy resolver required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("compensation ledger required")
	}
	if defaultCurrency == "" {
		defaultCurrency = enums.CurrencyUSD
	}
	return &service{
		repo:            repo,
		tx:              tx,
		outbox:          outboxSvc,
		policies:        policies,
		ledger:          ledger,
		defaultCurrency: defaultCurrency,
	}, nil
}

func (s *service) Issue(ctx context.Context, input IssueInput) (*models.Fine, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.FineTypeCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine type code required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.ActorRole.CanIssueFines() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot issue fines")
	}
	if input.CustomAmount != nil && !input.CustomAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "custom amount must be positive")
	}

	var issued *models.Fine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		open, err := repo.HasOpenFine(ctx, order.ID, input.FineTypeCode)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open fines")
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeConflict, "an open fine of this type already exists for the order")
		}

		policy, err := s.policies.Resolve(ctx, input.FineTypeCode, order.WebsiteID, time.Now())
		if err != nil {
			return err
		}

		amount, err := s.fineAmount(policy, order, input)
		if err != nil {
			return err
		}

		currency := order.Currency
		if currency == "" {
			currency = s.defaultCurrency
		}

		fine := &models.Fine{
			OrderID:      order.ID,
			WebsiteID:    order.WebsiteID,
			FineTypeCode: input.FineTypeCode,
			PolicyID:     &policy.ID,
			Amount:       amount,
			Currency:     currency,
			Reason:       strings.TrimSpace(input.Reason),
			Status:       enums.FineStatusIssued,
			IssuedBy:     input.ActorID,
			ImposedAt:    time.Now(),
		}
		if err := repo.Create(ctx, fine); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fine")
		}

		movement, err := s.ledger.Adjust(ctx, tx, order.ID, amount.Neg())
		if err != nil {
			return err
		}

		issued = fine
		return s.outbox.Emit(ctx, tx, fineEvent(enums.EventFineIssued, fine, input.ActorID, input.ActorRole, map[string]any{
			"prior_status":        nil,
			"compensation_before": movement.Before,
			"compensation_after":  movement.After,
		}))
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// fineAmount computes the final positive amount for a new fine, applying the
// custom override when present.
func (s *service) fineAmount(policy *models.FineTypeConfig, order *models.Order, input IssueInput) (decimal.Decimal, error) {
	if input.CustomAmount != nil {
		return money.Round(*input.CustomAmount), nil
	}

	facts := calc.OrderFacts{
		WriterCompensation: order.WriterCompensation,
		TotalPrice:         order.TotalPrice,
		Deadline:           order.Deadline,
		HoursLate:          input.HoursLate,
	}
	if order.SubmittedAt != nil {
		facts.SubmittedAt = *order.SubmittedAt
	}

	result, err := calc.Calculate(policy, facts)
	if err != nil {
		return decimal.Zero, err
	}
	if !result.Applicable {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "fine is not applicable to this order").
			WithDetails(map[string]any{"fine_type_code": input.FineTypeCode})
	}
	return result.Amount, nil
}

func (s *service) Waive(ctx context.Context, input WaiveInput) (*models.Fine, error) {
	var waived *models.Fine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		fine, err := s.WaiveWithTx(ctx, tx, input)
		if err != nil {
			return err
		}
		waived = fine
		return nil
	})
	if err != nil {
		return nil, err
	}
	return waived, nil
}

func (s *service) WaiveWithTx(ctx context.Context, tx *gorm.DB, input WaiveInput) (*models.Fine, error) {
	if input.FineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.skipRoleCheck && !input.ActorRole.CanWaiveFines() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot waive fines")
	}

	repo := s.repo.WithTx(tx)
	fine, err := s.loadFine(ctx, repo, input.FineID)
	if err != nil {
		return nil, err
	}
	if !fine.Status.IsWaivable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fine cannot be waived in its current status").
			WithDetails(map[string]any{"status": fine.Status})
	}

	prior := fine.Status
	now := time.Now()
	reason := strings.TrimSpace(input.Reason)
	fine.Status = enums.FineStatusWaived
	fine.Resolved = true
	fine.ResolvedAt = &now
	fine.WaivedBy = &input.ActorID
	fine.WaivedAt = &now
	fine.WaiverReason = &reason

	if err := repo.Update(ctx, fine); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fine")
	}

	movement, err := s.ledger.Adjust(ctx, tx, fine.OrderID, fine.Amount)
	if err != nil {
		return nil, err
	}

	err = s.outbox.Emit(ctx, tx, fineEvent(enums.EventFineWaived, fine, input.ActorID, input.ActorRole, map[string]any{
		"prior_status":        prior,
		"compensation_before": movement.Before,
		"compensation_after":  movement.After,
	}))
	if err != nil {
		return nil, err
	}
	return fine, nil
}

func (s *service) Void(ctx context.Context, input VoidInput) (*models.Fine, error) {
	if input.FineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.ActorRole.CanWaiveFines() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot void fines")
	}

	var voided *models.Fine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		fine, err := s.loadFine(ctx, repo, input.FineID)
		if err != nil {
			return err
		}
		if fine.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fine is already closed").
				WithDetails(map[string]any{"status": fine.Status})
		}

		prior := fine.Status
		now := time.Now()
		reason := strings.TrimSpace(input.Reason)
		fine.Status = enums.FineStatusVoided
		fine.Resolved = true
		fine.ResolvedAt = &now
		if reason != "" {
			fine.ResolvedReason = &reason
		}

		// Voiding annuls the record only; compensation already debited
		// stays as-is.
		if err := repo.Update(ctx, fine); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fine")
		}

		voided = fine
		return s.outbox.Emit(ctx, tx, fineEvent(enums.EventFineVoided, fine, input.ActorID, input.ActorRole, map[string]any{
			"prior_status": prior,
		}))
	})
	if err != nil {
		return nil, err
	}
	return voided, nil
}

func (s *service) ResolveWithTx(ctx context.Context, tx *gorm.DB, input ResolveInput) (*models.Fine, error) {
	repo := s.repo.WithTx(tx)
	fine, err := s.loadFine(ctx, repo, input.FineID)
	if err != nil {
		return nil, err
	}
	if !fine.Status.IsDisputable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fine is not under dispute").
			WithDetails(map[string]any{"status": fine.Status})
	}

	prior := fine.Status
	now := time.Now()
	reason := strings.TrimSpace(input.Reason)
	fine.Status = enums.FineStatusResolved
	fine.Resolved = true
	fine.ResolvedAt = &now
	if reason != "" {
		fine.ResolvedReason = &reason
	}

	if err := repo.Update(ctx, fine); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fine")
	}

	err = s.outbox.Emit(ctx, tx, fineEvent(enums.EventFineResolved, fine, input.ActorID, "", map[string]any{
		"prior_status": prior,
	}))
	if err != nil {
		return nil, err
	}
	return fine, nil
}

func (s *service) MarkDisputedWithTx(ctx context.Context, tx *gorm.DB, fineID, actorID uuid.UUID) (*models.Fine, error) {
	repo := s.repo.WithTx(tx)
	fine, err := s.loadFine(ctx, repo, fineID)
	if err != nil {
		return nil, err
	}
	if fine.Status != enums.FineStatusIssued {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only issued fines can be disputed").
			WithDetails(map[string]any{"status": fine.Status})
	}

	fine.Status = enums.FineStatusDisputed
	if err := repo.Update(ctx, fine); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fine")
	}

	err = s.outbox.Emit(ctx, tx, fineEvent(enums.EventFineDisputed, fine, actorID, enums.ActorRoleWriter, map[string]any{
		"prior_status": enums.FineStatusIssued,
	}))
	if err != nil {
		return nil, err
	}
	return fine, nil
}

func (s *service) MarkEscalatedWithTx(ctx context.Context, tx *gorm.DB, fineID, actorID uuid.UUID) (*models.Fine, error) {
	repo := s.repo.WithTx(tx)
	fine, err := s.loadFine(ctx, repo, fineID)
	if err != nil {
		return nil, err
	}
	if fine.Status != enums.FineStatusDisputed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only disputed fines can be escalated").
			WithDetails(map[string]any{"status": fine.Status})
	}

	fine.Status = enums.FineStatusEscalated
	if err := repo.Update(ctx, fine); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fine")
	}
	return fine, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Fine, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine id required")
	}
	return s.loadFine(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pkgpagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	limit := pkgpagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.List(ctx, listQuery{
		orderID:   params.OrderID,
		websiteID: params.WebsiteID,
		status:    params.Status,
		code:      strings.TrimSpace(params.Code),
		limit:     limit + 1,
		cursor:    cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fines")
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

func (s *service) loadFine(ctx context.Context, repo Repository, id uuid.UUID) (*models.Fine, error) {
	fine, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fine not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fine")
	}
	return fine, nil
}

// fineEvent builds the audit payload every fine transition records.
func fineEvent(eventType enums.OutboxEventType, fine *models.Fine, actorID uuid.UUID, role enums.ActorRole, extra map[string]any) outbox.DomainEvent {
	data := map[string]any{
		"order_id":       fine.OrderID,
		"fine_type_code": fine.FineTypeCode,
		"amount":         fine.Amount,
		"currency":       fine.Currency,
		"status":         fine.Status,
	}
	for key, value := range extra {
		data[key] = value
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateFine,
		AggregateID:   fine.ID,
		Actor: &outbox.ActorRef{
			UserID:    actorID,
			WebsiteID: fine.WebsiteID,
			Role:      role.String(),
		},
		Data:    data,
		Version: 1,
	}
}

// waiveForAcceptedAppeal is used by the appeal workflow after the reviewer's
// authority has already been checked against the configured review roles.
func WaiveForAcceptedAppeal(fineID uuid.UUID, reviewerID uuid.UUID, role enums.ActorRole, reason string) WaiveInput {
	return WaiveInput{
		FineID:        fineID,
		Reason:        reason,
		ActorID:       reviewerID,
		ActorRole:     role,
		skipRoleCheck: true,
	}
}
