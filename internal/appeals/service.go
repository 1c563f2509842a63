package appeals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/internal/fines"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// lifecycle is the slice of the fine state machine the appeal workflow drives.
type lifecycle interface {
	MarkDisputedWithTx(ctx context.Context, tx *gorm.DB, fineID, actorID uuid.UUID) (*models.Fine, error)
	MarkEscalatedWithTx(ctx context.Context, tx *gorm.DB, fineID, actorID uuid.UUID) (*models.Fine, error)
	WaiveWithTx(ctx context.Context, tx *gorm.DB, input fines.WaiveInput) (*models.Fine, error)
	ResolveWithTx(ctx context.Context, tx *gorm.DB, input fines.ResolveInput) (*models.Fine, error)
}

// Service runs the appeal workflow from submission through decision.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.FineAppeal, error)
	Review(ctx context.Context, input ReviewInput) (*models.FineAppeal, error)
	Escalate(ctx context.Context, input EscalateInput) (*models.FineAppeal, error)
	AddComment(ctx context.Context, input CommentInput) (*models.AppealEvent, error)
	AddEvidence(ctx context.Context, input EvidenceInput) (*models.AppealEvent, error)
	Get(ctx context.Context, id uuid.UUID) (*models.FineAppeal, error)
	Timeline(ctx context.Context, appealID uuid.UUID) ([]models.AppealEvent, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	fines       lifecycle
	reviewRoles enums.RoleSet
}

// SubmitInput opens an appeal against an issued fine.
type SubmitInput struct {
	FineID    uuid.UUID
	Reason    string
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// ReviewInput records the reviewer's decision. Accept waives the fine;
// reject resolves it with the penalty kept in force.
type ReviewInput struct {
	AppealID  uuid.UUID
	Accept    bool
	Notes     string
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// EscalateInput hands the appeal to a higher-authority reviewer.
type EscalateInput struct {
	AppealID   uuid.UUID
	TargetID   uuid.UUID
	TargetRole enums.ActorRole
	ActorID    uuid.UUID
	ActorRole  enums.ActorRole
}

// CommentInput appends a discussion entry to the appeal timeline.
type CommentInput struct {
	AppealID uuid.UUID
	Message  string
	ActorID  uuid.UUID
}

// EvidenceInput attaches supporting-file metadata to the appeal timeline.
// The blob itself lives in external storage; only the reference is kept.
type EvidenceInput struct {
	AppealID    uuid.UUID
	FileRef     string
	Description string
	ActorID     uuid.UUID
}

// NewService builds the appeal workflow service. reviewRoles is the
// deployment-configured set of roles allowed to decide appeals.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, fineLifecycle lifecycle, reviewRoles enums.RoleSet) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("appeals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if fineLifecycle == nil {
		return nil, fmt.Errorf("fine lifecycle required")
	}
	if len(reviewRoles) == 0 {
		return nil, fmt.Errorf("review role set required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      outboxSvc,
		fines:       fineLifecycle,
		reviewRoles: reviewRoles,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.FineAppeal, error) {
	if input.FineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fine id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var appeal *models.FineAppeal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindByFineID(ctx, input.FineID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "fine has already been appealed")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing appeal")
		}

		// MarkDisputed enforces that the fine exists and is still in the
		// issued state.
		fine, err := s.fines.MarkDisputedWithTx(ctx, tx, input.FineID, input.ActorID)
		if err != nil {
			return err
		}

		order, err := repo.FindOrderByID(ctx, fine.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.WriterID == nil || *order.WriterID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the order's writer may appeal the fine")
		}

		appeal = &models.FineAppeal{
			FineID:     fine.ID,
			Reason:     strings.TrimSpace(input.Reason),
			AppealedBy: input.ActorID,
		}
		if err := repo.Create(ctx, appeal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create appeal")
		}

		return repo.AddEvent(ctx, &models.AppealEvent{
			AppealID: appeal.ID,
			ActorID:  input.ActorID,
			Type:     enums.AppealEventTypeStatusChange,
			Message:  "appeal submitted",
		})
	})
	if err != nil {
		return nil, err
	}
	return appeal, nil
}

func (s *service) Review(ctx context.Context, input ReviewInput) (*models.FineAppeal, error) {
	if input.AppealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appeal id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !s.reviewRoles.Contains(input.ActorRole) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot review appeals")
	}

	var reviewed *models.FineAppeal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		appeal, err := s.loadAppeal(ctx, repo, input.AppealID)
		if err != nil {
			return err
		}
		if appeal.ReviewedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "appeal has already been reviewed")
		}

		notes := strings.TrimSpace(input.Notes)
		if input.Accept {
			_, err = s.fines.WaiveWithTx(ctx, tx, fines.WaiveForAcceptedAppeal(appeal.FineID, input.ActorID, input.ActorRole, reviewReason(notes, true)))
		} else {
			_, err = s.fines.ResolveWithTx(ctx, tx, fines.ResolveInput{
				FineID:  appeal.FineID,
				Reason:  reviewReason(notes, false),
				ActorID: input.ActorID,
			})
		}
		if err != nil {
			return err
		}

		now := time.Now()
		accepted := input.Accept
		appeal.ReviewedBy = &input.ActorID
		appeal.ReviewedAt = &now
		appeal.Accepted = &accepted
		if notes != "" {
			appeal.ResolutionNotes = &notes
		}
		if err := repo.Update(ctx, appeal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update appeal")
		}

		message := "appeal rejected"
		if accepted {
			message = "appeal accepted"
		}
		if err := repo.AddEvent(ctx, &models.AppealEvent{
			AppealID: appeal.ID,
			ActorID:  input.ActorID,
			Type:     enums.AppealEventTypeStatusChange,
			Message:  message,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record review event")
		}

		reviewed = appeal
		return s.outbox.Emit(ctx, tx, appealEvent(enums.EventAppealReviewed, appeal, input.ActorID, input.ActorRole, map[string]any{
			"accepted": accepted,
		}))
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}

func (s *service) Escalate(ctx context.Context, input EscalateInput) (*models.FineAppeal, error) {
	if input.AppealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appeal id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !s.reviewRoles.Contains(input.ActorRole) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot escalate appeals")
	}
	if input.TargetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escalation target required")
	}
	if !input.TargetRole.CanReceiveEscalations() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escalation target must hold an elevated role")
	}

	var escalated *models.FineAppeal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		appeal, err := s.loadAppeal(ctx, repo, input.AppealID)
		if err != nil {
			return err
		}
		if appeal.ReviewedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "appeal has already been reviewed")
		}
		if appeal.Escalated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "appeal has already been escalated")
		}

		if _, err := s.fines.MarkEscalatedWithTx(ctx, tx, appeal.FineID, input.ActorID); err != nil {
			return err
		}

		now := time.Now()
		appeal.Escalated = true
		appeal.EscalatedAt = &now
		appeal.EscalatedTo = &input.TargetID
		if err := repo.Update(ctx, appeal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update appeal")
		}

		if err := repo.AddEvent(ctx, &models.AppealEvent{
			AppealID: appeal.ID,
			ActorID:  input.ActorID,
			Type:     enums.AppealEventTypeStatusChange,
			Message:  "appeal escalated",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record escalation event")
		}

		escalated = appeal
		return s.outbox.Emit(ctx, tx, appealEvent(enums.EventAppealEscalated, appeal, input.ActorID, input.ActorRole, map[string]any{
			"escalated_to": input.TargetID,
			"target_role":  input.TargetRole,
		}))
	})
	if err != nil {
		return nil, err
	}
	return escalated, nil
}

func (s *service) AddComment(ctx context.Context, input CommentInput) (*models.AppealEvent, error) {
	if input.AppealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appeal id required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var event *models.AppealEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		appeal, err := s.loadAppeal(ctx, repo, input.AppealID)
		if err != nil {
			return err
		}

		event = &models.AppealEvent{
			AppealID: appeal.ID,
			ActorID:  input.ActorID,
			Type:     enums.AppealEventTypeComment,
			Message:  strings.TrimSpace(input.Message),
		}
		if err := repo.AddEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record comment")
		}
		return s.outbox.Emit(ctx, tx, appealEvent(enums.EventAppealCommentAdded, appeal, input.ActorID, "", nil))
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) AddEvidence(ctx context.Context, input EvidenceInput) (*models.AppealEvent, error) {
	if input.AppealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appeal id required")
	}
	if strings.TrimSpace(input.FileRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file reference is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var event *models.AppealEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		appeal, err := s.loadAppeal(ctx, repo, input.AppealID)
		if err != nil {
			return err
		}
		if appeal.ReviewedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "evidence cannot be added after review")
		}

		fileRef := strings.TrimSpace(input.FileRef)
		description := strings.TrimSpace(input.Description)
		event = &models.AppealEvent{
			AppealID: appeal.ID,
			ActorID:  input.ActorID,
			Type:     enums.AppealEventTypeEvidence,
			FileRef:  &fileRef,
		}
		if description != "" {
			event.Description = &description
		}
		if err := repo.AddEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record evidence")
		}
		return s.outbox.Emit(ctx, tx, appealEvent(enums.EventAppealEvidenceAdded, appeal, input.ActorID, "", map[string]any{
			"file_ref": fileRef,
		}))
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.FineAppeal, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appeal id required")
	}
	return s.loadAppeal(ctx, s.repo, id)
}

func (s *service) Timeline(ctx context.Context, appealID uuid.UUID) ([]models.AppealEvent, error) {
	if appealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appeal id required")
	}
	if _, err := s.loadAppeal(ctx, s.repo, appealID); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, appealID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list appeal events")
	}
	return events, nil
}

func (s *service) loadAppeal(ctx context.Context, repo Repository, id uuid.UUID) (*models.FineAppeal, error) {
	appeal, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appeal not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appeal")
	}
	return appeal, nil
}

func reviewReason(notes string, accepted bool) string {
	base := "appeal rejected"
	if accepted {
		base = "appeal accepted"
	}
	if notes == "" {
		return base
	}
	return base + ": " + notes
}

func appealEvent(eventType enums.OutboxEventType, appeal *models.FineAppeal, actorID uuid.UUID, role enums.ActorRole, extra map[string]any) outbox.DomainEvent {
	data := map[string]any{
		"fine_id":     appeal.FineID,
		"appealed_by": appeal.AppealedBy,
	}
	for key, value := range extra {
		data[key] = value
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateFineAppeal,
		AggregateID:   appeal.ID,
		Actor: &outbox.ActorRef{
			UserID: actorID,
			Role:   role.String(),
		},
		Data:    data,
		Version: 1,
	}
}
