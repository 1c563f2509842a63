package appeals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quillmarket/fines-backend/internal/fines"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/outbox"
)

type stubAppealsRepo struct {
	appeals map[uuid.UUID]*models.FineAppeal
	order   *models.Order
	events  []models.AppealEvent
}

func newStubAppealsRepo(order *models.Order) *stubAppealsRepo {
	return &stubAppealsRepo{appeals: make(map[uuid.UUID]*models.FineAppeal), order: order}
}

func (s *stubAppealsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAppealsRepo) Create(ctx context.Context, appeal *models.FineAppeal) error {
	if appeal.ID == uuid.Nil {
		appeal.ID = uuid.New()
	}
	copied := *appeal
	s.appeals[appeal.ID] = &copied
	return nil
}

func (s *stubAppealsRepo) Update(ctx context.Context, appeal *models.FineAppeal) error {
	copied := *appeal
	s.appeals[appeal.ID] = &copied
	return nil
}

func (s *stubAppealsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.FineAppeal, error) {
	appeal, ok := s.appeals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *appeal
	return &copied, nil
}

func (s *stubAppealsRepo) FindByFineID(ctx context.Context, fineID uuid.UUID) (*models.FineAppeal, error) {
	for _, appeal := range s.appeals {
		if appeal.FineID == fineID {
			copied := *appeal
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAppealsRepo) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubAppealsRepo) AddEvent(ctx context.Context, event *models.AppealEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *stubAppealsRepo) ListEvents(ctx context.Context, appealID uuid.UUID) ([]models.AppealEvent, error) {
	var out []models.AppealEvent
	for _, event := range s.events {
		if event.AppealID == appealID {
			out = append(out, event)
		}
	}
	return out, nil
}

// stubLifecycle mimics the fine state machine's transition guards.
type stubLifecycle struct {
	fine     *models.Fine
	waived   bool
	resolved bool
}

func (s *stubLifecycle) MarkDisputedWithTx(ctx context.Context, tx *gorm.DB, fineID, actorID uuid.UUID) (*models.Fine, error) {
	if s.fine == nil || s.fine.ID != fineID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fine not found")
	}
	if s.fine.Status != enums.FineStatusIssued {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only issued fines can be disputed")
	}
	s.fine.Status = enums.FineStatusDisputed
	return s.fine, nil
}

func (s *stubLifecycle) MarkEscalatedWithTx(ctx context.Context, tx *gorm.DB, fineID, actorID uuid.UUID) (*models.Fine, error) {
	if s.fine == nil || s.fine.ID != fineID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fine not found")
	}
	if s.fine.Status != enums.FineStatusDisputed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only disputed fines can be escalated")
	}
	s.fine.Status = enums.FineStatusEscalated
	return s.fine, nil
}

func (s *stubLifecycle) WaiveWithTx(ctx context.Context, tx *gorm.DB, input fines.WaiveInput) (*models.Fine, error) {
	if !s.fine.Status.IsWaivable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fine cannot be waived")
	}
	s.fine.Status = enums.FineStatusWaived
	s.waived = true
	return s.fine, nil
}

func (s *stubLifecycle) ResolveWithTx(ctx context.Context, tx *gorm.DB, input fines.ResolveInput) (*models.Fine, error) {
	if !s.fine.Status.IsDisputable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fine is not under dispute")
	}
	s.fine.Status = enums.FineStatusResolved
	s.resolved = true
	return s.fine, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	svc       Service
	repo      *stubAppealsRepo
	lifecycle *stubLifecycle
	outbox    *stubOutboxPublisher
	writerID  uuid.UUID
	fine      *models.Fine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	writerID := uuid.New()
	order := &models.Order{
		ID:                 uuid.New(),
		WriterID:           &writerID,
		OrderNumber:        8001,
		Currency:           enums.CurrencyUSD,
		TotalPrice:         decimal.NewFromInt(400),
		WriterCompensation: decimal.NewFromInt(200),
		Deadline:           time.Now().Add(-time.Hour),
	}
	fine := &models.Fine{
		ID:           uuid.New(),
		OrderID:      order.ID,
		FineTypeCode: enums.FineTypeLateSubmission,
		Amount:       decimal.NewFromInt(30),
		Currency:     enums.CurrencyUSD,
		Status:       enums.FineStatusIssued,
	}
	repo := newStubAppealsRepo(order)
	lifecycle := &stubLifecycle{fine: fine}
	events := &stubOutboxPublisher{}
	roles := enums.NewRoleSet(enums.ActorRoleSupport, enums.ActorRoleAdmin, enums.ActorRoleSuperadmin)
	svc, err := NewService(repo, stubTxRunner{}, events, lifecycle, roles)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return &fixture{svc: svc, repo: repo, lifecycle: lifecycle, outbox: events, writerID: writerID, fine: fine}
}

func (f *fixture) submit(t *testing.T) *models.FineAppeal {
	t.Helper()
	appeal, err := f.svc.Submit(context.Background(), SubmitInput{
		FineID:    f.fine.ID,
		Reason:    "the delay was caused by a revised brief",
		ActorID:   f.writerID,
		ActorRole: enums.ActorRoleWriter,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return appeal
}

func TestSubmitDisputesFine(t *testing.T) {
	f := newFixture(t)

	appeal := f.submit(t)
	if appeal.AppealedBy != f.writerID {
		t.Fatal("appeal must record the submitting writer")
	}
	if f.fine.Status != enums.FineStatusDisputed {
		t.Fatalf("expected fine disputed, got %s", f.fine.Status)
	}
	events, _ := f.repo.ListEvents(context.Background(), appeal.ID)
	if len(events) != 1 || events[0].Type != enums.AppealEventTypeStatusChange {
		t.Fatalf("expected a submission timeline event, got %+v", events)
	}
}

func TestSubmitByNonWriterForbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		FineID:    f.fine.ID,
		Reason:    "not my order",
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleWriter,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSubmitSecondAppealConflicts(t *testing.T) {
	f := newFixture(t)
	f.submit(t)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		FineID:    f.fine.ID,
		Reason:    "second try",
		ActorID:   f.writerID,
		ActorRole: enums.ActorRoleWriter,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSubmitRequiresIssuedFine(t *testing.T) {
	f := newFixture(t)
	f.fine.Status = enums.FineStatusWaived

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		FineID:    f.fine.ID,
		Reason:    "too late",
		ActorID:   f.writerID,
		ActorRole: enums.ActorRoleWriter,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestReviewAcceptWaivesFine(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)

	reviewed, err := f.svc.Review(context.Background(), ReviewInput{
		AppealID:  appeal.ID,
		Accept:    true,
		Notes:     "brief was indeed revised mid-order",
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleSupport,
	})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if !f.lifecycle.waived {
		t.Fatal("accepted appeal must waive the fine")
	}
	if reviewed.Accepted == nil || !*reviewed.Accepted || reviewed.ReviewedAt == nil {
		t.Fatalf("appeal not marked reviewed: %+v", reviewed)
	}
	last := f.outbox.events[len(f.outbox.events)-1]
	if last.EventType != enums.EventAppealReviewed {
		t.Fatalf("expected reviewed event, got %s", last.EventType)
	}
}

func TestReviewRejectResolvesFine(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)

	reviewed, err := f.svc.Review(context.Background(), ReviewInput{
		AppealID:  appeal.ID,
		Accept:    false,
		Notes:     "deadline was unambiguous",
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleAdmin,
	})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if !f.lifecycle.resolved {
		t.Fatal("rejected appeal must resolve the fine")
	}
	if reviewed.Accepted == nil || *reviewed.Accepted {
		t.Fatal("appeal must record the rejection")
	}
	if f.fine.Status != enums.FineStatusResolved {
		t.Fatalf("expected resolved fine, got %s", f.fine.Status)
	}
}

func TestReviewLockAfterDecision(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)
	ctx := context.Background()

	input := ReviewInput{AppealID: appeal.ID, Accept: false, ActorID: uuid.New(), ActorRole: enums.ActorRoleAdmin}
	if _, err := f.svc.Review(ctx, input); err != nil {
		t.Fatalf("first review failed: %v", err)
	}
	input.Accept = true
	_, err := f.svc.Review(ctx, input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected review lock, got %v", err)
	}
	if f.lifecycle.waived {
		t.Fatal("locked review must not waive the fine")
	}
}

func TestReviewRoleOutsideConfiguredSet(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)

	_, err := f.svc.Review(context.Background(), ReviewInput{
		AppealID:  appeal.ID,
		Accept:    true,
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleEditor,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestEscalateMovesFineAndAppeal(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)
	target := uuid.New()

	escalated, err := f.svc.Escalate(context.Background(), EscalateInput{
		AppealID:   appeal.ID,
		TargetID:   target,
		TargetRole: enums.ActorRoleAdmin,
		ActorID:    uuid.New(),
		ActorRole:  enums.ActorRoleSupport,
	})
	if err != nil {
		t.Fatalf("escalate failed: %v", err)
	}
	if !escalated.Escalated || escalated.EscalatedTo == nil || *escalated.EscalatedTo != target {
		t.Fatalf("appeal escalation not recorded: %+v", escalated)
	}
	if f.fine.Status != enums.FineStatusEscalated {
		t.Fatalf("expected escalated fine, got %s", f.fine.Status)
	}
}

func TestEscalateTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)
	ctx := context.Background()

	input := EscalateInput{
		AppealID:   appeal.ID,
		TargetID:   uuid.New(),
		TargetRole: enums.ActorRoleSuperadmin,
		ActorID:    uuid.New(),
		ActorRole:  enums.ActorRoleSupport,
	}
	if _, err := f.svc.Escalate(ctx, input); err != nil {
		t.Fatalf("first escalation failed: %v", err)
	}
	_, err := f.svc.Escalate(ctx, input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestEscalateTargetMustHoldElevatedRole(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)

	_, err := f.svc.Escalate(context.Background(), EscalateInput{
		AppealID:   appeal.ID,
		TargetID:   uuid.New(),
		TargetRole: enums.ActorRoleEditor,
		ActorID:    uuid.New(),
		ActorRole:  enums.ActorRoleSupport,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEscalatedAppealCanStillBeReviewed(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)
	ctx := context.Background()

	_, err := f.svc.Escalate(ctx, EscalateInput{
		AppealID:   appeal.ID,
		TargetID:   uuid.New(),
		TargetRole: enums.ActorRoleSuperadmin,
		ActorID:    uuid.New(),
		ActorRole:  enums.ActorRoleSupport,
	})
	if err != nil {
		t.Fatalf("escalate failed: %v", err)
	}

	if _, err := f.svc.Review(ctx, ReviewInput{
		AppealID:  appeal.ID,
		Accept:    true,
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleSuperadmin,
	}); err != nil {
		t.Fatalf("review of escalated appeal failed: %v", err)
	}
	if !f.lifecycle.waived {
		t.Fatal("accepted escalated appeal must waive the fine")
	}
}

func TestAddCommentAndTimeline(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)
	ctx := context.Background()

	_, err := f.svc.AddComment(ctx, CommentInput{
		AppealID: appeal.ID,
		Message:  "please attach the revised brief",
		ActorID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("comment failed: %v", err)
	}

	timeline, err := f.svc.Timeline(ctx, appeal.ID)
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("expected submission + comment events, got %d", len(timeline))
	}
	if timeline[1].Type != enums.AppealEventTypeComment {
		t.Fatalf("expected comment event, got %s", timeline[1].Type)
	}
}

func TestAddEvidenceRecordsFileRef(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)

	event, err := f.svc.AddEvidence(context.Background(), EvidenceInput{
		AppealID:    appeal.ID,
		FileRef:     "uploads/briefs/rev2.pdf",
		Description: "revised brief received after the original deadline",
		ActorID:     f.writerID,
	})
	if err != nil {
		t.Fatalf("evidence failed: %v", err)
	}
	if event.FileRef == nil || *event.FileRef != "uploads/briefs/rev2.pdf" {
		t.Fatalf("file ref not recorded: %+v", event)
	}
}

func TestAddEvidenceLockedAfterReview(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)
	ctx := context.Background()

	if _, err := f.svc.Review(ctx, ReviewInput{AppealID: appeal.ID, Accept: false, ActorID: uuid.New(), ActorRole: enums.ActorRoleAdmin}); err != nil {
		t.Fatalf("review failed: %v", err)
	}

	_, err := f.svc.AddEvidence(ctx, EvidenceInput{
		AppealID: appeal.ID,
		FileRef:  "uploads/late.pdf",
		ActorID:  f.writerID,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
