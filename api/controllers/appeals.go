package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillmarket/fines-backend/api/middleware"
	"github.com/quillmarket/fines-backend/api/responses"
	"github.com/quillmarket/fines-backend/api/validators"
	"github.com/quillmarket/fines-backend/internal/appeals"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/logger"
)

type appealSubmitRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// AppealSubmit lets the fined writer challenge a fine. The fine moves to
// disputed and issuance of the appeal record happens in the same transaction.
func AppealSubmit(svc appeals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fineID, err := pathUUID(r, "fineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload appealSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appeal, err := svc.Submit(r.Context(), appeals.SubmitInput{
			FineID:    fineID,
			Reason:    strings.TrimSpace(payload.Reason),
			ActorID:   middleware.ActorIDFromContext(r.Context()),
			ActorRole: middleware.ActorRoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, appealResponseFromModel(appeal))
	}
}

type appealReviewRequest struct {
	Accept bool   `json:"accept"`
	Notes  string `json:"notes"`
}

// AppealReview records the reviewer's decision. Accepting waives the fine
// and restores compensation; rejecting resolves it with the penalty kept.
func AppealReview(svc appeals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appealID, err := pathUUID(r, "appealID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload appealReviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appeal, err := svc.Review(r.Context(), appeals.ReviewInput{
			AppealID:  appealID,
			Accept:    payload.Accept,
			Notes:     strings.TrimSpace(payload.Notes),
			ActorID:   middleware.ActorIDFromContext(r.Context()),
			ActorRole: middleware.ActorRoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, appealResponseFromModel(appeal))
	}
}

type appealEscalateRequest struct {
	TargetID   string `json:"target_id" validate:"required,uuid"`
	TargetRole string `json:"target_role" validate:"required"`
}

// AppealEscalate hands the appeal to a higher-authority reviewer.
func AppealEscalate(svc appeals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appealID, err := pathUUID(r, "appealID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload appealEscalateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		targetID, err := uuid.Parse(strings.TrimSpace(payload.TargetID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target_id"))
			return
		}
		targetRole, err := enums.ParseActorRole(strings.TrimSpace(payload.TargetRole))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid target_role"))
			return
		}

		appeal, err := svc.Escalate(r.Context(), appeals.EscalateInput{
			AppealID:   appealID,
			TargetID:   targetID,
			TargetRole: targetRole,
			ActorID:    middleware.ActorIDFromContext(r.Context()),
			ActorRole:  middleware.ActorRoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, appealResponseFromModel(appeal))
	}
}

type appealCommentRequest struct {
	Message string `json:"message" validate:"required"`
}

// AppealComment appends a discussion entry to the appeal timeline.
func AppealComment(svc appeals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appealID, err := pathUUID(r, "appealID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload appealCommentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.AddComment(r.Context(), appeals.CommentInput{
			AppealID: appealID,
			Message:  strings.TrimSpace(payload.Message),
			ActorID:  middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, appealEventResponseFromModel(*event))
	}
}

type appealEvidenceRequest struct {
	FileRef     string `json:"file_ref" validate:"required"`
	Description string `json:"description"`
}

// AppealEvidence attaches supporting-file metadata to the appeal timeline.
func AppealEvidence(svc appeals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appealID, err := pathUUID(r, "appealID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload appealEvidenceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.AddEvidence(r.Context(), appeals.EvidenceInput{
			AppealID:    appealID,
			FileRef:     strings.TrimSpace(payload.FileRef),
			Description: strings.TrimSpace(payload.Description),
			ActorID:     middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, appealEventResponseFromModel(*event))
	}
}

// AppealGet returns the appeal record.
func AppealGet(svc appeals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appealID, err := pathUUID(r, "appealID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appeal, err := svc.Get(r.Context(), appealID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, appealResponseFromModel(appeal))
	}
}

// AppealTimeline returns the appeal's ordered event history.
func AppealTimeline(svc appeals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appealID, err := pathUUID(r, "appealID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.Timeline(r.Context(), appealID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]appealEventResponse, 0, len(events))
		for _, event := range events {
			items = append(items, appealEventResponseFromModel(event))
		}
		responses.WriteSuccess(w, items)
	}
}

type appealResponse struct {
	ID              uuid.UUID  `json:"id"`
	FineID          uuid.UUID  `json:"fine_id"`
	Reason          string     `json:"reason"`
	AppealedBy      uuid.UUID  `json:"appealed_by"`
	ReviewedBy      *uuid.UUID `json:"reviewed_by"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	Accepted        *bool      `json:"accepted"`
	ResolutionNotes *string    `json:"resolution_notes"`
	Escalated       bool       `json:"escalated"`
	EscalatedAt     *time.Time `json:"escalated_at"`
	EscalatedTo     *uuid.UUID `json:"escalated_to"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func appealResponseFromModel(m *models.FineAppeal) appealResponse {
	return appealResponse{
		ID:              m.ID,
		FineID:          m.FineID,
		Reason:          m.Reason,
		AppealedBy:      m.AppealedBy,
		ReviewedBy:      m.ReviewedBy,
		ReviewedAt:      m.ReviewedAt,
		Accepted:        m.Accepted,
		ResolutionNotes: m.ResolutionNotes,
		Escalated:       m.Escalated,
		EscalatedAt:     m.EscalatedAt,
		EscalatedTo:     m.EscalatedTo,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type appealEventResponse struct {
	ID          uuid.UUID             `json:"id"`
	AppealID    uuid.UUID             `json:"appeal_id"`
	ActorID     uuid.UUID             `json:"actor_id"`
	Type        enums.AppealEventType `json:"type"`
	Message     string                `json:"message"`
	Metadata    json.RawMessage       `json:"metadata,omitempty"`
	FileRef     *string               `json:"file_ref,omitempty"`
	Description *string               `json:"description,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

func appealEventResponseFromModel(m models.AppealEvent) appealEventResponse {
	return appealEventResponse{
		ID:          m.ID,
		AppealID:    m.AppealID,
		ActorID:     m.ActorID,
		Type:        m.Type,
		Message:     m.Message,
		Metadata:    m.Metadata,
		FileRef:     m.FileRef,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}
