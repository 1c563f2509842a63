package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/api/middleware"
	"github.com/quillmarket/fines-backend/api/responses"
	"github.com/quillmarket/fines-backend/api/validators"
	"github.com/quillmarket/fines-backend/internal/fines"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/logger"
	"github.com/quillmarket/fines-backend/pkg/pagination"
)

type fineIssueRequest struct {
	OrderID      string  `json:"order_id" validate:"required,uuid"`
	FineTypeCode string  `json:"fine_type_code" validate:"required"`
	Reason       string  `json:"reason" validate:"required"`
	CustomAmount *string `json:"custom_amount"`
	HoursLate    *string `json:"hours_late"`
}

func (r fineIssueRequest) toInput(actorID uuid.UUID, role enums.ActorRole) (fines.IssueInput, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(r.OrderID))
	if err != nil {
		return fines.IssueInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id")
	}

	input := fines.IssueInput{
		OrderID:      orderID,
		FineTypeCode: strings.TrimSpace(r.FineTypeCode),
		Reason:       strings.TrimSpace(r.Reason),
		ActorID:      actorID,
		ActorRole:    role,
	}

	if r.CustomAmount != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(*r.CustomAmount))
		if err != nil {
			return fines.IssueInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid custom_amount")
		}
		input.CustomAmount = &amount
	}
	if r.HoursLate != nil {
		hours, err := decimal.NewFromString(strings.TrimSpace(*r.HoursLate))
		if err != nil {
			return fines.IssueInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid hours_late")
		}
		input.HoursLate = &hours
	}

	return input, nil
}

// FineIssue handles imposing a fine on an order.
func FineIssue(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload fineIssueRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(middleware.ActorIDFromContext(r.Context()), middleware.ActorRoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fine, err := svc.Issue(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, fineResponseFromModel(fine))
	}
}

type fineReasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// FineWaive cancels a fine and restores the withheld compensation.
func FineWaive(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fineID, err := pathUUID(r, "fineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload fineReasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fine, err := svc.Waive(r.Context(), fines.WaiveInput{
			FineID:    fineID,
			Reason:    strings.TrimSpace(payload.Reason),
			ActorID:   middleware.ActorIDFromContext(r.Context()),
			ActorRole: middleware.ActorRoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, fineResponseFromModel(fine))
	}
}

// FineVoid annuls a fine without restoring compensation already withheld.
func FineVoid(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fineID, err := pathUUID(r, "fineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload fineReasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fine, err := svc.Void(r.Context(), fines.VoidInput{
			FineID:    fineID,
			Reason:    strings.TrimSpace(payload.Reason),
			ActorID:   middleware.ActorIDFromContext(r.Context()),
			ActorRole: middleware.ActorRoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, fineResponseFromModel(fine))
	}
}

// FineGet returns a single fine with its appeal, when one exists.
func FineGet(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fineID, err := pathUUID(r, "fineID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fine, err := svc.Get(r.Context(), fineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, fineResponseFromModel(fine))
	}
}

// FineList returns a cursor-paginated page of fines.
func FineList(svc fines.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseQueryUUID(r, "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		websiteID, err := validators.ParseQueryUUID(r, "website_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := fines.ListParams{
			OrderID:   orderID,
			WebsiteID: websiteID,
			Code:      strings.TrimSpace(r.URL.Query().Get("fine_type_code")),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseFineStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	value, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return value, nil
}

type fineResponse struct {
	ID             uuid.UUID        `json:"id"`
	OrderID        uuid.UUID        `json:"order_id"`
	WebsiteID      *uuid.UUID       `json:"website_id"`
	FineTypeCode   string           `json:"fine_type_code"`
	PolicyID       *uuid.UUID       `json:"policy_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       enums.Currency   `json:"currency"`
	Reason         string           `json:"reason"`
	Status         enums.FineStatus `json:"status"`
	IssuedBy       uuid.UUID        `json:"issued_by"`
	ImposedAt      time.Time        `json:"imposed_at"`
	Resolved       bool             `json:"resolved"`
	ResolvedAt     *time.Time       `json:"resolved_at"`
	ResolvedReason *string          `json:"resolved_reason"`
	WaivedBy       *uuid.UUID       `json:"waived_by"`
	WaivedAt       *time.Time       `json:"waived_at"`
	WaiverReason   *string          `json:"waiver_reason"`
	Appeal         *appealResponse  `json:"appeal,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func fineResponseFromModel(m *models.Fine) fineResponse {
	resp := fineResponse{
		ID:             m.ID,
		OrderID:        m.OrderID,
		WebsiteID:      m.WebsiteID,
		FineTypeCode:   m.FineTypeCode,
		PolicyID:       m.PolicyID,
		Amount:         m.Amount,
		Currency:       m.Currency,
		Reason:         m.Reason,
		Status:         m.Status,
		IssuedBy:       m.IssuedBy,
		ImposedAt:      m.ImposedAt,
		Resolved:       m.Resolved,
		ResolvedAt:     m.ResolvedAt,
		ResolvedReason: m.ResolvedReason,
		WaivedBy:       m.WaivedBy,
		WaivedAt:       m.WaivedAt,
		WaiverReason:   m.WaiverReason,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Appeal != nil {
		appeal := appealResponseFromModel(m.Appeal)
		resp.Appeal = &appeal
	}
	return resp
}
