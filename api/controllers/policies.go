package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quillmarket/fines-backend/api/middleware"
	"github.com/quillmarket/fines-backend/api/responses"
	"github.com/quillmarket/fines-backend/api/validators"
	"github.com/quillmarket/fines-backend/internal/policies"
	"github.com/quillmarket/fines-backend/pkg/db/models"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/logger"
	"github.com/quillmarket/fines-backend/pkg/pagination"
)

type latenessRuleRequest struct {
	HourOnePercent        string  `json:"hour_one_percent" validate:"required"`
	HourTwoPercent        string  `json:"hour_two_percent" validate:"required"`
	HourThreePercent      string  `json:"hour_three_percent" validate:"required"`
	SubsequentHourPercent string  `json:"subsequent_hour_percent" validate:"required"`
	DailyPercent          string  `json:"daily_percent" validate:"required"`
	CalculationMode       string  `json:"calculation_mode" validate:"required,oneof=cumulative progressive"`
	MaxFinePercent        *string `json:"max_fine_percent"`
}

func (r latenessRuleRequest) toInput() (*policies.LatenessRuleInput, error) {
	mode, err := enums.ParseLatenessMode(strings.TrimSpace(r.CalculationMode))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid calculation_mode")
	}

	input := policies.LatenessRuleInput{CalculationMode: mode}
	fields := []struct {
		raw  string
		name string
		dest *decimal.Decimal
	}{
		{r.HourOnePercent, "hour_one_percent", &input.HourOnePercent},
		{r.HourTwoPercent, "hour_two_percent", &input.HourTwoPercent},
		{r.HourThreePercent, "hour_three_percent", &input.HourThreePercent},
		{r.SubsequentHourPercent, "subsequent_hour_percent", &input.SubsequentHourPercent},
		{r.DailyPercent, "daily_percent", &input.DailyPercent},
	}
	for _, field := range fields {
		value, err := decimal.NewFromString(strings.TrimSpace(field.raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field.name)
		}
		*field.dest = value
	}
	if r.MaxFinePercent != nil {
		value, err := decimal.NewFromString(strings.TrimSpace(*r.MaxFinePercent))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid max_fine_percent")
		}
		input.MaxFinePercent = &value
	}
	return &input, nil
}

type policyCreateRequest struct {
	Code            string               `json:"code" validate:"required"`
	WebsiteID       *string              `json:"website_id"`
	CalculationKind string               `json:"calculation_kind" validate:"required"`
	FixedAmount     *string              `json:"fixed_amount"`
	Percentage      *string              `json:"percentage"`
	BaseAmountKind  *string              `json:"base_amount_kind"`
	MinAmount       *string              `json:"min_amount"`
	MaxAmount       *string              `json:"max_amount"`
	StartDate       time.Time            `json:"start_date" validate:"required"`
	EndDate         *time.Time           `json:"end_date"`
	LatenessRule    *latenessRuleRequest `json:"lateness_rule"`
}

func (r policyCreateRequest) toInput(actorID uuid.UUID, role enums.ActorRole) (policies.CreateConfigInput, error) {
	kind, err := enums.ParseCalculationKind(strings.TrimSpace(r.CalculationKind))
	if err != nil {
		return policies.CreateConfigInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid calculation_kind")
	}

	input := policies.CreateConfigInput{
		Code:            strings.TrimSpace(r.Code),
		CalculationKind: kind,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		ActorID:         actorID,
		ActorRole:       role,
	}

	if r.WebsiteID != nil {
		websiteID, err := uuid.Parse(strings.TrimSpace(*r.WebsiteID))
		if err != nil {
			return policies.CreateConfigInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid website_id")
		}
		input.WebsiteID = &websiteID
	}
	if r.BaseAmountKind != nil {
		baseKind, err := enums.ParseBaseAmountKind(strings.TrimSpace(*r.BaseAmountKind))
		if err != nil {
			return policies.CreateConfigInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid base_amount_kind")
		}
		input.BaseAmountKind = &baseKind
	}

	if input.FixedAmount, err = parseOptionalDecimal(r.FixedAmount, "fixed_amount"); err != nil {
		return policies.CreateConfigInput{}, err
	}
	if input.Percentage, err = parseOptionalDecimal(r.Percentage, "percentage"); err != nil {
		return policies.CreateConfigInput{}, err
	}
	if input.MinAmount, err = parseOptionalDecimal(r.MinAmount, "min_amount"); err != nil {
		return policies.CreateConfigInput{}, err
	}
	if input.MaxAmount, err = parseOptionalDecimal(r.MaxAmount, "max_amount"); err != nil {
		return policies.CreateConfigInput{}, err
	}

	if r.LatenessRule != nil {
		rule, err := r.LatenessRule.toInput()
		if err != nil {
			return policies.CreateConfigInput{}, err
		}
		input.LatenessRule = rule
	}

	return input, nil
}

func parseOptionalDecimal(raw *string, name string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return &value, nil
}

// PolicyCreate defines a new fine type configuration.
func PolicyCreate(svc policies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload policyCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(middleware.ActorIDFromContext(r.Context()), middleware.ActorRoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cfg, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, policyResponseFromModel(cfg))
	}
}

type policyUpdateRequest struct {
	CalculationKind *string              `json:"calculation_kind"`
	FixedAmount     *string              `json:"fixed_amount"`
	Percentage      *string              `json:"percentage"`
	BaseAmountKind  *string              `json:"base_amount_kind"`
	MinAmount       *string              `json:"min_amount"`
	MaxAmount       *string              `json:"max_amount"`
	EndDate         *time.Time           `json:"end_date"`
	LatenessRule    *latenessRuleRequest `json:"lateness_rule"`
}

// PolicyUpdate amends an existing configuration.
func PolicyUpdate(svc policies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configID, err := pathUUID(r, "configID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload policyUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := policies.UpdateConfigInput{
			ConfigID:  configID,
			EndDate:   payload.EndDate,
			ActorID:   middleware.ActorIDFromContext(r.Context()),
			ActorRole: middleware.ActorRoleFromContext(r.Context()),
		}

		if payload.CalculationKind != nil {
			kind, err := enums.ParseCalculationKind(strings.TrimSpace(*payload.CalculationKind))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid calculation_kind"))
				return
			}
			input.CalculationKind = &kind
		}
		if payload.BaseAmountKind != nil {
			baseKind, err := enums.ParseBaseAmountKind(strings.TrimSpace(*payload.BaseAmountKind))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid base_amount_kind"))
				return
			}
			input.BaseAmountKind = &baseKind
		}

		if input.FixedAmount, err = parseOptionalDecimal(payload.FixedAmount, "fixed_amount"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Percentage, err = parseOptionalDecimal(payload.Percentage, "percentage"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.MinAmount, err = parseOptionalDecimal(payload.MinAmount, "min_amount"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.MaxAmount, err = parseOptionalDecimal(payload.MaxAmount, "max_amount"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if payload.LatenessRule != nil {
			rule, err := payload.LatenessRule.toInput()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.LatenessRule = rule
		}

		cfg, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, policyResponseFromModel(cfg))
	}
}

// PolicyDeactivate soft-disables a configuration.
func PolicyDeactivate(svc policies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configID, err := pathUUID(r, "configID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), policies.DeactivateConfigInput{
			ConfigID:  configID,
			ActorID:   middleware.ActorIDFromContext(r.Context()),
			ActorRole: middleware.ActorRoleFromContext(r.Context()),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// PolicyGet returns a single configuration with its lateness rule.
func PolicyGet(svc policies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configID, err := pathUUID(r, "configID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cfg, err := svc.Get(r.Context(), configID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, policyResponseFromModel(cfg))
	}
}

// PolicyList returns a cursor-paginated page of configurations.
func PolicyList(svc policies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		websiteID, err := validators.ParseQueryUUID(r, "website_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), policies.ListParams{
			Code:       strings.TrimSpace(r.URL.Query().Get("code")),
			WebsiteID:  websiteID,
			ActiveOnly: strings.EqualFold(r.URL.Query().Get("active"), "true"),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type latenessRuleResponse struct {
	HourOnePercent        decimal.Decimal    `json:"hour_one_percent"`
	HourTwoPercent        decimal.Decimal    `json:"hour_two_percent"`
	HourThreePercent      decimal.Decimal    `json:"hour_three_percent"`
	SubsequentHourPercent decimal.Decimal    `json:"subsequent_hour_percent"`
	DailyPercent          decimal.Decimal    `json:"daily_percent"`
	CalculationMode       enums.LatenessMode `json:"calculation_mode"`
	MaxFinePercent        *decimal.Decimal   `json:"max_fine_percent"`
}

type policyResponse struct {
	ID              uuid.UUID             `json:"id"`
	Code            string                `json:"code"`
	WebsiteID       *uuid.UUID            `json:"website_id"`
	CalculationKind enums.CalculationKind `json:"calculation_kind"`
	FixedAmount     *decimal.Decimal      `json:"fixed_amount"`
	Percentage      *decimal.Decimal      `json:"percentage"`
	BaseAmountKind  *enums.BaseAmountKind `json:"base_amount_kind"`
	MinAmount       *decimal.Decimal      `json:"min_amount"`
	MaxAmount       *decimal.Decimal      `json:"max_amount"`
	Active          bool                  `json:"active"`
	StartDate       time.Time             `json:"start_date"`
	EndDate         *time.Time            `json:"end_date"`
	System          bool                  `json:"system"`
	LatenessRule    *latenessRuleResponse `json:"lateness_rule,omitempty"`
	CreatedBy       uuid.UUID             `json:"created_by"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func policyResponseFromModel(m *models.FineTypeConfig) policyResponse {
	resp := policyResponse{
		ID:              m.ID,
		Code:            m.Code,
		WebsiteID:       m.WebsiteID,
		CalculationKind: m.CalculationKind,
		FixedAmount:     m.FixedAmount,
		Percentage:      m.Percentage,
		BaseAmountKind:  m.BaseAmountKind,
		MinAmount:       m.MinAmount,
		MaxAmount:       m.MaxAmount,
		Active:          m.Active,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		System:          m.System,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.LatenessRule != nil {
		resp.LatenessRule = &latenessRuleResponse{
			HourOnePercent:        m.LatenessRule.HourOnePercent,
			HourTwoPercent:        m.LatenessRule.HourTwoPercent,
			HourThreePercent:      m.LatenessRule.HourThreePercent,
			SubsequentHourPercent: m.LatenessRule.SubsequentHourPercent,
			DailyPercent:          m.LatenessRule.DailyPercent,
			CalculationMode:       m.LatenessRule.CalculationMode,
			MaxFinePercent:        m.LatenessRule.MaxFinePercent,
		}
	}
	return resp
}
