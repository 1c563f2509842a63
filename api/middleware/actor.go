package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillmarket/fines-backend/api/responses"
	"github.com/quillmarket/fines-backend/pkg/enums"
	pkgerrors "github.com/quillmarket/fines-backend/pkg/errors"
	"github.com/quillmarket/fines-backend/pkg/logger"
)

// The API runs behind the platform gateway, which authenticates the caller
// and forwards the verified identity in these headers.
const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"
	websiteIDHeader = "X-Website-Id"
)

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxActorRole contextKey = "actor_role"
	ctxWebsiteID contextKey = "website_id"
)

// Actor requires the gateway identity headers and injects them into the
// request context. Requests without a valid identity are rejected.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actorID, err := uuid.Parse(r.Header.Get(actorIDHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor identity"))
				return
			}
			role, err := enums.ParseActorRole(r.Header.Get(actorRoleHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor role"))
				return
			}

			ctx = context.WithValue(ctx, ctxActorID, actorID)
			ctx = context.WithValue(ctx, ctxActorRole, role)
			if logg != nil {
				ctx = logg.WithActorID(ctx, actorID.String())
				ctx = logg.WithActorRole(ctx, role.String())
			}

			if raw := r.Header.Get(websiteIDHeader); raw != "" {
				websiteID, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "website id header must be a uuid"))
					return
				}
				ctx = context.WithValue(ctx, ctxWebsiteID, websiteID)
				if logg != nil {
					ctx = logg.WithWebsiteID(ctx, websiteID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithActor injects an actor identity into the context directly, bypassing
// the header checks. Intended for handler tests.
func WithActor(ctx context.Context, actorID uuid.UUID, role enums.ActorRole) context.Context {
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return context.WithValue(ctx, ctxActorRole, role)
}

func ActorIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxActorID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func ActorRoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// WebsiteIDFromContext returns nil when the request carried no tenant scope.
func WebsiteIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxWebsiteID).(uuid.UUID); ok {
		return &v
	}
	return nil
}

// RequireRoles rejects requests whose actor role is not in the allow list.
func RequireRoles(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	allowed := enums.NewRoleSet(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed.Contains(ActorRoleFromContext(r.Context())) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
