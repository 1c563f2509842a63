package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillmarket/fines-backend/api/controllers"
	"github.com/quillmarket/fines-backend/api/middleware"
	"github.com/quillmarket/fines-backend/internal/appeals"
	"github.com/quillmarket/fines-backend/internal/fines"
	"github.com/quillmarket/fines-backend/internal/policies"
	"github.com/quillmarket/fines-backend/pkg/config"
	"github.com/quillmarket/fines-backend/pkg/enums"
	"github.com/quillmarket/fines-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP pinger,
	redisP pinger,
	finesService fines.Service,
	appealsService appeals.Service,
	policiesService policies.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))

		r.Route("/fines", func(r chi.Router) {
			r.Get("/", controllers.FineList(finesService, logg))
			r.Post("/", controllers.FineIssue(finesService, logg))
			r.Route("/{fineID}", func(r chi.Router) {
				r.Get("/", controllers.FineGet(finesService, logg))
				r.Post("/waive", controllers.FineWaive(finesService, logg))
				r.Post("/void", controllers.FineVoid(finesService, logg))
				r.Post("/appeal", controllers.AppealSubmit(appealsService, logg))
			})
		})

		r.Route("/appeals/{appealID}", func(r chi.Router) {
			r.Get("/", controllers.AppealGet(appealsService, logg))
			r.Get("/timeline", controllers.AppealTimeline(appealsService, logg))
			r.Post("/review", controllers.AppealReview(appealsService, logg))
			r.Post("/escalate", controllers.AppealEscalate(appealsService, logg))
			r.Post("/comments", controllers.AppealComment(appealsService, logg))
			r.Post("/evidence", controllers.AppealEvidence(appealsService, logg))
		})
	})

	r.Route("/api/admin/v1/fine-type-configs", func(r chi.Router) {
		r.Use(
			middleware.Actor(logg),
			middleware.RequireRoles(logg, enums.ActorRoleAdmin, enums.ActorRoleSuperadmin),
		)

		r.Get("/", controllers.PolicyList(policiesService, logg))
		r.Post("/", controllers.PolicyCreate(policiesService, logg))
		r.Route("/{configID}", func(r chi.Router) {
			r.Get("/", controllers.PolicyGet(policiesService, logg))
			r.Patch("/", controllers.PolicyUpdate(policiesService, logg))
			r.Delete("/", controllers.PolicyDeactivate(policiesService, logg))
		})
	})

	return r
}
