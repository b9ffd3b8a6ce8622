package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/aether-os/engine/internal/api/handlers"
	mw "github.com/aether-os/engine/internal/api/middleware"
)

type Dependencies struct {
	HMACSecret  []byte
	CORSOrigin  string
	RateLimiter *mw.RateLimiter
	// Metrics instruments every route and serves /metrics.
	Metrics interface {
		Middleware(http.Handler) http.Handler
		Handler() http.Handler
	}

	Health    *handlers.HealthHandler
	AI        *handlers.AIHandler
	GitHub    *handlers.GitHubHandler
	Deploy    *handlers.DeployHandler
	Projects  *handlers.ProjectsHandler
	Evolution *handlers.EvolutionHandler
	Billing   *handlers.BillingHandler
	Preview   *handlers.PreviewHandler
	Runs      *handlers.RunsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS(dep.CORSOrigin))
	if dep.Metrics != nil {
		r.Use(dep.Metrics.Middleware)
	}

	r.Get("/healthz", dep.Health.Liveness)
	r.Get("/readyz", dep.Health.Readiness)
	if dep.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", dep.Metrics.Handler())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	r.Route("/api/v1", func(api chi.Router) {
		if dep.RateLimiter != nil {
			api.Use(dep.RateLimiter.Handler)
		}
		api.Use(chimid.Compress(5, "application/json"))

		api.Route("/ai", func(ar chi.Router) {
			ar.Post("/plan", dep.AI.Plan)
			ar.Post("/architect", dep.AI.Architect)
			ar.Post("/codegen", dep.AI.Codegen)
		})
		api.Post("/autobuild/plan", dep.AI.AutobuildPlan)

		api.Route("/github", func(gr chi.Router) {
			gr.Post("/create", dep.GitHub.Create)
			gr.Post("/push", dep.GitHub.Push)
			gr.Post("/metadata", dep.GitHub.Metadata)
		})

		api.Route("/deploy", func(dr chi.Router) {
			dr.Post("/create", dep.Deploy.Create)
			dr.Post("/publish", dep.Deploy.Publish)
			dr.Post("/alias", dep.Deploy.Alias)
			dr.Post("/link", dep.Deploy.Link)
		})

		api.Route("/billing", func(br chi.Router) {
			br.Post("/checkout", dep.Billing.Checkout)
			br.Get("/verify", dep.Billing.Verify)
			br.Post("/apply", dep.Billing.Apply)
		})
		api.Get("/setup/billing", dep.Billing.Setup)
		api.Post("/webhooks/payment", dep.Billing.TransferWebhook)
		api.Post("/webhook/payment", dep.Billing.LegacyWebhook)

		// The proxy streams HTML, so it stays outside the compressor's
		// JSON-only content types.
		api.Route("/preview", func(pr chi.Router) {
			pr.Get("/check", dep.Preview.Check)
			pr.Get("/proxy", dep.Preview.Proxy)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			protected.Get("/projects", dep.Projects.List)

			protected.Route("/evolution", func(er chi.Router) {
				er.Post("/apply", dep.Evolution.Apply)
				er.Get("/history", dep.Evolution.History)
				er.Post("/rollback", dep.Evolution.Rollback)
				er.Get("/stats", dep.Evolution.Stats)
			})

			protected.Route("/runs", func(rr chi.Router) {
				rr.Post("/", dep.Runs.Start)
				rr.Get("/", dep.Runs.List)
				rr.Get("/{id}", dep.Runs.Get)
				rr.Post("/{id}/abort", dep.Runs.Abort)
				rr.Post("/{id}/resume", dep.Runs.Resume)
				rr.Put("/{id}/workspace", dep.Runs.UpdateWorkspace)
				rr.Delete("/{id}/log", dep.Runs.ResetLog)
			})
		})
	})

	return r
}
