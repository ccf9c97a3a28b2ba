package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alysis/alysis/internal/api/handlers"
	"github.com/alysis/alysis/internal/api/middleware"
	"github.com/alysis/alysis/internal/apikey"
	"github.com/alysis/alysis/internal/app"
	"github.com/alysis/alysis/internal/config"
	"github.com/alysis/alysis/internal/execution"
	"github.com/alysis/alysis/internal/llm"
	"github.com/alysis/alysis/internal/prompt"
	"github.com/alysis/alysis/internal/vendorkey"
)

type Router struct {
	mux *chi.Mux
	db  *pgxpool.Pool
	cfg *config.Config
}

func NewRouter(db *pgxpool.Pool, cfg *config.Config) *Router {
	return &Router{
		mux: chi.NewRouter(),
		db:  db,
		cfg: cfg,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	vendorKeys := vendorkey.NewService(rt.db, rt.cfg.LLM)
	registry := llm.NewRegistry(vendorKeys)
	appSvc := app.NewService(rt.db)
	promptSvc := prompt.NewService(rt.db)
	keySvc := apikey.NewService(rt.db)
	execSvc := execution.NewService(registry, appSvc, promptSvc, appSvc,
		execution.NewRecords(rt.db), rt.cfg.LLM.RequestTimeout)

	appH := handlers.NewAppHandler(appSvc, keySvc, execSvc)
	promptH := handlers.NewPromptHandler(appSvc, promptSvc, execSvc, rt.cfg.Auth)
	execH := handlers.NewExecuteHandler(execSvc, keySvc, rt.cfg.Auth)
	keyH := handlers.NewAPIKeyHandler(keySvc, appSvc)
	vendorH := handlers.NewVendorHandler(registry)
	vendorKeyH := handlers.NewVendorKeyHandler(vendorKeys)

	r.Route("/api/v1", func(r chi.Router) {
		// Execution surface
		r.Post("/analyze/{appID}", execH.Analyze)
		r.Post("/test-prompt", execH.TestPrompt)
		r.Get("/logs", execH.ListLogs)
		r.Get("/logs/{executionID}", execH.GetLog)
		r.Get("/stats", execH.Stats)

		// App management
		r.Route("/apps", func(r chi.Router) {
			r.Post("/", appH.Create)
			r.Get("/", appH.List)
			r.Get("/active", appH.ListActive)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", appH.Get)
				r.Put("/", appH.Update)
				r.Delete("/", appH.Delete)
				r.Post("/activate", appH.Activate)
				r.Post("/deprecate", appH.Deprecate)
				r.Get("/stats", appH.Stats)
				r.Get("/logs", appH.Logs)

				r.Route("/prompts", func(r chi.Router) {
					r.Post("/", promptH.Create)
					r.Get("/", promptH.List)
					r.Get("/latest", promptH.Latest)
					r.Get("/active", promptH.Active)
					r.Get("/by-number/{n}", promptH.GetByNumber)
					r.Get("/{promptID}", promptH.Get)
					r.Delete("/{promptID}", promptH.Delete)
					r.Post("/{promptID}/publish", promptH.Publish)
					r.Post("/{promptID}/test", promptH.Test)
				})

				r.Route("/api-keys", func(r chi.Router) {
					r.Get("/", keyH.ListForApp)
					r.Post("/", keyH.CreateForApp)
				})
			})
		})

		// Global API keys
		r.Route("/api-keys", func(r chi.Router) {
			r.Post("/", keyH.CreateGlobal)
			r.Delete("/{keyID}", keyH.Delete)
			r.Post("/{keyID}/regenerate", keyH.Regenerate)
		})

		// Vendor catalog and credentials
		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", vendorH.List)
			r.Get("/{name}", vendorH.Get)
			r.Get("/{name}/models", vendorH.Models)
			r.Get("/{name}/status", vendorH.Status)
		})
		r.Route("/vendor-keys", func(r chi.Router) {
			r.Get("/", vendorKeyH.List)
			r.Put("/{vendor}", vendorKeyH.Put)
			r.Delete("/{vendor}", vendorKeyH.Delete)
		})
	})

	return r
}
