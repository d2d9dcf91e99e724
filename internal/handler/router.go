package handler

import (
	"net/http"
	"time"

	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/infra/syncstore"
	"github.com/fintrack/vault-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router needs. The sync field may be nil
// when the app runs without a remote store (tests, local-only mode).
type Services struct {
	Auth    *service.AuthService
	Vault   *service.VaultService
	Summary *service.SummaryService
	Planner *service.PlannerService
	Advisor *service.AdvisorService
	Admin   *service.AdminService
	Sync    *syncstore.Sync
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(svcs.Sync))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Auth (public)
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(svcs.Auth, logger))
			r.Post("/login", authLoginHandler(svcs.Auth, logger))
			r.Post("/refresh", authRefreshHandler(svcs.Auth, logger))

			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(svcs.Auth, logger))
				r.Post("/logout", authLogoutHandler(svcs.Auth, logger))
			})
		})

		// =============================================
		// Protected user-scoped routes
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			r.Patch("/users/{userId}", updateProfileHandler(svcs.Auth, logger))

			// Ledger views
			r.Get("/users/{userId}/summary", summaryHandler(svcs.Summary, logger))
			r.Get("/users/{userId}/spending", topSpendingHandler(svcs.Summary, logger))
			r.Get("/users/{userId}/trends", trendsHandler(svcs.Summary, logger))

			// Transactions
			r.Get("/users/{userId}/transactions", listTransactionsHandler(svcs.Vault, logger))
			r.Post("/users/{userId}/transactions", createTransactionHandler(svcs.Vault, logger))
			r.Patch("/transactions/{txId}", updateTransactionHandler(svcs.Vault, logger))
			r.Delete("/transactions/{txId}", deleteTransactionHandler(svcs.Vault, logger))
			r.Post("/transactions/{txId}/resolve", resolveTransactionHandler(svcs.Vault, logger))

			// Goals
			r.Get("/users/{userId}/goals", goalStatusesHandler(svcs.Summary, logger))
			r.Post("/users/{userId}/goals", createGoalHandler(svcs.Planner, logger))
			r.Delete("/users/{userId}/goals/{goalId}", deleteGoalHandler(svcs.Planner, logger))

			// Budgets
			r.Get("/users/{userId}/budgets", listBudgetsHandler(svcs.Planner, logger))
			r.Put("/users/{userId}/budgets", setBudgetHandler(svcs.Planner, logger))
			r.Delete("/users/{userId}/budgets/{budgetId}", deleteBudgetHandler(svcs.Planner, logger))
			r.Get("/users/{userId}/budgets/report", budgetReportHandler(svcs.Summary, logger))

			// Labels
			r.Get("/users/{userId}/labels", listLabelsHandler(svcs.Planner, logger))
			r.Post("/users/{userId}/labels", createLabelHandler(svcs.Planner, logger))
			r.Delete("/users/{userId}/labels/{labelId}", deleteLabelHandler(svcs.Planner, logger))

			// Advisor
			r.Get("/users/{userId}/advice", adviceHandler(svcs.Advisor, logger))
			r.Post("/users/{userId}/chat", chatHandler(svcs.Advisor, logger))

			// Global views
			r.Get("/leaderboard", leaderboardHandler(svcs.Summary, logger))
			r.Get("/sync/status", syncStatusHandler(svcs.Sync, logger))
		})

		// =============================================
		// Admin (token must carry the admin flag)
		// =============================================
		r.Route("/admin", func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))
			r.Use(AdminOnlyMiddleware(logger))

			r.Get("/users", adminListUsersHandler(svcs.Admin, logger))
			r.Delete("/users/{userId}", adminPurgeUserHandler(svcs.Admin, logger))
			r.Post("/users/{userId}/rewards/reset", adminResetRewardsHandler(svcs.Admin, logger))
			r.Get("/transactions", adminListTransactionsHandler(svcs.Admin, logger))
		})
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readyzHandler probes the remote store on demand. The API keeps serving
// from the local mirror while offline, so a degraded remote is still
// reported as ready.
func readyzHandler(sync *syncstore.Sync) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sync == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "remote": "disabled"})
			return
		}

		sync.ProbeNow(r.Context())
		st := sync.Status()

		remote := "online"
		if !st.Online {
			remote = "offline"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ready",
			"remote":      remote,
			"pending_ops": st.PendingOps,
		})
	}
}

func syncStatusHandler(sync *syncstore.Sync, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sync == nil {
			writeError(w, http.StatusServiceUnavailable, "sync status unavailable: remote store not configured")
			return
		}
		writeJSON(w, http.StatusOK, sync.Status())
	}
}
