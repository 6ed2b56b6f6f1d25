package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"glassbank/internal/assessment"
	"glassbank/internal/audit"
	"glassbank/internal/chat"
	"glassbank/internal/consent"
	"glassbank/internal/insights"
	"glassbank/internal/perception"
	"glassbank/internal/platform/metrics"
	"glassbank/internal/platform/middleware"
	"glassbank/internal/savings"
	"glassbank/internal/transactions"
)

// Services bundles every domain service the router exposes.
type Services struct {
	Consent      *consent.Service
	Audit        *audit.Service
	Assessment   *assessment.Service
	Chat         *chat.Service
	Insights     *insights.Service
	Perception   *perception.Service
	Savings      *savings.Service
	Recommender  *savings.Recommender
	Transactions *transactions.Service
}

// Handler holds the wired services plus the ambient dependencies handlers need.
type Handler struct {
	svc    Services
	logger *slog.Logger
}

func NewHandler(svc Services, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// NewRouter builds the full route tree. Identity is resolved upstream and
// carried in the X-User-ID header; everything under /api requires it.
func NewRouter(h *Handler, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(m))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireIdentity(logger))
		// Model-backed endpoints run long; two minutes covers the slowest
		// insight generation without holding dead connections forever.
		r.Use(middleware.Timeout(2 * time.Minute))

		r.Route("/consent", func(r chi.Router) {
			r.Get("/permissions", h.getPermissions)
			r.Put("/permissions", h.updatePermissions)
			r.Get("/history", h.getConsentHistory)
			r.Get("/privacy-score", h.getPrivacyScore)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/query-logs", h.listAuditRecords)
			r.Get("/query-logs/{recordID}", h.getAuditRecord)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Post("/loan-eligibility", h.assessLoan)
			r.Post("/explain-profile", h.explainProfile)
			r.Post("/chat", h.chatQuery)
			r.Get("/insights", h.getInsights)
		})

		r.Get("/perception", h.getPerception)
		r.Post("/perception/dispute", h.disputePerception)
		r.Get("/perception/disputes", h.listDisputes)

		r.Get("/accounts", h.listUnifiedAccounts)

		r.Route("/savings", func(r chi.Router) {
			r.Get("/summary", h.getSavingsSummary)
			r.Get("/recommendations", h.getSavingsRecommendation)

			r.Get("/accounts", h.listSavingsAccounts)
			r.Post("/accounts", h.createSavingsAccount)
			r.Route("/accounts/{accountID}", func(r chi.Router) {
				r.Get("/", h.getSavingsAccount)
				r.Put("/", h.updateSavingsAccount)
				r.Delete("/", h.deleteSavingsAccount)
				r.Post("/deposit", h.deposit)
				r.Post("/withdraw", h.withdraw)
			})

			r.Get("/goals", h.listGoals)
			r.Post("/goals", h.createGoal)
			r.Route("/goals/{goalID}", func(r chi.Router) {
				r.Put("/", h.updateGoal)
				r.Delete("/", h.deleteGoal)
				r.Post("/contribute", h.contribute)
			})
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.listTransactions)
			r.Post("/", h.createTransaction)
			r.Get("/stats/summary", h.transactionStats)
			r.Get("/recommendations/insights", h.transactionRecommendations)
			r.Get("/{transactionID}", h.getTransaction)
			r.Delete("/{transactionID}", h.deleteTransaction)
		})
	})

	return r
}
