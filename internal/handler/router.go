package handler

import (
	"net/http"
	"time"

	"github.com/redlantern/bookkeeper/internal/infra/observability"
	"github.com/redlantern/bookkeeper/internal/infra/uploads"
	"github.com/redlantern/bookkeeper/internal/port"
	"github.com/redlantern/bookkeeper/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	kv port.KV,
	authSvc *service.AuthService,
	expenseSvc *service.ExpenseService,
	incomeSvc *service.IncomeService,
	balanceSvc *service.BalanceService,
	uploadStore *uploads.Store,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(kv, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Public: only login lives outside the session gate.
		r.Post("/auth/login", authLoginHandler(authSvc, logger))

		r.Group(func(r chi.Router) {
			r.Use(SessionAuthMiddleware(authSvc, metrics, logger))

			// Auth & users
			r.Post("/auth/logout", authLogoutHandler(authSvc, logger))
			r.Get("/auth/me", authMeHandler(authSvc, logger))
			r.Get("/users", listUsersHandler(authSvc, logger))
			r.Post("/users", createUserHandler(authSvc, logger))

			// Expenses
			r.Get("/expenses", listExpensesHandler(expenseSvc, logger))
			r.Post("/expenses", createExpenseHandler(expenseSvc, logger))
			r.Get("/expenses/watch", watchExpensesHandler(expenseSvc, logger))
			r.Get("/expenses/categories", expenseCategoriesHandler(expenseSvc, logger))
			r.Get("/expenses/export", exportExpensesHandler(expenseSvc, logger))
			r.Post("/expenses/import", importExpensesHandler(expenseSvc, logger))
			r.Put("/expenses/{expenseId}", updateExpenseHandler(expenseSvc, logger))
			r.Delete("/expenses/{expenseId}", deleteExpenseHandler(expenseSvc, logger))
			r.Put("/expenses/{expenseId}/reimbursed", reimburseExpenseHandler(expenseSvc, logger))

			// Income
			r.Get("/income", listIncomeHandler(incomeSvc, logger))
			r.Post("/income", createIncomeHandler(incomeSvc, logger))
			r.Get("/income/watch", watchIncomeHandler(incomeSvc, logger))
			r.Get("/income/export", exportIncomeHandler(incomeSvc, logger))
			r.Put("/income/{incomeId}", updateIncomeHandler(incomeSvc, logger))
			r.Delete("/income/{incomeId}", deleteIncomeHandler(incomeSvc, logger))

			// Balances & overrides
			r.Get("/balances", getBalancesHandler(balanceSvc, logger))
			r.Put("/balances/overrides/{paymentType}", setBalanceOverrideHandler(balanceSvc, logger))
			r.Delete("/balances/overrides/{paymentType}", clearBalanceOverrideHandler(balanceSvc, logger))
			r.Put("/balances/director-loans/{director}", setDirectorLoanHandler(balanceSvc, logger))
			r.Delete("/balances/director-loans/{director}", clearDirectorLoanHandler(balanceSvc, logger))

			// Receipt uploads
			r.Post("/uploads", uploadReceiptHandler(uploadStore, logger))
			r.Get("/uploads/{filename}", getReceiptHandler(uploadStore, logger))

			// Metrics summary (admin)
			r.Get("/metrics/summary", metricsSummaryHandler(metrics, logger))
		})
	})

	return r
}

// healthzHandler pings the record store so a dead backend shows up as
// degraded rather than healthy.
func healthzHandler(kv port.KV, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status := "healthy"
		start := time.Now()
		if _, err := kv.Get(ctx, port.UsersCollection, "health-check"); err != nil {
			logger.Warn("healthz: record store unreachable", zap.Error(err))
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"checked_at": time.Now().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// metricsSummaryHandler returns the operational counter snapshot. Admin-only.
func metricsSummaryHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if err := service.Authorize(sess, service.OpMetricsRead); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, metrics.GetSnapshot())
	}
}
