package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Income
// ============================================================

func parseIncomeFilter(r *http.Request) *domain.IncomeFilter {
	q := r.URL.Query()
	return &domain.IncomeFilter{
		Month:    q.Get("month"),
		DateFrom: q.Get("dateFrom"),
		DateTo:   q.Get("dateTo"),
		Room:     q.Get("room"),
	}
}

func listIncomeHandler(svc *service.IncomeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/income")
		defer span.End()

		sess := SessionFromContext(ctx)
		incomes, err := svc.List(ctx, sess, parseIncomeFilter(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		span.SetAttributes(attribute.Int("income.count", len(incomes)))
		writeJSON(w, http.StatusOK, map[string]any{"income": incomes})
	}
}

func createIncomeHandler(svc *service.IncomeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/income")
		defer span.End()

		var req domain.IncomeInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess := SessionFromContext(ctx)
		income, err := svc.Create(ctx, sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, income)
	}
}

func watchIncomeHandler(svc *service.IncomeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/income/watch")
		defer span.End()

		sess := SessionFromContext(ctx)
		ch, cancel := svc.Watch()
		defer cancel()

		select {
		case <-ch:
		case <-time.After(watchTimeout):
		case <-ctx.Done():
			return
		}

		incomes, err := svc.List(ctx, sess, parseIncomeFilter(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"income": incomes})
	}
}

func exportIncomeHandler(svc *service.IncomeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/income/export")
		defer span.End()

		sess := SessionFromContext(ctx)
		csv, err := svc.ExportCSV(ctx, sess, parseIncomeFilter(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		filename := "income-" + time.Now().Format("2006-01-02") + ".csv"
		writeCSV(w, filename, csv)
	}
}

func updateIncomeHandler(svc *service.IncomeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/income/{incomeId}")
		defer span.End()

		incomeID := chi.URLParam(r, "incomeId")

		var req domain.IncomeUpdateInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess := SessionFromContext(ctx)
		income, err := svc.Update(ctx, sess, incomeID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, income)
	}
}

func deleteIncomeHandler(svc *service.IncomeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/income/{incomeId}")
		defer span.End()

		incomeID := chi.URLParam(r, "incomeId")
		sess := SessionFromContext(ctx)
		if err := svc.Delete(ctx, sess, incomeID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
