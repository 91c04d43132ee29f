package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// watchTimeout bounds the long-poll on /watch endpoints so idle clients
// get a response before typical proxy timeouts cut the connection.
const watchTimeout = 25 * time.Second

// maxImportBody caps the CSV import payload.
const maxImportBody = 8 << 20

// ============================================================
// Expenses
// ============================================================

func parseExpenseFilter(r *http.Request) *domain.ExpenseFilter {
	q := r.URL.Query()
	f := &domain.ExpenseFilter{
		Month:    q.Get("month"),
		DateFrom: q.Get("dateFrom"),
		DateTo:   q.Get("dateTo"),
		Category: q.Get("category"),
	}
	if v := q.Get("reimbursed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Reimbursed = &b
		}
	}
	return f
}

func listExpensesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses")
		defer span.End()

		sess := SessionFromContext(ctx)
		expenses, err := svc.List(ctx, sess, parseExpenseFilter(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		span.SetAttributes(attribute.Int("expenses.count", len(expenses)))
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
	}
}

func createExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/expenses")
		defer span.End()

		var req domain.ExpenseInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess := SessionFromContext(ctx)
		expense, err := svc.Create(ctx, sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, expense)
	}
}

// watchExpensesHandler long-polls: it answers with the current expense list
// as soon as any expense record changes, or after watchTimeout with the
// unchanged list.
func watchExpensesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses/watch")
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

		expenses, err := svc.List(ctx, sess, parseExpenseFilter(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
	}
}

func expenseCategoriesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses/categories")
		defer span.End()

		sess := SessionFromContext(ctx)
		categories, err := svc.Categories(ctx, sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
	}
}

func exportExpensesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses/export")
		defer span.End()

		sess := SessionFromContext(ctx)
		csv, err := svc.ExportCSV(ctx, sess, parseExpenseFilter(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		filename := "expenses-" + time.Now().Format("2006-01-02") + ".csv"
		writeCSV(w, filename, csv)
	}
}

func importExpensesHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/expenses/import")
		defer span.End()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read request body")
			return
		}

		sess := SessionFromContext(ctx)
		report, err := svc.ImportCSV(ctx, sess, string(body))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		span.SetAttributes(
			attribute.Int("import.imported", report.Imported),
			attribute.Int("import.failed", report.Failed),
		)
		writeJSON(w, http.StatusOK, report)
	}
}

func updateExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/expenses/{expenseId}")
		defer span.End()

		expenseID := chi.URLParam(r, "expenseId")

		var req domain.ExpenseInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess := SessionFromContext(ctx)
		expense, err := svc.Update(ctx, sess, expenseID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, expense)
	}
}

func deleteExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/expenses/{expenseId}")
		defer span.End()

		expenseID := chi.URLParam(r, "expenseId")
		sess := SessionFromContext(ctx)
		if err := svc.Delete(ctx, sess, expenseID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func reimburseExpenseHandler(svc *service.ExpenseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/expenses/{expenseId}/reimbursed")
		defer span.End()

		expenseID := chi.URLParam(r, "expenseId")

		var req struct {
			IsReimbursed bool `json:"isReimbursed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess := SessionFromContext(ctx)
		expense, err := svc.MarkReimbursed(ctx, sess, expenseID, req.IsReimbursed)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, expense)
	}
}
