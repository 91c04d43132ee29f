package handler

import (
	"encoding/json"
	"net/http"

	"github.com/redlantern/bookkeeper/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Balances & overrides
// ============================================================

func getBalancesHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/balances")
		defer span.End()

		sess := SessionFromContext(ctx)
		sheet, err := svc.GetBalances(ctx, sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, sheet)
	}
}

type overrideRequest struct {
	Amount float64 `json:"amount"`
}

func setBalanceOverrideHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/balances/overrides/{paymentType}")
		defer span.End()

		var req overrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess := SessionFromContext(ctx)
		paymentType := chi.URLParam(r, "paymentType")
		if err := svc.SetBalanceOverride(ctx, sess, paymentType, req.Amount); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func clearBalanceOverrideHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/balances/overrides/{paymentType}")
		defer span.End()

		sess := SessionFromContext(ctx)
		paymentType := chi.URLParam(r, "paymentType")
		if err := svc.ClearBalanceOverride(ctx, sess, paymentType); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func setDirectorLoanHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/balances/director-loans/{director}")
		defer span.End()

		var req overrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess := SessionFromContext(ctx)
		director := chi.URLParam(r, "director")
		if err := svc.SetDirectorLoanOverride(ctx, sess, director, req.Amount); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func clearDirectorLoanHandler(svc *service.BalanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/balances/director-loans/{director}")
		defer span.End()

		sess := SessionFromContext(ctx)
		director := chi.URLParam(r, "director")
		if err := svc.ClearDirectorLoanOverride(ctx, sess, director); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
