package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/infra/observability"
	"github.com/redlantern/bookkeeper/internal/records"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var balanceTracer = otel.Tracer("service/balances")

// BalanceService derives the balance sheet from the income and expense
// collections and applies admin overrides on top.
type BalanceService struct {
	income        *records.Collection[domain.Income]
	expenses      *records.Collection[domain.Expense]
	overrides     *records.Collection[domain.BalanceOverride]
	directorLoans *records.Collection[domain.DirectorLoanOverride]
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewBalanceService creates a new balance service.
func NewBalanceService(cols *records.Collections, metrics *observability.Metrics, logger *zap.Logger) *BalanceService {
	return &BalanceService{
		income:        cols.Income,
		expenses:      cols.Expenses,
		overrides:     cols.BalanceOverrides,
		directorLoans: cols.DirectorLoanOverrides,
		metrics:       metrics,
		logger:        logger,
	}
}

// GetBalances computes the full balance sheet. Every fixed payment type and
// director appears in the result even when no records reference it: the
// calculated value is income minus expenses per payment type, zero for
// directors, and the final value is the override when one is set.
func (s *BalanceService) GetBalances(ctx context.Context, sess *domain.Session) (*domain.BalanceSheet, error) {
	ctx, span := balanceTracer.Start(ctx, "BalanceService.GetBalances")
	defer span.End()

	if err := Authorize(sess, OpBalancesRead); err != nil {
		return nil, err
	}

	var (
		incomes       []domain.Income
		expenses      []domain.Expense
		overrides     []domain.BalanceOverride
		directorLoans []domain.DirectorLoanOverride
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = s.income.All(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.All(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		overrides, err = s.overrides.All(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		directorLoans, err = s.directorLoans.All(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load balance inputs: %w", err)
	}

	incomeByType := make(map[string]float64, len(domain.PaymentTypes))
	for _, rec := range incomes {
		for _, m := range rec.PaymentMethods {
			incomeByType[m.Type] += m.Amount
		}
	}

	expenseByCategory := make(map[string]float64)
	for _, rec := range expenses {
		expenseByCategory[rec.Category] += rec.Amount
	}

	overrideByType := make(map[string]float64, len(overrides))
	for _, o := range overrides {
		overrideByType[o.PaymentType] = o.Amount
	}
	loanByDirector := make(map[string]float64, len(directorLoans))
	for _, o := range directorLoans {
		loanByDirector[o.Director] = o.Amount
	}

	sheet := &domain.BalanceSheet{
		Balances:      make(map[string]domain.BalanceEntry, len(domain.PaymentTypes)),
		DirectorLoans: make(map[string]domain.BalanceEntry, len(domain.Directors)),
	}
	for _, pt := range domain.PaymentTypes {
		calculated := incomeByType[pt] - expenseByCategory[pt]
		sheet.Balances[pt] = balanceEntry(calculated, overrideByType, pt)
	}
	for _, d := range domain.Directors {
		sheet.DirectorLoans[d] = balanceEntry(0, loanByDirector, d)
	}

	s.metrics.IncrBalanceCompute()
	return sheet, nil
}

func balanceEntry(calculated float64, overrides map[string]float64, key string) domain.BalanceEntry {
	entry := domain.BalanceEntry{Calculated: calculated, Final: calculated}
	if v, ok := overrides[key]; ok {
		amount := v
		entry.Override = &amount
		entry.Final = amount
	}
	return entry
}

// SetBalanceOverride pins the final balance for a payment type. Admin-only;
// last write wins.
func (s *BalanceService) SetBalanceOverride(ctx context.Context, sess *domain.Session, paymentType string, amount float64) error {
	ctx, span := balanceTracer.Start(ctx, "BalanceService.SetBalanceOverride")
	defer span.End()

	if err := Authorize(sess, OpBalanceOverride); err != nil {
		return err
	}
	if !domain.KnownPaymentType(paymentType) {
		return &domain.ErrValidation{Field: "paymentType", Message: "unknown payment type"}
	}

	override := &domain.BalanceOverride{PaymentType: paymentType, Amount: amount, UpdatedAt: time.Now().UTC()}
	if err := s.overrides.Put(ctx, paymentType, override); err != nil {
		return fmt.Errorf("store balance override: %w", err)
	}
	s.metrics.IncrRecordWrite(s.overrides.Name())

	s.logger.Info("balance override set",
		zap.String("payment_type", paymentType),
		zap.Float64("amount", amount),
		zap.String("set_by", sess.UserID),
	)
	return nil
}

// ClearBalanceOverride removes an override so the calculated balance shows
// through again. Clearing an absent override is a no-op.
func (s *BalanceService) ClearBalanceOverride(ctx context.Context, sess *domain.Session, paymentType string) error {
	ctx, span := balanceTracer.Start(ctx, "BalanceService.ClearBalanceOverride")
	defer span.End()

	if err := Authorize(sess, OpBalanceOverride); err != nil {
		return err
	}
	if !domain.KnownPaymentType(paymentType) {
		return &domain.ErrValidation{Field: "paymentType", Message: "unknown payment type"}
	}

	if err := s.overrides.Remove(ctx, paymentType); err != nil {
		return fmt.Errorf("remove balance override: %w", err)
	}
	s.metrics.IncrRecordWrite(s.overrides.Name())
	return nil
}

// SetDirectorLoanOverride pins the loan balance shown for a director.
func (s *BalanceService) SetDirectorLoanOverride(ctx context.Context, sess *domain.Session, director string, amount float64) error {
	ctx, span := balanceTracer.Start(ctx, "BalanceService.SetDirectorLoanOverride")
	defer span.End()

	if err := Authorize(sess, OpDirectorLoanOverride); err != nil {
		return err
	}
	if !domain.KnownDirector(director) {
		return &domain.ErrValidation{Field: "director", Message: "unknown director"}
	}

	override := &domain.DirectorLoanOverride{Director: director, Amount: amount, UpdatedAt: time.Now().UTC()}
	if err := s.directorLoans.Put(ctx, director, override); err != nil {
		return fmt.Errorf("store director loan override: %w", err)
	}
	s.metrics.IncrRecordWrite(s.directorLoans.Name())

	s.logger.Info("director loan override set",
		zap.String("director", director),
		zap.Float64("amount", amount),
		zap.String("set_by", sess.UserID),
	)
	return nil
}

// ClearDirectorLoanOverride removes a director loan override.
func (s *BalanceService) ClearDirectorLoanOverride(ctx context.Context, sess *domain.Session, director string) error {
	ctx, span := balanceTracer.Start(ctx, "BalanceService.ClearDirectorLoanOverride")
	defer span.End()

	if err := Authorize(sess, OpDirectorLoanOverride); err != nil {
		return err
	}
	if !domain.KnownDirector(director) {
		return &domain.ErrValidation{Field: "director", Message: "unknown director"}
	}

	if err := s.directorLoans.Remove(ctx, director); err != nil {
		return fmt.Errorf("remove director loan override: %w", err)
	}
	s.metrics.IncrRecordWrite(s.directorLoans.Name())
	return nil
}
