package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/infra/observability"
	"github.com/redlantern/bookkeeper/internal/records"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var incomeTracer = otel.Tracer("service/income")

// IncomeService handles income record operations. Outstanding is derived
// state (bill - paid) and recomputed on every create and update.
type IncomeService struct {
	income  *records.Collection[domain.Income]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewIncomeService creates a new income service.
func NewIncomeService(cols *records.Collections, metrics *observability.Metrics, logger *zap.Logger) *IncomeService {
	return &IncomeService{income: cols.Income, metrics: metrics, logger: logger}
}

// Create records a new income entry. Date, room, name and bill are fixed at
// creation; only paid and paymentMethods can change later.
func (s *IncomeService) Create(ctx context.Context, sess *domain.Session, in *domain.IncomeInput) (*domain.Income, error) {
	ctx, span := incomeTracer.Start(ctx, "IncomeService.Create")
	defer span.End()

	if err := Authorize(sess, OpIncomeCreate); err != nil {
		return nil, err
	}
	if in.Date == "" {
		return nil, &domain.ErrValidation{Field: "date", Message: "date is required"}
	}
	if !domain.KnownRoom(in.Room) {
		return nil, &domain.ErrValidation{Field: "room", Message: "unknown room"}
	}
	if in.Bill < 0 {
		return nil, &domain.ErrValidation{Field: "bill", Message: "bill must be non-negative"}
	}

	income := &domain.Income{
		ID:             uuid.New().String(),
		UserID:         sess.UserID,
		Username:       sess.Username,
		Date:           in.Date,
		Room:           in.Room,
		Name:           in.Name,
		Bill:           in.Bill,
		Paid:           in.Paid,
		Outstanding:    in.Bill - in.Paid,
		PaymentMethods: in.PaymentMethods,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.income.Put(ctx, income.ID, income); err != nil {
		return nil, fmt.Errorf("store income: %w", err)
	}
	s.metrics.IncrRecordWrite(s.income.Name())

	s.logger.Info("income created",
		zap.String("income_id", income.ID),
		zap.String("user_id", sess.UserID),
		zap.String("room", income.Room),
		zap.Float64("bill", income.Bill),
	)
	return income, nil
}

// List returns income records visible to the caller, newest first.
func (s *IncomeService) List(ctx context.Context, sess *domain.Session, f *domain.IncomeFilter) ([]domain.Income, error) {
	ctx, span := incomeTracer.Start(ctx, "IncomeService.List")
	defer span.End()

	if err := Authorize(sess, OpIncomeList); err != nil {
		return nil, err
	}

	all, err := s.income.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}

	out := make([]domain.Income, 0, len(all))
	for _, rec := range all {
		if !sess.IsAdmin && rec.UserID != sess.UserID {
			continue
		}
		if !s.matches(&rec, f) {
			continue
		}
		out = append(out, rec)
	}

	sortNewestFirst(out, func(i *domain.Income) time.Time { return i.CreatedAt })
	span.SetAttributes(attribute.Int("income.count", len(out)))
	return out, nil
}

func (s *IncomeService) matches(i *domain.Income, f *domain.IncomeFilter) bool {
	if f == nil {
		return true
	}
	if !matchMonth(i.Date, f.Month) {
		return false
	}
	if !matchDateRange(i.Date, f.DateFrom, f.DateTo) {
		return false
	}
	if f.Room != "" && i.Room != f.Room {
		return false
	}
	return true
}

// Update changes the paid amount and payment methods of an income record and
// recomputes outstanding. The bill itself never changes.
func (s *IncomeService) Update(ctx context.Context, sess *domain.Session, incomeID string, in *domain.IncomeUpdateInput) (*domain.Income, error) {
	ctx, span := incomeTracer.Start(ctx, "IncomeService.Update")
	defer span.End()

	if err := Authorize(sess, OpIncomeUpdate); err != nil {
		return nil, err
	}

	income, err := s.income.Get(ctx, incomeID)
	if err != nil {
		return nil, fmt.Errorf("get income: %w", err)
	}
	if income == nil {
		return nil, &domain.ErrNotFound{Resource: "income", ID: incomeID}
	}

	income.Paid = in.Paid
	income.Outstanding = income.Bill - in.Paid
	income.PaymentMethods = in.PaymentMethods

	if err := s.income.Put(ctx, income.ID, income); err != nil {
		return nil, fmt.Errorf("store income: %w", err)
	}
	s.metrics.IncrRecordWrite(s.income.Name())
	return income, nil
}

// Delete removes an income record. Admin-only.
func (s *IncomeService) Delete(ctx context.Context, sess *domain.Session, incomeID string) error {
	ctx, span := incomeTracer.Start(ctx, "IncomeService.Delete")
	defer span.End()

	if err := Authorize(sess, OpIncomeDelete); err != nil {
		return err
	}

	income, err := s.income.Get(ctx, incomeID)
	if err != nil {
		return fmt.Errorf("get income: %w", err)
	}
	if income == nil {
		return &domain.ErrNotFound{Resource: "income", ID: incomeID}
	}

	if err := s.income.Remove(ctx, incomeID); err != nil {
		return fmt.Errorf("remove income: %w", err)
	}
	s.metrics.IncrRecordWrite(s.income.Name())

	s.logger.Info("income deleted",
		zap.String("income_id", incomeID),
		zap.String("deleted_by", sess.UserID),
	)
	return nil
}

// incomeCSVHeader mirrors the expense export convention: comma-joined, no
// quoting, payment methods as a "Type: amount; Type: amount" trailing-style
// field.
var incomeCSVHeader = []string{
	"Date", "Room", "Name", "Bill", "Paid", "Outstanding", "Payment Methods", "User",
}

func formatPaymentMethods(methods []domain.PaymentMethod) string {
	parts := make([]string, 0, len(methods))
	for _, m := range methods {
		parts = append(parts, fmt.Sprintf("%s: %s", m.Type, formatAmount(m.Amount)))
	}
	return strings.Join(parts, "; ")
}

// ExportCSV serializes the filtered income records. Admin-only.
func (s *IncomeService) ExportCSV(ctx context.Context, sess *domain.Session, f *domain.IncomeFilter) (string, error) {
	ctx, span := incomeTracer.Start(ctx, "IncomeService.ExportCSV")
	defer span.End()
	start := time.Now()

	if err := Authorize(sess, OpIncomeExport); err != nil {
		return "", err
	}

	incomes, err := s.List(ctx, sess, f)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(incomes)+1)
	lines = append(lines, strings.Join(incomeCSVHeader, ","))
	for _, rec := range incomes {
		lines = append(lines, strings.Join([]string{
			rec.Date,
			rec.Room,
			rec.Name,
			formatAmount(rec.Bill),
			formatAmount(rec.Paid),
			formatAmount(rec.Outstanding),
			formatPaymentMethods(rec.PaymentMethods),
			rec.Username,
		}, ","))
	}

	s.metrics.IncrCSVExport("income")
	s.metrics.RecordOperationDuration("income.export", time.Since(start))
	return strings.Join(lines, "\n"), nil
}

// Watch subscribes to income change notifications for the polling surface.
func (s *IncomeService) Watch() (<-chan struct{}, func()) {
	return s.income.Watch()
}
