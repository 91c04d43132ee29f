package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/infra/observability"
	"github.com/redlantern/bookkeeper/internal/records"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var expenseTracer = otel.Tracer("service/expenses")

// ExpenseService handles expense record operations: create, list, edit,
// reimbursement, deletion, and the CSV import/export surface.
type ExpenseService struct {
	expenses *records.Collection[domain.Expense]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewExpenseService creates a new expense service.
func NewExpenseService(cols *records.Collections, metrics *observability.Metrics, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{expenses: cols.Expenses, metrics: metrics, logger: logger}
}

func validateExpenseInput(in *domain.ExpenseInput) error {
	if in.Date == "" {
		return &domain.ErrValidation{Field: "date", Message: "date is required"}
	}
	if in.Amount < 0 {
		return &domain.ErrValidation{Field: "amount", Message: "amount must be non-negative"}
	}
	if in.VAT < 0 {
		return &domain.ErrValidation{Field: "vat", Message: "vat must be non-negative"}
	}
	if in.Category == "" {
		return &domain.ErrValidation{Field: "category", Message: "category is required"}
	}
	return nil
}

// Create records a new expense owned by the calling session's user.
func (s *ExpenseService) Create(ctx context.Context, sess *domain.Session, in *domain.ExpenseInput) (*domain.Expense, error) {
	ctx, span := expenseTracer.Start(ctx, "ExpenseService.Create")
	defer span.End()

	if err := Authorize(sess, OpExpenseCreate); err != nil {
		return nil, err
	}
	if err := validateExpenseInput(in); err != nil {
		return nil, err
	}

	expense := &domain.Expense{
		ID:           uuid.New().String(),
		UserID:       sess.UserID,
		Username:     sess.Username,
		Date:         in.Date,
		Amount:       in.Amount,
		VAT:          in.VAT,
		Category:     in.Category,
		Purchaser:    in.Purchaser,
		Company:      in.Company,
		ReceiptPath:  in.ReceiptPath,
		IsReimbursed: false,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.expenses.Put(ctx, expense.ID, expense); err != nil {
		return nil, fmt.Errorf("store expense: %w", err)
	}
	s.metrics.IncrRecordWrite(s.expenses.Name())

	s.logger.Info("expense created",
		zap.String("expense_id", expense.ID),
		zap.String("user_id", sess.UserID),
		zap.Float64("amount", expense.Amount),
		zap.String("category", expense.Category),
	)
	return expense, nil
}

// List returns expenses visible to the caller, newest first. Non-admins only
// ever see their own records; admins see everything. Filters are optional
// and conjunctive.
func (s *ExpenseService) List(ctx context.Context, sess *domain.Session, f *domain.ExpenseFilter) ([]domain.Expense, error) {
	ctx, span := expenseTracer.Start(ctx, "ExpenseService.List")
	defer span.End()

	if err := Authorize(sess, OpExpenseList); err != nil {
		return nil, err
	}

	all, err := s.expenses.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	out := make([]domain.Expense, 0, len(all))
	for _, e := range all {
		if !sess.IsAdmin && e.UserID != sess.UserID {
			continue
		}
		if !s.matches(&e, f) {
			continue
		}
		out = append(out, e)
	}

	sortNewestFirst(out, func(e *domain.Expense) time.Time { return e.CreatedAt })
	span.SetAttributes(attribute.Int("expenses.count", len(out)))
	return out, nil
}

func (s *ExpenseService) matches(e *domain.Expense, f *domain.ExpenseFilter) bool {
	if f == nil {
		return true
	}
	if !matchMonth(e.Date, f.Month) {
		return false
	}
	if !matchDateRange(e.Date, f.DateFrom, f.DateTo) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Reimbursed != nil && e.IsReimbursed != *f.Reimbursed {
		return false
	}
	return true
}

// MarkReimbursed sets the reimbursement flag. Admin-only; overwriting an
// already-set flag is a no-op beyond the write itself.
func (s *ExpenseService) MarkReimbursed(ctx context.Context, sess *domain.Session, expenseID string, isReimbursed bool) (*domain.Expense, error) {
	ctx, span := expenseTracer.Start(ctx, "ExpenseService.MarkReimbursed")
	defer span.End()

	if err := Authorize(sess, OpExpenseReimburse); err != nil {
		return nil, err
	}

	expense, err := s.expenses.Get(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if expense == nil {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}

	expense.IsReimbursed = isReimbursed
	if err := s.expenses.Put(ctx, expense.ID, expense); err != nil {
		return nil, fmt.Errorf("store expense: %w", err)
	}
	s.metrics.IncrRecordWrite(s.expenses.Name())
	return expense, nil
}

// Update overwrites the caller-settable fields of an expense. Allowed for
// the record owner and for admins.
func (s *ExpenseService) Update(ctx context.Context, sess *domain.Session, expenseID string, in *domain.ExpenseInput) (*domain.Expense, error) {
	ctx, span := expenseTracer.Start(ctx, "ExpenseService.Update")
	defer span.End()

	if err := Authorize(sess, OpExpenseUpdate); err != nil {
		return nil, err
	}
	if err := validateExpenseInput(in); err != nil {
		return nil, err
	}

	expense, err := s.expenses.Get(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if expense == nil {
		return nil, &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}
	if !sess.IsAdmin && expense.UserID != sess.UserID {
		return nil, &domain.ErrForbidden{Action: string(OpExpenseUpdate)}
	}

	expense.Date = in.Date
	expense.Amount = in.Amount
	expense.VAT = in.VAT
	expense.Category = in.Category
	expense.Purchaser = in.Purchaser
	expense.Company = in.Company
	expense.ReceiptPath = in.ReceiptPath

	if err := s.expenses.Put(ctx, expense.ID, expense); err != nil {
		return nil, fmt.Errorf("store expense: %w", err)
	}
	s.metrics.IncrRecordWrite(s.expenses.Name())
	return expense, nil
}

// Delete removes an expense record. Admin-only; removal is unconditional,
// not a soft delete.
func (s *ExpenseService) Delete(ctx context.Context, sess *domain.Session, expenseID string) error {
	ctx, span := expenseTracer.Start(ctx, "ExpenseService.Delete")
	defer span.End()

	if err := Authorize(sess, OpExpenseDelete); err != nil {
		return err
	}

	expense, err := s.expenses.Get(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if expense == nil {
		return &domain.ErrNotFound{Resource: "expense", ID: expenseID}
	}

	if err := s.expenses.Remove(ctx, expenseID); err != nil {
		return fmt.Errorf("remove expense: %w", err)
	}
	s.metrics.IncrRecordWrite(s.expenses.Name())

	s.logger.Info("expense deleted",
		zap.String("expense_id", expenseID),
		zap.String("deleted_by", sess.UserID),
	)
	return nil
}

// Categories returns the distinct categories in use, sorted.
func (s *ExpenseService) Categories(ctx context.Context, sess *domain.Session) ([]string, error) {
	ctx, span := expenseTracer.Start(ctx, "ExpenseService.Categories")
	defer span.End()

	if err := Authorize(sess, OpExpenseCategories); err != nil {
		return nil, err
	}

	all, err := s.expenses.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, e := range all {
		if !seen[e.Category] {
			seen[e.Category] = true
			categories = append(categories, e.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// Watch subscribes to expense change notifications for the polling surface.
func (s *ExpenseService) Watch() (<-chan struct{}, func()) {
	return s.expenses.Watch()
}
