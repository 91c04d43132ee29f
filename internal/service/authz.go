package service

import "github.com/redlantern/bookkeeper/internal/domain"

// Operation names every remotely callable procedure, so the authorization
// policy lives in one table instead of ad hoc role checks per handler.
type Operation string

const (
	OpExpenseCreate     Operation = "expenses.create"
	OpExpenseList       Operation = "expenses.list"
	OpExpenseUpdate     Operation = "expenses.update"
	OpExpenseDelete     Operation = "expenses.delete"
	OpExpenseReimburse  Operation = "expenses.reimburse"
	OpExpenseExport     Operation = "expenses.export"
	OpExpenseImport     Operation = "expenses.import"
	OpExpenseCategories Operation = "expenses.categories"

	OpIncomeCreate Operation = "income.create"
	OpIncomeList   Operation = "income.list"
	OpIncomeUpdate Operation = "income.update"
	OpIncomeDelete Operation = "income.delete"
	OpIncomeExport Operation = "income.export"

	OpBalancesRead         Operation = "balances.read"
	OpBalanceOverride      Operation = "balances.override"
	OpDirectorLoanOverride Operation = "balances.director_loan_override"

	OpUserCreate Operation = "users.create"
	OpUserList   Operation = "users.list"

	OpUploadWrite Operation = "uploads.write"
	OpUploadRead  Operation = "uploads.read"

	OpMetricsRead Operation = "metrics.read"
)

// adminOnly lists the operations restricted to administrators. Everything
// else requires only a valid session; per-record ownership (expense edits)
// is enforced by the owning service.
var adminOnly = map[Operation]bool{
	OpExpenseDelete:        true,
	OpExpenseReimburse:     true,
	OpExpenseExport:        true,
	OpIncomeDelete:         true,
	OpIncomeExport:         true,
	OpBalanceOverride:      true,
	OpDirectorLoanOverride: true,
	OpUserCreate:           true,
	OpUserList:             true,
	OpMetricsRead:          true,
}

// Authorize is the single capability check performed at every operation
// entry: no session is Unauthorized, a non-admin on an admin-only operation
// is Forbidden.
func Authorize(sess *domain.Session, op Operation) error {
	if sess == nil {
		return &domain.ErrUnauthorized{}
	}
	if adminOnly[op] && !sess.IsAdmin {
		return &domain.ErrForbidden{Action: string(op)}
	}
	return nil
}
