package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redlantern/bookkeeper/internal/domain"

	"go.uber.org/zap"
)

// CSV layout for expenses. Fields are comma-joined with no quoting or
// escaping, which keeps the interchange format byte-compatible with the
// historical exports; free-text fields containing commas will shift columns
// on re-import.
var expenseCSVHeader = []string{
	"Date", "Amount", "VAT", "Category", "Purchaser", "Company", "User", "Reimbursed",
}

// Column positions used by import. User and Reimbursed are export-only:
// imported rows belong to the importer and start unreimbursed.
const (
	colDate = iota
	colAmount
	colVAT
	colCategory
	colPurchaser
	colCompany
	expenseImportMinColumns = colCompany + 1
)

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ExportCSV serializes the filtered expenses. Admin-only; the per-user list
// restriction does not apply.
func (s *ExpenseService) ExportCSV(ctx context.Context, sess *domain.Session, f *domain.ExpenseFilter) (string, error) {
	ctx, span := expenseTracer.Start(ctx, "ExpenseService.ExportCSV")
	defer span.End()
	start := time.Now()

	if err := Authorize(sess, OpExpenseExport); err != nil {
		return "", err
	}

	expenses, err := s.List(ctx, sess, f)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(expenses)+1)
	lines = append(lines, strings.Join(expenseCSVHeader, ","))
	for _, e := range expenses {
		reimbursed := "No"
		if e.IsReimbursed {
			reimbursed = "Yes"
		}
		lines = append(lines, strings.Join([]string{
			e.Date,
			formatAmount(e.Amount),
			formatAmount(e.VAT),
			e.Category,
			e.Purchaser,
			e.Company,
			e.Username,
			reimbursed,
		}, ","))
	}

	s.metrics.IncrCSVExport("expenses")
	s.metrics.RecordOperationDuration("expenses.export", time.Since(start))
	return strings.Join(lines, "\n"), nil
}

// ImportCSV parses the text as newline-separated, comma-split rows with the
// fixed export column layout and creates one expense per row on behalf of
// the caller. Rows are attempted independently: short rows and store errors
// are counted, unparseable numerics default to 0, and no row failure aborts
// the batch.
func (s *ExpenseService) ImportCSV(ctx context.Context, sess *domain.Session, text string) (*domain.ImportReport, error) {
	ctx, span := expenseTracer.Start(ctx, "ExpenseService.ImportCSV")
	defer span.End()
	start := time.Now()

	if err := Authorize(sess, OpExpenseImport); err != nil {
		return nil, err
	}

	report := &domain.ImportReport{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		// Header row convention: a first line starting with the Date column
		// title is the export header, not data.
		if i == 0 && fields[colDate] == expenseCSVHeader[colDate] {
			continue
		}
		if len(fields) < expenseImportMinColumns {
			report.Failed++
			s.metrics.IncrImportRow("error")
			continue
		}

		amount, err := strconv.ParseFloat(strings.TrimSpace(fields[colAmount]), 64)
		if err != nil {
			amount = 0
		}
		vat, err := strconv.ParseFloat(strings.TrimSpace(fields[colVAT]), 64)
		if err != nil {
			vat = 0
		}

		in := &domain.ExpenseInput{
			Date:      strings.TrimSpace(fields[colDate]),
			Amount:    amount,
			VAT:       vat,
			Category:  strings.TrimSpace(fields[colCategory]),
			Purchaser: strings.TrimSpace(fields[colPurchaser]),
			Company:   strings.TrimSpace(fields[colCompany]),
		}
		if _, err := s.Create(ctx, sess, in); err != nil {
			report.Failed++
			s.metrics.IncrImportRow("error")
			continue
		}
		report.Imported++
		s.metrics.IncrImportRow("ok")
	}

	s.metrics.RecordOperationDuration("expenses.import", time.Since(start))
	s.logger.Info("csv import finished",
		zap.String("user_id", sess.UserID),
		zap.Int("imported", report.Imported),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
