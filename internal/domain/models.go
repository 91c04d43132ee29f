// Package domain contains the core types shared across the bookkeeper:
// expense and income records, balance overrides, users, sessions, and the
// typed errors the service layer returns.
package domain

import "time"

// Expense is a single purchase recorded by a user. Amount and VAT are
// non-negative monetary values in the venue currency. Category doubles as a
// payment-type bucket during reconciliation when it matches a known payment
// type name.
type Expense struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Date         string    `json:"date"` // ISO day, "2006-01-02"
	Amount       float64   `json:"amount"`
	VAT          float64   `json:"vat"`
	Category     string    `json:"category"`
	Purchaser    string    `json:"purchaser"`
	Company      string    `json:"company"`
	ReceiptPath  string    `json:"receiptPath,omitempty"`
	IsReimbursed bool      `json:"isReimbursed"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PaymentMethod is one leg of a split payment on an income record.
// WeChatCNY carries the original CNY figure for WeChat payments, kept as
// entered (free text) since it is display-only.
type PaymentMethod struct {
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	WeChatCNY string  `json:"wechatCNY,omitempty"`
}

// Income is a room/bar session bill. Outstanding is always recomputed as
// bill - paid on create and update; date, room, name and bill are immutable
// after creation.
type Income struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Username       string          `json:"username"`
	Date           string          `json:"date"`
	Room           string          `json:"room"`
	Name           string          `json:"name"`
	Bill           float64         `json:"bill"`
	Paid           float64         `json:"paid"`
	Outstanding    float64         `json:"outstanding"`
	PaymentMethods []PaymentMethod `json:"paymentMethods"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// BalanceOverride is an admin-set correction for a payment type's displayed
// balance. One override per payment type, last write wins.
type BalanceOverride struct {
	PaymentType string    `json:"paymentType"`
	Amount      float64   `json:"amount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DirectorLoanOverride is the same shape keyed by director name. Director
// balances have no contributing transactions, so the displayed value is
// entirely override-driven.
type DirectorLoanOverride struct {
	Director  string    `json:"director"`
	Amount    float64   `json:"amount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BalanceEntry is one bucket of the reconciliation result.
type BalanceEntry struct {
	Calculated float64  `json:"calculated"`
	Override   *float64 `json:"override,omitempty"`
	Final      float64  `json:"final"`
}

// BalanceSheet maps every known payment type and director to its entry.
type BalanceSheet struct {
	Balances      map[string]BalanceEntry `json:"balances"`
	DirectorLoans map[string]BalanceEntry `json:"directorLoans"`
}

// User is a login principal. PasswordHash is a bcrypt hash and never leaves
// the service layer.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password"`
	IsAdmin      bool   `json:"isAdmin"`
}

// UserInfo is the password-free projection of a User returned to clients.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Session is an opaque server-side login record. The bearer token handed to
// clients wraps the session id, so deleting the record revokes the token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExpenseFilter holds the optional, conjunctive list filters for expenses.
// Month is a calendar-month prefix ("2025-07"); DateFrom/DateTo are inclusive
// ISO day bounds compared lexicographically.
type ExpenseFilter struct {
	Month      string
	DateFrom   string
	DateTo     string
	Category   string
	Reimbursed *bool
}

// IncomeFilter holds the optional, conjunctive list filters for income.
type IncomeFilter struct {
	Month    string
	DateFrom string
	DateTo   string
	Room     string
}

// ImportReport aggregates the outcome of a CSV import batch. Every row is
// attempted independently; failures never abort the remaining rows.
type ImportReport struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// ExpenseInput carries the caller-settable expense fields, used both for
// creation and full edits.
type ExpenseInput struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	VAT         float64 `json:"vat"`
	Category    string  `json:"category"`
	Purchaser   string  `json:"purchaser"`
	Company     string  `json:"company"`
	ReceiptPath string  `json:"receiptPath,omitempty"`
}

// IncomeInput carries the caller-settable fields of a new income record.
type IncomeInput struct {
	Date           string          `json:"date"`
	Room           string          `json:"room"`
	Name           string          `json:"name"`
	Bill           float64         `json:"bill"`
	Paid           float64         `json:"paid"`
	PaymentMethods []PaymentMethod `json:"paymentMethods"`
}

// IncomeUpdateInput carries the only mutable income fields. Date, room, name
// and bill are immutable post-creation.
type IncomeUpdateInput struct {
	Paid           float64         `json:"paid"`
	PaymentMethods []PaymentMethod `json:"paymentMethods"`
}

// LoginResult is returned by a successful login: a signed bearer token plus
// the password-free user projection.
type LoginResult struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}
