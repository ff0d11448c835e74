// Package domain holds the normalized entity shapes the pipeline persists:
// general ledger accounts, transactions, and the account/transaction bridge.
// These are pure data types; the warehouse package maps them onto rows.
package domain

// Account is a flattened general ledger account. Hierarchy is at most one
// level deep: an account with a non-nil ParentAccountID references a root
// account. Deeper nesting is a data-quality anomaly flagged by the
// normalizer, never collapsed silently.
type Account struct {
	ID                      int64
	AccountNumber           string
	Name                    string
	Description             string
	Type                    string
	SubType                 string
	IsDefaultGLAccount      bool
	DefaultAccountName      string
	IsContraAccount         bool
	IsBankAccount           bool
	CashFlowClassification  string
	ExcludeFromCashBalances bool
	IsActive                bool
	ParentAccountID         *int64
}

// AccountTransaction is a bridge row stating "transaction TransactionID has
// at least one line referencing account AccountID". Rows are derived from
// transaction lines with set semantics, never supplied by the source.
type AccountTransaction struct {
	AccountID     int64
	TransactionID int64
}
