// Package warehouse persists normalized batches using a staging-then-merge
// protocol: staged rows are append-only and duplicate-tolerant, tagged with
// the run that produced them; merges reconcile one run's staged rows into
// the production tables idempotently.
package warehouse

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/Matheus920/ledger-loader/internal/domain"
	"github.com/Matheus920/ledger-loader/internal/lineage"
)

// AccountRow is one general ledger account as stored in the warehouse.
// RunID and InsertedAt are lineage columns; they never participate in merge
// attribute comparison.
type AccountRow struct {
	ID                      int64               `bigquery:"id"` // REQUIRED
	AccountNumber           bigquery.NullString `bigquery:"account_number"`
	Name                    string              `bigquery:"name"` // REQUIRED
	Description             bigquery.NullString `bigquery:"description"`
	Type                    string              `bigquery:"type"`     // REQUIRED
	SubType                 string              `bigquery:"sub_type"` // REQUIRED
	IsDefaultGLAccount      bool                `bigquery:"is_default_gl_account"`
	DefaultAccountName      bigquery.NullString `bigquery:"default_account_name"`
	IsContraAccount         bool                `bigquery:"is_contra_account"`
	IsBankAccount           bool                `bigquery:"is_bank_account"`
	CashFlowClassification  bigquery.NullString `bigquery:"cash_flow_classification"`
	ExcludeFromCashBalances bool                `bigquery:"exclude_from_cash_balances"`
	IsActive                bool                `bigquery:"is_active"`
	ParentAccountID         bigquery.NullInt64  `bigquery:"parent_account_id"` // FK account.id, NULLABLE

	RunID      string    `bigquery:"run_id"` // staging only
	InsertedAt time.Time `bigquery:"inserted_at"`
}

// TransactionRow is one general ledger transaction as stored in the
// warehouse. Nested payloads are opaque JSON columns; total_amount is a
// fixed-point NUMERIC, never a float.
type TransactionRow struct {
	ID                  int64               `bigquery:"id"`   // REQUIRED
	Date                civil.Date          `bigquery:"date"` // REQUIRED
	TransactionType     string              `bigquery:"transaction_type"`
	TotalAmount         *big.Rat            `bigquery:"total_amount"` // NUMERIC(38,2)
	CheckNumber         bigquery.NullString `bigquery:"check_number"`
	UnitAgreement       bigquery.NullJSON   `bigquery:"unit_agreement"`
	UnitID              bigquery.NullInt64  `bigquery:"unit_id"`
	UnitNumber          bigquery.NullString `bigquery:"unit_number"`
	PaymentDetail       bigquery.NullJSON   `bigquery:"payment_detail"`
	DepositDetails      bigquery.NullJSON   `bigquery:"deposit_details"`
	JournalMemo         bigquery.NullString `bigquery:"journal_memo"`
	Lines               bigquery.NullJSON   `bigquery:"lines"`
	LastUpdatedDateTime time.Time           `bigquery:"last_updated_date_time"`

	RunID      string    `bigquery:"run_id"` // staging only
	InsertedAt time.Time `bigquery:"inserted_at"`
}

// AccountTransactionRow is one bridge row. The composite
// (account_id, transaction_id) is the production primary key.
type AccountTransactionRow struct {
	AccountID     int64 `bigquery:"account_id"`     // FK account.id
	TransactionID int64 `bigquery:"transaction_id"` // FK transaction.id

	RunID      string    `bigquery:"run_id"` // staging only
	InsertedAt time.Time `bigquery:"inserted_at"`
}

// AccountRows maps normalized accounts onto staged rows stamped with the
// run's lineage.
func AccountRows(accounts []domain.Account, run lineage.Run, insertedAt time.Time) []*AccountRow {
	rows := make([]*AccountRow, 0, len(accounts))
	for _, account := range accounts {
		row := &AccountRow{
			ID:                      account.ID,
			AccountNumber:           nullString(account.AccountNumber),
			Name:                    account.Name,
			Description:             nullString(account.Description),
			Type:                    account.Type,
			SubType:                 account.SubType,
			IsDefaultGLAccount:      account.IsDefaultGLAccount,
			DefaultAccountName:      nullString(account.DefaultAccountName),
			IsContraAccount:         account.IsContraAccount,
			IsBankAccount:           account.IsBankAccount,
			CashFlowClassification:  nullString(account.CashFlowClassification),
			ExcludeFromCashBalances: account.ExcludeFromCashBalances,
			IsActive:                account.IsActive,
			RunID:                   run.ID,
			InsertedAt:              insertedAt,
		}
		if account.ParentAccountID != nil {
			row.ParentAccountID = bigquery.NullInt64{Int64: *account.ParentAccountID, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// TransactionRows maps normalized transactions onto staged rows stamped
// with the run's lineage.
func TransactionRows(transactions []domain.Transaction, run lineage.Run, insertedAt time.Time) ([]*TransactionRow, error) {
	rows := make([]*TransactionRow, 0, len(transactions))
	for _, tx := range transactions {
		lines, err := tx.LinesJSON()
		if err != nil {
			return nil, err
		}
		rows = append(rows, &TransactionRow{
			ID:                  tx.ID,
			Date:                tx.Date,
			TransactionType:     tx.TransactionType,
			TotalAmount:         tx.TotalAmount,
			CheckNumber:         nullString(tx.CheckNumber),
			UnitAgreement:       nullJSON(tx.UnitAgreement),
			UnitID:              nullInt64(tx.UnitID),
			UnitNumber:          nullString(tx.UnitNumber),
			PaymentDetail:       nullJSON(tx.PaymentDetail),
			DepositDetails:      nullJSON(tx.DepositDetails),
			JournalMemo:         nullString(tx.JournalMemo),
			Lines:               bigquery.NullJSON{JSONVal: string(lines), Valid: true},
			LastUpdatedDateTime: tx.LastUpdatedDateTime,
			RunID:               run.ID,
			InsertedAt:          insertedAt,
		})
	}
	return rows, nil
}

// AccountTransactionRows maps derived bridge rows onto staged rows stamped
// with the run's lineage.
func AccountTransactionRows(bridge []domain.AccountTransaction, run lineage.Run, insertedAt time.Time) []*AccountTransactionRow {
	rows := make([]*AccountTransactionRow, 0, len(bridge))
	for _, link := range bridge {
		rows = append(rows, &AccountTransactionRow{
			AccountID:     link.AccountID,
			TransactionID: link.TransactionID,
			RunID:         run.ID,
			InsertedAt:    insertedAt,
		})
	}
	return rows
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullInt64(v *int64) bigquery.NullInt64 {
	if v == nil {
		return bigquery.NullInt64{Valid: false}
	}
	return bigquery.NullInt64{Int64: *v, Valid: true}
}

func nullJSON(v domain.Value) bigquery.NullJSON {
	if v.IsNull() {
		return bigquery.NullJSON{Valid: false}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		// Value marshaling cannot fail for values built by ParseValue.
		return bigquery.NullJSON{Valid: false}
	}
	return bigquery.NullJSON{JSONVal: string(raw), Valid: true}
}
