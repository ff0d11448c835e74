package domain

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/civil"
)

// TransactionLine is one journal line of a transaction. The nested source
// account is reduced to its id; the rest of the line rides along into the
// opaque lines payload.
type TransactionLine struct {
	GLAccountID      int64
	Amount           *big.Rat
	IsCashPosting    bool
	ReferenceNumber  string
	Memo             string
	AccountingEntity Value
}

// MarshalJSON renders the line the way it is stored in the warehouse lines
// column: snake_case keys and a fixed two-decimal amount.
func (l TransactionLine) MarshalJSON() ([]byte, error) {
	amount := "0.00"
	if l.Amount != nil {
		amount = l.Amount.FloatString(2)
	}
	return json.Marshal(struct {
		GLAccountID      int64       `json:"general_ledger_account_id"`
		Amount           json.Number `json:"amount"`
		IsCashPosting    bool        `json:"is_cash_posting"`
		ReferenceNumber  string      `json:"reference_number"`
		Memo             string      `json:"memo"`
		AccountingEntity Value       `json:"accounting_entity"`
	}{
		GLAccountID:      l.GLAccountID,
		Amount:           json.Number(amount),
		IsCashPosting:    l.IsCashPosting,
		ReferenceNumber:  l.ReferenceNumber,
		Memo:             l.Memo,
		AccountingEntity: l.AccountingEntity,
	})
}

// Transaction is a normalized general ledger transaction. The journal is
// flattened to JournalMemo plus Lines; unit agreement, payment detail and
// deposit details stay opaque structured payloads. Amounts are fixed-point
// with two decimal places, never floats.
type Transaction struct {
	ID                  int64
	Date                civil.Date
	TransactionType     string
	TotalAmount         *big.Rat
	CheckNumber         string
	UnitAgreement       Value
	UnitID              *int64
	UnitNumber          string
	PaymentDetail       Value
	DepositDetails      Value
	JournalMemo         string
	Lines               []TransactionLine
	LastUpdatedDateTime time.Time
}

// LinesJSON renders the lines payload for storage. An empty lines slice
// renders as an empty JSON array, not null.
func (t Transaction) LinesJSON() (json.RawMessage, error) {
	if len(t.Lines) == 0 {
		return json.RawMessage("[]"), nil
	}
	return json.Marshal(t.Lines)
}
