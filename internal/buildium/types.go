// Package buildium is the extraction and validation collaborator: it fetches
// general ledger JSON from the Buildium API (or any local/GCS snapshot of it)
// and decodes it into typed source records. Downstream stages receive only
// records that passed the schema contract.
package buildium

import (
	"encoding/json"
	"time"

	"github.com/Matheus920/ledger-loader/internal/domain"
)

// SourceAccount mirrors one general ledger account as the Buildium API
// serves it, including one level of nested sub-accounts.
type SourceAccount struct {
	ID                      int64           `json:"Id"`
	AccountNumber           string          `json:"AccountNumber"`
	Name                    string          `json:"Name"`
	Description             string          `json:"Description"`
	Type                    string          `json:"Type"`
	SubType                 string          `json:"SubType"`
	IsDefaultGLAccount      bool            `json:"IsDefaultGLAccount"`
	DefaultAccountName      string          `json:"DefaultAccountName"`
	IsContraAccount         bool            `json:"IsContraAccount"`
	IsBankAccount           bool            `json:"IsBankAccount"`
	CashFlowClassification  string          `json:"CashFlowClassification"`
	ExcludeFromCashBalances bool            `json:"ExcludeFromCashBalances"`
	SubAccounts             []SourceAccount `json:"SubAccounts"`
	IsActive                bool            `json:"IsActive"`
	ParentGLAccountID       *int64          `json:"ParentGLAccountId"`
}

// SourceJournalLine is one journal line; the source embeds the full account
// object, of which only the id survives normalization.
type SourceJournalLine struct {
	GLAccount        SourceAccount `json:"GLAccount"`
	Amount           json.Number   `json:"Amount"`
	IsCashPosting    bool          `json:"IsCashPosting"`
	ReferenceNumber  string        `json:"ReferenceNumber"`
	Memo             string        `json:"Memo"`
	AccountingEntity domain.Value  `json:"AccountingEntity"`
}

// SourceJournal groups a transaction's memo and lines.
type SourceJournal struct {
	Memo  string              `json:"Memo"`
	Lines []SourceJournalLine `json:"Lines"`
}

// SourceTransaction mirrors one general ledger transaction as served by the
// API. Date and TotalAmount stay in wire form (string date, number text);
// the normalizer coerces them. UnitID is a pointer so an absent or null
// UnitId stays distinguishable from a literal zero.
type SourceTransaction struct {
	ID                  int64        `json:"Id"`
	Date                string       `json:"Date"`
	TransactionType     string       `json:"TransactionType"`
	TotalAmount         json.Number  `json:"TotalAmount"`
	CheckNumber         string       `json:"CheckNumber"`
	UnitAgreement       domain.Value `json:"UnitAgreement"`
	UnitID              *int64       `json:"UnitId"`
	UnitNumber          string       `json:"UnitNumber"`
	PaymentDetail       domain.Value `json:"PaymentDetail"`
	DepositDetails      domain.Value `json:"DepositDetails"`
	Journal             SourceJournal `json:"Journal"`
	LastUpdatedDateTime time.Time    `json:"LastUpdatedDateTime"`
}
