package buildium

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

const wireDateFormat = "2006-01-02"

// ValidationError describes one source record that failed the schema
// contract. Invalid records are excluded from the batch; the run continues
// unless FailFast is set.
type ValidationError struct {
	Entity string // "account" or "transaction"
	Index  int    // position in the source sequence
	ID     int64  // source id when one could be read, 0 otherwise
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s[%d] (id=%d): %s", e.Entity, e.Index, e.ID, e.Reason)
}

// DecodeOptions controls validation behavior.
type DecodeOptions struct {
	// FailFast aborts decoding on the first invalid record instead of
	// excluding it and continuing.
	FailFast bool
}

// DecodeAccounts parses a JSON array of general ledger accounts and applies
// the schema contract. It returns the valid records, the per-record
// validation failures, and a non-nil error only when the payload itself is
// unusable (malformed JSON, or FailFast tripped).
func DecodeAccounts(raw []byte, opts DecodeOptions) ([]SourceAccount, []*ValidationError, error) {
	var accounts []SourceAccount
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, nil, fmt.Errorf("DecodeAccounts: parsing payload: %w", err)
	}

	valid := make([]SourceAccount, 0, len(accounts))
	var failures []*ValidationError
	for i, account := range accounts {
		if reason := checkAccount(account); reason != "" {
			vErr := &ValidationError{Entity: "account", Index: i, ID: account.ID, Reason: reason}
			if opts.FailFast {
				return nil, []*ValidationError{vErr}, vErr
			}
			failures = append(failures, vErr)
			continue
		}
		valid = append(valid, account)
	}
	return valid, failures, nil
}

func checkAccount(account SourceAccount) string {
	if account.ID <= 0 {
		return "missing or non-positive Id"
	}
	if account.Name == "" {
		return "missing Name"
	}
	if account.Type == "" {
		return "missing Type"
	}
	for _, sub := range account.SubAccounts {
		if reason := checkAccount(sub); reason != "" {
			return fmt.Sprintf("sub-account %d: %s", sub.ID, reason)
		}
	}
	return ""
}

// DecodeTransactions parses a JSON array of general ledger transactions and
// applies the schema contract, with the same exclusion semantics as
// DecodeAccounts.
func DecodeTransactions(raw []byte, opts DecodeOptions) ([]SourceTransaction, []*ValidationError, error) {
	var transactions []SourceTransaction
	if err := json.Unmarshal(raw, &transactions); err != nil {
		return nil, nil, fmt.Errorf("DecodeTransactions: parsing payload: %w", err)
	}

	valid := make([]SourceTransaction, 0, len(transactions))
	var failures []*ValidationError
	for i, tx := range transactions {
		if reason := checkTransaction(tx); reason != "" {
			vErr := &ValidationError{Entity: "transaction", Index: i, ID: tx.ID, Reason: reason}
			if opts.FailFast {
				return nil, []*ValidationError{vErr}, vErr
			}
			failures = append(failures, vErr)
			continue
		}
		valid = append(valid, tx)
	}
	return valid, failures, nil
}

func checkTransaction(tx SourceTransaction) string {
	if tx.ID <= 0 {
		return "missing or non-positive Id"
	}
	if tx.TransactionType == "" {
		return "missing TransactionType"
	}
	if _, err := time.Parse(wireDateFormat, tx.Date); err != nil {
		return fmt.Sprintf("invalid Date %q", tx.Date)
	}
	if _, ok := new(big.Rat).SetString(tx.TotalAmount.String()); !ok {
		return fmt.Sprintf("invalid TotalAmount %q", tx.TotalAmount.String())
	}
	for j, line := range tx.Journal.Lines {
		if line.GLAccount.ID <= 0 {
			return fmt.Sprintf("journal line %d: missing GLAccount.Id", j)
		}
		if _, ok := new(big.Rat).SetString(line.Amount.String()); !ok {
			return fmt.Sprintf("journal line %d: invalid Amount %q", j, line.Amount.String())
		}
	}
	return ""
}
