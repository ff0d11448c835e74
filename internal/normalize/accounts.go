// Package normalize converts validated source records into the persisted
// entity shapes: flattened accounts, transformed transactions, and derived
// account/transaction bridge rows. Every function here is pure: no I/O, no
// side effects, deterministic output for identical input.
package normalize

import (
	"fmt"

	"github.com/Matheus920/ledger-loader/internal/buildium"
	"github.com/Matheus920/ledger-loader/internal/domain"
)

// HierarchyAnomaly flags an account whose hierarchy exceeds one level. The
// record is still loaded with its raw parent reference; the anomaly is
// surfaced to the caller as a warning.
type HierarchyAnomaly struct {
	AccountID       int64
	ParentAccountID int64
	Reason          string
}

func (a HierarchyAnomaly) String() string {
	return fmt.Sprintf("account %d (parent %d): %s", a.AccountID, a.ParentAccountID, a.Reason)
}

// FlattenAccounts maps each source account 1:1 onto the Account shape and
// appends its sub-accounts, assuming a single level of nesting. Parent
// references are carried through unchanged. A sub-account that itself has
// sub-accounts, or an account whose parent also has a parent, is flagged as
// a hierarchy anomaly rather than collapsed silently; nesting below the
// first level is never recursed into.
//
// An account id appearing more than once in the extract (for example as
// both a top-level record and a sub-account) keeps its first occurrence;
// later occurrences are dropped and their ids returned so the flattened
// slice never carries two rows for the same key.
func FlattenAccounts(accounts []buildium.SourceAccount) ([]domain.Account, []HierarchyAnomaly, []int64) {
	flattened := make([]domain.Account, 0, len(accounts))
	var anomalies []HierarchyAnomaly
	var duplicates []int64
	seen := make(map[int64]struct{}, len(accounts))

	keep := func(account domain.Account) {
		if _, ok := seen[account.ID]; ok {
			duplicates = append(duplicates, account.ID)
			return
		}
		seen[account.ID] = struct{}{}
		flattened = append(flattened, account)
	}

	for _, account := range accounts {
		keep(toAccount(account))
		for _, sub := range account.SubAccounts {
			keep(toAccount(sub))
			if len(sub.SubAccounts) > 0 {
				anomalies = append(anomalies, HierarchyAnomaly{
					AccountID:       sub.ID,
					ParentAccountID: account.ID,
					Reason:          fmt.Sprintf("sub-account carries %d nested sub-accounts beyond the supported single level", len(sub.SubAccounts)),
				})
			}
		}
	}

	// Parents must be roots: an account whose parent is itself a child
	// violates the depth bound.
	parentOf := make(map[int64]*int64, len(flattened))
	for _, account := range flattened {
		parentOf[account.ID] = account.ParentAccountID
	}
	for _, account := range flattened {
		if account.ParentAccountID == nil {
			continue
		}
		grandparent, known := parentOf[*account.ParentAccountID]
		if known && grandparent != nil {
			anomalies = append(anomalies, HierarchyAnomaly{
				AccountID:       account.ID,
				ParentAccountID: *account.ParentAccountID,
				Reason:          fmt.Sprintf("parent account %d is itself a child of %d", *account.ParentAccountID, *grandparent),
			})
		}
	}

	return flattened, anomalies, duplicates
}

func toAccount(src buildium.SourceAccount) domain.Account {
	return domain.Account{
		ID:                      src.ID,
		AccountNumber:           src.AccountNumber,
		Name:                    src.Name,
		Description:             src.Description,
		Type:                    src.Type,
		SubType:                 src.SubType,
		IsDefaultGLAccount:      src.IsDefaultGLAccount,
		DefaultAccountName:      src.DefaultAccountName,
		IsContraAccount:         src.IsContraAccount,
		IsBankAccount:           src.IsBankAccount,
		CashFlowClassification:  src.CashFlowClassification,
		ExcludeFromCashBalances: src.ExcludeFromCashBalances,
		IsActive:                src.IsActive,
		ParentAccountID:         src.ParentGLAccountID,
	}
}
