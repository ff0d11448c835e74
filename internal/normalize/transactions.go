package normalize

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Matheus920/ledger-loader/internal/buildium"
	"github.com/Matheus920/ledger-loader/internal/domain"
)

const wireDateFormat = "2006-01-02"

var hundred = big.NewInt(100)

// NormalizeTransactions coerces source transactions into the persisted
// shape: wire dates become civil dates, amounts become fixed-point decimals
// quantized to two places, and the journal is flattened into journal_memo
// plus typed lines. Duplicate ids within the batch are dropped keeping the
// first occurrence, as the source extract can repeat a transaction once per
// participating account. The returned slice preserves input order; the
// second return value lists the ids of skipped duplicates.
func NormalizeTransactions(transactions []buildium.SourceTransaction) ([]domain.Transaction, []int64, error) {
	result := make([]domain.Transaction, 0, len(transactions))
	seen := make(map[int64]bool, len(transactions))
	var duplicates []int64

	for _, src := range transactions {
		if seen[src.ID] {
			duplicates = append(duplicates, src.ID)
			continue
		}
		seen[src.ID] = true

		tx, err := toTransaction(src)
		if err != nil {
			return nil, nil, fmt.Errorf("NormalizeTransactions: transaction %d: %w", src.ID, err)
		}
		result = append(result, tx)
	}

	return result, duplicates, nil
}

func toTransaction(src buildium.SourceTransaction) (domain.Transaction, error) {
	parsed, err := time.Parse(wireDateFormat, src.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid date %q: %w", src.Date, err)
	}

	total, err := Quantize2(src.TotalAmount.String())
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("total amount: %w", err)
	}

	lines := make([]domain.TransactionLine, 0, len(src.Journal.Lines))
	for i, line := range src.Journal.Lines {
		amount, err := Quantize2(line.Amount.String())
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("line %d amount: %w", i, err)
		}
		lines = append(lines, domain.TransactionLine{
			GLAccountID:      line.GLAccount.ID,
			Amount:           amount,
			IsCashPosting:    line.IsCashPosting,
			ReferenceNumber:  line.ReferenceNumber,
			Memo:             line.Memo,
			AccountingEntity: line.AccountingEntity,
		})
	}

	return domain.Transaction{
		ID:                  src.ID,
		Date:                civil.DateOf(parsed),
		TransactionType:     src.TransactionType,
		TotalAmount:         total,
		CheckNumber:         src.CheckNumber,
		UnitAgreement:       src.UnitAgreement,
		UnitID:              src.UnitID,
		UnitNumber:          src.UnitNumber,
		PaymentDetail:       src.PaymentDetail,
		DepositDetails:      src.DepositDetails,
		JournalMemo:         src.Journal.Memo,
		Lines:               lines,
		LastUpdatedDateTime: src.LastUpdatedDateTime.UTC(),
	}, nil
}

// Quantize2 parses a decimal number in text form and rounds it to exactly
// two decimal places, half away from zero. Amounts never pass through
// float64.
func Quantize2(text string) (*big.Rat, error) {
	rat, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("Quantize2: invalid decimal %q", text)
	}

	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(hundred))
	quo, rem := new(big.Int).QuoRem(scaled.Num(), scaled.Denom(), new(big.Int))
	if rem.Sign() != 0 {
		doubled := new(big.Int).Abs(rem)
		doubled.Lsh(doubled, 1)
		if doubled.Cmp(scaled.Denom()) >= 0 {
			if scaled.Num().Sign() < 0 {
				quo.Sub(quo, big.NewInt(1))
			} else {
				quo.Add(quo, big.NewInt(1))
			}
		}
	}
	return new(big.Rat).SetFrac(quo, hundred), nil
}
