package buildium

import (
	"testing"
)

const accountsJSON = `[
	{"Id": 1, "Name": "Cash", "Type": "Asset", "SubType": "CurrentAsset",
	 "IsDefaultGLAccount": true, "IsContraAccount": false, "IsBankAccount": true,
	 "ExcludeFromCashBalances": false, "IsActive": true,
	 "SubAccounts": [
		{"Id": 2, "Name": "Petty Cash", "Type": "Asset", "SubType": "CurrentAsset",
		 "IsDefaultGLAccount": false, "IsContraAccount": false, "IsBankAccount": false,
		 "ExcludeFromCashBalances": false, "IsActive": true, "ParentGLAccountId": 1}
	 ]},
	{"Id": 0, "Name": "Broken", "Type": "Asset"}
]`

func TestDecodeAccounts_ExcludesInvalid(t *testing.T) {
	accounts, failures, err := DecodeAccounts([]byte(accountsJSON), DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeAccounts error: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("got %d valid accounts, want 1", len(accounts))
	}
	if accounts[0].ID != 1 || len(accounts[0].SubAccounts) != 1 {
		t.Errorf("unexpected account shape: %+v", accounts[0])
	}
	if len(failures) != 1 {
		t.Fatalf("got %d validation failures, want 1", len(failures))
	}
	if failures[0].Index != 1 || failures[0].Entity != "account" {
		t.Errorf("unexpected failure: %+v", failures[0])
	}
}

func TestDecodeAccounts_FailFast(t *testing.T) {
	_, failures, err := DecodeAccounts([]byte(accountsJSON), DecodeOptions{FailFast: true})
	if err == nil {
		t.Fatal("expected error with FailFast")
	}
	if len(failures) != 1 {
		t.Errorf("got %d failures, want 1", len(failures))
	}
}

func TestDecodeAccounts_MalformedPayload(t *testing.T) {
	if _, _, err := DecodeAccounts([]byte(`{"not": "an array"`), DecodeOptions{}); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestDecodeTransactions(t *testing.T) {
	raw := `[
		{"Id": 100, "Date": "2025-03-01", "TransactionType": "Charge", "TotalAmount": 125.5,
		 "CheckNumber": "", "UnitId": 7, "UnitNumber": "A1",
		 "LastUpdatedDateTime": "2025-03-01T10:00:00Z",
		 "Journal": {"Memo": "March rent", "Lines": [
			{"GLAccount": {"Id": 1, "Name": "Cash", "Type": "Asset"}, "Amount": 125.5,
			 "IsCashPosting": true, "Memo": "rent"}
		 ]}},
		{"Id": 101, "Date": "not-a-date", "TransactionType": "Charge", "TotalAmount": 10,
		 "LastUpdatedDateTime": "2025-03-01T10:00:00Z",
		 "Journal": {"Memo": "", "Lines": []}}
	]`

	txs, failures, err := DecodeTransactions([]byte(raw), DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeTransactions error: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d valid transactions, want 1", len(txs))
	}
	if txs[0].ID != 100 || len(txs[0].Journal.Lines) != 1 {
		t.Errorf("unexpected transaction shape: %+v", txs[0])
	}
	if txs[0].UnitID == nil || *txs[0].UnitID != 7 {
		t.Errorf("unit id = %v, want 7", txs[0].UnitID)
	}
	if len(failures) != 1 || failures[0].ID != 101 {
		t.Errorf("unexpected failures: %+v", failures)
	}
}

func TestDecodeTransactions_LineWithoutAccount(t *testing.T) {
	raw := `[
		{"Id": 100, "Date": "2025-03-01", "TransactionType": "Charge", "TotalAmount": 10,
		 "LastUpdatedDateTime": "2025-03-01T10:00:00Z",
		 "Journal": {"Memo": "", "Lines": [{"Amount": 10, "IsCashPosting": false, "Memo": ""}]}}
	]`

	txs, failures, err := DecodeTransactions([]byte(raw), DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeTransactions error: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("got %d valid transactions, want 0", len(txs))
	}
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
}
