package domain

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestValueRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"null", `null`, `null`},
		{"bool", `true`, `true`},
		{"integer", `42`, `42`},
		{"decimal keeps precision", `10.10`, `10.10`},
		{"string", `"memo"`, `"memo"`},
		{"array", `[1,"a",false]`, `[1,"a",false]`},
		{"object keys sorted", `{"b":2,"a":1}`, `{"a":1,"b":2}`},
		{"nested", `{"Unit":{"Id":7,"Href":"x"}}`, `{"Unit":{"Href":"x","Id":7}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseValue([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseValue(%q) error: %v", tt.raw, err)
			}
			got, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("round trip = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValueEqual(t *testing.T) {
	a, _ := ParseValue([]byte(`{"x":1,"y":[true,"z"]}`))
	b, _ := ParseValue([]byte(`{"y":[true,"z"],"x":1}`))
	c, _ := ParseValue([]byte(`{"x":2,"y":[true,"z"]}`))

	if !a.Equal(b) {
		t.Error("expected a == b regardless of key order")
	}
	if a.Equal(c) {
		t.Error("expected a != c")
	}
}

func TestValueUnmarshalInStruct(t *testing.T) {
	var payload struct {
		Detail Value `json:"PaymentDetail"`
	}
	raw := `{"PaymentDetail":{"PaymentMethod":"Check","Payee":null}}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if payload.Detail.Kind() != KindObject {
		t.Errorf("Kind = %d, want object", payload.Detail.Kind())
	}
}

func TestTransactionLineMarshalJSON(t *testing.T) {
	line := TransactionLine{
		GLAccountID:      40,
		Amount:           big.NewRat(105, 10), // 10.5
		IsCashPosting:    true,
		Memo:             "rent",
		AccountingEntity: Null(),
	}

	got, err := json.Marshal(line)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"general_ledger_account_id":40,"amount":10.50,"is_cash_posting":true,"reference_number":"","memo":"rent","accounting_entity":null}`
	if string(got) != want {
		t.Errorf("line JSON = %s, want %s", got, want)
	}
}

func TestTransactionLinesJSON_Empty(t *testing.T) {
	tx := Transaction{ID: 1}
	raw, err := tx.LinesJSON()
	if err != nil {
		t.Fatalf("LinesJSON error: %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("empty lines = %s, want []", raw)
	}
}
