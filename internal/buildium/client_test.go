package buildium

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestClient_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, server.Client())
	client.backoff = time.Millisecond // keep the test fast

	body, err := client.GeneralLedgerAccounts(context.Background())
	if err != nil {
		t.Fatalf("GeneralLedgerAccounts error: %v", err)
	}
	if string(body) != "[]" {
		t.Errorf("body = %s, want []", body)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestClient_RateLimitExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, server.Client())
	client.backoff = time.Millisecond

	if _, err := client.GeneralLedgerAccounts(context.Background()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestClient_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, server.Client())
	if _, err := client.GeneralLedgerAccounts(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestClient_TransactionsDateParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("startdate") != "2025-01-01" || q.Get("enddate") != "2025-01-31" {
			t.Errorf("unexpected date params: %v", q)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL, server.Client())
	start := civil.Date{Year: 2025, Month: 1, Day: 1}
	end := civil.Date{Year: 2025, Month: 1, Day: 31}
	if _, err := client.GeneralLedgerTransactions(context.Background(), start, end); err != nil {
		t.Fatalf("GeneralLedgerTransactions error: %v", err)
	}
}
