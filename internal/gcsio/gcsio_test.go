package gcsio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "valid URI",
			uri:        "gs://ledger-sources/2026-02/accounts.json",
			wantBucket: "ledger-sources",
			wantObject: "2026-02/accounts.json",
		},
		{
			name:    "missing object path",
			uri:     "gs://ledger-sources",
			wantErr: true,
		},
		{
			name:    "empty object path",
			uri:     "gs://ledger-sources/",
			wantErr: true,
		},
		{
			name:    "not a GCS URI",
			uri:     "/tmp/accounts.json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseURI(%q) = (%q, %q), want error", tt.uri, bucket, object)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURI(%q): %v", tt.uri, err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)",
					tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	if err := os.WriteFile(path, []byte(`[{"Id": 40}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := Fetch(context.Background(), path)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != `[{"Id": 40}]` {
		t.Errorf("Fetch = %q, want file contents", data)
	}
}

func TestFetchMissingLocalFile(t *testing.T) {
	if _, err := Fetch(context.Background(), filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("Fetch on a missing file should fail")
	}
}
