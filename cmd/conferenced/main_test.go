package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadBootstrapCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "users.csv")
	contents := "u1,Ada Lovelace,correct horse,false\n" +
		",Grace Hopper,secret,false\n" +
		"u3,Zeus, ,TRUE\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, err := readBootstrapCSV(path)
	if err != nil {
		t.Fatalf("readBootstrapCSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "u1" || records[0].FullName != "Ada Lovelace" || records[0].IsGod {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].ID != "" {
		t.Fatalf("blank ID should stay blank for allocation at import, got %q", records[1].ID)
	}
	if !records[2].IsGod {
		t.Fatal("is_god column should parse case-insensitively")
	}
}

func TestReadBootstrapCSVRejectsShortRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "users.csv")
	if err := os.WriteFile(path, []byte("u1,Ada\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := readBootstrapCSV(path); err == nil {
		t.Fatal("rows with missing columns should be rejected")
	}
}
