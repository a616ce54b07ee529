package dataset

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/sentinel/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestSourceTransactions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileTransactions, `[
		{"txn_id": 1, "event_time": "2024-03-01T10:00:00", "user_id": "u_001",
		 "account_id": "acc_001", "event_type": "deposit", "amount": 1500.5,
		 "currency": "usd", "channel": "web", "transaction_country": "US",
		 "amount_in_1d": 1500.5, "login_count_1h": 2}
	]`)

	src := New(dir)
	txns, err := src.Transactions()
	if err != nil {
		t.Fatalf("Transactions() error: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}

	txn := txns[0]
	if txn.TxnID != 1 {
		t.Errorf("expected txn_id 1, got %d", txn.TxnID)
	}
	if txn.UserID != "u_001" {
		t.Errorf("expected user u_001, got %s", txn.UserID)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !txn.EventTime.Equal(want) {
		t.Errorf("expected event_time %v, got %v", want, txn.EventTime.Time)
	}
	if txn.AmountIn1d != 1500.5 {
		t.Errorf("expected amount_in_1d 1500.5, got %f", txn.AmountIn1d)
	}
	if txn.LoginCount1h != 2 {
		t.Errorf("expected login_count_1h 2, got %d", txn.LoginCount1h)
	}
}

func TestSourceRawTransactionsZeroAggregates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileRawTransactions, `[
		{"txn_id": 7, "event_time": "2024-03-01 10:00:00", "user_id": "u_002",
		 "account_id": "acc_002", "event_type": "withdrawal", "amount": -250,
		 "currency": "EUR", "channel": "mobile", "transaction_country": "DE"}
	]`)

	src := New(dir)
	txns, err := src.RawTransactions()
	if err != nil {
		t.Fatalf("RawTransactions() error: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	txn := txns[0]
	if txn.AmountIn1d != 0 || txn.AmountOut1d != 0 || txn.LoginCount1h != 0 {
		t.Errorf("raw transaction should decode with zero aggregates, got %+v", txn)
	}
}

func TestSourceTransactionsForMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileTransactions, `[{"txn_id": 1, "event_time": "2024-01-01T00:00:00Z", "user_id": "a", "account_id": "a1", "event_type": "deposit", "amount": 1}]`)
	writeFile(t, dir, FileRawTransactions, `[{"txn_id": 2, "event_time": "2024-01-01T00:00:00Z", "user_id": "b", "account_id": "b1", "event_type": "deposit", "amount": 2}]`)

	src := New(dir)

	b1, err := src.TransactionsForMode(domain.ModePreAggregated)
	if err != nil {
		t.Fatalf("mode b1: %v", err)
	}
	if b1[0].TxnID != 1 {
		t.Errorf("mode b1 should read %s, got txn %d", FileTransactions, b1[0].TxnID)
	}

	b2, err := src.TransactionsForMode(domain.ModeRawEvents)
	if err != nil {
		t.Fatalf("mode b2: %v", err)
	}
	if b2[0].TxnID != 2 {
		t.Errorf("mode b2 should read %s, got txn %d", FileRawTransactions, b2[0].TxnID)
	}
}

func TestSourceMissingFile(t *testing.T) {
	src := New(t.TempDir())
	_, err := src.Profiles()
	if err == nil {
		t.Fatal("expected error for missing profiles file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected wrapped fs.ErrNotExist, got %v", err)
	}
}

func TestSourceMemoizes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileProfiles, `[{"user_id": "u_001", "declared_income": 50000, "residence_country": "US"}]`)

	src := New(dir)
	first, err := src.Profiles()
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	// Remove the file; the memoized copy must still serve.
	if err := os.Remove(filepath.Join(dir, FileProfiles)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	second, err := src.Profiles()
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(first) != len(second) || second[0].UserID != "u_001" {
		t.Errorf("memoized load mismatch: %+v vs %+v", first, second)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := newLRUCache(2)
	c.set("a", 1)
	c.set("b", 2)
	c.set("c", 3)

	if c.len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", c.len())
	}
	if _, ok := c.get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if v, ok := c.get("c"); !ok || v.(int) != 3 {
		t.Error("newest entry should survive eviction")
	}
}
