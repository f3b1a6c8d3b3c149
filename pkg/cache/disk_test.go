package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/token-pulse/pkg/helius"
)

const testAddr = "So11111111111111111111111111111111111111112"

func testTxs(n int, newest time.Time) []helius.Transaction {
	txs := make([]helius.Transaction, n)
	for i := range txs {
		txs[i] = helius.Transaction{
			Signature: string(rune('a' + i)),
			Timestamp: newest.Add(-time.Duration(i) * time.Second).Unix(),
		}
	}
	return txs
}

func TestDiskRoundTrip(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	ctx := context.Background()
	now := time.Now()

	txs := testTxs(10, now)
	d.Put(ctx, testAddr, txs)

	got, ok := d.Get(ctx, testAddr, 60*time.Second, now.Add(-time.Hour))
	if !ok {
		t.Fatal("expected cache hit within TTL")
	}
	if len(got) != 10 {
		t.Errorf("got %d transactions, want 10", len(got))
	}
}

func TestDiskGetFiltersToCutoff(t *testing.T) {
	d, _ := NewDisk(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	// 10 transactions, one per second going backwards.
	d.Put(ctx, testAddr, testTxs(10, now))

	got, ok := d.Get(ctx, testAddr, 60*time.Second, now.Add(-5*time.Second))
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 6 { // offsets 0..5 inclusive
		t.Errorf("got %d transactions after cutoff filter, want 6", len(got))
	}
}

func TestDiskExpiredTTLIsMiss(t *testing.T) {
	dir := t.TempDir()
	d, _ := NewDisk(dir)
	ctx := context.Background()
	now := time.Now()

	d.Put(ctx, testAddr, testTxs(3, now))

	// Age the file past the TTL.
	stale := now.Add(-5 * time.Minute)
	if err := os.Chtimes(d.path(testAddr), stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, ok := d.Get(ctx, testAddr, 60*time.Second, now.Add(-time.Hour)); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestDiskMalformedFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	d, _ := NewDisk(dir)
	ctx := context.Background()

	p := filepath.Join(dir, testAddr+".json")
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, ok := d.Get(ctx, testAddr, 60*time.Second, time.Now().Add(-time.Hour)); ok {
		t.Error("expected miss for malformed cache file")
	}
	// The file stays in place; the next Put overwrites it.
	if _, err := os.Stat(p); err != nil {
		t.Errorf("malformed file was removed: %v", err)
	}
}

func TestDiskNothingInWindowIsMiss(t *testing.T) {
	d, _ := NewDisk(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	d.Put(ctx, testAddr, testTxs(3, now.Add(-time.Hour)))

	if _, ok := d.Get(ctx, testAddr, 60*time.Second, now.Add(-time.Minute)); ok {
		t.Error("expected miss when no cached entry falls inside the window")
	}
}

func TestDiskMissingFileIsMiss(t *testing.T) {
	d, _ := NewDisk(t.TempDir())
	if _, ok := d.Get(context.Background(), testAddr, time.Minute, time.Now()); ok {
		t.Error("expected miss for absent cache file")
	}
}

func TestDiskLastWriterWins(t *testing.T) {
	d, _ := NewDisk(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	d.Put(ctx, testAddr, testTxs(3, now))
	d.Put(ctx, testAddr, testTxs(7, now))

	got, ok := d.Get(ctx, testAddr, time.Minute, now.Add(-time.Hour))
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 7 {
		t.Errorf("got %d transactions, want the second writer's 7", len(got))
	}
}
