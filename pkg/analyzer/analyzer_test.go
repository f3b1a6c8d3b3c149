package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/token-pulse/pkg/config"
	"github.com/token-pulse/pkg/helius"
)

type fakeFetcher struct {
	txs []helius.Transaction
	err error
}

func (f *fakeFetcher) FetchWindow(context.Context, string, time.Duration) ([]helius.Transaction, error) {
	return f.txs, f.err
}

func newTestAnalyzer(txs []helius.Transaction) *Analyzer {
	return New(&fakeFetcher{txs: txs}, config.DefaultThresholds())
}

func TestAnalyzeNoData(t *testing.T) {
	a := newTestAnalyzer(nil)
	if _, err := a.Analyze(context.Background(), targetMint, time.Hour); !errors.Is(err, ErrNoData) {
		t.Fatalf("got %v, want ErrNoData", err)
	}
}

func TestAnalyzePropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	a := New(&fakeFetcher{err: boom}, config.DefaultThresholds())
	if _, err := a.Analyze(context.Background(), targetMint, time.Hour); !errors.Is(err, boom) {
		t.Fatalf("got %v, want fetch error", err)
	}
}

// One wallet swapping 0.05 SOL every two seconds for two minutes: a market
// making bot whose trades all land in the smallest bucket.
func TestAnalyzeHighFrequencySingleWallet(t *testing.T) {
	const wallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	base := time.Now().Add(-3 * time.Minute).Unix()

	txs := make([]helius.Transaction, 60)
	for i := range txs {
		txs[i] = helius.Transaction{
			Signature:       fmt.Sprintf("sig-%d", i),
			Timestamp:       base + int64(i)*2,
			Type:            "SWAP",
			FeePayer:        wallet,
			NativeTransfers: []helius.NativeTransfer{sol(0.05)},
		}
	}

	a := newTestAnalyzer(txs)
	result, err := a.Analyze(context.Background(), targetMint, 5*time.Minute)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if result.TransactionCount != 60 {
		t.Errorf("transaction count = %d, want 60", result.TransactionCount)
	}
	if result.ActiveWallets != 1 {
		t.Errorf("active wallets = %d, want 1", result.ActiveWallets)
	}
	if result.TradingVelocity != 0.2 { // 60 txs / 300s
		t.Errorf("velocity = %v, want 0.2", result.TradingVelocity)
	}
	if math.Abs(result.TotalVolume-3.0) > 1e-9 {
		t.Errorf("total volume = %v, want 3.0", result.TotalVolume)
	}

	if got := result.VolumeDistribution[BucketVerySmall].Count; got != 60 {
		t.Errorf("very_small count = %d, want 60", got)
	}
	for _, b := range Buckets[1:] {
		if c := result.VolumeDistribution[b].Count; c != 0 {
			t.Errorf("bucket %s count = %d, want 0", b, c)
		}
	}

	if got := result.WalletCategories[wallet]; got != CategoryMarketMakingBot {
		t.Errorf("wallet categorized as %s, want %s", got, CategoryMarketMakingBot)
	}
	if result.Categories[CategoryMarketMakingBot] != 1 {
		t.Errorf("category counts = %v, want one market_making_bot", result.Categories)
	}
}

// A single 150 SOL transfer: very_large bucket, whale wallet.
func TestAnalyzeSingleWhaleTransfer(t *testing.T) {
	const wallet = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
	tx := helius.Transaction{
		Signature:       "whale-sig",
		Timestamp:       time.Now().Unix(),
		Type:            "TRANSFER",
		FeePayer:        wallet,
		NativeTransfers: []helius.NativeTransfer{sol(150)},
	}

	a := newTestAnalyzer([]helius.Transaction{tx})
	result, err := a.Analyze(context.Background(), targetMint, time.Hour)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if result.TransactionCount != 1 {
		t.Errorf("transaction count = %d, want 1", result.TransactionCount)
	}
	if got := result.VolumeDistribution[BucketVeryLarge].Count; got != 1 {
		t.Errorf("very_large count = %d, want 1", got)
	}
	if got := result.WalletCategories[wallet]; got != CategoryWhale {
		t.Errorf("wallet categorized as %s, want %s", got, CategoryWhale)
	}
	// 150 is below the large-transfer amount threshold.
	if result.Patterns["large_transfers"].Count != 0 {
		t.Errorf("large_transfers = %d, want 0", result.Patterns["large_transfers"].Count)
	}
}

// Bucket counts always sum to the number of transactions processed,
// regardless of the mix.
func TestAnalyzeBucketCountsSum(t *testing.T) {
	base := time.Now().Unix()
	amounts := []float64{0.01, 0.5, 5, 50, 500, 0.2, 7, 120}
	txs := make([]helius.Transaction, len(amounts))
	for i, amt := range amounts {
		txs[i] = helius.Transaction{
			Signature:       fmt.Sprintf("sig-%d", i),
			Timestamp:       base + int64(i)*30,
			Type:            "TRANSFER",
			FeePayer:        fmt.Sprintf("wallet-%d", i%3),
			NativeTransfers: []helius.NativeTransfer{sol(amt)},
		}
	}

	a := newTestAnalyzer(txs)
	result, err := a.Analyze(context.Background(), targetMint, time.Hour)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	total := 0
	for _, b := range Buckets {
		total += result.VolumeDistribution[b].Count
	}
	if total != len(amounts) {
		t.Errorf("bucket counts sum to %d, want %d", total, len(amounts))
	}
	if result.ActiveWallets != 3 {
		t.Errorf("active wallets = %d, want 3", result.ActiveWallets)
	}
	if len(result.RecentTransactions) != 5 {
		t.Fatalf("recent transactions = %d, want 5", len(result.RecentTransactions))
	}
	// Newest first.
	if result.RecentTransactions[0].Timestamp < result.RecentTransactions[1].Timestamp {
		t.Error("recent transactions not newest-first")
	}
}

// Consecutive swaps at diverging implied prices produce price metrics and
// high-slippage counts.
func TestAnalyzePriceMetricsAndSlippage(t *testing.T) {
	base := time.Now().Unix()
	prices := []float64{1.0, 1.2, 1.1, 2.0}
	txs := make([]helius.Transaction, len(prices))
	for i, p := range prices {
		txs[i] = helius.Transaction{
			Signature: fmt.Sprintf("sig-%d", i),
			Timestamp: base + int64(i)*120,
			Type:      "SWAP",
			FeePayer:  fmt.Sprintf("wallet-%d", i),
			TokenTransfers: []helius.TokenTransfer{
				{Mint: targetMint, TokenAmount: 100},
				{Mint: counterMint, TokenAmount: p * 100},
			},
		}
	}

	a := newTestAnalyzer(txs)
	result, err := a.Analyze(context.Background(), targetMint, time.Hour)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	pm := result.PriceMetrics
	if pm == nil {
		t.Fatal("expected price metrics")
	}
	if pm.StartPrice != 1.0 || pm.EndPrice != 2.0 {
		t.Errorf("start/end = %v/%v, want 1.0/2.0", pm.StartPrice, pm.EndPrice)
	}
	if math.Abs(pm.PriceChangePct-100) > 1e-9 {
		t.Errorf("price change = %v%%, want 100%%", pm.PriceChangePct)
	}
	if pm.MaxPrice != 2.0 || pm.MinPrice != 1.0 {
		t.Errorf("min/max = %v/%v, want 1.0/2.0", pm.MinPrice, pm.MaxPrice)
	}
	// Every step moves more than 5%.
	if got := result.Patterns["high_slippage"].Count; got != 3 {
		t.Errorf("high_slippage = %d, want 3", got)
	}
}
