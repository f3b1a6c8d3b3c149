package analyzer

import (
	"testing"

	"github.com/token-pulse/pkg/config"
	"github.com/token-pulse/pkg/helius"
)

const (
	targetMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	counterMint = "So11111111111111111111111111111111111111112"
)

func newTestClassifier() *Classifier {
	return NewClassifier(targetMint, config.DefaultThresholds())
}

func sol(amount float64) helius.NativeTransfer {
	return helius.NativeTransfer{Amount: int64(amount * 1e9)}
}

func TestResolveValueOrder(t *testing.T) {
	c := newTestClassifier()

	cases := []struct {
		name       string
		tx         helius.Transaction
		wantAmount float64
		wantNative bool
	}{
		{
			name: "swap with native legs uses summed SOL",
			tx: helius.Transaction{
				Type:            "SWAP",
				TokenTransfers:  []helius.TokenTransfer{{Mint: targetMint, TokenAmount: 5000}},
				NativeTransfers: []helius.NativeTransfer{sol(1.5), sol(0.5)},
			},
			wantAmount: 2.0,
			wantNative: true,
		},
		{
			name: "swap without native legs falls back to token amount",
			tx: helius.Transaction{
				Type: "SWAP",
				TokenTransfers: []helius.TokenTransfer{
					{Mint: targetMint, TokenAmount: -5000},
					{Mint: counterMint, TokenAmount: 20},
				},
			},
			wantAmount: 5000,
			wantNative: false,
		},
		{
			name: "transfer with native legs",
			tx: helius.Transaction{
				Type:            "TRANSFER",
				NativeTransfers: []helius.NativeTransfer{sol(0.25)},
			},
			wantAmount: 0.25,
			wantNative: true,
		},
		{
			name: "transfer with only token legs uses first target match",
			tx: helius.Transaction{
				Type: "TRANSFER",
				TokenTransfers: []helius.TokenTransfer{
					{Mint: counterMint, TokenAmount: 99},
					{Mint: targetMint, TokenAmount: 123},
				},
			},
			wantAmount: 123,
			wantNative: false,
		},
		{
			name:       "nothing matching resolves to zero",
			tx:         helius.Transaction{Type: "TRANSFER"},
			wantAmount: 0,
			wantNative: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := c.Classify(&tc.tx, 0)
			if obs.Valued.Amount != tc.wantAmount {
				t.Errorf("amount = %v, want %v", obs.Valued.Amount, tc.wantAmount)
			}
			if obs.Valued.IsNativeValue != tc.wantNative {
				t.Errorf("isNative = %v, want %v", obs.Valued.IsNativeValue, tc.wantNative)
			}
		})
	}
}

func TestBucketThresholds(t *testing.T) {
	c := newTestClassifier()

	native := []struct {
		amount float64
		want   Bucket
	}{
		{0.05, BucketVerySmall}, {0.1, BucketSmall}, {0.5, BucketSmall},
		{5, BucketMedium}, {50, BucketLarge}, {150, BucketVeryLarge},
	}
	for _, tc := range native {
		if got := c.bucketFor(tc.amount, true); got != tc.want {
			t.Errorf("native %v: got %s, want %s", tc.amount, got, tc.want)
		}
	}

	token := []struct {
		amount float64
		want   Bucket
	}{
		{50, BucketVerySmall}, {500, BucketSmall}, {5_000, BucketMedium},
		{50_000, BucketLarge}, {500_000, BucketVeryLarge},
	}
	for _, tc := range token {
		if got := c.bucketFor(tc.amount, false); got != tc.want {
			t.Errorf("token %v: got %s, want %s", tc.amount, got, tc.want)
		}
	}
}

// Every transaction lands in exactly one bucket; bucket counts sum to the
// number processed.
func TestBucketCountsSumToProcessed(t *testing.T) {
	c := newTestClassifier()
	acc := NewAccumulator()

	amounts := []float64{0, 0.05, 0.3, 2, 15, 250, 0.7, 99, 101}
	for _, a := range amounts {
		tx := helius.Transaction{Type: "TRANSFER", NativeTransfers: []helius.NativeTransfer{sol(a)}}
		acc.Fold(c.Classify(&tx, 0))
	}

	total := 0
	for _, b := range Buckets {
		total += acc.Buckets[b].Count
	}
	if total != len(amounts) {
		t.Errorf("bucket counts sum to %d, want %d", total, len(amounts))
	}
	if acc.Processed != len(amounts) {
		t.Errorf("processed = %d, want %d", acc.Processed, len(amounts))
	}
}

func TestDetectFlashLoan(t *testing.T) {
	c := newTestClassifier()

	roundTrip := helius.Transaction{
		Type: "SWAP",
		TokenTransfers: []helius.TokenTransfer{
			{Mint: counterMint, TokenAmount: 500}, // borrow
			{Mint: counterMint, TokenAmount: 500}, // repay: net returns to ~0
		},
	}
	if !c.Classify(&roundTrip, 0).FlashLoan {
		t.Error("round-trip transfer not flagged as flash loan")
	}

	oneWay := helius.Transaction{
		Type: "SWAP",
		TokenTransfers: []helius.TokenTransfer{
			{Mint: counterMint, TokenAmount: 500},
			{Mint: counterMint, TokenAmount: 300},
		},
	}
	if c.Classify(&oneWay, 0).FlashLoan {
		t.Error("unbalanced transfers flagged as flash loan")
	}
}

func TestHighSlippage(t *testing.T) {
	c := newTestClassifier()

	swapAt := func(price float64) helius.Transaction {
		return helius.Transaction{
			Type: "SWAP",
			TokenTransfers: []helius.TokenTransfer{
				{Mint: targetMint, TokenAmount: 100},
				{Mint: counterMint, TokenAmount: price * 100},
			},
		}
	}

	first := swapAt(1.0)
	obs := c.Classify(&first, 0)
	if obs.HighSlippage {
		t.Error("first swap flagged with no prior price")
	}
	if obs.ImpliedPrice != 1.0 {
		t.Fatalf("implied price = %v, want 1.0", obs.ImpliedPrice)
	}

	big := swapAt(1.10) // 10% move
	if !c.Classify(&big, obs.ImpliedPrice).HighSlippage {
		t.Error("10%% price move not flagged as high slippage")
	}

	small := swapAt(1.02) // 2% move
	if c.Classify(&small, obs.ImpliedPrice).HighSlippage {
		t.Error("2%% price move flagged as high slippage")
	}
}

func TestAccumulatorFoldVolumeByType(t *testing.T) {
	c := newTestClassifier()
	acc := NewAccumulator()

	swap := helius.Transaction{
		Type:            "SWAP",
		TokenTransfers:  []helius.TokenTransfer{{Mint: targetMint, TokenAmount: 10}},
		NativeTransfers: []helius.NativeTransfer{sol(3)},
	}
	transfer := helius.Transaction{
		Type:            "TRANSFER",
		NativeTransfers: []helius.NativeTransfer{sol(1)},
	}
	acc.Fold(c.Classify(&swap, 0))
	acc.Fold(c.Classify(&transfer, 0))

	if acc.Patterns["swaps"] != 1 || acc.Patterns["transfers"] != 1 {
		t.Errorf("pattern counts wrong: swaps=%d transfers=%d", acc.Patterns["swaps"], acc.Patterns["transfers"])
	}
	if acc.VolumeByType["swaps"] != 3 {
		t.Errorf("swap volume = %v, want 3", acc.VolumeByType["swaps"])
	}
	if acc.TotalVolume != 4 {
		t.Errorf("total volume = %v, want 4", acc.TotalVolume)
	}
}
