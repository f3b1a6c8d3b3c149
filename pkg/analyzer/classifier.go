package analyzer

import (
	"math"

	"github.com/token-pulse/pkg/config"
	"github.com/token-pulse/pkg/helius"
)

type Bucket string

const (
	BucketVerySmall Bucket = "very_small"
	BucketSmall     Bucket = "small"
	BucketMedium    Bucket = "medium"
	BucketLarge     Bucket = "large"
	BucketVeryLarge Bucket = "very_large"
)

// Buckets in ascending size order.
var Buckets = []Bucket{BucketVerySmall, BucketSmall, BucketMedium, BucketLarge, BucketVeryLarge}

type BucketTotals struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// ValuedTransaction is a fetched transaction with its resolved monetary
// magnitude attached. IsNativeValue reports whether Amount is in SOL rather
// than target-token units.
type ValuedTransaction struct {
	Signature     string  `json:"signature"`
	Wallet        string  `json:"wallet"`
	Timestamp     int64   `json:"timestamp"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	IsNativeValue bool    `json:"is_native_value"`

	// Derived flags, filled in during aggregation / classification.
	Rapid        bool `json:"rapid"`
	FlashLoan    bool `json:"flash_loan"`
	HighSlippage bool `json:"high_slippage"`
}

// Observation is the result of classifying one transaction. The caller folds
// it into an Accumulator; the classifier itself keeps no running counters.
type Observation struct {
	Valued       ValuedTransaction
	Bucket       Bucket
	Swap         bool
	Transfer     bool
	FlashLoan    bool
	HighSlippage bool
	ImpliedPrice float64 // counter-leg / target-leg, 0 if not computable
}

// Classifier resolves transaction values against one target token and
// detects per-transaction patterns.
type Classifier struct {
	mint string
	th   config.Thresholds
}

func NewClassifier(mint string, th config.Thresholds) *Classifier {
	return &Classifier{mint: mint, th: th}
}

// Classify derives the transaction's value, bucket, and pattern flags.
// prevPrice is the most recently observed implied price for the target token
// (zero when none has been seen yet); it feeds the slippage check.
func (c *Classifier) Classify(tx *helius.Transaction, prevPrice float64) Observation {
	amount, native := c.resolveValue(tx)

	obs := Observation{
		Valued: ValuedTransaction{
			Signature:     tx.Signature,
			Wallet:        tx.FeePayer,
			Timestamp:     tx.Timestamp,
			Type:          tx.Type,
			Amount:        amount,
			IsNativeValue: native,
		},
		Bucket:    c.bucketFor(amount, native),
		Swap:      tx.IsSwap(),
		Transfer:  tx.Type == "TRANSFER",
		FlashLoan: c.detectFlashLoan(tx),
	}

	if price, ok := c.impliedPrice(tx); ok {
		obs.ImpliedPrice = price
		if prevPrice > 0 && math.Abs(price-prevPrice)/prevPrice > c.th.SlippagePct {
			obs.HighSlippage = true
		}
	}

	obs.Valued.FlashLoan = obs.FlashLoan
	obs.Valued.HighSlippage = obs.HighSlippage
	return obs
}

// resolveValue picks the transaction's monetary magnitude, first match wins:
// swaps prefer the summed SOL legs and fall back to the target-token leg;
// other transactions take the SOL legs, then the first target-token leg.
func (c *Classifier) resolveValue(tx *helius.Transaction) (float64, bool) {
	if tx.IsSwap() {
		if len(tx.NativeTransfers) > 0 {
			return math.Abs(tx.NativeTotal()), true
		}
		return c.targetTokenAmount(tx), false
	}
	if len(tx.NativeTransfers) > 0 {
		return math.Abs(tx.NativeTotal()), true
	}
	return c.targetTokenAmount(tx), false
}

func (c *Classifier) targetTokenAmount(tx *helius.Transaction) float64 {
	for _, tr := range tx.TokenTransfers {
		if tr.Mint == c.mint {
			return math.Abs(tr.TokenAmount)
		}
	}
	return 0
}

func (c *Classifier) bucketFor(amount float64, native bool) Bucket {
	cuts := c.th.TokenBuckets
	if native {
		cuts = c.th.NativeBuckets
	}
	switch {
	case amount < cuts[0]:
		return BucketVerySmall
	case amount < cuts[1]:
		return BucketSmall
	case amount < cuts[2]:
		return BucketMedium
	case amount < cuts[3]:
		return BucketLarge
	default:
		return BucketVeryLarge
	}
}

// detectFlashLoan flags a same-transaction borrow-and-repay: a token's
// running signed net returns to within the tolerance of zero on a later
// transfer of the same mint.
func (c *Classifier) detectFlashLoan(tx *helius.Transaction) bool {
	net := map[string]float64{}
	for _, tr := range tx.TokenTransfers {
		if prev, seen := net[tr.Mint]; seen && math.Abs(prev+tr.TokenAmount) < c.th.FlashLoanTolerance {
			return true
		}
		net[tr.Mint] -= tr.TokenAmount
	}
	return false
}

// impliedPrice computes counter-leg amount / target-token amount for swaps
// with at least two token legs.
func (c *Classifier) impliedPrice(tx *helius.Transaction) (float64, bool) {
	if !tx.IsSwap() || len(tx.TokenTransfers) < 2 {
		return 0, false
	}
	var tokenAmt, otherAmt float64
	for _, tr := range tx.TokenTransfers {
		if tr.Mint == c.mint {
			tokenAmt = math.Abs(tr.TokenAmount)
		} else {
			otherAmt = math.Abs(tr.TokenAmount)
		}
	}
	if tokenAmt <= 0 || otherAmt <= 0 {
		return 0, false
	}
	return otherAmt / tokenAmt, true
}

// Accumulator is the explicit running state of one analysis pass. Each
// Observation is folded in exactly once; nothing else mutates it.
type Accumulator struct {
	Buckets      map[Bucket]*BucketTotals
	Patterns     map[string]int
	VolumeByType map[string]float64
	TotalVolume  float64
	Processed    int
}

func NewAccumulator() *Accumulator {
	buckets := make(map[Bucket]*BucketTotals, len(Buckets))
	for _, b := range Buckets {
		buckets[b] = &BucketTotals{}
	}
	return &Accumulator{
		Buckets: buckets,
		Patterns: map[string]int{
			"swaps": 0, "transfers": 0, "large_transfers": 0, "multi_transfers": 0,
			"rapid_swaps": 0, "wash_trades": 0, "sandwich_attacks": 0,
			"flash_loans": 0, "high_slippage": 0, "arbitrage": 0, "bot_trades": 0,
		},
		VolumeByType: map[string]float64{
			"swaps": 0, "transfers": 0, "flash_loans": 0, "high_slippage": 0, "bot_trades": 0,
		},
	}
}

// Fold applies one classified transaction to the running totals.
func (a *Accumulator) Fold(obs Observation) {
	a.Processed++
	amount := obs.Valued.Amount

	bt := a.Buckets[obs.Bucket]
	bt.Count++
	bt.Amount += amount
	a.TotalVolume += amount

	if obs.Swap {
		a.Patterns["swaps"]++
		a.VolumeByType["swaps"] += amount
	}
	if obs.Transfer {
		a.Patterns["transfers"]++
		a.VolumeByType["transfers"] += amount
	}
	if obs.FlashLoan {
		a.Patterns["flash_loans"]++
		a.VolumeByType["flash_loans"] += amount
	}
	if obs.HighSlippage {
		a.Patterns["high_slippage"]++
		a.VolumeByType["high_slippage"] += amount
	}
}
