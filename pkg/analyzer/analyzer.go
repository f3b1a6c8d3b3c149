package analyzer

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/token-pulse/pkg/config"
	"github.com/token-pulse/pkg/helius"
)

// ErrNoData distinguishes "nothing traded in the window" from a failure.
var ErrNoData = errors.New("no transactions in window")

// Fetcher is what the analyzer needs from the transaction source.
type Fetcher interface {
	FetchWindow(ctx context.Context, address string, window time.Duration) ([]helius.Transaction, error)
}

type Analyzer struct {
	fetcher Fetcher
	th      config.Thresholds
}

func New(fetcher Fetcher, th config.Thresholds) *Analyzer {
	return &Analyzer{fetcher: fetcher, th: th}
}

type Share struct {
	Count      int     `json:"count"`
	Amount     float64 `json:"amount,omitempty"`
	Percentage float64 `json:"percentage"`
}

type PriceMetrics struct {
	StartPrice     float64 `json:"start_price"`
	EndPrice       float64 `json:"end_price"`
	PriceChangePct float64 `json:"price_change_pct"`
	Volatility     float64 `json:"volatility"`
	MinPrice       float64 `json:"min_price"`
	MaxPrice       float64 `json:"max_price"`
}

type MarketImpact struct {
	AvgTradeSize       float64 `json:"avg_trade_size"`
	LargeTxImpactPct   float64 `json:"large_tx_impact_pct"`
	BotVolumePct       float64 `json:"bot_volume_pct"`
	FlashLoanVolumePct float64 `json:"flash_loan_volume_pct"`
}

type RecentTransaction struct {
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
	Wallet    string  `json:"wallet"`
	Success   bool    `json:"success"`
}

// Analysis is the full output contract of one analysis run.
type Analysis struct {
	TokenAddress  string `json:"token_address"`
	WindowMinutes int    `json:"window_minutes"`
	GeneratedAt   int64  `json:"generated_at"`

	TransactionCount int     `json:"transaction_count"`
	ActiveWallets    int     `json:"active_wallets"`
	TradingVelocity  float64 `json:"trading_velocity"` // txs per second
	TotalVolume      float64 `json:"total_volume"`

	VolumeDistribution map[Bucket]Share    `json:"volume_distribution"`
	VolumeByType       map[string]Share    `json:"volume_by_type"`
	Patterns           map[string]Share    `json:"patterns"`
	Categories         map[Category]int    `json:"categories"`
	WalletCategories   map[string]Category `json:"wallet_categories"`

	SuspiciousWallets  map[string]int      `json:"suspicious_wallets"`
	RecentTransactions []RecentTransaction `json:"recent_transactions"`
	PriceMetrics       *PriceMetrics       `json:"price_metrics,omitempty"`
	MarketImpact       MarketImpact        `json:"market_impact"`

	Transactions []ValuedTransaction `json:"-"`
}

// Analyze fetches the token's recent transactions, classifies each one,
// profiles and categorizes the wallets behind them, and rolls everything up.
func (a *Analyzer) Analyze(ctx context.Context, token string, window time.Duration) (*Analysis, error) {
	txs, err := a.fetcher.FetchWindow(ctx, token, window)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrNoData
	}

	classifier := NewClassifier(token, a.th)
	acc := NewAccumulator()

	profiles := map[string]*WalletProfile{}
	walletLastTrade := map[string]int64{}
	walletLastSwap := map[string]int64{}
	walletTxCounts := map[string]int{}

	var valued []ValuedTransaction
	var largeSwapTimes []int64
	var prices []float64
	prevPrice := 0.0

	// txs arrive sorted ascending, so per-wallet gap tracking is a single pass.
	for i := range txs {
		tx := &txs[i]
		obs := classifier.Classify(tx, prevPrice)
		if obs.ImpliedPrice > 0 {
			prevPrice = obs.ImpliedPrice
			prices = append(prices, obs.ImpliedPrice)
		}

		wallet := tx.FeePayer
		if last, ok := walletLastTrade[wallet]; ok {
			gap := time.Duration(tx.Timestamp-last) * time.Second
			if gap < a.th.RapidTradeWindow {
				obs.Valued.Rapid = true
			}
		}
		walletLastTrade[wallet] = tx.Timestamp

		if obs.Swap {
			if last, ok := walletLastSwap[wallet]; ok {
				gap := time.Duration(tx.Timestamp-last) * time.Second
				if gap < a.th.RapidTradeWindow {
					acc.Patterns["rapid_swaps"]++
					if gap < a.th.BotTradeWindow {
						acc.Patterns["bot_trades"]++
						acc.VolumeByType["bot_trades"] += obs.Valued.Amount
					}
				}
			}
			walletLastSwap[wallet] = tx.Timestamp
		}

		if len(tx.TokenTransfers) > 2 {
			acc.Patterns["multi_transfers"]++
			if distinctMints(tx.TokenTransfers) > 2 {
				acc.Patterns["arbitrage"]++
			}
		}
		if obs.Valued.Amount > a.th.LargeTransfer {
			acc.Patterns["large_transfers"]++
		}
		if obs.Swap && obs.Valued.IsNativeValue && obs.Valued.Amount > a.th.LargeTradeSize {
			largeSwapTimes = append(largeSwapTimes, tx.Timestamp)
		}

		acc.Fold(obs)

		p, ok := profiles[wallet]
		if !ok {
			p = &WalletProfile{Address: wallet}
			profiles[wallet] = p
		}
		p.add(obs.Valued, a.th.LargeTradeSize)
		walletTxCounts[wallet]++
		valued = append(valued, obs.Valued)
	}

	// Consecutive large swaps landing close together look like sandwiching.
	for i := 1; i < len(largeSwapTimes); i++ {
		if time.Duration(largeSwapTimes[i]-largeSwapTimes[i-1])*time.Second < a.th.SandwichWindow {
			acc.Patterns["sandwich_attacks"]++
		}
	}

	// A wallet cramming several trades into a short burst suggests wash trading.
	for _, p := range profiles {
		if len(p.Trades) >= a.th.WashTradeMinTxs {
			span := time.Duration(p.Trades[len(p.Trades)-1].Timestamp-p.Trades[0].Timestamp) * time.Second
			if span < a.th.WashTradeWindow {
				acc.Patterns["wash_trades"]++
			}
		}
	}

	categorizer := NewCategorizer(a.th)
	categories := map[Category]int{}
	walletCategories := make(map[string]Category, len(profiles))
	for addr, p := range profiles {
		cat := categorizer.Categorize(p)
		walletCategories[addr] = cat
		categories[cat]++
	}

	result := &Analysis{
		TokenAddress:     token,
		WindowMinutes:    int(window / time.Minute),
		GeneratedAt:      time.Now().Unix(),
		TransactionCount: acc.Processed,
		ActiveWallets:    len(profiles),
		TradingVelocity:  float64(acc.Processed) / window.Seconds(),
		TotalVolume:      acc.TotalVolume,

		VolumeDistribution: bucketShares(acc),
		VolumeByType:       typeShares(acc),
		Patterns:           patternShares(acc),
		Categories:         categories,
		WalletCategories:   walletCategories,

		SuspiciousWallets:  topWallets(walletTxCounts, 5),
		RecentTransactions: recentTxs(valued, txs, 5),
		PriceMetrics:       priceMetrics(prices),
		MarketImpact:       marketImpact(acc),

		Transactions: valued,
	}

	log.Info().Str("token", token[:min(8, len(token))]+"...").
		Int("txs", result.TransactionCount).
		Int("wallets", result.ActiveWallets).
		Float64("volume", result.TotalVolume).
		Msg("analysis complete")

	return result, nil
}

func distinctMints(transfers []helius.TokenTransfer) int {
	mints := map[string]struct{}{}
	for _, tr := range transfers {
		mints[tr.Mint] = struct{}{}
	}
	return len(mints)
}

func bucketShares(acc *Accumulator) map[Bucket]Share {
	out := make(map[Bucket]Share, len(acc.Buckets))
	for b, t := range acc.Buckets {
		out[b] = Share{Count: t.Count, Amount: t.Amount, Percentage: pct(t.Count, acc.Processed)}
	}
	return out
}

func typeShares(acc *Accumulator) map[string]Share {
	out := make(map[string]Share, len(acc.VolumeByType))
	for k, amount := range acc.VolumeByType {
		share := Share{Amount: amount}
		if acc.TotalVolume > 0 {
			share.Percentage = amount / acc.TotalVolume * 100
		}
		out[k] = share
	}
	return out
}

func patternShares(acc *Accumulator) map[string]Share {
	out := make(map[string]Share, len(acc.Patterns))
	for k, count := range acc.Patterns {
		out[k] = Share{Count: count, Percentage: pct(count, acc.Processed)}
	}
	return out
}

func topWallets(counts map[string]int, n int) map[string]int {
	type wc struct {
		addr  string
		count int
	}
	sorted := make([]wc, 0, len(counts))
	for a, c := range counts {
		sorted = append(sorted, wc{a, c})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].count > sorted[j].count })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make(map[string]int, len(sorted))
	for _, w := range sorted {
		out[w.addr] = w.count
	}
	return out
}

func recentTxs(valued []ValuedTransaction, txs []helius.Transaction, n int) []RecentTransaction {
	failed := map[string]bool{}
	for i := range txs {
		if txs[i].Failed() {
			failed[txs[i].Signature] = true
		}
	}
	out := make([]RecentTransaction, 0, n)
	for i := len(valued) - 1; i >= 0 && len(out) < n; i-- {
		v := valued[i]
		out = append(out, RecentTransaction{
			Type:      v.Type,
			Amount:    v.Amount,
			Timestamp: v.Timestamp,
			Wallet:    v.Wallet,
			Success:   !failed[v.Signature],
		})
	}
	return out
}

func priceMetrics(prices []float64) *PriceMetrics {
	if len(prices) == 0 {
		return nil
	}
	pm := &PriceMetrics{
		StartPrice: prices[0],
		EndPrice:   prices[len(prices)-1],
		MinPrice:   prices[0],
		MaxPrice:   prices[0],
	}
	for _, p := range prices {
		pm.MinPrice = math.Min(pm.MinPrice, p)
		pm.MaxPrice = math.Max(pm.MaxPrice, p)
	}
	if pm.StartPrice > 0 {
		pm.PriceChangePct = (pm.EndPrice - pm.StartPrice) / pm.StartPrice * 100
	}
	if len(prices) > 1 {
		pm.Volatility = stddev(prices)
	}
	return pm
}

func marketImpact(acc *Accumulator) MarketImpact {
	mi := MarketImpact{}
	if acc.Processed > 0 {
		mi.AvgTradeSize = acc.TotalVolume / float64(acc.Processed)
		mi.LargeTxImpactPct = pct(acc.Patterns["large_transfers"], acc.Processed)
	}
	if acc.TotalVolume > 0 {
		mi.BotVolumePct = acc.VolumeByType["bot_trades"] / acc.TotalVolume * 100
		mi.FlashLoanVolumePct = acc.VolumeByType["flash_loans"] / acc.TotalVolume * 100
	}
	return mi
}

func stddev(v []float64) float64 {
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	sumSq := 0.0
	for _, x := range v {
		sumSq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sumSq / float64(len(v)-1))
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
