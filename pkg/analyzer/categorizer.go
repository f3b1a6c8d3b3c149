package analyzer

import (
	"sort"
	"time"

	"github.com/token-pulse/pkg/config"
)

type Category string

const (
	CategoryMarketMakingBot  Category = "market_making_bot"
	CategoryLargeMarketMaker Category = "large_market_maker"
	CategorySniperBot        Category = "sniper_bot"
	CategoryWhale            Category = "whale"
	CategoryRetail           Category = "retail"
)

var Categories = []Category{
	CategoryMarketMakingBot, CategoryLargeMarketMaker,
	CategorySniperBot, CategoryWhale, CategoryRetail,
}

// WalletProfile aggregates one wallet's trades within a single analysis run.
// Built fresh each run and discarded afterwards.
type WalletProfile struct {
	Address string
	Trades  []ValuedTransaction

	NativeVolume    float64 // sum of SOL-denominated trade amounts
	RapidCount      int
	FlashLoanCount  int
	SlippageCount   int
	LargeTradeCount int // SOL-denominated trades above the large-trade size
}

func (p *WalletProfile) add(vt ValuedTransaction, largeTradeSize float64) {
	p.Trades = append(p.Trades, vt)
	if vt.IsNativeValue {
		p.NativeVolume += vt.Amount
		if vt.Amount > largeTradeSize {
			p.LargeTradeCount++
		}
	}
	if vt.Rapid {
		p.RapidCount++
	}
	if vt.FlashLoan {
		p.FlashLoanCount++
	}
	if vt.HighSlippage {
		p.SlippageCount++
	}
}

// AvgTradeGap is the mean of consecutive gaps between sorted trade
// timestamps; zero when the wallet has fewer than two trades.
func (p *WalletProfile) AvgTradeGap() time.Duration {
	if len(p.Trades) < 2 {
		return 0
	}
	ts := make([]int64, len(p.Trades))
	for i, t := range p.Trades {
		ts[i] = t.Timestamp
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	var total int64
	for i := 1; i < len(ts); i++ {
		total += ts[i] - ts[i-1]
	}
	avg := float64(total) / float64(len(ts)-1)
	return time.Duration(avg * float64(time.Second))
}

// Categorizer assigns each wallet exactly one behavioral category using
// fixed thresholds. The rule order is part of the contract: a wallet that
// satisfies several rules gets the first match.
type Categorizer struct {
	th config.Thresholds
}

func NewCategorizer(th config.Thresholds) *Categorizer {
	return &Categorizer{th: th}
}

func (c *Categorizer) Categorize(p *WalletProfile) Category {
	n := len(p.Trades)
	if n == 0 {
		return CategoryRetail
	}

	avgGap := p.AvgTradeGap()
	fastEnough := n >= 2 && avgGap < c.th.MaxAvgTradeGap

	switch {
	case n > c.th.MinBotTrades && fastEnough && frac(p.RapidCount, n) > c.th.RapidTradeFraction:
		return CategoryMarketMakingBot
	case n > c.th.MinBotTrades && fastEnough:
		return CategoryLargeMarketMaker
	case p.RapidCount >= 1 && p.FlashLoanCount >= 1 && frac(p.SlippageCount, n) > c.th.SniperSlippageFraction:
		return CategorySniperBot
	case p.NativeVolume > c.th.WhaleVolume && frac(p.LargeTradeCount, n) > c.th.LargeTradeFraction:
		return CategoryWhale
	default:
		return CategoryRetail
	}
}

func frac(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
