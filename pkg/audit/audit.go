package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/token-pulse/pkg/birdeye"
)

// Score is one rated dimension of a token audit, 0 (worst) to 5 (best).
type Score struct {
	Value   float64 `json:"value"`
	Comment string  `json:"comment"`
}

// Report is a point-in-time token health check built from Birdeye market
// data: price momentum over two horizons, market depth, and holder
// concentration.
type Report struct {
	TokenAddress string `json:"token_address"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	GeneratedAt  int64  `json:"generated_at"`

	Price        float64 `json:"price"`
	MarketCap    float64 `json:"market_cap"`
	LiquidityUSD float64 `json:"liquidity"`
	Volume24h    float64 `json:"volume_24h"`
	TopHolderPct float64 `json:"top_holder_pct"`

	ShortTerm        Score   `json:"short_term_momentum"`
	MidTerm          Score   `json:"mid_term_momentum"`
	Liquidity        Score   `json:"liquidity_score"`
	ManipulationRisk Score   `json:"manipulation_risk"`
	OverallRating    float64 `json:"overall_rating"`
}

// Auditor scores tokens against fixed heuristic tiers.
type Auditor struct {
	bd *birdeye.Client
}

func New(bd *birdeye.Client) *Auditor {
	return &Auditor{bd: bd}
}

func (a *Auditor) Enabled() bool {
	return a.bd.Enabled()
}

// Audit fetches market data for the token and scores it. The holder lookup
// is best-effort: when it fails the concentration component falls back to
// zero percent and the rest of the report still lands.
func (a *Auditor) Audit(ctx context.Context, token string) (*Report, error) {
	overview, err := a.bd.TokenOverview(ctx, token)
	if err != nil {
		return nil, err
	}
	hourly, err := a.bd.PriceVolume(ctx, token, "1h")
	if err != nil {
		return nil, err
	}
	daily, err := a.bd.PriceVolume(ctx, token, "24h")
	if err != nil {
		return nil, err
	}

	topHolderPct := 0.0
	if holders, err := a.bd.TopHolders(ctx, token, 10); err != nil {
		log.Warn().Err(err).Str("token", token).Msg("holder lookup failed, skipping concentration")
	} else if overview.Supply > 0 {
		var held float64
		for _, h := range holders {
			held += h.UIAmount
		}
		topHolderPct = held / overview.Supply * 100
	}

	r := &Report{
		TokenAddress: token,
		Symbol:       overview.Symbol,
		Name:         overview.Name,
		GeneratedAt:  time.Now().Unix(),
		Price:        daily.Price,
		MarketCap:    overview.MarketCap,
		LiquidityUSD: overview.Liquidity,
		Volume24h:    daily.VolumeUSD,
		TopHolderPct: topHolderPct,
	}

	r.ShortTerm.Value, r.ShortTerm.Comment = shortTermScore(hourly.PriceChangePct)
	r.MidTerm.Value, r.MidTerm.Comment = midTermScore(daily.PriceChangePct)
	r.Liquidity.Value, r.Liquidity.Comment = liquidityScore(overview.Liquidity, daily.VolumeUSD)
	r.ManipulationRisk.Value, r.ManipulationRisk.Comment = manipulationRisk(topHolderPct, daily.VolumeUSD, overview.Liquidity)
	r.OverallRating = (r.ShortTerm.Value + r.MidTerm.Value + r.Liquidity.Value + r.ManipulationRisk.Value) / 4

	return r, nil
}

func shortTermScore(priceChange float64) (float64, string) {
	switch {
	case priceChange >= 10:
		return 5.0, "Very strong upward momentum"
	case priceChange >= 5:
		return 4.0, "Strong upward momentum"
	case priceChange >= 2:
		return 3.5, "Moderate upward momentum"
	case priceChange >= -2:
		return 3.0, "Stable price"
	case priceChange >= -5:
		return 2.0, "Moderate downward momentum"
	case priceChange >= -10:
		return 1.0, "Strong downward momentum"
	default:
		return 0.0, "Very strong downward momentum"
	}
}

func midTermScore(priceChange float64) (float64, string) {
	switch {
	case priceChange >= 100:
		return 5.0, "Exceptional growth"
	case priceChange >= 50:
		return 4.0, "Very strong growth"
	case priceChange >= 20:
		return 3.5, "Strong growth"
	case priceChange >= -20:
		return 3.0, "Moderate performance"
	case priceChange >= -50:
		return 2.0, "Significant decline"
	case priceChange >= -70:
		return 1.0, "Major decline"
	default:
		return 0.0, "Severe decline"
	}
}

func liquidityScore(liquidity, volume24h float64) (float64, string) {
	switch {
	case liquidity >= 1_000_000 && volume24h >= 500_000:
		return 5.0, "Excellent liquidity"
	case liquidity >= 500_000 && volume24h >= 250_000:
		return 4.0, "Very good liquidity"
	case liquidity >= 100_000 && volume24h >= 50_000:
		return 3.5, "Good liquidity"
	case liquidity >= 50_000 && volume24h >= 25_000:
		return 3.0, "Moderate liquidity"
	case liquidity >= 10_000 && volume24h >= 5_000:
		return 2.0, "Limited liquidity"
	case liquidity >= 5_000 && volume24h >= 1_000:
		return 1.0, "Poor liquidity"
	default:
		return 0.0, "Very poor liquidity"
	}
}

// manipulationRisk scores holder concentration, adjusted by market depth.
// Higher is safer.
func manipulationRisk(topHolderPct, volume24h, liquidity float64) (float64, string) {
	var score float64
	var desc string
	switch {
	case topHolderPct >= 80:
		score, desc = 0.0, "Extremely high concentration"
	case topHolderPct >= 60:
		score, desc = 1.0, "Very high concentration"
	case topHolderPct >= 40:
		score, desc = 2.0, "High concentration"
	case topHolderPct >= 20:
		score, desc = 3.0, "Moderate concentration"
	default:
		score, desc = 4.0, "Well distributed"
	}

	switch {
	case liquidity >= 1_000_000 && volume24h >= 500_000:
		score, desc = score+1.0, desc+" with strong market depth"
	case liquidity >= 100_000 && volume24h >= 50_000:
		score, desc = score+0.5, desc+" with decent market depth"
	case liquidity < 10_000 || volume24h < 5_000:
		score, desc = score-1.0, desc+" but low market depth"
	}

	if score < 0 {
		score = 0
	}
	if score > 5 {
		score = 5
	}
	return score, desc
}
