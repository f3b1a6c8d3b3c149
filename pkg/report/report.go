package report

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/token-pulse/pkg/analyzer"
	"github.com/token-pulse/pkg/audit"
	"github.com/token-pulse/pkg/birdeye"
)

var (
	header = color.New(color.FgCyan, color.Bold)
	accent = color.New(color.FgYellow)
)

// Print renders one analysis to the terminal. Market data is optional.
func Print(a *analyzer.Analysis, market *birdeye.PriceVolume, overview *birdeye.TokenOverview) {
	name := a.TokenAddress
	if overview != nil && overview.Symbol != "" {
		name = fmt.Sprintf("%s (%s)", overview.Symbol, abbrev(a.TokenAddress))
	}

	header.Printf("\n── Transaction flow: %s — last %dm ──\n", name, a.WindowMinutes)
	fmt.Printf("  Transactions:  %d\n", a.TransactionCount)
	fmt.Printf("  Active wallets: %d\n", a.ActiveWallets)
	fmt.Printf("  Velocity:      %.3f tx/s\n", a.TradingVelocity)
	fmt.Printf("  Total volume:  %.4f\n", a.TotalVolume)
	if market != nil {
		accent.Printf("  Price: $%.6f  24h volume: $%.0f\n", market.Price, market.VolumeUSD)
	}
	fmt.Printf("  Generated:     %s\n\n", time.Unix(a.GeneratedAt, 0).Format("15:04:05"))

	printBuckets(a)
	printCategories(a)
	printPatterns(a)
}

func printBuckets(a *analyzer.Analysis) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Bucket", "Count", "Amount", "%"})
	for _, b := range analyzer.Buckets {
		s := a.VolumeDistribution[b]
		table.Append([]string{string(b), fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.4f", s.Amount), fmt.Sprintf("%.1f", s.Percentage)})
	}
	table.Render()
}

func printCategories(a *analyzer.Analysis) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Trader category", "Wallets"})
	for _, c := range analyzer.Categories {
		if n := a.Categories[c]; n > 0 {
			table.Append([]string{string(c), fmt.Sprintf("%d", n)})
		}
	}
	table.Render()
}

func printPatterns(a *analyzer.Analysis) {
	keys := make([]string, 0, len(a.Patterns))
	for k := range a.Patterns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Pattern", "Count", "%"})
	for _, k := range keys {
		s := a.Patterns[k]
		if s.Count == 0 {
			continue
		}
		table.Append([]string{k, fmt.Sprintf("%d", s.Count), fmt.Sprintf("%.1f", s.Percentage)})
	}
	table.Render()
}

// PrintAudit renders a token audit below the flow report.
func PrintAudit(r *audit.Report) {
	name := r.TokenAddress
	if r.Symbol != "" {
		name = fmt.Sprintf("%s (%s)", r.Symbol, abbrev(r.TokenAddress))
	}
	header.Printf("\n── Token audit: %s ──\n", name)
	accent.Printf("  Overall rating: %.2f / 5\n", r.OverallRating)
	fmt.Printf("  Liquidity: $%.0f  24h volume: $%.0f  Top holders: %.1f%%\n\n",
		r.LiquidityUSD, r.Volume24h, r.TopHolderPct)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Dimension", "Score", "Comment"})
	for _, row := range []struct {
		name string
		s    audit.Score
	}{
		{"short-term momentum", r.ShortTerm},
		{"mid-term momentum", r.MidTerm},
		{"liquidity", r.Liquidity},
		{"manipulation risk", r.ManipulationRisk},
	} {
		table.Append([]string{row.name, fmt.Sprintf("%.1f", row.s.Value), row.s.Comment})
	}
	table.Render()
}

func abbrev(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
