package helius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/token-pulse/pkg/config"
)

// ErrInvalidAddress marks a request the caller got wrong, as opposed to an
// upstream failure.
var ErrInvalidAddress = errors.New("invalid address")

// Cache holds per-address transaction history between analysis runs.
// Get returns only entries at or after cutoff, and reports a miss when the
// cached data is stale or has nothing inside the window. Put stores the full
// unfiltered result set, last writer wins.
type Cache interface {
	Get(ctx context.Context, address string, ttl time.Duration, cutoff time.Time) ([]Transaction, bool)
	Put(ctx context.Context, address string, txs []Transaction)
}

type Client struct {
	cfg    *config.Config
	cache  Cache
	client *http.Client

	now func() time.Time
}

func NewClient(cfg *config.Config, cache Cache) (*Client, error) {
	if cfg.HeliusAPIKey == "" {
		return nil, fmt.Errorf("helius API key required")
	}
	return &Client{
		cfg:    cfg,
		cache:  cache,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		now:    time.Now,
	}, nil
}

// FetchWindow returns the transactions touching address whose timestamp falls
// within the last `window`, sorted ascending by timestamp. The cache is
// consulted first; a successful network fetch overwrites it.
//
// A non-200 response or network error stops pagination early and the
// transactions accumulated so far are still returned — the caller sees a
// possibly-incomplete but never corrupt result.
func (c *Client) FetchWindow(ctx context.Context, address string, window time.Duration) ([]Transaction, error) {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}

	cutoff := c.now().Add(-window)

	if c.cache != nil {
		if txs, ok := c.cache.Get(ctx, address, c.cfg.CacheTTL, cutoff); ok {
			log.Debug().Str("addr", abbrev(address)).Int("txs", len(txs)).Msg("cache hit")
			sortAscending(txs)
			return txs, nil
		}
	}

	all := c.fetchPages(ctx, address, cutoff)

	if c.cache != nil && len(all) > 0 {
		c.cache.Put(ctx, address, all)
	}

	kept := all[:0:0]
	for _, tx := range all {
		if !tx.Time().Before(cutoff) {
			kept = append(kept, tx)
		}
	}
	sortAscending(kept)
	return kept, nil
}

func (c *Client) fetchPages(ctx context.Context, address string, cutoff time.Time) []Transaction {
	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions", c.cfg.HeliusBaseURL, address)

	var all []Transaction
	before := ""

	for page := 0; page < c.cfg.MaxPages; page++ {
		url := fmt.Sprintf("%s?api-key=%s&limit=%d&commitment=%s",
			endpoint, c.cfg.HeliusAPIKey, c.cfg.PageLimit, c.cfg.Commitment)
		if before != "" {
			url += "&before=" + before
		}

		txs, err := c.getPage(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("addr", abbrev(address)).Int("page", page+1).
				Msg("helius fetch failed, returning partial result")
			break
		}
		if len(txs) == 0 {
			break
		}

		for i := range txs {
			txs[i].NormalizeTimestamp()
		}
		all = append(all, txs...)

		// Pages come newest-first; once the oldest entry predates the
		// window there is nothing further back worth fetching.
		oldest := txs[len(txs)-1]
		if oldest.Time().Before(cutoff) {
			break
		}
		before = oldest.Signature

		select {
		case <-ctx.Done():
			return all
		case <-time.After(c.cfg.PageDelay):
		}
	}

	return all
}

func (c *Client) getPage(ctx context.Context, url string) ([]Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		// Never echo the URL: it carries the API key.
		return nil, fmt.Errorf("HTTP %d from helius transactions endpoint", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB max
	if err != nil {
		return nil, err
	}
	var txs []Transaction
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return txs, nil
}

func sortAscending(txs []Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txs[i].Timestamp < txs[j].Timestamp })
}

func abbrev(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
