package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/token-pulse/pkg/config"
)

// Client wraps the Birdeye market-data API. Optional: with no API key the
// report simply skips the market snapshot.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(cfg *config.Config) *Client {
	return &Client{
		apiKey:  cfg.BirdeyeAPIKey,
		baseURL: cfg.BirdeyeBaseURL,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type PriceVolume struct {
	Price          float64 `json:"price"`
	VolumeUSD      float64 `json:"volumeUSD"`
	PriceChangePct float64 `json:"priceChangePercent"`
}

type TokenOverview struct {
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Decimals  int     `json:"decimals"`
	Supply    float64 `json:"supply"`
	Liquidity float64 `json:"liquidity"`
	MarketCap float64 `json:"mc"`
}

// Holder is one entry from the token holder list, largest first.
type Holder struct {
	Owner    string  `json:"owner"`
	UIAmount float64 `json:"ui_amount"`
}

// PriceVolume fetches price and volume for a token over the given period
// ("1h", "24h", ...).
func (c *Client) PriceVolume(ctx context.Context, token, period string) (*PriceVolume, error) {
	params := url.Values{"address": {token}, "type": {period}}
	var out struct {
		Success bool        `json:"success"`
		Data    PriceVolume `json:"data"`
	}
	if err := c.get(ctx, "price_volume/single", params, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("birdeye price_volume: unsuccessful response")
	}
	return &out.Data, nil
}

// TokenOverview fetches basic token metadata and market metrics.
func (c *Client) TokenOverview(ctx context.Context, token string) (*TokenOverview, error) {
	params := url.Values{"address": {token}}
	var out struct {
		Success bool          `json:"success"`
		Data    TokenOverview `json:"data"`
	}
	if err := c.get(ctx, "token_overview", params, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("birdeye token_overview: unsuccessful response")
	}
	return &out.Data, nil
}

// TopHolders fetches the token's largest holders.
func (c *Client) TopHolders(ctx context.Context, token string, limit int) ([]Holder, error) {
	params := url.Values{
		"address": {token},
		"offset":  {"0"},
		"limit":   {fmt.Sprintf("%d", limit)},
	}
	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Items []Holder `json:"items"`
		} `json:"data"`
	}
	if err := c.get(ctx, "v3/token/holder", params, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("birdeye token holder: unsuccessful response")
	}
	return out.Data.Items, nil
}

// get performs a GET with up to three attempts, pausing between retries when
// the API answers with a server error.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v interface{}) error {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-KEY", c.apiKey)
		req.Header.Set("accept", "application/json")
		req.Header.Set("x-chain", "solana")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).
				Int("attempt", attempt+1).Msg("birdeye server error, retrying")
			lastErr = fmt.Errorf("HTTP %d from birdeye %s", resp.StatusCode, endpoint)
			continue
		}
		if resp.StatusCode != 200 {
			return fmt.Errorf("HTTP %d from birdeye %s", resp.StatusCode, endpoint)
		}

		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("decode birdeye %s: %w", endpoint, err)
		}
		return nil
	}
	return lastErr
}
