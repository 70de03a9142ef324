package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// gtFloat tolerates the GeckoTerminal API's habit of returning numbers as
// strings, numbers or null depending on the field and the pool.
type gtFloat float64

func (f *gtFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = gtFloat(v)
	return nil
}

// gtPool is one pool from the trending_pools / token pools endpoints.
type gtPool struct {
	Attributes struct {
		Address               string             `json:"address"`
		Name                  string             `json:"name"`
		MarketCapUSD          gtFloat            `json:"market_cap_usd"`
		FDVUSD                gtFloat            `json:"fdv_usd"`
		ReserveInUSD          gtFloat            `json:"reserve_in_usd"`
		VolumeUSD             map[string]gtFloat `json:"volume_usd"`
		PriceChangePercentage map[string]gtFloat `json:"price_change_percentage"`
	} `json:"attributes"`
	Relationships struct {
		BaseToken struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"base_token"`
	} `json:"relationships"`
}

// GeckoClient is a thin client for the GeckoTerminal REST API.
type GeckoClient struct {
	baseURL string
	http    *http.Client
	sleep   func(d time.Duration)
}

func NewGeckoClient() *GeckoClient {
	return &GeckoClient{
		baseURL: gtBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		sleep:   time.Sleep,
	}
}

const (
	gtMaxRetries = 3
	gtRetryWait  = 10 * time.Second // base wait after a 429
)

// get performs one GET with query params and decodes the JSON body into out.
// HTTP 429 is retried with a growing wait; other failures are terminal.
func (g *GeckoClient) get(path string, params url.Values, out any) error {
	u := g.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := g.http.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", path, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < gtMaxRetries {
			wait := gtRetryWait * time.Duration(attempt+1)
			log.Printf("[gecko] 429 レート制限 (%s) → %s後にリトライ (%d/%d)", path, wait, attempt+1, gtMaxRetries)
			g.sleep(wait)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("request %s: HTTP %d", path, resp.StatusCode)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}
}

// TrendingPools fetches the Solana trending pool pages. Page errors are
// tolerated: whatever was collected before the failure is returned, matching
// the scanner's best-effort stage 1.
func (g *GeckoClient) TrendingPools() []gtPool {
	var all []gtPool
	for page := 1; page <= 2; page++ {
		var resp struct {
			Data []gtPool `json:"data"`
		}
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("duration", gtTrendingDuration)

		if err := g.get(fmt.Sprintf("/networks/%s/trending_pools", gtChain), params, &resp); err != nil {
			log.Printf("[gecko] trending_pools 取得失敗 (page=%d): %v", page, err)
			break
		}
		if len(resp.Data) == 0 {
			break
		}
		all = append(all, resp.Data...)
		g.sleep(gtRequestInterval)
	}
	return all
}

// TopPoolAddress resolves a token address to its most liquid pool.
func (g *GeckoClient) TopPoolAddress(tokenAddress string) (string, error) {
	var resp struct {
		Data []gtPool `json:"data"`
	}
	params := url.Values{}
	params.Set("page", "1")

	path := fmt.Sprintf("/networks/%s/tokens/%s/pools", gtChain, tokenAddress)
	if err := g.get(path, params, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("no pools for token %s", tokenAddress)
	}
	return resp.Data[0].Attributes.Address, nil
}

type ohlcvResponse struct {
	Data struct {
		Attributes struct {
			List [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// OHLCV fetches up to gtOHLCVLimit candles for a pool at the given aggregate
// (minutes per candle), oldest first.
func (g *GeckoClient) OHLCV(poolAddress string, aggregate int) ([]Candle, error) {
	return g.ohlcv(poolAddress, aggregate, 0)
}

// OHLCVBefore fetches candles ending at beforeUnix, used by the outcome
// checker to replay the hour after a signal.
func (g *GeckoClient) OHLCVBefore(poolAddress string, aggregate int, beforeUnix int64) ([]Candle, error) {
	return g.ohlcv(poolAddress, aggregate, beforeUnix)
}

func (g *GeckoClient) ohlcv(poolAddress string, aggregate int, beforeUnix int64) ([]Candle, error) {
	params := url.Values{}
	params.Set("aggregate", strconv.Itoa(aggregate))
	params.Set("limit", strconv.Itoa(gtOHLCVLimit))
	params.Set("currency", "usd")
	params.Set("token", "base")
	if beforeUnix > 0 {
		params.Set("before_timestamp", strconv.FormatInt(beforeUnix, 10))
	}

	var resp ohlcvResponse
	path := fmt.Sprintf("/networks/%s/pools/%s/ohlcv/%s", gtChain, poolAddress, gtOHLCVTimeframe)
	if err := g.get(path, params, &resp); err != nil {
		return nil, err
	}

	raw := resp.Data.Attributes.List
	candles := make([]Candle, 0, len(raw))
	// The API returns newest first; walk backwards to get oldest first.
	for i := len(raw) - 1; i >= 0; i-- {
		row := raw[i]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, Candle{
			Time:   int64(row[0]),
			Open:   row[1],
			High:   row[2],
			Low:    row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}
	return candles, nil
}
