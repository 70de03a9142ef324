package main

import (
	"fmt"
	"sort"
	"strings"
)

// Pair is a normalized trending pool that passed the market-cap and
// liquidity filters.
type Pair struct {
	Symbol       string
	Name         string
	TokenAddress string
	PairAddress  string
	MC           float64
	Liquidity    float64
	VolumeH1     float64
	VolumeH24    float64
	PriceChange  map[string]float64 // m5, h1, h6, h24
	GeckoURL     string
}

const scanTopN = 10

// FilterTrending applies stage 1 of the scan: keep pools inside the MC range
// with enough liquidity, sort by MC descending and take the top entries.
func FilterTrending(pools []gtPool, s *Settings) []Pair {
	type scored struct {
		pool gtPool
		mc   float64
		liq  float64
	}

	var filtered []scored
	for _, p := range pools {
		mc := float64(p.Attributes.MarketCapUSD)
		if mc == 0 {
			mc = float64(p.Attributes.FDVUSD)
		}
		if mc == 0 {
			continue
		}
		liq := float64(p.Attributes.ReserveInUSD)
		if mc >= s.MCMin && mc <= s.MCMax && liq >= s.LiqMin {
			filtered = append(filtered, scored{pool: p, mc: mc, liq: liq})
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].mc > filtered[j].mc })
	if len(filtered) > scanTopN {
		filtered = filtered[:scanTopN]
	}

	pairs := make([]Pair, 0, len(filtered))
	for _, f := range filtered {
		pairs = append(pairs, normalizePair(f.pool, f.mc, f.liq))
	}
	return pairs
}

func normalizePair(p gtPool, mc, liq float64) Pair {
	attrs := p.Attributes

	// Token IDs arrive as "solana_<address>".
	tokenAddress := strings.TrimPrefix(p.Relationships.BaseToken.Data.ID, gtChain+"_")

	// Pool names look like "TOKEN / SOL"; trending_pools has no full name,
	// so the symbol doubles as the name.
	name := attrs.Name
	if name == "" {
		name = "UNKNOWN / SOL"
	}
	symbol := strings.TrimSpace(strings.SplitN(name, " / ", 2)[0])

	change := make(map[string]float64, 4)
	for _, k := range []string{"m5", "h1", "h6", "h24"} {
		change[k] = float64(attrs.PriceChangePercentage[k])
	}

	return Pair{
		Symbol:       symbol,
		Name:         symbol,
		TokenAddress: tokenAddress,
		PairAddress:  attrs.Address,
		MC:           mc,
		Liquidity:    liq,
		VolumeH1:     float64(attrs.VolumeUSD["h1"]),
		VolumeH24:    float64(attrs.VolumeUSD["h24"]),
		PriceChange:  change,
		GeckoURL:     fmt.Sprintf("https://www.geckoterminal.com/%s/pools/%s", gtChain, attrs.Address),
	}
}
