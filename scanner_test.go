package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePool(name, address, token string, mc, fdv, liq float64) gtPool {
	var p gtPool
	p.Attributes.Name = name
	p.Attributes.Address = address
	p.Attributes.MarketCapUSD = gtFloat(mc)
	p.Attributes.FDVUSD = gtFloat(fdv)
	p.Attributes.ReserveInUSD = gtFloat(liq)
	p.Attributes.VolumeUSD = map[string]gtFloat{"h1": 1000, "h24": 5000}
	p.Attributes.PriceChangePercentage = map[string]gtFloat{"m5": 1.5, "h1": 10, "h6": 20, "h24": 30}
	p.Relationships.BaseToken.Data.ID = "solana_" + token
	return p
}

func TestFilterTrending(t *testing.T) {
	s := DefaultSettings() // MC 300K..50M, liquidity >= 10K

	pools := []gtPool{
		makePool("KEEP / SOL", "pool1", "tok1", 2_000_000, 0, 50_000),
		makePool("TOOSMALL / SOL", "pool2", "tok2", 100_000, 0, 50_000),
		makePool("TOOBIG / SOL", "pool3", "tok3", 90_000_000, 0, 50_000),
		makePool("THIN / SOL", "pool4", "tok4", 2_000_000, 0, 1_000),
		makePool("FDV / SOL", "pool5", "tok5", 0, 5_000_000, 50_000), // falls back to FDV
		makePool("NOMC / SOL", "pool6", "tok6", 0, 0, 50_000),
	}

	pairs := FilterTrending(pools, s)
	require.Len(t, pairs, 2)

	// Sorted by MC descending.
	assert.Equal(t, "FDV", pairs[0].Symbol)
	assert.Equal(t, 5_000_000.0, pairs[0].MC)
	assert.Equal(t, "KEEP", pairs[1].Symbol)
}

func TestFilterTrendingTopN(t *testing.T) {
	var pools []gtPool
	for i := 0; i < 25; i++ {
		pools = append(pools, makePool(
			fmt.Sprintf("T%d / SOL", i), fmt.Sprintf("pool%d", i), fmt.Sprintf("tok%d", i),
			1_000_000+float64(i)*10_000, 0, 50_000))
	}
	pairs := FilterTrending(pools, DefaultSettings())
	assert.Len(t, pairs, scanTopN)
	// Highest MC first.
	assert.Equal(t, "T24", pairs[0].Symbol)
}

func TestNormalizePair(t *testing.T) {
	p := makePool("DOGE2 / SOL", "poolX", "So1anaTokenAddr", 1_500_000, 0, 30_000)
	pair := normalizePair(p, 1_500_000, 30_000)

	assert.Equal(t, "DOGE2", pair.Symbol)
	assert.Equal(t, "So1anaTokenAddr", pair.TokenAddress, "chain prefix must be stripped")
	assert.Equal(t, "poolX", pair.PairAddress)
	assert.Equal(t, 1000.0, pair.VolumeH1)
	assert.Equal(t, 10.0, pair.PriceChange["h1"])
	assert.Contains(t, pair.GeckoURL, "geckoterminal.com/solana/pools/poolX")
}

func TestNormalizePairMissingName(t *testing.T) {
	p := makePool("", "poolY", "tokY", 1_000_000, 0, 20_000)
	pair := normalizePair(p, 1_000_000, 20_000)
	assert.Equal(t, "UNKNOWN", pair.Symbol)
}
