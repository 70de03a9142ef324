package main

import "math"

// ScoreBreakdown is the per-component view of a score.
type ScoreBreakdown struct {
	Volume   float64 // 0..25
	VWAP     float64 // 0 or 20
	RSI      float64 // 0 or 20
	Liq      float64 // 0..15
	Repro    float64 // 0..20
	Penalty  float64 // 0..-15
	PPSBonus float64 // +10..-10
}

// ScoreResult is everything the notifier and the tracker need about one
// scored pair.
type ScoreResult struct {
	Score     int // 0..100
	Breakdown ScoreBreakdown
	MCBand    string

	RSI       float64
	ATR       float64
	VWAP      float64
	VolSurge  float64
	Entry     float64
	StopLoss  float64
	TakeProf  float64
	RiskRew   float64
	SurgeMin  float64
	RSIOb     float64
	Band      BandParams
	Pos       PricePosition
	Repro     Reproducibility
	LowSample bool
}

// MCBandLabel buckets a market cap into the three display bands.
func MCBandLabel(mc float64) string {
	switch {
	case mc < 1_000_000:
		return "$300K〜$1M"
	case mc < 5_000_000:
		return "$1M〜$5M"
	default:
		return "$5M〜$50M"
	}
}

// CalculateScore runs every indicator over the candles and combines them
// into the 100-point score plus SL/TP levels.
func CalculateScore(candles []Candle, pair Pair, settings *Settings) ScoreResult {
	band := settings.Band(pair.MC)

	rsi := RSI(closes(candles), rsiPeriod)
	atr := ATR(candles, atrPeriod)
	vwap := VWAP(candles)
	surge := VolumeSurge(candles)
	close_ := candles[len(candles)-1].Close

	var bd ScoreBreakdown

	// Volume surge: full points at the band threshold, linear ramp from 70%.
	surgeMin := band.VolumeSurgeMin
	surgeHalf := surgeMin * 0.7
	switch {
	case surge >= surgeMin:
		bd.Volume = 25.0
	case surge >= surgeHalf:
		bd.Volume = 25.0 * (surge - surgeHalf) / (surgeMin - surgeHalf)
	}

	if close_ > vwap {
		bd.VWAP = 20.0
	}

	// RSI scores when momentum is up; an overheat penalty ramps in past the
	// band's overbought level.
	rsiOb := band.RSIOverbought
	switch {
	case rsi > 50 && rsi <= rsiOb:
		bd.RSI = 20.0
	case rsi > rsiOb && rsi <= rsiOb+5:
		bd.RSI = 20.0
		bd.Penalty = -15.0 * (rsi - rsiOb) / 5
	case rsi > rsiOb+5:
		bd.RSI = 20.0
		bd.Penalty = -15.0
	}

	switch {
	case pair.Liquidity >= 50_000:
		bd.Liq = 15.0
	case pair.Liquidity >= 10_000:
		bd.Liq = 15.0 * (pair.Liquidity - 10_000) / (50_000 - 10_000)
	}

	repro := CalcReproducibility(candles, band)
	bd.Repro = repro.Score

	pos := CalcPricePosition(candles, vwap, rsi)
	bd.PPSBonus = pos.Bonus

	total := bd.Volume + bd.VWAP + bd.RSI + bd.Liq + bd.Repro + bd.Penalty + bd.PPSBonus
	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	entry := close_
	stopLoss := entry - atr*band.ATRSLMult
	takeProfit := entry + atr*band.ATRTPMult

	riskReward := 0.0
	if slDist := entry - stopLoss; slDist > 0 {
		riskReward = (takeProfit - entry) / slDist
	}

	return ScoreResult{
		Score:     score,
		Breakdown: bd,
		MCBand:    MCBandLabel(pair.MC),
		RSI:       rsi,
		ATR:       atr,
		VWAP:      vwap,
		VolSurge:  surge,
		Entry:     entry,
		StopLoss:  stopLoss,
		TakeProf:  takeProfit,
		RiskRew:   riskReward,
		SurgeMin:  surgeMin,
		RSIOb:     rsiOb,
		Band:      band,
		Pos:       pos,
		Repro:     repro,
		LowSample: repro.SignalCount < 5,
	}
}
