package main

import "math"

// PricePosition grades where the current price sits inside the recent range
// on a 1–5 scale: 5 means a strong low (many stars), 1 a strong high.
type PricePosition struct {
	PPS      int     // 1..5
	Label    string  // 強い安値圏 .. 強い高値圏
	Stars    string  // ⭐…
	Bonus    float64 // score adjustment, +10..-10
	RangePct float64 // 0.0 = range low, 1.0 = range high
	VWAPDev  float64 // deviation from VWAP in percent
}

var (
	ppsBonus = map[int]float64{5: +10, 4: +5, 3: 0, 2: -5, 1: -10}
	ppsLabel = map[int]string{5: "強い安値圏", 4: "やや安値圏", 3: "中間", 2: "やや高値圏", 1: "強い高値圏"}
	ppsStars = map[int]string{5: "⭐⭐⭐⭐⭐", 4: "⭐⭐⭐⭐", 3: "⭐⭐⭐", 2: "⭐⭐", 1: "⭐"}
)

// CalcPricePosition averages three axes (range position, VWAP deviation and
// RSI level) into the final PPS.
func CalcPricePosition(candles []Candle, vwap, rsi float64) PricePosition {
	close_ := candles[len(candles)-1].Close

	highest, lowest := candles[0].High, candles[0].Low
	for _, c := range candles {
		if c.High > highest {
			highest = c.High
		}
		if c.Low < lowest {
			lowest = c.Low
		}
	}

	rangePct := 0.5
	if highest > lowest {
		rangePct = (close_ - lowest) / (highest - lowest)
	}

	var axis1 int
	switch {
	case rangePct <= 0.20:
		axis1 = 5
	case rangePct <= 0.40:
		axis1 = 4
	case rangePct <= 0.60:
		axis1 = 3
	case rangePct <= 0.80:
		axis1 = 2
	default:
		axis1 = 1
	}

	vwapDev := 0.0
	if vwap > 0 {
		vwapDev = (close_ - vwap) / vwap * 100
	}

	var axis2 int
	switch {
	case vwapDev <= -5.0:
		axis2 = 5
	case vwapDev <= -1.0:
		axis2 = 4
	case vwapDev <= +1.0:
		axis2 = 3
	case vwapDev <= +5.0:
		axis2 = 2
	default:
		axis2 = 1
	}

	var axis3 int
	switch {
	case rsi <= 30:
		axis3 = 5
	case rsi <= 45:
		axis3 = 4
	case rsi <= 55:
		axis3 = 3
	case rsi <= 70:
		axis3 = 2
	default:
		axis3 = 1
	}

	pps := int(math.Round(float64(axis1+axis2+axis3) / 3.0))
	if pps < 1 {
		pps = 1
	}
	if pps > 5 {
		pps = 5
	}

	return PricePosition{
		PPS:      pps,
		Label:    ppsLabel[pps],
		Stars:    ppsStars[pps],
		Bonus:    ppsBonus[pps],
		RangePct: math.Round(rangePct*1000) / 1000,
		VWAPDev:  math.Round(vwapDev*100) / 100,
	}
}
