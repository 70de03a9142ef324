package main

import "time"

// Candle is one OHLCV bar, timestamped with the bar's open time (unix
// seconds). Slices of candles are always oldest first.
type Candle struct {
	Time   int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

func closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// RSI computes the Wilder-smoothed relative strength index of the closes.
// Returns the neutral 50 when there is not enough history.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR computes the Wilder-smoothed average true range.
func ATR(candles []Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	trueRange := func(i int) float64 {
		hl := candles[i].High - candles[i].Low
		hc := abs(candles[i].High - candles[i-1].Close)
		lc := abs(candles[i].Low - candles[i-1].Close)
		return max3(hl, hc, lc)
	}

	var atr float64
	for i := 1; i <= period; i++ {
		atr += trueRange(i)
	}
	atr /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(candles); i++ {
		atr = atr*(1-alpha) + trueRange(i)*alpha
	}
	return atr
}

// VWAP computes the volume-weighted average price over the candles sharing
// the last candle's UTC date (a session VWAP). With no volume it falls back
// to the last close.
func VWAP(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	last := candles[len(candles)-1]
	lastDay := time.Unix(last.Time, 0).UTC().Truncate(24 * time.Hour)

	var weighted, volume float64
	for _, c := range candles {
		if time.Unix(c.Time, 0).UTC().Truncate(24 * time.Hour).Equal(lastDay) {
			typical := (c.High + c.Low + c.Close) / 3
			weighted += typical * c.Volume
			volume += c.Volume
		}
	}
	if volume == 0 {
		return last.Close
	}
	return weighted / volume
}

// VolumeSurge is the last candle's volume relative to the mean of up to the
// 20 candles before it.
func VolumeSurge(candles []Candle) float64 {
	n := len(candles)
	if n < 2 {
		return 0
	}
	start := n - 21
	if start < 0 {
		start = 0
	}
	prior := candles[start : n-1]

	var sum float64
	for _, c := range prior {
		sum += c.Volume
	}
	avg := sum / float64(len(prior))
	if avg <= 0 {
		return 0
	}
	return candles[n-1].Volume / avg
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
