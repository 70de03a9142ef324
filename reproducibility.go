package main

// Reproducibility summarizes how often past signals on this pair were
// followed by an actual move.
type Reproducibility struct {
	Score        float64 // 0..20
	SignalCount  int
	SuccessCount int
	SuccessRate  float64 // 0..1
	AdjustedRate float64 // Laplace-smoothed rate, stays sane on few samples
}

// CalcReproducibility replays the candle history: at each point with enough
// warm-up it checks the same conditions the live scanner alerts on (volume
// surge, RSI above 50, close above VWAP) and counts a success when the best
// close within the look-forward window gains at least 0.7×ATR.
func CalcReproducibility(candles []Candle, band BandParams) Reproducibility {
	// 60 minutes of look-forward, expressed in candles of this band's size.
	lookforward := 60 / band.OHLCVAggregate
	if lookforward < 1 {
		lookforward = 1
	}

	minIdx := rsiPeriod + atrPeriod
	signals, successes := 0, 0

	for i := minIdx; i < len(candles)-lookforward-1; i++ {
		window := candles[:i+1]

		rsi := RSI(closes(window), rsiPeriod)
		atr := ATR(window, atrPeriod)
		vwap := VWAP(window)
		closeI := candles[i].Close
		surge := VolumeSurge(window)

		sigVolume := surge >= band.VolumeSurgeMin
		sigRSI := rsi > 50
		sigVWAP := closeI > vwap
		if !(sigVolume || sigRSI || sigVWAP) {
			continue
		}
		signals++

		maxFuture := candles[i+1].Close
		for j := i + 2; j <= i+lookforward && j < len(candles); j++ {
			if candles[j].Close > maxFuture {
				maxFuture = candles[j].Close
			}
		}
		if maxFuture-closeI >= atr*0.7 {
			successes++
		}
	}

	r := Reproducibility{SignalCount: signals, SuccessCount: successes}
	if signals == 0 {
		return r
	}

	r.SuccessRate = float64(successes) / float64(signals)
	r.AdjustedRate = float64(successes+1) / float64(signals+2)

	switch {
	case r.SuccessRate >= 0.5:
		r.Score = 20.0
	case r.SuccessRate >= 0.25:
		r.Score = 20.0 * (r.SuccessRate - 0.25) / 0.25
	}
	return r
}
