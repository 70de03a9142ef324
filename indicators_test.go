package main

import (
	"math"
	"testing"
)

// baseTime keeps generated candles well inside a single UTC day.
const baseTime = int64(1_750_000_000) - 1_750_000_000%86400 + 6*3600

// genCandles builds n candles at 5-minute spacing via f.
func genCandles(n int, f func(i int) Candle) []Candle {
	out := make([]Candle, n)
	for i := range out {
		c := f(i)
		c.Time = baseTime + int64(i)*300
		out[i] = c
	}
	return out
}

// risingCandles climbs one unit per bar with a one-unit high/low wick.
func risingCandles(n int) []Candle {
	return genCandles(n, func(i int) Candle {
		c := 100.0 + float64(i)
		return Candle{Open: c - 1, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	})
}

func fallingCandles(n int) []Candle {
	return genCandles(n, func(i int) Candle {
		c := 1000.0 - float64(i)
		return Candle{Open: c + 1, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	})
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"insufficient history", []float64{1, 2, 3}, 50},
		{"all gains", closes(risingCandles(30)), 100},
		{"all losses", closes(fallingCandles(30)), 0},
	}
	for _, tt := range tests {
		if got := RSI(tt.closes, rsiPeriod); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: RSI = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRSIBounded(t *testing.T) {
	// Mixed moves must land strictly between the extremes.
	cs := make([]float64, 40)
	for i := range cs {
		cs[i] = 100 + float64(i%3)
	}
	got := RSI(cs, rsiPeriod)
	if got <= 0 || got >= 100 {
		t.Fatalf("RSI = %v, want within (0, 100)", got)
	}
}

func TestATR(t *testing.T) {
	if got := ATR(risingCandles(5), atrPeriod); got != 0 {
		t.Fatalf("ATR with insufficient history = %v, want 0", got)
	}

	// Identical bars: true range is the constant high-low spread.
	flat := genCandles(30, func(i int) Candle {
		return Candle{Open: 11, High: 12, Low: 10, Close: 11, Volume: 1}
	})
	if got := ATR(flat, atrPeriod); math.Abs(got-2) > 1e-9 {
		t.Fatalf("ATR flat bars = %v, want 2", got)
	}
}

func TestVWAP(t *testing.T) {
	if got := VWAP(nil); got != 0 {
		t.Fatalf("VWAP(nil) = %v, want 0", got)
	}

	candles := genCandles(2, func(i int) Candle {
		if i == 0 {
			return Candle{High: 3, Low: 0, Close: 3, Volume: 1} // typical 2
		}
		return Candle{High: 6, Low: 0, Close: 6, Volume: 3} // typical 4
	})
	want := (2.0*1 + 4.0*3) / 4.0
	if got := VWAP(candles); math.Abs(got-want) > 1e-9 {
		t.Fatalf("VWAP = %v, want %v", got, want)
	}
}

func TestVWAPZeroVolumeFallsBackToClose(t *testing.T) {
	candles := genCandles(3, func(i int) Candle {
		return Candle{High: 10, Low: 8, Close: 9.5}
	})
	if got := VWAP(candles); got != 9.5 {
		t.Fatalf("VWAP zero volume = %v, want last close 9.5", got)
	}
}

func TestVWAPSessionBoundary(t *testing.T) {
	// A prior-day candle with an extreme price must not leak into the session.
	candles := []Candle{
		{Time: baseTime - 86400, High: 9000, Low: 9000, Close: 9000, Volume: 100},
		{Time: baseTime, High: 12, Low: 6, Close: 9, Volume: 10},
	}
	if got := VWAP(candles); math.Abs(got-9) > 1e-9 {
		t.Fatalf("VWAP across sessions = %v, want 9", got)
	}
}

func TestVolumeSurge(t *testing.T) {
	tests := []struct {
		name    string
		volumes []float64
		want    float64
	}{
		{"too short", []float64{5}, 0},
		{"no prior volume", []float64{0, 0, 10}, 0},
		{"5x spike", []float64{1, 1, 1, 1, 5}, 5},
		{"steady", []float64{2, 2, 2}, 1},
	}
	for _, tt := range tests {
		candles := genCandles(len(tt.volumes), func(i int) Candle {
			return Candle{Close: 1, Volume: tt.volumes[i]}
		})
		if got := VolumeSurge(candles); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: VolumeSurge = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestVolumeSurgeWindowCap(t *testing.T) {
	// Old volume beyond the 20-candle window must be ignored.
	candles := genCandles(40, func(i int) Candle {
		v := 1.0
		if i < 19 {
			v = 1000 // outside the window for the last candle
		}
		if i == 39 {
			v = 4
		}
		return Candle{Close: 1, Volume: v}
	})
	if got := VolumeSurge(candles); math.Abs(got-4) > 1e-9 {
		t.Fatalf("VolumeSurge = %v, want 4", got)
	}
}
