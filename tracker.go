package main

import (
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Outcome timing: results are checked 60 minutes after a signal, declared
// UNKNOWN when no data shows up within 2 hours, and abandoned after 10 hours
// (beyond GeckoTerminal's minute-candle horizon).
const (
	outcomeCheckDelay   = 3600
	outcomeUnknownAfter = 2 * 3600
	outcomeMaxAge       = 10 * 3600
)

// utf8BOM makes the CSV open cleanly in Excel/Numbers.
const utf8BOM = "\uFEFF"

// trackerColumns is the sheet's column order. The outcome block at the end
// is filled in by CheckOutcomes once the 60-minute window has passed.
var trackerColumns = []string{
	"signal_id", "signal_time_jst", "signal_time_unix",
	"symbol", "mc_band", "mc", "liquidity",
	"entry_price", "sl_price", "tp_price", "rr_ratio",
	"atr", "vwap", "rsi", "vol_surge",
	"score_total", "score_volume", "score_vwap", "score_rsi",
	"score_liquidity", "score_repro", "score_penalty", "score_pps_bonus",
	"pps", "pps_label", "range_pct", "vwap_dev",
	"signal_count", "success_count", "success_rate", "adjusted_rate",
	"ohlcv_aggregate", "rsi_overbought", "atr_sl_mult", "atr_tp_mult", "volume_surge_min",
	"notified", "notify_threshold",
	"gecko_url", "pool_address", "token_address",
	"outcome_checked_at", "price_15m", "price_30m", "price_60m",
	"high_60m", "low_60m", "sl_hit", "tp_hit", "outcome", "pnl_pct",
}

// signalRow is one CSV row keyed by column name.
type signalRow map[string]string

// Tracker records every scored pair to logs/signal_log.csv and fills in the
// 60-minute outcome later.
type Tracker struct {
	mu    sync.Mutex
	dir   string
	file  string
	gecko *GeckoClient
	sleep func(time.Duration)
	now   func() time.Time
}

func NewTracker(logDir string, gecko *GeckoClient) *Tracker {
	return &Tracker{
		dir:   logDir,
		file:  filepath.Join(logDir, dailyLogName),
		gecko: gecko,
		sleep: time.Sleep,
		now:   func() time.Time { return time.Now().In(JST) },
	}
}

// ensureFile creates logs/ and an empty header-only CSV when missing.
func (t *Tracker) ensureFile() error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if _, err := os.Stat(t.file); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	f, err := os.Create(t.file)
	if err != nil {
		return fmt.Errorf("create %s: %w", t.file, err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(trackerColumns); err != nil {
		return err
	}
	w.Flush()
	log.Printf("[tracker] ログファイル新規作成: %s", t.file)
	return w.Error()
}

func (t *Tracker) readAll() ([]signalRow, error) {
	data, err := os.ReadFile(t.file)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM)))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", t.file, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]signalRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(signalRow, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *Tracker) writeAll(rows []signalRow) error {
	tmp := t.file + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	write := func() error {
		if _, err := f.WriteString(utf8BOM); err != nil {
			return err
		}
		w := csv.NewWriter(f)
		if err := w.Write(trackerColumns); err != nil {
			return err
		}
		for _, row := range rows {
			rec := make([]string, len(trackerColumns))
			for i, col := range trackerColumns {
				rec[i] = row[col]
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}

	if err := write(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, t.file)
}

// IsTokenOpen reports whether the token still has an unresolved row. Open
// tokens are skipped before any OHLCV is fetched for them.
func (t *Tracker) IsTokenOpen(tokenAddress string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureFile(); err != nil {
		log.Printf("[tracker] %v", err)
		return false
	}
	rows, err := t.readAll()
	if err != nil {
		log.Printf("[tracker] ログ読み込み失敗: %v", err)
		return false
	}
	for _, row := range rows {
		if row["token_address"] == tokenAddress && row["outcome"] == "OPEN" {
			return true
		}
	}
	return false
}

// HasOldOpenSignals reports whether any OPEN row is past its check delay.
// The config editor warns before rotating a log that still has these.
func (t *Tracker) HasOldOpenSignals() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureFile(); err != nil {
		return false
	}
	rows, err := t.readAll()
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	for _, row := range rows {
		if row["outcome"] != "OPEN" {
			continue
		}
		if ts, err := strconv.ParseInt(row["signal_time_unix"], 10, 64); err == nil && now-ts >= outcomeCheckDelay {
			return true
		}
	}
	return false
}

// Record appends one scored pair, notified or not. A token with an OPEN row
// is not recorded again. Returns the generated signal ID, empty when skipped.
func (t *Tracker) Record(pair Pair, result ScoreResult, poolAddress string, notified bool, threshold int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureFile(); err != nil {
		return "", err
	}
	rows, err := t.readAll()
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if row["token_address"] == pair.TokenAddress && row["outcome"] == "OPEN" {
			log.Printf("[tracker] スキップ（OPEN中）: %s", pair.Symbol)
			return "", nil
		}
	}

	now := t.now()
	id := newSignalID()
	bd := result.Breakdown

	row := signalRow{
		"signal_id":        id,
		"signal_time_jst":  now.Format("2006-01-02 15:04:05"),
		"signal_time_unix": strconv.FormatInt(now.Unix(), 10),
		"symbol":           pair.Symbol,
		"mc_band":          result.MCBand,
		"mc":               strconv.FormatInt(int64(pair.MC), 10),
		"liquidity":        strconv.FormatInt(int64(pair.Liquidity), 10),
		"entry_price":      formatFloat(result.Entry, -1),
		"sl_price":         formatFloat(result.StopLoss, -1),
		"tp_price":         formatFloat(result.TakeProf, -1),
		"rr_ratio":         formatFloat(result.RiskRew, 2),
		"atr":              formatFloat(result.ATR, -1),
		"vwap":             formatFloat(result.VWAP, -1),
		"rsi":              formatFloat(result.RSI, 2),
		"vol_surge":        formatFloat(result.VolSurge, 2),
		"score_total":      strconv.Itoa(result.Score),
		"score_volume":     formatFloat(bd.Volume, 1),
		"score_vwap":       formatFloat(bd.VWAP, 1),
		"score_rsi":        formatFloat(bd.RSI, 1),
		"score_liquidity":  formatFloat(bd.Liq, 1),
		"score_repro":      formatFloat(bd.Repro, 1),
		"score_penalty":    formatFloat(bd.Penalty, 1),
		"score_pps_bonus":  formatFloat(bd.PPSBonus, 1),
		"pps":              strconv.Itoa(result.Pos.PPS),
		"pps_label":        result.Pos.Label,
		"range_pct":        formatFloat(result.Pos.RangePct, 3),
		"vwap_dev":         formatFloat(result.Pos.VWAPDev, 2),
		"signal_count":     strconv.Itoa(result.Repro.SignalCount),
		"success_count":    strconv.Itoa(result.Repro.SuccessCount),
		"success_rate":     formatFloat(result.Repro.SuccessRate, 3),
		"adjusted_rate":    formatFloat(result.Repro.AdjustedRate, 3),
		"ohlcv_aggregate":  strconv.Itoa(result.Band.OHLCVAggregate),
		"rsi_overbought":   formatFloat(result.Band.RSIOverbought, -1),
		"atr_sl_mult":      formatFloat(result.Band.ATRSLMult, -1),
		"atr_tp_mult":      formatFloat(result.Band.ATRTPMult, -1),
		"volume_surge_min": formatFloat(result.Band.VolumeSurgeMin, -1),
		"notified":         strconv.FormatBool(notified),
		"notify_threshold": strconv.Itoa(threshold),
		"gecko_url":        pair.GeckoURL,
		"pool_address":     poolAddress,
		"token_address":    pair.TokenAddress,
		"outcome":          "OPEN",
	}

	rows = append(rows, row)
	if err := t.writeAll(rows); err != nil {
		return "", fmt.Errorf("write signal log: %w", err)
	}

	log.Printf("[tracker] 記録: %s  スコア=%d  notified=%v", pair.Symbol, result.Score, notified)
	return id, nil
}

// CheckOutcomes resolves OPEN signals older than the check delay and returns
// how many rows were updated.
func (t *Tracker) CheckOutcomes() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureFile(); err != nil {
		return 0, err
	}
	rows, err := t.readAll()
	if err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	updated := 0

	for _, row := range rows {
		if row["outcome"] != "OPEN" {
			continue
		}
		ts, err := strconv.ParseInt(row["signal_time_unix"], 10, 64)
		if err != nil {
			continue
		}
		age := now - ts
		if age < outcomeCheckDelay {
			continue
		}

		if age > outcomeMaxAge {
			row["outcome"] = "EXPIRED"
			row["outcome_checked_at"] = t.now().Format("2006-01-02 15:04:05")
			updated++
			log.Printf("[tracker] EXPIRED: %s (%d時間経過)", row["symbol"], age/3600)
			continue
		}

		entry, _ := strconv.ParseFloat(row["entry_price"], 64)
		sl, _ := strconv.ParseFloat(row["sl_price"], 64)
		tp, _ := strconv.ParseFloat(row["tp_price"], 64)

		outcome, err := t.fetchOutcome(row["pool_address"], ts, entry, sl, tp)
		switch {
		case err == nil && outcome != nil:
			for col, val := range outcome {
				row[col] = val
			}
			updated++
			log.Printf("[tracker] 結果確認: %s → %s  pnl=%s%%", row["symbol"], row["outcome"], row["pnl_pct"])
		case age >= outcomeUnknownAfter:
			row["outcome"] = "UNKNOWN"
			row["outcome_checked_at"] = t.now().Format("2006-01-02 15:04:05")
			updated++
			log.Printf("[tracker] UNKNOWN（データ取得不可）: %s", row["symbol"])
		case err != nil:
			log.Printf("[tracker] 結果確認失敗 (%s): %v", row["symbol"], err)
		}

		t.sleep(gtRequestInterval)
	}

	if updated > 0 {
		if err := t.writeAll(rows); err != nil {
			return 0, fmt.Errorf("write signal log: %w", err)
		}
		log.Printf("[tracker] %d件の結果を更新しました", updated)
	}
	return updated, nil
}

// fetchOutcome replays the hour after a signal on 5-minute candles and
// classifies it. A nil map with nil error means no data yet.
func (t *Tracker) fetchOutcome(poolAddress string, signalUnix int64, entry, sl, tp float64) (signalRow, error) {
	// Window end plus one candle of buffer so the hour is fully covered.
	candles, err := t.gecko.OHLCVBefore(poolAddress, 5, signalUnix+3900)
	if err != nil {
		return nil, err
	}

	// Start from the candle containing the signal (5m boundaries).
	const candleSec = 300
	windowStart := (signalUnix / candleSec) * candleSec
	windowEnd := signalUnix + 3600

	var window []Candle
	for _, c := range candles {
		if c.Time >= windowStart && c.Time <= windowEnd {
			window = append(window, c)
		}
	}
	if len(window) == 0 {
		return nil, nil
	}

	priceAt := func(target int64) (float64, bool) {
		var last float64
		found := false
		for _, c := range candles {
			if c.Time <= target {
				last = c.Close
				found = true
			}
		}
		return last, found
	}

	p15, ok15 := priceAt(signalUnix + 900)
	p30, ok30 := priceAt(signalUnix + 1800)
	p60, ok60 := priceAt(signalUnix + 3600)

	high60, low60 := window[0].High, window[0].Low
	for _, c := range window {
		if c.High > high60 {
			high60 = c.High
		}
		if c.Low < low60 {
			low60 = c.Low
		}
	}

	// First SL/TP hit decides the outcome; later candles only record
	// whether the other level was reached at all.
	slHit, tpHit := false, false
	firstHit := ""
	for _, c := range window {
		hitSL := c.Low <= sl
		hitTP := c.High >= tp
		if firstHit == "" {
			switch {
			case hitSL && hitTP:
				slHit, tpHit = true, true
				firstHit = "BOTH"
			case hitSL:
				slHit = true
				firstHit = "LOSS"
			case hitTP:
				tpHit = true
				firstHit = "WIN"
			}
		} else {
			if hitSL {
				slHit = true
			}
			if hitTP {
				tpHit = true
			}
		}
	}

	var outcome string
	switch {
	case firstHit != "":
		outcome = firstHit
	case ok60 && p60 > entry:
		outcome = "WIN+"
	case ok60:
		outcome = "LOSS-"
	default:
		outcome = "UNKNOWN"
	}

	pnl := ""
	if ok60 && entry > 0 {
		pnl = formatFloat((p60-entry)/entry*100, 2)
	}

	row := signalRow{
		"outcome_checked_at": t.now().Format("2006-01-02 15:04:05"),
		"high_60m":           formatFloat(high60, -1),
		"low_60m":            formatFloat(low60, -1),
		"sl_hit":             strconv.FormatBool(slHit),
		"tp_hit":             strconv.FormatBool(tpHit),
		"outcome":            outcome,
		"pnl_pct":            pnl,
	}
	if ok15 {
		row["price_15m"] = formatFloat(p15, -1)
	}
	if ok30 {
		row["price_30m"] = formatFloat(p30, -1)
	}
	if ok60 {
		row["price_60m"] = formatFloat(p60, -1)
	}
	return row, nil
}

// Summary aggregates the log for /logsummary.
type Summary struct {
	Total            int
	Open             int
	Resolved         int
	Wins             int
	Losses           int
	WinRate          float64
	Notified         int
	NotifiedResolved int
	NotifiedWinRate  float64
	NotifiedAvgPnl   float64
	AvgScore         float64
	AvgPnl           float64
}

func (t *Tracker) Summary() (Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureFile(); err != nil {
		return Summary{}, err
	}
	rows, err := t.readAll()
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	s.Total = len(rows)
	if s.Total == 0 {
		return s, nil
	}

	isWin := func(o string) bool { return o == "WIN" || o == "WIN+" }
	isLoss := func(o string) bool { return o == "LOSS" || o == "LOSS-" }
	isResolved := func(o string) bool { return isWin(o) || isLoss(o) || o == "BOTH" || o == "UNKNOWN" }

	var scoreSum, pnlSum, notifPnlSum float64
	var pnlN, notifPnlN, notifWins int

	for _, row := range rows {
		o := row["outcome"]
		notified := strings.EqualFold(row["notified"], "true")

		if o == "OPEN" {
			s.Open++
		}
		if isResolved(o) {
			s.Resolved++
		}
		if isWin(o) {
			s.Wins++
		}
		if isLoss(o) {
			s.Losses++
		}
		if notified {
			s.Notified++
			if isWin(o) || isLoss(o) {
				s.NotifiedResolved++
			}
			if isWin(o) {
				notifWins++
			}
		}

		if v, err := strconv.ParseFloat(row["score_total"], 64); err == nil {
			scoreSum += v
		}
		if row["pnl_pct"] != "" {
			if v, err := strconv.ParseFloat(row["pnl_pct"], 64); err == nil {
				pnlSum += v
				pnlN++
				if notified {
					notifPnlSum += v
					notifPnlN++
				}
			}
		}
	}

	if s.Resolved > 0 {
		s.WinRate = round1(float64(s.Wins) / float64(s.Resolved) * 100)
	}
	if s.NotifiedResolved > 0 {
		s.NotifiedWinRate = round1(float64(notifWins) / float64(s.NotifiedResolved) * 100)
	}
	if pnlN > 0 {
		s.AvgPnl = round2(pnlSum / float64(pnlN))
	}
	if notifPnlN > 0 {
		s.NotifiedAvgPnl = round2(notifPnlSum / float64(notifPnlN))
	}
	s.AvgScore = round1(scoreSum / float64(s.Total))
	return s, nil
}

// Rotate archives the current CSV under a timestamped name and starts a
// fresh one. Returns the archive file name, empty when there was nothing to
// rotate.
func (t *Tracker) Rotate() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	archived := ""
	if _, err := os.Stat(t.file); err == nil {
		archived = fmt.Sprintf("signal_log_until_%s.csv", t.now().Format("20060102_150405"))
		if err := os.Rename(t.file, filepath.Join(t.dir, archived)); err != nil {
			return "", fmt.Errorf("archive signal log: %w", err)
		}
		log.Printf("[tracker] アーカイブ: %s", archived)
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := t.ensureFile(); err != nil {
		return "", err
	}
	log.Printf("[tracker] 新しい %s を作成しました", dailyLogName)
	return archived, nil
}

// RecentNotified returns the notification times of tokens alerted within
// ttl, for rebuilding the notification cache after a restart.
func (t *Tracker) RecentNotified(ttl time.Duration) (map[string]time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := os.Stat(t.file); os.IsNotExist(err) {
		return nil, nil
	}
	rows, err := t.readAll()
	if err != nil {
		return nil, err
	}

	recent := make(map[string]time.Time)
	now := time.Now()
	for _, row := range rows {
		if !strings.EqualFold(row["notified"], "true") {
			continue
		}
		ts, err := strconv.ParseInt(row["signal_time_unix"], 10, 64)
		if err != nil {
			continue
		}
		at := time.Unix(ts, 0)
		if now.Sub(at) >= ttl {
			continue
		}
		if prev, ok := recent[row["token_address"]]; !ok || prev.Before(at) {
			recent[row["token_address"]] = at
		}
	}
	return recent, nil
}

// newSignalID returns an 8-hex-char random identifier.
func newSignalID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano()&0xffffffff, 16)
	}
	return hex.EncodeToString(b[:])
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func round1(v float64) float64 { return float64(int(v*10+sign(v)*0.5)) / 10 }
func round2(v float64) float64 { return float64(int(v*100+sign(v)*0.5)) / 100 }

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
