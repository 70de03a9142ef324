package main

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// formatUSD renders a dollar amount with thousands separators and no cents.
func formatUSD(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

// formatInterval renders a second count as minutes when it divides evenly.
func formatInterval(seconds int) string {
	if seconds%60 == 0 {
		return fmt.Sprintf("%d分", seconds/60)
	}
	return fmt.Sprintf("%d秒", seconds)
}

// FormatAlert renders the notification for one high-scoring pair. HTML parse
// mode: the contract address sits in a <code> block so a tap copies it.
func FormatAlert(pair Pair, r ScoreResult) string {
	bd := r.Breakdown
	ts := time.Now().In(JST).Format("2006-01-02 15:04:05")

	lowWarn := ""
	if r.LowSample {
		lowWarn = " ⚠️ サンプル少"
	}
	symbol := html.EscapeString(pair.Symbol)
	name := html.EscapeString(pair.Name)
	ca := html.EscapeString(pair.TokenAddress)

	// Back out the supply from the entry price so every level can be shown
	// as a market cap, which is how these tokens are talked about.
	var supply, atrPct float64
	if r.Entry > 0 {
		supply = pair.MC / r.Entry
		atrPct = r.ATR / r.Entry * 100
	}
	slMC := r.StopLoss * supply
	tpMC := r.TakeProf * supply
	vwapMC := r.VWAP * supply
	atrMC := r.ATR * supply

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 ミームコインアラート 🚨\n\n")
	fmt.Fprintf(&b, "🪙 %s (%s)\n", symbol, name)
	fmt.Fprintf(&b, "🔗 Solana  |  📦 MC帯: %s\n", r.MCBand)
	fmt.Fprintf(&b, "📊 スコア: %d/100\n\n", r.Score)
	fmt.Fprintf(&b, "━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📈 スコア内訳\n")
	fmt.Fprintf(&b, "  出来高急増:  %.0f/25  (×%.1f / 閾値×%.0f)\n", bd.Volume, r.VolSurge, r.SurgeMin)
	fmt.Fprintf(&b, "  VWAP上抜け: %.0f/20\n", bd.VWAP)
	fmt.Fprintf(&b, "  RSI(9):     %.0f/20  (RSI: %.1f / 過熱閾値: %.0f)\n", bd.RSI, r.RSI, r.RSIOb)
	fmt.Fprintf(&b, "  流動性:     %.0f/15\n", bd.Liq)
	fmt.Fprintf(&b, "  再現性:     %.0f/20  (%d/%d回成功 / %.0f%%)%s\n",
		bd.Repro, r.Repro.SuccessCount, r.Repro.SignalCount, r.Repro.SuccessRate*100, lowWarn)
	fmt.Fprintf(&b, "  価格位置:   %s %s (%+.0f)\n", r.Pos.Stars, r.Pos.Label, bd.PPSBonus)
	fmt.Fprintf(&b, "  過熱ペナル: %.0f/−15\n\n", bd.Penalty)
	fmt.Fprintf(&b, "━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💰 現在MC:    %s\n", formatUSD(pair.MC))
	fmt.Fprintf(&b, "📉 損切りMC:  %s  (ATR×%.1f)\n", formatUSD(slMC), r.Band.ATRSLMult)
	fmt.Fprintf(&b, "📈 利確目標MC:%s  (ATR×%.1f)\n", formatUSD(tpMC), r.Band.ATRTPMult)
	fmt.Fprintf(&b, "⚖️  RR比:     1:%.1f\n", r.RiskRew)
	fmt.Fprintf(&b, "📐 ATR:       %.2f%%  (%s)\n", atrPct, formatUSD(atrMC))
	fmt.Fprintf(&b, "📊 VWAP MC:   %s\n\n", formatUSD(vwapMC))
	fmt.Fprintf(&b, "━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💧 流動性:   %s\n", formatUSD(pair.Liquidity))
	fmt.Fprintf(&b, "🕐 1h出来高: %s\n\n", formatUSD(pair.VolumeH1))
	fmt.Fprintf(&b, "📋 CA（タップでコピー）\n")
	fmt.Fprintf(&b, "<code>%s</code>\n", ca)
	fmt.Fprintf(&b, "⏰ %s JST", ts)
	return b.String()
}

// HelpText always reflects the current settings.
func HelpText(s *Settings) string {
	var b strings.Builder
	b.WriteString("🤖 Meme Scanner Bot\n")
	b.WriteString("Solana ミームコインをスキャンして高スコアのシグナルを通知します。\n\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	b.WriteString("📋 コマンド一覧\n\n")
	b.WriteString("/start          自動スキャン開始\n")
	b.WriteString("/stop           自動スキャン停止\n")
	b.WriteString("/scan           今すぐスキャン実行\n")
	b.WriteString("/status         現在の設定・稼働状況を表示\n")
	b.WriteString("/help           このヘルプを表示\n\n")
	b.WriteString("⚙️ 設定変更\n")
	b.WriteString("/threshold <点数>          通知閾値を変更\n")
	b.WriteString("  例: /threshold 65\n")
	b.WriteString("/setmc <最小> <最大>       MCレンジを変更\n")
	b.WriteString("  例: /setmc 500K 50M\n")
	b.WriteString("/setinterval <秒|分m>      スキャン間隔を変更\n")
	b.WriteString("  例: /setinterval 300\n")
	b.WriteString("  例: /setinterval 10m\n")
	b.WriteString("/logsummary                ログの勝率・損益サマリーを表示\n\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	b.WriteString("📊 スコア配点（100点満点）\n")
	b.WriteString("  出来高急増   25点\n")
	b.WriteString("  VWAP上抜け  20点\n")
	b.WriteString("  RSI(9)      20点\n")
	b.WriteString("  流動性       15点\n")
	b.WriteString("  再現性       20点\n")
	b.WriteString("  過熱ペナルティ −15点\n\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	b.WriteString("🎯 現在の設定\n")
	fmt.Fprintf(&b, "  MCレンジ:     %s 〜 %s\n", formatUSD(s.MCMin), formatUSD(s.MCMax))
	fmt.Fprintf(&b, "  通知閾値:     %d点以上\n", s.NotifyThreshold)
	fmt.Fprintf(&b, "  スキャン間隔: %s", formatInterval(s.ScanInterval))
	return b.String()
}

// StatusText renders /status.
func StatusText(s *Settings, running bool, lastScan string) string {
	state := "停止中 ⛔"
	if running {
		state = "稼働中 ✅"
	}
	var b strings.Builder
	b.WriteString("⚙️ 現在の設定\n\n")
	fmt.Fprintf(&b, "📦 MCレンジ:     %s 〜 %s\n", formatUSD(s.MCMin), formatUSD(s.MCMax))
	fmt.Fprintf(&b, "🎲 スキャン対象: MC上位%d件\n", scanTopN)
	fmt.Fprintf(&b, "🎯 通知閾値:     %d点以上\n", s.NotifyThreshold)
	fmt.Fprintf(&b, "⏱️ スキャン間隔: %s (%d秒)\n", formatInterval(s.ScanInterval), s.ScanInterval)
	fmt.Fprintf(&b, "🔄 自動スキャン: %s\n", state)
	fmt.Fprintf(&b, "⏰ 最終スキャン: %s", lastScan)
	return b.String()
}

// SummaryText renders /logsummary.
func SummaryText(s Summary) string {
	if s.Total == 0 {
		return "📋 ログにまだデータがありません。\n/start でスキャンを開始してください。"
	}

	var b strings.Builder
	b.WriteString("📊 シグナルログ サマリー\n\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📝 総記録数:        %d件\n", s.Total)
	fmt.Fprintf(&b, "⏳ 未確認(OPEN):    %d件\n", s.Open)
	fmt.Fprintf(&b, "✅ 確認済み:        %d件\n", s.Resolved)
	fmt.Fprintf(&b, "  🏆 WIN/WIN+:     %d件\n", s.Wins)
	fmt.Fprintf(&b, "  💀 LOSS/LOSS-:   %d件\n", s.Losses)
	fmt.Fprintf(&b, "  📈 勝率:          %.1f%%\n\n", s.WinRate)
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📣 通知済みシグナル: %d件\n", s.Notified)
	fmt.Fprintf(&b, "  確認済み:         %d件\n", s.NotifiedResolved)
	fmt.Fprintf(&b, "  通知後の勝率:     %.1f%%\n\n", s.NotifiedWinRate)
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "📊 平均スコア:      %.1f点\n", s.AvgScore)
	fmt.Fprintf(&b, "📈 平均損益率:      %+.2f%%\n\n", s.AvgPnl)
	fmt.Fprintf(&b, "💾 ログファイル:\n  %s", dailyLogName)
	return b.String()
}
