package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot ties together the Telegram API, the scanner pipeline, the tracker and
// the log committer.
type Bot struct {
	api       *tgbotapi.BotAPI
	sender    *Sender
	cfg       *Config
	gecko     *GeckoClient
	tracker   *Tracker
	cache     *NotificationCache
	committer *LogCommitter

	mu       sync.Mutex
	running  bool
	stopScan chan struct{}
	lastScan string
	scanBusy sync.Mutex // one scan at a time
}

func NewBot(cfg *Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	gecko := NewGeckoClient()
	tracker := NewTracker(cfg.LogDir(), gecko)
	cache := NewNotificationCache(time.Duration(cfg.Settings.NotifyTTL) * time.Second)
	cache.Restore(tracker)

	return &Bot{
		api:       api,
		sender:    NewSender(api, []string{cfg.TelegramToken}),
		cfg:       cfg,
		gecko:     gecko,
		tracker:   tracker,
		cache:     cache,
		committer: NewLogCommitter(cfg.WorkDir),
		lastScan:  "未実行",
	}, nil
}

// Run sends the startup greeting, starts the daily commit job and blocks on
// the update loop.
func (b *Bot) Run() {
	ts := time.Now().In(JST).Format("2006-01-02 15:04:05")
	b.sender.SendPlain(b.cfg.ChatID, fmt.Sprintf("✅ Bot が起動しました（%s JST）\n\n", ts)+HelpText(b.cfg.Settings))
	log.Println("起動通知を送信しました")

	go b.dailyCommitLoop()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		go b.handleUpdate(update)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	log.Printf("Received update %d for chat %d", update.UpdateID, chatID)

	// Only the configured chat may drive the bot.
	if chatID != b.cfg.ChatID {
		b.sender.SendPlain(chatID, "このチャットからの操作は許可されていません。")
		return
	}

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		b.handleStart(chatID)
	case "stop":
		b.handleStop(chatID)
	case "scan":
		b.handleScanNow(chatID)
	case "status":
		b.handleStatus(chatID)
	case "threshold":
		b.handleThreshold(chatID, msg.CommandArguments())
	case "setmc":
		b.handleSetMC(chatID, msg.CommandArguments())
	case "setinterval":
		b.handleSetInterval(chatID, msg.CommandArguments())
	case "logsummary":
		b.handleLogSummary(chatID)
	case "help":
		b.sender.SendPlain(chatID, HelpText(b.settingsSnapshot()))
	default:
		b.sender.SendPlain(chatID, HelpText(b.settingsSnapshot()))
	}
}

// settingsSnapshot returns the live settings pointer under the lock; fields
// read for display may be a tick stale, which is fine.
func (b *Bot) settingsSnapshot() *Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Settings
}

func (b *Bot) handleStart(chatID int64) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		b.sender.SendPlain(chatID, "✅ 自動スキャンはすでに稼働中です。")
		return
	}
	b.running = true
	b.stopScan = make(chan struct{})
	stop := b.stopScan
	interval := b.cfg.Settings.ScanInterval
	threshold := b.cfg.Settings.NotifyThreshold
	b.mu.Unlock()

	go b.scanLoop(stop)
	go b.outcomeLoop(stop)

	b.sender.SendPlain(chatID, fmt.Sprintf(
		"🚀 スキャンBot起動\n⏱️ スキャン間隔: %s\n🎯 通知閾値: %d点以上",
		formatInterval(interval), threshold))
}

func (b *Bot) handleStop(chatID int64) {
	b.mu.Lock()
	if b.running {
		close(b.stopScan)
		b.running = false
	}
	b.mu.Unlock()
	b.sender.SendPlain(chatID, "⛔ 自動スキャンを停止しました。")
}

func (b *Bot) handleScanNow(chatID int64) {
	b.sender.SendPlain(chatID, "🔍 即時スキャンを実行します...")
	b.sender.SendTyping(chatID)
	b.runScan()
	b.sender.SendPlain(chatID, "✅ スキャン完了")
}

func (b *Bot) handleStatus(chatID int64) {
	b.mu.Lock()
	running, lastScan := b.running, b.lastScan
	b.mu.Unlock()
	b.sender.SendPlain(chatID, StatusText(b.settingsSnapshot(), running, lastScan))
}

func (b *Bot) handleThreshold(chatID int64, args string) {
	args = strings.TrimSpace(args)
	val, err := strconv.Atoi(args)
	if args == "" || err != nil {
		b.sender.SendPlain(chatID, "❌ 使い方: /threshold <点数>  例: /threshold 65")
		return
	}
	if val < 0 || val > 100 {
		b.sender.SendPlain(chatID, "❌ 0〜100の範囲で指定してください。")
		return
	}

	b.mu.Lock()
	b.cfg.Settings.NotifyThreshold = val
	b.saveSettingsLocked()
	b.mu.Unlock()

	b.sender.SendPlain(chatID, fmt.Sprintf("✅ 通知閾値を %d点 に変更しました。", val))
}

// parseMCValue accepts plain numbers plus K/M suffixes ("500K", "50M").
func parseMCValue(s string) (float64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "M"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		mult = 1_000
		s = strings.TrimSuffix(s, "K")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return v * mult, nil
}

func (b *Bot) handleSetMC(chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.sender.SendPlain(chatID, "❌ 使い方: /setmc <最小> <最大>\n例: /setmc 500K 50M\n例: /setmc 1000000 30000000")
		return
	}

	mcMin, err1 := parseMCValue(fields[0])
	mcMax, err2 := parseMCValue(fields[1])
	if err1 != nil || err2 != nil {
		b.sender.SendPlain(chatID, "❌ 数値の形式が不正です。例: /setmc 500K 50M")
		return
	}
	if mcMin >= mcMax {
		b.sender.SendPlain(chatID, "❌ 最小値は最大値より小さくしてください。")
		return
	}
	if mcMin < 0 {
		b.sender.SendPlain(chatID, "❌ 負の値は指定できません。")
		return
	}

	b.mu.Lock()
	b.cfg.Settings.MCMin = mcMin
	b.cfg.Settings.MCMax = mcMax
	b.saveSettingsLocked()
	b.mu.Unlock()

	b.sender.SendPlain(chatID, fmt.Sprintf(
		"✅ MCレンジを更新しました\n📦 最小: %s\n📦 最大: %s\n次回スキャンから反映されます。",
		formatUSD(mcMin), formatUSD(mcMax)))
}

func (b *Bot) handleSetInterval(chatID int64, args string) {
	raw := strings.ToLower(strings.TrimSpace(args))
	if raw == "" {
		b.sender.SendPlain(chatID, "❌ 使い方: /setinterval <秒数 または 分mで指定>\n  例: /setinterval 300     （300秒）\n  例: /setinterval 5m      （5分）\n  最低値: 60秒")
		return
	}

	var seconds int
	if strings.HasSuffix(raw, "m") {
		mins, err := strconv.ParseFloat(strings.TrimSuffix(raw, "m"), 64)
		if err != nil {
			b.sender.SendPlain(chatID, "❌ 数値の形式が不正です。例: /setinterval 300 または /setinterval 5m")
			return
		}
		seconds = int(mins * 60)
	} else {
		var err error
		seconds, err = strconv.Atoi(raw)
		if err != nil {
			b.sender.SendPlain(chatID, "❌ 数値の形式が不正です。例: /setinterval 300 または /setinterval 5m")
			return
		}
	}

	if seconds < 60 {
		b.sender.SendPlain(chatID, "❌ スキャン間隔は60秒以上に設定してください。")
		return
	}

	b.mu.Lock()
	b.cfg.Settings.ScanInterval = seconds
	b.saveSettingsLocked()
	running := b.running
	b.mu.Unlock()

	disp := formatInterval(seconds)
	if running {
		b.sender.SendPlain(chatID, fmt.Sprintf(
			"✅ スキャン間隔を %s に変更しました\n次のスキャンは %s 後に実行されます。", disp, disp))
	} else {
		b.sender.SendPlain(chatID, fmt.Sprintf(
			"✅ スキャン間隔を %s に変更しました\n/start で自動スキャンを開始すると反映されます。", disp))
	}
}

func (b *Bot) handleLogSummary(chatID int64) {
	s, err := b.tracker.Summary()
	if err != nil {
		b.sender.SendPlain(chatID, fmt.Sprintf("⚠️ ログの読み込みに失敗しました: %v", err))
		return
	}
	b.sender.SendPlain(chatID, SummaryText(s))
}

// saveSettingsLocked persists the settings; b.mu must be held. Persistence
// failures lose the change across restarts but not the running session.
func (b *Bot) saveSettingsLocked() {
	if err := b.cfg.Settings.Save(b.cfg.WorkDir); err != nil {
		log.Printf("WARN: settings save failed: %v", err)
	}
}

// scanLoop runs a scan immediately and then at the configured interval,
// re-reading the interval each cycle so /setinterval applies on the next
// tick.
func (b *Bot) scanLoop(stop <-chan struct{}) {
	b.runScan()
	for {
		b.mu.Lock()
		interval := time.Duration(b.cfg.Settings.ScanInterval) * time.Second
		b.mu.Unlock()

		select {
		case <-stop:
			return
		case <-time.After(interval):
			b.runScan()
		}
	}
}

// outcomeLoop resolves pending signals every 15 minutes, first run after one
// minute so a restart catches up quickly.
func (b *Bot) outcomeLoop(stop <-chan struct{}) {
	wait := time.Minute
	for {
		select {
		case <-stop:
			return
		case <-time.After(wait):
			if updated, err := b.tracker.CheckOutcomes(); err != nil {
				log.Printf("[tracker] バックグラウンド結果確認失敗: %v", err)
			} else if updated > 0 {
				log.Printf("[tracker] バックグラウンド結果確認: %d件更新", updated)
			}
			wait = 15 * time.Minute
		}
	}
}

// runScan is the full pipeline: trending pools → filter → per-pair OHLCV →
// score → notify/record.
func (b *Bot) runScan() {
	b.scanBusy.Lock()
	defer b.scanBusy.Unlock()

	log.Println("スキャン開始")

	b.mu.Lock()
	settings := *b.cfg.Settings
	bandsCopy := append([]BandParams(nil), b.cfg.Settings.Bands...)
	b.mu.Unlock()
	settings.Bands = bandsCopy

	pairs := FilterTrending(b.gecko.TrendingPools(), &settings)
	log.Printf("Stage1完了: MCレンジ内から%d件をスキャン", len(pairs))

	for _, pair := range pairs {
		if b.cache.IsRecent(pair.TokenAddress) {
			log.Printf("%s: キャッシュ済みのためスキップ", pair.Symbol)
			continue
		}
		if b.tracker.IsTokenOpen(pair.TokenAddress) {
			log.Printf("%s: OPEN中のためスキップ", pair.Symbol)
			continue
		}
		if pair.PairAddress == "" {
			log.Printf("%s: プールアドレスなし、スキップ", pair.Symbol)
			continue
		}

		time.Sleep(gtRequestInterval)
		candles, err := b.gecko.OHLCV(pair.PairAddress, settings.Band(pair.MC).OHLCVAggregate)
		if err != nil {
			log.Printf("%s: OHLCV取得失敗: %v", pair.Symbol, err)
			continue
		}
		if len(candles) < minCandles {
			log.Printf("%s: OHLCVデータ不足（%d本）、スキップ", pair.Symbol, len(candles))
			continue
		}

		result := CalculateScore(candles, pair, &settings)
		log.Printf("%s: %d点", pair.Symbol, result.Score)

		notified := result.Score >= settings.NotifyThreshold
		if notified {
			b.sender.SendHTML(b.cfg.ChatID, FormatAlert(pair, result))
			b.cache.Mark(pair.TokenAddress)
			log.Printf("%s: 通知送信（%d点）", pair.Symbol, result.Score)
		}

		if _, err := b.tracker.Record(pair, result, pair.PairAddress, notified, settings.NotifyThreshold); err != nil {
			log.Printf("%s: ログ記録失敗: %v", pair.Symbol, err)
		}
	}

	b.mu.Lock()
	b.lastScan = time.Now().In(JST).Format("2006-01-02 15:04:05")
	b.mu.Unlock()
	log.Println("スキャン完了")
}

// dailyCommitLoop publishes signal_log.csv to the logs branch at 00:00 JST
// every day and reports the result to the chat.
func (b *Bot) dailyCommitLoop() {
	for {
		now := time.Now().In(JST)
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, JST).AddDate(0, 0, 1)
		time.Sleep(time.Until(next))

		result, err := b.committer.CommitDaily()
		if err != nil {
			log.Printf("[gitlog] コミット失敗: %v", err)
			b.sender.SendPlain(b.cfg.ChatID, fmt.Sprintf("⚠️ %s のコミットに失敗しました\n%v", dailyLogName, err))
			continue
		}
		log.Printf("[gitlog] %s", result)
		b.sender.SendPlain(b.cfg.ChatID, fmt.Sprintf("📊 %s を GitHub (%s ブランチ) にコミットしました\n%s", dailyLogName, logsBranch, result))
	}
}
