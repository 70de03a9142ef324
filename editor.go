package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const botPIDFile = ".bot.pid"

// Editor is the interactive terminal menu for tuning scan parameters. Saving
// rotates the signal log, archives it on the logs branch and restarts the
// running bot so the new settings take effect.
type Editor struct {
	cfg       *Config
	in        *bufio.Reader
	tracker   *Tracker
	committer *LogCommitter
}

func NewEditor(cfg *Config) *Editor {
	return &Editor{
		cfg:       cfg,
		in:        bufio.NewReader(os.Stdin),
		tracker:   NewTracker(cfg.LogDir(), NewGeckoClient()),
		committer: NewLogCommitter(cfg.WorkDir),
	}
}

func (e *Editor) Run() error {
	changed := false
	for {
		e.printSettings()
		fmt.Println()
		fmt.Println("1) MCレンジを変更")
		fmt.Println("2) 最低流動性を変更")
		fmt.Println("3) 通知閾値を変更")
		fmt.Println("4) バンドパラメータを変更")
		fmt.Println("s) 保存して再起動")
		fmt.Println("q) 保存せず終了")

		switch e.prompt("選択") {
		case "1":
			changed = e.editMCRange() || changed
		case "2":
			changed = e.editLiquidity() || changed
		case "3":
			changed = e.editThreshold() || changed
		case "4":
			changed = e.editBand() || changed
		case "s":
			if !changed {
				fmt.Println("変更はありません。")
				return nil
			}
			return e.saveAndRestart()
		case "q":
			if changed {
				fmt.Println("変更を破棄しました。")
			}
			return nil
		default:
			fmt.Println("無効な選択です。")
		}
	}
}

func (e *Editor) printSettings() {
	s := e.cfg.Settings
	fmt.Println()
	fmt.Println("=== 現在の設定 ===")
	fmt.Printf("MCレンジ: %s 〜 %s\n", formatUSD(s.MCMin), formatUSD(s.MCMax))
	fmt.Printf("最低流動性: %s\n", formatUSD(s.LiqMin))
	fmt.Printf("通知閾値: %d点\n", s.NotifyThreshold)
	for i, b := range s.Bands {
		fmt.Printf("バンド%d (MC上限 %s): 足=%d分 RSI買われ過ぎ=%.0f SL=%.1fx TP=%.1fx 出来高急増=%.1fx\n",
			i+1, formatUSD(b.MCMax), b.OHLCVAggregate, b.RSIOverbought,
			b.ATRSLMult, b.ATRTPMult, b.VolumeSurgeMin)
	}
}

func (e *Editor) prompt(label string) string {
	fmt.Printf("%s> ", label)
	line, err := e.in.ReadString('\n')
	if err != nil {
		return "q"
	}
	return strings.TrimSpace(line)
}

func (e *Editor) promptFloat(label string, min, max float64) (float64, bool) {
	raw := e.prompt(fmt.Sprintf("%s (%.1f〜%.1f)", label, min, max))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < min || v > max {
		fmt.Println("範囲外の値です。変更をスキップします。")
		return 0, false
	}
	return v, true
}

func (e *Editor) editMCRange() bool {
	minRaw := e.prompt("最小MC (例 500K)")
	maxRaw := e.prompt("最大MC (例 50M)")
	mcMin, err1 := parseMCValue(minRaw)
	mcMax, err2 := parseMCValue(maxRaw)
	if err1 != nil || err2 != nil || mcMin < 0 || mcMin >= mcMax {
		fmt.Println("不正なレンジです。変更をスキップします。")
		return false
	}
	e.cfg.Settings.MCMin = mcMin
	e.cfg.Settings.MCMax = mcMax
	return true
}

func (e *Editor) editLiquidity() bool {
	v, ok := e.promptFloat("最低流動性 (USD)", 0, 10_000_000)
	if !ok {
		return false
	}
	e.cfg.Settings.LiqMin = v
	return true
}

func (e *Editor) editThreshold() bool {
	v, ok := e.promptFloat("通知閾値", 0, 100)
	if !ok {
		return false
	}
	e.cfg.Settings.NotifyThreshold = int(v)
	return true
}

func (e *Editor) editBand() bool {
	s := e.cfg.Settings
	idxRaw := e.prompt(fmt.Sprintf("バンド番号 (1〜%d)", len(s.Bands)))
	idx, err := strconv.Atoi(idxRaw)
	if err != nil || idx < 1 || idx > len(s.Bands) {
		fmt.Println("無効なバンド番号です。")
		return false
	}
	band := &s.Bands[idx-1]

	changed := false
	if v, ok := e.promptFloat("RSI買われ過ぎ", 50, 95); ok {
		band.RSIOverbought = v
		changed = true
	}
	if v, ok := e.promptFloat("損切りATR倍率", 0.5, 5); ok {
		band.ATRSLMult = v
		changed = true
	}
	if v, ok := e.promptFloat("利確ATR倍率", 1, 10); ok {
		band.ATRTPMult = v
		changed = true
	}
	if v, ok := e.promptFloat("出来高急増倍率", 1, 10); ok {
		band.VolumeSurgeMin = v
		changed = true
	}
	return changed
}

// saveAndRestart persists the settings, archives the current signal log on
// the logs branch and restarts the bot process so it picks up the new
// parameters with a fresh log file.
func (e *Editor) saveAndRestart() error {
	if err := e.cfg.Settings.Validate(); err != nil {
		return fmt.Errorf("設定の検証に失敗: %w", err)
	}
	if err := e.cfg.Settings.Save(e.cfg.WorkDir); err != nil {
		return fmt.Errorf("設定の保存に失敗: %w", err)
	}
	fmt.Println("✅ config.yaml を保存しました。")

	if e.tracker.HasOldOpenSignals() {
		fmt.Println("⚠️ 結果未確定のOPENシグナルが残っています。アーカイブに含まれます。")
	}

	archived, err := e.tracker.Rotate()
	if err != nil {
		return fmt.Errorf("ログのローテーションに失敗: %w", err)
	}
	if archived == "" {
		fmt.Println("シグナルログがないため、アーカイブをスキップします。")
	} else {
		fmt.Printf("📦 %s にローテーションしました。\n", archived)
		result, err := e.committer.CommitArchive(archived)
		if err != nil {
			log.Printf("[gitlog] アーカイブコミット失敗: %v", err)
			fmt.Printf("⚠️ アーカイブのコミットに失敗しました: %v\n", err)
		} else {
			fmt.Println(result)
		}
	}

	return e.restartBot()
}

// restartBot stops the running bot via the PID file, waits for it to exit
// and relaunches this binary detached in run mode.
func (e *Editor) restartBot() error {
	pidPath := filepath.Join(e.cfg.WorkDir, botPIDFile)
	data, err := os.ReadFile(pidPath)
	if err != nil {
		fmt.Println("稼働中のBotが見つかりません。再起動をスキップします。")
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("PIDファイルが不正です: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err == nil {
		if err := proc.Signal(syscall.SIGTERM); err == nil {
			fmt.Printf("Bot (PID %d) に停止シグナルを送信しました。\n", pid)
			for i := 0; i < 30; i++ {
				if !pidAlive(pid) {
					break
				}
				time.Sleep(time.Second)
			}
		}
	}
	_ = os.Remove(pidPath)

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("実行ファイルのパス取得に失敗: %w", err)
	}
	cmd := exec.Command(self, "run")
	cmd.Dir = e.cfg.WorkDir
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("Botの再起動に失敗: %w", err)
	}
	fmt.Printf("🚀 Bot を再起動しました (PID %d)\n", cmd.Process.Pid)
	return cmd.Process.Release()
}
