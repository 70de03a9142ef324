package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "meme-scanner",
		Short: "Solana meme token scanner with a Telegram bot frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the scanner bot (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "commit-logs [archive-file]",
		Short: "Publish log files as commits on the logs branch",
		Long: "Without arguments, commits signal_log.csv (daily mode, replacing the\n" +
			"previous day's entry). With an archive file name, inserts that file as a\n" +
			"new entry; existing entries are never overwritten.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			committer := NewLogCommitter(cfg.WorkDir)

			var result string
			if len(args) == 0 {
				result, err = committer.CommitDaily()
			} else {
				result, err = committer.CommitArchive(args[0])
			}
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "edit-config",
		Short: "Interactively edit scan settings, archive the log and restart the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			return NewEditor(cfg).Run()
		},
	})

	if err := root.Execute(); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

func runBot() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	if err := SetupGit(cfg); err != nil {
		log.Printf("WARN: git setup failed, log commits may not push: %v", err)
	}

	pidPath := filepath.Join(cfg.WorkDir, botPIDFile)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		log.Printf("WARN: could not write %s: %v", botPIDFile, err)
	}
	defer os.Remove(pidPath)

	bot, err := NewBot(cfg)
	if err != nil {
		return fmt.Errorf("bot init failed: %w", err)
	}

	go bot.Run()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Printf("received %s, shutting down", s)
	return nil
}
