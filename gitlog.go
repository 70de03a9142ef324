package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// The logs branch holds commit history for signal_log.csv and its archives.
// It is built entirely from plumbing commands and is never checked out, so
// the bot keeps running on its own branch while logs are published.
const (
	logsBranch   = "logs"
	logsRef      = "refs/heads/logs"
	remoteName   = "origin"
	dailyLogName = "signal_log.csv"
	blobMode     = "100644"
)

var (
	// ErrSourceMissing: the archive file named on the command line does not
	// exist. The daily file being absent is a silent no-op instead.
	ErrSourceMissing = errors.New("log source file not found")
	// ErrDuplicateEntry: archive mode is insert-only; re-publishing an
	// existing archive name would otherwise corrupt the tree.
	ErrDuplicateEntry = errors.New("archive entry already exists on the logs branch")
)

// TreeEntry is one file in the logs branch tree. The tree is always flat:
// blob entries only, no directories.
type TreeEntry struct {
	Mode string
	Hash string
	Name string
}

// LogCommitter publishes log files as commits on the logs branch using
// object-level git commands (hash-object, mktree, commit-tree, update-ref).
type LogCommitter struct {
	runner  CommandRunner
	repoDir string
	locker  *Locker
	now     func() time.Time
}

// NewLogCommitter builds a committer for the repository at repoDir.
func NewLogCommitter(repoDir string) *LogCommitter {
	return &LogCommitter{
		runner:  NewExecRunner(repoDir),
		repoDir: repoDir,
		locker:  NewLocker(repoDir),
		now:     func() time.Time { return time.Now().In(JST) },
	}
}

// CommitDaily publishes logs/signal_log.csv, replacing the previous day's
// entry. A missing source file is not an error: the scheduled job simply has
// nothing to do yet.
func (c *LogCommitter) CommitDaily() (string, error) {
	source := filepath.Join(c.repoDir, "logs", dailyLogName)
	if _, err := os.Stat(source); os.IsNotExist(err) {
		log.Printf("[gitlog] %s がないためスキップ", dailyLogName)
		return fmt.Sprintf("%s が存在しないためコミットをスキップしました", dailyLogName), nil
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", source, err)
	}
	return c.publish(source, dailyLogName, false)
}

// CommitArchive publishes logs/<name> as a new entry, keeping every prior
// archive in the tree.
func (c *LogCommitter) CommitArchive(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid archive file name %q", name)
	}
	source := filepath.Join(c.repoDir, "logs", name)
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrSourceMissing, source)
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", source, err)
	}
	return c.publish(source, name, true)
}

// publish runs the whole fetch → blob → tree → commit → ref → push sequence.
// The branch ref only moves after the commit object fully exists, so a
// failure at any step leaves the branch untouched.
func (c *LogCommitter) publish(source, entryName string, archive bool) (string, error) {
	if _, err := c.originURL(); err != nil {
		return "", err
	}

	if err := c.locker.Acquire(); err != nil {
		return "", err
	}
	defer func() {
		if err := c.locker.Release(); err != nil {
			log.Printf("[gitlog] %v", err)
		}
	}()

	// Best effort: the first run has no remote branch to fetch.
	if _, err := c.runner.Run("git", "fetch", remoteName, logsBranch+":"+logsBranch); err != nil {
		log.Printf("[gitlog] fetch skipped: %v", err)
	}

	parent, err := c.runner.Run("git", "rev-parse", "--verify", logsRef)
	if err != nil {
		parent = "" // no prior history
	}

	blob, err := c.runner.Run("git", "hash-object", "-w", source)
	if err != nil {
		return "", fmt.Errorf("hash log file: %w", err)
	}

	var entries []TreeEntry
	if parent != "" {
		out, err := c.runner.Run("git", "ls-tree", parent)
		if err != nil {
			return "", fmt.Errorf("read parent tree: %w", err)
		}
		entries, err = parseTree(out)
		if err != nil {
			return "", err
		}
	}

	entry := TreeEntry{Mode: blobMode, Hash: blob, Name: entryName}
	if archive {
		entries, err = insertEntry(entries, entry)
		if err != nil {
			return "", err
		}
	} else {
		entries = upsertEntry(entries, entry)
	}

	tree, err := c.runner.RunInput(mktreeInput(entries), "git", "mktree")
	if err != nil {
		return "", fmt.Errorf("build tree: %w", err)
	}

	msg := commitMessage(c.now(), entryName, archive, parent == "")
	args := []string{"commit-tree", tree}
	if parent != "" {
		args = append(args, "-p", parent)
	}
	args = append(args, "-m", msg)
	commit, err := c.runner.Run("git", args...)
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}

	// Compare-and-swap on the observed parent: a concurrent run that moved
	// the branch first makes this fail cleanly instead of being overwritten.
	if _, err := c.runner.Run("git", "update-ref", logsRef, commit, parent); err != nil {
		return "", fmt.Errorf("advance %s: %w", logsRef, err)
	}

	if _, err := c.runner.Run("git", "push", remoteName, logsRef+":"+logsRef); err != nil {
		return "", fmt.Errorf("push %s: %w", logsBranch, err)
	}

	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	log.Printf("[gitlog] %s (%s)", msg, short)
	return fmt.Sprintf("%s を %s ブランチへコミットしました (%s)", entryName, logsBranch, short), nil
}

// originURL reads the push target out of .git/config. Failing here, before
// any object is written, gives a clear message when the clone has no remote.
func (c *LogCommitter) originURL() (string, error) {
	cfg, err := ini.Load(filepath.Join(c.repoDir, ".git", "config"))
	if err != nil {
		return "", fmt.Errorf("read .git/config: %w", err)
	}
	url := cfg.Section(`remote "` + remoteName + `"`).Key("url").String()
	if url == "" {
		return "", fmt.Errorf("remote %q is not configured in %s", remoteName, c.repoDir)
	}
	return url, nil
}

// parseTree converts ls-tree output ("<mode> <type> <hash>\t<name>") into
// entries. Anything but a blob means the flat-tree invariant was broken by
// hand, which is worth failing loudly over.
func parseTree(out string) ([]TreeEntry, error) {
	var entries []TreeEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		meta, name, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("malformed tree line %q", line)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed tree line %q", line)
		}
		if fields[1] != "blob" {
			return nil, fmt.Errorf("logs tree contains non-blob entry %q (%s)", name, fields[1])
		}
		entries = append(entries, TreeEntry{Mode: fields[0], Hash: fields[2], Name: name})
	}
	return entries, nil
}

// upsertEntry replaces the entry with the same name, or appends. Matching is
// by exact name: an archive like signal_log_until_20250101.csv must survive a
// daily rotation.
func upsertEntry(entries []TreeEntry, e TreeEntry) []TreeEntry {
	out := make([]TreeEntry, 0, len(entries)+1)
	for _, cur := range entries {
		if cur.Name != e.Name {
			out = append(out, cur)
		}
	}
	return append(out, e)
}

// insertEntry appends a new entry and refuses duplicates.
func insertEntry(entries []TreeEntry, e TreeEntry) ([]TreeEntry, error) {
	for _, cur := range entries {
		if cur.Name == e.Name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Name)
		}
	}
	return append(append([]TreeEntry(nil), entries...), e), nil
}

// mktreeInput renders entries in the format git mktree expects. Entries are
// sorted by name because mktree rejects out-of-order input.
func mktreeInput(entries []TreeEntry) string {
	sorted := append([]TreeEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, e := range sorted {
		fmt.Fprintf(&b, "%s blob %s\t%s\n", e.Mode, e.Hash, e.Name)
	}
	return b.String()
}

// commitMessage renders the fixed template:
//
//	log: 2025-01-02 00:00 JST signal_log.csv 自動コミット
func commitMessage(now time.Time, filename string, archive, first bool) string {
	suffix := "自動コミット"
	switch {
	case archive:
		suffix = "アーカイブ"
	case first:
		suffix = "初回コミット"
	}
	return fmt.Sprintf("log: %s JST %s %s", now.In(JST).Format("2006-01-02 15:04"), filename, suffix)
}
