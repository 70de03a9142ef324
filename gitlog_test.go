package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBlob   = "1111111111111111111111111111111111111111"
	testTree   = "2222222222222222222222222222222222222222"
	testCommit = "3333333333333333333333333333333333333333"
	testParent = "4444444444444444444444444444444444444444"
)

// scriptRunner records every git invocation and dispatches to a per-test
// handler keyed on the git subcommand.
type scriptRunner struct {
	calls  [][]string
	stdins []string
	handle func(input string, args []string) (string, error)
}

func (s *scriptRunner) Run(name string, args ...string) (string, error) {
	return s.RunInput("", name, args...)
}

func (s *scriptRunner) RunInput(input, name string, args ...string) (string, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	s.stdins = append(s.stdins, input)
	return s.handle(input, args)
}

func (s *scriptRunner) call(sub string) []string {
	for _, c := range s.calls {
		if len(c) > 1 && c[1] == sub {
			return c
		}
	}
	return nil
}

func (s *scriptRunner) stdinFor(sub string) string {
	for i, c := range s.calls {
		if len(c) > 1 && c[1] == sub {
			return s.stdins[i]
		}
	}
	return ""
}

// gitScript simulates a repository whose logs branch points at parent with
// the given ls-tree output. An empty parent simulates the first run.
func gitScript(t *testing.T, parent, lsTree string) func(string, []string) (string, error) {
	return func(input string, args []string) (string, error) {
		switch args[0] {
		case "fetch":
			if parent == "" {
				return "", errors.New("couldn't find remote ref logs")
			}
			return "", nil
		case "rev-parse":
			if parent == "" {
				return "", errors.New("fatal: Needed a single revision")
			}
			return parent, nil
		case "hash-object":
			return testBlob, nil
		case "ls-tree":
			return lsTree, nil
		case "mktree":
			return testTree, nil
		case "commit-tree":
			return testCommit, nil
		case "update-ref", "push":
			return "", nil
		default:
			t.Fatalf("unexpected git %v", args)
			return "", nil
		}
	}
}

// newTestRepo lays out a work dir with a configured origin remote and the
// named files under logs/.
func newTestRepo(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "config"),
		[]byte("[remote \"origin\"]\n\turl = git@github.com:someone/meme-scanner.git\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", f), []byte("time,token\n"), 0o644))
	}
	return dir
}

func newTestCommitter(dir string, runner CommandRunner) *LogCommitter {
	return &LogCommitter{
		runner:  runner,
		repoDir: dir,
		locker:  NewLocker(dir),
		now:     func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, JST) },
	}
}

func TestCommitDailyFirstRun(t *testing.T) {
	dir := newTestRepo(t, dailyLogName)
	runner := &scriptRunner{}
	runner.handle = gitScript(t, "", "")

	result, err := newTestCommitter(dir, runner).CommitDaily()
	require.NoError(t, err)
	assert.Contains(t, result, testCommit[:7])

	// Single-entry tree, no parent on the commit, ref created from nothing.
	assert.Equal(t, fmt.Sprintf("%s blob %s\t%s\n", blobMode, testBlob, dailyLogName), runner.stdinFor("mktree"))
	commitTree := runner.call("commit-tree")
	assert.NotContains(t, commitTree, "-p")
	assert.Contains(t, commitTree, "log: 2025-06-01 00:00 JST signal_log.csv 初回コミット")
	assert.Equal(t, []string{"git", "update-ref", logsRef, testCommit, ""}, runner.call("update-ref"))
	assert.Equal(t, []string{"git", "push", remoteName, logsRef + ":" + logsRef}, runner.call("push"))
}

func TestCommitDailyReplacesOnlyDailyEntry(t *testing.T) {
	const archiveHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	const oldDailyHash = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	lsTree := fmt.Sprintf("100644 blob %s\tsignal_log_until_20250101_000000.csv\n100644 blob %s\t%s",
		archiveHash, oldDailyHash, dailyLogName)

	dir := newTestRepo(t, dailyLogName)
	runner := &scriptRunner{}
	runner.handle = gitScript(t, testParent, lsTree)

	_, err := newTestCommitter(dir, runner).CommitDaily()
	require.NoError(t, err)

	stdin := runner.stdinFor("mktree")
	assert.Contains(t, stdin, archiveHash, "archive blob must survive a daily commit untouched")
	assert.NotContains(t, stdin, oldDailyHash, "previous daily blob must be replaced")
	assert.Contains(t, stdin, testBlob)

	// mktree requires name order; signal_log.csv sorts before the archive.
	lines := strings.Split(strings.TrimRight(stdin, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "\t"+dailyLogName))

	commitTree := runner.call("commit-tree")
	assert.Contains(t, commitTree, "-p")
	assert.Contains(t, commitTree, testParent)
	assert.Contains(t, strings.Join(commitTree, " "), "自動コミット")
	assert.Equal(t, []string{"git", "update-ref", logsRef, testCommit, testParent}, runner.call("update-ref"))
}

func TestCommitDailyExactNameMatch(t *testing.T) {
	// A file whose name merely contains the daily name must not be replaced.
	const otherHash = "cccccccccccccccccccccccccccccccccccccccc"
	lsTree := fmt.Sprintf("100644 blob %s\told_signal_log.csv", otherHash)

	dir := newTestRepo(t, dailyLogName)
	runner := &scriptRunner{}
	runner.handle = gitScript(t, testParent, lsTree)

	_, err := newTestCommitter(dir, runner).CommitDaily()
	require.NoError(t, err)

	stdin := runner.stdinFor("mktree")
	assert.Contains(t, stdin, "\told_signal_log.csv\n")
	assert.Contains(t, stdin, "\t"+dailyLogName+"\n")
	assert.Contains(t, stdin, otherHash)
}

func TestCommitDailyMissingFileSkips(t *testing.T) {
	dir := newTestRepo(t) // no signal_log.csv
	runner := &scriptRunner{handle: func(string, []string) (string, error) {
		t.Fatal("no git command should run when the source file is missing")
		return "", nil
	}}

	result, err := newTestCommitter(dir, runner).CommitDaily()
	require.NoError(t, err)
	assert.Contains(t, result, "スキップ")
	assert.Empty(t, runner.calls)
}

func TestCommitArchiveInsertsKeepingExisting(t *testing.T) {
	const keepHash = "dddddddddddddddddddddddddddddddddddddddd"
	lsTree := fmt.Sprintf("100644 blob %s\t%s", keepHash, dailyLogName)
	name := "signal_log_until_20250601_000000.csv"

	dir := newTestRepo(t, name)
	runner := &scriptRunner{}
	runner.handle = gitScript(t, testParent, lsTree)

	result, err := newTestCommitter(dir, runner).CommitArchive(name)
	require.NoError(t, err)
	assert.Contains(t, result, name)

	stdin := runner.stdinFor("mktree")
	assert.Contains(t, stdin, keepHash)
	assert.Contains(t, stdin, "\t"+name+"\n")
	assert.Contains(t, strings.Join(runner.call("commit-tree"), " "), "アーカイブ")
}

func TestCommitArchiveRejectsDuplicate(t *testing.T) {
	name := "signal_log_until_20250101_000000.csv"
	lsTree := fmt.Sprintf("100644 blob %s\t%s", testBlob, name)

	dir := newTestRepo(t, name)
	runner := &scriptRunner{}
	runner.handle = gitScript(t, testParent, lsTree)

	_, err := newTestCommitter(dir, runner).CommitArchive(name)
	require.ErrorIs(t, err, ErrDuplicateEntry)
	assert.Nil(t, runner.call("commit-tree"), "no commit may be created for a duplicate archive")
	assert.Nil(t, runner.call("update-ref"))
}

func TestCommitArchiveMissingFile(t *testing.T) {
	dir := newTestRepo(t)
	runner := &scriptRunner{handle: func(string, []string) (string, error) { return "", nil }}

	_, err := newTestCommitter(dir, runner).CommitArchive("nope.csv")
	require.ErrorIs(t, err, ErrSourceMissing)
}

func TestCommitArchiveRejectsPathNames(t *testing.T) {
	dir := newTestRepo(t)
	runner := &scriptRunner{handle: func(string, []string) (string, error) { return "", nil }}
	c := newTestCommitter(dir, runner)

	for _, name := range []string{"", "../escape.csv", "sub/dir.csv"} {
		_, err := c.CommitArchive(name)
		assert.Error(t, err, "name %q", name)
	}
	assert.Empty(t, runner.calls)
}

func TestPublishRequiresOrigin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", dailyLogName), []byte("x"), 0o644))

	runner := &scriptRunner{handle: func(string, []string) (string, error) { return "", nil }}
	_, err := newTestCommitter(dir, runner).CommitDaily()
	require.Error(t, err)
	assert.Empty(t, runner.calls, "origin check must run before any git command")
}

func TestPushFailurePropagates(t *testing.T) {
	dir := newTestRepo(t, dailyLogName)
	base := gitScript(t, "", "")
	runner := &scriptRunner{}
	runner.handle = func(input string, args []string) (string, error) {
		if args[0] == "push" {
			return "", errors.New("permission denied (publickey)")
		}
		return base(input, args)
	}

	_, err := newTestCommitter(dir, runner).CommitDaily()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestParseTree(t *testing.T) {
	entries, err := parseTree("100644 blob " + testBlob + "\ta.csv\n100644 blob " + testParent + "\tb.csv\n")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, TreeEntry{Mode: "100644", Hash: testBlob, Name: "a.csv"}, entries[0])

	_, err = parseTree("040000 tree " + testTree + "\tsubdir")
	assert.Error(t, err, "non-blob entries are rejected")

	_, err = parseTree("garbage")
	assert.Error(t, err)
}

func TestMktreeInputSorted(t *testing.T) {
	in := mktreeInput([]TreeEntry{
		{Mode: "100644", Hash: testBlob, Name: "z.csv"},
		{Mode: "100644", Hash: testParent, Name: "a.csv"},
	})
	assert.Equal(t,
		"100644 blob "+testParent+"\ta.csv\n100644 blob "+testBlob+"\tz.csv\n", in)
}

func TestCommitMessage(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 30, 0, JST)
	tests := []struct {
		archive, first bool
		want           string
	}{
		{false, false, "log: 2025-01-02 00:00 JST signal_log.csv 自動コミット"},
		{false, true, "log: 2025-01-02 00:00 JST signal_log.csv 初回コミット"},
		{true, false, "log: 2025-01-02 00:00 JST x.csv アーカイブ"},
	}
	for _, tt := range tests {
		name := dailyLogName
		if tt.archive {
			name = "x.csv"
		}
		assert.Equal(t, tt.want, commitMessage(now, name, tt.archive, tt.first))
	}
}
