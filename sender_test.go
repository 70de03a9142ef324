package main

import (
	"strings"
	"testing"
)

func TestSplitMessageShort(t *testing.T) {
	chunks := splitMessage("hello", 4096)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("got %v", chunks)
	}
}

func TestSplitMessageAtNewline(t *testing.T) {
	text := strings.Repeat("a", 90) + "\n" + strings.Repeat("b", 90)
	chunks := splitMessage(text, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n") {
		t.Error("first chunk should end at newline")
	}
	if !strings.HasPrefix(chunks[1], "b") {
		t.Error("second chunk should start after newline")
	}
}

func TestSplitMessageAtSpace(t *testing.T) {
	text := strings.Repeat("a", 90) + " " + strings.Repeat("b", 90)
	chunks := splitMessage(text, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestSplitMessageHardBreak(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := splitMessage(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk exceeds max length: %d", len(c))
		}
		total += len(c)
	}
	if total != 250 {
		t.Errorf("lost characters: total %d", total)
	}
}

func TestRedact(t *testing.T) {
	s := &Sender{secrets: []string{"secret-token", ""}}
	got := s.redact("error calling api with secret-token here")
	if strings.Contains(got, "secret-token") {
		t.Error("secret not redacted")
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Error("redaction marker missing")
	}
}
