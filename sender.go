package main

import (
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxMessageLength = 4096

// Sender handles sending messages to Telegram with splitting, secret
// redaction and parse-mode fallback.
type Sender struct {
	api     *tgbotapi.BotAPI
	secrets []string // strings to redact from outgoing messages
}

func NewSender(api *tgbotapi.BotAPI, secrets []string) *Sender {
	return &Sender{api: api, secrets: secrets}
}

// redact replaces any secret values in text with "[REDACTED]".
func (s *Sender) redact(text string) string {
	for _, secret := range s.secrets {
		if secret != "" {
			text = strings.ReplaceAll(text, secret, "[REDACTED]")
		}
	}
	return text
}

// SendHTML sends text with HTML parse mode, falling back to plain text when
// Telegram rejects the markup. Long messages are split at newline/space
// boundaries.
func (s *Sender) SendHTML(chatID int64, text string) {
	text = s.redact(text)
	for i, chunk := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML

		if _, err := s.api.Send(msg); err != nil {
			log.Printf("HTML send failed (chunk %d): %v; falling back to plain text", i, err)
			msg := tgbotapi.NewMessage(chatID, chunk)
			if _, err := s.api.Send(msg); err != nil {
				log.Printf("plain text send also failed (chunk %d): %v", i, err)
			}
		}
	}
}

// SendPlain sends a plain text message without any formatting.
func (s *Sender) SendPlain(chatID int64, text string) {
	text = s.redact(text)
	for _, chunk := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if _, err := s.api.Send(msg); err != nil {
			log.Printf("send failed: %v", err)
		}
	}
}

// SendTyping sends a "typing..." indicator to the chat.
func (s *Sender) SendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	s.api.Send(action)
}

// splitMessage splits text into chunks respecting maxLen.
// Prefers splitting at newlines, then spaces, then hard breaks.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		splitAt := maxLen
		chunk := text[:maxLen]

		if idx := strings.LastIndex(chunk, "\n"); idx > 0 {
			splitAt = idx + 1
		} else if idx := strings.LastIndex(chunk, " "); idx > 0 {
			splitAt = idx + 1
		}

		chunks = append(chunks, text[:splitAt])
		text = text[splitAt:]
	}
	return chunks
}
