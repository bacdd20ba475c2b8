package bot

import (
	"log/slog"
)

func (t *TgBot) SendMessage(msg string) {
	t.SendMessageWithLevel(msg, slog.LevelError)
}

// SendMessageWithLevel sends errors to every chat immediately and buffers the rest for the digest
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	if level < slog.LevelError && t.digest != nil {
		t.digest.Add(msg, level)
		return
	}
	t.broadcast(msg)
}

func (t *TgBot) broadcast(text string) {
	for _, chatId := range t.chatIds {
		t.plainResponse(chatId, text)
	}
}

// deliverDigest splits a digest to fit the Telegram message limit
func (t *TgBot) deliverDigest(text string) {
	for _, part := range splitMessage(text, maxTelegramMessageLen) {
		t.broadcast(part)
	}
}
