// Package bot forwards service alerts to a fixed set of Telegram chats.
//
// Errors are sent right away; lower levels are collected in a DigestBuffer
// and delivered as one message per chat on every interval.
package bot

import (
	"fmt"
	"invisifeed/lib/sl"
	"log/slog"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// Poster is the part of the Telegram API the bot uses; *tgbotapi.Bot implements it
type Poster interface {
	SendMessage(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error)
}

type TgBot struct {
	log     *slog.Logger
	api     Poster
	chatIds []int64
	digest  *DigestBuffer
}

func NewTgBot(apiKey string, chatIds []int64, log *slog.Logger) (*TgBot, error) {
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	return NewWithPoster(api, chatIds, log), nil
}

func NewWithPoster(api Poster, chatIds []int64, log *slog.Logger) *TgBot {
	return &TgBot{
		log:     log.With(sl.Module("tgbot")),
		api:     api,
		chatIds: chatIds,
	}
}

// Start enables digest delivery; without it every message is sent immediately
func (t *TgBot) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	t.digest = NewDigestBuffer(interval, t.deliverDigest)
	t.digest.StartTicker()
	t.log.With(
		slog.Int("chats", len(t.chatIds)),
		slog.Duration("digest", interval),
	).Info("telegram alerts started")
}

// Stop flushes pending digest entries
func (t *TgBot) Stop() {
	if t.digest != nil {
		t.digest.Stop()
	}
}
