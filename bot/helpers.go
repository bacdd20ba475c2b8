package bot

import (
	"invisifeed/lib/sl"
	"log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

const reservedChars = "\\_{}#+-.!|()[]=*`>~"

// plainResponse posts MarkdownV2 and falls back to the unescaped text when Telegram rejects the markup
func (t *TgBot) plainResponse(chatId int64, text string) {
	logger := t.log.With(slog.Int64("chat", chatId))
	if text == "" {
		logger.Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err == nil {
		return
	}
	logger.Warn("sending markdown message", sl.Err(err))
	if _, err = t.api.SendMessage(chatId, unescape(text), &tgbotapi.SendMessageOpts{}); err != nil {
		logger.Error("sending plain message", sl.Err(err))
	}
}

// Sanitize escapes MarkdownV2 reserved characters
func Sanitize(input string) string {
	var sb strings.Builder
	sb.Grow(len(input))
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}

func unescape(input string) string {
	var sb strings.Builder
	sb.Grow(len(input))
	escaped := false
	for _, char := range input {
		if char == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteRune(char)
	}
	return sb.String()
}

// splitMessage cuts text into parts of at most maxLen bytes, preferring line
// breaks and never splitting a rune or an escape pair
func splitMessage(text string, maxLen int) []string {
	var parts []string
	for len(text) > maxLen {
		cut := strings.LastIndexByte(text[:maxLen], '\n') + 1
		if cut == 0 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut > 0 && text[cut-1] == '\\' {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
