package telegram

import (
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbELI5Yes = "eli5_yes"
	cbELI5No  = "eli5_no"

	// Telegram caps a message at 4096 characters.
	maxMessageRunes = 3900
)

const (
	startText = "Пришлите медицинское изображение (jpg или png) — я проанализирую его с помощью Google Gemini.\nКоманды: /health, /reset"
	hintText  = "Пришлите изображение (фото или файл jpg/png) для анализа."

	acceptedText = "Изображение получено. Анализирую…"
	eli5Question = "ELI5 - Объяснить как пятилетнему?"
	eli5NoText   = "Хорошо, без упрощения."
)

func makeELI5Keyboard() tgbotapi.InlineKeyboardMarkup {
	no := tgbotapi.NewInlineKeyboardButtonData("Нет", cbELI5No)
	yes := tgbotapi.NewInlineKeyboardButtonData("Да", cbELI5Yes)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(no, yes))
}

// splitMessage cuts text into chunks of at most max runes, preferring
// line boundaries.
func splitMessage(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	for utf8.RuneCountInString(text) > max {
		runes := []rune(text)
		cut := max
		if i := lastIndexRune(runes[:max], '\n'); i > max/2 {
			cut = i
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		text = strings.TrimSpace(string(runes[cut:]))
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func lastIndexRune(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
