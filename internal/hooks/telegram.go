package hooks

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
)

// MessageSender is the subset of *tgbotapi.BotAPI used for notifications.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers session-expired notifications to a Telegram chat.
type TelegramNotifier struct {
	sender MessageSender
	chatID int64
}

func NewTelegramNotifier(sender MessageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

var sessionExpiredTemplate = strings.TrimSpace(dedent.Dedent(`
	⚠️ <b>Session expired</b>

	%s
`))

// NotifySessionExpired sends the message. Delivery failures are logged and
// otherwise ignored so that session teardown is never blocked by Telegram.
func (n *TelegramNotifier) NotifySessionExpired(message string) {
	text := fmt.Sprintf(sessionExpiredTemplate, escapeHTML(message))
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.sender.Send(msg); err != nil {
		log.Error().Err(err).Int64("chatId", n.chatID).Msg("failed to send session expired notification")
	}
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
