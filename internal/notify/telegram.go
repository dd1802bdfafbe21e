package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tradehook/pkg/utils"
)

// TelegramSender доставляет сообщения в Telegram-чат
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender создает отправителя. Валидирует токен запросом getMe
func NewTelegramSender(botToken string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

// SendMessage отправляет HTML-сообщение в чат
func (t *TelegramSender) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// LogSender пишет уведомления в лог. Используется когда
// Telegram не сконфигурирован, чтобы движок работал без изменений
type LogSender struct {
	log *utils.Logger
}

// NewLogSender создает лог-отправителя
func NewLogSender(log *utils.Logger) *LogSender {
	if log == nil {
		log = utils.L()
	}
	return &LogSender{log: log.WithComponent("notify")}
}

// SendMessage пишет текст уведомления в лог
func (l *LogSender) SendMessage(text string) error {
	l.log.Info("notification", utils.String("message", text))
	return nil
}
