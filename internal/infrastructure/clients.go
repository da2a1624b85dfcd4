package infrastructure

import (
	"context"
	"strconv"

	"hekumbi_chat/internal/interfaces"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// TelegramAlerter forwards operator alerts to a Telegram chat.
type TelegramAlerter struct {
	Bot      *tgbotapi.BotAPI
	chatID   int64
	keyboard *tgbotapi.InlineKeyboardMarkup
	log      logrus.FieldLogger
}

// NopAlerter is used when no alert channel is configured.
type NopAlerter struct{}

func (NopAlerter) Alert(ctx context.Context, text string) {}

// NewTelegramAlerter returns a NopAlerter when the token or chat id is
// missing or the bot cannot be reached. When panelURL is set every alert
// carries a button that opens the admin dashboard.
func NewTelegramAlerter(token, chatID, panelURL string, log logrus.FieldLogger) interfaces.Alerter {
	if token == "" || chatID == "" {
		log.Info("Telegram alerts disabled: TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set")
		return NopAlerter{}
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		log.WithError(err).Warn("Telegram alerts disabled: invalid TELEGRAM_CHAT_ID")
		return NopAlerter{}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.WithError(err).Warn("Telegram alerts disabled: bot token rejected")
		return NopAlerter{}
	}
	log.WithField("bot", bot.Self.UserName).Info("Telegram alerts enabled")
	return &TelegramAlerter{Bot: bot, chatID: id, keyboard: PanelKeyboard(panelURL), log: log}
}

// PanelKeyboard returns the inline keyboard attached to alerts, or nil
// without a dashboard address.
func PanelKeyboard(panelURL string) *tgbotapi.InlineKeyboardMarkup {
	if panelURL == "" {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📋 Abrir painel", panelURL),
		),
	)
	return &kb
}

// Alert sends in the background; a failed alert is logged and dropped.
func (t *TelegramAlerter) Alert(ctx context.Context, text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if t.keyboard != nil {
		msg.ReplyMarkup = t.keyboard
	}
	go func() {
		if _, err := t.Bot.Send(msg); err != nil {
			t.log.WithError(err).Warn("Telegram alert failed")
		}
	}()
}
