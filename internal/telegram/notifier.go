// Package telegram delivers complaint notifications to citizens through the
// Telegram Bot API.
package telegram

import (
	"complaints/backend/internal/localization"
	"complaints/backend/internal/models"
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier renders notifications in the recipient's language and sends them
// to the recipient's Telegram chat. Without a bot, or for users that never
// linked a chat, the rendered text is only logged.
type Notifier struct {
	Bot       Sender
	Localizer *localization.Localizer
}

// NewNotifier connects to the Bot API when token is set.
func NewNotifier(token string, localizer *localization.Localizer) (*Notifier, error) {
	n := &Notifier{Localizer: localizer}
	if token == "" {
		log.Println("WARN: TELEGRAM_BOT_TOKEN is not set, notifications will only be logged.")
		return n, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	bot.Debug = false
	log.Printf("INFO: Authorized on account %s", bot.Self.UserName)

	n.Bot = bot
	return n, nil
}

// Notify sends n to recipient.
func (t *Notifier) Notify(ctx context.Context, recipient *models.User, n models.Notification) error {
	if recipient == nil {
		return fmt.Errorf("notify %s: no recipient", n.TrackingNumber)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := t.Render(recipient.Language, n)
	if t.Bot == nil || recipient.TelegramChatID == 0 {
		log.Printf("INFO: Notification for user %s: %s", recipient.ID, text)
		return nil
	}

	msg := tgbotapi.NewMessage(recipient.TelegramChatID, text)
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message to user %s: %w", recipient.ID, err)
	}
	return nil
}

// Render produces the localized text of n.
func (t *Notifier) Render(lang string, n models.Notification) string {
	if lang == "" {
		lang = localization.DefaultLanguage
	}
	if t.Localizer == nil {
		return fmt.Sprintf("%s: %s", n.Kind, n.TrackingNumber)
	}

	return t.Localizer.Format(lang, "notification."+string(n.Kind), map[string]string{
		"tracking_number": n.TrackingNumber,
		"old_status":      t.statusLabel(lang, n.OldStatus),
		"new_status":      t.statusLabel(lang, n.NewStatus),
		"message":         n.Message,
	})
}

func (t *Notifier) statusLabel(lang string, s models.ComplaintStatus) string {
	if s == "" {
		return ""
	}
	return t.Localizer.GetString(lang, "status."+string(s))
}
