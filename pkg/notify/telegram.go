package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts admin-audience notifications to a coordinator chat. Other
// audiences are ignored.
type Telegram struct {
	api      chatSender
	chatID   int64
	renderer *Renderer
}

func NewTelegram(token string, chatID int64, r *Renderer) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, renderer: r}, nil
}

func (t *Telegram) Notify(_ context.Context, n Notification) error {
	if n.Audience != AudienceAdmin {
		return nil
	}
	subject, _, text, err := t.renderer.Render(n)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, subject+"\n\n"+text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
