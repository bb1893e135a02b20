package clients

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramClient sends direct messages through the Telegram Bot API.
type TelegramClient struct {
	bot *bot.Bot
}

func NewTelegramClient(token string) (*TelegramClient, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &TelegramClient{bot: b}, nil
}

// SendMessage sends an HTML message to a user or chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	disablePreview := true
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disablePreview,
		},
	})
	return err
}
