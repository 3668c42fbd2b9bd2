package fanout

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// TelegramTransport delivers through the Telegram Bot API.
type TelegramTransport struct {
	bot *telego.Bot
}

func NewTelegramTransport(bot *telego.Bot) *TelegramTransport {
	return &TelegramTransport{bot: bot}
}

func (t *TelegramTransport) SendText(
	ctx context.Context,
	chatID int64,
	text string,
	linkURL string,
) error {
	params := tu.Message(tu.ID(chatID), text)
	params.ReplyMarkup = readMoreKeyboard(linkURL)

	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (t *TelegramTransport) SendMediaWithCaption(
	ctx context.Context,
	chatID int64,
	mediaPath string,
	caption string,
	linkURL string,
) error {
	f, err := os.Open(mediaPath)
	if err != nil {
		return fmt.Errorf("open media file: %w", err)
	}

	params := &telego.SendPhotoParams{
		ChatID:      tu.ID(chatID),
		Photo:       telego.InputFile{File: f},
		Caption:     caption,
		ReplyMarkup: readMoreKeyboard(linkURL),
	}

	_, sendErr := t.bot.SendPhoto(ctx, params)
	if closeErr := f.Close(); closeErr != nil {
		sendErr = errors.Join(sendErr, closeErr)
	}
	if sendErr != nil {
		return fmt.Errorf("send photo: %w", sendErr)
	}

	return nil
}

func readMoreKeyboard(linkURL string) *telego.InlineKeyboardMarkup {
	if linkURL == "" {
		return nil
	}

	return &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{
			{{Text: "🔗 Read more", URL: linkURL}},
		},
	}
}
