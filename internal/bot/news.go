package bot

import (
	"context"
	"os"
	"strings"

	"newsgram/internal/fanout"
	"newsgram/internal/models"
)

// sendItem renders one stored item the same way the fan-out path does:
// a photo with a clipped caption when media is available, otherwise
// plain text with the permalink riding along.
func (b *Bot) sendItem(ctx context.Context, chatID int64, item *models.NewsItem) error {
	label := strings.TrimSpace(item.SourceTitle)
	if label == "" {
		label = item.Source
	}

	linkURL := item.PostURL
	if linkURL == "" {
		linkURL = item.ExternalURL
	}

	var text strings.Builder
	text.WriteString("📰 ")
	text.WriteString(label)
	text.WriteString("\n\n")
	text.WriteString(item.Body)

	if item.MediaPath != "" {
		if _, err := os.Stat(item.MediaPath); err == nil {
			return b.transport.SendMediaWithCaption(
				ctx, chatID, item.MediaPath, fanout.ClipCaption(text.String()), linkURL)
		}
	}

	if linkURL != "" {
		text.WriteString("\n\n")
		text.WriteString(linkURL)
	}

	return b.transport.SendText(ctx, chatID, text.String(), linkURL)
}
