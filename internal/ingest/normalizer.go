package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"mvdan.cc/xurls/v2"

	"newsgram/internal/models"
)

const (
	maxTitleRunes = 120
	ellipsis      = "…"
)

//nolint:gochecknoglobals // Compiled once, read-only afterwards.
var plainURLRe = xurls.Strict()

// normalize turns a raw channel message into a candidate item. A
// message that yields no text even after the link-preview fallback is
// not an item; ok is false and nothing else is meaningful.
func normalize(
	msg models.RawMessage,
	source string,
	sourceTitle string,
) (item models.NewsItem, key models.IngestionKey, ok bool) {
	text := strings.TrimSpace(msg.Text)

	if text == "" && msg.Preview != nil {
		text = previewText(msg.Preview)
	}
	if text == "" {
		return models.NewsItem{}, models.IngestionKey{}, false
	}

	item = models.NewsItem{
		Title:       titleFromText(text),
		Body:        text,
		Source:      source,
		SourceTitle: sourceTitle,
		PostURL:     postURL(source, msg.Seq),
		ExternalURL: externalURL(msg, text),
	}

	key = models.IngestionKey{Source: source}
	if msg.Seq > 0 {
		key.ExternalID = strconv.FormatInt(msg.Seq, 10)
	}

	return item, key, true
}

func titleFromText(text string) string {
	var first string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			first = line
			break
		}
	}

	runes := []rune(first)
	if len(runes) <= maxTitleRunes {
		return first
	}

	return string(runes[:maxTitleRunes]) + ellipsis
}

func previewText(preview *models.LinkPreview) string {
	var parts []string
	if title := strings.TrimSpace(preview.Title); title != "" {
		parts = append(parts, title)
	}
	if description := strings.TrimSpace(preview.Description); description != "" {
		parts = append(parts, description)
	}

	return strings.Join(parts, "\n\n")
}

// externalURL resolves the item's outbound link. Priority: explicit
// rich-text hyperlink, then plain URL found in the text, then the
// link-preview URL. First match wins.
func externalURL(msg models.RawMessage, text string) string {
	for _, entity := range msg.Entities {
		if entity.Explicit() {
			return entity.URL
		}
	}

	if u := plainURLRe.FindString(text); u != "" {
		return u
	}

	if msg.Preview != nil {
		return strings.TrimSpace(msg.Preview.URL)
	}

	return ""
}

// postURL builds the canonical permalink. Sources that are numeric
// fallbacks or otherwise unresolvable identifiers get no permalink.
func postURL(source string, seq int64) string {
	if seq <= 0 || !sourceResolvable(source) {
		return ""
	}

	return fmt.Sprintf("https://t.me/%s/%d", source, seq)
}

func sourceResolvable(source string) bool {
	if source == "" || source == "unknown" {
		return false
	}

	if _, err := strconv.ParseInt(source, 10, 64); err == nil {
		return false
	}

	return true
}
