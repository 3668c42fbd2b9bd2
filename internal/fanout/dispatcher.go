package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
	"go.uber.org/ratelimit"

	"newsgram/internal/database"
	"newsgram/internal/models"
)

const captionMaxRunes = 1024

// Transport delivers one message to one recipient. linkURL may be
// empty; implementations render it as a "read more" affordance.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, linkURL string) error
	SendMediaWithCaption(ctx context.Context, chatID int64, mediaPath string, caption string, linkURL string) error
}

// Dispatcher fans an accepted item out to every eligible subscribed
// recipient. It keeps no state between passes; each call works on the
// recipient snapshot taken at call time.
type Dispatcher struct {
	db        *database.Database
	transport Transport
	limiter   ratelimit.Limiter
	adminIDs  map[int64]struct{}
	log       *slog.Logger
}

func NewDispatcher(
	db *database.Database,
	transport Transport,
	deliveriesPerSecond int,
	adminIDs []int64,
	log *slog.Logger,
) *Dispatcher {
	adminSet := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		adminSet[id] = struct{}{}
	}

	return &Dispatcher{
		db:        db,
		transport: transport,
		limiter:   ratelimit.New(deliveriesPerSecond),
		adminIDs:  adminSet,
		log:       log,
	}
}

// Dispatch attempts one delivery per eligible recipient. Per-recipient
// failures are counted and never abort the pass.
func (d *Dispatcher) Dispatch(ctx context.Context, item *models.NewsItem) models.DeliverySummary {
	var summary models.DeliverySummary

	recipients, err := d.db.ListSubscribedRecipients(ctx, false)
	if err != nil {
		d.log.ErrorContext(ctx, "Failed to list recipients",
			"error", err,
			"itemID", item.ID)
		sentry.CaptureException(fmt.Errorf("list recipients: %w", err))

		return summary
	}

	text := renderText(item)
	linkURL := readMoreURL(item)

	for _, userID := range recipients {
		eligible, eligErr := d.eligible(ctx, userID, item)
		if eligErr != nil {
			d.log.ErrorContext(ctx, "Failed to evaluate recipient filters",
				"error", eligErr,
				"userID", userID,
				"itemID", item.ID)
			summary.Failed++

			continue
		}
		if !eligible {
			summary.Skipped++
			continue
		}

		d.limiter.Take()

		if sendErr := d.send(ctx, userID, item, text, linkURL); sendErr != nil {
			d.log.WarnContext(ctx, "Failed to deliver item",
				"error", sendErr,
				"userID", userID,
				"itemID", item.ID,
				"source", item.Source)
			summary.Failed++

			continue
		}

		summary.Delivered++
	}

	return summary
}

// eligible applies the recipient's personal filters. Admin allowlist
// members bypass filtering entirely.
func (d *Dispatcher) eligible(ctx context.Context, userID int64, item *models.NewsItem) (bool, error) {
	if _, ok := d.adminIDs[userID]; ok {
		return true, nil
	}

	prefs, err := d.db.GetPreferences(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get preferences: %w", err)
	}

	if _, muted := prefs.MutedSources[strings.ToLower(item.Source)]; muted {
		return false, nil
	}

	if len(prefs.Keywords) == 0 {
		return true, nil
	}

	haystack := strings.ToLower(item.Title + "\n" + item.Body)
	for _, keyword := range prefs.Keywords {
		if strings.Contains(haystack, keyword) {
			return true, nil
		}
	}

	return false, nil
}

func (d *Dispatcher) send(
	ctx context.Context,
	userID int64,
	item *models.NewsItem,
	text string,
	linkURL string,
) error {
	if item.MediaPath != "" {
		return d.transport.SendMediaWithCaption(
			ctx, userID, item.MediaPath, ClipCaption(text), linkURL)
	}

	return d.transport.SendText(ctx, userID, text, linkURL)
}

func renderText(item *models.NewsItem) string {
	label := strings.TrimSpace(item.SourceTitle)
	if label == "" {
		label = item.Source
	}

	var b strings.Builder
	b.WriteString("📰 ")
	b.WriteString(label)
	b.WriteString("\n\n")
	b.WriteString(item.Body)

	// Without media the link rides along in the text so clients render
	// a preview.
	if item.MediaPath == "" {
		if url := readMoreURL(item); url != "" {
			b.WriteString("\n\n")
			b.WriteString(url)
		}
	}

	return b.String()
}

func readMoreURL(item *models.NewsItem) string {
	if item.PostURL != "" {
		return item.PostURL
	}

	return item.ExternalURL
}

// ClipCaption bounds text to the transport's caption limit, marking
// truncation with an ellipsis.
func ClipCaption(text string) string {
	runes := []rune(text)
	if len(runes) <= captionMaxRunes {
		return text
	}

	clipped := strings.TrimRight(string(runes[:captionMaxRunes-1]), " \n\t")

	return clipped + ellipsis
}

const ellipsis = "…"
