package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const latestNewsLimit = 5

const welcomeText = `🤖 Welcome to Newsgram!

I forward posts from the configured news channels to you. Commands:

/news — latest posts
/subscribe — receive new posts
/unsubscribe — stop receiving new posts
/filters — show your keyword and mute filters
/keyword_add <word> — only receive posts matching a keyword
/keyword_del <word> — drop a keyword
/mute <channel> — mute a source channel
/unmute <channel> — unmute a source channel`

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendText(ctx, chatID, welcomeText)
}

func (b *Bot) handleNewsCommand(ctx context.Context, chatID int64) error {
	items, err := b.db.LatestItems(ctx, latestNewsLimit)
	if err != nil {
		errs := []error{fmt.Errorf("get latest items: %w", err)}

		if sendErr := b.sendText(ctx, chatID, "❌ Failed to load news."); sendErr != nil {
			errs = append(errs, sendErr)
		}

		return errors.Join(errs...)
	}

	if len(items) == 0 {
		return b.sendText(ctx, chatID, "No news yet. Please check later!")
	}

	var errs []error
	for i := range items {
		if err = b.sendItem(ctx, chatID, &items[i]); err != nil {
			errs = append(errs, fmt.Errorf("send item %d: %w", items[i].ID, err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) handleSubscriptionCommand(
	ctx context.Context,
	chatID int64,
	userID int64,
	subscribed bool,
) error {
	if err := b.db.SetSubscribed(ctx, userID, subscribed); err != nil {
		errs := []error{fmt.Errorf("set subscription: %w", err)}

		if sendErr := b.sendText(ctx, chatID, "❌ Failed."); sendErr != nil {
			errs = append(errs, sendErr)
		}

		return errors.Join(errs...)
	}

	if subscribed {
		return b.sendText(ctx, chatID, "✅ You are subscribed to news.")
	}

	return b.sendText(ctx, chatID, "✅ You are unsubscribed from news.")
}

func (b *Bot) handleFiltersCommand(ctx context.Context, chatID int64, userID int64) error {
	prefs, err := b.db.GetPreferences(ctx, userID)
	if err != nil {
		errs := []error{fmt.Errorf("get preferences: %w", err)}

		if sendErr := b.sendText(ctx, chatID, "❌ Failed."); sendErr != nil {
			errs = append(errs, sendErr)
		}

		return errors.Join(errs...)
	}

	var message strings.Builder
	message.WriteString("⚙️ Your filters\n\n")

	message.WriteString("Keywords: ")
	if len(prefs.Keywords) == 0 {
		message.WriteString("none (all posts allowed)")
	} else {
		message.WriteString(strings.Join(prefs.Keywords, ", "))
	}

	message.WriteString("\nMuted sources: ")
	if len(prefs.MutedSources) == 0 {
		message.WriteString("none")
	} else {
		muted := make([]string, 0, len(prefs.MutedSources))
		for source := range prefs.MutedSources {
			muted = append(muted, source)
		}
		sort.Strings(muted)
		message.WriteString(strings.Join(muted, ", "))
	}

	return b.sendText(ctx, chatID, message.String())
}

func (b *Bot) handleKeywordAddCommand(
	ctx context.Context,
	chatID int64,
	userID int64,
	keyword string,
) error {
	if keyword == "" {
		return b.sendText(ctx, chatID, "Usage: /keyword_add <word>")
	}

	if err := b.db.AddKeyword(ctx, userID, keyword); err != nil {
		return fmt.Errorf("add keyword: %w", err)
	}

	return b.sendText(ctx, chatID, fmt.Sprintf("✅ Keyword %q is added.", strings.ToLower(keyword)))
}

func (b *Bot) handleKeywordDelCommand(
	ctx context.Context,
	chatID int64,
	userID int64,
	keyword string,
) error {
	if keyword == "" {
		return b.sendText(ctx, chatID, "Usage: /keyword_del <word>")
	}

	if err := b.db.RemoveKeyword(ctx, userID, keyword); err != nil {
		return fmt.Errorf("remove keyword: %w", err)
	}

	return b.sendText(ctx, chatID, fmt.Sprintf("✅ Keyword %q is removed.", strings.ToLower(keyword)))
}

func (b *Bot) handleMuteCommand(
	ctx context.Context,
	chatID int64,
	userID int64,
	source string,
	mute bool,
) error {
	if source == "" {
		if mute {
			return b.sendText(ctx, chatID, "Usage: /mute <channel>")
		}

		return b.sendText(ctx, chatID, "Usage: /unmute <channel>")
	}

	var err error
	if mute {
		err = b.db.MuteSource(ctx, userID, source)
	} else {
		err = b.db.UnmuteSource(ctx, userID, source)
	}
	if err != nil {
		return fmt.Errorf("update muted sources: %w", err)
	}

	if mute {
		return b.sendText(ctx, chatID, fmt.Sprintf("🔇 Source %q is muted.", source))
	}

	return b.sendText(ctx, chatID, fmt.Sprintf("🔊 Source %q is unmuted.", source))
}

func (b *Bot) handleBackfillCommand(ctx context.Context, chatID int64, userID int64) error {
	if !b.isAdmin(userID) {
		return b.sendText(ctx, chatID, "❌ Admin only.")
	}

	summary, err := b.backfiller.Backfill(ctx, b.backfillLimit)
	if err != nil {
		errs := []error{fmt.Errorf("backfill: %w", err)}

		if sendErr := b.sendText(ctx, chatID, "❌ Backfill failed."); sendErr != nil {
			errs = append(errs, sendErr)
		}

		return errors.Join(errs...)
	}

	return b.sendText(ctx, chatID, fmt.Sprintf(
		"✅ Backfill finished: %d accepted, %d duplicates, %d discarded, %d failed sources.",
		summary.Accepted, summary.Duplicates, summary.Discarded, summary.Failed))
}
