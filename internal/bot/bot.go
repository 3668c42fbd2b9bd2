package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"newsgram/internal/database"
	"newsgram/internal/fanout"
	"newsgram/internal/models"
)

// Backfiller triggers a manual ingestion pass (admin command).
type Backfiller interface {
	Backfill(ctx context.Context, perChannelLimit int) (models.BackfillSummary, error)
}

// Bot is the recipient-facing command surface: subscription toggles,
// filter management, and the latest-news listing.
type Bot struct {
	api           *telego.Bot
	db            *database.Database
	transport     fanout.Transport
	backfiller    Backfiller
	adminIDs      map[int64]struct{}
	backfillLimit int
	log           *slog.Logger
}

func New(
	api *telego.Bot,
	db *database.Database,
	transport fanout.Transport,
	backfiller Backfiller,
	adminIDs []int64,
	backfillLimit int,
	log *slog.Logger,
) *Bot {
	adminSet := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		adminSet[id] = struct{}{}
	}

	return &Bot{
		api:           api,
		db:            db,
		transport:     transport,
		backfiller:    backfiller,
		adminIDs:      adminSet,
		backfillLimit: backfillLimit,
		log:           log,
	}
}

// Start consumes updates until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())

			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}

			if update.Message == nil || update.Message.From == nil {
				continue
			}

			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"chatID", update.Message.Chat.ID,
					"userID", update.Message.From.ID)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *telego.Message) error {
	userID := message.From.ID
	chatID := message.Chat.ID

	if err := b.db.UpsertUser(ctx, userID, b.isAdmin(userID)); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	text := strings.TrimSpace(message.Text)
	command, arg := splitCommand(text)

	switch command {
	case "/start":
		return b.handleStartCommand(ctx, chatID)
	case "/news":
		return b.handleNewsCommand(ctx, chatID)
	case "/subscribe":
		return b.handleSubscriptionCommand(ctx, chatID, userID, true)
	case "/unsubscribe":
		return b.handleSubscriptionCommand(ctx, chatID, userID, false)
	case "/filters":
		return b.handleFiltersCommand(ctx, chatID, userID)
	case "/keyword_add":
		return b.handleKeywordAddCommand(ctx, chatID, userID, arg)
	case "/keyword_del":
		return b.handleKeywordDelCommand(ctx, chatID, userID, arg)
	case "/mute":
		return b.handleMuteCommand(ctx, chatID, userID, arg, true)
	case "/unmute":
		return b.handleMuteCommand(ctx, chatID, userID, arg, false)
	case "/backfill":
		return b.handleBackfillCommand(ctx, chatID, userID)
	default:
		return b.sendText(ctx, chatID, "Unknown command. See /start for the list.")
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.adminIDs[userID]
	return ok
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	if _, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func splitCommand(text string) (string, string) {
	command, arg, _ := strings.Cut(text, " ")

	// Commands may carry the bot mention suffix in group chats.
	command, _, _ = strings.Cut(command, "@")

	return command, strings.TrimSpace(arg)
}
