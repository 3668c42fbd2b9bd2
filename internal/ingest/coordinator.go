package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"newsgram/internal/channel"
	"newsgram/internal/database"
	"newsgram/internal/models"
)

// Dispatcher hands an accepted item to its eligible recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, item *models.NewsItem) models.DeliverySummary
}

// Coordinator produces a single stream of normalized candidate items
// from the configured channel sources. Backfill and live polling may
// overlap in time; the ledger inside the store is the only
// synchronization between them.
type Coordinator struct {
	client     channel.Client
	db         *database.Database
	media      *Materializer
	dispatcher Dispatcher
	sources    []string
	log        *slog.Logger

	mu         sync.Mutex
	handles    map[string]*channel.Handle
	liveActive bool
	wg         sync.WaitGroup
}

func NewCoordinator(
	client channel.Client,
	db *database.Database,
	media *Materializer,
	dispatcher Dispatcher,
	sources []string,
	log *slog.Logger,
) *Coordinator {
	normalized := make([]string, 0, len(sources))
	for _, source := range sources {
		if s := channel.NormalizeIdentifier(source); s != "" {
			normalized = append(normalized, s)
		}
	}

	return &Coordinator{
		client:     client,
		db:         db,
		media:      media,
		dispatcher: dispatcher,
		sources:    normalized,
		handles:    make(map[string]*channel.Handle),
		log:        log,
	}
}

// Backfill fetches up to perChannelLimit recent messages per source and
// runs each through normalization and acceptance. A failure on one
// source is logged and does not abort the others; a storage failure
// aborts the pass.
func (c *Coordinator) Backfill(ctx context.Context, perChannelLimit int) (models.BackfillSummary, error) {
	var summary models.BackfillSummary

	if perChannelLimit <= 0 {
		return summary, nil
	}

	for _, source := range c.sources {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		h, err := c.resolve(ctx, source)
		if err != nil {
			c.log.WarnContext(ctx, "Skipping unresolvable source",
				"error", err,
				"source", source)
			summary.Failed++

			continue
		}

		messages, err := c.client.ListRecent(ctx, h, perChannelLimit)
		if err != nil {
			c.log.WarnContext(ctx, "Failed to list recent messages",
				"error", err,
				"source", source)
			summary.Failed++

			continue
		}

		for _, msg := range messages {
			if err = c.processMessage(ctx, h, msg, &summary); err != nil {
				return summary, fmt.Errorf("process message (source = %s, seq = %d): %w",
					source, msg.Seq, err)
			}
		}
	}

	c.log.InfoContext(ctx, "Backfill pass finished",
		"accepted", summary.Accepted,
		"duplicates", summary.Duplicates,
		"discarded", summary.Discarded,
		"failedSources", summary.Failed)

	return summary, nil
}

// StartLive enables live polling. Messages observed by PollLive go
// through the same acceptance path as backfill.
func (c *Coordinator) StartLive() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.liveActive = true
}

// Stop disables live polling and waits for in-flight fan-out work.
// Safe to call without a prior StartLive.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.liveActive = false
	c.mu.Unlock()

	c.wg.Wait()
}

// PollLive performs one live observation pass over all sources. It is
// a no-op unless StartLive was called.
func (c *Coordinator) PollLive(ctx context.Context, perChannelLimit int) {
	c.mu.Lock()
	active := c.liveActive
	c.mu.Unlock()

	if !active {
		return
	}

	summary, err := c.Backfill(ctx, perChannelLimit)
	if err != nil {
		c.log.ErrorContext(ctx, "Live poll pass failed",
			"error", err,
			"accepted", summary.Accepted)
	}
}

func (c *Coordinator) resolve(ctx context.Context, source string) (*channel.Handle, error) {
	c.mu.Lock()
	h, ok := c.handles[source]
	c.mu.Unlock()

	if ok {
		return h, nil
	}

	h, err := c.client.Resolve(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}

	c.mu.Lock()
	c.handles[source] = h
	c.mu.Unlock()

	return h, nil
}

// processMessage normalizes, materializes media, and runs acceptance.
// Media is fetched before the ledger transaction so that no transaction
// ever spans a network call; the deterministic target path keeps the
// download idempotent when the same message is observed again.
func (c *Coordinator) processMessage(
	ctx context.Context,
	h *channel.Handle,
	msg models.RawMessage,
	summary *models.BackfillSummary,
) error {
	item, key, ok := normalize(msg, h.Slug, h.Title)
	if !ok {
		summary.Discarded++
		return nil
	}

	item.MediaPath = c.media.Materialize(ctx, h.Slug, msg)

	accepted, err := c.db.InsertItemIfNew(ctx, &item, key)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	if !accepted {
		summary.Duplicates++
		return nil
	}

	summary.Accepted++

	// Fan-out must not block observation of the next message.
	c.wg.Add(1)
	go func(dispatched models.NewsItem) {
		defer c.wg.Done()

		dispatchCtx := context.WithoutCancel(ctx)
		result := c.dispatcher.Dispatch(dispatchCtx, &dispatched)

		c.log.InfoContext(dispatchCtx, "Fan-out pass finished",
			"source", dispatched.Source,
			"itemID", dispatched.ID,
			"delivered", result.Delivered,
			"failed", result.Failed,
			"skipped", result.Skipped)
	}(item)

	return nil
}
