package models

import "time"

// NewsItem is a normalized channel post. Rows are append-only; the
// surrogate ID orders reads latest-first.
type NewsItem struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	Source      string    `db:"source"`
	SourceTitle string    `db:"source_title"`
	PostURL     string    `db:"post_url"`
	ExternalURL string    `db:"external_url"`
	MediaPath   string    `db:"media_path"`
	CreatedAt   time.Time `db:"created_at"`
}

// IngestionKey identifies a message within its source channel. An empty
// ExternalID means the source could not be resolved; such items bypass
// deduplication entirely.
type IngestionKey struct {
	Source     string
	ExternalID string
}

func (k IngestionKey) Attributable() bool {
	return k.ExternalID != ""
}

// UserPreference holds a recipient's delivery filters. An empty keyword
// set means "allow all".
type UserPreference struct {
	UserID       int64
	Subscribed   bool
	MutedSources map[string]struct{}
	Keywords     []string
}

type User struct {
	UserID     int64     `db:"user_id"`
	IsAdmin    bool      `db:"is_admin"`
	Subscribed bool      `db:"subscribed"`
	CreatedAt  time.Time `db:"created_at"`
}

// DeliverySummary aggregates the outcome of one fan-out pass.
type DeliverySummary struct {
	Delivered int
	Failed    int
	Skipped   int
}

// LinkEntity is a hyperlink found in message text. Plain autodetected
// URLs carry the URL itself as Text; explicit rich-text links do not.
type LinkEntity struct {
	URL  string
	Text string
}

func (e LinkEntity) Explicit() bool {
	return e.Text != "" && e.Text != e.URL
}

type Document struct {
	URL  string
	Name string
	MIME string
}

type LinkPreview struct {
	URL         string
	Title       string
	Description string
	// ImageURL is the large preview image; PhotoURL is the side
	// thumbnail. ImageURL is preferred, PhotoURL is the retry handle.
	ImageURL string
	PhotoURL string
}

// RawMessage is one message as returned by the channel client.
type RawMessage struct {
	Seq      int64
	Text     string
	PhotoURL string
	Document *Document
	Preview  *LinkPreview
	Entities []LinkEntity
}

// BackfillSummary aggregates the outcome of one backfill pass.
type BackfillSummary struct {
	Accepted   int
	Duplicates int
	Discarded  int
	Failed     int
}
