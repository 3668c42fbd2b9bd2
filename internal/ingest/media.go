package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"newsgram/internal/channel"
	"newsgram/internal/models"
)

const previewSuffix = "_wp"

// Materializer attaches at most one local media asset per message.
// Target paths are deterministic so re-processing the same message
// never downloads twice.
type Materializer struct {
	client   channel.Client
	mediaDir string
	log      *slog.Logger
}

func NewMaterializer(client channel.Client, mediaDir string, log *slog.Logger) *Materializer {
	return &Materializer{
		client:   client,
		mediaDir: mediaDir,
		log:      log,
	}
}

// Materialize returns a local path for the message's media, or "" when
// the message carries none or the download failed. Failures never
// propagate; the item is ingested without media.
func (m *Materializer) Materialize(
	ctx context.Context,
	source string,
	msg models.RawMessage,
) string {
	switch {
	case msg.PhotoURL != "":
		return m.fetch(ctx, msg.PhotoURL, m.targetPath(source, msg.Seq, ""), source, msg.Seq)

	case msg.Document != nil && strings.HasPrefix(msg.Document.MIME, "image/"):
		destPath := m.targetPath(source, msg.Seq, "")
		if name := strings.TrimSpace(msg.Document.Name); name != "" {
			destPath = filepath.Join(m.mediaDir, name)
		}

		return m.fetch(ctx, msg.Document.URL, destPath, source, msg.Seq)

	case msg.Preview != nil && (msg.Preview.ImageURL != "" || msg.Preview.PhotoURL != ""):
		return m.fetchPreview(ctx, source, msg)

	default:
		return ""
	}
}

// fetchPreview tries the large preview image first and retries once via
// the thumbnail handle before giving up.
func (m *Materializer) fetchPreview(
	ctx context.Context,
	source string,
	msg models.RawMessage,
) string {
	destPath := m.targetPath(source, msg.Seq, previewSuffix)

	if existing := m.existingPath(destPath); existing != "" {
		return existing
	}

	srcURL := msg.Preview.ImageURL
	if srcURL == "" {
		srcURL = msg.Preview.PhotoURL
	}

	err := m.client.Download(ctx, srcURL, destPath)
	if err != nil && msg.Preview.PhotoURL != "" && msg.Preview.PhotoURL != srcURL {
		err = m.client.Download(ctx, msg.Preview.PhotoURL, destPath)
	}
	if err != nil {
		m.log.WarnContext(ctx, "Failed to download preview media",
			"error", err,
			"source", source,
			"seq", msg.Seq)

		return ""
	}

	return destPath
}

func (m *Materializer) fetch(
	ctx context.Context,
	srcURL string,
	destPath string,
	source string,
	seq int64,
) string {
	if existing := m.existingPath(destPath); existing != "" {
		return existing
	}

	if err := m.client.Download(ctx, srcURL, destPath); err != nil {
		m.log.WarnContext(ctx, "Failed to download media",
			"error", err,
			"source", source,
			"seq", seq)

		return ""
	}

	return destPath
}

func (m *Materializer) existingPath(destPath string) string {
	if _, err := os.Stat(destPath); err == nil {
		return destPath
	}

	return ""
}

func (m *Materializer) targetPath(source string, seq int64, suffix string) string {
	return filepath.Join(m.mediaDir, fmt.Sprintf("%s_%d%s.jpg", source, seq, suffix))
}
