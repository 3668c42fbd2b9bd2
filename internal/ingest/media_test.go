package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsgram/internal/channel"
	"newsgram/internal/models"
)

type stubClient struct {
	mu        sync.Mutex
	downloads []string
	failURLs  map[string]struct{}
}

var _ channel.Client = (*stubClient)(nil)

func (s *stubClient) Resolve(_ context.Context, identifier string) (*channel.Handle, error) {
	return &channel.Handle{Slug: identifier, Title: identifier}, nil
}

func (s *stubClient) ListRecent(context.Context, *channel.Handle, int) ([]models.RawMessage, error) {
	return nil, nil
}

func (s *stubClient) Download(_ context.Context, srcURL string, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.downloads = append(s.downloads, srcURL)

	if _, fail := s.failURLs[srcURL]; fail {
		return errors.New("download failed")
	}

	return os.WriteFile(destPath, []byte("image"), 0o644)
}

func (s *stubClient) downloadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.downloads)
}

func TestMaterializePhoto(t *testing.T) {
	client := &stubClient{}
	dir := t.TempDir()
	m := NewMaterializer(client, dir, slog.Default())

	msg := models.RawMessage{Seq: 42, PhotoURL: "https://cdn.example.com/photo.jpg"}

	path := m.Materialize(context.Background(), "campus", msg)
	assert.Equal(t, filepath.Join(dir, "campus_42.jpg"), path)
	assert.FileExists(t, path)
	assert.Equal(t, 1, client.downloadCount())
}

func TestMaterializeIdempotent(t *testing.T) {
	client := &stubClient{}
	dir := t.TempDir()
	m := NewMaterializer(client, dir, slog.Default())

	msg := models.RawMessage{Seq: 42, PhotoURL: "https://cdn.example.com/photo.jpg"}

	first := m.Materialize(context.Background(), "campus", msg)
	second := m.Materialize(context.Background(), "campus", msg)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.downloadCount(), "second call must not download again")
}

func TestMaterializeImageDocumentKeepsName(t *testing.T) {
	client := &stubClient{}
	dir := t.TempDir()
	m := NewMaterializer(client, dir, slog.Default())

	msg := models.RawMessage{
		Seq: 7,
		Document: &models.Document{
			URL:  "https://cdn.example.com/poster.png",
			Name: "poster.png",
			MIME: "image/png",
		},
	}

	path := m.Materialize(context.Background(), "campus", msg)
	assert.Equal(t, filepath.Join(dir, "poster.png"), path)
}

func TestMaterializeNonImageDocumentIgnored(t *testing.T) {
	client := &stubClient{}
	m := NewMaterializer(client, t.TempDir(), slog.Default())

	msg := models.RawMessage{
		Seq: 7,
		Document: &models.Document{
			URL:  "https://cdn.example.com/report.pdf",
			Name: "report.pdf",
			MIME: "application/pdf",
		},
	}

	assert.Empty(t, m.Materialize(context.Background(), "campus", msg))
	assert.Zero(t, client.downloadCount())
}

func TestMaterializePhotoBeatsPreview(t *testing.T) {
	client := &stubClient{}
	dir := t.TempDir()
	m := NewMaterializer(client, dir, slog.Default())

	msg := models.RawMessage{
		Seq:      42,
		PhotoURL: "https://cdn.example.com/photo.jpg",
		Preview:  &models.LinkPreview{ImageURL: "https://cdn.example.com/preview.jpg"},
	}

	path := m.Materialize(context.Background(), "campus", msg)
	assert.Equal(t, filepath.Join(dir, "campus_42.jpg"), path)
	require.Equal(t, 1, client.downloadCount())
	assert.Equal(t, "https://cdn.example.com/photo.jpg", client.downloads[0])
}

func TestMaterializePreviewUsesSuffix(t *testing.T) {
	client := &stubClient{}
	dir := t.TempDir()
	m := NewMaterializer(client, dir, slog.Default())

	msg := models.RawMessage{
		Seq:     42,
		Preview: &models.LinkPreview{ImageURL: "https://cdn.example.com/preview.jpg"},
	}

	path := m.Materialize(context.Background(), "campus", msg)
	assert.Equal(t, filepath.Join(dir, "campus_42_wp.jpg"), path)
}

func TestMaterializePreviewRetriesViaThumbnail(t *testing.T) {
	client := &stubClient{
		failURLs: map[string]struct{}{
			"https://cdn.example.com/preview.jpg": {},
		},
	}
	dir := t.TempDir()
	m := NewMaterializer(client, dir, slog.Default())

	msg := models.RawMessage{
		Seq: 42,
		Preview: &models.LinkPreview{
			ImageURL: "https://cdn.example.com/preview.jpg",
			PhotoURL: "https://cdn.example.com/thumb.jpg",
		},
	}

	path := m.Materialize(context.Background(), "campus", msg)
	assert.Equal(t, filepath.Join(dir, "campus_42_wp.jpg"), path)
	assert.Equal(t, 2, client.downloadCount())
}

func TestMaterializeFailureYieldsNoMedia(t *testing.T) {
	client := &stubClient{
		failURLs: map[string]struct{}{
			"https://cdn.example.com/photo.jpg": {},
		},
	}
	m := NewMaterializer(client, t.TempDir(), slog.Default())

	msg := models.RawMessage{Seq: 42, PhotoURL: "https://cdn.example.com/photo.jpg"}

	assert.Empty(t, m.Materialize(context.Background(), "campus", msg))
}

func TestMaterializeNoMedia(t *testing.T) {
	client := &stubClient{}
	m := NewMaterializer(client, t.TempDir(), slog.Default())

	assert.Empty(t, m.Materialize(context.Background(), "campus", models.RawMessage{Seq: 1, Text: "text"}))
	assert.Zero(t, client.downloadCount())
}
