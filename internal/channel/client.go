package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsgram/internal/models"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	telegramHost  = "t.me"
	clientTimeout = 20 * time.Second
)

var (
	// ErrChannelNotFound marks identifiers that cannot be resolved to a
	// public channel.
	ErrChannelNotFound = errors.New("channel not found")

	telegramSlugRe    = regexp.MustCompile(`^\w{5,32}$`)
	backgroundImageRe = regexp.MustCompile(`background-image:\s*url\('([^']+)'\)`)
)

// Handle is a resolved public channel.
type Handle struct {
	Slug  string
	Title string
}

// Client lists and downloads channel content. Implementations must not
// retain references to returned messages.
type Client interface {
	Resolve(ctx context.Context, identifier string) (*Handle, error)
	ListRecent(ctx context.Context, h *Handle, limit int) ([]models.RawMessage, error)
	Download(ctx context.Context, srcURL string, destPath string) error
}

// WebClient reads public channels through their t.me/s web view.
type WebClient struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

func NewWebClient(log *slog.Logger) *WebClient {
	return &WebClient{
		httpClient: &http.Client{Timeout: clientTimeout},
		baseURL:    fmt.Sprintf("https://%s", telegramHost),
		log:        log,
	}
}

func ChannelCanonicalURL(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}

	return fmt.Sprintf("https://%s/s/%s", telegramHost, slug)
}

func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(identifier), "@"))
}

func (c *WebClient) Resolve(ctx context.Context, identifier string) (*Handle, error) {
	slug := NormalizeIdentifier(identifier)
	if !telegramSlugRe.MatchString(slug) {
		return nil, fmt.Errorf("identifier %q: %w", identifier, ErrChannelNotFound)
	}

	doc, err := c.fetchChannelPage(ctx, slug)
	if err != nil {
		return nil, err
	}

	title := channelTitle(doc)
	if title == "" {
		c.log.WarnContext(ctx, "Empty channel title",
			"slug", slug)

		title = slug
	}

	return &Handle{Slug: slug, Title: title}, nil
}

func (c *WebClient) ListRecent(
	ctx context.Context,
	h *Handle,
	limit int,
) ([]models.RawMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	doc, err := c.fetchChannelPage(ctx, h.Slug)
	if err != nil {
		return nil, err
	}

	var messages []models.RawMessage
	var errs []error

	doc.Find("a.tgme_widget_message_date").Each(func(_ int, s *goquery.Selection) {
		msg, parseErr := parseMessageNode(s)
		if parseErr != nil {
			errs = append(errs, fmt.Errorf("parse message node: %w", parseErr))
			return
		}

		messages = append(messages, msg)
	})

	if len(errs) > 0 {
		c.log.WarnContext(ctx, "Some messages were not parsed",
			"error", errors.Join(errs...),
			"slug", h.Slug,
			"parsed", len(messages))
	}

	// The page lists messages oldest-first; the newest ones are at the
	// tail.
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

func (c *WebClient) Download(ctx context.Context, srcURL string, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer c.closeBody(ctx, resp.Body, srcURL, "Download")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	if err = os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err = io.Copy(f, resp.Body); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		if rmErr := os.Remove(destPath); rmErr != nil {
			err = errors.Join(err, rmErr)
		}

		return fmt.Errorf("write file: %w", err)
	}

	return f.Close()
}

func (c *WebClient) fetchChannelPage(ctx context.Context, slug string) (*goquery.Document, error) {
	pageURL := fmt.Sprintf("%s/s/%s", c.baseURL, slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer c.closeBody(ctx, resp.Body, pageURL, "fetchChannelPage")

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("channel %q: %w", slug, ErrChannelNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}

	if doc.Find(".tgme_channel_info").Length() == 0 &&
		doc.Find(".tgme_widget_message").Length() == 0 {
		return nil, fmt.Errorf("channel %q: %w", slug, ErrChannelNotFound)
	}

	return doc, nil
}

func (c *WebClient) closeBody(ctx context.Context, body io.ReadCloser, url string, operation string) {
	if err := body.Close(); err != nil {
		c.log.ErrorContext(ctx, "Failed to close response body",
			"error", err,
			"url", url,
			"operation", operation)
	}
}

func channelTitle(doc *goquery.Document) string {
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		return strings.TrimSpace(content)
	}

	return strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").Text())
}

func parseMessageNode(s *goquery.Selection) (models.RawMessage, error) {
	href, ok := s.Attr("href")
	if !ok || href == "" {
		return models.RawMessage{}, errors.New("href empty")
	}

	seq, err := messageSeq(href)
	if err != nil {
		return models.RawMessage{}, fmt.Errorf("message seq: %w", err)
	}

	message := s.ParentsFiltered(".tgme_widget_message").First()

	var textBuilder strings.Builder
	var entities []models.LinkEntity

	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})

			inner.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				entityURL := strings.TrimSpace(a.AttrOr("href", ""))
				if entityURL == "" {
					return
				}

				entities = append(entities, models.LinkEntity{
					URL:  entityURL,
					Text: strings.TrimSpace(a.Text()),
				})
			})

			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n")
			}
			textBuilder.WriteString(fragment)
		},
	)

	msg := models.RawMessage{
		Seq:      seq,
		Text:     strings.TrimSpace(textBuilder.String()),
		Entities: entities,
	}

	if style, styleOK := message.Find("a.tgme_widget_message_photo_wrap").Attr("style"); styleOK {
		msg.PhotoURL = backgroundImageURL(style)
	}

	if doc := parseDocumentNode(message); doc != nil {
		msg.Document = doc
	}

	if preview := parsePreviewNode(message); preview != nil {
		msg.Preview = preview
	}

	return msg, nil
}

func parseDocumentNode(message *goquery.Selection) *models.Document {
	wrap := message.Find("a.tgme_widget_message_document_wrap").First()
	if wrap.Length() == 0 {
		return nil
	}

	name := strings.TrimSpace(wrap.Find(".tgme_widget_message_document_title").Text())

	return &models.Document{
		URL:  strings.TrimSpace(wrap.AttrOr("href", "")),
		Name: name,
		MIME: mime.TypeByExtension(filepath.Ext(name)),
	}
}

func parsePreviewNode(message *goquery.Selection) *models.LinkPreview {
	node := message.Find("a.tgme_widget_message_link_preview").First()
	if node.Length() == 0 {
		return nil
	}

	preview := &models.LinkPreview{
		URL:         strings.TrimSpace(node.AttrOr("href", "")),
		Title:       strings.TrimSpace(node.Find(".link_preview_title").Text()),
		Description: strings.TrimSpace(node.Find(".link_preview_description").Text()),
	}

	if style, ok := node.Find(".link_preview_image").Attr("style"); ok {
		preview.ImageURL = backgroundImageURL(style)
	}
	if style, ok := node.Find(".link_preview_right_image").Attr("style"); ok {
		preview.PhotoURL = backgroundImageURL(style)
	}

	return preview
}

func messageSeq(href string) (int64, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return 0, fmt.Errorf("parse URL: %w", err)
	}

	seq, err := strconv.ParseInt(path.Base(u.Path), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse seq: %w", err)
	}

	return seq, nil
}

func backgroundImageURL(style string) string {
	m := backgroundImageRe.FindStringSubmatch(style)
	if len(m) < 2 {
		return ""
	}

	return strings.TrimSpace(m[1])
}
