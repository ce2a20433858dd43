// Package consent serves the KVKK notice shown next to the consent checkbox.
package consent

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
)

//go:embed notice_tr.txt
var builtinText string

const (
	BuiltinTitle  = "KVKK Aydınlatma Metni"
	SourceBuiltin = "builtin"

	// minTextLength is the shortest fetched notice accepted. Anything shorter
	// is most likely an error or cookie page.
	minTextLength = 200
	maxRetries    = 2
	maxBodySize   = 2 * 1024 * 1024
)

// Notice is the consent text served to the kiosk.
type Notice struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Builtin returns the notice shipped with the binary.
func Builtin() Notice {
	return Notice{Title: BuiltinTitle, Text: strings.TrimSpace(builtinText), Source: SourceBuiltin}
}

// Provider returns the consent notice. When a URL is configured it serves the
// readable text of that page, refreshed every cacheTTL, and falls back to the
// built-in notice whenever the page cannot be used.
type Provider struct {
	url      string
	cacheTTL time.Duration
	client   *http.Client
	now      func() time.Time

	mu        sync.Mutex
	cached    *Notice
	fetchedAt time.Time
}

// NewProvider creates a provider. An empty url always serves the built-in
// notice.
func NewProvider(url string, cacheTTL time.Duration) *Provider {
	return &Provider{
		url:      url,
		cacheTTL: cacheTTL,
		client:   &http.Client{Timeout: 15 * time.Second},
		now:      time.Now,
	}
}

// Notice returns the current notice. It never fails.
func (p *Provider) Notice(ctx context.Context) Notice {
	if p.url == "" {
		return Builtin()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil && p.now().Sub(p.fetchedAt) < p.cacheTTL {
		return *p.cached
	}

	n, err := p.fetch(ctx)
	if err != nil {
		slog.Warn("consent notice fetch failed, using built-in text", "url", p.url, "error", err)
		if p.cached != nil {
			return *p.cached
		}
		return Builtin()
	}
	p.cached = &n
	p.fetchedAt = p.now()
	return n
}

func (p *Provider) fetch(ctx context.Context) (Notice, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Notice{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		n, err := p.doFetch(ctx)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Notice{}, ctx.Err()
		}
	}
	return Notice{}, fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

func (p *Provider) doFetch(ctx context.Context) (Notice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Notice{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return Notice{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Notice{}, fmt.Errorf("HTTP %d for %s", resp.StatusCode, p.url)
	}

	parsedURL, err := nurl.Parse(p.url)
	if err != nil {
		return Notice{}, fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodySize), parsedURL)
	if err != nil {
		return Notice{}, fmt.Errorf("readability: %w", err)
	}

	text := normalizeText(article.TextContent)
	if utf8.RuneCountInString(text) < minTextLength {
		return Notice{}, fmt.Errorf("notice too short (%d chars)", utf8.RuneCountInString(text))
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = BuiltinTitle
	}
	return Notice{Title: title, Text: text, Source: p.url}, nil
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
