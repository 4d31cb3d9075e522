// Package extract fetches a web page and reduces it to its main readable text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"yakunote/internal/pkg/pdfextract"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultMinContentChars = 100
	MaxBodySize            = int64(10 * 1024 * 1024)

	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
	accept    = "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,*/*;q=0.7"

	noiseSelectors = "script, style, noscript, iframe, nav, header, footer, aside, form, " +
		".ad, .ads, .advert, .advertisement, .sponsored, [id^='ad-'], [class^='ad-'], [class*=' ad-']"
	contentSelectors = "article, main, [role='main'], .content, .main-content, #content, #main, " +
		".post-content, .article-content, .article-body, .entry-content"
)

var (
	ErrInvalidURL   = errors.New("invalid url")
	ErrEmptyContent = errors.New("no readable content found")

	spaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// FetchError reports a non-2xx response from the target site.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: upstream status %d", e.URL, e.StatusCode)
}

type Extractor struct {
	httpClient      *http.Client
	minContentChars int
}

type Option func(*Extractor)

// WithHTTPClient replaces the default client; its Timeout is kept as given.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) {
		if c != nil {
			e.httpClient = c
		}
	}
}

func WithMinContentChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minContentChars = n
		}
	}
}

func NewExtractor(timeout time.Duration, opts ...Option) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &Extractor{
		httpClient:      &http.Client{Timeout: timeout},
		minContentChars: DefaultMinContentChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract downloads rawURL and returns its main text content.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (string, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}

	body, contentType, err := e.fetch(ctx, target)
	if err != nil {
		return "", err
	}

	var text string
	if isPDF(contentType, body) {
		text, err = pdfextract.Text(body)
		if err != nil {
			return "", fmt.Errorf("extract pdf failed: %w", err)
		}
		text = Normalize(text)
	} else {
		text, err = e.FromHTML(bytes.NewReader(body))
		if err != nil {
			return "", err
		}
	}

	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u.String(), nil
}

func (e *Extractor) fetch(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &FetchError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("read response body failed: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func isPDF(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/pdf" {
		return true
	}
	return pdfextract.IsPDF(body)
}

// FromHTML strips boilerplate from an HTML document and returns the largest content block,
// or the whole body when no block reaches the minimum length.
func (e *Extractor) FromHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html failed: %w", err)
	}

	doc.Find(noiseSelectors).Remove()

	best := ""
	doc.Find(contentSelectors).Each(func(_ int, s *goquery.Selection) {
		text := Normalize(s.Text())
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(best) {
			best = text
		}
	})

	if utf8.RuneCountInString(best) >= e.minContentChars {
		return best, nil
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return Normalize(doc.Text()), nil
	}
	return Normalize(body.Text()), nil
}

// Normalize collapses whitespace inside each line, trims lines and drops empty ones.
func Normalize(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
