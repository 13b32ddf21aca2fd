// Package scrape fetches a remote page and extracts its title for the
// scrape-title API. Outbound traffic is deliberately polite: one bounded
// client, a per-host token bucket, and hard caps on body size and title
// length, so a burst of API calls cannot hammer one origin or stream an
// unbounded body into memory.
package scrape

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/clarus-app/clarus-web/internal/xerrors"
)

const (
	// maxBodyBytes caps how much of the page is read; titles live in the
	// head, so anything past 1MB is not worth fetching.
	maxBodyBytes = 1 << 20

	maxTitleRunes = 200

	userAgent = "clarus-web/1.0 (+https://clarus.dev)"
)

var (
	// ErrInvalidURL marks client mistakes (bad scheme, missing host,
	// blocked target); the API maps it to 400.
	ErrInvalidURL = errors.New("invalid url")

	// ErrFetch marks upstream failures (connect, status, not HTML); the
	// API maps it to 502.
	ErrFetch = errors.New("fetch failed")

	// ErrNoTitle means the page parsed but had no usable title.
	ErrNoTitle = errors.New("no title found")
)

// Observer receives the outcome label and duration of each scrape.
type Observer func(outcome string, d time.Duration)

// Scraper is safe for concurrent use.
type Scraper struct {
	client  *http.Client
	observe Observer

	perHost rate.Limit
	burst   int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Scraper)

// WithTimeout bounds the whole fetch including redirects.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) { s.client.Timeout = d }
}

// WithHTTPClient swaps the transport, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithObserver installs a metrics callback.
func WithObserver(obs Observer) Option {
	return func(s *Scraper) { s.observe = obs }
}

// WithPerHostRate overrides the outbound politeness budget per host.
func WithPerHostRate(r rate.Limit, burst int) Option {
	return func(s *Scraper) {
		s.perHost = r
		s.burst = burst
	}
}

func New(opts ...Option) *Scraper {
	s := &Scraper{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		// default: 1 req/sec per host with a small burst
		perHost:  rate.Limit(1),
		burst:    3,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Title fetches rawURL and returns the cleaned <title> text.
func (s *Scraper) Title(ctx context.Context, rawURL string) (title string, err error) {
	start := time.Now()
	defer func() {
		if s.observe != nil {
			s.observe(outcomeLabel(err), time.Since(start))
		}
	}()

	u, err := validateURL(rawURL)
	if err != nil {
		return "", err
	}

	if err := s.hostLimiter(u.Hostname()).Wait(ctx); err != nil {
		return "", xerrors.Wrap(err, "waiting for host budget")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", xerrors.Wrapf(ErrInvalidURL, "building request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", xerrors.Wrapf(ErrFetch, "fetching %s: %v", u.Hostname(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", xerrors.Wrapf(ErrFetch, "fetching %s: status %d", u.Hostname(), resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "text/html") && !strings.Contains(ct, "application/xhtml") {
		return "", xerrors.Wrapf(ErrFetch, "fetching %s: content-type %q is not html", u.Hostname(), ct)
	}

	title, err = extractTitle(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return title, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrNoTitle):
		return "no_title"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// validateURL enforces http(s), a host, and blocks obvious internal targets
// so the endpoint cannot be used to probe our own network.
func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, xerrors.Wrapf(ErrInvalidURL, "parsing: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, xerrors.Wrapf(ErrInvalidURL, "scheme %q not allowed", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, xerrors.Wrapf(ErrInvalidURL, "missing host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return nil, xerrors.Wrapf(ErrInvalidURL, "host %q not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return nil, xerrors.Wrapf(ErrInvalidURL, "ip %q not allowed", host)
		}
	}
	return u, nil
}

func (s *Scraper) hostLimiter(host string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		l = rate.NewLimiter(s.perHost, s.burst)
		s.limiters[host] = l
	}
	return l
}

// extractTitle tokenizes the head of the document; the tokenizer handles
// entity decoding. Stops at the first title or at end of the limited body.
func extractTitle(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or truncated input: either way no title was found
			return "", xerrors.WithStack(ErrNoTitle)
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) != "title" {
				continue
			}
			if z.Next() != html.TextToken {
				return "", xerrors.WithStack(ErrNoTitle)
			}
			title := cleanTitle(z.Token().Data)
			if title == "" {
				return "", xerrors.WithStack(ErrNoTitle)
			}
			return title, nil
		}
	}
}

// cleanTitle collapses whitespace and caps length.
func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxTitleRunes {
		s = strings.TrimSpace(string(runes[:maxTitleRunes]))
	}
	return s
}
