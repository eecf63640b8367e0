// Package crawl fetches lead websites and reduces them to plaintext for
// field extraction. The crawl is a bounded same-host BFS from the root
// page; politeness comes from a shared rate limiter.
package crawl

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/fairscan/leadmerge-cli/internal/config"
	"github.com/fairscan/leadmerge-cli/internal/model"
)

// Cache is the slice of the store the crawler needs.
type Cache interface {
	GetCachedSite(ctx context.Context, url string) (*model.CachedSite, error)
	SetCachedSite(ctx context.Context, url, text string, ttl time.Duration) error
}

// Crawler fetches whole sites as plaintext. Safe for concurrent use.
type Crawler struct {
	client  *http.Client
	cfg     config.CrawlConfig
	limiter *rate.Limiter
	cache   Cache
}

// New creates a Crawler. cache may be nil to disable caching.
func New(cfg config.CrawlConfig, cache Cache) *Crawler {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	return &Crawler{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		cache:   cache,
	}
}

// SiteText returns the concatenated plaintext of a site, served from the
// cache when a fresh entry exists.
func (c *Crawler) SiteText(ctx context.Context, root string) (string, error) {
	root = NormalizeRoot(root)

	if c.cache != nil {
		cached, err := c.cache.GetCachedSite(ctx, root)
		if err != nil {
			zap.L().Warn("crawl: cache read failed", zap.String("url", root), zap.Error(err))
		} else if cached != nil {
			zap.L().Debug("crawl: cache hit", zap.String("url", root))
			return cached.Text, nil
		}
	}

	text, err := c.crawlSite(ctx, root)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		ttl := time.Duration(c.cfg.CacheTTLHours) * time.Hour
		if err := c.cache.SetCachedSite(ctx, root, text, ttl); err != nil {
			zap.L().Warn("crawl: cache write failed", zap.String("url", root), zap.Error(err))
		}
	}
	return text, nil
}

// crawlSite walks the site breadth-first from root, staying on the same
// host and honoring the page, depth, and body-size limits.
func (c *Crawler) crawlSite(ctx context.Context, root string) (string, error) {
	rootURL, err := url.Parse(root)
	if err != nil {
		return "", eris.Wrapf(err, "crawl: parse root %s", root)
	}

	type item struct {
		url   string
		depth int
	}
	queue := []item{{url: root, depth: 0}}
	visited := map[string]struct{}{root: {}}

	var parts []string
	fetched := 0
	for len(queue) > 0 && fetched < c.cfg.MaxPages {
		cur := queue[0]
		queue = queue[1:]

		page, links, err := c.fetchPage(ctx, cur.url)
		if err != nil {
			if ctx.Err() != nil {
				return "", eris.Wrap(ctx.Err(), "crawl: cancelled")
			}
			zap.L().Debug("crawl: page failed", zap.String("url", cur.url), zap.Error(err))
			continue
		}
		fetched++
		if page != "" {
			parts = append(parts, page)
		}

		if cur.depth >= c.cfg.MaxDepth {
			continue
		}
		for _, link := range links {
			resolved := resolveLink(rootURL, cur.url, link)
			if resolved == "" {
				continue
			}
			if _, ok := visited[resolved]; ok {
				continue
			}
			visited[resolved] = struct{}{}
			queue = append(queue, item{url: resolved, depth: cur.depth + 1})
		}
	}

	if len(parts) == 0 {
		return "", eris.Errorf("crawl: no readable pages at %s", root)
	}
	zap.L().Info("crawl: site done", zap.String("url", root), zap.Int("pages", fetched))
	return strings.Join(parts, "\n\n"), nil
}

// fetchPage downloads one page and returns its plaintext plus raw hrefs.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (string, []string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", nil, eris.Wrap(err, "crawl: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", nil, eris.Wrap(err, "crawl: create request")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, eris.Wrap(err, "crawl: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", nil, eris.Errorf("crawl: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return "", nil, eris.Errorf("crawl: skipping content type %s", ct)
	}

	limit := int64(c.cfg.MaxBodyKB) * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", nil, eris.Wrap(err, "crawl: read body")
	}

	html := decodeBody(body, resp.Header.Get("Content-Type"))
	return stripHTML(html), extractLinks(html), nil
}

// decodeBody converts a page to UTF-8 using the charset the server
// declares. Persian sites still occasionally serve windows-1256.
func decodeBody(body []byte, contentType string) string {
	name := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		name = params["charset"]
	}
	if name == "" || strings.EqualFold(name, "utf-8") {
		return string(body)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(body)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

var hrefRe = regexp.MustCompile(`(?i)href\s*=\s*["']([^"'#]+)["']`)

// extractLinks pulls raw href values out of a page.
func extractLinks(html string) []string {
	var links []string
	for _, m := range hrefRe.FindAllStringSubmatch(html, -1) {
		links = append(links, m[1])
	}
	return links
}

var skipExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico",
	".zip", ".rar", ".mp4", ".mp3", ".css", ".js", ".woff", ".woff2",
}

// resolveLink turns a raw href into an absolute same-host URL, or ""
// when the link leaves the site or points at a binary asset.
func resolveLink(root *url.URL, base, href string) string {
	if strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if !strings.EqualFold(resolved.Host, root.Host) {
		return ""
	}

	lower := strings.ToLower(resolved.Path)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(lower, ext) {
			return ""
		}
	}

	resolved.Fragment = ""
	return resolved.String()
}

// NormalizeRoot gives bare domains a scheme so url.Parse sees a host.
func NormalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	if !strings.HasPrefix(root, "http://") && !strings.HasPrefix(root, "https://") {
		root = "https://" + root
	}
	return strings.TrimRight(root, "/")
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes entities,
// and collapses whitespace. The result is plaintext suitable for LLM extraction.
func stripHTML(html string) string {
	// Remove script, style, nav, footer blocks entirely.
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	// Strip remaining HTML tags.
	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	// Decode common HTML entities.
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	// Collapse whitespace: multiple spaces become one, long newline runs
	// become paragraph breaks.
	spaceRe := regexp.MustCompile(`[ \t]+`)
	html = spaceRe.ReplaceAllString(html, " ")

	nlRe := regexp.MustCompile(`\n{3,}`)
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
