// Package seed bootstraps the companies table from list articles. It fetches
// the pages concurrently, extracts company names and candidate official
// websites from the markup, deduplicates by slug, and upserts the survivors.
package seed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"fundwatch/internal/supabase"
)

// ConflictKey is the upsert identity column for companies.
const ConflictKey = "slug"

const (
	maxItemsPerPage = 300
	fetchTimeout    = 20 * time.Second
	fetchWorkers    = 4

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Hosts that never point at a company's own site.
var banDomains = []string{
	"twitter.com", "x.com", "linkedin.com", "facebook.com", "instagram.com",
	"youtube.com", "medium.com", "substack.com", "github.com",
	"crunchbase.com", "angel.co", "dealroom.co",
}

// Anchor texts that are navigation chrome, not names.
var badAnchorTexts = map[string]bool{
	"read more":        true,
	"learn more":       true,
	"website":          true,
	"official website": true,
	"homepage":         true,
	"visit site":       true,
	"click here":       true,
}

// Company is one extracted candidate.
type Company struct {
	Name    string
	Website string
}

// Record is the upsert wire shape.
type Record struct {
	Slug      string `json:"slug"`
	Name      string `json:"name,omitempty"`
	Website   string `json:"website,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// Summary reports one seeding run.
type Summary struct {
	InputURLs int
	Extracted int
	Unique    int
	Upserts   int
}

var (
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9]+`)
	hyphenRunRe   = regexp.MustCompile(`-+`)
	spaceRunRe    = regexp.MustCompile(`\s+`)
	dashVariantRe = regexp.MustCompile("[‐-―]")
	nameCharRe    = regexp.MustCompile(`[^A-Za-z0-9 &\-]`)
)

// Slugify normalizes a company name into its table identity: lowercase,
// non-alphanumeric runs collapsed to single hyphens, capped at 80 chars.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlnumRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = hyphenRunRe.ReplaceAllString(s, "-")
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

func cleanName(text string) string {
	t := strings.TrimSpace(text)
	if badAnchorTexts[strings.ToLower(t)] {
		return ""
	}
	t = spaceRunRe.ReplaceAllString(t, " ")
	t = dashVariantRe.ReplaceAllString(t, "-")
	t = nameCharRe.ReplaceAllString(t, "")
	return strings.Trim(strings.TrimSpace(t), "- ")
}

func bannedHost(host string) bool {
	for _, b := range banDomains {
		if strings.Contains(host, b) {
			return true
		}
	}
	return false
}

// secondLevelDomain falls back to the host's registrable label as a name
// when an anchor carries no usable text.
func secondLevelDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return host
}

// ExtractCompanies walks the page markup for company candidates. Pass one
// takes external anchors pointing off-site; pass two takes headings and list
// items that contain a qualifying external link.
func ExtractCompanies(body, baseURL string) []Company {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	baseHost := strings.ToLower(base.Host)

	seen := make(map[string]bool)
	var results []Company

	add := func(name, website string) {
		name = cleanName(name)
		if len(name) < 2 || len(name) > 80 {
			return
		}
		slug := Slugify(name)
		if slug == "" || seen[slug] {
			return
		}
		seen[slug] = true
		if website != "" && !strings.HasPrefix(strings.ToLower(website), "http") {
			website = "https://" + website
		}
		results = append(results, Company{Name: name, Website: website})
	}

	externalTarget := func(n *html.Node) (string, string) {
		href := attrValue(n, "href")
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return "", ""
		}
		abs, err := base.Parse(href)
		if err != nil || (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
			return "", ""
		}
		host := strings.ToLower(abs.Host)
		if host == baseHost || bannedHost(host) {
			return "", ""
		}
		return abs.String(), host
	}

	for _, a := range findAll(doc, "a") {
		if len(results) >= maxItemsPerPage {
			break
		}
		abs, host := externalTarget(a)
		if abs == "" {
			continue
		}
		text := nodeText(a)
		if text == "" {
			text = attrValue(a, "title")
		}
		name := cleanName(text)
		if name == "" {
			name = secondLevelDomain(host)
		}
		add(name, abs)
	}

	for _, node := range findAll(doc, "h1", "h2", "h3", "h4", "li", "dt") {
		if len(results) >= maxItemsPerPage {
			break
		}
		name := cleanName(nodeText(node))
		if name == "" {
			continue
		}
		link := firstDescendant(node, "a")
		if link == nil {
			continue
		}
		if abs, _ := externalTarget(link); abs != "" {
			add(name, abs)
		}
	}

	return results
}

// Seeder fetches list pages and upserts extracted companies.
type Seeder struct {
	sink       Sink
	table      string
	httpClient *http.Client
	log        *zap.Logger
	now        func() time.Time
}

// Sink is the upsert surface, satisfied by *supabase.Client.
type Sink interface {
	Upsert(ctx context.Context, table string, records any, conflictKey string) supabase.Result
}

// NewSeeder creates a Seeder targeting the given companies table.
func NewSeeder(sink Sink, table string, log *zap.Logger) *Seeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Seeder{
		sink:       sink,
		table:      table,
		httpClient: &http.Client{Timeout: fetchTimeout},
		log:        log,
		now:        time.Now,
	}
}

// Run seeds companies from the given list-page URLs. Individual page
// failures are logged and skipped; the run only errors when the context
// dies. Candidates merge by slug, preferring the first entry that carries
// a website.
func (s *Seeder) Run(ctx context.Context, urls []string) (Summary, error) {
	sum := Summary{InputURLs: len(urls)}

	pages := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i, u := range urls {
		g.Go(func() error {
			body, err := s.fetch(gctx, u)
			if err != nil {
				s.log.Warn("fetch failed", zap.String("url", u), zap.Error(err))
				return nil
			}
			pages[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}

	merged := make(map[string]Company)
	var order []string
	for i, body := range pages {
		if body == "" {
			continue
		}
		companies := ExtractCompanies(body, urls[i])
		sum.Extracted += len(companies)
		for _, c := range companies {
			slug := Slugify(c.Name)
			if slug == "" {
				continue
			}
			existing, ok := merged[slug]
			if !ok {
				merged[slug] = c
				order = append(order, slug)
			} else if existing.Website == "" && c.Website != "" {
				merged[slug] = c
			}
		}
	}
	sum.Unique = len(merged)

	for _, slug := range order {
		c := merged[slug]
		rec := Record{
			Slug:      slug,
			Name:      c.Name,
			Website:   c.Website,
			UpdatedAt: s.now().UTC().Format(time.RFC3339),
		}
		res := s.sink.Upsert(ctx, s.table, rec, ConflictKey)
		if res.OK() {
			sum.Upserts++
		} else {
			s.log.Warn("company upsert failed",
				zap.String("slug", slug),
				zap.String("error", res.Err))
		}
	}

	s.log.Info("seeding complete",
		zap.Int("input_urls", sum.InputURLs),
		zap.Int("extracted", sum.Extracted),
		zap.Int("unique", sum.Unique),
		zap.Int("upserts", sum.Upserts))
	return sum, nil
}

func (s *Seeder) fetch(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "text/html") {
		return "", fmt.Errorf("non-HTML content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// findAll returns all element nodes with one of the given tag names, in
// document order.
func findAll(root *html.Node, tags ...string) []*html.Node {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && want[n.Data] {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func firstDescendant(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := firstDescendant(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(b.String(), " "))
}
