package acquisition

import (
	"bufio"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// robotsGate answers "may we fetch this URL" by reading the host's robots.txt
// once and caching the parsed rules per host.
type robotsGate struct {
	cache *cache.Cache
	http  *http.Client
}

// hostRules holds the wildcard-agent rules for one host.
type hostRules struct {
	disallow   []string
	crawlDelay time.Duration
}

func newRobotsGate() *robotsGate {
	return &robotsGate{
		cache: cache.New(1*time.Hour, 10*time.Minute),
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Allowed reports whether the wildcard agent may fetch rawURL. Hosts whose
// robots.txt cannot be fetched are treated as permissive.
func (g *robotsGate) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	rules := g.rulesFor(ctx, parsed)
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	for _, prefix := range rules.disallow {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// Delay returns the host's declared crawl delay, zero when none is set.
func (g *robotsGate) Delay(ctx context.Context, rawURL string) time.Duration {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return 0
	}
	return g.rulesFor(ctx, parsed).crawlDelay
}

func (g *robotsGate) rulesFor(ctx context.Context, u *url.URL) *hostRules {
	if cached, ok := g.cache.Get(u.Host); ok {
		return cached.(*hostRules)
	}

	rules := g.fetchRules(ctx, u)
	g.cache.Set(u.Host, rules, cache.DefaultExpiration)
	return rules
}

// fetchRules parses the disallow prefixes and crawl delay for the wildcard
// agent.
func (g *robotsGate) fetchRules(ctx context.Context, u *url.URL) *hostRules {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	rules := &hostRules{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return rules
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return rules
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return rules
	}

	wildcard := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "user-agent:"):
			agent := strings.TrimSpace(line[len("user-agent:"):])
			wildcard = agent == "*"
		case wildcard && strings.HasPrefix(lower, "disallow:"):
			prefix := strings.TrimSpace(line[len("disallow:"):])
			if prefix != "" {
				rules.disallow = append(rules.disallow, prefix)
			}
		case wildcard && strings.HasPrefix(lower, "crawl-delay:"):
			if secs, err := strconv.ParseFloat(strings.TrimSpace(line[len("crawl-delay:"):]), 64); err == nil && secs > 0 {
				rules.crawlDelay = time.Duration(secs * float64(time.Second))
			}
		}
	}
	return rules
}
