package acquisition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	scriptBlocks = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	htmlTags     = regexp.MustCompile(`<[^>]+>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// httpRenderer is the plain-HTTP fallback renderer: it fetches the page and
// strips markup. Sites that need JavaScript get a browser-backed
// implementation of PageRenderer injected instead.
type httpRenderer struct {
	http      *http.Client
	userAgent string
}

func NewHTTPRenderer(userAgent string, timeout time.Duration) PageRenderer {
	return &httpRenderer{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (r *httpRenderer) RenderText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return "", err
	}

	text := scriptBlocks.ReplaceAllString(string(body), " ")
	text = htmlTags.ReplaceAllString(text, "\n")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}
