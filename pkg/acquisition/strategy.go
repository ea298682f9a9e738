package acquisition

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// FetchStrategy downloads or synthesizes an artifact for one URL and returns
// the stored file path.
type FetchStrategy func(ctx context.Context, f *Fetcher, rawURL, dir string) (string, error)

// strategyRegistry maps a hostname to a dedicated fetch strategy. Unlisted
// hosts fall through to the generic strategy.
var strategyRegistry = map[string]FetchStrategy{
	"arxiv.org":             arxivStrategy,
	"www.researchgate.net":  renderStrategy,
	"www.sciencedirect.com": renderStrategy,
}

// strategyFor resolves the fetch strategy for a URL by hostname.
func strategyFor(rawURL string) FetchStrategy {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return genericStrategy
	}
	if s, ok := strategyRegistry[parsed.Host]; ok {
		return s
	}
	return genericStrategy
}

// arxivStrategy rewrites abstract links to their direct PDF counterpart and
// downloads the file.
func arxivStrategy(ctx context.Context, f *Fetcher, rawURL, dir string) (string, error) {
	pdfURL := strings.Replace(rawURL, "/abs/", "/pdf/", 1)
	return f.downloadPDF(ctx, pdfURL, dir)
}

// renderStrategy always goes through the page renderer, for hosts that block
// plain HTTP clients.
func renderStrategy(ctx context.Context, f *Fetcher, rawURL, dir string) (string, error) {
	if f.renderer == nil {
		return "", fmt.Errorf("no page renderer configured for %s", rawURL)
	}
	text, err := f.renderer.RenderText(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return f.writeTextArtifact(rawURL, dir, text)
}

// genericStrategy downloads direct PDFs and renders everything else into a
// text artifact.
func genericStrategy(ctx context.Context, f *Fetcher, rawURL, dir string) (string, error) {
	if strings.HasSuffix(strings.ToLower(strings.Split(rawURL, "?")[0]), ".pdf") {
		return f.downloadPDF(ctx, rawURL, dir)
	}
	return renderStrategy(ctx, f, rawURL, dir)
}
