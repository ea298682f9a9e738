package acquisition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ai-citation-be/internal/pkg/logger"
)

// Fetcher turns a list of candidate URLs into stored artifacts, respecting
// robots.txt and the size cap. One deadline covers a whole batch; slow
// sources are abandoned rather than letting them stall the pipeline.
type Fetcher struct {
	http          *http.Client
	robots        *robotsGate
	renderer      PageRenderer
	log           logger.ILogger
	maxFileSize   int64
	fetchDeadline time.Duration
	storageRoot   string
}

type FetcherConfig struct {
	MaxFileSize   int64
	FetchDeadline time.Duration
	StorageRoot   string
}

func NewFetcher(cfg FetcherConfig, renderer PageRenderer, log logger.ILogger) *Fetcher {
	return &Fetcher{
		http:          &http.Client{Timeout: 30 * time.Second},
		robots:        newRobotsGate(),
		renderer:      renderer,
		log:           log,
		maxFileSize:   cfg.MaxFileSize,
		fetchDeadline: cfg.FetchDeadline,
		storageRoot:   cfg.StorageRoot,
	}
}

// FetchResult reports what a batch fetch produced: stored artifact path per
// source URL, in no particular order.
type FetchResult struct {
	Paths map[string]string
	Dir   string
}

// Count returns the number of artifacts stored.
func (r *FetchResult) Count() int { return len(r.Paths) }

// GetPDFs fetches all URLs concurrently under a single batch deadline.
// Individual failures are logged and skipped; the batch succeeds with
// whatever arrived in time.
func (f *Fetcher) GetPDFs(ctx context.Context, urls []string, collection string) (*FetchResult, error) {
	dir := filepath.Join(f.storageRoot, sanitizeDirName(collection))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}

	batchCtx, cancel := context.WithTimeout(ctx, f.fetchDeadline)
	defer cancel()

	result := &FetchResult{Paths: make(map[string]string, len(urls)), Dir: dir}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, rawURL := range urls {
		wg.Add(1)
		go func(rawURL string) {
			defer wg.Done()

			if !f.robots.Allowed(batchCtx, rawURL) {
				f.log.Warn("acquisition", "skipping disallowed url", map[string]interface{}{"url": rawURL})
				return
			}
			if !f.awaitCrawlDelay(batchCtx, rawURL) {
				return
			}

			path, err := strategyFor(rawURL)(batchCtx, f, rawURL, dir)
			if err != nil {
				f.log.Warn("acquisition", "fetch failed", map[string]interface{}{"url": rawURL, "error": err.Error()})
				return
			}

			mu.Lock()
			result.Paths[rawURL] = path
			mu.Unlock()
		}(rawURL)
	}
	wg.Wait()

	return result, nil
}

// awaitCrawlDelay sleeps a jittered share of the host's crawl delay, between
// half the delay and the full delay. Returns false when the batch deadline
// expires first.
func (f *Fetcher) awaitCrawlDelay(ctx context.Context, rawURL string) bool {
	delay := f.robots.Delay(ctx, rawURL)
	if delay <= 0 {
		return true
	}
	jittered := delay/2 + time.Duration(rand.Int63n(int64(delay)/2+1))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(jittered):
		return true
	}
}

// downloadPDF probes the content length first and refuses oversized files.
func (f *Fetcher) downloadPDF(ctx context.Context, rawURL, dir string) (string, error) {
	head, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", err
	}
	if resp, err := f.http.Do(head); err == nil {
		resp.Body.Close()
		if resp.ContentLength > f.maxFileSize {
			return "", fmt.Errorf("file exceeds size limit (%d bytes)", resp.ContentLength)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	path := filepath.Join(dir, artifactName(rawURL)+".pdf")
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	// the HEAD probe can lie, so cap the copy too
	written, err := io.Copy(out, io.LimitReader(resp.Body, f.maxFileSize+1))
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if written > f.maxFileSize {
		os.Remove(path)
		return "", fmt.Errorf("file exceeds size limit")
	}
	return path, nil
}

// writeTextArtifact stores rendered page text next to the downloaded PDFs.
func (f *Fetcher) writeTextArtifact(rawURL, dir, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("rendered page was empty")
	}
	path := filepath.Join(dir, artifactName(rawURL)+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// artifactName derives a stable filesystem name from the URL.
func artifactName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:16]
}

func sanitizeDirName(name string) string {
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-")
	return strings.ToLower(replacer.Replace(name))
}
