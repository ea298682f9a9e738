package acquisition

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"ai-citation-be/internal/config"
	"ai-citation-be/internal/pkg/logger"
	"ai-citation-be/pkg/chunker"
	"ai-citation-be/pkg/store"
)

// Acquirer assembles upsert-ready document batches from any of the three
// entry modes: search results, user-supplied web sources, or raw source
// content with no fetching at all.
type Acquirer struct {
	fetcher *Fetcher
	loader  ArtifactLoader
	cfg     *config.Config
	log     logger.ILogger
}

func NewAcquirer(fetcher *Fetcher, loader ArtifactLoader, cfg *config.Config, log logger.ILogger) *Acquirer {
	return &Acquirer{fetcher: fetcher, loader: loader, cfg: cfg, log: log}
}

// ProcessSearchResults fetches the searched links and builds batches with the
// search metadata attached per chunk.
func (a *Acquirer) ProcessSearchResults(ctx context.Context, result *CleanResult, collection string) ([][]store.Document, error) {
	fetched, err := a.fetcher.GetPDFs(ctx, result.Links, collection)
	if err != nil {
		return nil, err
	}
	if fetched.Count() == 0 {
		return nil, fmt.Errorf("no sources could be fetched for %q", collection)
	}

	docs := a.loadArtifacts(fetched, result.Meta)
	return a.splitAndBatch(docs), nil
}

// ProcessWebSources fetches user-supplied URLs, attaching the caller's own
// source metadata instead of search metatags.
func (a *Acquirer) ProcessWebSources(ctx context.Context, sources []store.Source, collection string) ([][]store.Document, error) {
	meta := make(map[string]map[string]interface{}, len(sources))
	links := make([]string, 0, len(sources))
	for i := range sources {
		sources[i].Normalize()
		meta[sources[i].URL] = sources[i].MetadataMap()
		links = append(links, sources[i].URL)
	}

	fetched, err := a.fetcher.GetPDFs(ctx, links, collection)
	if err != nil {
		return nil, err
	}
	if fetched.Count() == 0 {
		return nil, fmt.Errorf("no sources could be fetched for %q", collection)
	}

	docs := a.loadArtifacts(fetched, meta)
	return a.splitAndBatch(docs), nil
}

// ProcessDirectSources builds batches straight from caller-provided content.
// Nothing is fetched.
func (a *Acquirer) ProcessDirectSources(sources []store.Source) ([][]store.Document, error) {
	var docs []store.Document
	for i := range sources {
		sources[i].Normalize()
		if strings.TrimSpace(sources[i].Content) == "" {
			continue
		}
		doc := store.NewDocument(sources[i].Content, sources[i].MetadataMap())
		doc.Metadata["file_path"] = sources[i].URL
		doc.Metadata["page"] = 0
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no sources carried any content")
	}
	return a.splitAndBatch(docs), nil
}

// loadArtifacts reads every stored artifact into page documents, drops the
// trailing reference pages, and attaches the per-URL metadata.
func (a *Acquirer) loadArtifacts(fetched *FetchResult, meta map[string]map[string]interface{}) []store.Document {
	var docs []store.Document
	for rawURL, path := range fetched.Paths {
		pages, err := a.loader.LoadPages(path)
		if err != nil {
			a.log.Warn("acquisition", "failed to load artifact", map[string]interface{}{"path": path, "error": err.Error()})
			continue
		}

		pages = FilterReferencePages(pages)

		for i, page := range pages {
			metadata := map[string]interface{}{
				"file_path": path,
				"source":    filepath.Base(path),
				"page":      i,
				"link":      rawURL,
			}
			for k, v := range meta[rawURL] {
				if _, taken := metadata[k]; !taken {
					metadata[k] = v
				}
			}
			docs = append(docs, store.NewDocument(page, metadata))
		}
	}
	return docs
}

// FilterReferencePages trims pages from the first reference-section marker
// onward once a conclusion has been seen, so bibliographies do not pollute
// retrieval. A page holding both the conclusion and the reference heading is
// itself cut.
func FilterReferencePages(pages []string) []string {
	conclusionSeen := false
	for i, page := range pages {
		lower := strings.ToLower(page)
		if strings.Contains(lower, "conclusion") {
			conclusionSeen = true
		}
		if conclusionSeen && startsReferenceSection(lower) {
			return pages[:i]
		}
	}
	return pages
}

func startsReferenceSection(lower string) bool {
	for _, marker := range []string{"reference", "bibliography", "works cited"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (a *Acquirer) splitAndBatch(docs []store.Document) [][]store.Document {
	chunks := chunker.SplitDocuments(docs, a.cfg.Llm.MaxTokens, a.cfg.Llm.DefaultOverlapPercent, a.cfg.Concurrency.DefaultWorkers)
	return chunker.CreateBatches(chunks, a.cfg.Llm.BatchSize)
}
