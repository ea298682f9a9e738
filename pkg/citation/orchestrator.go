package citation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-citation-be/internal/config"
	"ai-citation-be/internal/pkg/logger"
	"ai-citation-be/pkg/acquisition"
	"ai-citation-be/pkg/chunker"
	"ai-citation-be/pkg/credibility"
	"ai-citation-be/pkg/events"
	"ai-citation-be/pkg/lease"
	"ai-citation-be/pkg/llm"
	"ai-citation-be/pkg/reaper"
	"ai-citation-be/pkg/retrieval"
	"ai-citation-be/pkg/store"
	"ai-citation-be/pkg/vectorstore"
)

// State names the stages of one citation request.
type State string

const (
	StateResolvingIndex State = "RESOLVING_INDEX"
	StateFastPath       State = "FAST_PATH"
	StateAcquiring      State = "ACQUIRING_SOURCES"
	StatePopulating     State = "POPULATING_INDEX"
	StateRetrieving     State = "RETRIEVING"
	StateScoring        State = "SCORING"
	StateCiting         State = "CITING"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// Form types determine how source documents are obtained.
const (
	FormAuto   = "auto"
	FormWeb    = "web"
	FormSource = "source"
)

var (
	// ErrBuildInProgress means another worker holds the build lease for this
	// topic and its index did not become queryable in time.
	ErrBuildInProgress = errors.New("index build already in progress for this topic")

	// ErrNoRelevantSources means retrieval found nothing above the relevance
	// threshold.
	ErrNoRelevantSources = errors.New("no relevant sources found for the given content")
)

// Request is one citation job.
type Request struct {
	Title          string
	Content        string
	FormType       string
	CitationStyle  string
	Sources        []store.Source
	SupplementURLs bool
}

// Result is the assembled outcome of a successful request.
type Result struct {
	FormattedText   string                    `json:"formatted_text"`
	References      []string                  `json:"references"`
	ValidationNotes []string                  `json:"validation_notes,omitempty"`
	OverallScore    float64                   `json:"overall_score"`
	Sources         []credibility.SourceScore `json:"sources"`
}

// EventPublisher is the outward-facing lifecycle bus; nil-safe via noop.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Orchestrator drives a citation request through its states. All heavy
// lifting lives in the collaborator packages; this type owns only sequencing,
// the fast path and failure semantics.
type Orchestrator struct {
	cfg        *config.Config
	manager    *vectorstore.Manager
	searcher   *acquisition.SearchClient
	acquirer   *acquisition.Acquirer
	retriever  *retrieval.Retriever
	summarizer *llm.Summarizer
	citer      *llm.Citer
	scorer     *credibility.Client
	locker     *lease.Locker
	registrar  *reaper.Registrar
	publisher  EventPublisher
	log        logger.ILogger
}

type Collaborators struct {
	Manager    *vectorstore.Manager
	Searcher   *acquisition.SearchClient
	Acquirer   *acquisition.Acquirer
	Retriever  *retrieval.Retriever
	Summarizer *llm.Summarizer
	Citer      *llm.Citer
	Scorer     *credibility.Client
	Locker     *lease.Locker
	Registrar  *reaper.Registrar
	Publisher  EventPublisher
}

func NewOrchestrator(cfg *config.Config, c Collaborators, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		manager:    c.Manager,
		searcher:   c.Searcher,
		acquirer:   c.Acquirer,
		retriever:  c.Retriever,
		summarizer: c.Summarizer,
		citer:      c.Citer,
		scorer:     c.Scorer,
		locker:     c.Locker,
		registrar:  c.Registrar,
		publisher:  c.Publisher,
		log:        log,
	}
}

// ProcessCitation runs the full pipeline. Any error leaves the request in the
// failed state; the caller receives a plain error, never a panic.
func (o *Orchestrator) ProcessCitation(ctx context.Context, req Request) (*Result, error) {
	result, err := o.process(ctx, req)
	if err != nil {
		o.transition(req.Title, StateFailed)
		o.emit(events.NewCitationFailed(req.Title, err.Error()))
		return nil, err
	}
	o.transition(req.Title, StateDone)
	o.emit(events.NewCitationCompleted(req.Title, result.OverallScore, len(result.Sources)))
	return result, nil
}

func (o *Orchestrator) process(ctx context.Context, req Request) (*Result, error) {
	o.transition(req.Title, StateResolvingIndex)

	searchKey := o.resolveSearchKey(ctx, req)
	indexName := GenerateIndexName(searchKey, o.cfg.Llm.IndexNameLen)

	ready, err := o.manager.SetCurrentIndex(ctx, indexName, "")
	if err != nil {
		return nil, err
	}

	if ready {
		o.transition(req.Title, StateFastPath)
	} else {
		if err := o.buildIndex(ctx, req, searchKey, indexName); err != nil {
			return nil, err
		}
	}

	o.transition(req.Title, StateRetrieving)
	// query chunks use a tighter overlap than document chunks
	queries := chunker.ChunkText(req.Content, o.cfg.Llm.QueryTokenSize, o.cfg.Llm.QueryOverlapPercent)
	batches, err := o.retriever.ProcessQueries(ctx, queries)
	if err != nil {
		return nil, err
	}

	evidence := retrieval.FilterRerankResults(batches)
	if len(evidence) == 0 {
		return nil, ErrNoRelevantSources
	}

	return o.scoreAndCite(ctx, req, queries, evidence)
}

// resolveSearchKey summarizes the content into a search term for auto
// requests; other form types key the index on the title. A summarizer
// failure degrades to the title rather than failing the request.
func (o *Orchestrator) resolveSearchKey(ctx context.Context, req Request) string {
	if req.FormType != FormAuto {
		return req.Title
	}

	key, err := o.summarizer.GetKeywordSearchTerm(ctx, req.Content, req.Title)
	if err != nil {
		o.log.Warn("citation", "search key generation failed, using title", map[string]interface{}{"error": err.Error()})
		return req.Title
	}
	return key
}

// buildIndex acquires the per-topic build lease, gathers sources, creates
// and populates the index, and waits for the store to report convergence.
func (o *Orchestrator) buildIndex(ctx context.Context, req Request, searchKey, indexName string) error {
	if err := o.locker.Acquire(ctx, indexName); err != nil {
		if errors.Is(err, lease.ErrHeld) {
			return o.awaitForeignBuild(ctx, indexName)
		}
		return err
	}
	defer o.locker.Release(ctx, indexName)

	o.transition(req.Title, StateAcquiring)
	batches, err := o.acquireSources(ctx, req, searchKey)
	if err != nil {
		return err
	}

	o.transition(req.Title, StatePopulating)
	if err := o.manager.CreateIndex(ctx, indexName, 0, ""); err != nil {
		return err
	}

	createdAt := time.Now()
	o.registrar.Register(indexName, createdAt)
	o.emit(events.NewIndexCreated(indexName, req.Title))

	initial, err := o.manager.IndexStats(ctx)
	if err != nil {
		// a fresh index may briefly refuse stats calls
		initial = 0
	}

	if err := o.manager.UpsertDocuments(ctx, batches); err != nil {
		return err
	}

	// convergence is keyed on batch count, not document count
	return o.awaitConvergence(ctx, initial+len(batches))
}

// acquireSources dispatches on form type.
func (o *Orchestrator) acquireSources(ctx context.Context, req Request, searchKey string) ([][]store.Document, error) {
	switch req.FormType {
	case FormAuto:
		found, err := o.searcher.CleanSearch(ctx, searchKey, o.cfg.Search.TopN)
		if err != nil {
			return nil, fmt.Errorf("source search failed: %w", err)
		}
		return o.acquirer.ProcessSearchResults(ctx, found, searchKey)
	case FormWeb:
		sources := req.Sources
		if req.SupplementURLs && len(sources) < o.cfg.Search.TopN {
			sources = append(sources, o.supplementSources(ctx, searchKey, sources)...)
		}
		return o.acquirer.ProcessWebSources(ctx, sources, searchKey)
	case FormSource:
		return o.acquirer.ProcessDirectSources(req.Sources)
	default:
		return nil, fmt.Errorf("unknown form type %q", req.FormType)
	}
}

// supplementSources searches for additional links when the caller supplied
// fewer sources than the retrieval budget and opted in. A failed search
// leaves the caller's sources as they are.
func (o *Orchestrator) supplementSources(ctx context.Context, searchKey string, existing []store.Source) []store.Source {
	found, err := o.searcher.CleanSearch(ctx, searchKey, o.cfg.Search.TopN-len(existing))
	if err != nil {
		o.log.Warn("citation", "supplement search failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	have := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		have[s.URL] = struct{}{}
	}

	var extra []store.Source
	for _, link := range found.Links {
		if _, dup := have[link]; dup {
			continue
		}
		extra = append(extra, acquisition.SourceFromMeta(link, found.Meta[link]))
	}
	return extra
}

// awaitConvergence polls index stats until the vector count reaches target.
// The poll is bounded: a store that never converges fails the request
// instead of hanging it.
func (o *Orchestrator) awaitConvergence(ctx context.Context, target int) error {
	pollCtx, cancel := context.WithTimeout(ctx, o.cfg.Reaper.PopulateTimeout)
	defer cancel()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		count, err := o.manager.IndexStats(pollCtx)
		if err == nil && count >= target {
			return nil
		}

		select {
		case <-pollCtx.Done():
			return fmt.Errorf("index population did not converge: %w", pollCtx.Err())
		case <-ticker.C:
		}
	}
}

// awaitForeignBuild waits for another worker's build of the same index to
// become queryable.
func (o *Orchestrator) awaitForeignBuild(ctx context.Context, indexName string) error {
	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.Reaper.PopulateTimeout)
	defer cancel()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		ready, err := o.manager.SetCurrentIndex(waitCtx, indexName, "")
		if err == nil && ready {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return ErrBuildInProgress
		case <-ticker.C:
		}
	}
}

// scoreAndCite runs the credibility fetch and the citation LLM concurrently.
// Credibility failures degrade to an empty metric set; a citation failure is
// fatal.
func (o *Orchestrator) scoreAndCite(ctx context.Context, req Request, queries []string, evidence []vectorstore.RerankResult) (*Result, error) {
	o.transition(req.Title, StateScoring)

	records := sourceRecords(evidence)
	sourcesJSON, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode source records: %w", err)
	}

	var (
		wg      sync.WaitGroup
		metrics []credibility.Metric
		parsed  *llm.ParsedCitation
		citeErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		metrics = o.scorer.ScoreBatch(ctx, records)
	}()
	go func() {
		defer wg.Done()
		o.transition(req.Title, StateCiting)
		parsed, citeErr = o.citer.Cite(ctx, queries, string(sourcesJSON), req.CitationStyle)
	}()
	wg.Wait()

	if citeErr != nil {
		return nil, citeErr
	}

	scored, overall := fuseScores(records, metrics)

	return &Result{
		FormattedText:   parsed.FormattedText,
		References:      parsed.References,
		ValidationNotes: parsed.ValidationNotes,
		OverallScore:    overall,
		Sources:         scored,
	}, nil
}

// sourceRecords collapses evidence down to one metadata record per source
// link, first occurrence wins.
func sourceRecords(evidence []vectorstore.RerankResult) []map[string]interface{} {
	seen := make(map[string]struct{})
	var records []map[string]interface{}

	for _, ev := range evidence {
		key, _ := ev.Document.Metadata["link"].(string)
		if key == "" {
			// direct sources may carry no URL; fall back to the title
			key, _ = ev.Document.Metadata["title"].(string)
		}
		if key == "" {
			key = ev.Document.ID
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		record := make(map[string]interface{}, len(ev.Document.Metadata))
		for k, v := range ev.Document.Metadata {
			if k == "page_content" {
				continue
			}
			record[k] = v
		}
		record["rerank_score"] = ev.Score
		records = append(records, record)
	}
	return records
}

// fuseScores pairs each credibility metric with the rerank score its record
// already carries and fuses the components. Sources the credibility service
// skipped are dropped from the response.
func fuseScores(records []map[string]interface{}, metrics []credibility.Metric) ([]credibility.SourceScore, float64) {
	var items []credibility.SourceScore
	for i, metric := range metrics {
		if i >= len(records) || metric.Status != "success" {
			continue
		}
		link, _ := records[i]["link"].(string)
		rerank, _ := records[i]["rerank_score"].(float64)
		items = append(items, credibility.SourceScore{
			Link:             link,
			RerankScore:      rerank,
			CredibilityScore: metric.Score() / 100,
		})
	}
	return credibility.CalculateOverallScore(items)
}

func (o *Orchestrator) transition(title string, state State) {
	o.log.Info("citation", "state transition", map[string]interface{}{"title": title, "state": string(state)})
}

func (o *Orchestrator) emit(event events.Event) {
	if o.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.log.Warn("citation", "event publish failed", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
		}
	}()
}
