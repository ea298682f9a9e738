package citation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"

	"ai-citation-be/internal/config"
	"ai-citation-be/pkg/acquisition"
	"ai-citation-be/pkg/credibility"
	"ai-citation-be/pkg/lease"
	"ai-citation-be/pkg/llm"
	"ai-citation-be/pkg/llm/factory"
	"ai-citation-be/pkg/reaper"
	"ai-citation-be/pkg/retrieval"
	"ai-citation-be/pkg/store"
	"ai-citation-be/pkg/vectorstore"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// fakeStore serves the vector store API for one pre-populated index.
type fakeStore struct {
	indexName   string
	createCalls int32
	upsertCalls int32
	srv         *httptest.Server
}

func newFakeStore(t *testing.T, indexName string) *fakeStore {
	t.Helper()
	fs := &fakeStore{indexName: indexName}

	mux := http.NewServeMux()
	mux.HandleFunc("/indexes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&fs.createCalls, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{"name": fs.indexName, "host": fs.srv.URL})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"indexes": []map[string]string{{"name": fs.indexName, "host": fs.srv.URL}},
		})
	})
	mux.HandleFunc("/indexes/"+indexName, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": fs.indexName, "host": fs.srv.URL})
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Model, "sparse") {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{"sparse_values": []float64{1}, "sparse_indices": []int64{3}}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"values": []float64{0.1, 0.2}}},
		})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"matches": []map[string]interface{}{{
				"id":    "doc-1",
				"score": 0.9,
				"metadata": map[string]interface{}{
					"page_content": "Climate change drives sea-level rise.",
					"link":         "https://example.org/paper",
					"title":        "Sea Level Paper",
				},
			}},
		})
	})
	mux.HandleFunc("/rerank", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{
				"index": 0,
				"score": 0.92,
				"document": map[string]interface{}{
					"id":           "doc-1",
					"page_content": "Climate change drives sea-level rise.",
					"metadata": map[string]interface{}{
						"link":  "https://example.org/paper",
						"title": "Sea Level Paper",
					},
				},
			}},
		})
	})
	mux.HandleFunc("/vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fs.upsertCalls, 1)
		w.WriteHeader(http.StatusOK)
	})

	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

// buildStore serves the vector store API for an index that exists only after
// it has been created through the API.
type buildStore struct {
	indexName string
	created   int32
	upserted  int32
	srv       *httptest.Server
}

func newBuildStore(t *testing.T, indexName string) *buildStore {
	t.Helper()
	bs := &buildStore{indexName: indexName}

	mux := http.NewServeMux()
	mux.HandleFunc("/indexes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.StoreInt32(&bs.created, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{"name": bs.indexName, "host": bs.srv.URL})
			return
		}
		indexes := []map[string]string{}
		if atomic.LoadInt32(&bs.created) == 1 {
			indexes = append(indexes, map[string]string{"name": bs.indexName, "host": bs.srv.URL})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"indexes": indexes})
	})
	mux.HandleFunc("/indexes/"+indexName, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": bs.indexName, "host": bs.srv.URL})
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string                   `json:"model"`
			Inputs []map[string]interface{} `json:"inputs"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		n := len(req.Inputs)
		if n == 0 {
			n = 1
		}
		data := make([]map[string]interface{}, n)
		for i := range data {
			if strings.Contains(req.Model, "sparse") {
				data[i] = map[string]interface{}{"sparse_values": []float64{1}, "sparse_indices": []int64{3}}
			} else {
				data[i] = map[string]interface{}{"values": []float64{0.1, 0.2}}
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	})
	mux.HandleFunc("/vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		atomic.StoreInt32(&bs.upserted, 1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/describe_index_stats", func(w http.ResponseWriter, r *http.Request) {
		count := 0
		if atomic.LoadInt32(&bs.upserted) == 1 {
			count = 1
		}
		json.NewEncoder(w).Encode(map[string]int{"totalVectorCount": count})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"matches": []map[string]interface{}{{
				"id":    "doc-1",
				"score": 0.9,
				"metadata": map[string]interface{}{
					"page_content": "Climate change drives sea-level rise.",
					"title":        "Sea Level Paper",
				},
			}},
		})
	})
	mux.HandleFunc("/rerank", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{
				"index": 0,
				"score": 0.92,
				"document": map[string]interface{}{
					"id":           "doc-1",
					"page_content": "Climate change drives sea-level rise.",
					"metadata": map[string]interface{}{
						"title": "Sea Level Paper",
					},
				},
			}},
		})
	})

	bs.srv = httptest.NewServer(mux)
	t.Cleanup(bs.srv.Close)
	return bs
}

func newFakeLLM(t *testing.T) *httptest.Server {
	t.Helper()
	citationJSON := `{"formatted_text":"Sea levels are rising (Doe, 2024).","references":["Doe, J. (2024). Sea Level Paper. https://example.org/paper"]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": citationJSON}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFakeCredibility(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"status": "success", "data": map[string]interface{}{"credibility_score": 80.0}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Llm.QueryTokenSize = 253
	cfg.Llm.DefaultOverlapPercent = 10
	cfg.Llm.QueryOverlapPercent = 5
	cfg.Llm.IndexNameLen = 42
	cfg.Llm.CiteTemperature = 0.1
	cfg.Concurrency.CiteBatches = 10
	cfg.Search.TopN = 5
	cfg.Reaper.PopulateTimeout = 2 * time.Second
	return cfg
}

// When the topic's index already exists, the orchestrator must go straight to
// retrieval: no search, no fetching, no index creation or population. The
// acquisition collaborators are nil here, so any leak into the build path
// fails loudly.
func TestProcessCitationFastPath(t *testing.T) {
	title := "Test Search Key With Spaces"
	indexName := GenerateIndexName(title, 42)

	fs := newFakeStore(t, indexName)
	llmSrv := newFakeLLM(t)
	credSrv := newFakeCredibility(t)

	cfg := testConfig()
	log := nopLogger{}

	client := vectorstore.NewClient(vectorstore.ClientConfig{APIKey: "test", BaseURL: fs.srv.URL})
	manager := vectorstore.NewManager(client, vectorstore.ManagerConfig{
		DenseModel:  "dense-model",
		SparseModel: "sparse-model",
		RerankModel: "rerank-model",
		Dimension:   2,
	}, log)

	provider, err := factory.NewLLMProvider(llmSrv.URL, "test", "test-model")
	if err != nil {
		t.Fatalf("provider: %v", err)
	}

	orch := NewOrchestrator(cfg, Collaborators{
		Manager:   manager,
		Retriever: retrieval.NewRetriever(manager, cfg.Search.TopN, log),
		Citer:     llm.NewCiter(provider, provider, cfg.Llm.CiteTemperature, cfg.Concurrency.CiteBatches),
		Scorer:    credibility.NewClient(credSrv.URL, log),
	}, log)

	result, err := orch.ProcessCitation(context.Background(), Request{
		Title:         title,
		Content:       "Climate change drives sea-level rise.",
		FormType:      FormWeb,
		CitationStyle: "APA",
		Sources:       []store.Source{{URL: "https://example.org/paper", Title: "Sea Level Paper"}},
	})
	if err != nil {
		t.Fatalf("ProcessCitation: %v", err)
	}

	assert.Zero(t, atomic.LoadInt32(&fs.createCalls), "fast path created an index")
	assert.Zero(t, atomic.LoadInt32(&fs.upsertCalls), "fast path populated an index")

	assert.NotEmpty(t, result.References)
	assert.GreaterOrEqual(t, result.OverallScore, 0.0)
	assert.LessOrEqual(t, result.OverallScore, 100.0)
	// rerank 0.92 and credibility 80/100 fuse to 87.20
	assert.Equal(t, 87.20, result.OverallScore)
	assert.Len(t, result.Sources, 1)
}

// The build path must treat the index as queryable once the store reports one
// landed vector per upserted batch. Here two documents go up in a single
// batch but the store only ever reports one vector; waiting for the full
// document count would time the request out.
func TestProcessCitationSourceBuildConvergesOnBatchCount(t *testing.T) {
	title := "Fresh Topic Needing A Build"
	indexName := GenerateIndexName(title, 42)

	bs := newBuildStore(t, indexName)
	llmSrv := newFakeLLM(t)
	credSrv := newFakeCredibility(t)

	cfg := testConfig()
	cfg.Llm.MaxTokens = 380
	cfg.Llm.BatchSize = 90
	cfg.Concurrency.DefaultWorkers = 2
	log := nopLogger{}

	client := vectorstore.NewClient(vectorstore.ClientConfig{APIKey: "test", BaseURL: bs.srv.URL})
	manager := vectorstore.NewManager(client, vectorstore.ManagerConfig{
		DenseModel:  "dense-model",
		SparseModel: "sparse-model",
		RerankModel: "rerank-model",
		Dimension:   2,
	}, log)

	provider, err := factory.NewLLMProvider(llmSrv.URL, "test", "test-model")
	if err != nil {
		t.Fatalf("provider: %v", err)
	}

	orch := NewOrchestrator(cfg, Collaborators{
		Manager:   manager,
		Acquirer:  acquisition.NewAcquirer(nil, nil, cfg, log),
		Retriever: retrieval.NewRetriever(manager, cfg.Search.TopN, log),
		Citer:     llm.NewCiter(provider, provider, cfg.Llm.CiteTemperature, cfg.Concurrency.CiteBatches),
		Scorer:    credibility.NewClient(credSrv.URL, log),
		Locker:    lease.NewLocker("not-a-redis-url", time.Minute, log),
		Registrar: reaper.NewRegistrar(gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})),
	}, log)

	result, err := orch.ProcessCitation(context.Background(), Request{
		Title:         title,
		Content:       "Climate change drives sea-level rise.",
		FormType:      FormSource,
		CitationStyle: "APA",
		Sources: []store.Source{
			{Title: "Sea Level Paper", Content: "Climate change drives sea-level rise."},
			{Title: "Second Paper", Content: "Warming oceans expand."},
		},
	})
	if err != nil {
		t.Fatalf("ProcessCitation: %v", err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&bs.created), "index was not created")
	assert.Equal(t, int32(1), atomic.LoadInt32(&bs.upserted), "documents were not upserted")
	assert.NotEmpty(t, result.References)
}

// A direct-content source has no link, so its rerank component must come from
// the record itself rather than any URL-keyed lookup.
func TestFuseScoresKeepsRerankForLinklessSource(t *testing.T) {
	records := []map[string]interface{}{
		{"title": "Climate Paper", "rerank_score": 0.9},
	}
	metrics := []credibility.Metric{
		{Status: "success", Data: map[string]interface{}{"credibility_score": 80.0}},
	}

	scored, overall := fuseScores(records, metrics)

	assert.Len(t, scored, 1)
	assert.Equal(t, 0.9, scored[0].RerankScore)
	// round((0.9*0.6 + 0.8*0.4)*100, 2)
	assert.Equal(t, 86.00, overall)
}

func TestProcessCitationUnknownFormType(t *testing.T) {
	fs := newFakeStore(t, "someone-elses-indexa")
	cfg := testConfig()
	log := nopLogger{}

	client := vectorstore.NewClient(vectorstore.ClientConfig{APIKey: "test", BaseURL: fs.srv.URL})
	manager := vectorstore.NewManager(client, vectorstore.ManagerConfig{Dimension: 2}, log)

	orch := NewOrchestrator(cfg, Collaborators{
		Manager: manager,
		Locker:  lease.NewLocker("not-a-redis-url", time.Minute, log),
	}, log)

	_, err := orch.ProcessCitation(context.Background(), Request{
		Title:    "No Such Topic",
		Content:  "text",
		FormType: "bogus",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown form type")
	}
}
