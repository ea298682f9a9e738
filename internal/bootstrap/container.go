package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-citation-be/internal/config"
	"ai-citation-be/internal/controller"
	"ai-citation-be/internal/pkg/logger"
	"ai-citation-be/pkg/acquisition"
	"ai-citation-be/pkg/citation"
	"ai-citation-be/pkg/credibility"
	"ai-citation-be/pkg/events"
	"ai-citation-be/pkg/lease"
	"ai-citation-be/pkg/llm"
	"ai-citation-be/pkg/llm/factory"
	"ai-citation-be/pkg/reaper"
	"ai-citation-be/pkg/retrieval"
	"ai-citation-be/pkg/vectorstore"

	pktNats "ai-citation-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	// Controllers
	CitationController controller.ICitationController
	HealthController   controller.IHealthController

	// Background pieces (exposed for main.go to run)
	Registry             *reaper.Registry
	RegistrationConsumer *reaper.RegistrationConsumer

	// Shared infrastructure main.go must shut down
	NatsPublisher  *pktNats.Publisher
	NatsSubscriber *pktNats.Subscriber
	VectorManager  *vectorstore.Manager
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	registry := reaper.NewRegistry(cfg.Reaper.RegistryFile, sysLogger)
	registrar := reaper.NewRegistrar(pubSub)
	registrationConsumer := reaper.NewRegistrationConsumer(pubSub, registry)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Indexes built by other replicas must end up in this registry too, or
	// the reaper never learns about them.
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	} else {
		err = natsSub.Subscribe("events."+events.TypeIndexCreated, "index-registry", func(ctx context.Context, event events.Event) error {
			name, _ := event.Payload()["index_name"].(string)
			if name == "" {
				return nil
			}
			createdAt := event.Timestamp()
			if raw, ok := event.Payload()["created_at"].(string); ok {
				if t, err := time.Parse(time.RFC3339, raw); err == nil {
					createdAt = t
				}
			}
			registry.Add(name, createdAt)
			return nil
		})
		if err != nil {
			log.Printf("[WARN] Failed to subscribe to index events: %v", err)
		}
	}

	// Redis-backed build leases
	locker := lease.NewLocker(cfg.App.RedisURL, cfg.Reaper.BuildLeaseTTL, sysLogger)

	// 3. Vector store
	vectorClient := vectorstore.NewClient(vectorstore.ClientConfig{
		APIKey:  cfg.Keys.VectorStore,
		BaseURL: cfg.Vector.BaseURL,
	})
	vectorManager := vectorstore.NewManager(vectorClient, vectorstore.ManagerConfig{
		Cloud:       cfg.Vector.Cloud,
		Region:      cfg.Vector.Region,
		DenseModel:  cfg.Vector.DenseModel,
		SparseModel: cfg.Vector.SparseModel,
		RerankModel: cfg.Vector.RerankModel,
		Dimension:   cfg.Vector.Dimension,
	}, sysLogger)

	// 4. Acquisition
	searcher := acquisition.NewSearchClient(acquisition.SearchConfig{
		BaseURL:      cfg.Search.BaseURL,
		APIKey:       cfg.Keys.Search,
		CX:           cfg.Keys.SearchCX,
		TopN:         cfg.Search.TopN,
		DateRestrict: cfg.Search.DateRestrict,
	}, sysLogger)

	renderer := acquisition.NewHTTPRenderer(cfg.Scraper.UserAgent, cfg.Scraper.PageTimeout)
	fetcher := acquisition.NewFetcher(acquisition.FetcherConfig{
		MaxFileSize:   cfg.Scraper.MaxFileSize,
		FetchDeadline: cfg.Scraper.FetchDeadline,
		StorageRoot:   cfg.Scraper.DownloadsDir,
	}, renderer, sysLogger)

	loader := acquisition.ExtensionLoader{
		".txt": acquisition.NewTextLoader(),
	}
	acquirer := acquisition.NewAcquirer(fetcher, loader, cfg, sysLogger)

	// 5. LLM providers
	summarizeProvider, err := factory.NewLLMProvider(
		cfg.Llm.SummarizeBaseURL,
		cfg.Keys.SummarizeLlm,
		cfg.Llm.SummarizeModel,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize summarize LLM provider: %v", err)
	}
	citationProvider, err := factory.NewLLMProvider(
		cfg.Llm.CitationBaseURL,
		cfg.Keys.CitationLlm,
		cfg.Llm.CitationModel,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize citation LLM provider: %v", err)
	}

	summarizer := llm.NewSummarizer(summarizeProvider, cfg.Llm.SummarizeTemperature)
	citer := llm.NewCiter(citationProvider, citationProvider, cfg.Llm.CiteTemperature, cfg.Concurrency.CiteBatches)

	// 6. Retrieval and scoring
	retriever := retrieval.NewRetriever(vectorManager, cfg.Search.TopN, sysLogger)
	scorer := credibility.NewClient(cfg.App.CredibilityURL+"/api/v1", sysLogger)

	// 7. Orchestrator
	var publisher citation.EventPublisher
	if natsPub != nil {
		publisher = natsPub
	}
	orchestrator := citation.NewOrchestrator(cfg, citation.Collaborators{
		Manager:    vectorManager,
		Searcher:   searcher,
		Acquirer:   acquirer,
		Retriever:  retriever,
		Summarizer: summarizer,
		Citer:      citer,
		Scorer:     scorer,
		Locker:     locker,
		Registrar:  registrar,
		Publisher:  publisher,
	}, sysLogger)

	return &Container{
		CitationController:   controller.NewCitationController(orchestrator),
		HealthController:     controller.NewHealthController(),
		Registry:             registry,
		RegistrationConsumer: registrationConsumer,
		NatsPublisher:        natsPub,
		NatsSubscriber:       natsSub,
		VectorManager:        vectorManager,
	}
}

// Shutdown releases long-lived resources.
func (c *Container) Shutdown(ctx context.Context) {
	if c.NatsPublisher != nil {
		c.NatsPublisher.Close()
	}
	if c.NatsSubscriber != nil {
		c.NatsSubscriber.Close()
	}
	c.VectorManager.Cleanup()
	if err := c.Registry.Flush(); err != nil {
		log.Printf("[WARN] Final registry flush failed: %v", err)
	}
}
