package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	Keys        APIKeys
	Vector      VectorConfig
	Search      SearchConfig
	Scraper     ScraperConfig
	Llm         LlmConfig
	Concurrency ConcurrencyConfig
	Reaper      ReaperConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	CredibilityURL     string
}

type APIKeys struct {
	VectorStore  string
	Search       string
	SearchCX     string
	SummarizeLlm string
	CitationLlm  string
}

// VectorConfig holds the remote vector store settings. The dense model caps
// passages at 507 tokens, which is why LlmConfig.MaxTokens defaults to 380.
type VectorConfig struct {
	BaseURL     string
	Cloud       string
	Region      string
	DenseModel  string
	SparseModel string
	RerankModel string
	Dimension   int
}

type SearchConfig struct {
	BaseURL      string
	TopN         int
	DateRestrict string
}

type ScraperConfig struct {
	MaxFileSize   int64
	FetchDeadline time.Duration
	PageTimeout   time.Duration
	DownloadsDir  string
	UserAgent     string
}

type LlmConfig struct {
	MaxTokens             int
	QueryTokenSize        int
	DefaultOverlapPercent int
	QueryOverlapPercent   int
	BatchSize             int
	IndexNameLen          int
	SummarizeModel        string
	SummarizeBaseURL      string
	CitationModel         string
	CitationBaseURL       string
	CiteTemperature       float64
	SummarizeTemperature  float64
}

type ConcurrencyConfig struct {
	DefaultWorkers int
	CiteBatches    int
}

type ReaperConfig struct {
	RegistryFile    string
	FlushInterval   time.Duration
	Threshold       time.Duration
	PopulateTimeout time.Duration
	BuildLeaseTTL   time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			CredibilityURL:     getEnv("CREDIBILITY_API_URL", "http://localhost:9050"),
		},
		Keys: APIKeys{
			VectorStore:  getEnv("VECTOR_STORE_API_KEY", ""),
			Search:       getEnv("GPSE_API_KEY", ""),
			SearchCX:     getEnv("CX", ""),
			SummarizeLlm: getEnv("SUMMARIZE_LLM_API_KEY", ""),
			CitationLlm:  getEnv("CITATION_LLM_API_KEY", ""),
		},
		Vector: VectorConfig{
			BaseURL:     getEnv("VECTOR_STORE_BASE_URL", "https://api.pinecone.io"),
			Cloud:       getEnv("VECTOR_STORE_CLOUD", "aws"),
			Region:      getEnv("VECTOR_STORE_REGION", "us-east-1"),
			DenseModel:  getEnv("DENSE_EMBEDDING_MODEL", "multilingual-e5-large"),
			SparseModel: getEnv("SPARSE_EMBEDDING_MODEL", "pinecone-sparse-english-v0"),
			RerankModel: getEnv("RERANK_MODEL", "bge-reranker-v2-m3"),
			Dimension:   getEnvAsInt("EMBEDDING_DIMENSION", 1024),
		},
		Search: SearchConfig{
			BaseURL:      getEnv("SEARCH_BASE_URL", "https://www.googleapis.com/customsearch/v1"),
			TopN:         getEnvAsInt("SEARCH_TOP_N", 5),
			DateRestrict: getEnv("SEARCH_DATE_RESTRICT", "y5"),
		},
		Scraper: ScraperConfig{
			MaxFileSize:   int64(getEnvAsInt("MAX_FILE_SIZE_BYTES", 3*1024*1024)),
			FetchDeadline: getEnvAsDuration("FETCH_DEADLINE", 15*time.Second),
			PageTimeout:   getEnvAsDuration("PAGE_TIMEOUT", 10*time.Second),
			DownloadsDir:  getEnv("DOWNLOADS_DIR", "/tmp/downloads"),
			UserAgent:     getEnv("SCRAPER_USER_AGENT", "Mozilla/5.0"),
		},
		Llm: LlmConfig{
			// 380 balances chunk size against the number of embedding requests;
			// queries stay smaller so they fit the rerank model's per-query cap.
			MaxTokens:             getEnvAsInt("MAX_TOKENS", 380),
			QueryTokenSize:        getEnvAsInt("QUERY_TOKEN_SIZE", 253),
			DefaultOverlapPercent: getEnvAsInt("DEFAULT_OVERLAP_PERCENT", 10),
			QueryOverlapPercent:   getEnvAsInt("QUERY_OVERLAP_PERCENT", 5),
			BatchSize:             getEnvAsInt("EMBED_BATCH_SIZE", 90),
			IndexNameLen:          getEnvAsInt("INDEX_NAME_LEN", 42),
			SummarizeModel:        getEnv("SUMMARIZE_LLM_MODEL", "llama-3.3-70b-versatile"),
			SummarizeBaseURL:      getEnv("SUMMARIZE_LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			CitationModel:         getEnv("CITATION_LLM_MODEL", "Phi-4"),
			CitationBaseURL:       getEnv("CITATION_LLM_BASE_URL", ""),
			CiteTemperature:       0.1,
			SummarizeTemperature:  0.9,
		},
		Concurrency: ConcurrencyConfig{
			DefaultWorkers: (runtime.NumCPU() / 2) + 1,
			CiteBatches:    getEnvAsInt("CITE_BATCHES", 10),
		},
		Reaper: ReaperConfig{
			RegistryFile:    getEnv("INDEX_REGISTRY_FILE", "index_dict.json"),
			FlushInterval:   getEnvAsDuration("REGISTRY_FLUSH_INTERVAL", 180*time.Second),
			Threshold:       getEnvAsDuration("INDEX_MAX_AGE", 2*time.Hour),
			PopulateTimeout: getEnvAsDuration("POPULATE_TIMEOUT", 60*time.Second),
			BuildLeaseTTL:   getEnvAsDuration("BUILD_LEASE_TTL", 10*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
