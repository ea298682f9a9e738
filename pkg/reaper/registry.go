package reaper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ai-citation-be/internal/pkg/logger"
)

// bucketLayout groups index creations by hour; the reaper decides index age
// at bucket granularity.
const bucketLayout = "2006-01-02 15"

// Registry tracks when indexes were created. Additions land in an in-memory
// buffer that is periodically merged into the durable file, so a crash
// between flushes loses at most one flush interval of tracking.
type Registry struct {
	file string
	log  logger.ILogger

	mu     sync.Mutex
	buffer map[string][]string
}

func NewRegistry(file string, log logger.ILogger) *Registry {
	return &Registry{
		file:   file,
		log:    log,
		buffer: make(map[string][]string),
	}
}

// Add records an index under its creation-hour bucket.
func (r *Registry) Add(indexName string, createdAt time.Time) {
	bucket := createdAt.UTC().Format(bucketLayout)
	r.Insert(bucket, indexName)
}

// Insert records an index under an explicit bucket. The reaper uses it to
// put back indexes whose deletion failed.
func (r *Registry) Insert(bucket, indexName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer[bucket] = append(r.buffer[bucket], indexName)
}

// Flush merges the buffer into the durable file and clears it. The file is
// replaced atomically; existing entries are never overwritten, only extended.
func (r *Registry) Flush() error {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return nil
	}
	pending := r.buffer
	r.buffer = make(map[string][]string)
	r.mu.Unlock()

	persisted, err := LoadBuckets(r.file)
	if err != nil {
		r.restore(pending)
		return fmt.Errorf("failed to load registry: %w", err)
	}

	// The same creation can arrive over more than one channel, so buckets
	// are merged as sets.
	for bucket, names := range pending {
		persisted[bucket] = mergeUnique(persisted[bucket], names)
	}

	if err := SaveBuckets(r.file, persisted); err != nil {
		r.restore(pending)
		return fmt.Errorf("failed to save registry: %w", err)
	}
	return nil
}

func mergeUnique(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		seen[name] = struct{}{}
	}
	for _, name := range incoming {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		existing = append(existing, name)
	}
	return existing
}

// restore puts a failed flush's entries back into the buffer.
func (r *Registry) restore(pending map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for bucket, names := range pending {
		r.buffer[bucket] = append(r.buffer[bucket], names...)
	}
}

// RunFlusher flushes on the given interval until the context ends, with a
// final flush on shutdown.
func (r *Registry) RunFlusher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil {
				r.log.Error("reaper", "final registry flush failed", map[string]interface{}{"error": err.Error()})
			}
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.log.Error("reaper", "registry flush failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// LoadBuckets reads the persisted registry. A missing file yields an empty
// map rather than an error.
func LoadBuckets(file string) (map[string][]string, error) {
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	buckets := map[string][]string{}
	if len(data) == 0 {
		return buckets, nil
	}
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// SaveBuckets writes the registry atomically: temp file then rename.
func SaveBuckets(file string, buckets map[string][]string) error {
	data, err := json.MarshalIndent(buckets, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(file), ".registry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), file)
}
