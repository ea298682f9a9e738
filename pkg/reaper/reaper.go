package reaper

import (
	"context"
	"sync"
	"time"

	"ai-citation-be/internal/pkg/logger"
	"ai-citation-be/pkg/events"
)

// IndexDeleter is what the reaper needs from the vector store.
type IndexDeleter interface {
	DeleteIndex(ctx context.Context, name string) error
}

// EventPublisher mirrors the lifecycle bus contract; nil disables emission.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Reaper deletes indexes older than the threshold. It trusts the registry as
// the source of truth for what exists; an index it cannot delete stays
// tracked so a later pass retries it.
type Reaper struct {
	deleter   IndexDeleter
	file      string
	threshold time.Duration
	publisher EventPublisher
	log       logger.ILogger
}

func New(deleter IndexDeleter, file string, threshold time.Duration, log logger.ILogger) *Reaper {
	return &Reaper{deleter: deleter, file: file, threshold: threshold, log: log}
}

// WithPublisher attaches a lifecycle event bus; every successful deletion is
// announced on it.
func (r *Reaper) WithPublisher(p EventPublisher) *Reaper {
	r.publisher = p
	return r
}

// Result summarizes one reaper pass.
type Result struct {
	Deleted  []string
	Failed   []string
	Retained int
}

// Run executes one deletion pass: partition buckets by age, delete everything
// in stale buckets concurrently, re-insert failures, persist the pruned
// registry.
func (r *Reaper) Run(ctx context.Context) (*Result, error) {
	buckets, err := LoadBuckets(r.file)
	if err != nil {
		return nil, err
	}

	stale, kept := partition(buckets, r.threshold, time.Now().UTC())

	result := &Result{}
	for _, names := range kept {
		result.Retained += len(names)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for bucket, names := range stale {
		for _, name := range names {
			wg.Add(1)
			go func(bucket, name string) {
				defer wg.Done()
				if err := r.deleter.DeleteIndex(ctx, name); err != nil {
					r.log.Warn("reaper", "index deletion failed", map[string]interface{}{"index": name, "error": err.Error()})
					mu.Lock()
					kept[bucket] = append(kept[bucket], name)
					result.Failed = append(result.Failed, name)
					mu.Unlock()
					return
				}
				r.emit(ctx, events.NewIndexDeleted(name))
				mu.Lock()
				result.Deleted = append(result.Deleted, name)
				mu.Unlock()
			}(bucket, name)
		}
	}
	wg.Wait()

	if err := SaveBuckets(r.file, kept); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Reaper) emit(ctx context.Context, event events.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.log.Warn("reaper", "event publish failed", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
	}
}

// Preview reports which indexes a pass would delete, without touching the
// store or the registry.
func (r *Reaper) Preview() (map[string][]string, error) {
	buckets, err := LoadBuckets(r.file)
	if err != nil {
		return nil, err
	}
	stale, _ := partition(buckets, r.threshold, time.Now().UTC())
	return stale, nil
}

// partition splits buckets into stale and kept by bucket age. Buckets whose
// key cannot be parsed are kept for manual review rather than dropped.
func partition(buckets map[string][]string, threshold time.Duration, now time.Time) (stale, kept map[string][]string) {
	stale = map[string][]string{}
	kept = map[string][]string{}

	for bucket, names := range buckets {
		if len(names) == 0 {
			continue
		}
		t, err := time.ParseInLocation(bucketLayout, bucket, time.UTC)
		if err != nil {
			kept[bucket] = names
			continue
		}
		if now.Sub(t) >= threshold {
			stale[bucket] = names
		} else {
			kept[bucket] = names
		}
	}
	return stale, kept
}
