package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "INDEX_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeIndexCreated      = "INDEX_CREATED"
	TypeIndexDeleted      = "INDEX_DELETED"
	TypeCitationCompleted = "CITATION_COMPLETED"
	TypeCitationFailed    = "CITATION_FAILED"
)

// NewIndexCreated marks a fresh vector index build for a topic.
func NewIndexCreated(indexName, title string) Event {
	now := time.Now().UTC()
	return BaseEvent{
		Type: TypeIndexCreated,
		Data: map[string]interface{}{
			"index_name": indexName,
			"title":      title,
			"created_at": now.Format(time.RFC3339),
		},
		OccurredAt: now,
	}
}

// NewIndexDeleted marks a reaped index.
func NewIndexDeleted(indexName string) Event {
	now := time.Now().UTC()
	return BaseEvent{
		Type: TypeIndexDeleted,
		Data: map[string]interface{}{
			"index_name": indexName,
			"deleted_at": now.Format(time.RFC3339),
		},
		OccurredAt: now,
	}
}

// NewCitationCompleted carries the outcome of a finished citation request.
func NewCitationCompleted(title string, overallScore float64, sourceCount int) Event {
	now := time.Now().UTC()
	return BaseEvent{
		Type: TypeCitationCompleted,
		Data: map[string]interface{}{
			"title":         title,
			"overall_score": overallScore,
			"source_count":  sourceCount,
		},
		OccurredAt: now,
	}
}

// NewCitationFailed records a request that ended in the failure state.
func NewCitationFailed(title, reason string) Event {
	now := time.Now().UTC()
	return BaseEvent{
		Type: TypeCitationFailed,
		Data: map[string]interface{}{
			"title":  title,
			"reason": reason,
		},
		OccurredAt: now,
	}
}
