package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is a captured point-in-time agent/task state.
type Snapshot struct {
	ID        string          `json:"snapshot_id"`
	AgentID   string          `json:"agent_id"`
	TaskID    string          `json:"task_id"`
	CreatedAt time.Time       `json:"created_at"`
	State     json.RawMessage `json:"state"`
	Tags      []string        `json:"tags,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// HasTag reports whether the snapshot carries tag.
func (s *Snapshot) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// OlderThan orders snapshots for eviction: created_at first, then ID.
func (s *Snapshot) OlderThan(other *Snapshot) bool {
	if !s.CreatedAt.Equal(other.CreatedAt) {
		return s.CreatedAt.Before(other.CreatedAt)
	}
	return s.ID < other.ID
}
