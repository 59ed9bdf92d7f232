package domain

import "time"

// History is the append-only record of one incident's recovery steps.
type History struct {
	ID          string         `json:"history_id"`
	AgentID     string         `json:"agent_id"`
	TaskID      string         `json:"task_id"`
	CreatedAt   time.Time      `json:"created_at"`
	InitialData map[string]any `json:"initial_data,omitempty"`
	Entries     []HistoryEntry `json:"entries"`
}

// HistoryEntry is one recorded step.
type HistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// LastTimestamp returns the timestamp of the newest entry, or CreatedAt.
func (h *History) LastTimestamp() time.Time {
	if n := len(h.Entries); n > 0 {
		return h.Entries[n-1].Timestamp
	}
	return h.CreatedAt
}

// Clone returns a deep copy.
func (h *History) Clone() *History {
	out := *h
	out.InitialData = CopyMap(h.InitialData)
	out.Entries = make([]HistoryEntry, len(h.Entries))
	for i, e := range h.Entries {
		out.Entries[i] = HistoryEntry{
			Timestamp: e.Timestamp,
			EventType: e.EventType,
			Data:      CopyMap(e.Data),
			Metadata:  CopyMap(e.Metadata),
		}
	}
	return &out
}
