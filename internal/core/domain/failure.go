package domain

import "time"

// Failure is the immutable record of one reported incident.
// The context map is copied in and out; callers never share it.
type Failure struct {
	IncidentID string         `json:"incident_id"`
	Message    string         `json:"message"`
	Kind       ErrorKind      `json:"kind"`
	Context    map[string]any `json:"context,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewFailure builds a Failure, copying ctx.
func NewFailure(incidentID, message string, kind ErrorKind, ctx map[string]any, createdAt time.Time) Failure {
	return Failure{
		IncidentID: incidentID,
		Message:    message,
		Kind:       kind,
		Context:    CopyMap(ctx),
		CreatedAt:  createdAt,
	}
}

// ContextCopy returns a copy of the failure context.
func (f Failure) ContextCopy() map[string]any {
	return CopyMap(f.Context)
}

// Clone returns a Failure that shares no mutable state with f.
func (f Failure) Clone() Failure {
	f.Context = CopyMap(f.Context)
	return f
}

// CopyMap deep-copies nested maps and slices of a generic JSON-like map.
// Nil stays nil.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyMap(t)
	case []any:
		s := make([]any, len(t))
		for i := range t {
			s[i] = copyValue(t[i])
		}
		return s
	case []string:
		return append([]string(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
