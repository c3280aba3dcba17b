package domain

// Priority is the urgency of an operator alert.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Alert is the payload posted to the operator notification channel.
type Alert struct {
	Text      string   `json:"text"`
	Priority  Priority `json:"priority"`
	Timestamp string   `json:"timestamp"`
	Tags      []string `json:"tags"`
	DebugLogs string   `json:"debug_logs,omitempty"`
}
