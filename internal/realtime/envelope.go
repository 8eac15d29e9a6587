// Package realtime fans live framework events out to WebSocket
// subscribers through a topic hub.
package realtime

import "strings"

// Envelope is the wire format pushed to subscribers.
type Envelope struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

const (
	// TopicSessions carries session lifecycle snapshots.
	TopicSessions = "sessions.state"
	// TopicResults carries step results as scenarios run.
	TopicResults = "runs.results"
	// TopicMonitor carries resource samples.
	TopicMonitor = "monitor.sample"
)

// SessionOutputTopic is the per-session output stream topic.
func SessionOutputTopic(sessionID string) string {
	return "session.output." + sessionID
}

func IsSupportedTopic(topic string) bool {
	switch topic {
	case TopicSessions, TopicResults, TopicMonitor:
		return true
	}
	return strings.HasPrefix(topic, "session.output.") && len(topic) > len("session.output.")
}
