package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/realtime"
)

var realtimeUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientEnvelope is what subscribers send over the socket.
type clientEnvelope struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics,omitempty"`
}

func (h *Handler) realtimeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := realtimeUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := realtime.NewClient(generateID(), conn)
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID())

	go client.WriteLoop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientEnvelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendRealtimeError(client, "invalid message")
			continue
		}

		switch msg.Type {
		case "subscribe":
			h.handleRealtimeSubscribe(client, msg.Topics)
		case "unsubscribe":
			h.handleRealtimeUnsubscribe(client, msg.Topics)
		case "ping":
			if !client.Queue(realtime.Envelope{Type: "pong"}) {
				return
			}
		default:
			h.sendRealtimeError(client, "unsupported message type")
		}
	}
}

func (h *Handler) handleRealtimeSubscribe(client *realtime.Client, topics []string) {
	valid := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !realtime.IsSupportedTopic(topic) {
			h.sendRealtimeError(client, "unsupported topic: "+topic)
			continue
		}
		valid = append(valid, topic)
	}
	if len(valid) == 0 {
		return
	}

	h.hub.Subscribe(client.ID(), valid)
	for _, topic := range valid {
		if !client.Queue(realtime.Envelope{
			Topic:   topic,
			Type:    "snapshot",
			Payload: h.snapshot(topic),
		}) {
			h.hub.Unregister(client.ID())
			return
		}
	}
}

func (h *Handler) handleRealtimeUnsubscribe(client *realtime.Client, topics []string) {
	valid := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !realtime.IsSupportedTopic(topic) {
			continue
		}
		valid = append(valid, topic)
	}
	if len(valid) == 0 {
		return
	}
	h.hub.Unsubscribe(client.ID(), valid)
}

// snapshot builds the initial payload a new subscriber sees.
func (h *Handler) snapshot(topic string) any {
	switch topic {
	case realtime.TopicSessions:
		return h.sup.List()
	case realtime.TopicMonitor:
		if h.mon == nil {
			return nil
		}
		latest, ok := h.mon.Latest()
		if !ok {
			return nil
		}
		return latest
	default:
		return nil
	}
}

func (h *Handler) sendRealtimeError(client *realtime.Client, message string) {
	if !client.Queue(realtime.Envelope{Type: "error", Payload: message}) {
		h.hub.Unregister(client.ID())
	}
}
