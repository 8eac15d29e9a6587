package realtime

import (
	"testing"
)

func TestIsSupportedTopic(t *testing.T) {
	for _, topic := range []string{TopicSessions, TopicResults, TopicMonitor, SessionOutputTopic("tui_1_abc")} {
		if !IsSupportedTopic(topic) {
			t.Errorf("expected %q to be supported", topic)
		}
	}
	for _, topic := range []string{"", "session.output.", "bogus"} {
		if IsSupportedTopic(topic) {
			t.Errorf("expected %q to be rejected", topic)
		}
	}
}

func TestHubSubscribeUnknownClient(t *testing.T) {
	h := NewHub()
	if h.Subscribe("nope", []string{TopicSessions}) {
		t.Fatal("subscribe should fail for unknown client")
	}
	if h.Unsubscribe("nope", []string{TopicSessions}) {
		t.Fatal("unsubscribe should fail for unknown client")
	}
}

func TestClientSubscriptionSet(t *testing.T) {
	c := NewClient("c1", nil)
	c.Subscribe(TopicSessions, TopicResults)
	if !c.IsSubscribed(TopicSessions) || !c.IsSubscribed(TopicResults) {
		t.Fatal("expected both topics subscribed")
	}
	c.Unsubscribe(TopicSessions)
	if c.IsSubscribed(TopicSessions) {
		t.Fatal("expected sessions topic removed")
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	c := NewClient("c1", nil)
	for i := 0; i < outboundBufferSize; i++ {
		if !c.Queue(Envelope{Topic: TopicSessions}) {
			t.Fatalf("queue full after %d messages", i)
		}
	}
	if c.Queue(Envelope{Topic: TopicSessions}) {
		t.Fatal("expected queue to report full")
	}
	if c.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", c.Dropped())
	}
}

func TestQueueRefusedAfterClose(t *testing.T) {
	c := NewClient("c1", nil)
	c.Close()
	if c.Queue(Envelope{Topic: TopicSessions}) {
		t.Fatal("queue accepted an envelope after close")
	}
	// Close stays idempotent.
	c.Close()
}
