package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch := b.Subscribe(4)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Source: SourceAgent, Kind: KindRequestStart, Timestamp: time.Now()})

	select {
	case e := <-ch:
		if e.Source != SourceAgent || e.Kind != KindRequestStart {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublish_NilBusIsNoop(t *testing.T) {
	var b *Bus
	// Must not panic.
	b.Publish(Event{Kind: KindToolCall})
	if b.SubscriberCount() != 0 {
		t.Error("nil bus reports subscribers")
	}
}

func TestPublish_FullSubscriberDropsEvent(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Kind: "one"})
	b.Publish(Event{Kind: "two"}) // dropped: buffer is full

	e := <-ch
	if e.Kind != "one" {
		t.Errorf("got %q", e.Kind)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected second event %q", e.Kind)
	default:
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)

	b.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel not closed")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d", b.SubscriberCount())
	}

	// Second unsubscribe is a no-op, not a double close.
	b.Unsubscribe(ch)
}

func TestSubscriberCount(t *testing.T) {
	b := New()
	a := b.Subscribe(1)
	c := b.Subscribe(1)
	if b.SubscriberCount() != 2 {
		t.Errorf("SubscriberCount = %d, want 2", b.SubscriberCount())
	}
	b.Unsubscribe(a)
	b.Unsubscribe(c)
}
