package events_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/micro-nova/gl846-go/internal/events"
	"github.com/micro-nova/gl846-go/internal/models"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("test1")

	sent := bus.Publish(models.Event{Kind: models.EventOperation, Operation: "feed"})
	if _, err := uuid.Parse(sent.ID); err != nil {
		t.Errorf("event id %q is not a uuid: %v", sent.ID, err)
	}
	if sent.Time.IsZero() {
		t.Error("event time not stamped")
	}

	select {
	case got := <-ch:
		if got.Operation != "feed" || got.ID != sent.ID {
			t.Errorf("got %+v, want %+v", got, sent)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusKeepsGivenID(t *testing.T) {
	bus := events.NewBus()
	ev := bus.Publish(models.Event{ID: "op-1", Kind: models.EventStatus})
	if ev.ID != "op-1" {
		t.Errorf("ID = %q, want op-1", ev.ID)
	}
	last, ok := bus.Last()
	if !ok || last.ID != "op-1" {
		t.Errorf("Last = %+v, %v", last, ok)
	}
}

func TestBusKindFilter(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("buttons-only", models.EventButtons)

	bus.Publish(models.Event{Kind: models.EventStatus})
	bus.Publish(models.Event{Kind: models.EventButtons})

	select {
	case got := <-ch:
		if got.Kind != models.EventButtons {
			t.Errorf("got kind %q, want buttons", got.Kind)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected event %+v", got)
	default:
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("test-unsub")

	bus.Unsubscribe("test-unsub")

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
	// a second unsubscribe is harmless
	bus.Unsubscribe("test-unsub")
}

func TestBusDropsEventsWhenFull(t *testing.T) {
	bus := events.NewBus()
	bus.Subscribe("slow-reader")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 40; i++ {
			bus.Publish(models.Event{Kind: models.EventStatus})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked for too long (should drop events)")
	}
	if bus.Dropped() != 40-16 {
		t.Errorf("Dropped = %d, want %d", bus.Dropped(), 40-16)
	}
}

func TestBusSubscriberCount(t *testing.T) {
	bus := events.NewBus()
	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
	bus.Subscribe("s1")
	bus.Subscribe("s2")
	if n := bus.SubscriberCount(); n != 2 {
		t.Errorf("expected 2 subscribers, got %d", n)
	}
	bus.Unsubscribe("s1")
	if n := bus.SubscriberCount(); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
}
