package event

import (
	"context"
	"testing"
	"time"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus[string](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	first, cancelFirst := bus.Subscribe()
	t.Cleanup(cancelFirst)
	second, cancelSecond := bus.Subscribe()
	t.Cleanup(cancelSecond)

	bus.Publish("decision")

	for name, ch := range map[string]<-chan string{"first": first, "second": second} {
		select {
		case got := <-ch:
			if got != "decision" {
				t.Fatalf("%s subscriber got %q", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber did not receive event", name)
		}
	}
}

func TestBusFilteredSubscription(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	evens, cancel := bus.SubscribeFiltered(func(v int) bool { return v%2 == 0 })
	t.Cleanup(cancel)

	bus.Publish(1)
	bus.Publish(2)

	select {
	case got := <-evens:
		if got != 2 {
			t.Fatalf("expected 2, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("filtered subscriber did not receive event")
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.Subscribe()
	cancel()
	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after unsubscribe")
	}
	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected zero subscribers")
	}
}

func TestBusCloseViaContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus[int](ctx, BusOptions{})

	ch, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatalf("expected closed channel after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatalf("bus did not close after context cancellation")
	}
}

func TestBusRespectsMaxSubscribers(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{MaxSubscribers: 1})
	t.Cleanup(bus.Close)

	_, cancel := bus.Subscribe()
	t.Cleanup(cancel)

	overflow, cancelOverflow := bus.Subscribe()
	t.Cleanup(cancelOverflow)
	if _, open := <-overflow; open {
		t.Fatalf("expected overflow subscription to be rejected")
	}
}
