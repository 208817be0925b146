package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestSyncPublishSubscribe(t *testing.T) {
	bus := New()

	var got TokenEventData
	if err := bus.Subscribe(EventTokenIssued, func(data TokenEventData) {
		got = data
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	bus.Publish(EventTokenIssued, TokenEventData{ClientID: "app-1", PrincipalName: "alice"})
	if got.ClientID != "app-1" || got.PrincipalName != "alice" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestAsyncBusDeliversEvents(t *testing.T) {
	aeb := NewAsyncEventBus(2)
	aeb.Start()
	defer aeb.Stop()

	var mu sync.Mutex
	seen := 0
	if err := aeb.SubscribeAsync(EventTokenRevoked, func(data TokenEventData) {
		mu.Lock()
		seen++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("SubscribeAsync: %v", err)
	}

	for i := 0; i < 5; i++ {
		aeb.PublishAsync(EventTokenRevoked, TokenEventData{ClientID: "app-1"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := seen == 5
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 5 events, saw %d", seen)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAsyncBusSurvivesPanickingSubscriber(t *testing.T) {
	aeb := NewAsyncEventBus(1)
	aeb.Start()
	defer aeb.Stop()

	delivered := make(chan struct{}, 1)
	if err := aeb.SubscribeAsync("audit.panic", func(TokenEventData) {
		panic("subscriber bug")
	}); err != nil {
		t.Fatalf("SubscribeAsync: %v", err)
	}
	if err := aeb.SubscribeAsync("audit.ok", func(TokenEventData) {
		delivered <- struct{}{}
	}); err != nil {
		t.Fatalf("SubscribeAsync: %v", err)
	}

	aeb.PublishAsync("audit.panic", TokenEventData{})
	aeb.PublishAsync("audit.ok", TokenEventData{})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker died after subscriber panic")
	}
}
