package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventTicketSold, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []string{EventTicketSold, EventDealDone},
	}}

	sold := &Event{Type: EventTicketSold}
	done := &Event{Type: EventDealDone}
	created := &Event{Type: EventTicketCreated}

	if !h.shouldSend(client, sold) {
		t.Error("Should receive ticket_sold events")
	}
	if !h.shouldSend(client, done) {
		t.Error("Should receive deal_done events")
	}
	if h.shouldSend(client, created) {
		t.Error("Should NOT receive ticket_created events")
	}
}

func TestShouldSend_IdentityFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Identities: []string{"aaron.ko"},
	}}

	matchingOwner := &Event{
		Type: EventTicketSold,
		Data: map[string]any{"owner": "aaron.ko"},
	}
	notMatching := &Event{
		Type: EventTicketSold,
		Data: map[string]any{"owner": "someone.else", "buyer": "another"},
	}
	matchingSeller := &Event{
		Type: EventDealDone,
		Data: map[string]any{"seller": "aaron.ko", "buyer": "tim.ko"},
	}

	if !h.shouldSend(client, matchingOwner) {
		t.Error("Should match on owner")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match unrelated identities")
	}
	if !h.shouldSend(client, matchingSeller) {
		t.Error("Should match on seller")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &Event{Type: EventTicketSold}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_NonMapData(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Identities: []string{"aaron.ko"},
	}}

	// No identities can be extracted from non-map data, so an
	// identity-filtered subscription must not receive the event.
	event := &Event{
		Type: EventTicketCreated,
		Data: "string data not a map",
	}
	if h.shouldSend(client, event) {
		t.Error("Non-map data should be dropped by the identity filter")
	}

	// A struct payload is just as opaque to the filter as a string.
	type payload struct{ Owner string }
	structEvent := &Event{
		Type: EventTicketSold,
		Data: &payload{Owner: "alice"},
	}
	if h.shouldSend(client, structEvent) {
		t.Error("Struct data should be dropped by the identity filter")
	}

	// Without an identity filter the same event still goes through.
	unfiltered := &Client{sub: Subscription{EventTypes: []string{EventTicketSold}}}
	if !h.shouldSend(unfiltered, structEvent) {
		t.Error("Non-map data should still reach subscriptions without an identity filter")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_PublishAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Publish(EventTicketSold, map[string]any{"owner": "aaron.ko"})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Publish(EventDealDone, map[string]any{"seller": "aaron.ko", "buyer": "tim.ko"})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants settlements
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []string{EventDealDone}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// A sale event should be filtered out
	h.Publish(EventTicketSold, map[string]any{"owner": "aaron.ko"})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive ticket_sold event")
	default:
		// Good - filtered out
	}

	// A settlement event should be received
	h.Publish(EventDealDone, map[string]any{"seller": "aaron.ko"})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive deal_done event")
	}
}
