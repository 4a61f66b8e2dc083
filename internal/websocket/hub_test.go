package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/property-booking/backend/internal/storage/models"
)

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		if !ok {
			t.Fatal("send channel closed")
		}
		var msg struct {
			Type    MessageType     `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding message: %v", err)
		}
		return Message{Type: msg.Type, Payload: msg.Payload}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send():
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubPublishRespectsSubscriptions(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	all := NewClient(hub)
	watcher := NewClient(hub)
	watcher.Subscribe(7)
	hub.Register(all)
	hub.Register(watcher)
	waitForClients(t, hub, 2)

	events := NewEventBroadcaster(hub)
	bk := models.Booking{ID: 1, ApartmentID: 3, StartDate: models.MustParseDate("2024-06-01"), EndDate: models.MustParseDate("2024-06-03")}

	events.BroadcastBookingCreated(bk, 9)
	if msg := receive(t, all); msg.Type != TypeBookingCreated {
		t.Errorf("type = %q, want %q", msg.Type, TypeBookingCreated)
	}
	expectNothing(t, watcher)

	avg := 8.5
	events.BroadcastRatingUpdated(7, &avg, 2)
	for _, c := range []*Client{all, watcher} {
		msg := receive(t, c)
		var p RatingPayload
		if err := json.Unmarshal(msg.Payload.(json.RawMessage), &p); err != nil {
			t.Fatalf("decoding payload: %v", err)
		}
		if msg.Type != TypeRatingUpdated || p.PropertyID != 7 || p.AvgRating == nil || *p.AvgRating != 8.5 || p.RatingCount != 2 {
			t.Errorf("message = %q %+v", msg.Type, p)
		}
	}

	hub.Broadcast([]byte(`{"type":"ping"}`))
	receive(t, all)
	receive(t, watcher)
}

func TestHubUnregisterAndStop(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a, b := NewClient(hub), NewClient(hub)
	hub.Register(a)
	hub.Register(b)
	waitForClients(t, hub, 2)

	hub.Unregister(a)
	waitForClients(t, hub, 1)
	if _, ok := <-a.Send(); ok {
		t.Error("unregistered client channel still open")
	}

	hub.Stop()
	select {
	case _, ok := <-b.Send():
		if ok {
			t.Error("unexpected message after stop")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed on stop")
	}
}

func TestClientSubscriptions(t *testing.T) {
	c := NewClient(NewHub())
	if !c.Watches(1) {
		t.Error("client without subscriptions should watch everything")
	}

	c.Subscribe(1, 2)
	if !c.Watches(2) || c.Watches(3) {
		t.Errorf("subscriptions = %v", c.Subscriptions())
	}

	c.Unsubscribe(1, 2)
	if len(c.Subscriptions()) != 0 || !c.Watches(3) {
		t.Errorf("after unsubscribe = %v", c.Subscriptions())
	}
}
