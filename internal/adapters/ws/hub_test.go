package ws

import (
	"encoding/json"
	"testing"
	"time"

	"trainerdesk/internal/application/scheduler"
)

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), want)
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c1 := NewClient(hub)
	c2 := NewClient(hub)
	hub.Register(c1)
	hub.Register(c2)
	waitForCount(t, hub, 2)

	hub.Unregister(c1)
	waitForCount(t, hub, 1)

	// Unregistering closes the send channel.
	if _, ok := <-c1.Send(); ok {
		t.Error("expected closed send channel after unregister")
	}
}

func TestBroadcastChangeReachesAllClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c1 := NewClient(hub)
	c2 := NewClient(hub)
	hub.Register(c1)
	hub.Register(c2)
	waitForCount(t, hub, 2)

	hub.BroadcastChange(scheduler.ChangeEvent{
		Kind:      scheduler.ChangeSessionCreated,
		SessionID: "s1",
		DateKey:   "2024-03-15",
		MonthKeys: []string{"2024-03"},
	})

	for _, c := range []*Client{c1, c2} {
		select {
		case raw := <-c.Send():
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if env.Type != "schedule.session_created" {
				t.Errorf("Type = %q", env.Type)
			}
			if env.Event.SessionID != "s1" || env.Event.DateKey != "2024-03-15" {
				t.Errorf("Event = %+v", env.Event)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := NewClient(hub)
	hub.Register(slow)
	waitForCount(t, hub, 1)

	// Fill the client's buffer without draining, then push one more.
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- []byte("backlog")
	}
	hub.BroadcastChange(scheduler.ChangeEvent{Kind: scheduler.ChangeMonthLoaded})

	waitForCount(t, hub, 0)
}
