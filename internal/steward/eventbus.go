package steward

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"github.com/nats-io/nats.go"
)

// Event is a named event published on the steward bus, carrying an
// arbitrary JSON payload. Unlike the teacher's eventbus.Event (a closed
// set of Claude Code hook event types), steward triggers name arbitrary
// events declared in agent metadata, so Name is an open string rather
// than an enum.
type Event struct {
	Name    string
	Payload json.RawMessage
}

type subscription struct {
	agentID string
	handle  func(ctx context.Context, e Event)
}

// Bus dispatches named events to registered stewards and optionally
// mirrors them onto NATS JetStream, generalizing the teacher's
// internal/eventbus.Bus (Register/Dispatch, priority-free here since
// stewards for the same event are independent, not chained) to
// arbitrary event names.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	js   nats.JetStreamContext
}

// NewBus builds an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// SetJetStream attaches a JetStream context; when set, Publish also
// mirrors the event for durable/distributed consumers. Mirrors
// eventbus.Bus.SetJetStream.
func (b *Bus) SetJetStream(js nats.JetStreamContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.js = js
}

// Register subscribes agentID's handler to eventName.
func (b *Bus) Register(agentID, eventName string, handle func(ctx context.Context, e Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], subscription{agentID: agentID, handle: handle})
	sort.Slice(b.subs[eventName], func(i, j int) bool { return b.subs[eventName][i].agentID < b.subs[eventName][j].agentID })
}

// Unregister removes agentID's subscription to eventName, if any.
func (b *Bus) Unregister(agentID, eventName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventName]
	for i, s := range subs {
		if s.agentID == agentID {
			b.subs[eventName] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish dispatches an event to every registered handler. One
// handler's panic is isolated and never stops dispatch to the rest, per
// the same error-isolation guarantee ExecuteSteward gives stewards.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := append([]subscription(nil), b.subs[e.Name]...)
	js := b.js
	b.mu.RUnlock()

	for _, sub := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("steward: event handler %s for %s panicked: %v", sub.agentID, e.Name, r)
				}
			}()
			sub.handle(ctx, e)
		}()
	}

	if js != nil {
		if _, err := js.Publish("steward.events."+e.Name, e.Payload); err != nil {
			log.Printf("steward: JetStream publish to steward.events.%s failed: %v", e.Name, err)
		}
	}
}
