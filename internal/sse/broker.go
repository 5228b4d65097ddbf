// Package sse streams inventory signals to browser clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/notify"
)

// Event types.
const (
	EventInventoryUpdated = "inventory.updated"
	EventInventoryCleared = "inventory.cleared"
	EventInventoryFailed  = "inventory.failed"
	EventChangesUpdated   = "changes.updated"
	EventTotalsUpdated    = "totals.updated"
)

// DefaultKeepAlive is the interval between comment frames on idle streams.
const DefaultKeepAlive = 15 * time.Second

// Event is one SSE frame before encoding.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// signal is an event plus the source it describes. Source-level events
// (updated, cleared, failed) are retained per source and replayed to clients
// that connect later, so a fresh page sees each source's last state.
type signal struct {
	event  Event
	source string
}

// Broker fans inventory signals out to connected clients. It implements
// notify.Notifier so it can sit next to other outbound publishers.
//
// One goroutine owns the client set, the retained per-source state and the
// per-source totals throttle; everything else talks to it over channels.
type Broker struct {
	totalsMin time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	signalCh      chan signal
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ notify.Notifier = (*Broker)(nil)

// NewBroker creates a broker that emits totals.updated for a source at most
// once per totalsThrottle.
func NewBroker(totalsThrottle time.Duration) *Broker {
	if totalsThrottle <= 0 {
		totalsThrottle = 2 * time.Second
	}

	b := &Broker{
		totalsMin:     totalsThrottle,
		keepAlive:     DefaultKeepAlive,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		signalCh:      make(chan signal, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	retained := make(map[string][]byte)
	lastTotals := make(map[string]time.Time)
	var seq uint64

	encode := func(event Event) []byte {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return nil
		}
		seq++
		return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
	}
	send := func(ch chan []byte, frame []byte) {
		select {
		case ch <- frame:
		default:
			// Slow client; drop rather than block the loop.
		}
	}
	broadcast := func(frame []byte) {
		for ch := range clients {
			send(ch, frame)
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			for _, frame := range retained {
				send(ch, frame)
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case sig := <-b.signalCh:
			frame := encode(sig.event)
			if frame == nil {
				continue
			}
			broadcast(frame)
			if sig.source == "" {
				continue
			}
			retained[sig.source] = frame
			if sig.event.Type == EventInventoryFailed {
				continue
			}

			now := time.Now()
			if now.Sub(lastTotals[sig.source]) >= b.totalsMin {
				lastTotals[sig.source] = now
				broadcast(encode(Event{Type: EventTotalsUpdated, Data: map[string]string{"source": sig.source}}))
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. Retained source states are queued on the
// returned channel before any live event.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish broadcasts an event that belongs to no particular source.
func (b *Broker) Publish(event Event) {
	b.send(signal{event: event})
}

func (b *Broker) send(sig signal) {
	if b.closed.Load() {
		return
	}
	select {
	case b.signalCh <- sig:
	case <-b.stopped:
	}
}

// InventoryUpdated broadcasts inventory.updated plus a throttled totals.updated.
func (b *Broker) InventoryUpdated(source string, snap *models.InventorySnapshot) {
	b.send(signal{source: source, event: Event{Type: EventInventoryUpdated, Data: map[string]any{
		"source":     source,
		"sheets":     len(snap.Sheets),
		"records":    snap.RecordCount(),
		"checksum":   checksum.Short(snap.Checksum),
		"fetched_at": snap.FetchedAt,
	}}})
}

// InventoryCleared broadcasts inventory.cleared plus a throttled totals.updated.
func (b *Broker) InventoryCleared(source string) {
	b.send(signal{source: source, event: Event{Type: EventInventoryCleared, Data: map[string]string{"source": source}}})
}

// RefreshFailed broadcasts inventory.failed. Totals are unchanged by a
// failure, so no totals.updated follows.
func (b *Broker) RefreshFailed(source string, err error) {
	b.send(signal{source: source, event: Event{Type: EventInventoryFailed, Data: map[string]string{
		"source": source,
		"error":  err.Error(),
	}}})
}

func (b *Broker) ChangesDetected(events []models.ChangeEvent) {
	b.Publish(Event{Type: EventChangesUpdated, Data: map[string]int{"count": len(events)}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
