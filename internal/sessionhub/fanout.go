package sessionhub

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/streamspace/fleetconsole/internal/protocol"
)

// viewerBufferSize bounds how far a slow viewer can lag behind a fast
// instance before frames start getting dropped.
const viewerBufferSize = 1000

// Viewer is one subscriber to a topic — an instance's log tail, or a single
// terminal session's output; the bus itself does not distinguish the two.
type Viewer struct {
	ID    string
	Topic string
	Out   chan []byte

	dropped int32 // frames dropped since the last delivered log:dropped sentinel
}

func newViewer(id, topic string) *Viewer {
	return &Viewer{
		ID:    id,
		Topic: topic,
		Out:   make(chan []byte, viewerBufferSize),
	}
}

// deliver enqueues frame, dropping the oldest buffered frame to make room if
// the viewer is too far behind, and folds a pending log:dropped sentinel in
// ahead of the frame once buffer space allows it.
func (v *Viewer) deliver(frame []byte) {
	if atomic.LoadInt32(&v.dropped) > 0 {
		v.flushDroppedSentinel()
	}

	select {
	case v.Out <- frame:
		return
	default:
	}

	// Buffer is full: drop the oldest queued frame and retry once.
	select {
	case <-v.Out:
	default:
	}
	select {
	case v.Out <- frame:
	default:
		// Another goroutine raced us and refilled the buffer; count this
		// frame as dropped too rather than block.
		atomic.AddInt32(&v.dropped, 1)
		return
	}
	atomic.AddInt32(&v.dropped, 1)
}

func (v *Viewer) flushDroppedSentinel() {
	n := atomic.SwapInt32(&v.dropped, 0)
	if n == 0 {
		return
	}
	data, _ := json.Marshal(struct {
		Count int32 `json:"count"`
	}{Count: n})
	env := &protocol.Envelope{
		Channel: protocol.ChannelLogs,
		Type:    protocol.TypeLogDropped,
		Data:    data,
	}
	sentinel, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case v.Out <- sentinel:
	default:
		// No room even for the sentinel; restore the count so the next
		// successful delivery retries it.
		atomic.AddInt32(&v.dropped, n)
	}
}

// FanoutBus is the pub-sub topic set: one topic per key (an instance ID for
// log tails, a terminal session ID for terminal output), strictly FIFO
// within a topic, with no ordering guarantee across topics.
type FanoutBus struct {
	mu      sync.RWMutex
	viewers map[string]map[string]*Viewer // topic -> viewerID -> Viewer
}

func NewFanoutBus() *FanoutBus {
	return &FanoutBus{viewers: make(map[string]map[string]*Viewer)}
}

// Subscribe attaches a new viewer to a topic.
func (b *FanoutBus) Subscribe(topic, viewerID string) *Viewer {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := newViewer(viewerID, topic)
	if b.viewers[topic] == nil {
		b.viewers[topic] = make(map[string]*Viewer)
	}
	b.viewers[topic][viewerID] = v
	return v
}

// Unsubscribe detaches a viewer; safe to call more than once.
func (b *FanoutBus) Unsubscribe(topic, viewerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.viewers[topic]
	if !ok {
		return
	}
	delete(m, viewerID)
	if len(m) == 0 {
		delete(b.viewers, topic)
	}
}

// Publish fans frame out to every viewer currently subscribed to topic.
func (b *FanoutBus) Publish(topic string, frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, v := range b.viewers[topic] {
		v.deliver(frame)
	}
}

// ViewerCount reports how many viewers are attached to a topic.
func (b *FanoutBus) ViewerCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.viewers[topic])
}
