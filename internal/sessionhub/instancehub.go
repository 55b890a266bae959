// Package sessionhub manages the two kinds of live links the Console keeps
// open: the instance link (one per managed instance, carrying the framed
// agent protocol) and viewer links (UI/CLI clients watching an instance's
// terminal or log stream). InstanceHub owns the former; FanoutBus and
// TerminalManager build on it for the latter.
package sessionhub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/streamspace/fleetconsole/internal/db"
	"github.com/streamspace/fleetconsole/internal/logger"
	"github.com/streamspace/fleetconsole/internal/models"
)

// InstanceLink is one connected instance's agent-protocol WebSocket.
type InstanceLink struct {
	InstanceID string
	Conn       *websocket.Conn
	Send       chan []byte

	mu       sync.RWMutex
	lastPing time.Time
}

func (l *InstanceLink) touch() {
	l.mu.Lock()
	l.lastPing = time.Now()
	l.mu.Unlock()
}

func (l *InstanceLink) idleSince() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return time.Since(l.lastPing)
}

// NewInstanceLink creates a link with a 256-frame outbound buffer, mirroring
// the agent hub's connection buffering.
func NewInstanceLink(instanceID string, conn *websocket.Conn) *InstanceLink {
	return &InstanceLink{
		InstanceID: instanceID,
		Conn:       conn,
		Send:       make(chan []byte, 256),
		lastPing:   time.Now(),
	}
}

// InstanceHub is the registry of currently-connected instance links. A link
// going up or down is recorded as an Event row (CONNECT/DISCONNECT) and,
// on loss, drives terminal sessions for that instance to the errored state.
type InstanceHub struct {
	mu    sync.RWMutex
	links map[string]*InstanceLink

	register   chan *InstanceLink
	unregister chan string
	stopChan   chan struct{}

	events     *db.EventDB
	staleAfter time.Duration

	onDisconnect func(instanceID string)
}

// NewInstanceHub builds a hub; staleAfter is the idle-link threshold after
// which a link with no inbound frame is considered dead and torn down.
func NewInstanceHub(database *db.Database, staleAfter time.Duration) *InstanceHub {
	return &InstanceHub{
		links:      make(map[string]*InstanceLink),
		register:   make(chan *InstanceLink, 10),
		unregister: make(chan string, 10),
		stopChan:   make(chan struct{}),
		events:     db.NewEventDB(database),
		staleAfter: staleAfter,
	}
}

// OnDisconnect registers a callback invoked on the hub's own goroutine
// whenever a link is torn down, so TerminalManager and CommandManager can
// fail sessions bound to that instance with "instance offline". Callbacks
// accumulate and run in registration order.
func (h *InstanceHub) OnDisconnect(fn func(instanceID string)) {
	prev := h.onDisconnect
	if prev == nil {
		h.onDisconnect = fn
		return
	}
	h.onDisconnect = func(instanceID string) {
		prev(instanceID)
		fn(instanceID)
	}
}

func (h *InstanceHub) Run() {
	ticker := time.NewTicker(h.staleAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case link := <-h.register:
			h.handleRegister(link)
		case instanceID := <-h.unregister:
			h.handleUnregister(instanceID)
		case <-ticker.C:
			h.checkStale()
		case <-h.stopChan:
			return
		}
	}
}

func (h *InstanceHub) Stop() {
	close(h.stopChan)
}

func (h *InstanceHub) handleRegister(link *InstanceLink) {
	h.mu.Lock()
	if existing, ok := h.links[link.InstanceID]; ok {
		close(existing.Send)
		existing.Conn.Close()
	}
	h.links[link.InstanceID] = link
	h.mu.Unlock()

	logger.SessionHub().Info().Str("instance_id", link.InstanceID).Msg("instance link established")
	h.recordEvent(link.InstanceID, models.EventConnect)
}

func (h *InstanceHub) handleUnregister(instanceID string) {
	h.mu.Lock()
	link, ok := h.links[instanceID]
	if ok {
		delete(h.links, instanceID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	close(link.Send)
	link.Conn.Close()

	logger.SessionHub().Info().Str("instance_id", instanceID).Msg("instance link lost")
	h.recordEvent(instanceID, models.EventDisconnect)

	if h.onDisconnect != nil {
		h.onDisconnect(instanceID)
	}
}

func (h *InstanceHub) checkStale() {
	h.mu.RLock()
	var stale []string
	for id, link := range h.links {
		if link.idleSince() > h.staleAfter {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		logger.SessionHub().Warn().Str("instance_id", id).Msg("instance link idle past threshold, closing")
		h.unregister <- id
	}
}

func (h *InstanceHub) recordEvent(instanceID string, eventType models.EventType) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev := &models.Event{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
	}
	if err := h.events.Insert(ctx, ev); err != nil {
		logger.SessionHub().Error().Err(err).Str("instance_id", instanceID).Msg("failed to record link event")
	}
}

// Register adds a link to the hub's processing loop.
func (h *InstanceHub) Register(link *InstanceLink) {
	h.register <- link
}

// Unregister tears a link down.
func (h *InstanceHub) Unregister(instanceID string) {
	h.unregister <- instanceID
}

// Touch records a received frame from an instance, resetting its idle timer.
func (h *InstanceHub) Touch(instanceID string) {
	h.mu.RLock()
	link, ok := h.links[instanceID]
	h.mu.RUnlock()
	if ok {
		link.touch()
	}
}

// IsConnected reports whether the instance currently holds a live link.
func (h *InstanceHub) IsConnected(instanceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.links[instanceID]
	return ok
}

// Send writes a frame to the instance's link, returning an error if the
// instance is not connected or its send buffer is full.
func (h *InstanceHub) Send(instanceID string, frame []byte) error {
	h.mu.RLock()
	link, ok := h.links[instanceID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("instance %s is not connected", instanceID)
	}
	select {
	case link.Send <- frame:
		return nil
	default:
		return fmt.Errorf("instance %s send buffer is full", instanceID)
	}
}

// ConnectedInstances lists every instance ID with a live link.
func (h *InstanceHub) ConnectedInstances() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.links))
	for id := range h.links {
		ids = append(ids, id)
	}
	return ids
}
