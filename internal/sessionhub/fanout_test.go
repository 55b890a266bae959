package sessionhub

import (
	"encoding/json"
	"testing"

	"github.com/streamspace/fleetconsole/internal/protocol"
)

func TestFanoutBusSubscribePublish(t *testing.T) {
	bus := NewFanoutBus()
	v := bus.Subscribe("inst-1", "viewer-1")

	bus.Publish("inst-1", []byte("hello"))

	select {
	case frame := <-v.Out:
		if string(frame) != "hello" {
			t.Errorf("unexpected frame: %s", frame)
		}
	default:
		t.Fatal("expected a delivered frame")
	}
}

func TestFanoutBusMultipleViewers(t *testing.T) {
	bus := NewFanoutBus()
	v1 := bus.Subscribe("inst-1", "viewer-1")
	v2 := bus.Subscribe("inst-1", "viewer-2")

	bus.Publish("inst-1", []byte("hi"))

	for _, v := range []*Viewer{v1, v2} {
		select {
		case frame := <-v.Out:
			if string(frame) != "hi" {
				t.Errorf("unexpected frame for %s: %s", v.ID, frame)
			}
		default:
			t.Fatalf("expected %s to receive the frame", v.ID)
		}
	}
}

func TestFanoutBusUnsubscribe(t *testing.T) {
	bus := NewFanoutBus()
	bus.Subscribe("inst-1", "viewer-1")

	if bus.ViewerCount("inst-1") != 1 {
		t.Fatalf("expected 1 viewer, got %d", bus.ViewerCount("inst-1"))
	}

	bus.Unsubscribe("inst-1", "viewer-1")
	if bus.ViewerCount("inst-1") != 0 {
		t.Errorf("expected 0 viewers after unsubscribe, got %d", bus.ViewerCount("inst-1"))
	}

	// unsubscribing again is a no-op
	bus.Unsubscribe("inst-1", "viewer-1")
}

func TestFanoutBusTopicsAreIndependent(t *testing.T) {
	bus := NewFanoutBus()
	bus.Subscribe("inst-1", "viewer-1")
	bus.Subscribe("term-session-1", "viewer-1")

	if bus.ViewerCount("inst-1") != 1 || bus.ViewerCount("term-session-1") != 1 {
		t.Fatal("expected each topic to track its own viewer set")
	}
}

func TestViewerDropsOldestFrameOnOverflow(t *testing.T) {
	v := newViewer("viewer-1", "inst-1")

	for i := 0; i < viewerBufferSize; i++ {
		v.deliver([]byte("frame"))
	}
	if len(v.Out) != viewerBufferSize {
		t.Fatalf("expected buffer to be full, got %d", len(v.Out))
	}

	// This delivery overflows the buffer: the oldest frame is evicted and
	// the dropped counter increments.
	v.deliver([]byte("overflow"))

	if v.dropped != 1 {
		t.Errorf("expected dropped counter to be 1, got %d", v.dropped)
	}
}

func TestViewerFlushesDroppedSentinelAheadOfNextFrame(t *testing.T) {
	v := newViewer("viewer-1", "inst-1")

	// Simulate a prior drop without filling the whole buffer, then deliver:
	// the sentinel should be enqueued ahead of the triggering frame.
	v.dropped = 1
	v.deliver([]byte("next"))

	first := <-v.Out
	var env protocol.Envelope
	if err := json.Unmarshal(first, &env); err != nil {
		t.Fatalf("expected sentinel to be a valid envelope: %v", err)
	}
	if env.Type != protocol.TypeLogDropped {
		t.Fatalf("expected sentinel envelope type %q, got %q", protocol.TypeLogDropped, env.Type)
	}

	second := <-v.Out
	if string(second) != "next" {
		t.Errorf("expected the actual frame to follow the sentinel, got %s", second)
	}
}
