package sessionhub

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"

	"github.com/streamspace/fleetconsole/internal/db"
)

func setupHubTest(t *testing.T) (*InstanceHub, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}

	database := db.NewDatabaseForTesting(mockDB)
	hub := NewInstanceHub(database, 200*time.Millisecond)

	cleanup := func() {
		hub.Stop()
		mockDB.Close()
	}
	return hub, mock, cleanup
}

func TestNewInstanceHub(t *testing.T) {
	hub, _, cleanup := setupHubTest(t)
	defer cleanup()

	if hub.links == nil {
		t.Error("expected links map to be initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("expected register/unregister channels to be initialized")
	}
}

func TestInstanceHubRegisterAndSend(t *testing.T) {
	hub, mock, cleanup := setupHubTest(t)
	defer cleanup()

	go hub.Run()

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-1", "CONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	link := NewInstanceLink("inst-1", &websocket.Conn{})
	hub.Register(link)

	time.Sleep(50 * time.Millisecond)

	if !hub.IsConnected("inst-1") {
		t.Fatal("expected instance to be connected")
	}

	if err := hub.Send("inst-1", []byte("frame")); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}

	select {
	case frame := <-link.Send:
		if string(frame) != "frame" {
			t.Errorf("unexpected frame contents: %s", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame on link.Send")
	}
}

func TestInstanceHubSendWhenDisconnected(t *testing.T) {
	hub, _, cleanup := setupHubTest(t)
	defer cleanup()

	go hub.Run()

	if err := hub.Send("ghost", []byte("x")); err == nil {
		t.Error("expected error sending to a disconnected instance")
	}
}

func TestInstanceHubUnregisterRecordsDisconnectAndCallback(t *testing.T) {
	hub, mock, cleanup := setupHubTest(t)
	defer cleanup()

	go hub.Run()

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-1", "CONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-1", "DISCONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	notified := make(chan string, 1)
	hub.OnDisconnect(func(instanceID string) { notified <- instanceID })

	link := NewInstanceLink("inst-1", &websocket.Conn{})
	hub.Register(link)
	time.Sleep(50 * time.Millisecond)

	hub.Unregister("inst-1")

	select {
	case id := <-notified:
		if id != "inst-1" {
			t.Errorf("expected callback for inst-1, got %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disconnect callback")
	}

	if hub.IsConnected("inst-1") {
		t.Error("expected instance to be disconnected")
	}
}

func TestInstanceHubConnectedInstances(t *testing.T) {
	hub, mock, cleanup := setupHubTest(t)
	defer cleanup()

	go hub.Run()

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-1", "CONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-2", "CONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	hub.Register(NewInstanceLink("inst-1", &websocket.Conn{}))
	hub.Register(NewInstanceLink("inst-2", &websocket.Conn{}))
	time.Sleep(50 * time.Millisecond)

	ids := hub.ConnectedInstances()
	if len(ids) != 2 {
		t.Fatalf("expected 2 connected instances, got %d", len(ids))
	}
}

func TestInstanceHubStaleLinkIsTornDown(t *testing.T) {
	hub, mock, cleanup := setupHubTest(t)
	defer cleanup()

	go hub.Run()

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-1", "CONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-1", "DISCONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	link := NewInstanceLink("inst-1", &websocket.Conn{})
	hub.Register(link)
	time.Sleep(50 * time.Millisecond)

	// No Touch calls arrive; the stale ticker (staleAfter/2 = 100ms) should
	// tear the link down once it has been idle past staleAfter (200ms).
	deadline := time.After(2 * time.Second)
	for hub.IsConnected("inst-1") {
		select {
		case <-deadline:
			t.Fatal("expected stale link to be disconnected")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
