package sessionhub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"

	"github.com/streamspace/fleetconsole/internal/db"
	"github.com/streamspace/fleetconsole/internal/protocol"
)

func setupTerminalTest(t *testing.T) (*TerminalManager, *InstanceHub, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}

	database := db.NewDatabaseForTesting(mockDB)
	hub := NewInstanceHub(database, time.Minute)
	go hub.Run()

	store := db.NewTerminalSessionDB(database)
	tm := NewTerminalManager(hub, NewFanoutBus(), store)

	cleanup := func() {
		hub.Stop()
		mockDB.Close()
	}
	return tm, hub, mock, cleanup
}

func connectInstance(t *testing.T, hub *InstanceHub, mock sqlmock.Sqlmock, instanceID string) *InstanceLink {
	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), instanceID, "CONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	link := NewInstanceLink(instanceID, &websocket.Conn{})
	hub.Register(link)
	time.Sleep(50 * time.Millisecond)
	return link
}

func TestTerminalCreateRejectsInvalidDims(t *testing.T) {
	tm, _, _, cleanup := setupTerminalTest(t)
	defer cleanup()

	_, err := tm.Create(context.Background(), "inst-1", "user-1", "viewer-1", 0, 0)
	if err == nil {
		t.Fatal("expected an error for invalid terminal dimensions")
	}
}

func TestTerminalCreateRequiresLiveLink(t *testing.T) {
	tm, _, _, cleanup := setupTerminalTest(t)
	defer cleanup()

	_, err := tm.Create(context.Background(), "offline-instance", "user-1", "viewer-1", 80, 24)
	if err == nil {
		t.Fatal("expected an error when the instance has no live link")
	}
}

func TestTerminalCreateSendsCreateFrame(t *testing.T) {
	tm, hub, mock, cleanup := setupTerminalTest(t)
	defer cleanup()

	link := connectInstance(t, hub, mock, "inst-1")

	mock.ExpectExec(`INSERT INTO terminal_sessions`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := tm.Create(context.Background(), "inst-1", "user-1", "viewer-1", 80, 24)
	if err != nil {
		t.Fatalf("expected Create to succeed, got %v", err)
	}
	if !sess.memberOf("viewer-1") {
		t.Error("expected the creating viewer to be in the broadcast-input group")
	}

	select {
	case frame := <-link.Send:
		var env protocol.Envelope
		if jsonErr := json.Unmarshal(frame, &env); jsonErr != nil {
			t.Fatalf("expected a valid envelope: %v", jsonErr)
		}
		if env.Type != protocol.TypeTerminalCreate {
			t.Errorf("expected terminal:create frame, got %q", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for terminal:create frame")
	}
}

func TestTerminalInputBufferedBeforeCreated(t *testing.T) {
	tm, hub, mock, cleanup := setupTerminalTest(t)
	defer cleanup()

	connectInstance(t, hub, mock, "inst-1")
	mock.ExpectExec(`INSERT INTO terminal_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := tm.Create(context.Background(), "inst-1", "user-1", "viewer-1", 80, 24)
	if err != nil {
		t.Fatalf("expected Create to succeed, got %v", err)
	}

	if sendErr := tm.SendInput(sess.ID, "viewer-1", []byte("ls\n")); sendErr != nil {
		t.Fatalf("expected input to be buffered without error, got %v", sendErr)
	}

	sess.mu.Lock()
	buffered := len(sess.pending)
	sess.mu.Unlock()
	if buffered != 1 {
		t.Errorf("expected 1 buffered frame before terminal:created, got %d", buffered)
	}
}

func TestTerminalInputRejectsNonMember(t *testing.T) {
	tm, hub, mock, cleanup := setupTerminalTest(t)
	defer cleanup()

	connectInstance(t, hub, mock, "inst-1")
	mock.ExpectExec(`INSERT INTO terminal_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := tm.Create(context.Background(), "inst-1", "user-1", "viewer-1", 80, 24)
	if err != nil {
		t.Fatalf("expected Create to succeed, got %v", err)
	}

	if sendErr := tm.SendInput(sess.ID, "stranger", []byte("ls\n")); sendErr == nil {
		t.Fatal("expected an error for a viewer outside the broadcast-input group")
	}
}

func TestTerminalHandleCreatedFlushesBuffer(t *testing.T) {
	tm, hub, mock, cleanup := setupTerminalTest(t)
	defer cleanup()

	link := connectInstance(t, hub, mock, "inst-1")
	mock.ExpectExec(`INSERT INTO terminal_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := tm.Create(context.Background(), "inst-1", "user-1", "viewer-1", 80, 24)
	if err != nil {
		t.Fatalf("expected Create to succeed, got %v", err)
	}
	<-link.Send // drain the terminal:create frame

	if sendErr := tm.SendInput(sess.ID, "viewer-1", []byte("ls\n")); sendErr != nil {
		t.Fatalf("unexpected error buffering input: %v", sendErr)
	}

	mock.ExpectExec(`UPDATE terminal_sessions SET status`).WillReturnResult(sqlmock.NewResult(1, 1))
	tm.HandleCreated(sess.ID)

	select {
	case <-link.Send:
		// the buffered terminal:data frame was flushed to the agent
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for buffered input to flush")
	}

	if sess.state() != "connected" {
		t.Errorf("expected session to be connected, got %s", sess.state())
	}
}

func TestTerminalDetachClosesOnLastViewer(t *testing.T) {
	tm, hub, mock, cleanup := setupTerminalTest(t)
	defer cleanup()

	link := connectInstance(t, hub, mock, "inst-1")
	mock.ExpectExec(`INSERT INTO terminal_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := tm.Create(context.Background(), "inst-1", "user-1", "viewer-1", 80, 24)
	if err != nil {
		t.Fatalf("expected Create to succeed, got %v", err)
	}
	<-link.Send // drain terminal:create

	mock.ExpectExec(`UPDATE terminal_sessions SET status = 'closed'`).WillReturnResult(sqlmock.NewResult(1, 1))
	tm.Detach(sess.ID, "viewer-1")

	select {
	case frame := <-link.Send:
		var env protocol.Envelope
		if jsonErr := json.Unmarshal(frame, &env); jsonErr != nil {
			t.Fatalf("expected a valid envelope: %v", jsonErr)
		}
		if env.Type != protocol.TypeTerminalClose {
			t.Errorf("expected terminal:close frame, got %q", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for terminal:close frame")
	}

	if tm.get(sess.ID) != nil {
		t.Error("expected the session to be removed after the last viewer detached")
	}
}

func TestTerminalInstanceOfflineFailsSessions(t *testing.T) {
	tm, hub, mock, cleanup := setupTerminalTest(t)
	defer cleanup()

	connectInstance(t, hub, mock, "inst-1")
	mock.ExpectExec(`INSERT INTO terminal_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := tm.Create(context.Background(), "inst-1", "user-1", "viewer-1", 80, 24)
	if err != nil {
		t.Fatalf("expected Create to succeed, got %v", err)
	}

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-1", "DISCONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE terminal_sessions SET status = 'closed'`).WillReturnResult(sqlmock.NewResult(1, 1))

	hub.Unregister("inst-1")

	deadline := time.After(time.Second)
	for tm.get(sess.ID) != nil {
		select {
		case <-deadline:
			t.Fatal("expected session to fail once its instance link dropped")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
