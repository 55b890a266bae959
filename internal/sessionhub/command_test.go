package sessionhub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/streamspace/fleetconsole/internal/db"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/protocol"
)

func setupCommandTest(t *testing.T) (*CommandManager, *InstanceHub, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock database: %v", err)
	}

	database := db.NewDatabaseForTesting(mockDB)
	hub := NewInstanceHub(database, time.Minute)
	go hub.Run()

	store := db.NewCommandSessionDB(database)
	cm := NewCommandManager(hub, NewFanoutBus(), store)

	cleanup := func() {
		hub.Stop()
		mockDB.Close()
	}
	return cm, hub, mock, cleanup
}

func TestCommandExecRejectsEmptyCommand(t *testing.T) {
	cm, hub, mock, cleanup := setupCommandTest(t)
	defer cleanup()
	connectInstance(t, hub, mock, "inst-1")

	_, err := cm.Exec(context.Background(), "inst-1", "user-1", "viewer-1", "   ", 0)
	if err == nil {
		t.Fatal("expected an error for a blank command")
	}
}

func TestCommandExecRequiresLiveLink(t *testing.T) {
	cm, _, _, cleanup := setupCommandTest(t)
	defer cleanup()

	_, err := cm.Exec(context.Background(), "offline-instance", "user-1", "viewer-1", "ls", 0)
	if err == nil {
		t.Fatal("expected an error when the instance has no live link")
	}
}

func TestCommandExecRejectsTimeoutOutOfRange(t *testing.T) {
	cm, hub, mock, cleanup := setupCommandTest(t)
	defer cleanup()
	connectInstance(t, hub, mock, "inst-1")

	_, err := cm.Exec(context.Background(), "inst-1", "user-1", "viewer-1", "ls", 3601)
	if err == nil {
		t.Fatal("expected an error for a timeout beyond the 3600s ceiling")
	}
}

func TestCommandExecSendsExecFrame(t *testing.T) {
	cm, hub, mock, cleanup := setupCommandTest(t)
	defer cleanup()
	link := connectInstance(t, hub, mock, "inst-1")

	mock.ExpectExec(`INSERT INTO command_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))

	run, err := cm.Exec(context.Background(), "inst-1", "user-1", "viewer-1", "uptime", 0)
	if err != nil {
		t.Fatalf("expected Exec to succeed, got %v", err)
	}

	select {
	case frame := <-link.Send:
		var env protocol.Envelope
		if jsonErr := json.Unmarshal(frame, &env); jsonErr != nil {
			t.Fatalf("expected a valid envelope: %v", jsonErr)
		}
		if env.Type != protocol.TypeCommandExec {
			t.Errorf("expected command:exec frame, got %q", env.Type)
		}
		var exec protocol.CommandExec
		if jsonErr := protocol.Decode(&env, &exec); jsonErr != nil {
			t.Fatalf("expected a valid command:exec payload: %v", jsonErr)
		}
		if exec.TimeoutSeconds != protocol.DefaultCommandTimeoutSeconds {
			t.Errorf("expected the default timeout, got %d", exec.TimeoutSeconds)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command:exec frame")
	}

	if run.state() != models.CommandPending {
		t.Errorf("expected pending state, got %s", run.state())
	}
}

func TestCommandHandleCompleteResolvesWait(t *testing.T) {
	cm, hub, mock, cleanup := setupCommandTest(t)
	defer cleanup()
	connectInstance(t, hub, mock, "inst-1")

	mock.ExpectExec(`INSERT INTO command_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))
	run, err := cm.Exec(context.Background(), "inst-1", "user-1", "viewer-1", "echo hi", 0)
	if err != nil {
		t.Fatalf("expected Exec to succeed, got %v", err)
	}

	mock.ExpectExec(`UPDATE command_sessions SET status`).WillReturnResult(sqlmock.NewResult(1, 1))
	cm.HandleComplete(run.ID, 0, "hi\n", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, waitErr := cm.Wait(ctx, run.ID)
	if waitErr != nil {
		t.Fatalf("expected Wait to succeed, got %v", waitErr)
	}
	if res.ExitCode != 0 || res.Stdout != "hi\n" {
		t.Errorf("unexpected result: %+v", res)
	}
	if cm.get(run.ID) != nil {
		t.Error("expected the run to be removed once resolved")
	}
}

func TestCommandCancelResolvesWithExitCodeMinusOne(t *testing.T) {
	cm, hub, mock, cleanup := setupCommandTest(t)
	defer cleanup()
	link := connectInstance(t, hub, mock, "inst-1")

	mock.ExpectExec(`INSERT INTO command_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))
	run, err := cm.Exec(context.Background(), "inst-1", "user-1", "viewer-1", "sleep 100", 0)
	if err != nil {
		t.Fatalf("expected Exec to succeed, got %v", err)
	}
	<-link.Send // drain command:exec

	mock.ExpectExec(`UPDATE command_sessions SET status`).WillReturnResult(sqlmock.NewResult(1, 1))
	if cancelErr := cm.Cancel(run.ID, "viewer-1"); cancelErr != nil {
		t.Fatalf("expected Cancel to succeed, got %v", cancelErr)
	}

	select {
	case frame := <-link.Send:
		var env protocol.Envelope
		if jsonErr := json.Unmarshal(frame, &env); jsonErr != nil {
			t.Fatalf("expected a valid envelope: %v", jsonErr)
		}
		if env.Type != protocol.TypeCommandCancel {
			t.Errorf("expected command:cancel frame, got %q", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command:cancel frame")
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), time.Second)
	defer ctxCancel()
	res, waitErr := cm.Wait(ctx, run.ID)
	if waitErr != nil {
		t.Fatalf("expected Wait to succeed, got %v", waitErr)
	}
	if res.ExitCode != -1 {
		t.Errorf("expected exit code -1 for a cancelled command, got %d", res.ExitCode)
	}
}

func TestCommandCancelRejectsNonOwner(t *testing.T) {
	cm, hub, mock, cleanup := setupCommandTest(t)
	defer cleanup()
	connectInstance(t, hub, mock, "inst-1")

	mock.ExpectExec(`INSERT INTO command_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))
	run, err := cm.Exec(context.Background(), "inst-1", "user-1", "viewer-1", "sleep 100", 0)
	if err != nil {
		t.Fatalf("expected Exec to succeed, got %v", err)
	}

	if cancelErr := cm.Cancel(run.ID, "stranger"); cancelErr == nil {
		t.Fatal("expected an error cancelling a run owned by a different viewer")
	}
}

func TestCommandInstanceOfflineFailsRuns(t *testing.T) {
	cm, hub, mock, cleanup := setupCommandTest(t)
	defer cleanup()
	connectInstance(t, hub, mock, "inst-1")

	mock.ExpectExec(`INSERT INTO command_sessions`).WillReturnResult(sqlmock.NewResult(1, 1))
	run, err := cm.Exec(context.Background(), "inst-1", "user-1", "viewer-1", "sleep 100", 0)
	if err != nil {
		t.Fatalf("expected Exec to succeed, got %v", err)
	}

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "inst-1", "DISCONNECT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE command_sessions SET status`).WillReturnResult(sqlmock.NewResult(1, 1))

	hub.Unregister("inst-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, waitErr := cm.Wait(ctx, run.ID)
	if waitErr != nil {
		t.Fatalf("expected Wait to succeed, got %v", waitErr)
	}
	if res.Error == "" {
		t.Error("expected an error result once the instance link dropped")
	}
}
