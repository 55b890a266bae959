package sessionhub

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/logger"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/protocol"
)

// CommandResult is what a command execution resolves to, delivered both to
// the fanout topic (keyed by session id, for any WS subscribers) and to
// callers of CommandManager.Wait.
type CommandResult struct {
	SessionID string
	ExitCode  int
	Stdout    string
	Stderr    string
	Error     string
}

// CommandRun is the in-memory state of one command execution. Unlike
// Session (terminal), a CommandRun's output and live state never touch the
// persistent store — only its open/close markers do, via CommandManager's
// db.CommandSessionDB.
type CommandRun struct {
	mu sync.Mutex

	ID         string
	InstanceID string
	UserID     string
	ViewerID   string
	Command    string
	State      models.CommandStatus
	acked      bool

	timer *time.Timer
	done  chan *CommandResult
}

func (r *CommandRun) state() models.CommandStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

// CommandManager owns every in-flight command execution: dispatch to the
// agent over the instance link, the default/max timeout per §4.1, and
// delivery of the terminal result to whoever is waiting on it. Analogous
// in shape to TerminalManager, but there is no persistent output and no
// mid-flight resize/data buffering — a command either completes, fails,
// times out (exit 124), or is cancelled by its viewer (exit -1).
type CommandManager struct {
	mu   sync.RWMutex
	runs map[string]*CommandRun

	hub    *InstanceHub
	fanout *FanoutBus
	store  *db.CommandSessionDB
}

func NewCommandManager(hub *InstanceHub, fanout *FanoutBus, store *db.CommandSessionDB) *CommandManager {
	cm := &CommandManager{
		runs:   make(map[string]*CommandRun),
		hub:    hub,
		fanout: fanout,
		store:  store,
	}
	hub.OnDisconnect(cm.handleInstanceOffline)
	return cm
}

// Exec validates the command and timeout, requires a live instance link,
// and sends command:exec over it. The run starts "pending" and a timer is
// armed for the effective timeout; if nothing resolves it first, Complete
// is synthesized with exit code 124.
func (cm *CommandManager) Exec(ctx context.Context, instanceID, userID, viewerID, command string, timeoutSeconds int) (*CommandRun, *apperrors.AppError) {
	if strings.TrimSpace(command) == "" {
		return nil, apperrors.Validation("command must not be empty")
	}
	effective, verr := protocol.ValidateCommandTimeout(timeoutSeconds)
	if verr != nil {
		return nil, verr
	}
	if !cm.hub.IsConnected(instanceID) {
		return nil, apperrors.Conflict("instance is offline")
	}

	run := &CommandRun{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		UserID:     userID,
		ViewerID:   viewerID,
		Command:    command,
		State:      models.CommandPending,
		done:       make(chan *CommandResult, 1),
	}

	cm.mu.Lock()
	cm.runs[run.ID] = run
	cm.mu.Unlock()

	now := time.Now().UTC()
	if err := cm.store.Create(ctx, &models.CommandSession{
		ID: run.ID, InstanceID: instanceID, UserID: userID,
		Status: models.CommandPending, CreatedAt: now,
	}); err != nil {
		logger.SessionHub().Error().Err(err).Msg("failed to persist command session")
	}

	payload, _ := json.Marshal(protocol.CommandExec{CommandID: run.ID, Command: command, TimeoutSeconds: effective})
	env := &protocol.Envelope{
		Channel: protocol.ChannelCommands, Type: protocol.TypeCommandExec,
		Ts: now.Unix(), Data: payload, InstanceID: instanceID, CorrelationID: run.ID,
	}
	frame, _ := json.Marshal(env)
	if err := cm.hub.Send(instanceID, frame); err != nil {
		cm.resolve(run, &CommandResult{SessionID: run.ID, ExitCode: -1, Error: "instance offline"}, models.CommandFailed)
		return run, apperrors.Conflict("instance is offline")
	}

	run.timer = time.AfterFunc(time.Duration(effective)*time.Second, func() { cm.timeoutRun(run.ID) })
	return run, nil
}

// Wait blocks until the run resolves (complete, failed, timed out, or
// cancelled) or ctx is done. REST handlers that expose synchronous command
// execution use this; WS subscribers instead watch the fanout topic keyed
// by the run's id.
func (cm *CommandManager) Wait(ctx context.Context, runID string) (*CommandResult, *apperrors.AppError) {
	run := cm.get(runID)
	if run == nil {
		return nil, apperrors.NotFound("command session")
	}
	select {
	case res := <-run.done:
		run.done <- res // let a second waiter (e.g. the WS publish path) observe it too
		return res, nil
	case <-ctx.Done():
		return nil, apperrors.New(apperrors.CodeInternal, "timed out waiting for command result")
	}
}

// HandleAck marks a run running once the agent confirms receipt.
func (cm *CommandManager) HandleAck(runID string) {
	run := cm.get(runID)
	if run == nil {
		return
	}
	run.mu.Lock()
	run.acked = true
	run.State = models.CommandRunning
	run.mu.Unlock()

	if err := cm.store.UpdateStatus(context.Background(), runID, models.CommandRunning); err != nil {
		logger.SessionHub().Error().Err(err).Msg("failed to update command session status")
	}
}

// HandleComplete finalizes a run the agent finished normally (any exit code).
func (cm *CommandManager) HandleComplete(runID string, exitCode int, stdout, stderr string) {
	run := cm.get(runID)
	if run == nil {
		return
	}
	cm.resolve(run, &CommandResult{SessionID: runID, ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, models.CommandComplete)
}

// HandleFailed finalizes a run the agent could not execute at all (for
// example: command not found, permission denied on the agent host).
func (cm *CommandManager) HandleFailed(runID, errMsg string) {
	run := cm.get(runID)
	if run == nil {
		return
	}
	cm.resolve(run, &CommandResult{SessionID: runID, ExitCode: -1, Error: errMsg}, models.CommandFailed)
}

// Cancel is viewer-initiated: it asks the agent to kill the process but
// resolves the run locally and immediately with exit code -1, per §4.1 —
// the Console does not wait on the agent's acknowledgement of a cancel.
func (cm *CommandManager) Cancel(runID, viewerID string) *apperrors.AppError {
	run := cm.get(runID)
	if run == nil {
		return apperrors.NotFound("command session")
	}
	if run.ViewerID != viewerID {
		return apperrors.Forbidden("not the owner of this command session")
	}

	payload, _ := json.Marshal(protocol.CommandCancel{CommandID: runID})
	env := &protocol.Envelope{
		Channel: protocol.ChannelCommands, Type: protocol.TypeCommandCancel,
		Ts: time.Now().Unix(), Data: payload, InstanceID: run.InstanceID, CorrelationID: runID,
	}
	frame, _ := json.Marshal(env)
	_ = cm.hub.Send(run.InstanceID, frame)

	cm.resolve(run, &CommandResult{SessionID: runID, ExitCode: -1, Error: "cancelled by viewer"}, models.CommandCancelled)
	return nil
}

func (cm *CommandManager) timeoutRun(runID string) {
	run := cm.get(runID)
	if run == nil {
		return
	}
	if run.state() != models.CommandPending && run.state() != models.CommandRunning {
		return
	}
	logger.SessionHub().Warn().Str("session_id", runID).Msg("command execution timed out")
	cm.resolve(run, &CommandResult{SessionID: runID, ExitCode: 124, Error: "command timed out"}, models.CommandTimedOut)
}

func (cm *CommandManager) handleInstanceOffline(instanceID string) {
	cm.mu.RLock()
	var affected []*CommandRun
	for _, run := range cm.runs {
		if run.InstanceID == instanceID {
			affected = append(affected, run)
		}
	}
	cm.mu.RUnlock()

	for _, run := range affected {
		cm.resolve(run, &CommandResult{SessionID: run.ID, ExitCode: -1, Error: "instance offline"}, models.CommandFailed)
	}
}

// resolve finalizes a run exactly once: it stops the timeout timer,
// persists the close marker, publishes the result to the fanout topic and
// the Wait() channel, and removes the run from the live map.
func (cm *CommandManager) resolve(run *CommandRun, result *CommandResult, final models.CommandStatus) {
	run.mu.Lock()
	if run.State == models.CommandComplete || run.State == models.CommandFailed ||
		run.State == models.CommandTimedOut || run.State == models.CommandCancelled {
		run.mu.Unlock()
		return
	}
	run.State = final
	if run.timer != nil {
		run.timer.Stop()
	}
	run.mu.Unlock()

	cm.mu.Lock()
	delete(cm.runs, run.ID)
	cm.mu.Unlock()

	if err := cm.store.Close(context.Background(), run.ID, final, result.ExitCode); err != nil {
		logger.SessionHub().Error().Err(err).Msg("failed to close command session record")
	}

	run.done <- result

	var frame []byte
	if result.Error != "" && final != models.CommandTimedOut {
		payload, _ := json.Marshal(protocol.CommandFailed{CommandID: run.ID, Error: result.Error})
		env := &protocol.Envelope{Channel: protocol.ChannelCommands, Type: protocol.TypeCommandFailed, Ts: time.Now().Unix(), Data: payload, CorrelationID: run.ID}
		frame = marshalEnvelope(env)
	} else {
		payload, _ := json.Marshal(protocol.CommandComplete{CommandID: run.ID, ExitCode: result.ExitCode, Stdout: result.Stdout, Stderr: result.Stderr})
		env := &protocol.Envelope{Channel: protocol.ChannelCommands, Type: protocol.TypeCommandComplete, Ts: time.Now().Unix(), Data: payload, CorrelationID: run.ID}
		frame = marshalEnvelope(env)
	}
	cm.fanout.Publish(run.ID, frame)
}

func (cm *CommandManager) get(runID string) *CommandRun {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.runs[runID]
}
