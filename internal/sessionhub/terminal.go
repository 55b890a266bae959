package sessionhub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/logger"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/protocol"
)

// preCreateBufferLimit bounds how much resize/data traffic a terminal
// session may buffer while waiting for the agent's terminal:created reply.
const preCreateBufferLimit = 64 * 1024

// Session is the in-memory state of one terminal relay: the state machine
// (connecting -> connected -> disconnected|error|closed), the small buffer
// held before the agent confirms the session, and the broadcast-input
// group — the set of viewer IDs whose keystrokes are forwarded to the agent.
type Session struct {
	mu sync.Mutex

	ID         string
	InstanceID string
	UserID     string
	Cols, Rows int
	State      models.TerminalStatus

	created      bool
	pending      [][]byte
	pendingBytes int

	group map[string]struct{}
}

func (s *Session) state() models.TerminalStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

func (s *Session) setState(st models.TerminalStatus) {
	s.mu.Lock()
	s.State = st
	s.mu.Unlock()
}

// Join adds viewerID to the session's broadcast-input group: any of these
// viewers may send terminal:data and it is relayed to the agent.
func (s *Session) Join(viewerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group[viewerID] = struct{}{}
}

// Leave removes viewerID from the broadcast-input group. The session itself
// is only closed when the last member leaves (see TerminalManager.Detach).
func (s *Session) Leave(viewerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.group, viewerID)
	return len(s.group)
}

func (s *Session) memberOf(viewerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.group[viewerID]
	return ok
}

// TerminalManager owns every live terminal session: creation, the
// agent-link relay, and closing sessions on either-side terminal:close,
// viewer disconnect, or instance link loss.
type TerminalManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	hub    *InstanceHub
	fanout *FanoutBus
	store  *db.TerminalSessionDB
}

func NewTerminalManager(hub *InstanceHub, fanout *FanoutBus, store *db.TerminalSessionDB) *TerminalManager {
	tm := &TerminalManager{
		sessions: make(map[string]*Session),
		hub:      hub,
		fanout:   fanout,
		store:    store,
	}
	hub.OnDisconnect(tm.handleInstanceOffline)
	return tm
}

// Create validates dims, requires a live instance link, and sends
// terminal:create over it. The session starts in "connecting" and the
// caller (the first viewer) is enrolled in its broadcast-input group.
func (tm *TerminalManager) Create(ctx context.Context, instanceID, userID, viewerID string, cols, rows int) (*Session, *apperrors.AppError) {
	if err := protocol.ValidateTerminalDims(cols, rows); err != nil {
		return nil, err
	}
	if !tm.hub.IsConnected(instanceID) {
		return nil, apperrors.Conflict("instance is offline")
	}

	sess := &Session{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		UserID:     userID,
		Cols:       cols,
		Rows:       rows,
		State:      models.TerminalConnecting,
		group:      map[string]struct{}{viewerID: {}},
	}

	tm.mu.Lock()
	tm.sessions[sess.ID] = sess
	tm.mu.Unlock()

	now := time.Now().UTC()
	if err := tm.store.Create(ctx, &models.TerminalSession{
		ID: sess.ID, InstanceID: instanceID, UserID: userID,
		Status: models.TerminalConnecting, Cols: cols, Rows: rows, CreatedAt: now,
	}); err != nil {
		logger.SessionHub().Error().Err(err).Msg("failed to persist terminal session")
	}

	payload, _ := json.Marshal(protocol.TerminalCreate{SessionID: sess.ID, Cols: cols, Rows: rows})
	env := &protocol.Envelope{
		Channel: protocol.ChannelTerminal, Type: protocol.TypeTerminalCreate,
		Ts: now.Unix(), Data: payload, InstanceID: instanceID, CorrelationID: sess.ID,
	}
	frame, _ := json.Marshal(env)
	if err := tm.hub.Send(instanceID, frame); err != nil {
		tm.fail(sess, "instance offline")
		return sess, apperrors.Conflict("instance is offline")
	}
	return sess, nil
}

// HandleCreated transitions a session to connected once the agent replies
// with terminal:created, and flushes anything buffered before that.
func (tm *TerminalManager) HandleCreated(sessionID string) {
	sess := tm.get(sessionID)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	sess.State = models.TerminalConnected
	sess.created = true
	buffered := sess.pending
	sess.pending = nil
	sess.pendingBytes = 0
	sess.mu.Unlock()

	for _, frame := range buffered {
		if err := tm.hub.Send(sess.InstanceID, frame); err != nil {
			break
		}
	}

	if err := tm.store.UpdateStatus(context.Background(), sessionID, models.TerminalConnected); err != nil {
		logger.SessionHub().Error().Err(err).Msg("failed to update terminal session status")
	}
}

// SendInput relays a terminal:data frame from a broadcast-input group member
// to the agent. Frames arriving before terminal:created are buffered up to
// preCreateBufferLimit bytes; beyond that they are dropped and an error
// frame is returned to the caller.
func (tm *TerminalManager) SendInput(sessionID, viewerID string, frame []byte) *apperrors.AppError {
	sess := tm.get(sessionID)
	if sess == nil {
		return apperrors.NotFound("terminal session")
	}
	if !sess.memberOf(viewerID) {
		return apperrors.Forbidden("not a member of this terminal session")
	}

	sess.mu.Lock()
	if !sess.created {
		if sess.pendingBytes+len(frame) > preCreateBufferLimit {
			sess.mu.Unlock()
			return apperrors.MalformedFrame("terminal session buffer exceeded before creation")
		}
		sess.pending = append(sess.pending, frame)
		sess.pendingBytes += len(frame)
		sess.mu.Unlock()
		return nil
	}
	sess.mu.Unlock()

	if err := tm.hub.Send(sess.InstanceID, frame); err != nil {
		return apperrors.Conflict("instance is offline")
	}
	return nil
}

// Output is called by the instance-link reader when a terminal:data frame
// arrives from the agent; it fans the raw frame out to the session's
// viewers via the bus.
func (tm *TerminalManager) Output(sessionID string, frame []byte) {
	tm.fanout.Publish(sessionID, frame)
}

// CloseByAgent closes a session because the agent sent terminal:close.
func (tm *TerminalManager) CloseByAgent(sessionID, reason string) {
	sess := tm.get(sessionID)
	if sess == nil {
		return
	}
	logger.SessionHub().Info().Str("session_id", sessionID).Str("reason", reason).Msg("terminal session closed by agent")
	tm.close(sess, models.TerminalClosed)
}

// CloseByViewer closes a session because the last viewer disconnected
// ("client gone"), sending terminal:close to the agent.
func (tm *TerminalManager) CloseByViewer(sessionID string) {
	sess := tm.get(sessionID)
	if sess == nil {
		return
	}
	payload, _ := json.Marshal(protocol.TerminalClose{SessionID: sessionID, Reason: "client gone"})
	env := &protocol.Envelope{
		Channel: protocol.ChannelTerminal, Type: protocol.TypeTerminalClose,
		Ts: time.Now().Unix(), Data: payload, InstanceID: sess.InstanceID, CorrelationID: sessionID,
	}
	frame, _ := json.Marshal(env)
	_ = tm.hub.Send(sess.InstanceID, frame)
	tm.close(sess, models.TerminalClosed)
}

// Detach removes viewerID from the broadcast-input group, closing the
// session once the last member leaves.
func (tm *TerminalManager) Detach(sessionID, viewerID string) {
	sess := tm.get(sessionID)
	if sess == nil {
		return
	}
	if remaining := sess.Leave(viewerID); remaining == 0 {
		tm.CloseByViewer(sessionID)
	}
}

func (tm *TerminalManager) handleInstanceOffline(instanceID string) {
	tm.mu.RLock()
	var affected []*Session
	for _, sess := range tm.sessions {
		if sess.InstanceID == instanceID {
			affected = append(affected, sess)
		}
	}
	tm.mu.RUnlock()

	for _, sess := range affected {
		tm.fail(sess, "instance offline")
	}
}

func (tm *TerminalManager) fail(sess *Session, reason string) {
	logger.SessionHub().Warn().Str("session_id", sess.ID).Str("reason", reason).Msg("terminal session failed")
	tm.close(sess, models.TerminalError)
}

func (tm *TerminalManager) close(sess *Session, final models.TerminalStatus) {
	sess.setState(final)
	tm.mu.Lock()
	delete(tm.sessions, sess.ID)
	tm.mu.Unlock()

	if err := tm.store.Close(context.Background(), sess.ID); err != nil {
		logger.SessionHub().Error().Err(err).Msg("failed to close terminal session record")
	}
}

func (tm *TerminalManager) get(sessionID string) *Session {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.sessions[sessionID]
}
