package sessionhub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/logger"
	"github.com/streamspace/fleetconsole/internal/protocol"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 512 * 1024
)

// Ingester persists the telemetry channels of the agent protocol
// (heartbeat, metrics, logs, events). sessionhub depends on this interface
// rather than a concrete ingestion package so the link relay and the
// storage pipeline stay independently testable.
type Ingester interface {
	Heartbeat(ctx context.Context, instanceID string, ping protocol.HeartbeatPing) error
	Metrics(ctx context.Context, instanceID string, report protocol.MetricsReport) error
	Logs(ctx context.Context, instanceID string, batch protocol.LogBatch) error
	Event(ctx context.Context, instanceID string, ev protocol.EventInstance) error
}

// Relay wires an InstanceHub and TerminalManager to the raw gorilla
// connections: it owns the read/write pumps and dispatches inbound frames
// by channel.
type Relay struct {
	hub       *InstanceHub
	terminals *TerminalManager
	commands  *CommandManager
	ingest    Ingester
}

func NewRelay(hub *InstanceHub, terminals *TerminalManager, commands *CommandManager, ingest Ingester) *Relay {
	return &Relay{hub: hub, terminals: terminals, commands: commands, ingest: ingest}
}

// ServeInstance takes ownership of an already-upgraded instance connection:
// it registers the link, starts its pumps, and blocks until the connection
// closes.
func (r *Relay) ServeInstance(conn *websocket.Conn, instanceID string) {
	link := NewInstanceLink(instanceID, conn)
	r.hub.Register(link)

	done := make(chan struct{})
	go r.writePump(link, done)
	r.readPump(link)
	close(done)
}

func (r *Relay) readPump(link *InstanceLink) {
	defer r.hub.Unregister(link.InstanceID)

	link.Conn.SetReadLimit(maxFrameSize)
	link.Conn.SetReadDeadline(time.Now().Add(pongWait))
	link.Conn.SetPongHandler(func(string) error {
		link.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := link.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.SessionHub().Warn().Err(err).Str("instance_id", link.InstanceID).Msg("instance link closed unexpectedly")
			}
			return
		}
		link.touch()
		r.hub.Touch(link.InstanceID)
		r.dispatch(link.InstanceID, raw)
	}
}

func (r *Relay) writePump(link *InstanceLink, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-link.Send:
			link.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				link.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := link.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			link.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := link.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// dispatch routes one inbound frame from an instance link by channel. A
// malformed frame gets an error reply but never tears the link down.
func (r *Relay) dispatch(instanceID string, raw []byte) {
	env, appErr := protocol.Parse(raw)
	if appErr != nil {
		r.reply(instanceID, "", appErr)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch env.Channel {
	case protocol.ChannelHeartbeat:
		var ping protocol.HeartbeatPing
		if err := protocol.Decode(env, &ping); err != nil {
			r.reply(instanceID, env.CorrelationID, apperrors.MalformedFrame("invalid heartbeat payload"))
			return
		}
		if err := r.ingest.Heartbeat(ctx, instanceID, ping); err != nil {
			logger.SessionHub().Error().Err(err).Str("instance_id", instanceID).Msg("heartbeat ingest failed")
		}
		pong := &protocol.Envelope{
			Channel: protocol.ChannelHeartbeat, Type: protocol.TypeHeartbeatPong,
			Ts: time.Now().Unix(), Data: json.RawMessage(`{}`), CorrelationID: env.CorrelationID,
		}
		if frame := marshalEnvelope(pong); frame != nil {
			_ = r.hub.Send(instanceID, frame)
		}

	case protocol.ChannelMetrics:
		var report protocol.MetricsReport
		if err := protocol.Decode(env, &report); err != nil {
			r.reply(instanceID, env.CorrelationID, apperrors.MalformedFrame("invalid metrics payload"))
			return
		}
		if err := r.ingest.Metrics(ctx, instanceID, report); err != nil {
			logger.SessionHub().Error().Err(err).Str("instance_id", instanceID).Msg("metrics ingest failed")
		}

	case protocol.ChannelLogs:
		var batch protocol.LogBatch
		if err := protocol.Decode(env, &batch); err != nil {
			r.reply(instanceID, env.CorrelationID, apperrors.MalformedFrame("invalid log batch payload"))
			return
		}
		if err := r.ingest.Logs(ctx, instanceID, batch); err != nil {
			logger.SessionHub().Error().Err(err).Str("instance_id", instanceID).Msg("log ingest failed")
		}

	case protocol.ChannelEvents:
		var evt protocol.EventInstance
		if err := protocol.Decode(env, &evt); err != nil {
			r.reply(instanceID, env.CorrelationID, apperrors.MalformedFrame("invalid event payload"))
			return
		}
		if err := r.ingest.Event(ctx, instanceID, evt); err != nil {
			logger.SessionHub().Error().Err(err).Str("instance_id", instanceID).Msg("event ingest failed")
		}

	case protocol.ChannelTerminal:
		r.dispatchTerminal(env)

	case protocol.ChannelCommands:
		r.dispatchCommand(env)

	default:
		r.reply(instanceID, env.CorrelationID, apperrors.MalformedFrame("unknown channel: "+string(env.Channel)))
	}
}

func (r *Relay) dispatchTerminal(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeTerminalCreated:
		var created protocol.TerminalCreated
		if err := protocol.Decode(env, &created); err == nil {
			r.terminals.HandleCreated(created.SessionID)
		}
	case protocol.TypeTerminalData:
		var data protocol.TerminalData
		if err := protocol.Decode(env, &data); err == nil {
			frame := marshalEnvelope(env)
			r.terminals.Output(data.SessionID, frame)
		}
	case protocol.TypeTerminalClose:
		var closeMsg protocol.TerminalClose
		if err := protocol.Decode(env, &closeMsg); err == nil {
			r.terminals.CloseByAgent(closeMsg.SessionID, closeMsg.Reason)
		}
	}
}

func (r *Relay) dispatchCommand(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeCommandAck:
		var ack protocol.CommandAck
		if err := protocol.Decode(env, &ack); err == nil {
			r.commands.HandleAck(ack.CommandID)
		}
	case protocol.TypeCommandComplete:
		var complete protocol.CommandComplete
		if err := protocol.Decode(env, &complete); err == nil {
			r.commands.HandleComplete(complete.CommandID, complete.ExitCode, complete.Stdout, complete.Stderr)
		}
	case protocol.TypeCommandFailed:
		var failed protocol.CommandFailed
		if err := protocol.Decode(env, &failed); err == nil {
			r.commands.HandleFailed(failed.CommandID, failed.Error)
		}
	}
}

func (r *Relay) reply(instanceID, correlationID string, appErr *apperrors.AppError) {
	if appErr == nil {
		return
	}
	env := protocol.NewErrorEnvelope(time.Now().Unix(), correlationID, appErr)
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = r.hub.Send(instanceID, frame)
}

func marshalEnvelope(env *protocol.Envelope) []byte {
	frame, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	return frame
}
