// Package protocol defines the framed envelope exchanged on every
// bidirectional link (agent, viewer) and the typed payloads per channel.
//
// Every message is a self-describing Envelope; (Channel, Type) selects how
// Data is parsed. Parse is a total function: it returns either a typed
// payload or a MalformedFrame error, and a payload is only ever parsed
// once by its owning channel handler.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	apperrors "github.com/streamspace/fleetconsole/internal/errors"
)

type Channel string

const (
	ChannelHeartbeat Channel = "heartbeat"
	ChannelMetrics   Channel = "metrics"
	ChannelLogs      Channel = "logs"
	ChannelTerminal  Channel = "terminal"
	ChannelEvents    Channel = "events"
	ChannelCommands  Channel = "commands"
)

// Type strings are "channel:verb", enumerated per channel below.
const (
	TypeHeartbeatPing = "heartbeat:ping"
	TypeHeartbeatPong = "heartbeat:pong"

	TypeMetricsReport = "metrics:report"

	TypeLogLine  = "log:line"
	TypeLogBatch = "log:batch"
	TypeLogDropped = "log:dropped"

	TypeTerminalCreate = "terminal:create"
	TypeTerminalData   = "terminal:data"
	TypeTerminalResize = "terminal:resize"
	TypeTerminalClose  = "terminal:close"
	TypeTerminalCreated = "terminal:created"

	TypeEventInstance = "event:instance"

	TypeCommandExec     = "command:exec"
	TypeCommandAck      = "command:ack"
	TypeCommandComplete = "command:complete"
	TypeCommandFailed   = "command:failed"
	TypeCommandCancel   = "command:cancel"

	TypeError = "error"
	TypeAck   = "ack"
)

// Envelope is the wire structure of every frame.
type Envelope struct {
	Channel       Channel         `json:"channel"`
	Type          string          `json:"type"`
	Ts            int64           `json:"ts"`
	Data          json.RawMessage `json:"data"`
	InstanceID    string          `json:"instanceId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Parse validates frame-level shape and returns the decoded envelope, or a
// MalformedFrame AppError. It does not validate the channel-specific schema
// of Data — callers dispatch on (Channel, Type) and decode Data themselves,
// exactly once.
func Parse(raw []byte) (*Envelope, *apperrors.AppError) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.MalformedFrame("invalid JSON frame")
	}
	if env.Channel == "" {
		return nil, apperrors.MalformedFrame("missing channel")
	}
	if env.Type == "" {
		return nil, apperrors.MalformedFrame("missing type")
	}
	if math.IsNaN(float64(env.Ts)) || math.IsInf(float64(env.Ts), 0) {
		return nil, apperrors.MalformedFrame("ts must be finite")
	}
	if len(env.Data) == 0 {
		return nil, apperrors.MalformedFrame("missing data")
	}
	return &env, nil
}

// ErrorData is the payload of a `type: "error"` reply envelope.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEnvelope(ts int64, correlationID string, appErr *apperrors.AppError) *Envelope {
	data, _ := json.Marshal(ErrorData{Code: appErr.Code, Message: appErr.Message})
	return &Envelope{
		Type:          TypeError,
		Ts:            ts,
		Data:          data,
		CorrelationID: correlationID,
	}
}

func marshalOrPanic(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal: %v", err))
	}
	return b
}
