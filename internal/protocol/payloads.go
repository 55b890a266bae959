package protocol

import "encoding/json"

// HeartbeatPing is sent by an agent roughly every 30s.
type HeartbeatPing struct {
	AgentVersion string  `json:"agentVersion"`
	Uptime       int64   `json:"uptime"`
	CPUPercent   float64 `json:"cpuPercent"`
	MemoryUsed   uint64  `json:"memoryUsed,string"`
	MemoryTotal  uint64  `json:"memoryTotal,string"`
	DiskUsed     uint64  `json:"diskUsed,string"`
	DiskTotal    uint64  `json:"diskTotal,string"`
	LoadAvg1     float64 `json:"loadAvg1"`
	LoadAvg5     float64 `json:"loadAvg5"`
	LoadAvg15    float64 `json:"loadAvg15"`
	NetBytesSent uint64  `json:"netBytesSent,string"`
	NetBytesRecv uint64  `json:"netBytesRecv,string"`
	ProcessCount int     `json:"processCount"`
}

// HeartbeatPong is the Console's reply, echoing correlationId via the envelope.
type HeartbeatPong struct{}

// MetricsReport carries one raw metric sample; fields mirror HeartbeatPing
// minus ProcessCount.
type MetricsReport struct {
	CPUPercent   float64 `json:"cpuPercent"`
	MemoryUsed   uint64  `json:"memoryUsed,string"`
	MemoryTotal  uint64  `json:"memoryTotal,string"`
	DiskUsed     uint64  `json:"diskUsed,string"`
	DiskTotal    uint64  `json:"diskTotal,string"`
	LoadAvg1     float64 `json:"loadAvg1"`
	LoadAvg5     float64 `json:"loadAvg5"`
	LoadAvg15    float64 `json:"loadAvg15"`
	NetBytesSent uint64  `json:"netBytesSent,string"`
	NetBytesRecv uint64  `json:"netBytesRecv,string"`
}

type LogLine struct {
	Level    string                 `json:"level"`
	Source   string                 `json:"source"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type LogBatch struct {
	Lines []LogLine `json:"lines"`
}

type TerminalCreate struct {
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

type TerminalCreated struct {
	SessionID string `json:"sessionId"`
}

// TerminalData carries opaque bytes, base64-encoded on the wire by
// encoding/json's []byte handling.
type TerminalData struct {
	SessionID string `json:"sessionId"`
	Data      []byte `json:"data"`
}

type TerminalResize struct {
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

type TerminalClose struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

type EventInstance struct {
	InstanceID string                 `json:"instanceId"`
	EventType  string                 `json:"eventType"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type CommandExec struct {
	CommandID      string   `json:"commandId"`
	Command        string   `json:"command"`
	TimeoutSeconds int      `json:"timeoutSeconds,omitempty"`
}

type CommandAck struct {
	CommandID string `json:"commandId"`
}

type CommandComplete struct {
	CommandID string `json:"commandId"`
	ExitCode  int    `json:"exitCode"`
	Stdout    string `json:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
}

type CommandFailed struct {
	CommandID string `json:"commandId"`
	Error     string `json:"error"`
}

// CommandCancel is sent Console -> agent to request early termination of a
// running command. The Console does not wait for the agent's reaction — a
// viewer-initiated cancel resolves the session locally with exit code -1.
type CommandCancel struct {
	CommandID string `json:"commandId"`
}

// Decode unmarshals env.Data into v, the concrete payload type for
// (env.Channel, env.Type). Callers are expected to call this exactly once
// per envelope per the "never parse payloads twice" design note.
func Decode(env *Envelope, v interface{}) error {
	return json.Unmarshal(env.Data, v)
}
