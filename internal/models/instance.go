package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type Provider string

const (
	ProviderFly        Provider = "fly"
	ProviderDocker      Provider = "docker"
	ProviderDevpod      Provider = "devpod"
	ProviderE2B         Provider = "e2b"
	ProviderKubernetes  Provider = "kubernetes"
)

// InstanceStatus is the state-machine status of a managed instance.
type InstanceStatus string

const (
	StatusDeploying  InstanceStatus = "DEPLOYING"
	StatusRunning    InstanceStatus = "RUNNING"
	StatusSuspended  InstanceStatus = "SUSPENDED"
	StatusStopped    InstanceStatus = "STOPPED"
	StatusDestroying InstanceStatus = "DESTROYING"
	StatusError      InstanceStatus = "ERROR"
	StatusUnknown    InstanceStatus = "UNKNOWN"
)

// instanceTransitions enumerates every legal InstanceStatus edge.
var instanceTransitions = map[InstanceStatus]map[InstanceStatus]bool{
	StatusDeploying:  {StatusRunning: true, StatusError: true},
	StatusRunning:    {StatusSuspended: true, StatusStopped: true, StatusDestroying: true, StatusError: true},
	StatusSuspended:  {StatusRunning: true, StatusDestroying: true},
	StatusStopped:    {StatusRunning: true, StatusDestroying: true},
	StatusError:      {StatusRunning: true, StatusStopped: true, StatusDestroying: true},
	StatusDestroying: {StatusUnknown: true},
}

// CanTransition reports whether from→to is a permitted edge in §3's table.
func CanTransition(from, to InstanceStatus) bool {
	return instanceTransitions[from][to]
}

// ExtensionSlugs is an ordered, JSONB-backed set of installed extension slugs.
type ExtensionSlugs []string

func (s *ExtensionSlugs) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

func (s ExtensionSlugs) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(s))
}

// Instance is a managed workspace reachable over the agent link.
type Instance struct {
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Provider     Provider       `json:"provider" db:"provider"`
	Region       *string        `json:"region,omitempty" db:"region"`
	Extensions   ExtensionSlugs `json:"extensions" db:"extensions"`
	ConfigHash   string         `json:"configHash" db:"config_hash"`
	SSHEndpoint  *string        `json:"sshEndpoint,omitempty" db:"ssh_endpoint"`
	Status       InstanceStatus `json:"status" db:"status"`
	TeamID       *string        `json:"teamId,omitempty" db:"team_id"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}

// Heartbeat is the latest-known vitals snapshot for one instance.
type Heartbeat struct {
	InstanceID     string    `json:"instanceId" db:"instance_id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	CPUPercent     float64   `json:"cpuPercent" db:"cpu_percent"`
	MemoryUsed     uint64    `json:"memoryUsed,string" db:"memory_used"`
	MemoryTotal    uint64    `json:"memoryTotal,string" db:"memory_total"`
	DiskUsed       uint64    `json:"diskUsed,string" db:"disk_used"`
	DiskTotal      uint64    `json:"diskTotal,string" db:"disk_total"`
	UptimeSeconds  int64     `json:"uptimeSeconds" db:"uptime_seconds"`
	LoadAvg1       float64   `json:"loadAvg1" db:"load_avg_1"`
	LoadAvg5       float64   `json:"loadAvg5" db:"load_avg_5"`
	LoadAvg15      float64   `json:"loadAvg15" db:"load_avg_15"`
	NetBytesSent   uint64    `json:"netBytesSent,string" db:"net_bytes_sent"`
	NetBytesRecv   uint64    `json:"netBytesRecv,string" db:"net_bytes_recv"`
	ProcessCount   int       `json:"processCount" db:"process_count"`
}

// MetricSample is a time-series point; same shape as Heartbeat minus
// ProcessCount. Granularity tags the row as "raw" or as a 1m/5m/1h/1d
// rollup. The ingest pipeline writes only "raw" samples; nothing in this
// module computes or writes the 1m/5m/1h/1d rollup rows.
type MetricSample struct {
	InstanceID    string    `json:"instanceId" db:"instance_id"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	Granularity   string    `json:"granularity" db:"granularity"`
	CPUPercent    float64   `json:"cpuPercent" db:"cpu_percent"`
	MemoryUsed    uint64    `json:"memoryUsed,string" db:"memory_used"`
	MemoryTotal   uint64    `json:"memoryTotal,string" db:"memory_total"`
	DiskUsed      uint64    `json:"diskUsed,string" db:"disk_used"`
	DiskTotal     uint64    `json:"diskTotal,string" db:"disk_total"`
	LoadAvg1      float64   `json:"loadAvg1" db:"load_avg_1"`
	LoadAvg5      float64   `json:"loadAvg5" db:"load_avg_5"`
	LoadAvg15     float64   `json:"loadAvg15" db:"load_avg_15"`
	NetBytesSent  uint64    `json:"netBytesSent,string" db:"net_bytes_sent"`
	NetBytesRecv  uint64    `json:"netBytesRecv,string" db:"net_bytes_recv"`
	SampleCount   int       `json:"sampleCount,omitempty" db:"sample_count"`
}

type LogLevel string

const (
	LogDebug LogLevel = "DEBUG"
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

type LogSource string

const (
	LogSourceAgent     LogSource = "AGENT"
	LogSourceExtension LogSource = "EXTENSION"
	LogSourceBuild     LogSource = "BUILD"
	LogSourceApp       LogSource = "APP"
	LogSourceSystem    LogSource = "SYSTEM"
)

// JSONMap is an arbitrary structured JSONB-backed map.
type JSONMap map[string]interface{}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(map[string]interface{}(m))
}

type LogEntry struct {
	ID        string    `json:"id" db:"id"`
	InstanceID string   `json:"instanceId" db:"instance_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Source    LogSource `json:"source" db:"source"`
	Message   string    `json:"message" db:"message"`
	Metadata  JSONMap   `json:"metadata,omitempty" db:"metadata"`
}

type EventType string

const (
	EventDeploy             EventType = "DEPLOY"
	EventRedeploy           EventType = "REDEPLOY"
	EventConnect            EventType = "CONNECT"
	EventDisconnect         EventType = "DISCONNECT"
	EventBackup             EventType = "BACKUP"
	EventSuspend            EventType = "SUSPEND"
	EventResume             EventType = "RESUME"
	EventError              EventType = "ERROR"
	EventHeartbeatRecovered EventType = "HEARTBEAT_RECOVERED"
)

type Event struct {
	ID         string    `json:"id" db:"id"`
	InstanceID string    `json:"instanceId" db:"instance_id"`
	EventType  EventType `json:"eventType" db:"event_type"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	Metadata   JSONMap   `json:"metadata,omitempty" db:"metadata"`
}

type TerminalStatus string

const (
	TerminalConnecting   TerminalStatus = "connecting"
	TerminalConnected    TerminalStatus = "connected"
	TerminalDisconnected TerminalStatus = "disconnected"
	TerminalError        TerminalStatus = "error"
	TerminalClosed       TerminalStatus = "closed"
)

type TerminalSession struct {
	ID         string         `json:"id" db:"id"`
	InstanceID string         `json:"instanceId" db:"instance_id"`
	UserID     string         `json:"userId" db:"user_id"`
	Status     TerminalStatus `json:"status" db:"status"`
	Cols       int            `json:"cols" db:"cols"`
	Rows       int            `json:"rows" db:"rows"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
	ClosedAt   *time.Time     `json:"closedAt,omitempty" db:"closed_at"`
}

type CommandStatus string

const (
	CommandPending   CommandStatus = "pending"
	CommandRunning   CommandStatus = "running"
	CommandComplete  CommandStatus = "complete"
	CommandFailed    CommandStatus = "failed"
	CommandTimedOut  CommandStatus = "timed_out"
	CommandCancelled CommandStatus = "cancelled"
)

// CommandSession is the open/close audit marker for one command execution.
// Output, exit code at completion time, and viewer fan-out are transient —
// only the marker row survives in the persistent store.
type CommandSession struct {
	ID         string        `json:"id" db:"id"`
	InstanceID string        `json:"instanceId" db:"instance_id"`
	UserID     string        `json:"userId" db:"user_id"`
	Status     CommandStatus `json:"status" db:"status"`
	ExitCode   *int          `json:"exitCode,omitempty" db:"exit_code"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
	ClosedAt   *time.Time    `json:"closedAt,omitempty" db:"closed_at"`
}
