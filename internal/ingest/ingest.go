// Package ingest implements sessionhub.Ingester, turning agent protocol
// payloads into the persisted rows the REST surface reads back.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/streamspace/fleetconsole/internal/db"
	"github.com/streamspace/fleetconsole/internal/logger"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/protocol"
)

// Pipeline persists the four telemetry channels of the agent protocol. It is
// the concrete sessionhub.Ingester the relay is wired against.
type Pipeline struct {
	heartbeats *db.HeartbeatDB
	metrics    *db.MetricDB
	logs       *db.LogEntryDB
	events     *db.EventDB
}

func NewPipeline(database *db.Database) *Pipeline {
	return &Pipeline{
		heartbeats: db.NewHeartbeatDB(database),
		metrics:    db.NewMetricDB(database),
		logs:       db.NewLogEntryDB(database),
		events:     db.NewEventDB(database),
	}
}

// Heartbeat overwrites the instance's latest-vitals row and appends a raw
// metric sample from the same reading — a heartbeat is a metric sample plus
// process count and uptime.
func (p *Pipeline) Heartbeat(ctx context.Context, instanceID string, ping protocol.HeartbeatPing) error {
	now := time.Now().UTC()
	hb := &models.Heartbeat{
		InstanceID:    instanceID,
		Timestamp:     now,
		CPUPercent:    ping.CPUPercent,
		MemoryUsed:    ping.MemoryUsed,
		MemoryTotal:   ping.MemoryTotal,
		DiskUsed:      ping.DiskUsed,
		DiskTotal:     ping.DiskTotal,
		UptimeSeconds: ping.Uptime,
		LoadAvg1:      ping.LoadAvg1,
		LoadAvg5:      ping.LoadAvg5,
		LoadAvg15:     ping.LoadAvg15,
		NetBytesSent:  ping.NetBytesSent,
		NetBytesRecv:  ping.NetBytesRecv,
		ProcessCount:  ping.ProcessCount,
	}
	if err := p.heartbeats.Upsert(ctx, hb); err != nil {
		return err
	}

	sample := &models.MetricSample{
		InstanceID:   instanceID,
		Timestamp:    now,
		Granularity:  "raw",
		CPUPercent:   ping.CPUPercent,
		MemoryUsed:   ping.MemoryUsed,
		MemoryTotal:  ping.MemoryTotal,
		DiskUsed:     ping.DiskUsed,
		DiskTotal:    ping.DiskTotal,
		LoadAvg1:     ping.LoadAvg1,
		LoadAvg5:     ping.LoadAvg5,
		LoadAvg15:    ping.LoadAvg15,
		NetBytesSent: ping.NetBytesSent,
		NetBytesRecv: ping.NetBytesRecv,
		SampleCount:  1,
	}
	if err := p.metrics.Insert(ctx, sample); err != nil {
		logger.Ingest().Error().Err(err).Str("instance_id", instanceID).Msg("failed to record heartbeat metric sample")
	}
	return nil
}

// Metrics appends a raw metric sample reported independently of a heartbeat.
func (p *Pipeline) Metrics(ctx context.Context, instanceID string, report protocol.MetricsReport) error {
	sample := &models.MetricSample{
		InstanceID:   instanceID,
		Timestamp:    time.Now().UTC(),
		Granularity:  "raw",
		CPUPercent:   report.CPUPercent,
		MemoryUsed:   report.MemoryUsed,
		MemoryTotal:  report.MemoryTotal,
		DiskUsed:     report.DiskUsed,
		DiskTotal:    report.DiskTotal,
		LoadAvg1:     report.LoadAvg1,
		LoadAvg5:     report.LoadAvg5,
		LoadAvg15:    report.LoadAvg15,
		NetBytesSent: report.NetBytesSent,
		NetBytesRecv: report.NetBytesRecv,
		SampleCount:  1,
	}
	return p.metrics.Insert(ctx, sample)
}

// Logs inserts every line of the batch in one transaction, stamping each
// with its own arrival timestamp and a fresh ID.
func (p *Pipeline) Logs(ctx context.Context, instanceID string, batch protocol.LogBatch) error {
	if len(batch.Lines) == 0 {
		return nil
	}
	now := time.Now().UTC()
	entries := make([]*models.LogEntry, 0, len(batch.Lines))
	for _, line := range batch.Lines {
		entries = append(entries, &models.LogEntry{
			ID:         uuid.NewString(),
			InstanceID: instanceID,
			Timestamp:  now,
			Level:      models.LogLevel(line.Level),
			Source:     models.LogSource(line.Source),
			Message:    line.Message,
			Metadata:   models.JSONMap(line.Metadata),
		})
	}
	return p.logs.InsertBatch(ctx, entries)
}

// Event records one lifecycle event against the instance that reported it,
// falling back to the envelope's instanceID-carrying link if the payload
// omits one.
func (p *Pipeline) Event(ctx context.Context, instanceID string, ev protocol.EventInstance) error {
	id := ev.InstanceID
	if id == "" {
		id = instanceID
	}
	event := &models.Event{
		ID:         uuid.NewString(),
		InstanceID: id,
		EventType:  models.EventType(ev.EventType),
		Timestamp:  time.Now().UTC(),
		Metadata:   models.JSONMap(ev.Metadata),
	}
	return p.events.Insert(ctx, event)
}
