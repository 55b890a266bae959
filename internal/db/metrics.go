package db

import (
	"context"
	"time"

	"github.com/streamspace/fleetconsole/internal/models"
)

// MetricDB wraps the append-only metric_samples table that backs every
// granularity (raw samples are tagged "raw"; rollups are tagged "1m", "5m",
// "1h", "1d").
type MetricDB struct {
	db *Database
}

func NewMetricDB(database *Database) *MetricDB {
	return &MetricDB{db: database}
}

func (m *MetricDB) Insert(ctx context.Context, s *models.MetricSample) error {
	_, err := m.db.DB().ExecContext(ctx, `
		INSERT INTO metric_samples (instance_id, timestamp, granularity, cpu_percent, memory_used,
			memory_total, disk_used, disk_total, load_avg_1, load_avg_5, load_avg_15,
			net_bytes_sent, net_bytes_recv, sample_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		s.InstanceID, s.Timestamp, s.Granularity, s.CPUPercent, s.MemoryUsed, s.MemoryTotal,
		s.DiskUsed, s.DiskTotal, s.LoadAvg1, s.LoadAvg5, s.LoadAvg15, s.NetBytesSent, s.NetBytesRecv, s.SampleCount,
	)
	return err
}

// Range returns samples of the given granularity between [from, to], ordered
// by timestamp — the caller (internal/tsquery) enforces the 500-point cap
// before calling, by choosing granularity from the requested window.
func (m *MetricDB) Range(ctx context.Context, instanceID, granularity string, from, to time.Time) ([]*models.MetricSample, error) {
	rows, err := m.db.DB().QueryContext(ctx, `
		SELECT instance_id, timestamp, granularity, cpu_percent, memory_used, memory_total,
			disk_used, disk_total, load_avg_1, load_avg_5, load_avg_15, net_bytes_sent, net_bytes_recv, sample_count
		FROM metric_samples
		WHERE instance_id = $1 AND granularity = $2 AND timestamp BETWEEN $3 AND $4
		ORDER BY timestamp`, instanceID, granularity, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.MetricSample
	for rows.Next() {
		s := &models.MetricSample{}
		if err := rows.Scan(&s.InstanceID, &s.Timestamp, &s.Granularity, &s.CPUPercent, &s.MemoryUsed,
			&s.MemoryTotal, &s.DiskUsed, &s.DiskTotal, &s.LoadAvg1, &s.LoadAvg5, &s.LoadAvg15,
			&s.NetBytesSent, &s.NetBytesRecv, &s.SampleCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountInWindow reports how many raw samples exist for instanceID with a
// timestamp at or after since.
func (m *MetricDB) CountInWindow(ctx context.Context, instanceID string, since time.Time) (int, error) {
	var count int
	err := m.db.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM metric_samples WHERE instance_id = $1 AND granularity = 'raw' AND timestamp >= $2`,
		instanceID, since).Scan(&count)
	return count, err
}

// LogEntryDB wraps log_entries.
type LogEntryDB struct {
	db *Database
}

func NewLogEntryDB(database *Database) *LogEntryDB {
	return &LogEntryDB{db: database}
}

func (l *LogEntryDB) InsertBatch(ctx context.Context, entries []*models.LogEntry) error {
	tx, err := l.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO log_entries (id, instance_id, timestamp, level, source, message, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.InstanceID, e.Timestamp, e.Level, e.Source, e.Message, e.Metadata); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (l *LogEntryDB) Tail(ctx context.Context, instanceID string, limit int) ([]*models.LogEntry, error) {
	rows, err := l.db.DB().QueryContext(ctx, `
		SELECT id, instance_id, timestamp, level, source, message, metadata
		FROM log_entries WHERE instance_id = $1 ORDER BY timestamp DESC LIMIT $2`, instanceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LogEntry
	for rows.Next() {
		e := &models.LogEntry{}
		if err := rows.Scan(&e.ID, &e.InstanceID, &e.Timestamp, &e.Level, &e.Source, &e.Message, &e.Metadata); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventDB wraps the events table (deploy/backup/connect/... lifecycle log).
type EventDB struct {
	db *Database
}

func NewEventDB(database *Database) *EventDB {
	return &EventDB{db: database}
}

func (e *EventDB) Insert(ctx context.Context, ev *models.Event) error {
	_, err := e.db.DB().ExecContext(ctx,
		`INSERT INTO events (id, instance_id, event_type, timestamp, metadata) VALUES ($1,$2,$3,$4,$5)`,
		ev.ID, ev.InstanceID, ev.EventType, ev.Timestamp, ev.Metadata,
	)
	return err
}

func (e *EventDB) ListForInstance(ctx context.Context, instanceID string, limit int) ([]*models.Event, error) {
	rows, err := e.db.DB().QueryContext(ctx, `
		SELECT id, instance_id, event_type, timestamp, metadata
		FROM events WHERE instance_id = $1 ORDER BY timestamp DESC LIMIT $2`, instanceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		ev := &models.Event{}
		if err := rows.Scan(&ev.ID, &ev.InstanceID, &ev.EventType, &ev.Timestamp, &ev.Metadata); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
