package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/streamspace/fleetconsole/internal/models"
)

type InstanceDB struct {
	db *Database
}

func NewInstanceDB(database *Database) *InstanceDB {
	return &InstanceDB{db: database}
}

func (i *InstanceDB) Create(ctx context.Context, inst *models.Instance) error {
	_, err := i.db.DB().ExecContext(ctx, `
		INSERT INTO instances (id, name, provider, region, extensions, config_hash, ssh_endpoint, status, team_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		inst.ID, inst.Name, inst.Provider, inst.Region, inst.Extensions, inst.ConfigHash,
		inst.SSHEndpoint, inst.Status, inst.TeamID, inst.CreatedAt, inst.UpdatedAt,
	)
	return err
}

func (i *InstanceDB) Get(ctx context.Context, id string) (*models.Instance, error) {
	row := i.db.DB().QueryRowContext(ctx, `
		SELECT id, name, provider, region, extensions, config_hash, ssh_endpoint, status, team_id, created_at, updated_at
		FROM instances WHERE id = $1`, id)
	return scanInstance(row)
}

func (i *InstanceDB) List(ctx context.Context, teamID *string) ([]*models.Instance, error) {
	var rows *sql.Rows
	var err error
	if teamID != nil {
		rows, err = i.db.DB().QueryContext(ctx, `
			SELECT id, name, provider, region, extensions, config_hash, ssh_endpoint, status, team_id, created_at, updated_at
			FROM instances WHERE team_id = $1 ORDER BY name`, *teamID)
	} else {
		rows, err = i.db.DB().QueryContext(ctx, `
			SELECT id, name, provider, region, extensions, config_hash, ssh_endpoint, status, team_id, created_at, updated_at
			FROM instances ORDER BY name`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Instance
	for rows.Next() {
		inst, err := scanInstanceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// UpdateStatus is the only mutator for Instance.Status — callers must have
// already validated the transition with models.CanTransition.
func (i *InstanceDB) UpdateStatus(ctx context.Context, id string, status models.InstanceStatus) error {
	_, err := i.db.DB().ExecContext(ctx,
		`UPDATE instances SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

func (i *InstanceDB) UpdateConfig(ctx context.Context, id string, extensions models.ExtensionSlugs, configHash string) error {
	_, err := i.db.DB().ExecContext(ctx,
		`UPDATE instances SET extensions = $1, config_hash = $2, updated_at = now() WHERE id = $3`,
		extensions, configHash, id)
	return err
}

func (i *InstanceDB) UpdateSSHEndpoint(ctx context.Context, id string, endpoint *string) error {
	_, err := i.db.DB().ExecContext(ctx,
		`UPDATE instances SET ssh_endpoint = $1, updated_at = now() WHERE id = $2`, endpoint, id)
	return err
}

func (i *InstanceDB) Delete(ctx context.Context, id string) error {
	_, err := i.db.DB().ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, id)
	return err
}

func (i *InstanceDB) GetByName(ctx context.Context, name string) (*models.Instance, error) {
	row := i.db.DB().QueryRowContext(ctx, `
		SELECT id, name, provider, region, extensions, config_hash, ssh_endpoint, status, team_id, created_at, updated_at
		FROM instances WHERE name = $1`, name)
	return scanInstance(row)
}

func scanInstance(row *sql.Row) (*models.Instance, error) {
	inst := &models.Instance{}
	err := row.Scan(&inst.ID, &inst.Name, &inst.Provider, &inst.Region, &inst.Extensions,
		&inst.ConfigHash, &inst.SSHEndpoint, &inst.Status, &inst.TeamID, &inst.CreatedAt, &inst.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inst, err
}

func scanInstanceRows(rows *sql.Rows) (*models.Instance, error) {
	inst := &models.Instance{}
	err := rows.Scan(&inst.ID, &inst.Name, &inst.Provider, &inst.Region, &inst.Extensions,
		&inst.ConfigHash, &inst.SSHEndpoint, &inst.Status, &inst.TeamID, &inst.CreatedAt, &inst.UpdatedAt)
	return inst, err
}

// HeartbeatDB wraps the single-row-per-instance latest-vitals table.
type HeartbeatDB struct {
	db *Database
}

func NewHeartbeatDB(database *Database) *HeartbeatDB {
	return &HeartbeatDB{db: database}
}

// Upsert replaces the instance's latest heartbeat — there is exactly one row
// per instance, overwritten on every heartbeat:ping.
func (h *HeartbeatDB) Upsert(ctx context.Context, hb *models.Heartbeat) error {
	_, err := h.db.DB().ExecContext(ctx, `
		INSERT INTO heartbeats (instance_id, timestamp, cpu_percent, memory_used, memory_total,
			disk_used, disk_total, uptime_seconds, load_avg_1, load_avg_5, load_avg_15,
			net_bytes_sent, net_bytes_recv, process_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (instance_id) DO UPDATE SET
			timestamp = EXCLUDED.timestamp, cpu_percent = EXCLUDED.cpu_percent,
			memory_used = EXCLUDED.memory_used, memory_total = EXCLUDED.memory_total,
			disk_used = EXCLUDED.disk_used, disk_total = EXCLUDED.disk_total,
			uptime_seconds = EXCLUDED.uptime_seconds,
			load_avg_1 = EXCLUDED.load_avg_1, load_avg_5 = EXCLUDED.load_avg_5, load_avg_15 = EXCLUDED.load_avg_15,
			net_bytes_sent = EXCLUDED.net_bytes_sent, net_bytes_recv = EXCLUDED.net_bytes_recv,
			process_count = EXCLUDED.process_count`,
		hb.InstanceID, hb.Timestamp, hb.CPUPercent, hb.MemoryUsed, hb.MemoryTotal,
		hb.DiskUsed, hb.DiskTotal, hb.UptimeSeconds, hb.LoadAvg1, hb.LoadAvg5, hb.LoadAvg15,
		hb.NetBytesSent, hb.NetBytesRecv, hb.ProcessCount,
	)
	return err
}

func (h *HeartbeatDB) Get(ctx context.Context, instanceID string) (*models.Heartbeat, error) {
	row := h.db.DB().QueryRowContext(ctx, `
		SELECT instance_id, timestamp, cpu_percent, memory_used, memory_total, disk_used, disk_total,
			uptime_seconds, load_avg_1, load_avg_5, load_avg_15, net_bytes_sent, net_bytes_recv, process_count
		FROM heartbeats WHERE instance_id = $1`, instanceID)

	hb := &models.Heartbeat{}
	err := row.Scan(&hb.InstanceID, &hb.Timestamp, &hb.CPUPercent, &hb.MemoryUsed, &hb.MemoryTotal,
		&hb.DiskUsed, &hb.DiskTotal, &hb.UptimeSeconds, &hb.LoadAvg1, &hb.LoadAvg5, &hb.LoadAvg15,
		&hb.NetBytesSent, &hb.NetBytesRecv, &hb.ProcessCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return hb, err
}

// StaleInstanceIDs returns instance IDs whose last heartbeat is older than
// the given timestamp.
func (h *HeartbeatDB) StaleInstanceIDs(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := h.db.DB().QueryContext(ctx,
		`SELECT instance_id FROM heartbeats WHERE timestamp < $1`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
