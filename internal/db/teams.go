package db

import (
	"context"
	"database/sql"

	"github.com/streamspace/fleetconsole/internal/models"
)

type TeamDB struct {
	db *Database
}

func NewTeamDB(database *Database) *TeamDB {
	return &TeamDB{db: database}
}

func (t *TeamDB) Create(ctx context.Context, team *models.Team) error {
	_, err := t.db.DB().ExecContext(ctx,
		`INSERT INTO teams (id, name, slug, description, created_at) VALUES ($1,$2,$3,$4,$5)`,
		team.ID, team.Name, team.Slug, team.Description, team.CreatedAt,
	)
	return err
}

func (t *TeamDB) Get(ctx context.Context, id string) (*models.Team, error) {
	row := t.db.DB().QueryRowContext(ctx,
		`SELECT id, name, slug, description, created_at FROM teams WHERE id = $1`, id)
	team := &models.Team{}
	err := row.Scan(&team.ID, &team.Name, &team.Slug, &team.Description, &team.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return team, err
}

func (t *TeamDB) List(ctx context.Context) ([]*models.Team, error) {
	rows, err := t.db.DB().QueryContext(ctx, `SELECT id, name, slug, description, created_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Team
	for rows.Next() {
		team := &models.Team{}
		if err := rows.Scan(&team.ID, &team.Name, &team.Slug, &team.Description, &team.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, team)
	}
	return out, rows.Err()
}

func (t *TeamDB) AddMember(ctx context.Context, member *models.TeamMember) error {
	_, err := t.db.DB().ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, role, joined_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		member.TeamID, member.UserID, member.Role, member.JoinedAt,
	)
	return err
}

func (t *TeamDB) RemoveMember(ctx context.Context, teamID, userID string) error {
	_, err := t.db.DB().ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	return err
}

func (t *TeamDB) ListMembers(ctx context.Context, teamID string) ([]*models.TeamMember, error) {
	rows, err := t.db.DB().QueryContext(ctx,
		`SELECT team_id, user_id, role, joined_at FROM team_members WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TeamMember
	for rows.Next() {
		m := &models.TeamMember{}
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTeamsForUser returns every team the user belongs to — the basis for
// team-scoped RBAC checks.
func (t *TeamDB) ListTeamsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := t.db.DB().QueryContext(ctx,
		`SELECT team_id FROM team_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teamIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		teamIDs = append(teamIDs, id)
	}
	return teamIDs, rows.Err()
}

// UserBelongsToInstanceTeam reports whether userID is a member of the team
// that owns instanceID (or the instance is unowned — team_id IS NULL is
// treated as fleet-wide visible to all authenticated users).
func (t *TeamDB) UserBelongsToInstanceTeam(ctx context.Context, userID, instanceID string) (bool, error) {
	var belongs bool
	err := t.db.DB().QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM instances i
			LEFT JOIN team_members tm ON tm.team_id = i.team_id AND tm.user_id = $1
			WHERE i.id = $2 AND (i.team_id IS NULL OR tm.user_id IS NOT NULL)
		)`, userID, instanceID).Scan(&belongs)
	return belongs, err
}
