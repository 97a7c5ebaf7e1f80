package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS workspace_views (
	id         TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	deleted    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	owner_id   TEXT NOT NULL,
	member_ids TEXT[] NOT NULL DEFAULT '{}',
	archived   BOOLEAN NOT NULL DEFAULT FALSE,
	data       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS workspace_views_members_idx ON workspace_views USING GIN (member_ids);

CREATE TABLE IF NOT EXISTS project_views (
	id           TEXT PRIMARY KEY,
	version      BIGINT NOT NULL,
	deleted      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL,
	workspace_id TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	archived     BOOLEAN NOT NULL DEFAULT FALSE,
	data         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS project_views_workspace_idx ON project_views (workspace_id);

CREATE TABLE IF NOT EXISTS task_views (
	id               TEXT PRIMARY KEY,
	version          BIGINT NOT NULL,
	deleted          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	project_id       TEXT NOT NULL,
	workspace_id     TEXT NOT NULL,
	assigned_user_id TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	priority         TEXT NOT NULL,
	recurring        BOOLEAN NOT NULL DEFAULT FALSE,
	data             JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS task_views_project_idx ON task_views (project_id);
CREATE INDEX IF NOT EXISTS task_views_recurring_idx ON task_views (recurring) WHERE recurring AND NOT deleted;

CREATE TABLE IF NOT EXISTS user_views (
	id         TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	deleted    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	email      TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	data       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS user_views_email_idx ON user_views (lower(email));
`

type pgTable[V any, F any] struct {
	pool    *pgxpool.Pool
	name    string
	meta    func(V) row
	columns func(V) map[string]any
	where   func(F) squirrel.And
}

func (t *pgTable[V, F]) Get(ctx context.Context, id string) (V, bool, error) {
	var v V
	query, args, err := squirrel.Select("data").From(t.name).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return v, false, err
	}
	var raw []byte
	if err := t.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return v, false, nil
		}
		return v, false, fmt.Errorf("get %s %s: %w", t.name, id, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s %s: %w", t.name, id, err)
	}
	return v, true, nil
}

func (t *pgTable[V, F]) Put(ctx context.Context, v V) error {
	m := t.meta(v)
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	cols := []string{"id", "version", "deleted", "created_at", "data"}
	vals := []any{m.ID, m.Version, m.Deleted, m.CreatedAt, data}
	extra := t.columns(v)
	for _, name := range slices.Sorted(maps.Keys(extra)) {
		cols = append(cols, name)
		vals = append(vals, extra[name])
	}
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, c+" = EXCLUDED."+c)
	}

	query, args, err := squirrel.Insert(t.name).Columns(cols...).Values(vals...).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ") +
			" WHERE " + t.name + ".version < EXCLUDED.version").
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return err
	}
	if _, err := t.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("put %s %s: %w", t.name, m.ID, err)
	}
	return nil
}

func (t *pgTable[V, F]) Find(ctx context.Context, f F) ([]V, error) {
	query, args, err := squirrel.Select("data").From(t.name).
		Where(t.where(f)).
		OrderBy("created_at", "id").
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := t.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", t.name, err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", t.name, err)
	}
	out := make([]V, 0, len(raws))
	for _, raw := range raws {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t.name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// PostgresStore keeps each view as JSONB plus the columns its filters use.
type PostgresStore struct {
	pool       *pgxpool.Pool
	workspaces *pgTable[WorkspaceView, WorkspaceFilter]
	projects   *pgTable[ProjectView, ProjectFilter]
	tasks      *pgTable[TaskView, TaskFilter]
	users      *pgTable[UserView, UserFilter]
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		workspaces: &pgTable[WorkspaceView, WorkspaceFilter]{
			pool: pool, name: "workspace_views", meta: workspaceRow,
			columns: func(v WorkspaceView) map[string]any {
				members := v.MemberIDs
				if members == nil {
					members = []string{}
				}
				return map[string]any{"owner_id": v.OwnerID, "member_ids": members, "archived": v.Archived}
			},
			where: workspaceWhere,
		},
		projects: &pgTable[ProjectView, ProjectFilter]{
			pool: pool, name: "project_views", meta: projectRow,
			columns: func(v ProjectView) map[string]any {
				return map[string]any{"workspace_id": v.WorkspaceID, "owner_id": v.OwnerID, "status": v.Status, "archived": v.Archived}
			},
			where: projectWhere,
		},
		tasks: &pgTable[TaskView, TaskFilter]{
			pool: pool, name: "task_views", meta: taskRow,
			columns: func(v TaskView) map[string]any {
				return map[string]any{
					"project_id":       v.ProjectID,
					"workspace_id":     v.WorkspaceID,
					"assigned_user_id": v.AssignedUserID,
					"status":           v.Status,
					"priority":         v.Priority,
					"recurring":        v.Recurrence != nil,
				}
			},
			where: taskWhere,
		},
		users: &pgTable[UserView, UserFilter]{
			pool: pool, name: "user_views", meta: userRow,
			columns: func(v UserView) map[string]any {
				return map[string]any{"email": v.Email, "name": v.Name, "role": v.Role, "active": v.Active}
			},
			where: userWhere,
		},
	}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgSchema)
	return err
}

func (s *PostgresStore) Workspaces() Table[WorkspaceView, WorkspaceFilter] { return s.workspaces }
func (s *PostgresStore) Projects() Table[ProjectView, ProjectFilter]       { return s.projects }
func (s *PostgresStore) Tasks() Table[TaskView, TaskFilter]                { return s.tasks }
func (s *PostgresStore) Users() Table[UserView, UserFilter]                { return s.users }

func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE workspace_views, project_views, task_views, user_views`)
	return err
}

func notDeleted(include bool) squirrel.And {
	if include {
		return squirrel.And{}
	}
	return squirrel.And{squirrel.Eq{"deleted": false}}
}

func workspaceWhere(f WorkspaceFilter) squirrel.And {
	w := notDeleted(f.IncludeDeleted)
	if f.OwnerID != "" {
		w = append(w, squirrel.Eq{"owner_id": f.OwnerID})
	}
	if f.MemberID != "" {
		w = append(w, squirrel.Expr("? = ANY(member_ids)", f.MemberID))
	}
	if f.Archived != nil {
		w = append(w, squirrel.Eq{"archived": *f.Archived})
	}
	return w
}

func projectWhere(f ProjectFilter) squirrel.And {
	w := notDeleted(f.IncludeDeleted)
	if f.WorkspaceID != "" {
		w = append(w, squirrel.Eq{"workspace_id": f.WorkspaceID})
	}
	if f.OwnerID != "" {
		w = append(w, squirrel.Eq{"owner_id": f.OwnerID})
	}
	if f.Status != "" {
		w = append(w, squirrel.Eq{"status": f.Status})
	}
	if f.Archived != nil {
		w = append(w, squirrel.Eq{"archived": *f.Archived})
	}
	return w
}

func taskWhere(f TaskFilter) squirrel.And {
	w := notDeleted(f.IncludeDeleted)
	eq := [][2]string{
		{"project_id", f.ProjectID},
		{"workspace_id", f.WorkspaceID},
		{"assigned_user_id", f.AssignedUserID},
		{"status", f.Status},
		{"priority", f.Priority},
	}
	for _, c := range eq {
		if c[1] != "" {
			w = append(w, squirrel.Eq{c[0]: c[1]})
		}
	}
	if f.RecurringOnly {
		w = append(w, squirrel.Eq{"recurring": true})
	}
	return w
}

func userWhere(f UserFilter) squirrel.And {
	w := notDeleted(f.IncludeDeleted)
	if f.Role != "" {
		w = append(w, squirrel.Eq{"role": f.Role})
	}
	if f.Active != nil {
		w = append(w, squirrel.Eq{"active": *f.Active})
	}
	if f.Email != "" {
		w = append(w, squirrel.Eq{"lower(email)": strings.ToLower(f.Email)})
	}
	if f.NameContains != "" {
		w = append(w, squirrel.ILike{"name": "%" + escapeLike(f.NameContains) + "%"})
	}
	return w
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
