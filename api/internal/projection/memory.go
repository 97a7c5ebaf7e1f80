package projection

import (
	"context"
	"sort"
	"sync"
)

type matcher[V any] interface {
	Match(V) bool
}

type memTable[V any, F matcher[V]] struct {
	mu   sync.RWMutex
	rows map[string]V
	meta func(V) row
}

func newMemTable[V any, F matcher[V]](meta func(V) row) *memTable[V, F] {
	return &memTable[V, F]{rows: map[string]V{}, meta: meta}
}

func (t *memTable[V, F]) Get(_ context.Context, id string) (V, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	return v, ok, nil
}

func (t *memTable[V, F]) Put(_ context.Context, v V) error {
	m := t.meta(v)
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.rows[m.ID]; ok && t.meta(cur).Version >= m.Version {
		return nil
	}
	t.rows[m.ID] = v
	return nil
}

func (t *memTable[V, F]) Find(_ context.Context, f F) ([]V, error) {
	t.mu.RLock()
	out := make([]V, 0)
	for _, v := range t.rows {
		if f.Match(v) {
			out = append(out, v)
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := t.meta(out[i]), t.meta(out[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (t *memTable[V, F]) reset() {
	t.mu.Lock()
	t.rows = map[string]V{}
	t.mu.Unlock()
}

type MemoryStore struct {
	workspaces *memTable[WorkspaceView, WorkspaceFilter]
	projects   *memTable[ProjectView, ProjectFilter]
	tasks      *memTable[TaskView, TaskFilter]
	users      *memTable[UserView, UserFilter]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces: newMemTable[WorkspaceView, WorkspaceFilter](workspaceRow),
		projects:   newMemTable[ProjectView, ProjectFilter](projectRow),
		tasks:      newMemTable[TaskView, TaskFilter](taskRow),
		users:      newMemTable[UserView, UserFilter](userRow),
	}
}

func (s *MemoryStore) Workspaces() Table[WorkspaceView, WorkspaceFilter] { return s.workspaces }
func (s *MemoryStore) Projects() Table[ProjectView, ProjectFilter]       { return s.projects }
func (s *MemoryStore) Tasks() Table[TaskView, TaskFilter]                { return s.tasks }
func (s *MemoryStore) Users() Table[UserView, UserFilter]                { return s.users }

func (s *MemoryStore) Reset(context.Context) error {
	s.workspaces.reset()
	s.projects.reset()
	s.tasks.reset()
	s.users.reset()
	return nil
}
