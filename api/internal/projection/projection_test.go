package projection

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"collab-workspace-system/api/internal/dispatch"
	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/eventstore"
	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/user"
	"collab-workspace-system/api/internal/workspace"
	"collab-workspace-system/shared/logx"
)

var testNow = time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	events *eventstore.Memory
	views  *MemoryStore
	proj   *Projector
	d      *dispatch.Dispatcher
	q      *Queries
}

func newFixture(t *testing.T) *fixture {
	events := eventstore.NewMemory()
	views := NewMemoryStore()
	proj := NewProjector(views, events, logx.Discard())
	var n atomic.Int64
	d := dispatch.New(events, dispatch.NewBus(logx.Discard(), proj), logx.Discard(),
		dispatch.WithClock(func() time.Time { return testNow.Add(time.Duration(n.Load()) * time.Minute) }),
		dispatch.WithIDs(func() string { return fmt.Sprintf("e%d", n.Add(1)) }),
	)
	return &fixture{t: t, events: events, views: views, proj: proj, d: d, q: NewQueries(views)}
}

func run[S any](f *fixture, agg dispatch.Aggregate[S], cmd es.Command) {
	f.t.Helper()
	if _, err := dispatch.Execute(context.Background(), f.d, agg, cmd); err != nil {
		f.t.Fatalf("%s: %v", cmd.CommandName(), err)
	}
}

var (
	wsAgg   = dispatch.Aggregate[workspace.State]{Type: workspace.AggregateType, Fold: workspace.Fold, Decide: workspace.Decide}
	prAgg   = dispatch.Aggregate[project.State]{Type: project.AggregateType, Fold: project.Fold, Decide: project.Decide}
	tkAgg   = dispatch.Aggregate[task.State]{Type: task.AggregateType, Fold: task.Fold, Decide: task.Decide}
	userAgg = dispatch.Aggregate[user.State]{Type: user.AggregateType, Fold: user.Fold, Decide: user.Decide}
)

func (f *fixture) seed() {
	run(f, wsAgg, workspace.CreateWorkspace{WorkspaceID: "w1", Title: "Ops", OwnerID: "u1"})
	run(f, wsAgg, workspace.AddMember{WorkspaceID: "w1", UserID: "u2"})
	run(f, wsAgg, workspace.CreateWorkspace{WorkspaceID: "w2", Title: "Eng", OwnerID: "u3"})
	run(f, prAgg, project.CreateProject{ProjectID: "p1", WorkspaceID: "w1", Name: "Launch", OwnerID: "u1"})
	run(f, prAgg, project.CreateProject{ProjectID: "p2", WorkspaceID: "w1", Name: "Docs", OwnerID: "u2"})
	run(f, tkAgg, task.CreateTask{TaskID: "t1", WorkspaceID: "w1", ProjectID: "p1", Title: "A", Priority: "high"})
	run(f, tkAgg, task.CreateTask{TaskID: "t2", WorkspaceID: "w1", ProjectID: "p1", Title: "B", AssignedUserID: "u2"})
	run(f, tkAgg, task.CreateTask{TaskID: "t3", WorkspaceID: "w1", ProjectID: "p1", Title: "C",
		Recurrence: &task.RecurrenceRule{Type: "daily", Interval: 1}})
	run(f, tkAgg, task.DeleteTask{TaskID: "t3"})
	run(f, userAgg, user.RegisterUser{UserID: "u1", Email: "Ada@Example.com", Name: "Ada Lovelace", Role: "admin"})
	run(f, userAgg, user.RegisterUser{UserID: "u2", Email: "grace@example.com", Name: "Grace Hopper"})
	run(f, userAgg, user.DeactivateUser{UserID: "u2"})
}

func ids[V any](vs []V, meta func(V) row) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, meta(v).ID)
	}
	return out
}

func TestProjectionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed()
	ctx := context.Background()

	before, err := f.q.FindTaskByID(ctx, "t2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	stream, _ := f.events.Load(ctx, "t2")
	for _, evt := range stream {
		if err := f.proj.Handle(ctx, evt); err != nil {
			t.Fatalf("re-handle: %v", err)
		}
	}
	after, _ := f.q.FindTaskByID(ctx, "t2")
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("view changed on redelivery:\n%+v\n%+v", before, after)
	}
}

func TestProjectionRepairsGaps(t *testing.T) {
	events := eventstore.NewMemory()
	d := dispatch.New(events, dispatch.NewBus(logx.Discard()), logx.Discard())
	ctx := context.Background()
	for _, cmd := range []es.Command{
		task.CreateTask{TaskID: "t1", WorkspaceID: "w1", ProjectID: "p1", Title: "A"},
		task.AssignTask{TaskID: "t1", UserID: "u2"},
		task.ChangeTaskStatus{TaskID: "t1", Status: "in_progress"},
	} {
		if _, err := dispatch.Execute(ctx, d, tkAgg, cmd); err != nil {
			t.Fatalf("%s: %v", cmd.CommandName(), err)
		}
	}

	views := NewMemoryStore()
	proj := NewProjector(views, events, logx.Discard())
	stream, _ := events.Load(ctx, "t1")
	if err := proj.Handle(ctx, stream[2]); err != nil {
		t.Fatalf("handle: %v", err)
	}
	v, err := NewQueries(views).FindTaskByID(ctx, "t1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if v.Version != 3 || v.AssignedUserID != "u2" || v.Status != "in_progress" {
		t.Fatalf("unexpected repaired view %+v", v)
	}
}

func TestTaskFilters(t *testing.T) {
	f := newFixture(t)
	f.seed()
	ctx := context.Background()

	cases := []struct {
		name   string
		filter TaskFilter
		want   []string
	}{
		{"project", TaskFilter{ProjectID: "p1"}, []string{"t1", "t2"}},
		{"assignee", TaskFilter{AssignedUserID: "u2"}, []string{"t2"}},
		{"priority and project", TaskFilter{ProjectID: "p1", Priority: "high"}, []string{"t1"}},
		{"status", TaskFilter{Status: "completed"}, []string{}},
		{"deleted included", TaskFilter{ProjectID: "p1", IncludeDeleted: true}, []string{"t1", "t2", "t3"}},
		{"recurring live only", TaskFilter{RecurringOnly: true}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.q.FindTasks(ctx, tc.filter)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if gotIDs := ids(got, taskRow); !reflect.DeepEqual(gotIDs, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, gotIDs)
			}
		})
	}
}

func TestWorkspaceAndProjectFilters(t *testing.T) {
	f := newFixture(t)
	f.seed()
	ctx := context.Background()

	ws, _ := f.q.FindAllWorkspaces(ctx, WorkspaceFilter{MemberID: "u2"})
	if got := ids(ws, workspaceRow); !reflect.DeepEqual(got, []string{"w1"}) {
		t.Fatalf("member filter: %v", got)
	}
	archived := false
	ws, _ = f.q.FindAllWorkspaces(ctx, WorkspaceFilter{Archived: &archived})
	if len(ws) != 2 {
		t.Fatalf("expected 2 live workspaces, got %d", len(ws))
	}

	ps, _ := f.q.FindProjectsByWorkspace(ctx, "w1", ProjectFilter{OwnerID: "u2"})
	if got := ids(ps, projectRow); !reflect.DeepEqual(got, []string{"p2"}) {
		t.Fatalf("owner filter: %v", got)
	}
	ps, _ = f.q.FindProjectsByWorkspace(ctx, "w1", ProjectFilter{Status: "planning"})
	if len(ps) != 2 {
		t.Fatalf("expected 2 planning projects, got %d", len(ps))
	}
}

func TestUserQueries(t *testing.T) {
	f := newFixture(t)
	f.seed()
	ctx := context.Background()

	u, err := f.q.FindUserByEmail(ctx, "ada@EXAMPLE.com")
	if err != nil || u.ID != "u1" {
		t.Fatalf("by email: %+v %v", u, err)
	}
	if _, err := f.q.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, es.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	active := true
	us, _ := f.q.FindUsers(ctx, UserFilter{Active: &active})
	if got := ids(us, userRow); !reflect.DeepEqual(got, []string{"u1"}) {
		t.Fatalf("active filter: %v", got)
	}
	us, _ = f.q.FindUsers(ctx, UserFilter{NameContains: "HOPP"})
	if got := ids(us, userRow); !reflect.DeepEqual(got, []string{"u2"}) {
		t.Fatalf("name filter: %v", got)
	}
	us, _ = f.q.FindUsers(ctx, UserFilter{Role: "admin"})
	if len(us) != 1 {
		t.Fatalf("role filter: %d", len(us))
	}
}

func TestDeletedRowsAreNotFound(t *testing.T) {
	f := newFixture(t)
	f.seed()
	if _, err := f.q.FindTaskByID(context.Background(), "t3"); !errors.Is(err, es.ErrNotFound) {
		t.Fatalf("expected not found for deleted task, got %v", err)
	}
}

func TestRebuildMatchesLiveViews(t *testing.T) {
	f := newFixture(t)
	f.seed()
	ctx := context.Background()

	live, _ := f.q.FindTasks(ctx, TaskFilter{IncludeDeleted: true})
	n, err := f.proj.Rebuild(ctx, 2)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	all, _ := f.events.ReadAll(ctx, 0, 0)
	if n != len(all) {
		t.Fatalf("expected %d events replayed, got %d", len(all), n)
	}
	rebuilt, _ := f.q.FindTasks(ctx, TaskFilter{IncludeDeleted: true})
	if !reflect.DeepEqual(live, rebuilt) {
		t.Fatalf("rebuild differs from live views")
	}
}
