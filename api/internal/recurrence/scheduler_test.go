package recurrence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"collab-workspace-system/api/internal/app"
	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/projection"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/workspace"
	"collab-workspace-system/shared/actorx"
	"collab-workspace-system/shared/config"
	"collab-workspace-system/shared/logx"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { close(f.stopped) }

type discardSink struct{}

func (discardSink) Publish(context.Context, string, []byte, []byte, map[string]string) error {
	return nil
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T, clock *fakeClock) *app.Runtime {
	t.Helper()
	cfg := config.Config{
		EventSource:        "workspace-service",
		EventSchemaVersion: "1.0",
		CommandMaxAttempts: 3,
		BusDriver:          config.BusLog,
	}
	rt, err := app.Build(context.Background(), cfg, logx.Discard(), app.Options{Sink: discardSink{}, Clock: clock.Now})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(rt.Close)

	ctx := actorx.WithActor(context.Background(), actorx.Actor{ID: "u1", Source: "test"})
	if _, err := rt.Commands.CreateWorkspace(ctx, workspace.CreateWorkspace{WorkspaceID: "w1", Title: "Ops"}); err != nil {
		t.Fatalf("workspace: %v", err)
	}
	if _, err := rt.Commands.CreateProject(ctx, project.CreateProject{ProjectID: "p1", WorkspaceID: "w1", Name: "Rota"}); err != nil {
		t.Fatalf("project: %v", err)
	}
	deadline := base
	end := base.AddDate(0, 0, 3)
	_, err = rt.Commands.CreateTask(ctx, task.CreateTask{
		TaskID:      "t1",
		WorkspaceID: "w1",
		ProjectID:   "p1",
		Title:       "Standup notes",
		Deadline:    &deadline,
		Recurrence:  &task.RecurrenceRule{Type: task.RecurrenceDaily, Interval: 1, EndDate: &end},
		Tags:        []string{"daily"},
	})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	return rt
}

func deadlines(t *testing.T, rt *app.Runtime) []time.Time {
	t.Helper()
	tasks, err := rt.Queries.FindTasksByProject(context.Background(), "p1", projection.TaskFilter{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	var out []time.Time
	for _, v := range tasks {
		if v.RecurrenceSourceID == "" {
			continue
		}
		out = append(out, *v.Deadline)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func TestDailySeriesStopsBeforeEndDate(t *testing.T) {
	clock := &fakeClock{now: base.Add(-time.Hour)}
	rt := setup(t, clock)
	s := New(rt.Queries, rt.Commands, logx.Discard(), WithClock(clock))
	ctx := context.Background()

	steps := []time.Time{
		base,
		base.AddDate(0, 0, 1).Add(-30 * time.Minute),
		base.AddDate(0, 0, 1),
		base.AddDate(0, 0, 2).Add(-30 * time.Minute),
		base.AddDate(0, 0, 2).Add(time.Hour),
		base.AddDate(0, 0, 3).Add(-30 * time.Minute),
		base.AddDate(0, 0, 10),
	}
	for _, at := range steps {
		clock.Set(at)
		for i := 0; i < 3; i++ {
			if _, err := s.Tick(ctx); err != nil {
				t.Fatalf("tick at %s: %v", at, err)
			}
		}
	}

	got := deadlines(t, rt)
	want := []time.Time{base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)}
	if len(got) != len(want) {
		t.Fatalf("expected occurrences %v, got %v", want, got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("occurrence %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestTickOutsideLookaheadGeneratesNothing(t *testing.T) {
	clock := &fakeClock{now: base}
	rt := setup(t, clock)
	s := New(rt.Queries, rt.Commands, logx.Discard(), WithClock(clock))

	clock.Set(base.AddDate(0, 0, 1).Add(-61 * time.Minute))
	report, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Scanned != 1 || report.Generated != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestTemplateRecordsMarkerAndClonesCopyFields(t *testing.T) {
	clock := &fakeClock{now: base}
	rt := setup(t, clock)
	s := New(rt.Queries, rt.Commands, logx.Discard(), WithClock(clock))
	next := base.AddDate(0, 0, 1)
	clock.Set(next.Add(-10 * time.Minute))

	report, err := s.Tick(context.Background())
	if err != nil || report.Generated != 1 {
		t.Fatalf("tick: %+v %v", report, err)
	}
	tmpl, err := rt.Queries.FindTaskByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if tmpl.LastGeneratedOccurrence == nil || !tmpl.LastGeneratedOccurrence.Equal(next) {
		t.Fatalf("expected marker %s, got %v", next, tmpl.LastGeneratedOccurrence)
	}
	clone, err := rt.Queries.FindTaskByID(context.Background(), OccurrenceID("t1", next))
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.Title != "Standup notes" || clone.RecurrenceSourceID != "t1" || clone.AssignedUserID != "" {
		t.Fatalf("unexpected clone %+v", clone)
	}
	if clone.Recurrence == nil || len(clone.Tags) != 1 || clone.CreatedBy != actorx.SystemID {
		t.Fatalf("clone lost fields: %+v", clone)
	}
}

func TestNextOccurrence(t *testing.T) {
	end := base.AddDate(0, 0, 3)
	rule := &task.RecurrenceRule{Type: task.RecurrenceDaily, Interval: 1, EndDate: &end}
	d := base
	marker := base.AddDate(0, 0, 1)
	cases := []struct {
		name string
		in   task.State
		ok   bool
	}{
		{"no rule", task.State{Deadline: &d}, false},
		{"due", task.State{Deadline: &d, Recurrence: rule}, true},
		{"marker covers", task.State{Deadline: &d, Recurrence: rule, LastGeneratedOccurrence: &marker}, false},
		{"deleted", task.State{Deadline: &d, Recurrence: rule, Deleted: true}, false},
		{"at end date", task.State{Deadline: ptr(base.AddDate(0, 0, 2)), Recurrence: rule}, false},
	}
	for _, tc := range cases {
		if _, ok := NextOccurrence(tc.in, base); ok != tc.ok {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.ok, ok)
		}
	}
}

func TestOccurrenceIDStable(t *testing.T) {
	a := OccurrenceID("t1", base)
	if a != OccurrenceID("t1", base.In(time.FixedZone("x", 3600))) {
		t.Fatalf("expected same id for same instant")
	}
	if a == OccurrenceID("t1", base.Add(time.Second)) || a == OccurrenceID("t2", base) {
		t.Fatalf("expected different ids")
	}
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) FindRecurringTasks(context.Context) ([]task.State, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

func TestTickDoesNotOverlap(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(src, nil, logx.Discard())

	done := make(chan Report)
	go func() {
		r, _ := s.Tick(context.Background())
		done <- r
	}()
	<-src.entered

	r, err := s.Tick(context.Background())
	if err != nil || !r.Skipped {
		t.Fatalf("expected skipped run, got %+v %v", r, err)
	}
	close(src.release)
	if first := <-done; first.Skipped {
		t.Fatalf("first run should not be skipped")
	}
}

type stubLocker struct {
	ok       bool
	err      error
	released int
}

func (l *stubLocker) TryLock(context.Context) (func(context.Context) error, bool, error) {
	return func(context.Context) error { l.released++; return nil }, l.ok, l.err
}

type emptySource struct{ calls int }

func (e *emptySource) FindRecurringTasks(context.Context) ([]task.State, error) {
	e.calls++
	return nil, nil
}

func TestTickRespectsDistributedLock(t *testing.T) {
	src := &emptySource{}
	held := &stubLocker{ok: false}
	s := New(src, nil, logx.Discard(), WithLocker(held))
	r, err := s.Tick(context.Background())
	if err != nil || !r.Skipped || src.calls != 0 {
		t.Fatalf("expected skip while lock held elsewhere: %+v %v", r, err)
	}

	free := &stubLocker{ok: true}
	s = New(src, nil, logx.Discard(), WithLocker(free))
	if _, err := s.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if src.calls != 1 || free.released != 1 {
		t.Fatalf("expected one scan and release, got %d %d", src.calls, free.released)
	}

	broken := &stubLocker{err: errors.New("redis down")}
	s = New(src, nil, logx.Discard(), WithLocker(broken))
	if _, err := s.Tick(context.Background()); err == nil {
		t.Fatalf("expected lock error")
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	src := &emptySource{}
	ticker := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	s := New(src, nil, logx.Discard(), WithTicker(func(time.Duration) Ticker { return ticker }))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	ticker.ch <- base
	ticker.ch <- base
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	<-ticker.stopped
	if src.calls < 2 {
		t.Fatalf("expected at least 2 scans, got %d", src.calls)
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestArchivedProjectKeepsMarker(t *testing.T) {
	clock := &fakeClock{now: base}
	rt := setup(t, clock)
	ctx := actorx.WithActor(context.Background(), actorx.Actor{ID: "u1", Source: "test"})
	if _, err := rt.Commands.ArchiveProject(ctx, project.ArchiveProject{ProjectID: "p1"}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	s := New(rt.Queries, rt.Commands, logx.Discard(), WithClock(clock))

	clock.Set(base.AddDate(0, 0, 1).Add(-30 * time.Minute))
	report, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Generated != 0 || report.Failed != 1 {
		t.Fatalf("expected one failure and nothing generated, got %+v", report)
	}
	tmpl, err := rt.Queries.FindTaskByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tmpl.LastGeneratedOccurrence != nil {
		t.Fatalf("marker must not move when no clone was created, got %v", tmpl.LastGeneratedOccurrence)
	}
	if got := deadlines(t, rt); len(got) != 0 {
		t.Fatalf("expected no clones, got %v", got)
	}
}

func TestExistingCloneOnlyRecordsMarker(t *testing.T) {
	clock := &fakeClock{now: base}
	rt := setup(t, clock)
	next := base.AddDate(0, 0, 1)
	ctx := actorx.WithActor(context.Background(), actorx.Actor{ID: "u1", Source: "test"})
	if _, err := rt.Commands.CreateTask(ctx, task.CreateTask{TaskID: OccurrenceID("t1", next), ProjectID: "p1", Title: "Standup notes", Deadline: &next, RecurrenceSourceID: "t1"}); err != nil {
		t.Fatalf("pre-create clone: %v", err)
	}
	s := New(rt.Queries, rt.Commands, logx.Discard(), WithClock(clock))

	clock.Set(next.Add(-30 * time.Minute))
	report, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Generated != 0 || report.Failed != 0 {
		t.Fatalf("expected the clone to count as generated earlier, got %+v", report)
	}
	tmpl, err := rt.Queries.FindTaskByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tmpl.LastGeneratedOccurrence == nil || !tmpl.LastGeneratedOccurrence.Equal(next) {
		t.Fatalf("expected marker %s, got %v", next, tmpl.LastGeneratedOccurrence)
	}
}

func TestDeletedProjectStopsSeries(t *testing.T) {
	clock := &fakeClock{now: base}
	rt := setup(t, clock)
	ctx := actorx.WithActor(context.Background(), actorx.Actor{ID: "u1", Source: "test"})
	if _, err := rt.Commands.DeleteProject(ctx, project.DeleteProject{ProjectID: "p1"}); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	s := New(rt.Queries, rt.Commands, logx.Discard(), WithClock(clock))

	clock.Set(base.AddDate(0, 0, 1).Add(-30 * time.Minute))
	report, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Stopped != 1 || report.Failed != 0 {
		t.Fatalf("expected the series stopped, got %+v", report)
	}
	tmpl, err := rt.Queries.FindTaskByID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tmpl.Recurrence != nil {
		t.Fatalf("expected recurrence cleared, got %+v", tmpl.Recurrence)
	}

	report, err = s.Tick(context.Background())
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if report.Scanned != 0 || report.Failed != 0 {
		t.Fatalf("stopped series must not be scanned again, got %+v", report)
	}
}
