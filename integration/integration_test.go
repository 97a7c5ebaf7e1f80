//go:build integration

package integration

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"collab-workspace-system/api/internal/app"
	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/inbound"
	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/repos"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/workspace"
	"collab-workspace-system/shared/actorx"
	"collab-workspace-system/shared/cachex"
	"collab-workspace-system/shared/config"
	"collab-workspace-system/shared/events"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/workflow"
)

type nopSink struct{}

func (nopSink) Publish(context.Context, string, []byte, []byte, map[string]string) error { return nil }

func postgresConfig(t *testing.T) config.Config {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	return config.Config{
		Env:                "dev",
		DatabaseURL:        dbURL,
		DBMaxConns:         4,
		DBAutoMigrate:      true,
		EventSource:        "workspace-service",
		EventSchemaVersion: "1.0",
		CommandMaxAttempts: 3,
		PublishTimeoutMS:   1000,
		BusDriver:          config.BusLog,
		DeadLetterTopic:    events.TopicDeadLetter,
		OutboxBatchSize:    50,
		OutboxMaxAttempts:  3,
	}
}

func TestPostgresLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rt, err := app.Build(ctx, postgresConfig(t), logx.Discard(), app.Options{Sink: nopSink{}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close()

	suffix := uuid.NewString()[:8]
	wsID, projID, taskID := "w-"+suffix, "p-"+suffix, "t-"+suffix
	as := actorx.WithActor(ctx, actorx.Actor{ID: "u1", Source: "test"})

	if _, err := rt.Commands.CreateWorkspace(as, workspace.CreateWorkspace{WorkspaceID: wsID, Title: "Ops"}); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	if _, err := rt.Commands.CreateProject(as, project.CreateProject{ProjectID: projID, WorkspaceID: wsID, Name: "Launch"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := rt.Commands.CreateTask(as, task.CreateTask{TaskID: taskID, ProjectID: projID, Title: "Ship"}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := rt.Commands.AssignTask(as, task.AssignTask{TaskID: taskID, UserID: "u2"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	u2 := actorx.WithActor(ctx, actorx.Actor{ID: "u2", Source: "test"})
	if _, err := rt.Commands.CompleteTask(u2, task.CompleteTask{TaskID: taskID}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	view, err := rt.Queries.FindTaskByID(ctx, taskID)
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if view.Status != workflow.TaskStatusCompleted || view.CompletedBy != "u2" {
		t.Fatalf("unexpected view %+v", view)
	}

	stream, err := rt.Events.Load(ctx, taskID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stream) != 3 {
		t.Fatalf("expected 3 task events, got %d", len(stream))
	}
	stale := stream[len(stream)-1]
	stale.Version = 2
	if _, err := rt.Events.Append(ctx, taskID, 1, []es.Event{stale}); !errors.Is(err, es.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict on stale append, got %v", err)
	}

	if rt.Outbox == nil {
		t.Fatalf("postgres runtime should carry an outbox")
	}
	claimed, err := rt.Outbox.ClaimPending(ctx, "integration-test", 100)
	if err != nil {
		t.Fatalf("claim outbox: %v", err)
	}
	if len(claimed) == 0 {
		t.Fatalf("expected outbox rows for the committed events")
	}
	if err := rt.Outbox.EnsurePending(ctx, claimed[0].EventID); err != nil {
		t.Fatalf("ensure pending: %v", err)
	}
	row, err := rt.Outbox.GetByID(ctx, claimed[0].EventID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if row.Status != repos.OutboxStatusPending || row.Attempts != 0 {
		t.Fatalf("row should be back to pending without an attempt, got %s/%d", row.Status, row.Attempts)
	}
}

func TestRedisInboxKeys(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cache, err := cachex.New(config.Config{RedisAddr: addr})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		t.Fatalf("redis ping: %v", err)
	}
	inbox := inbound.NewRedisInbox(cache, time.Minute)
	key := "it:" + uuid.NewString()
	defer func() { _ = cache.Delete(ctx, "inbox:"+key) }()
	if seen, err := inbox.Seen(ctx, key); err != nil || seen {
		t.Fatalf("fresh key should be unseen: %v %v", seen, err)
	}
	if err := inbox.Mark(ctx, key); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if seen, err := inbox.Seen(ctx, key); err != nil || !seen {
		t.Fatalf("marked key should be seen: %v %v", seen, err)
	}
}

func TestBrokersReachable(t *testing.T) {
	brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
	if strings.TrimSpace(brokers[0]) == "" {
		t.Skip("KAFKA_BROKERS not set")
	}
	if _, err := net.DialTimeout("tcp", strings.TrimSpace(brokers[0]), 2*time.Second); err != nil {
		t.Fatalf("kafka tcp check failed: %v", err)
	}

	asynqRedis := os.Getenv("ASYNQ_REDIS_ADDR")
	if asynqRedis == "" {
		t.Skip("ASYNQ_REDIS_ADDR not set")
	}
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: asynqRedis})
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		t.Fatalf("asynq inspector failed: %v", err)
	}
}
