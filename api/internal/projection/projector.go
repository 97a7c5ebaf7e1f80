package projection

import (
	"context"
	"fmt"
	"log/slog"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/eventstore"
	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/api/internal/user"
	"collab-workspace-system/api/internal/workspace"
	"collab-workspace-system/shared/logx"
)

const defaultBatchSize = 500

// Projector folds committed events into the view store. It is safe to feed
// the same event twice: rows only move forward by version.
type Projector struct {
	store  Store
	events eventstore.Store
	logger logx.Logger
}

func NewProjector(store Store, events eventstore.Store, logger logx.Logger) *Projector {
	return &Projector{store: store, events: events, logger: logger}
}

func (p *Projector) Name() string { return "projection" }

func (p *Projector) Handle(ctx context.Context, evt es.Event) error {
	switch evt.AggregateType {
	case workspace.AggregateType:
		return apply(ctx, p, p.store.Workspaces(), workspace.Fold, workspaceRow, evt)
	case project.AggregateType:
		return apply(ctx, p, p.store.Projects(), project.Fold, projectRow, evt)
	case task.AggregateType:
		return apply(ctx, p, p.store.Tasks(), task.Fold, taskRow, evt)
	case user.AggregateType:
		return apply(ctx, p, p.store.Users(), user.Fold, userRow, evt)
	}
	return nil
}

func apply[V any, F any](ctx context.Context, p *Projector, table Table[V, F], fold func(V, es.Event) (V, error), meta func(V) row, evt es.Event) error {
	cur, ok, err := table.Get(ctx, evt.AggregateID)
	if err != nil {
		return err
	}
	var version int64
	if ok {
		version = meta(cur).Version
	}
	if evt.Version <= version {
		return nil
	}
	if evt.Version > version+1 {
		return repair(ctx, p, table, fold, evt, version)
	}
	next, err := fold(cur, evt)
	if err != nil {
		return fmt.Errorf("project %s v%d: %w", evt.AggregateID, evt.Version, err)
	}
	return table.Put(ctx, next)
}

// repair rebuilds a row from its stream when events were missed.
func repair[V any, F any](ctx context.Context, p *Projector, table Table[V, F], fold func(V, es.Event) (V, error), evt es.Event, have int64) error {
	p.logger.Warn(ctx, "projection_gap", "view behind event stream, replaying aggregate",
		slog.String("aggregate_type", evt.AggregateType),
		slog.String("aggregate_id", evt.AggregateID),
		slog.Int64("view_version", have),
		slog.Int64("event_version", evt.Version),
	)
	if p.events == nil {
		return fmt.Errorf("project %s: gap at v%d and no event store", evt.AggregateID, evt.Version)
	}
	stream, err := p.events.Load(ctx, evt.AggregateID)
	if err != nil {
		return err
	}
	var v V
	for _, e := range stream {
		if v, err = fold(v, e); err != nil {
			return fmt.Errorf("replay %s v%d: %w", e.AggregateID, e.Version, err)
		}
	}
	return table.Put(ctx, v)
}

// Rebuild drops every view and replays the whole log in global order.
func (p *Projector) Rebuild(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if err := p.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset views: %w", err)
	}
	var after int64
	applied := 0
	for {
		batch, err := p.events.ReadAll(ctx, after, batchSize)
		if err != nil {
			return applied, fmt.Errorf("read events after %d: %w", after, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, evt := range batch {
			if err := p.Handle(ctx, evt); err != nil {
				return applied, err
			}
			after = evt.GlobalSeq
			applied++
		}
	}
	p.logger.Info(ctx, "projection_rebuilt", "views rebuilt from event log", slog.Int("events", applied))
	return applied, nil
}
