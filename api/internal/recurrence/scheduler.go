// Package recurrence materializes the next occurrence of recurring tasks.
package recurrence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/shared/actorx"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/metricsx"
)

const (
	DefaultInterval  = 60 * time.Second
	DefaultLookahead = time.Hour
	actorSource      = "recurrence-scheduler"
)

var occurrenceNamespace = uuid.MustParse("a3c0d1f4-5e7b-4c2a-8f90-1b2c3d4e5f60")

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Locker guards a run across processes. lockx.Mutex implements it.
type Locker interface {
	TryLock(ctx context.Context) (func(context.Context) error, bool, error)
}

type TaskSource interface {
	FindRecurringTasks(ctx context.Context) ([]task.State, error)
}

type TaskCommands interface {
	CreateTask(ctx context.Context, cmd task.CreateTask) (task.State, error)
	RecordOccurrence(ctx context.Context, cmd task.RecordOccurrence) (task.State, error)
	SetRecurrence(ctx context.Context, cmd task.SetRecurrence) (task.State, error)
}

type Report struct {
	Scanned   int
	Generated int
	Failed    int
	// Stopped counts series ended because their project is gone.
	Stopped int
	// Skipped is set when another run held the lock.
	Skipped bool
}

type Scheduler struct {
	source    TaskSource
	commands  TaskCommands
	clock     Clock
	interval  time.Duration
	lookahead time.Duration
	newTicker func(time.Duration) Ticker
	locker    Locker
	logger    logx.Logger

	running sync.Mutex
}

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(s *Scheduler) { s.newTicker = fn }
}

func WithLocker(l Locker) Option { return func(s *Scheduler) { s.locker = l } }

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLookahead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lookahead = d
		}
	}
}

func New(source TaskSource, commands TaskCommands, logger logx.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:    source,
		commands:  commands,
		clock:     ClockFunc(func() time.Time { return time.Now().UTC() }),
		interval:  DefaultInterval,
		lookahead: DefaultLookahead,
		newTicker: func(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks immediately and then on every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.newTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error(ctx, "recurrence_tick_failed", "recurrence scan failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
	}
}

// Tick performs one scan. It returns a skipped report when a run is
// already in progress here or in another process.
func (s *Scheduler) Tick(ctx context.Context) (Report, error) {
	if !s.running.TryLock() {
		return Report{Skipped: true}, nil
	}
	defer s.running.Unlock()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			return Report{}, err
		}
		if !ok {
			return Report{Skipped: true}, nil
		}
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	start := time.Now()
	defer func() { metricsx.ObserveRecurrenceRun(time.Since(start)) }()

	tasks, err := s.source.FindRecurringTasks(ctx)
	if err != nil {
		return Report{}, err
	}
	ctx = actorx.WithSystem(ctx, actorSource)
	now := s.clock.Now().UTC()
	report := Report{Scanned: len(tasks)}
	for _, t := range tasks {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		outcome, err := s.generate(ctx, t, now)
		if err != nil {
			report.Failed++
			s.logger.Error(ctx, "recurrence_generate_failed", "failed to generate occurrence",
				slog.String("task_id", t.ID),
				slog.String("error_code", string(es.KindOf(err))),
				slog.String("error", err.Error()),
			)
			continue
		}
		switch outcome {
		case outcomeGenerated:
			report.Generated++
		case outcomeStopped:
			report.Stopped++
		}
	}
	if report.Generated > 0 || report.Stopped > 0 {
		s.logger.Info(ctx, "recurrence_tick", "recurring tasks generated",
			slog.Int("scanned", report.Scanned),
			slog.Int("generated", report.Generated),
			slog.Int("stopped", report.Stopped),
		)
	}
	return report, nil
}

// NextOccurrence returns the occurrence that follows t and whether it is
// still inside the series and not generated yet.
func NextOccurrence(t task.State, now time.Time) (time.Time, bool) {
	if t.Recurrence == nil || t.Deleted {
		return time.Time{}, false
	}
	base := now
	if t.Deadline != nil {
		base = *t.Deadline
	}
	next := t.Recurrence.Next(base)
	if t.Recurrence.Ended(next) {
		return next, false
	}
	if t.LastGeneratedOccurrence != nil && !next.After(*t.LastGeneratedOccurrence) {
		return next, false
	}
	return next, true
}

// OccurrenceID is stable per series and occurrence, so a repeated attempt
// hits the existing task instead of creating a duplicate.
func OccurrenceID(seriesID string, occurrence time.Time) string {
	return uuid.NewSHA1(occurrenceNamespace, []byte(seriesID+"|"+occurrence.UTC().Format(time.RFC3339))).String()
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeGenerated
	outcomeStopped
)

func (s *Scheduler) generate(ctx context.Context, t task.State, now time.Time) (outcome, error) {
	next, ok := NextOccurrence(t, now)
	if !ok || next.After(now.Add(s.lookahead)) {
		return outcomeNone, nil
	}

	series := t.RecurrenceSourceID
	if series == "" {
		series = t.ID
	}
	rule := *t.Recurrence
	result := outcomeGenerated
	_, err := s.commands.CreateTask(ctx, task.CreateTask{
		TaskID:             OccurrenceID(series, next),
		WorkspaceID:        t.WorkspaceID,
		ProjectID:          t.ProjectID,
		Title:              t.Title,
		Description:        t.Description,
		Priority:           t.Priority,
		Deadline:           &next,
		Recurrence:         &rule,
		Tags:               t.Tags,
		Categories:         t.Categories,
		CreatedBy:          actorx.SystemID,
		RecurrenceSourceID: series,
	})
	switch {
	case errors.Is(err, es.ErrAlreadyExists):
		// Created by an earlier run; only the marker is missing.
		result = outcomeNone
	case errors.Is(err, es.ErrAlreadyDeleted), errors.Is(err, es.ErrNotFound):
		return s.stop(ctx, t, err)
	case err != nil:
		return outcomeNone, err
	}

	_, err = s.commands.RecordOccurrence(ctx, task.RecordOccurrence{TaskID: t.ID, Occurrence: next})
	if err != nil && !errors.Is(err, es.ErrInvalidTransition) {
		return result, err
	}
	if result == outcomeGenerated {
		metricsx.IncRecurrenceGenerated()
	}
	return result, nil
}

// stop clears the rule of a template whose project no longer exists.
func (s *Scheduler) stop(ctx context.Context, t task.State, cause error) (outcome, error) {
	if _, err := s.commands.SetRecurrence(ctx, task.SetRecurrence{TaskID: t.ID}); err != nil {
		return outcomeNone, errors.Join(cause, err)
	}
	s.logger.Info(ctx, "recurrence_series_stopped", "project gone, recurrence cleared",
		slog.String("task_id", t.ID),
		slog.String("project_id", t.ProjectID),
		slog.String("reason", cause.Error()),
	)
	return outcomeStopped, nil
}
