// Package analytics records task completion metrics as time series.
package analytics

import (
	"context"
	"time"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/task"
	"collab-workspace-system/shared/metricsx"
)

const measurementTaskCompletion = "task_completion"

// PointWriter is satisfied by influxx.Client.
type PointWriter interface {
	WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, ts time.Time) error
}

type CompletionRecorder struct {
	writer PointWriter
}

func NewCompletionRecorder(w PointWriter) *CompletionRecorder {
	return &CompletionRecorder{writer: w}
}

func (r *CompletionRecorder) Name() string { return "completion-analytics" }

func (r *CompletionRecorder) Handle(ctx context.Context, evt es.Event) error {
	if evt.Type != task.EventCompleted {
		return nil
	}
	var p task.CompletedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}
	tags := map[string]string{
		"project_id":   p.ProjectID,
		"workspace_id": p.WorkspaceID,
		"completed_by": p.CompletedBy,
	}
	if p.AssignedUserID != "" {
		tags["assignee"] = p.AssignedUserID
	}
	fields := map[string]any{
		"task_id": evt.AggregateID,
		"count":   1,
	}
	if p.DurationInMinutes != nil {
		fields["duration_minutes"] = *p.DurationInMinutes
	}
	if err := r.writer.WritePoint(ctx, measurementTaskCompletion, tags, fields, p.CompletedAt); err != nil {
		metricsx.IncInfluxWriteFailure()
		return err
	}
	return nil
}
