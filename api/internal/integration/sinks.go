package integration

import (
	"context"
	"log/slog"

	"collab-workspace-system/shared/logx"
)

// LogSink writes messages to the log instead of a broker. Used in dev when
// no bus is configured.
type LogSink struct {
	Logger logx.Logger
}

func (s LogSink) Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	s.Logger.Info(ctx, "integration_event", "integration event (log sink)",
		slog.String("topic", topic),
		slog.String("key", string(key)),
		slog.Any("headers", headers),
		slog.String("value", string(value)),
	)
	return nil
}
