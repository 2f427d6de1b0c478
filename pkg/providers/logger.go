package providers

import (
	"context"
	"log/slog"

	"github.com/aretw0/pathflow/internal/logging"
	"github.com/aretw0/pathflow/pkg/domain"
)

// KeyLogger is the context key the Logger provider writes to.
const KeyLogger = "logger"

// Logger attaches a *slog.Logger scoped to the run and action.
type Logger struct {
	base *slog.Logger
}

// NewLogger creates a Logger provider. A nil base logs nowhere.
func NewLogger(base *slog.Logger) *Logger {
	if base == nil {
		base = logging.NewNop()
	}
	return &Logger{base: base}
}

func (l *Logger) Name() string { return "logger" }

func (l *Logger) Provide(ctx context.Context, rc *domain.Context, decl domain.Declaration, _ any) error {
	logger := l.base
	if info, ok := domain.RunInfoFrom(ctx); ok {
		logger = logging.ForRun(logger, info.Signal, info.RunID)
	}
	rc.SetTransient(KeyLogger, logger.With("action", decl.Name))
	return nil
}

// LoggerFrom returns the logger attached to rc, or a no-op logger.
func LoggerFrom(rc *domain.Context) *slog.Logger {
	if v, ok := rc.Get(KeyLogger); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return logging.NewNop()
}
