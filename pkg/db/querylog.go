package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

// QueryLogger routes gorm's statement log into the service logger so query lines carry the
// request fields already on ctx.
type QueryLogger struct {
	logg  *logger.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

func NewQueryLogger(logg *logger.Logger, slow time.Duration) *QueryLogger {
	return &QueryLogger{logg: logg, slow: slow, level: gormlogger.Warn}
}

func (q *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *q
	cp.level = level
	return &cp
}

func (q *QueryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *QueryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *QueryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.logg.Error(ctx, "gorm", fmt.Errorf(msg, args...))
	}
}

// Trace logs failed statements at debug since callers classify and report them, and slow
// ones at warn. Missing rows are normal control flow and never logged.
func (q *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent || q.logg == nil {
		return
	}
	took := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && took > q.slow
	if !failed && !slow {
		return
	}

	sql, rows := fc()
	fields := map[string]any{"sql": sql, "rows": rows, "duration_ms": took.Milliseconds()}
	if failed {
		fields["error"] = err.Error()
		q.logg.Debug(q.logg.WithFields(ctx, fields), "query failed")
		return
	}
	q.logg.Warn(q.logg.WithFields(ctx, fields), "slow query")
}
