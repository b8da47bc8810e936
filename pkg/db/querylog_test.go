package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

func queryLogger(buf *bytes.Buffer, slow time.Duration) *QueryLogger {
	return NewQueryLogger(logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf}), slow)
}

func statement() (string, int64) {
	return "SELECT * FROM enrollments WHERE learner_id = 'x'", 3
}

func TestQueryLoggerSlowQuery(t *testing.T) {
	var buf bytes.Buffer
	q := queryLogger(&buf, 100*time.Millisecond)

	q.Trace(context.Background(), time.Now(), statement, nil)
	require.Zero(t, buf.Len())

	q.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	require.Contains(t, buf.String(), "slow query")
	require.Contains(t, buf.String(), "FROM enrollments")
}

func TestQueryLoggerFailures(t *testing.T) {
	var buf bytes.Buffer
	q := queryLogger(&buf, 0)

	q.Trace(context.Background(), time.Now(), statement, gorm.ErrRecordNotFound)
	require.Zero(t, buf.Len())

	q.Trace(context.Background(), time.Now(), statement, errors.New("relation does not exist"))
	require.Contains(t, buf.String(), "query failed")
	require.Contains(t, buf.String(), "relation does not exist")
}

func TestQueryLoggerSilent(t *testing.T) {
	var buf bytes.Buffer
	q := queryLogger(&buf, time.Millisecond).LogMode(gormlogger.Silent)

	q.Trace(context.Background(), time.Now().Add(-time.Second), statement, errors.New("boom"))
	require.Zero(t, buf.Len())
}
