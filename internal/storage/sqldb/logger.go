package sqldb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSlowThreshold marks queries worth a warning.
const DefaultSlowThreshold = 200 * time.Millisecond

// queryLogger sends gorm output to zap. Statements run inside a swap are
// short, so only failures and slow ones are logged above debug.
type queryLogger struct {
	log   *zap.Logger
	level logger.LogLevel
	slow  time.Duration
	// slowCount is shared between LogMode copies.
	slowCount *atomic.Uint64
}

func newQueryLogger(log *zap.Logger, level logger.LogLevel, slow time.Duration) *queryLogger {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return &queryLogger{log: log, level: level, slow: slow, slowCount: new(atomic.Uint64)}
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *queryLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.log.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.log.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	// lookups of absent pairs, balances and owners are normal
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		if l.level >= logger.Error {
			sql, rows := fc()
			l.log.Error("Query failed",
				zap.String("sql", sql),
				zap.Int64("rows", rows),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
		}
	case elapsed > l.slow:
		l.slowCount.Add(1)
		if l.level >= logger.Warn {
			sql, rows := fc()
			l.log.Warn("Slow query",
				zap.String("sql", sql),
				zap.Int64("rows", rows),
				zap.Duration("elapsed", elapsed),
				zap.Duration("threshold", l.slow))
		}
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.Debug("Query",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed))
	}
}

// SlowQueries reports how many statements exceeded the slow threshold.
func (l *queryLogger) SlowQueries() uint64 {
	return l.slowCount.Load()
}
