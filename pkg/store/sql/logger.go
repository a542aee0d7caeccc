package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// loggerAdaptor routes GORM's logging through the registry's logrus logger,
// so SQL traces and engine logs share one sink and level.
type loggerAdaptor struct {
	log *logrus.Logger
	cfg LoggerAdaptorConfig
}

type LoggerAdaptorConfig struct {
	// SlowThreshold promotes statements slower than this to warnings.
	// Zero disables slow logging.
	SlowThreshold time.Duration
	// IgnoreRecordNotFoundError drops ErrRecordNotFound traces; the engine
	// turns those into not-found contract errors itself.
	IgnoreRecordNotFoundError bool
}

//nolint:ireturn
func NewLoggerAdaptor(log *logrus.Logger, cfg LoggerAdaptorConfig) logger.Interface {
	return &loggerAdaptor{log: log, cfg: cfg}
}

// LogMode is a no-op; the logrus level is authoritative.
//
//nolint:ireturn
func (l *loggerAdaptor) LogMode(_ logger.LogLevel) logger.Interface {
	return l
}

func (l *loggerAdaptor) Info(ctx context.Context, format string, args ...interface{}) {
	l.log.WithContext(ctx).Infof(format, args...)
}

func (l *loggerAdaptor) Warn(ctx context.Context, format string, args ...interface{}) {
	l.log.WithContext(ctx).Warnf(format, args...)
}

func (l *loggerAdaptor) Error(ctx context.Context, format string, args ...interface{}) {
	l.log.WithContext(ctx).Errorf(format, args...)
}

func (l *loggerAdaptor) sqlEntry(
	ctx context.Context,
	elapsed time.Duration,
	fc func() (sql string, rowsAffected int64),
) *logrus.Entry {
	entry := l.log.WithContext(ctx)
	if fc == nil {
		return entry
	}

	sql, rows := fc()
	fields := logrus.Fields{
		"elapsed": fmt.Sprintf("%.3fms", float64(elapsed.Microseconds())/1e3),
		"rows":    rows,
		"sql":     sql,
	}
	if rows == -1 {
		fields["rows"] = "-"
	}

	return entry.WithFields(fields)
}

// Trace logs the SQL statement, affected row count and elapsed time.
// It implements the gorm.io/gorm/logger.Interface interface.
func (l *loggerAdaptor) Trace(
	ctx context.Context,
	begin time.Time,
	fc func() (sql string, rowsAffected int64),
	err error,
) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.cfg.IgnoreRecordNotFoundError):
		if l.log.IsLevelEnabled(logrus.ErrorLevel) {
			l.sqlEntry(ctx, elapsed, fc).WithError(err).Error("SQL error")
		}
	case l.cfg.SlowThreshold != 0 && elapsed > l.cfg.SlowThreshold:
		if l.log.IsLevelEnabled(logrus.WarnLevel) {
			l.sqlEntry(ctx, elapsed, fc).Warnf("SLOW SQL >= %v", l.cfg.SlowThreshold)
		}
	default:
		if l.log.IsLevelEnabled(logrus.DebugLevel) {
			l.sqlEntry(ctx, elapsed, fc).Debug("SQL trace")
		}
	}
}
