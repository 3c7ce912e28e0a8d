// Package datastore records audio stream sessions in SQLite or MySQL.
package datastore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
	"github.com/avhost/av/internal/observability/metrics"
)

const (
	// slowQueryThreshold is where the gorm adapter starts warning.
	slowQueryThreshold = 200 * time.Millisecond
	// writeTimeout bounds journal writes made from engine transitions.
	writeTimeout = 5 * time.Second
	// DefaultListLimit is used when ListSessions gets a non-positive limit.
	DefaultListLimit = 50
	// MaxListLimit caps a single listing.
	MaxListLimit = 1000
)

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// Journal persists stream sessions. It implements audiocore.SessionObserver
// so an engine can report opens and closes directly.
type Journal struct {
	db      *gorm.DB
	dbType  string
	metrics metrics.Recorder
	log     logger.Logger
}

var _ audiocore.SessionObserver = (*Journal)(nil)

// Open connects to the database named by settings and migrates the schema.
// rec may be nil.
func Open(settings conf.JournalSettings, rec metrics.Recorder) (*Journal, error) {
	if rec == nil {
		rec = metrics.NoOpRecorder{}
	}
	log := GetLogger().With(logger.String("db_type", settings.Type))

	dialector, info, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("db_type", settings.Type).
			Build()
	}

	j := &Journal{db: db, dbType: settings.Type, metrics: rec, log: log}
	if err := j.migrate(); err != nil {
		_ = j.Close()
		return nil, err
	}
	j.closeStale()

	log.Info("session journal opened", logger.String("location", info))
	return j, nil
}

// dialectorFor picks the gorm driver and returns a loggable location.
func dialectorFor(settings conf.JournalSettings) (gorm.Dialector, string, error) {
	switch settings.Type {
	case conf.JournalSQLite, "":
		path := settings.Path
		if path == "" {
			return nil, "", errors.Newf("journal: sqlite path is empty").
				Component("datastore").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("path", dir).
					Build()
			}
		}
		return sqlite.Open(path), path, nil
	case conf.JournalMySQL:
		if settings.DSN == "" {
			return nil, "", errors.Newf("journal: mysql dsn is empty").
				Component("datastore").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return mysql.Open(settings.DSN), "mysql", nil
	default:
		return nil, "", errors.Newf("journal: unsupported database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("db_type", settings.Type).
			Build()
	}
}

func (j *Journal) migrate() error {
	start := time.Now()
	err := j.db.AutoMigrate(&Session{})
	j.record(metrics.OpMigrate, start, err)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("db_type", j.dbType).
			Build()
	}
	return nil
}

// closeStale completes sessions left open by a previous process that did not
// shut down cleanly.
func (j *Journal) closeStale() {
	now := time.Now()
	res := j.db.Model(&Session{}).Where("closed_at IS NULL").Update("closed_at", now)
	if res.Error != nil {
		j.log.Warn("failed to close stale sessions", logger.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		j.log.Info("closed stale sessions", logger.Int64("count", res.RowsAffected))
	}
}

func (j *Journal) record(op string, start time.Time, err error) {
	j.metrics.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		j.metrics.RecordOperation(op, metrics.StatusError)
		j.metrics.RecordError(op, "db_error")
		return
	}
	j.metrics.RecordOperation(op, metrics.StatusSuccess)
}

// StreamOpened inserts a session row. Failures are logged, never returned,
// since the stream itself is healthy.
func (j *Journal) StreamOpened(info audiocore.StreamInfo) {
	if info.SessionID == "" {
		return
	}
	s := sessionFromInfo(info)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	start := time.Now()
	err := j.db.WithContext(ctx).Create(&s).Error
	j.record(metrics.OpSessionOpen, start, err)
	if err != nil {
		j.log.Error("failed to record session open",
			logger.String("session_id", s.ID),
			logger.Error(err))
	}
}

// StreamClosed completes the session row with the final counters.
func (j *Journal) StreamClosed(info audiocore.StreamInfo, stats audiocore.Stats) {
	if info.SessionID == "" {
		return
	}
	now := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	start := time.Now()
	res := j.db.WithContext(ctx).Model(&Session{ID: info.SessionID}).Updates(map[string]any{
		"closed_at":   now,
		"stream_time": info.StreamTime,
		"callbacks":   stats.Callbacks,
		"underruns":   stats.Underruns,
		"commands":    stats.Commands,
		"panics":      stats.Panics,
		"last_panic":  stats.LastPanic,
	})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = errors.Newf("journal: session %s was never recorded", info.SessionID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	j.record(metrics.OpSessionClose, start, err)
	if err != nil {
		j.log.Error("failed to record session close",
			logger.String("session_id", info.SessionID),
			logger.Error(err))
	}
}

// ListSessions returns the most recent sessions first.
func (j *Journal) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	start := time.Now()
	var sessions []Session
	err := j.db.WithContext(ctx).
		Order("opened_at DESC").
		Limit(limit).
		Find(&sessions).Error
	j.record(metrics.OpSessionList, start, err)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_sessions").
			Context("limit", limit).
			Build()
	}
	return sessions, nil
}

// GetSession looks up a single session by id.
func (j *Journal) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := j.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Newf("session %s not found", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("session_id", id).
			Build()
	case err != nil:
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_session").
			Build()
	}
	return &s, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "close").
			Build()
	}
	return sqlDB.Close()
}
