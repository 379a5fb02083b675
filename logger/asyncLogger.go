package logger

import (
	"time"

	"github.com/jinzhu/now"
	"gorm.io/gorm"

	logmodel "edulens-auth/models/log"
	"edulens-auth/types"
)

// AsyncLogger persists audit entries off the request path through a
// buffered channel, so a slow database write never delays a response.
type AsyncLogger struct {
	db            *gorm.DB
	channel       chan types.LogEntry
	retentionDays int
}

// NewAsyncLogger creates the audit logger. retentionDays bounds how long
// persisted entries are kept.
func NewAsyncLogger(db *gorm.DB, retentionDays int) *AsyncLogger {
	return &AsyncLogger{
		db:            db,
		channel:       make(chan types.LogEntry, 100),
		retentionDays: retentionDays,
	}
}

// Log queues an entry for persistence. Drops the entry when the buffer is
// full rather than blocking the request.
func (l *AsyncLogger) Log(entry types.LogEntry) {
	if l == nil {
		return
	}
	select {
	case l.channel <- entry:
	default:
		Warning("Audit log buffer full, dropping entry for " + entry.URL)
	}
}

// ProcessLog drains the channel into the database. Run as a goroutine.
func (l *AsyncLogger) ProcessLog() {
	for entry := range l.channel {
		rec := logmodel.AuthLog{
			Method:          entry.Method,
			URL:             entry.URL,
			RequestBody:     entry.RequestBody,
			RequestHeaders:  entry.RequestHeaders,
			ResponseBody:    entry.ResponseBody,
			ResponseHeaders: entry.ResponseHeaders,
			StatusCode:      entry.StatusCode,
			CreatedAt:       entry.CreatedAt,
		}
		if err := l.db.Create(&rec).Error; err != nil {
			Error("Failed to persist audit log entry", err)
		}
	}
}

// RunRetentionSweep deletes audit entries older than the retention window,
// once a day at day boundaries. Run as a goroutine.
func (l *AsyncLogger) RunRetentionSweep() {
	for {
		l.sweep()
		// Sleep until shortly after the next midnight.
		next := now.EndOfDay().Add(time.Minute)
		time.Sleep(time.Until(next))
	}
}

func (l *AsyncLogger) sweep() {
	cutoff := now.BeginningOfDay().AddDate(0, 0, -l.retentionDays)
	res := l.db.Where("created_at < ?", cutoff).Delete(&logmodel.AuthLog{})
	if res.Error != nil {
		Error("Audit log retention sweep failed", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		Printf("Audit log retention sweep removed %d entries", res.RowsAffected)
	}
}
