// Package audit persists the append-only request trail. Writes are handed to
// a detached consumer goroutine; the request path only enqueues and never
// waits on the database.
package audit

import (
	"log/slog"
	"time"

	"github.com/clinicore/clinic-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry is one observed request/response pair, queued for persistence.
type Entry struct {
	UserID    *uuid.UUID
	Method    string
	Path      string
	Status    int
	ClientIP  string
	UserAgent string
}

const (
	queueSize     = 256
	batchSize     = 50
	flushInterval = 2 * time.Second
)

// Recorder consumes entries from a bounded queue and batches them into
// audit_logs. A full queue drops the entry with a local warning; a logging
// failure must never fail or delay the request that produced it.
type Recorder struct {
	db      *gorm.DB
	queue   chan Entry
	done    chan struct{}
	stopped chan struct{}
}

func NewRecorder(db *gorm.DB) *Recorder {
	r := &Recorder{
		db:      db,
		queue:   make(chan Entry, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.consume()
	return r
}

// Record enqueues an entry. Best-effort and non-blocking.
func (r *Recorder) Record(e Entry) {
	select {
	case r.queue <- e:
	default:
		slog.Warn("audit queue full, dropping entry", "method", e.Method, "path", e.Path)
	}
}

// Stop drains the queue, flushes, and waits for the consumer to exit.
func (r *Recorder) Stop() {
	close(r.done)
	<-r.stopped
}

func (r *Recorder) consume() {
	defer close(r.stopped)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]models.AuditLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.db.CreateInBatches(batch, batchSize).Error; err != nil {
			slog.Error("failed to persist audit logs", "error", err, "count", len(batch))
		}
		batch = batch[:0]
	}

	toRow := func(e Entry) models.AuditLog {
		return models.AuditLog{
			ID:        uuid.New(),
			UserID:    e.UserID,
			Method:    e.Method,
			Path:      e.Path,
			Status:    e.Status,
			ClientIP:  e.ClientIP,
			UserAgent: e.UserAgent,
			CreatedAt: time.Now(),
		}
	}

	for {
		select {
		case e := <-r.queue:
			batch = append(batch, toRow(e))
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			for {
				select {
				case e := <-r.queue:
					batch = append(batch, toRow(e))
				default:
					flush()
					return
				}
			}
		}
	}
}

// List returns recent entries, newest first, with optional before-timestamp
// pagination. Limit is capped at 500.
func List(db *gorm.DB, limit int, before *time.Time) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	q := db.Order("created_at DESC").Limit(limit)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}
	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
