// Package recorder writes audit records asynchronously so the request
// path never waits on the audit store.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Buffer is the size of the async write channel.
	// Default: 1000
	Buffer int

	// WriteTimeout bounds a single storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Buffer:       1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder enqueues audit records for background persistence.
//
// Each record gets one write attempt. A failed write is logged and
// dropped; audit durability never becomes an availability dependency
// for the primary function.
type Recorder struct {
	storage    audit.Storage
	config     *Config
	recordChan chan *audit.Record
	wg         sync.WaitGroup
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewRecorder creates a recorder and starts its background worker.
func NewRecorder(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *audit.Record, config.Buffer),
		logger:     slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder started",
		"buffer", config.Buffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record enqueues one audit record. Never blocks: when the buffer is
// full the record is dropped with a log line, and the caller's request
// is unaffected.
func (r *Recorder) Record(record *audit.Record) {
	select {
	case r.recordChan <- record:
	default:
		r.logger.Error("audit buffer full, dropping record",
			"request_id", record.RequestID,
			"model_id", record.ModelID,
		)
	}
}

// Close drains the queue and stops the worker. Records enqueued before
// Close are written; Record calls after Close panic, so stop the HTTP
// server first.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.recordChan)
	})
	r.wg.Wait()
}

// worker drains the channel, writing each record once.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for record := range r.recordChan {
		r.write(record)
	}
}

// write performs the single storage attempt for one record.
func (r *Recorder) write(record *audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Write(ctx, record); err != nil {
		r.logger.Error("audit write failed",
			"request_id", record.RequestID,
			"model_id", record.ModelID,
			"error", err,
		)
		return
	}

	r.logger.Debug("audit record written",
		"request_id", record.RequestID,
		"success", record.Success,
	)
}
