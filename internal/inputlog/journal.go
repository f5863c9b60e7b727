package inputlog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-nodes/internal/boot"
)

// Journal defaults.
const (
	DefaultQueueSize = 256

	flushTimeout = 5 * time.Second
)

// Logger is the logging surface the journal needs.
type Logger interface {
	Warn(msg string, args ...any)
}

// Journal records every input a runner dispatched.
//
// ObserveInput only queues the record; Run performs the writes on its own
// goroutine so a slow or locked database never stalls the runner loop.
// Records arriving while the queue is full are dropped and counted.
type Journal struct {
	repo    Repository
	logger  Logger
	queue   chan *Record
	dropped atomic.Int64
}

// NewJournal creates a journal writing to repo. A queueSize below 1 uses
// DefaultQueueSize.
func NewJournal(repo Repository, logger Logger, queueSize int) *Journal {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Journal{
		repo:   repo,
		logger: logger,
		queue:  make(chan *Record, queueSize),
	}
}

// ObserveInput queues in for writing. It never blocks.
func (j *Journal) ObserveInput(_ context.Context, in boot.Input) {
	rec := &Record{
		NodeID:    in.NodeID,
		Property:  in.Property,
		Value:     in.Value,
		Result:    in.Result,
		Source:    in.Source,
		CreatedAt: in.At,
	}
	select {
	case j.queue <- rec:
	default:
		j.dropped.Add(1)
		j.logger.Warn("input journal queue full, dropping record",
			"node", in.NodeID,
			"property", in.Property,
		)
	}
}

// Run writes queued records until ctx is cancelled, then writes whatever
// is still queued and returns.
func (j *Journal) Run(ctx context.Context) {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case rec := <-j.queue:
			j.write(writeCtx, rec)
		case <-ctx.Done():
			j.flush()
			return
		}
	}
}

// Dropped returns the number of records lost to a full queue.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

func (j *Journal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for {
		select {
		case rec := <-j.queue:
			j.write(ctx, rec)
		default:
			return
		}
	}
}

// write stores rec. Failures are logged and otherwise ignored.
func (j *Journal) write(ctx context.Context, rec *Record) {
	if err := j.repo.Create(ctx, rec); err != nil {
		j.logger.Warn("failed to journal input",
			"node", rec.NodeID,
			"property", rec.Property,
			"error", err,
		)
	}
}

var _ boot.Observer = (*Journal)(nil)
