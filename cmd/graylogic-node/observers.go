package main

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-nodes/internal/api"
	"github.com/nerrad567/gray-logic-nodes/internal/boot"
	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-nodes/internal/inputlog"
)

// pruneInterval is how often old journal records are deleted.
const pruneInterval = time.Hour

// inputCounter is the telemetry surface the metrics observer needs.
type inputCounter interface {
	RecordInput(nodeID, property, result string)
}

// pruner deletes journal records older than a cutoff.
type pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type pruneLogger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// observers assembles the runner observers for the enabled components.
// Nil components are skipped.
func observers(journal *inputlog.Journal, influx *influxdb.Client, hub *api.Hub) []boot.Observer {
	var obs []boot.Observer
	if journal != nil {
		obs = append(obs, journal)
	}
	if influx != nil {
		obs = append(obs, metricsObserver(influx))
	}
	if hub != nil {
		obs = append(obs, hub)
	}
	return obs
}

// runJournal starts the journal writer and returns a function that stops
// it once the queued records are written.
func runJournal(j *inputlog.Journal) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

// metricsObserver counts every dispatched update by result.
func metricsObserver(c inputCounter) boot.Observer {
	return boot.ObserverFunc(func(_ context.Context, in boot.Input) {
		c.RecordInput(in.NodeID, in.Property, in.Result.String())
	})
}

// statsRecorder returns influx as a StatsRecorder, or nil when disabled.
func statsRecorder(influx *influxdb.Client) boot.StatsRecorder {
	if influx == nil {
		return nil
	}
	return influx
}

// pruneLoop trims the journal to retention now and then every pruneInterval.
func pruneLoop(ctx context.Context, p pruner, retention time.Duration, log pruneLogger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		pruneOnce(ctx, p, retention, time.Now(), log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneOnce(ctx context.Context, p pruner, retention time.Duration, now time.Time, log pruneLogger) {
	removed, err := p.Prune(ctx, now.Add(-retention))
	if err != nil {
		log.Warn("failed to prune input journal", "error", err)
		return
	}
	if removed > 0 {
		log.Info("input journal pruned", "removed", removed, "retention", retention.String())
	}
}
