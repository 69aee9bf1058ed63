package main

import (
	"context"
	"log"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/publish"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/web"
)

// snapshotSink fans one acquisition tick out to the web status, websocket
// listeners and MQTT. MQTT runs on its own goroutine behind a one-slot
// latest-value queue so a slow broker never holds up bus polling. A failing
// broker is logged on transitions only.
type snapshotSink struct {
	status  *web.Status
	bc      *web.Broadcaster
	pub     *publish.Publisher
	pending chan gnss.Snapshot

	failing bool
}

func newSnapshotSink(status *web.Status, bc *web.Broadcaster, pub *publish.Publisher) *snapshotSink {
	return &snapshotSink{status: status, bc: bc, pub: pub, pending: make(chan gnss.Snapshot, 1)}
}

func (s *snapshotSink) handle(snap gnss.Snapshot, now time.Time) {
	s.status.MarkTick(now)
	s.bc.Publish(snap)
	if s.pub == nil {
		return
	}
	select {
	case s.pending <- snap:
		return
	default:
	}
	// Replace the queued snapshot the publisher has not picked up yet.
	select {
	case <-s.pending:
	default:
	}
	select {
	case s.pending <- snap:
	default:
	}
}

// run publishes queued snapshots until ctx is done.
func (s *snapshotSink) run(ctx context.Context) {
	if s.pub == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.pending:
			s.publish(snap)
		}
	}
}

func (s *snapshotSink) publish(snap gnss.Snapshot) {
	err := s.pub.PublishSnapshot(snap)
	switch {
	case err != nil && !s.failing:
		log.Printf("gnss-logger: publish failed: %v", err)
		s.failing = true
	case err == nil && s.failing:
		log.Printf("gnss-logger: publish recovered")
		s.failing = false
	}
}

// teeRecorder hands every raw chunk to each recorder in turn and returns the
// first error.
type teeRecorder []gnss.Recorder

func (t teeRecorder) Record(p []byte) error {
	var first error
	for _, r := range t {
		if err := r.Record(p); err != nil && first == nil {
			first = err
		}
	}
	return first
}
