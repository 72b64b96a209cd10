package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Serial queues runs per workspace: submissions for the same workspace
// execute one at a time in submission order, while distinct workspaces
// proceed independently. The webhook surface submits through it so repeated
// requests for one workspace never race each other; the fingerprint unique
// constraint remains the store-level backstop.
type Serial struct {
	mu   sync.Mutex
	tail map[string]chan struct{}
}

// NewSerial creates an empty serializer.
func NewSerial() *Serial {
	return &Serial{tail: make(map[string]chan struct{})}
}

// Submit queues one run and returns immediately. The run starts once every
// earlier submission for the same workspace has finished. Runs still
// waiting when ctx is canceled are dropped.
func (s *Serial) Submit(ctx context.Context, workspaceID string, run RunFunc) {
	s.mu.Lock()
	prev := s.tail[workspaceID]
	done := make(chan struct{})
	s.tail[workspaceID] = done
	s.mu.Unlock()

	go func() {
		defer func() {
			close(done)
			s.mu.Lock()
			if s.tail[workspaceID] == done {
				delete(s.tail, workspaceID)
			}
			s.mu.Unlock()
		}()

		log := zap.L().With(zap.String("workspace", workspaceID))

		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				log.Warn("scheduler: queued run dropped", zap.Error(ctx.Err()))
				return
			}
		}
		if ctx.Err() != nil {
			log.Warn("scheduler: queued run dropped", zap.Error(ctx.Err()))
			return
		}

		stats, err := run(ctx, workspaceID)
		if err != nil {
			log.Error("scheduler: workspace run failed", zap.Error(err))
			return
		}
		log.Info("scheduler: workspace run complete",
			zap.Int("processed", stats.Processed),
			zap.Int("action_links", stats.ActionLinks),
		)
	}()
}
