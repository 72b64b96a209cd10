package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attribution-cli/internal/model"
)

func TestSerial_SameWorkspaceRunsInOrder(t *testing.T) {
	s := NewSerial()
	gate := make(chan struct{})

	var mu sync.Mutex
	var order []int
	makeRun := func(n int) RunFunc {
		return func(ctx context.Context, workspaceID string) (*model.BatchStats, error) {
			if n == 0 {
				<-gate
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return &model.BatchStats{WorkspaceID: workspaceID}, nil
		}
	}

	for n := 0; n < 3; n++ {
		s.Submit(context.Background(), "ws1", makeRun(n))
	}

	// While the first run is held at the gate, the later ones stay queued.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	require.Empty(t, order)
	mu.Unlock()

	close(gate)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{0, 1, 2}, order)
	mu.Unlock()
}

func TestSerial_DistinctWorkspacesRunConcurrently(t *testing.T) {
	s := NewSerial()
	started := make(chan string, 2)
	release := make(chan struct{})

	run := func(ctx context.Context, workspaceID string) (*model.BatchStats, error) {
		started <- workspaceID
		<-release
		return &model.BatchStats{WorkspaceID: workspaceID}, nil
	}

	s.Submit(context.Background(), "ws1", run)
	s.Submit(context.Background(), "ws2", run)

	// Both runs must start while neither has finished.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ws := <-started:
			seen[ws] = true
		case <-time.After(time.Second):
			t.Fatal("second workspace never started; workspaces are serializing against each other")
		}
	}
	assert.True(t, seen["ws1"])
	assert.True(t, seen["ws2"])
	close(release)
}

func TestSerial_CanceledContextDropsQueued(t *testing.T) {
	s := NewSerial()
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	var mu sync.Mutex
	var ran []int

	s.Submit(ctx, "ws1", func(ctx context.Context, workspaceID string) (*model.BatchStats, error) {
		<-release
		mu.Lock()
		ran = append(ran, 0)
		mu.Unlock()
		return &model.BatchStats{}, nil
	})
	s.Submit(ctx, "ws1", func(ctx context.Context, workspaceID string) (*model.BatchStats, error) {
		mu.Lock()
		ran = append(ran, 1)
		mu.Unlock()
		return &model.BatchStats{}, nil
	})

	// Cancel while the first run is still in flight, then let it finish.
	cancel()
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) >= 1
	}, time.Second, 5*time.Millisecond)

	// The queued run saw the canceled context and never executed.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{0}, ran)
	mu.Unlock()
}

func TestSerial_FailureDoesNotBlockSuccessor(t *testing.T) {
	s := NewSerial()

	var mu sync.Mutex
	var ran []string

	s.Submit(context.Background(), "ws1", func(ctx context.Context, workspaceID string) (*model.BatchStats, error) {
		mu.Lock()
		ran = append(ran, "failing")
		mu.Unlock()
		return nil, eris.New("boom")
	})
	s.Submit(context.Background(), "ws1", func(ctx context.Context, workspaceID string) (*model.BatchStats, error) {
		mu.Lock()
		ran = append(ran, "after")
		mu.Unlock()
		return &model.BatchStats{}, nil
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"failing", "after"}, ran)
	mu.Unlock()
}
