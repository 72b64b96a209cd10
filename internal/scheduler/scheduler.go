// Package scheduler coordinates attribution runs across workspaces. Run
// fans one batch out with bounded concurrency; Serial is the long-lived
// variant behind the webhook, queueing repeated runs for one workspace.
// Either way a workspace is processed by a single goroutine at a time, so
// per-workspace email order is preserved.
package scheduler

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/attribution-cli/internal/model"
)

// RunFunc processes every email in one workspace and returns its totals.
// The engine's ProcessWorkspace satisfies it.
type RunFunc func(ctx context.Context, workspaceID string) (*model.BatchStats, error)

// Result is the outcome for one workspace. Exactly one of Stats and Err is
// set.
type Result struct {
	WorkspaceID string
	Stats       *model.BatchStats
	Err         error
}

// Run processes the given workspaces with at most concurrency of them in
// flight at once. Duplicate ids collapse to a single run. A workspace
// failure is recorded in its Result and does not abort the others; the
// returned slice keeps the input order.
func Run(ctx context.Context, workspaceIDs []string, concurrency int, run RunFunc) []Result {
	workspaceIDs = dedupe(workspaceIDs)
	if len(workspaceIDs) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("scheduler: batch starting",
		zap.Int("workspaces", len(workspaceIDs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]Result, len(workspaceIDs))
	var succeeded, failed atomic.Int64

	for i, ws := range workspaceIDs {
		g.Go(func() error {
			log := zap.L().With(zap.String("workspace", ws))

			stats, err := run(gctx, ws)
			if err != nil {
				failed.Add(1)
				log.Error("scheduler: workspace failed", zap.Error(err))
				results[i] = Result{WorkspaceID: ws, Err: err}
				return nil // don't abort the batch on individual failure
			}

			succeeded.Add(1)
			results[i] = Result{WorkspaceID: ws, Stats: stats}
			return nil
		})
	}

	g.Wait() //nolint:errcheck // goroutines never return an error

	zap.L().Info("scheduler: batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}

// Failed reports how many results carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
