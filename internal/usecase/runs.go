package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/metrics"
)

type activeRun struct {
	info   domain.RunInfo
	cancel context.CancelFunc
}

// RunRegistry tracks in-flight runs so they can be listed and cancelled.
type RunRegistry struct {
	mu   sync.Mutex
	runs map[string]*activeRun
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]*activeRun)}
}

// Begin registers a run and returns its cancellable context and a release func.
// An empty runID gets a fresh UUID.
func (r *RunRegistry) Begin(ctx context.Context, runID, step string) (context.Context, string, func(), error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[runID]; exists {
		return nil, "", nil, fmt.Errorf("%w: %s", domain.ErrRunInProgress, runID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.runs[runID] = &activeRun{
		info:   domain.RunInfo{RunID: runID, Step: step, StartedAt: time.Now().UTC()},
		cancel: cancel,
	}
	metrics.RunsInFlight.Inc()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.runs, runID)
			r.mu.Unlock()
			cancel()
			metrics.RunsInFlight.Dec()
		})
	}
	return runCtx, runID, release, nil
}

// Cancel stops the run; false when no such run is active.
func (r *RunRegistry) Cancel(runID string) bool {
	r.mu.Lock()
	run, ok := r.runs[runID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	run.cancel()
	return true
}

// List returns the active runs, oldest first.
func (r *RunRegistry) List() []domain.RunInfo {
	r.mu.Lock()
	out := make([]domain.RunInfo, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
