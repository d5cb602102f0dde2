package testhelpers

import (
	"context"
	"sync"
	"time"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/ports"
)

var (
	_ ports.ClassificationCapability = (*Capability)(nil)
	_ ports.SeenCache                = (*SeenCache)(nil)
	_ ports.CandidateSource          = (*Collector)(nil)
	_ ports.Notifier                 = (*Notifier)(nil)
	_ ports.Scheduler                = (*ManualScheduler)(nil)
)

// Capability answers classification requests with Fn.
type Capability struct {
	Fn func(req domain.ClassificationRequest) (domain.Suggestion, error)

	mu    sync.Mutex
	calls []domain.ClassificationRequest
}

func (c *Capability) Name() string { return "fake" }

func (c *Capability) Classify(ctx context.Context, req domain.ClassificationRequest) (domain.Suggestion, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.Suggestion{}, err
	}
	return c.Fn(req)
}

// Calls returns the requests received so far.
func (c *Capability) Calls() []domain.ClassificationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ClassificationRequest(nil), c.calls...)
}

// ByTitle answers with a fixed suggestion per item title.
func ByTitle(answers map[string]domain.Suggestion) func(domain.ClassificationRequest) (domain.Suggestion, error) {
	return func(req domain.ClassificationRequest) (domain.Suggestion, error) {
		return answers[req.Title], nil
	}
}

// SeenCache is an in-memory seen-cache.
type SeenCache struct {
	mu   sync.Mutex
	keys map[string]bool
	// Err is returned from every call when set.
	Err error
}

func NewSeenCache() *SeenCache { return &SeenCache{keys: make(map[string]bool)} }

func (c *SeenCache) Seen(_ context.Context, sourceID string, normalized []string) (map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	out := make(map[string]bool)
	for _, u := range normalized {
		if c.keys[newsKey(sourceID, u)] {
			out[u] = true
		}
	}
	return out, nil
}

func (c *SeenCache) Mark(_ context.Context, sourceID string, normalized []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	for _, u := range normalized {
		c.keys[newsKey(sourceID, u)] = true
	}
	return nil
}

func (c *SeenCache) Forget(_ context.Context, sourceID string, normalized []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	for _, u := range normalized {
		delete(c.keys, newsKey(sourceID, u))
	}
	return nil
}

// Has reports whether the pair is cached.
func (c *SeenCache) Has(sourceID, normalized string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[newsKey(sourceID, normalized)]
}

// Period is one CollectByPeriod call as the collector saw it.
type Period struct {
	SourceID   string
	Start, End time.Time
	Limit      int
}

// Collector returns canned scan results per source id.
type Collector struct {
	Results map[string]domain.ScanResult
	Errors  map[string]error
	// Block, when set, is waited on (or ctx) before answering.
	Block chan struct{}

	mu      sync.Mutex
	latest  []string
	periods []Period
}

func (c *Collector) CollectLatest(ctx context.Context, src domain.Source, limit int) (domain.ScanResult, error) {
	c.mu.Lock()
	c.latest = append(c.latest, src.ID)
	c.mu.Unlock()
	return c.answer(ctx, src.ID, limit)
}

func (c *Collector) CollectByPeriod(ctx context.Context, src domain.Source, start, end time.Time, limit int) (domain.ScanResult, error) {
	c.mu.Lock()
	c.periods = append(c.periods, Period{SourceID: src.ID, Start: start, End: end, Limit: limit})
	c.mu.Unlock()
	return c.answer(ctx, src.ID, limit)
}

func (c *Collector) answer(ctx context.Context, sourceID string, limit int) (domain.ScanResult, error) {
	if c.Block != nil {
		select {
		case <-c.Block:
		case <-ctx.Done():
		}
	}
	if err := c.Errors[sourceID]; err != nil {
		return domain.ScanResult{PagesFailed: 1}, err
	}
	result := c.Results[sourceID]
	if limit > 0 && len(result.Items) > limit {
		result.Items = result.Items[:limit]
	}
	return result, nil
}

// Latest returns the source ids scanned with CollectLatest.
func (c *Collector) Latest() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.latest...)
}

// Periods returns the CollectByPeriod calls.
func (c *Collector) Periods() []Period {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Period(nil), c.periods...)
}

// Notifier records published digests.
type Notifier struct {
	mu      sync.Mutex
	Digests []string
	Err     error
}

func (n *Notifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Digests = append(n.Digests, digest)
	return n.Err
}

// ManualScheduler captures the job so tests can fire it by hand.
type ManualScheduler struct {
	Job     func(time.Time)
	Stopped bool
}

func (m *ManualScheduler) Start(_ context.Context, job func(time.Time)) error {
	m.Job = job
	return nil
}

func (m *ManualScheduler) Stop(context.Context) error {
	m.Stopped = true
	return nil
}

// Candidate builds a candidate item for a source.
func Candidate(sourceID, title, url string) domain.CandidateItem {
	return domain.CandidateItem{SourceID: sourceID, Title: title, URL: url, Summary: title + " summary"}
}
