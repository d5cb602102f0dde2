package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NewsCurator/internal/domain"
)

// Mode selects between the latest listing and a date-bounded walk.
type Mode int

const (
	ModeLatest Mode = iota
	ModePeriod
)

func (m Mode) String() string {
	if m == ModePeriod {
		return "period"
	}
	return "latest"
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Source domain.Source
	Mode   Mode
	Start  time.Time
	End    time.Time
	Limit  int
}

// InPeriod reports whether t falls within [Start, end of End's day].
func (r Request) InPeriod(t *time.Time) bool {
	if r.Mode != ModePeriod {
		return true
	}
	if t == nil {
		return false
	}
	return !t.Before(r.Start) && !t.After(EndOfDay(r.End))
}

// EndOfDay returns the last instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// Scanner captures a single extraction strategy (selectors, feed, generic).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) (domain.ScanResult, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	mu       sync.RWMutex
	scanners map[string]Scanner
	fallback string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// SetFallback names the scanner used for unknown strategy names.
func (r *Registry) SetFallback(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = name
}

// Resolve returns a scanner by name, the fallback, or an error if neither is registered.
func (r *Registry) Resolve(name string) (Scanner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	if scanner, ok := r.scanners[r.fallback]; ok && r.fallback != "" {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered scanner names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	return names
}
