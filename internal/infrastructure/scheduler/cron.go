package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsCurator/internal/ports"
	"NewsCurator/pkg/logger"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("scheduler already started")

// CronScheduler fires the job on a standard 5-field cron expression or an
// @descriptor such as @hourly.
// Overlapping ticks are skipped while the previous job still runs.
type CronScheduler struct {
	expr     string
	location *time.Location
	parser   cron.Parser
	logger   cron.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler validates the expression and returns an unstarted scheduler.
func NewCronScheduler(expr string, location *time.Location, log *slog.Logger) (*CronScheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(expr); err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CronScheduler{
		expr:     expr,
		location: location,
		parser:   parser,
		logger:   cron.PrintfLogger(logger.NewPrintf(log, "cron")),
	}, nil
}

// Start registers job and starts the cron loop. The loop stops with ctx.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return ErrAlreadyStarted
	}

	runner := cron.New(
		cron.WithParser(c.parser),
		cron.WithLocation(c.location),
		cron.WithLogger(c.logger),
		cron.WithChain(cron.Recover(c.logger), cron.SkipIfStillRunning(c.logger)),
	)
	if _, err := runner.AddFunc(c.expr, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("register job: %w", err)
	}
	runner.Start()
	c.cron = runner

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Next reports the next fire time after now; zero when not started.
func (c *CronScheduler) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron == nil {
		return time.Time{}
	}
	entries := c.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the cron loop and waits for a running job until ctx is done.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()
	if runner == nil {
		return nil
	}

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
