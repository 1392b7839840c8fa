package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/winddownhq/winddown/internal/app/system"
	"github.com/winddownhq/winddown/pkg/logger"
)

// Sampler periodically refreshes the gauge metrics that describe the process
// and the database pool. It runs on a cron schedule so operators can tune the
// cadence without code changes.
type Sampler struct {
	db       *sql.DB
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	proc    *process.Process
	running bool
}

var _ system.Service = (*Sampler)(nil)

// NewSampler creates a sampler. db may be nil when the service runs on the
// in-memory backend; pool gauges are skipped in that case.
func NewSampler(db *sql.DB, schedule string, log *logger.Logger) *Sampler {
	if log == nil {
		log = logger.NewDefault("metrics-sampler")
	}
	if schedule == "" {
		schedule = "@every 15s"
	}
	return &Sampler{
		db:       db,
		schedule: schedule,
		log:      log,
	}
}

func (s *Sampler) Name() string { return "metrics-sampler" }

// Start schedules periodic sampling and records one sample immediately.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("attach process sampler: %w", err)
	}
	s.proc = proc

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.sample(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	s.running = true

	s.sample(ctx)
	s.log.WithField("schedule", s.schedule).Info("metrics sampler started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sample to finish.
func (s *Sampler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sampler) sample(ctx context.Context) {
	if s.db != nil {
		SetDBStats(s.db.Stats())
	}
	if s.proc == nil {
		return
	}

	cpuPct, err := s.proc.CPUPercentWithContext(ctx)
	if err != nil {
		s.log.WithError(err).Debug("cpu sample failed")
		return
	}
	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		s.log.WithError(err).Debug("memory sample failed")
		return
	}
	SetProcessStats(cpuPct, mem.RSS)
}
