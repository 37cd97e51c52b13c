// Package scheduler runs recurring recon jobs declared in configuration.
// Each job fires on a standard five-field cron expression and runs one scan,
// subdomain enumeration or host sweep. Only the latest outcome of every job
// is kept, in memory.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/reconnoiter/internal/config"
	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/recon"
	"github.com/anstrom/reconnoiter/internal/workers"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// DefaultMaxConcurrent bounds how many jobs run at the same time.
const DefaultMaxConcurrent = 2

// Runner executes recon operations. *recon.Scanner satisfies it.
type Runner interface {
	ScanTargetPorts(ctx context.Context, target string, ports []int) (*recon.ScanResult, error)
	DiscoverSubdomains(ctx context.Context, domain string, wordlist []string) ([]string, error)
	PingSweep(ctx context.Context, cidr string) ([]string, error)
}

// Outcome is the result of one job run.
type Outcome struct {
	RunID      uuid.UUID         `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   recon.Duration    `json:"duration"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Scan       *recon.ScanResult `json:"scan,omitempty"`
	Subdomains []string          `json:"subdomains,omitempty"`
	LiveHosts  []string          `json:"live_hosts,omitempty"`
}

// ScheduledJob represents a scheduled job wrapper.
type ScheduledJob struct {
	ID      uuid.UUID
	CronID  cron.EntryID
	Config  config.ScheduleConfig
	LastRun time.Time
	Running bool
	Last    *Outcome
}

// JobStatus is a point-in-time copy of a job, safe to hand to callers.
type JobStatus struct {
	ID      uuid.UUID  `json:"id"`
	Name    string     `json:"name"`
	Cron    string     `json:"cron"`
	Kind    string     `json:"kind"`
	Target  string     `json:"target"`
	Running bool       `json:"running"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
	Last    *Outcome   `json:"last_outcome,omitempty"`
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMaxConcurrent bounds concurrent job runs.
func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) { s.maxConcurrent = n }
}

// Scheduler manages scheduled recon jobs.
type Scheduler struct {
	runner        Runner
	cron          *cron.Cron
	pool          *workers.Pool
	jobs          map[string]*ScheduledJob
	mu            sync.RWMutex
	running       bool
	ctx           context.Context
	cancel        context.CancelFunc
	inflight      sync.WaitGroup
	maxConcurrent int

	metrics metrics.Recorder
	logger  *logging.Logger
}

// New registers schedules with a cron parser. Schedules are expected to have
// passed config validation, but cron expressions are parsed again here so a
// Scheduler is never built with a job that cannot fire.
func New(runner Runner, schedules []config.ScheduleConfig, opts ...Option) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:        runner,
		jobs:          make(map[string]*ScheduledJob, len(schedules)),
		ctx:           ctx,
		cancel:        cancel,
		maxConcurrent: DefaultMaxConcurrent,
		metrics:       metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	s.logger = s.logger.WithComponent("scheduler")
	s.cron = cron.New(cron.WithLogger(cronLogger{s.logger}))

	var err error
	if s.pool, err = workers.New(workers.Config{Name: "scheduler", Size: s.maxConcurrent}); err != nil {
		cancel()
		return nil, errors.WrapConfigError(errors.CodeValidation, "Invalid scheduler concurrency", err)
	}

	for _, sc := range schedules {
		if err := s.add(sc); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(sc config.ScheduleConfig) error {
	if _, exists := s.jobs[sc.Name]; exists {
		return errors.NewConfigFieldError(errors.CodeValidation, "Duplicate schedule name", "schedules.name", sc.Name)
	}
	schedule, err := cron.ParseStandard(sc.Cron)
	if err != nil {
		cfgErr := errors.ErrConfigInvalid("schedules.cron", sc.Cron)
		cfgErr.Cause = err
		return cfgErr
	}

	name := sc.Name
	cronID := s.cron.Schedule(schedule, cron.FuncJob(func() { s.execute(name) }))
	s.jobs[name] = &ScheduledJob{
		ID:     uuid.New(),
		CronID: cronID,
		Config: sc,
	}

	s.logger.Debug("Added scheduled job",
		"name", sc.Name,
		"kind", sc.Kind,
		"cron", sc.Cron,
		"target", sc.Target)
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler has been stopped")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts the cron clock, cancels in-flight runs and waits for them to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.cancel()
	s.mu.Unlock()

	if wasRunning {
		<-s.cron.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns every job sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, s.status(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Job returns the named job.
func (s *Scheduler) Job(name string) (JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	if !ok {
		return JobStatus{}, false
	}
	return s.status(job), true
}

// status must be called with s.mu held.
func (s *Scheduler) status(job *ScheduledJob) JobStatus {
	st := JobStatus{
		ID:      job.ID,
		Name:    job.Config.Name,
		Cron:    job.Config.Cron,
		Kind:    job.Config.Kind,
		Target:  job.Config.Target,
		Running: job.Running,
		Last:    job.Last,
	}
	if !job.LastRun.IsZero() {
		lastRun := job.LastRun
		st.LastRun = &lastRun
	}
	if s.running {
		if next := s.cron.Entry(job.CronID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

// Trigger starts the named job now, outside its schedule. It returns once
// the run has been claimed; the run itself continues in the background.
func (s *Scheduler) Trigger(name string) error {
	job, err := s.claim(name)
	if err != nil {
		return err
	}
	go func() {
		defer s.inflight.Done()
		s.run(job)
	}()
	return nil
}

// execute is the cron callback.
func (s *Scheduler) execute(name string) {
	job, err := s.claim(name)
	if err != nil {
		if errors.IsCode(err, errors.CodeConflict) {
			s.logger.Warn("Scheduled job is still running, skipping", "name", name)
			s.metrics.IncrementScheduledRuns(name, StatusSkipped)
		}
		return
	}
	defer s.inflight.Done()
	s.run(job)
}

// claim marks the job running so overlapping firings are skipped. A
// successful claim is counted in inflight and must be paired with Done.
func (s *Scheduler) claim(name string) (*ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return nil, errors.NewScanError(errors.CodeServiceUnavailable, "scheduler is stopped")
	}
	job, ok := s.jobs[name]
	if !ok {
		return nil, errors.ErrNotFound("schedule", name)
	}
	if job.Running {
		return nil, errors.NewScanError(errors.CodeConflict, "job is already running").WithContext("name", name)
	}
	job.Running = true
	job.LastRun = time.Now().UTC()
	s.inflight.Add(1)
	return job, nil
}

func (s *Scheduler) run(job *ScheduledJob) {
	cfg := job.Config
	logger := s.logger.WithFields("name", cfg.Name, "kind", cfg.Kind)
	outcome := &Outcome{RunID: uuid.New(), StartedAt: time.Now().UTC()}
	logger = logger.WithScanID(outcome.RunID.String())

	logger.InfoScan("Executing scheduled job", cfg.Target)

	results, poolErr := s.pool.Run(s.ctx, []workers.Job{
		workers.NewFuncJob(outcome.RunID.String(), cfg.Kind, func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("job panicked: %v", r)
				}
			}()
			return s.perform(ctx, cfg, outcome)
		}),
	})
	runErr := poolErr
	if runErr == nil && len(results) == 1 {
		runErr = results[0].Error
	}

	outcome.Duration = recon.Duration(time.Since(outcome.StartedAt))
	outcome.Status = StatusSuccess
	if runErr != nil {
		outcome.Status = StatusFailed
		outcome.Error = runErr.Error()
		logger.ErrorScan("Scheduled job failed", cfg.Target, runErr)
	} else {
		logger.InfoScan("Scheduled job completed", cfg.Target, "duration", time.Duration(outcome.Duration))
	}
	s.metrics.IncrementScheduledRuns(cfg.Name, outcome.Status)

	s.mu.Lock()
	job.Running = false
	job.Last = outcome
	s.mu.Unlock()
}

// perform runs the recon operation for cfg and records its output in out.
func (s *Scheduler) perform(ctx context.Context, cfg config.ScheduleConfig, out *Outcome) error {
	switch cfg.Kind {
	case config.KindScan:
		result, err := s.runner.ScanTargetPorts(ctx, cfg.Target, cfg.Ports)
		if err != nil {
			return err
		}
		out.Scan = result
	case config.KindSubdomains:
		found, err := s.runner.DiscoverSubdomains(ctx, cfg.Target, cfg.Wordlist)
		if err != nil {
			return err
		}
		out.Subdomains = found
	case config.KindSweep:
		live, err := s.runner.PingSweep(ctx, cfg.Target)
		if err != nil {
			return err
		}
		out.LiveHosts = live
	default:
		return errors.ErrConfigInvalid("schedules.kind", cfg.Kind)
	}
	return nil
}

// cronLogger adapts the logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.WithError(err).Error("cron: "+msg, keysAndValues...)
}
