package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"PennyAI/internal/model"
	"PennyAI/internal/notifier"
	"PennyAI/internal/pipeline"
)

// Runner executes one full pipeline run.
type Runner interface {
	RunAll(ctx context.Context) (*pipeline.Result, error)
}

// StatusSource supplies the numbers shown by /status.
type StatusSource interface {
	Count(ctx context.Context) (int64, error)
	PendingSummaries(ctx context.Context) ([]model.PendingRow, error)
	CountTickers(ctx context.Context, since time.Time) (int64, error)
}

// Scheduler triggers pipeline runs from cron and from chat commands. At most
// one run is in flight at a time.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Status   StatusSource
	Notifier notifier.Notifier
	Ctx      context.Context

	logger  arbor.ILogger
	mu      sync.Mutex
	running bool
	lastRun *pipeline.Result
	wg      sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, status StatusSource, n notifier.Notifier, logger arbor.ILogger) *Scheduler {
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Status:   status,
		Notifier: n,
		Ctx:      ctx,
		logger:   logger,
	}
}

// Register schedules the pipeline on the given six-field cron spec.
func (s *Scheduler) Register(pipelineCron string) error {
	if _, err := s.Cron.AddFunc(pipelineCron, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("register pipeline task: %w", err)
	}
	s.logger.Info().Str("cron", pipelineCron).Msg("pipeline task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes a pipeline run synchronously. It returns false without
// running when another run is in flight.
func (s *Scheduler) RunNow() bool {
	if !s.begin() {
		s.logger.Warn().Msg("pipeline run skipped, previous run still in progress")
		return false
	}
	defer s.wg.Done()

	res, err := s.Runner.RunAll(s.Ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("pipeline run failed")
	}
	s.finish(res)
	if res != nil {
		s.trySend(notifier.FormatRunReport(res))
	}
	return true
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.wg.Add(1)
	return true
}

func (s *Scheduler) finish(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if res != nil {
		s.lastRun = res
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/run":
		s.mu.Lock()
		busy := s.running
		s.mu.Unlock()
		if busy {
			return "A pipeline run is already in progress."
		}
		go s.RunNow()
		return "Pipeline run started."
	case "/status":
		return s.status(ctx)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) status(ctx context.Context) string {
	var st notifier.StoreStatus
	var err error
	if st.TotalRows, err = s.Status.Count(ctx); err != nil {
		return fmt.Sprintf("Status unavailable: %v", err)
	}
	pending, err := s.Status.PendingSummaries(ctx)
	if err != nil {
		return fmt.Sprintf("Status unavailable: %v", err)
	}
	st.Pending = len(pending)
	if st.TickersToday, err = s.Status.CountTickers(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		return fmt.Sprintf("Status unavailable: %v", err)
	}

	s.mu.Lock()
	st.Running = s.running
	st.LastRun = s.lastRun
	s.mu.Unlock()
	return notifier.FormatStatus(st)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error().Err(err).Msg("send notification failed")
	}
}
