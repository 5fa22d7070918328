// Package janitor runs periodic maintenance jobs on a cron schedule:
// pruning old execution log rows and reporting schedules that went stale
// while still pending.
package janitor

import (
	"context"
	"fmt"
	"time"

	"appsched/internal/config"
	"appsched/internal/storage"
	logx "appsched/pkg/logx"

	"github.com/robfig/cron/v3"
)

const (
	defaultPruneSpec = "@hourly"
	defaultSweepSpec = "@every 10m"
)

type Options struct {
	Enabled      bool
	LogRetention time.Duration
	PruneSpec    string
	SweepSpec    string
}

// OptionsFromConfig translates the config section, applying defaults. The
// duration string has already been validated by the config layer.
func OptionsFromConfig(jc config.JanitorConfig) (Options, error) {
	ret, err := config.ParseDurationField("janitor.log_retention", jc.LogRetention)
	if err != nil {
		return Options{}, err
	}
	o := Options{
		Enabled:      jc.Enabled,
		LogRetention: ret,
		PruneSpec:    jc.PruneSpec,
		SweepSpec:    jc.SweepSpec,
	}
	if o.PruneSpec == "" {
		o.PruneSpec = defaultPruneSpec
	}
	if o.SweepSpec == "" {
		o.SweepSpec = defaultSweepSpec
	}
	return o, nil
}

type Janitor struct {
	log   logx.Logger
	store storage.Store
	opts  Options

	cron *cron.Cron
	now  func() time.Time
}

func New(opts Options, store storage.Store, log logx.Logger) *Janitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Janitor{
		log:   log.With(logx.String("comp", "janitor")),
		store: store,
		opts:  opts,
		now:   time.Now,
	}
}

// Start registers the jobs and starts the cron runner. It is a no-op when
// the janitor is disabled.
func (j *Janitor) Start() error {
	if !j.opts.Enabled {
		j.log.Debug("janitor disabled")
		return nil
	}
	if j.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{j.log}),
		cron.SkipIfStillRunning(cronLogger{j.log}),
	))

	if j.opts.LogRetention > 0 {
		if _, err := c.AddFunc(j.opts.PruneSpec, j.pruneLogs); err != nil {
			return fmt.Errorf("prune job: %w", err)
		}
	}
	if _, err := c.AddFunc(j.opts.SweepSpec, j.sweepStale); err != nil {
		return fmt.Errorf("sweep job: %w", err)
	}

	c.Start()
	j.cron = c
	j.log.Info("janitor started",
		logx.Duration("log_retention", j.opts.LogRetention),
		logx.String("prune_spec", j.opts.PruneSpec),
		logx.String("sweep_spec", j.opts.SweepSpec))
	return nil
}

// Stop stops the cron runner and waits for in-flight jobs.
func (j *Janitor) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}
	done := j.cron.Stop().Done()
	j.cron = nil
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (j *Janitor) pruneLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := j.now().Add(-j.opts.LogRetention)
	n, err := j.store.PruneExecutionLogs(ctx, cutoff)
	if err != nil {
		j.log.Error("log prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		j.log.Info("pruned execution logs",
			logx.Int64("rows", n),
			logx.Time("cutoff", cutoff))
	}
}

// sweepStale reports schedules still pending well past their fire time.
// Normally restore or the timer handles these; a hit here means a timer was
// lost, which is worth a warning but not automatic re-execution.
func (j *Janitor) sweepStale() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pending, err := j.store.ListSchedulesByStatus(ctx, storage.StatusPending)
	if err != nil {
		j.log.Error("stale sweep failed", logx.Err(err))
		return
	}
	cutoff := j.now().Add(-5 * time.Minute)
	for _, sc := range pending {
		if sc.ScheduledAt.Before(cutoff) {
			j.log.Warn("schedule stale while pending",
				logx.Int64("schedule_id", sc.ID),
				logx.String("package", sc.PackageID),
				logx.Time("scheduled_at", sc.ScheduledAt))
		}
	}
}

// cronLogger adapts logx to cron's logger interface.
type cronLogger struct {
	log logx.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.log.Debug(msg, logx.Any("kv", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Error(msg, logx.Err(err), logx.Any("kv", kv))
}
