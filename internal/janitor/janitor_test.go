package janitor

import (
	"context"
	"testing"
	"time"

	"appsched/internal/config"
	"appsched/internal/storage"
	logx "appsched/pkg/logx"
)

func TestOptionsFromConfigDefaults(t *testing.T) {
	o, err := OptionsFromConfig(config.JanitorConfig{Enabled: true})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if o.PruneSpec != defaultPruneSpec || o.SweepSpec != defaultSweepSpec {
		t.Fatalf("specs = %q / %q", o.PruneSpec, o.SweepSpec)
	}
	if o.LogRetention != 0 {
		t.Fatalf("retention = %v, want 0 (disabled)", o.LogRetention)
	}
}

func TestOptionsFromConfigParsesRetention(t *testing.T) {
	o, err := OptionsFromConfig(config.JanitorConfig{
		Enabled:      true,
		LogRetention: "720h",
		PruneSpec:    "@daily",
	})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if o.LogRetention != 720*time.Hour {
		t.Fatalf("retention = %v", o.LogRetention)
	}
	if o.PruneSpec != "@daily" {
		t.Fatalf("prune spec = %q", o.PruneSpec)
	}

	if _, err := OptionsFromConfig(config.JanitorConfig{LogRetention: "bogus"}); err == nil {
		t.Fatal("expected bad duration to be rejected")
	}
}

func TestPruneLogsRemovesOldRows(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{time.Hour, 48 * time.Hour, 600 * time.Hour} {
		if _, err := st.AppendExecutionLog(ctx, storage.ExecutionLog{
			ScheduleID:  1,
			AttemptedAt: now.Add(-age),
			Outcome:     storage.OutcomeSuccess,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	j := New(Options{Enabled: true, LogRetention: 72 * time.Hour}, st, logx.Nop())
	j.now = func() time.Time { return now }
	j.pruneLogs()

	logs, err := st.ListExecutionLogs(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("kept %d rows, want 2", len(logs))
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	j := New(Options{Enabled: false}, storage.NewMemory(), logx.Nop())
	if err := j.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if j.cron != nil {
		t.Fatal("cron should not run when disabled")
	}
	j.Stop(context.Background())
}

func TestStartRejectsBadSpec(t *testing.T) {
	j := New(Options{Enabled: true, SweepSpec: "not a cron spec"}, storage.NewMemory(), logx.Nop())
	if err := j.Start(); err == nil {
		t.Fatal("expected invalid cron spec to fail")
	}
}
