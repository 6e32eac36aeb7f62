package bot

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamjony/skittobot/internal/bot/tasks"
	"github.com/kamjony/skittobot/internal/config"
)

func testSchedulerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{
		Tasks: map[string]config.TaskConfig{
			"transcript_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
		},
	}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"transcript_maintenance": func(context.Context) error { return nil },
	}

	s, err := NewScheduler(testSchedulerLogger(), cfg, taskMap)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start must be rejected")
	require.NoError(t, s.Stop())
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(testSchedulerLogger(), &config.SchedulerConfig{}, nil)
	require.NoError(t, err)

	assert.NoError(t, s.Stop())
}

func TestSchedulerStartWithNoTasks(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(testSchedulerLogger(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
}

func TestSchedulerSkipsUnschedulableTasks(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{
		Tasks: map[string]config.TaskConfig{
			"disabled":       {Enabled: false, Schedule: "* * * * * *"},
			"unregistered":   {Enabled: true, Schedule: "* * * * * *"},
			"empty_schedule": {Enabled: true},
		},
	}

	s, err := NewScheduler(testSchedulerLogger(), cfg, map[string]tasks.ScheduledTaskFunc{})
	require.NoError(t, err)

	// None of the configured tasks is schedulable; Start still succeeds.
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
}

func TestSchedulerRunsTaskOnSchedule(t *testing.T) {
	t.Parallel()

	var runs atomic.Int64
	cfg := &config.SchedulerConfig{
		Tasks: map[string]config.TaskConfig{
			"tick": {Enabled: true, Schedule: "* * * * * *"},
		},
	}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"tick": func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}

	s, err := NewScheduler(testSchedulerLogger(), cfg, taskMap)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	// An every-second cron fires within a couple of seconds of starting.
	require.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)
}
