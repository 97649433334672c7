package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/jobsched/internal/clock"
	"github.com/loykin/jobsched/internal/definition"
	"github.com/loykin/jobsched/internal/execution"
	"github.com/loykin/jobsched/internal/notifier"
	"github.com/loykin/jobsched/internal/schedule"
	"github.com/loykin/jobsched/internal/serviceprovider"
)

const testPoll = 10 * time.Millisecond

func countingAction(count *atomic.Int32) definition.Action {
	return func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error {
		count.Add(1)
		return nil
	}
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestScheduler_OneShotDefinitionRunsOnceThenRetires(t *testing.T) {
	s := New()
	var calls atomic.Int32
	s.Add(definition.NewAction("job-1", "Job One", countingAction(&calls)))

	s.Start(testPoll)
	defer s.Stop()

	eventually(t, time.Second, func() bool { return calls.Load() == 1 })
	eventually(t, time.Second, func() bool { _, ok := s.GetByID("job-1"); return !ok })

	time.Sleep(5 * testPoll)
	require.Equal(t, int32(1), calls.Load())
}

func TestScheduler_CronDefinitionRunsRepeatedly(t *testing.T) {
	s := New()
	var calls atomic.Int32
	s.Add(definition.NewAction("job-cron", "Cron Job", countingAction(&calls),
		definition.WithSchedule(schedule.New(schedule.WithCron("* * * * * *")))))

	s.Start(testPoll)
	defer s.Stop()

	eventually(t, 3*time.Second, func() bool { return calls.Load() >= 2 })

	_, ok := s.GetByID("job-cron")
	require.True(t, ok, "cron definition must not be retired")
}

func TestScheduler_OverlapDisallowedBlocksConcurrentRun(t *testing.T) {
	s := New()
	release := make(chan struct{})
	var starts atomic.Int32
	s.Add(definition.NewAction("job-slow", "Slow Job",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error {
			starts.Add(1)
			<-release
			return nil
		},
		definition.WithSchedule(schedule.New(schedule.WithCron("* * * * * *"))),
	))

	s.Start(testPoll)
	defer func() {
		close(release)
		s.Stop()
	}()

	eventually(t, time.Second, func() bool { return starts.Load() == 1 })
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, int32(1), starts.Load(), "overlapping run must be blocked while the first is still running")
}

func TestScheduler_OverlapAllowedRunsConcurrently(t *testing.T) {
	s := New()
	release := make(chan struct{})
	var starts atomic.Int32
	s.Add(definition.NewAction("job-overlap", "Overlap Job",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error {
			starts.Add(1)
			<-release
			return nil
		},
		definition.WithOverlap(true),
		definition.WithSchedule(schedule.New(schedule.WithCron("* * * * * *"))),
	))

	s.Start(testPoll)
	defer func() {
		close(release)
		s.Stop()
	}()

	eventually(t, 2*time.Second, func() bool { return starts.Load() >= 2 })
}

func TestScheduler_ForceStartBypassesSchedule(t *testing.T) {
	s := New()
	var calls atomic.Int32
	future := time.Now().UTC().Add(time.Hour)
	s.Add(definition.NewAction("job-future", "Future Job", countingAction(&calls),
		definition.WithSchedule(schedule.New(schedule.WithEarliestStart(future)))))

	s.Start(testPoll)
	defer s.Stop()

	time.Sleep(3 * testPoll)
	require.Equal(t, int32(0), calls.Load())

	s.ForceStart("job-future")
	eventually(t, time.Second, func() bool { return calls.Load() == 1 })
}

func TestScheduler_ForceStartUnknownIDIsNoop(t *testing.T) {
	s := New()
	require.NotPanics(t, func() { s.ForceStart("does-not-exist") })
}

func TestScheduler_StopWaitsForRunningExecutions(t *testing.T) {
	s := New()
	started := make(chan struct{})
	finished := make(chan struct{})
	s.Add(definition.NewAction("job-1", "Job One",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			close(finished)
			return nil
		}))

	s.Start(testPoll)
	<-started
	s.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the running execution finished")
	}
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s := New()
	s.Start(testPoll)
	s.Start(testPoll) // second call is a no-op
	require.True(t, s.IsRunning())

	s.Stop()
	s.Stop() // second call is a no-op
	require.False(t, s.IsRunning())
}

func TestScheduler_GetIsSnapshotIsolated(t *testing.T) {
	s := New()
	s.Add(definition.NewAction("job-1", "Job One",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error { return nil }))

	snapshot := s.Get()
	s.Add(definition.NewAction("job-2", "Job Two",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error { return nil }))

	require.Len(t, snapshot, 1)
	require.Len(t, s.Get(), 2)
}

func TestScheduler_RemoveFiresDefinitionRemoved(t *testing.T) {
	rec := &recordingNotifier{}
	s := New(WithNotifier(rec))
	s.Add(definition.NewAction("job-1", "Job One",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error { return nil }))

	s.Remove("job-1")
	_, ok := s.GetByID("job-1")
	require.False(t, ok)
	require.Equal(t, int32(1), rec.removed.Load())
}

func TestScheduler_NotifiesLifecycleEvents(t *testing.T) {
	rec := &recordingNotifier{}
	s := New(WithNotifier(rec))
	s.Add(definition.NewAction("job-1", "Job One",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error { return nil }))

	s.Start(testPoll)
	eventually(t, time.Second, func() bool { return rec.completed.Load() > 0 && rec.removed.Load() > 0 })
	s.Stop()

	require.GreaterOrEqual(t, rec.added.Load(), int32(1))
	require.GreaterOrEqual(t, rec.started.Load(), int32(1))
	require.GreaterOrEqual(t, rec.completed.Load(), int32(1))
	require.GreaterOrEqual(t, rec.removed.Load(), int32(1))
	require.Equal(t, int32(1), rec.schedulerStarted.Load())
	require.Equal(t, int32(1), rec.schedulerStopped.Load())
}

func TestScheduler_FailedActionStillRetiresOneShot(t *testing.T) {
	s := New()
	s.Add(definition.NewAction("job-1", "Job One",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error {
			return errors.New("boom")
		}))

	s.Start(testPoll)
	defer s.Stop()

	eventually(t, time.Second, func() bool { _, ok := s.GetByID("job-1"); return !ok })
}

func TestScheduler_ManualClockDrivesEligibility(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	s := New(WithClock(clk))
	var calls atomic.Int32
	floor := time.Unix(100, 0)
	s.Add(definition.NewAction("job-1", "Job One", countingAction(&calls),
		definition.WithSchedule(schedule.New(schedule.WithEarliestStart(floor)))))

	s.Start(testPoll)
	defer s.Stop()

	time.Sleep(3 * testPoll)
	require.Equal(t, int32(0), calls.Load())

	clk.Set(floor.Add(time.Second))
	eventually(t, time.Second, func() bool { return calls.Load() == 1 })
}

type recordingNotifier struct {
	added            atomic.Int32
	removed          atomic.Int32
	started          atomic.Int32
	completed        atomic.Int32
	schedulerStarted atomic.Int32
	schedulerStopped atomic.Int32
}

func (r *recordingNotifier) DefinitionAdded(notifier.DefinitionInfo)   { r.added.Add(1) }
func (r *recordingNotifier) DefinitionRemoved(notifier.DefinitionInfo) { r.removed.Add(1) }
func (r *recordingNotifier) SchedulerStarted()                        { r.schedulerStarted.Add(1) }
func (r *recordingNotifier) SchedulerStopped()                        { r.schedulerStopped.Add(1) }
func (r *recordingNotifier) JobStarted(*execution.Execution)          { r.started.Add(1) }
func (r *recordingNotifier) JobCompleted(*execution.Execution)        { r.completed.Add(1) }
