package schedule

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplyscope/supply-cli/internal/model"
)

// stubRunner records RunForProvider calls and optionally blocks until
// released, so tests can hold a schedule in flight.
type stubRunner struct {
	mu      sync.Mutex
	calls   []string
	started chan string
	release chan struct{}
	err     error
}

func newStubRunner() *stubRunner {
	return &stubRunner{started: make(chan string, 16)}
}

func (r *stubRunner) RunForProvider(_ context.Context, kind model.IntentKind, provider string) error {
	r.mu.Lock()
	r.calls = append(r.calls, provider)
	r.mu.Unlock()
	r.started <- provider
	if r.release != nil {
		<-r.release
	}
	return r.err
}

func (r *stubRunner) providers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.calls...)
	sort.Strings(out)
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dueSchedule(name string, providers ...string) model.Schedule {
	return model.Schedule{
		Name:         name,
		Frequency:    model.FreqHourly,
		ResearchKind: model.IntentPricing,
		Providers:    providers,
		Enabled:      true,
	}
}

func TestManager_Tick_FiresDueSchedules(t *testing.T) {
	runner := newStubRunner()
	mgr := NewManager(runner, nil)

	start := time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC)
	mgr.now = fixedClock(start)
	mgr.Add(dueSchedule("hourly-anthropic", "anthropic"))

	// First NextRun is the top of the next hour; advance past it.
	mgr.now = fixedClock(start.Add(time.Hour))
	mgr.Tick(context.Background())

	select {
	case p := <-runner.started:
		assert.Equal(t, "anthropic", p)
	case <-time.After(2 * time.Second):
		t.Fatal("schedule did not fire")
	}
}

func TestManager_Tick_SkipsNotDueAndDisabled(t *testing.T) {
	runner := newStubRunner()
	mgr := NewManager(runner, nil)

	start := time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC)
	mgr.now = fixedClock(start)
	mgr.Add(dueSchedule("future", "anthropic"))

	disabled := dueSchedule("disabled", "openai")
	disabled.Enabled = false
	mgr.Add(disabled)

	// Clock has not reached either NextRun.
	mgr.Tick(context.Background())

	select {
	case p := <-runner.started:
		t.Fatalf("unexpected run for %s", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_Tick_FiresOncePerDueWindow(t *testing.T) {
	runner := newStubRunner()
	mgr := NewManager(runner, nil)

	start := time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC)
	mgr.now = fixedClock(start)
	mgr.Add(dueSchedule("hourly", "anthropic"))

	// Same due instant ticked twice: NextRun is advanced on the first tick,
	// so the second is a no-op.
	due := start.Add(time.Hour)
	mgr.now = fixedClock(due)
	mgr.Tick(context.Background())
	mgr.Tick(context.Background())

	<-runner.started
	select {
	case <-runner.started:
		t.Fatal("schedule fired twice in one due window")
	case <-time.After(100 * time.Millisecond):
	}

	s, ok := mgr.Get("hourly")
	require.True(t, ok)
	require.NotNil(t, s.LastRun)
	assert.True(t, s.NextRun.After(due))
}

func TestManager_Tick_InFlightGuard(t *testing.T) {
	runner := newStubRunner()
	runner.release = make(chan struct{})
	mgr := NewManager(runner, nil)

	start := time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC)
	mgr.now = fixedClock(start)
	mgr.Add(dueSchedule("hourly", "anthropic"))

	mgr.now = fixedClock(start.Add(time.Hour))
	mgr.Tick(context.Background())
	<-runner.started // schedule now blocked in flight

	// Advance past the recomputed NextRun; the guard must hold.
	mgr.now = fixedClock(start.Add(3 * time.Hour))
	mgr.Tick(context.Background())

	select {
	case <-runner.started:
		t.Fatal("in-flight schedule fired again")
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
}

func TestManager_Tick_FansOutPerProvider(t *testing.T) {
	runner := newStubRunner()
	mgr := NewManager(runner, nil)

	start := time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC)
	mgr.now = fixedClock(start)
	mgr.Add(dueSchedule("multi", "anthropic", "openai", "google"))

	mgr.now = fixedClock(start.Add(time.Hour))
	mgr.Tick(context.Background())

	for i := 0; i < 3; i++ {
		select {
		case <-runner.started:
		case <-time.After(2 * time.Second):
			t.Fatal("provider run missing")
		}
	}
	assert.Equal(t, []string{"anthropic", "google", "openai"}, runner.providers())
}

func TestManager_Trigger(t *testing.T) {
	runner := newStubRunner()
	mgr := NewManager(runner, nil)
	mgr.now = fixedClock(time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC))
	mgr.Add(dueSchedule("manual", "anthropic"))

	require.NoError(t, mgr.Trigger(context.Background(), "manual"))
	assert.Equal(t, []string{"anthropic"}, runner.providers())

	assert.Error(t, mgr.Trigger(context.Background(), "missing"))
}

func TestManager_EnableDisable(t *testing.T) {
	mgr := NewManager(newStubRunner(), nil)
	mgr.now = fixedClock(time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC))
	mgr.Add(dueSchedule("toggle", "anthropic"))

	require.NoError(t, mgr.Disable("toggle"))
	s, ok := mgr.Get("toggle")
	require.True(t, ok)
	assert.False(t, s.Enabled)

	require.NoError(t, mgr.Enable("toggle"))
	s, _ = mgr.Get("toggle")
	assert.True(t, s.Enabled)

	assert.Error(t, mgr.Enable("missing"))
}

func TestManager_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedules.yaml")
	data := `schedules:
  - name: daily-pricing
    frequency: daily
    research_kind: pricing
    providers: [anthropic, openai]
    enabled: true
    hour: 6
  - name: weekly-overview
    frequency: weekly
    research_kind: market_overview
    providers: []
    enabled: false
    day_of_week: 0
    hour: 9
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	mgr := NewManager(newStubRunner(), nil)
	mgr.now = fixedClock(time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC))
	require.NoError(t, mgr.LoadFile(path))

	schedules := mgr.Status()
	require.Len(t, schedules, 2)
	assert.Equal(t, "daily-pricing", schedules[0].Name)
	assert.Equal(t, model.FreqDaily, schedules[0].Frequency)
	assert.Equal(t, []string{"anthropic", "openai"}, schedules[0].Providers)
	assert.False(t, schedules[0].NextRun.IsZero())
	assert.Equal(t, "weekly-overview", schedules[1].Name)
	assert.False(t, schedules[1].Enabled)
}

func TestManager_LoadFile_RejectsUnnamed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedules:\n  - frequency: daily\n"), 0o644))

	mgr := NewManager(newStubRunner(), nil)
	assert.Error(t, mgr.LoadFile(path))
}
