package schedule

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/supplyscope/supply-cli/internal/catalog"
	"github.com/supplyscope/supply-cli/internal/model"
)

// Runner executes one research pass for a provider. The pipeline implements
// this; the manager only decides when to call it.
type Runner interface {
	RunForProvider(ctx context.Context, kind model.IntentKind, provider string) error
}

// Manager owns the schedule table and fires due schedules on each tick. A
// schedule that is still running is skipped by later ticks until it finishes.
type Manager struct {
	runner Runner
	store  catalog.Store
	now    func() time.Time

	mu        sync.Mutex
	schedules map[string]*model.Schedule
	inflight  map[string]bool
}

func NewManager(runner Runner, store catalog.Store) *Manager {
	return &Manager{
		runner:    runner,
		store:     store,
		now:       time.Now,
		schedules: make(map[string]*model.Schedule),
		inflight:  make(map[string]bool),
	}
}

// Add registers a schedule and computes its first NextRun. An existing
// schedule with the same name is replaced but keeps its LastRun.
func (m *Manager) Add(s model.Schedule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.schedules[s.Name]; ok && s.LastRun == nil {
		s.LastRun = prev.LastRun
	}
	s.NextRun = NextRun(s, m.now())
	m.schedules[s.Name] = &s
}

// Get returns a copy of the named schedule.
func (m *Manager) Get(name string) (model.Schedule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[name]
	if !ok {
		return model.Schedule{}, false
	}
	return *s, true
}

func (m *Manager) Enable(name string) error  { return m.setEnabled(name, true) }
func (m *Manager) Disable(name string) error { return m.setEnabled(name, false) }

func (m *Manager) setEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[name]
	if !ok {
		return eris.Errorf("schedule not found: %s", name)
	}
	s.Enabled = enabled
	if enabled {
		s.NextRun = NextRun(*s, m.now())
	}
	return nil
}

// Status returns copies of all schedules sorted by name.
func (m *Manager) Status() []model.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type scheduleFile struct {
	Schedules []model.Schedule `yaml:"schedules"`
}

// LoadFile seeds the manager from a YAML schedules file.
func (m *Manager) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "schedule: read %s", path)
	}

	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return eris.Wrapf(err, "schedule: parse %s", path)
	}

	for _, s := range file.Schedules {
		if s.Name == "" {
			return eris.New("schedule: entry with empty name")
		}
		m.Add(s)
	}
	return nil
}

// Tick fires every due schedule once. Providers within a schedule run
// concurrently; one schedule's failure never blocks its siblings. NextRun is
// advanced and persisted exactly once per firing, before the research runs,
// so overlapping ticks cannot double-fire.
func (m *Manager) Tick(ctx context.Context) {
	now := m.now()

	var due []model.Schedule
	m.mu.Lock()
	for name, s := range m.schedules {
		if !ShouldRun(*s, now) || m.inflight[name] {
			continue
		}
		m.inflight[name] = true
		MarkRun(s, now)
		due = append(due, *s)
	}
	m.mu.Unlock()

	for _, s := range due {
		s := s
		if m.store != nil {
			if err := m.store.SaveSchedule(ctx, &s); err != nil {
				zap.L().Warn("schedule: persist failed",
					zap.String("schedule", s.Name), zap.Error(err))
			}
		}
		go func() {
			defer func() {
				m.mu.Lock()
				delete(m.inflight, s.Name)
				m.mu.Unlock()
			}()
			if err := m.run(ctx, s); err != nil {
				zap.L().Error("schedule: run failed",
					zap.String("schedule", s.Name), zap.Error(err))
			}
		}()
	}
}

// Trigger fires one schedule immediately, regardless of NextRun. It respects
// the in-flight guard and waits for the run to finish.
func (m *Manager) Trigger(ctx context.Context, name string) error {
	m.mu.Lock()
	s, ok := m.schedules[name]
	if !ok {
		m.mu.Unlock()
		return eris.Errorf("schedule not found: %s", name)
	}
	if m.inflight[name] {
		m.mu.Unlock()
		return eris.Errorf("schedule already running: %s", name)
	}
	m.inflight[name] = true
	copied := *s
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, name)
		m.mu.Unlock()
	}()
	return m.run(ctx, copied)
}

func (m *Manager) run(ctx context.Context, s model.Schedule) error {
	zap.L().Info("schedule: firing",
		zap.String("schedule", s.Name),
		zap.String("kind", string(s.ResearchKind)),
		zap.Strings("providers", s.Providers))

	providers := s.Providers
	if len(providers) == 0 {
		providers = []string{""}
	}

	// Plain group: a failed provider must not cancel its siblings.
	var g errgroup.Group
	for _, provider := range providers {
		provider := provider
		g.Go(func() error {
			if err := m.runner.RunForProvider(ctx, s.ResearchKind, provider); err != nil {
				return eris.Wrapf(err, "schedule %s: provider %s", s.Name, provider)
			}
			return nil
		})
	}
	return g.Wait()
}
