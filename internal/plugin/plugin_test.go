package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MePride/pin/internal/canvas"
	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/gfx"
)

type fakePlugin struct {
	name     string
	interval time.Duration
	auto     bool

	mu        sync.Mutex
	inits     int
	updates   int
	stops     int
	updateErr error
	content   string
}

func (f *fakePlugin) Metadata() Metadata {
	return Metadata{Name: f.name, Version: "0.1.0"}
}

func (f *fakePlugin) Config() Config {
	return Config{UpdateInterval: f.interval, AutoStart: f.auto}
}

func (f *fakePlugin) Init(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return nil
}

func (f *fakePlugin) Update(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return f.updateErr
}

func (f *fakePlugin) Render(region *Region) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	region.Content = f.content
	region.Dirty = true
	return nil
}

func (f *fakePlugin) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakePlugin) counts() (inits, updates, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits, f.updates, f.stops
}

type fakeSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *fakeSink) DrawText(x, y int, text string, size canvas.FontSize, c gfx.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *fakeSink) drawn() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRegisterLimits(t *testing.T) {
	m := NewManager(nil)

	if err := m.Register(&fakePlugin{name: "p"}, Region{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(&fakePlugin{name: "p"}, Region{}); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Errorf("duplicate Register = %v, want ErrAlreadyExists", err)
	}
	for i := 1; i < MaxPlugins; i++ {
		if err := m.Register(&fakePlugin{name: fmt.Sprintf("p%d", i)}, Region{}); err != nil {
			t.Fatalf("Register #%d: %v", i, err)
		}
	}
	if err := m.Register(&fakePlugin{name: "overflow"}, Region{}); !errors.Is(err, errs.ErrExhausted) {
		t.Errorf("Register over limit = %v, want ErrExhausted", err)
	}
}

func TestEnableDisableLifecycle(t *testing.T) {
	p := &fakePlugin{name: "p", interval: 10 * time.Millisecond, content: "x"}
	sink := &fakeSink{}
	m := NewManager(sink)
	if err := m.Register(p, Region{Visible: true, FontSize: canvas.FontSmall}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := m.Disable("p"); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("Disable before Enable = %v, want ErrInvalidState", err)
	}
	if err := m.Enable(context.Background(), "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Enable missing = %v, want ErrNotFound", err)
	}

	if err := m.Enable(context.Background(), "p"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := m.Enable(context.Background(), "p"); !errors.Is(err, errs.ErrInvalidState) {
		t.Errorf("double Enable = %v, want ErrInvalidState", err)
	}

	waitFor(t, func() bool { _, u, _ := p.counts(); return u >= 2 })
	waitFor(t, func() bool { return len(sink.drawn()) >= 1 })

	if err := m.Disable("p"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	inits, _, stops := p.counts()
	if inits != 1 || stops != 1 {
		t.Errorf("inits/stops = %d/%d, want 1/1", inits, stops)
	}

	stats, err := m.Stats("p")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Updates == 0 || stats.LastUpdate == 0 {
		t.Errorf("stats = %+v, want recorded updates", stats)
	}

	// Re-enable does not re-run Init.
	if err := m.Enable(context.Background(), "p"); err != nil {
		t.Fatalf("re-Enable: %v", err)
	}
	m.StopAll()
	inits, _, _ = p.counts()
	if inits != 1 {
		t.Errorf("inits after re-enable = %d, want 1", inits)
	}
}

func TestUpdateErrorsCounted(t *testing.T) {
	p := &fakePlugin{name: "p", interval: 10 * time.Millisecond, updateErr: errs.ErrDevice}
	m := NewManager(nil)
	if err := m.Register(p, Region{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Enable(context.Background(), "p"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer m.StopAll()

	waitFor(t, func() bool {
		stats, _ := m.Stats("p")
		return stats.Errors >= 2
	})
	stats, _ := m.Stats("p")
	if stats.Updates != 0 {
		t.Errorf("failed ticks counted as updates: %+v", stats)
	}
}

func TestStartAllHonorsAutoStart(t *testing.T) {
	auto := &fakePlugin{name: "auto", interval: time.Hour, auto: true}
	manual := &fakePlugin{name: "manual", interval: time.Hour}
	m := NewManager(nil)
	if err := m.Register(auto, Region{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(manual, Region{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	m.StartAll(context.Background())
	defer m.StopAll()

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List returned %d entries", len(list))
	}
	if !list[0].Enabled || list[0].Metadata.Name != "auto" {
		t.Errorf("auto-start plugin not enabled: %+v", list[0])
	}
	if list[1].Enabled {
		t.Errorf("manual plugin enabled by StartAll: %+v", list[1])
	}
}

func TestClockRendersTime(t *testing.T) {
	c := NewClock()
	c.now = func() time.Time {
		return time.Date(2025, 6, 1, 9, 42, 30, 0, time.UTC)
	}
	region := ClockRegion(600)
	if err := c.Render(&region); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if region.Content != "09:42" || !region.Dirty {
		t.Errorf("region = %+v, want 09:42 dirty", region)
	}
}
