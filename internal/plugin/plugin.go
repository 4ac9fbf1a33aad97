// Package plugin is a small runtime for widget plugins: registered
// plugins get a widget region on the panel and a periodic update tick on
// their own goroutine.
package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MePride/pin/internal/canvas"
	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/gfx"
	"github.com/MePride/pin/internal/log"
)

// MaxPlugins bounds the registry.
const MaxPlugins = 8

var plog = log.Tag("plugin")

// Metadata describes a plugin to clients.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Config is the per-plugin runtime configuration.
type Config struct {
	UpdateInterval time.Duration
	AutoStart      bool
}

// Region is the widget area a plugin renders into. A plugin fills Content
// and marks it Dirty; the runtime pushes dirty visible regions to the
// panel after each update.
type Region struct {
	X, Y          int
	Width, Height int
	Color         gfx.Color
	FontSize      canvas.FontSize
	Content       string
	Visible       bool
	Dirty         bool
}

// Plugin is the lifecycle contract. Init runs once on first enable;
// Update then Render run on every tick; Stop runs on disable.
type Plugin interface {
	Metadata() Metadata
	Config() Config
	Init(ctx context.Context) error
	Update(ctx context.Context) error
	Render(region *Region) error
	Stop() error
}

// Stats counts a plugin's update activity.
type Stats struct {
	Updates    uint64 `json:"updates"`
	Errors     uint64 `json:"errors"`
	LastUpdate int64  `json:"last_update_time"`
}

// Info is the externally visible state of one registered plugin.
type Info struct {
	Metadata Metadata `json:"metadata"`
	Enabled  bool     `json:"enabled"`
	Stats    Stats    `json:"stats"`
}

// WidgetSink receives rendered widget content. *display.Service
// implements it; nil means widgets are rendered but go nowhere.
type WidgetSink interface {
	DrawText(x, y int, text string, size canvas.FontSize, c gfx.Color) error
}

type entry struct {
	plugin      Plugin
	region      Region
	stats       Stats
	enabled     bool
	initialized bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// Manager owns the plugin registry and the per-plugin tickers.
type Manager struct {
	mu      sync.Mutex
	sink    WidgetSink
	entries map[string]*entry
	order   []string
}

func NewManager(sink WidgetSink) *Manager {
	return &Manager{sink: sink, entries: make(map[string]*entry)}
}

// Register adds a plugin with its widget region. The registry holds at
// most MaxPlugins; duplicate names are rejected.
func (m *Manager) Register(p Plugin, region Region) error {
	name := p.Metadata().Name
	if name == "" {
		return fmt.Errorf("plugin: empty name: %w", errs.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= MaxPlugins {
		return fmt.Errorf("plugin: registry full (%d): %w", MaxPlugins, errs.ErrExhausted)
	}
	if _, ok := m.entries[name]; ok {
		return fmt.Errorf("plugin %q: %w", name, errs.ErrAlreadyExists)
	}
	m.entries[name] = &entry{plugin: p, region: region}
	m.order = append(m.order, name)
	plog.Info("plugin registered", "name", name, "version", p.Metadata().Version)
	return nil
}

// Enable starts a plugin's update loop. The first enable runs Init.
// Enabling a running plugin is an error.
func (m *Manager) Enable(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return fmt.Errorf("plugin %q: %w", name, errs.ErrNotFound)
	}
	if e.enabled {
		return fmt.Errorf("plugin %q already enabled: %w", name, errs.ErrInvalidState)
	}
	if !e.initialized {
		if err := e.plugin.Init(ctx); err != nil {
			return fmt.Errorf("plugin %q init: %w", name, err)
		}
		e.initialized = true
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.enabled = true
	go m.run(runCtx, name, e.plugin.Config().UpdateInterval, e.done)
	plog.Info("plugin enabled", "name", name)
	return nil
}

// Disable stops a plugin's update loop and runs its Stop hook. Disabling
// a plugin that is not running fails with ErrInvalidState.
func (m *Manager) Disable(name string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, errs.ErrNotFound)
	}
	if !e.enabled {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q not enabled: %w", name, errs.ErrInvalidState)
	}
	e.enabled = false
	cancel, done := e.cancel, e.done
	m.mu.Unlock()

	cancel()
	<-done
	if err := e.plugin.Stop(); err != nil {
		plog.Error("plugin stop hook failed", err, "name", name)
	}
	plog.Info("plugin disabled", "name", name)
	return nil
}

// run is the per-plugin tick loop. The first tick fires immediately so an
// enabled plugin shows content without waiting a full interval.
func (m *Manager) run(ctx context.Context, name string, interval time.Duration, done chan struct{}) {
	defer close(done)
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	m.tick(ctx, name)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.tick(ctx, name)
		}
	}
}

func (m *Manager) tick(ctx context.Context, name string) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok || !e.enabled {
		m.mu.Unlock()
		return
	}
	p := e.plugin
	region := e.region
	m.mu.Unlock()

	err := p.Update(ctx)
	if err == nil {
		err = p.Render(&region)
	}
	if err == nil && m.sink != nil && region.Visible && region.Dirty {
		err = m.sink.DrawText(region.X, region.Y, region.Content, region.FontSize, region.Color)
		region.Dirty = false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		e.stats.Errors++
		plog.Error("plugin update failed", err, "name", name)
		return
	}
	e.region = region
	e.stats.Updates++
	e.stats.LastUpdate = time.Now().Unix()
}

// List returns the registered plugins in registration order.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.order))
	for _, name := range m.order {
		e := m.entries[name]
		out = append(out, Info{
			Metadata: e.plugin.Metadata(),
			Enabled:  e.enabled,
			Stats:    e.stats,
		})
	}
	return out
}

// Stats returns one plugin's counters.
func (m *Manager) Stats(name string) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return Stats{}, fmt.Errorf("plugin %q: %w", name, errs.ErrNotFound)
	}
	return e.stats, nil
}

// StartAll enables every registered plugin whose config asks for
// auto-start. Failures are logged, not fatal; one broken plugin must not
// take the daemon down.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()
	for _, name := range names {
		m.mu.Lock()
		auto := m.entries[name].plugin.Config().AutoStart
		m.mu.Unlock()
		if !auto {
			continue
		}
		if err := m.Enable(ctx, name); err != nil {
			plog.Error("plugin auto-start failed", err, "name", name)
		}
	}
}

// StopAll disables every running plugin, for shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()
	for _, name := range names {
		// Not-enabled plugins are fine to skip over.
		_ = m.Disable(name)
	}
}
