// Package settings holds the user settings that affect icon rendering and
// notifies subscribers when they change.
package settings

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/jmylchreest/sniclient/internal/config"
)

// Change identifies what part of the settings changed.
type Change int

// Setting changes.
const (
	ChangeIconSize Change = iota
	ChangeCustomIcons
	ChangeScaleFactor
	ChangeTheme
)

func (c Change) String() string {
	switch c {
	case ChangeIconSize:
		return "icon-size"
	case ChangeCustomIcons:
		return "custom-icons"
	case ChangeScaleFactor:
		return "scale-factor"
	case ChangeTheme:
		return "theme"
	default:
		return "unknown"
	}
}

// Store is the live view of the configuration.
type Store struct {
	mu        sync.RWMutex
	cfg       *config.Config
	scale     float64
	listeners map[int]func(Change)
	next      int
	logger    *slog.Logger
}

// NewStore creates a store from cfg. A nil cfg means defaults.
func NewStore(cfg *config.Config, logger *slog.Logger) *Store {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:       cfg,
		scale:     1,
		listeners: make(map[int]func(Change)),
		logger:    logger,
	}
}

// Config returns the current configuration. Callers must not modify it.
func (s *Store) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// IconSize returns the effective icon size in logical pixels.
func (s *Store) IconSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.EffectiveIconSize()
}

// CustomIcons returns the per-item icon overrides.
func (s *Store) CustomIcons() []config.CustomIcon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.cfg.Icons.Custom)
}

// CustomIconsFor returns the override for the item with the given Id.
func (s *Store) CustomIconsFor(itemID string) (config.CustomIcon, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, custom := range s.cfg.Icons.Custom {
		if custom.ID == itemID {
			return custom, true
		}
	}
	return config.CustomIcon{}, false
}

// ThemeName returns the icon theme name.
func (s *Store) ThemeName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Theme.Name
}

// ThemeSearchPaths returns the icon base directories.
func (s *Store) ThemeSearchPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.ThemeSearchPaths()
}

// Timings returns the configured protocol timings.
func (s *Store) Timings() config.Timings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Timing
}

// ScaleFactor returns the display scale factor.
func (s *Store) ScaleFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scale
}

// SetScaleFactor updates the display scale factor.
func (s *Store) SetScaleFactor(scale float64) {
	if scale <= 0 {
		scale = 1
	}
	s.mu.Lock()
	changed := s.scale != scale
	s.scale = scale
	s.mu.Unlock()

	if changed {
		s.notify(ChangeScaleFactor)
	}
}

// NotifyThemeChanged tells subscribers the icon theme contents changed.
func (s *Store) NotifyThemeChanged() {
	s.notify(ChangeTheme)
}

// Apply replaces the configuration and notifies subscribers of every
// change that affects icons. It returns the changes.
func (s *Store) Apply(cfg *config.Config) []Change {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	var changes []Change
	if old.EffectiveIconSize() != cfg.EffectiveIconSize() {
		changes = append(changes, ChangeIconSize)
	}
	if !slices.Equal(old.Icons.Custom, cfg.Icons.Custom) {
		changes = append(changes, ChangeCustomIcons)
	}
	if old.Theme.Name != cfg.Theme.Name || !slices.Equal(old.ThemeSearchPaths(), cfg.ThemeSearchPaths()) {
		changes = append(changes, ChangeTheme)
	}
	if old.Timing != cfg.Timing {
		s.logger.Info("timing changes apply to items created from now on")
	}

	for _, c := range changes {
		s.notify(c)
	}
	return changes
}

// Subscribe registers fn for changes and returns a function removing it.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.RUnlock()

	s.logger.Debug("settings changed", "change", c)
	for _, fn := range fns {
		fn(c)
	}
}
