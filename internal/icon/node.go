package icon

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jmylchreest/sniclient/internal/config"
	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
	"github.com/jmylchreest/sniclient/internal/item"
	"github.com/jmylchreest/sniclient/internal/settings"
)

// Settings is what a Node needs from the settings store.
type Settings interface {
	IconSize() int
	ScaleFactor() float64
	CustomIconsFor(itemID string) (config.CustomIcon, bool)
	ThemeName() string
	ThemeSearchPaths() []string
	Subscribe(fn func(settings.Change)) (unsubscribe func())
}

// Renderer displays composites. SetIcon receives nil when the item has no
// icon to show.
type Renderer interface {
	SetIcon(c *Composite)
}

// NodeOption configures a Node.
type NodeOption func(*Node)

// WithNodeLogger sets the logger.
func WithNodeLogger(logger *slog.Logger) NodeOption {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithTheme fixes the icon theme instead of following the settings.
func WithTheme(theme Theme) NodeOption {
	return func(n *Node) {
		n.fixedTheme = theme
	}
}

// WithCacheTimings sets how often idle cache entries are collected.
func WithCacheTimings(t config.Timings) NodeOption {
	return func(n *Node) {
		n.timings = t
	}
}

// Node keeps the displayed icon of one item up to date. It owns the icon
// cache and load slots of that item.
type Node struct {
	item       *item.Item
	settings   Settings
	renderer   Renderer
	logger     *slog.Logger
	timings    config.Timings
	fixedTheme Theme

	cache *Cache
	slots *Slots

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	resolver  *Resolver
	base      *Image
	emblem    *Image
	displayed *Composite
	unsubs    []func()
	destroyed bool
}

// NewNode creates a render node for it.
func NewNode(it *item.Item, s Settings, renderer Renderer, opts ...NodeOption) *Node {
	n := &Node{
		item:     it,
		settings: s,
		renderer: renderer,
		logger:   slog.Default(),
		timings:  config.DefaultTimings(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("item", it.UniqueID())
	n.cache = NewCache(n.logger)
	n.slots = NewSlots()
	n.resolver = NewResolver(n.theme(), n.cache, n.slots, n.logger)
	n.ctx, n.cancel = context.WithCancel(it.Context())
	return n
}

func (n *Node) theme() Theme {
	if n.fixedTheme != nil {
		return n.fixedTheme
	}
	return NewDirTheme(n.settings.ThemeName(), n.settings.ThemeSearchPaths())
}

// Start subscribes to the item and settings and renders the current icon
// if the item is ready.
func (n *Node) Start() {
	n.mu.Lock()
	n.unsubs = append(n.unsubs,
		n.item.Subscribe(n.onItemEvent),
		n.settings.Subscribe(n.onSettingsChange),
	)
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.cache.Run(n.ctx, n.timings.CacheGCInterval.Duration(), n.timings.CacheLifetime.Duration())
	}()

	if n.item.IsReady() {
		n.spawn(n.Update)
	}
}

// Size returns the icon size in logical pixels.
func (n *Node) Size() int {
	return n.settings.IconSize()
}

// Cache returns the icon cache of the node.
func (n *Node) Cache() *Cache {
	return n.cache
}

func (n *Node) onItemEvent(_ *item.Item, event item.Event) {
	switch event {
	case item.EventReady:
		n.spawn(n.Invalidate)
	case item.EventIcon:
		n.spawn(n.UpdateBase)
	case item.EventOverlayIcon:
		n.spawn(n.UpdateOverlay)
	case item.EventReset:
		n.spawn(n.Invalidate)
	case item.EventDestroy:
		go n.Destroy()
	}
}

func (n *Node) onSettingsChange(c settings.Change) {
	if c == settings.ChangeTheme && n.fixedTheme == nil {
		n.mu.Lock()
		n.resolver = NewResolver(n.theme(), n.cache, n.slots, n.logger)
		n.mu.Unlock()
	}
	n.spawn(n.Invalidate)
}

// spawn runs fn on its own goroutine unless the node is gone.
func (n *Node) spawn(fn func(context.Context)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.destroyed {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		fn(n.ctx)
	}()
}

// Invalidate cancels every in-flight load and drops the cached images, then
// resolves both icons again.
func (n *Node) Invalidate(ctx context.Context) {
	n.slots.CancelAll()
	n.cache.Clear()
	n.Update(ctx)
}

// Update resolves both the base icon and the overlay.
func (n *Node) Update(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		n.UpdateBase(ctx)
	}()
	go func() {
		defer wg.Done()
		n.UpdateOverlay(ctx)
	}()
	wg.Wait()
}

// UpdateBase resolves the icon matching the item status.
func (n *Node) UpdateBase(ctx context.Context) {
	status := n.item.Status()
	if status == snidbus.StatusPassive {
		return
	}

	spec := n.item.Icon()
	typ := TypeNormal
	if status == snidbus.StatusNeedsAttention {
		if attention := n.item.AttentionIcon(); !attention.Empty() {
			spec = attention
			typ = TypeAttention
		}
	}

	req := Request{
		Name:      spec.Name,
		Pixmaps:   spec.Pixmaps,
		ThemePath: spec.ThemePath,
		Type:      typ,
		Size:      n.Size(),
		Scale:     n.settings.ScaleFactor(),
	}

	// A custom attention icon that fails to load falls back to the custom
	// normal icon.
	var fallback string
	if custom, ok := n.settings.CustomIconsFor(n.item.ItemID()); ok {
		name := custom.Normal
		if status == snidbus.StatusNeedsAttention && custom.Attention != "" {
			name = custom.Attention
			fallback = custom.Normal
			req.Type = TypeAttention
		}
		if name != "" {
			req.Name = name
			req.Pixmaps = nil
		}
	}

	img, ok := n.resolve(ctx, req)
	if ok && img == nil && fallback != "" {
		req.Name = fallback
		img, ok = n.resolve(ctx, req)
	}
	if !ok {
		return
	}

	n.mu.Lock()
	n.base = img
	n.mu.Unlock()
	n.render()
}

// UpdateOverlay resolves the emblem drawn over the icon.
func (n *Node) UpdateOverlay(ctx context.Context) {
	if n.item.Status() == snidbus.StatusPassive {
		return
	}

	spec := n.item.OverlayIcon()
	if _, ok := n.settings.CustomIconsFor(n.item.ItemID()); ok {
		// Custom icons have no overlay.
		spec = item.IconSpec{}
	}

	var img *Image
	if !spec.Empty() {
		var ok bool
		img, ok = n.resolve(ctx, Request{
			Name:      spec.Name,
			Pixmaps:   spec.Pixmaps,
			ThemePath: spec.ThemePath,
			Type:      TypeOverlay,
			Size:      OverlaySize(n.Size()),
			Scale:     n.settings.ScaleFactor(),
		})
		if !ok {
			return
		}
	}

	n.mu.Lock()
	n.emblem = img
	n.mu.Unlock()
	n.render()
}

// resolve runs one request. It reports false when the outcome belongs to
// another caller or was cancelled.
func (n *Node) resolve(ctx context.Context, req Request) (*Image, bool) {
	n.mu.Lock()
	resolver := n.resolver
	n.mu.Unlock()

	img, err := resolver.Resolve(ctx, req)
	switch {
	case err == nil:
		return img, true
	case errors.Is(err, ErrPending):
		return nil, false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, false
	case errors.Is(err, ErrNoIcon):
		return nil, true
	default:
		n.logger.Warn("failed to resolve icon", "type", req.Type, "error", err)
		return nil, true
	}
}

// render hands the current composite to the renderer. The previously shown
// images are released once replaced.
func (n *Node) render() {
	n.mu.Lock()
	if n.destroyed {
		n.mu.Unlock()
		return
	}
	next := compose(n.displayed, n.base, n.emblem)
	if next.Empty() {
		next = nil
	}
	if next.Equal(n.displayed) {
		n.mu.Unlock()
		return
	}
	if next != nil {
		next.Base.Acquire()
		if next.Emblem != nil {
			next.Emblem.Acquire()
		}
	}
	prev := n.displayed
	n.displayed = next
	n.mu.Unlock()

	n.renderer.SetIcon(next)

	if prev != nil {
		prev.Base.Release()
		if prev.Emblem != nil {
			prev.Emblem.Release()
		}
	}
}

// Displayed returns the composite currently shown.
func (n *Node) Displayed() *Composite {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.displayed
}

// Destroy cancels all loads, drops the cache and releases the shown images.
func (n *Node) Destroy() {
	n.mu.Lock()
	if n.destroyed {
		n.mu.Unlock()
		return
	}
	n.destroyed = true
	unsubs := n.unsubs
	n.unsubs = nil
	displayed := n.displayed
	n.displayed = nil
	n.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	n.cancel()
	n.slots.CancelAll()
	n.wg.Wait()
	n.cache.Destroy()

	if displayed != nil {
		displayed.Base.Release()
		if displayed.Emblem != nil {
			displayed.Emblem.Release()
		}
	}
}
