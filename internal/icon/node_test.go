package icon

import (
	"context"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/sniclient/internal/config"
	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
	"github.com/jmylchreest/sniclient/internal/item"
	"github.com/jmylchreest/sniclient/internal/settings"
)

type stubRemote struct {
	mu      sync.Mutex
	props   map[string]dbus.Variant
	handler snidbus.SignalHandler
}

func newStubRemote(props map[string]any) *stubRemote {
	r := &stubRemote{props: make(map[string]dbus.Variant)}
	for k, v := range props {
		r.props[k] = dbus.MakeVariant(v)
	}
	return r
}

func (r *stubRemote) Subscribe(h snidbus.SignalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *stubRemote) Init(ctx context.Context) (map[string]dbus.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	props := make(map[string]dbus.Variant, len(r.props))
	for k, v := range r.props {
		props[k] = v
	}
	return props, nil
}

func (r *stubRemote) GetProperty(ctx context.Context, name string) (dbus.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.props[name]; ok {
		return v, nil
	}
	return dbus.Variant{}, dbus.Error{Name: snidbus.ErrNameUnknownProperty}
}

func (r *stubRemote) Call(ctx context.Context, method string, args ...any) error { return nil }
func (r *stubRemote) NameOwner() string                                          { return ":1.1" }
func (r *stubRemote) ProcessCommandLine(ctx context.Context) (string, error)     { return "", nil }
func (r *stubRemote) Close()                                                     {}

func (r *stubRemote) change(name string, value any) {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()
	h.OnPropertiesChanged(map[string]dbus.Variant{name: dbus.MakeVariant(value)}, nil)
}

type recordingRenderer struct {
	mu    sync.Mutex
	icons []*Composite
}

func (r *recordingRenderer) SetIcon(c *Composite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.icons = append(r.icons, c)
}

func (r *recordingRenderer) last() *Composite {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.icons) == 0 {
		return nil
	}
	return r.icons[len(r.icons)-1]
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.icons)
}

type nodeFixture struct {
	dir      string
	remote   *stubRemote
	item     *item.Item
	store    *settings.Store
	renderer *recordingRenderer
	node     *Node
}

func newNodeFixture(t *testing.T, props map[string]any, cfg *config.Config) *nodeFixture {
	t.Helper()

	f := &nodeFixture{dir: t.TempDir(), renderer: &recordingRenderer{}}
	base := map[string]any{
		"Id":     "app",
		"Menu":   dbus.ObjectPath("/Menu"),
		"Status": "Active",
	}
	for k, v := range props {
		base[k] = v
	}
	f.remote = newStubRemote(base)

	timings := config.DefaultTimings()
	timings.RetryInterval = config.Duration(10 * time.Millisecond)
	f.item = item.New(f.remote, "", ":1.1", "/StatusNotifierItem", item.WithTimings(timings))

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Theme.SearchPaths = []string{f.dir}
	f.store = settings.NewStore(cfg, nil)

	f.node = NewNode(f.item, f.store, f.renderer, WithCacheTimings(timings))
	f.node.Start()
	f.item.Start(context.Background())

	t.Cleanup(func() {
		f.item.Destroy()
		f.node.Destroy()
	})
	return f
}

func (f *nodeFixture) icon(t *testing.T, name string, size int) string {
	t.Helper()
	return writeFile(t, filepath.Join(f.dir, "hicolor", "48x48", "apps", name+".png"), pngBytes(t, size, size))
}

func (f *nodeFixture) waitBase(t *testing.T, path string) *Composite {
	t.Helper()
	require.Eventually(t, func() bool {
		c := f.renderer.last()
		return c != nil && c.Base.Path == path
	}, time.Second, 5*time.Millisecond)
	return f.renderer.last()
}

func TestNodeRendersReadyItem(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "app.png"), pngBytes(t, 48, 48))
	f := newNodeFixture(t, map[string]any{"IconName": path}, nil)

	c := f.waitBase(t, path)
	assert.Equal(t, image.Rect(0, 0, 16, 16), c.Base.Bounds())
	assert.Nil(t, c.Emblem)
	assert.True(t, c.Base.InUse())
}

func TestNodePassiveItemIsNotRendered(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "app.png"), pngBytes(t, 48, 48))
	f := newNodeFixture(t, map[string]any{"IconName": path, "Status": "Passive"}, nil)

	require.Eventually(t, f.item.IsReady, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, f.renderer.count())
}

func TestNodeAttentionIcon(t *testing.T) {
	dir := t.TempDir()
	normal := writeFile(t, filepath.Join(dir, "normal.png"), pngBytes(t, 16, 16))
	attention := writeFile(t, filepath.Join(dir, "attention.png"), pngBytes(t, 16, 16))
	f := newNodeFixture(t, map[string]any{"IconName": normal, "AttentionIconName": attention}, nil)
	f.waitBase(t, normal)

	f.remote.change("Status", "NeedsAttention")

	f.waitBase(t, attention)
}

func TestNodeOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "app.png"), pngBytes(t, 48, 48))
	emblem := writeFile(t, filepath.Join(dir, "emblem.png"), pngBytes(t, 48, 48))
	f := newNodeFixture(t, map[string]any{"IconName": path, "OverlayIconName": emblem}, nil)

	require.Eventually(t, func() bool {
		c := f.renderer.last()
		return c != nil && c.Emblem != nil
	}, time.Second, 5*time.Millisecond)

	c := f.renderer.last()
	assert.Equal(t, image.Rect(0, 0, 10, 10), c.Emblem.Bounds())
	assert.NotNil(t, c.Render(16))
}

func TestNodeCustomIcon(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Icons.Custom = []config.CustomIcon{{ID: "app", Normal: "custom-app"}}
	f := newNodeFixture(t, map[string]any{"IconName": "ignored"}, cfg)
	path := f.icon(t, "custom-app", 48)

	// The theme file appears after start, so force a refresh.
	f.item.Reset()

	f.waitBase(t, path)
}

func TestNodeCustomAttentionFallsBackToNormal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Icons.Custom = []config.CustomIcon{{ID: "app", Normal: "custom-app", Attention: "custom-missing"}}
	f := newNodeFixture(t, map[string]any{"IconName": "ignored", "Status": "NeedsAttention"}, cfg)
	path := f.icon(t, "custom-app", 48)

	f.item.Reset()

	f.waitBase(t, path)
}

func TestNodeCustomIconHasNoOverlay(t *testing.T) {
	emblem := writeFile(t, filepath.Join(t.TempDir(), "emblem.png"), pngBytes(t, 16, 16))
	cfg := config.DefaultConfig()
	cfg.Icons.Custom = []config.CustomIcon{{ID: "app", Normal: "custom-app"}}
	f := newNodeFixture(t, map[string]any{"IconName": "ignored", "OverlayIconName": emblem}, cfg)
	path := f.icon(t, "custom-app", 48)

	f.item.Reset()

	f.waitBase(t, path)
	assert.Never(t, func() bool {
		c := f.renderer.last()
		return c != nil && c.Emblem != nil
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestNodeReadyInvalidatesCache(t *testing.T) {
	f := newNodeFixture(t, map[string]any{"IconName": "themed"}, nil)
	path := f.icon(t, "themed", 48)
	f.item.Reset()
	first := f.waitBase(t, path)

	f.remote.mu.Lock()
	h := f.remote.handler
	f.remote.mu.Unlock()
	h.OnNameOwnerChanged("")
	require.False(t, f.item.IsReady())
	h.OnNameOwnerChanged(":1.2")

	// Becoming ready again reloads instead of reusing the cached image.
	require.Eventually(t, func() bool {
		img, ok := f.node.Cache().Get(first.Base.ID)
		return f.item.IsReady() && ok && img != first.Base
	}, time.Second, 5*time.Millisecond)
}

func TestNodeSettingsChangeInvalidates(t *testing.T) {
	f := newNodeFixture(t, map[string]any{"IconName": "themed"}, nil)
	path := f.icon(t, "themed", 48)
	f.item.Reset()
	first := f.waitBase(t, path)
	require.Eventually(t, func() bool { return f.node.Cache().Len() == 1 }, time.Second, 5*time.Millisecond)

	cfg := config.DefaultConfig()
	cfg.Icons.Size = 32
	cfg.Theme.SearchPaths = []string{f.dir}
	f.store.Apply(cfg)

	require.Eventually(t, func() bool {
		c := f.renderer.last()
		return c != nil && c.Base.Bounds().Dx() == 32
	}, time.Second, 5*time.Millisecond)

	assert.False(t, first.Base.InUse(), "replaced images are released")
	assert.True(t, first.Base.Disposed(), "cleared images are disposed once released")
}

func TestNodeReleasesSupersededImage(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.png"), pngBytes(t, 16, 16))
	b := writeFile(t, filepath.Join(dir, "b.png"), pngBytes(t, 16, 16))
	f := newNodeFixture(t, map[string]any{"IconName": a}, nil)
	first := f.waitBase(t, a)

	f.remote.change("IconName", b)

	second := f.waitBase(t, b)
	assert.False(t, first.Base.InUse())
	assert.True(t, second.Base.InUse())
}

func TestNodeDestroyedWithItem(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "app.png"), pngBytes(t, 16, 16))
	f := newNodeFixture(t, map[string]any{"IconName": path}, nil)
	c := f.waitBase(t, path)

	f.item.Destroy()

	require.Eventually(t, func() bool { return f.node.Displayed() == nil }, time.Second, 5*time.Millisecond)
	assert.False(t, c.Base.InUse())
	assert.Zero(t, f.node.Cache().Len())
}

func TestComposeKeepsEqualEmblem(t *testing.T) {
	base := testImage("base")
	emblem := testImage("emblem")
	prev := &Composite{Base: base, Emblem: emblem}

	next := compose(prev, testImage("other"), testImage("emblem"))
	assert.Same(t, emblem, next.Emblem)

	next = compose(prev, base, nil)
	assert.Nil(t, next.Emblem)

	assert.True(t, (*Composite)(nil).Empty())
	assert.True(t, (*Composite)(nil).Equal(nil))
	assert.Equal(t, 10, OverlaySize(16))
	assert.Equal(t, 20, OverlaySize(32))
}
