// Package item tracks a single StatusNotifierItem: its property snapshot,
// readiness, liveness and the semantic events derived from its signals.
package item

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/singleflight"

	"github.com/jmylchreest/sniclient/internal/config"
	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

// Errors returned by Item operations.
var (
	ErrUnsupported = errors.New("method not supported by item")
	ErrDestroyed   = errors.New("item destroyed")
)

// Remote is the bus side of an item.
type Remote interface {
	Subscribe(handler snidbus.SignalHandler)
	Init(ctx context.Context) (map[string]dbus.Variant, error)
	GetProperty(ctx context.Context, name string) (dbus.Variant, error)
	Call(ctx context.Context, method string, args ...any) error
	NameOwner() string
	ProcessCommandLine(ctx context.Context) (string, error)
	Close()
}

var busNameRegexp = regexp.MustCompile(`^([a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)+|:[0-9]+\.[0-9]+)$`)

// ID returns the unique identifier of an item. A registered service that is
// itself a bus name distinct from busName identifies the item; otherwise the
// identifier is busName@path.
func ID(service, busName string, path dbus.ObjectPath) string {
	if service != "" && service != busName && busNameRegexp.MatchString(service) {
		return service
	}
	return busName + "@" + string(path)
}

// Option configures an Item.
type Option func(*Item)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(it *Item) {
		if logger != nil {
			it.logger = logger
		}
	}
}

// WithTimings overrides the default protocol timings.
func WithTimings(t config.Timings) Option {
	return func(it *Item) {
		it.timings = t
	}
}

// WithActivationTokens sets the source of activation tokens offered to the
// item before activation.
func WithActivationTokens(tokens TokenSource) Option {
	return func(it *Item) {
		it.tokens = tokens
	}
}

// WithOnDestroy registers a callback run once the item is destroyed.
func WithOnDestroy(fn func(*Item)) Option {
	return func(it *Item) {
		it.onDestroy = fn
	}
}

// Item is the client side of one StatusNotifierItem.
type Item struct {
	remote    Remote
	uniqueID  string
	service   string
	busName   string
	path      dbus.ObjectPath
	logger    *slog.Logger
	timings   config.Timings
	tokens    TokenSource
	onDestroy func(*Item)

	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool

	refreshGroup singleflight.Group

	mu            sync.Mutex
	props         Snapshot
	supported     []string
	ready         bool
	hasOwner      bool
	started       bool
	destroying    bool
	destroyed     bool
	listeners     map[int]Listener
	nextListener  int
	commandLine   string
	caps          map[string]capability
	pendingSignal map[string]struct{}
	debounce      *time.Timer
	queued        map[string]dbus.Variant
	refreshCtx    context.Context
	refreshStop   context.CancelFunc
	refreshGen    uint64
	delayStop     context.CancelFunc
	probe         *probe
}

// New creates an item for the object at busName and path. service is the
// name the item was registered with.
func New(remote Remote, service, busName string, path dbus.ObjectPath, opts ...Option) *Item {
	if path == "" {
		path = snidbus.ItemPath
	}

	it := &Item{
		remote:        remote,
		uniqueID:      ID(service, busName, path),
		service:       service,
		busName:       busName,
		path:          path,
		logger:        slog.Default(),
		timings:       config.DefaultTimings(),
		props:         Snapshot{},
		listeners:     make(map[int]Listener),
		caps:          make(map[string]capability),
		pendingSignal: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(it)
	}
	it.logger = it.logger.With("item", it.uniqueID)

	it.ctx, it.cancel = context.WithCancel(context.Background())
	it.refreshCtx, it.refreshStop = context.WithCancel(it.ctx)

	return it
}

// Start connects to the item in the background. Cancelling ctx destroys the
// item.
func (it *Item) Start(ctx context.Context) {
	it.mu.Lock()
	if it.started || it.destroying {
		it.mu.Unlock()
		return
	}
	it.started = true
	// Passive until the peer says otherwise.
	it.props["Status"] = dbus.MakeVariant(string(snidbus.StatusPassive))
	it.stopParent = context.AfterFunc(ctx, it.Destroy)
	it.mu.Unlock()

	it.remote.Subscribe(signalHandler{it})
	go it.setup()
}

func (it *Item) setup() {
	props, err := it.remote.Init(it.ctx)
	if err != nil {
		if !snidbus.IsCancelled(err) {
			it.logger.Warn("failed to initialize item", "error", err)
			it.Destroy()
		}
		return
	}

	it.mu.Lock()
	if it.destroying {
		it.mu.Unlock()
		return
	}
	for name, value := range props {
		if IsTracked(name) {
			it.props[name] = value
		}
	}
	it.hasOwner = it.remote.NameOwner() != ""
	it.mu.Unlock()

	it.checkReady()

	if _, err := it.ensureMandatory(it.ctx); err != nil && !snidbus.IsCancelled(err) {
		it.logger.Debug("mandatory properties unavailable", "error", err)
	}

	cmdline, err := it.remote.ProcessCommandLine(it.ctx)
	if err != nil {
		if !snidbus.IsCancelled(err) {
			it.logger.Debug("failed to read process command line", "error", err)
		}
		return
	}
	it.mu.Lock()
	it.commandLine = cmdline
	it.mu.Unlock()
}

// UniqueID returns the identifier of the item.
func (it *Item) UniqueID() string {
	return it.uniqueID
}

// BusName returns the bus name the item lives on.
func (it *Item) BusName() string {
	return it.busName
}

// Path returns the object path of the item.
func (it *Item) Path() dbus.ObjectPath {
	return it.path
}

// CommandLine returns the command line of the owning process, if known.
func (it *Item) CommandLine() string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.commandLine
}

// Snapshot returns a copy of the current property values.
func (it *Item) Snapshot() Snapshot {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.props.Clone()
}

// SupportedProperties returns the properties that signals may refresh.
func (it *Item) SupportedProperties() []string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return append([]string(nil), it.supported...)
}

func (it *Item) property(fn func(Snapshot) string) string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return fn(it.props)
}

// ItemID returns the Id property.
func (it *Item) ItemID() string {
	return it.property(func(s Snapshot) string { return s.String("Id") })
}

// Title returns the Title property.
func (it *Item) Title() string {
	return it.property(func(s Snapshot) string { return s.String("Title") })
}

// Category returns the Category property.
func (it *Item) Category() string {
	return it.property(func(s Snapshot) string { return s.String("Category") })
}

// Label returns the vendor label shown next to the icon.
func (it *Item) Label() string {
	return it.property(func(s Snapshot) string { return s.String("XAyatanaLabel") })
}

// LabelGuide returns the longest label the item expects to show.
func (it *Item) LabelGuide() string {
	return it.property(func(s Snapshot) string { return s.String("XAyatanaLabelGuide") })
}

// OrderingIndex returns the vendor ordering hint.
func (it *Item) OrderingIndex() int64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.props.Int("XAyatanaOrderingIndex")
}

// HasNameOwner reports whether the bus name currently has an owner.
func (it *Item) HasNameOwner() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.hasOwner
}

// MenuPath returns the menu object path, or "" if the item has none.
func (it *Item) MenuPath() string {
	return it.property(Snapshot.MenuPath)
}

// ToolTip returns the tooltip title.
func (it *Item) ToolTip() string {
	it.mu.Lock()
	defer it.mu.Unlock()
	v, ok := it.props["ToolTip"]
	if !ok {
		return ""
	}
	return snidbus.ParseToolTip(v.Value())
}

// Status returns the item status.
func (it *Item) Status() snidbus.Status {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.props.Status()
}

// IsMenu reports whether the item only supports showing a menu.
func (it *Item) IsMenu() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	v, ok := it.props["ItemIsMenu"]
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

// AccessibleName returns the description matching the current status,
// falling back to the title.
func (it *Item) AccessibleName() string {
	it.mu.Lock()
	defer it.mu.Unlock()

	var name string
	if it.props.Status() == snidbus.StatusNeedsAttention {
		name = it.props.String("AttentionAccessibleDesc")
	} else {
		name = it.props.String("IconAccessibleDesc")
	}
	if name == "" {
		name = it.props.String("Title")
	}
	return name
}

// IconSpec describes one icon of an item.
type IconSpec struct {
	Name      string
	Pixmaps   []snidbus.Pixmap
	ThemePath string
}

// Empty reports whether the spec carries no icon at all.
func (s IconSpec) Empty() bool {
	return s.Name == "" && len(s.Pixmaps) == 0
}

func (it *Item) iconSpec(prefix string) IconSpec {
	it.mu.Lock()
	defer it.mu.Unlock()
	return IconSpec{
		Name:      it.props.String(prefix + "Name"),
		Pixmaps:   it.props.Pixmaps(prefix + "Pixmap"),
		ThemePath: it.props.String("IconThemePath"),
	}
}

// Icon returns the normal icon.
func (it *Item) Icon() IconSpec {
	return it.iconSpec("Icon")
}

// AttentionIcon returns the icon used while the item needs attention.
func (it *Item) AttentionIcon() IconSpec {
	return it.iconSpec("AttentionIcon")
}

// OverlayIcon returns the emblem drawn over the icon.
func (it *Item) OverlayIcon() IconSpec {
	return it.iconSpec("OverlayIcon")
}

// Reset asks listeners to rebuild everything derived from the item.
func (it *Item) Reset() {
	it.emit(EventReset)
}

// Destroy cancels all pending work, closes the remote and emits destroy.
// It is safe to call more than once.
func (it *Item) Destroy() {
	it.mu.Lock()
	if it.destroying {
		it.mu.Unlock()
		return
	}
	it.destroying = true
	it.mu.Unlock()

	it.emit(EventDestroy)

	it.mu.Lock()
	it.destroyed = true
	it.listeners = nil
	if it.debounce != nil {
		it.debounce.Stop()
		it.debounce = nil
	}
	if it.delayStop != nil {
		it.delayStop()
		it.delayStop = nil
	}
	if it.probe != nil {
		it.probe.cancel()
		it.probe = nil
	}
	stopParent := it.stopParent
	it.mu.Unlock()

	it.cancel()
	if stopParent != nil {
		stopParent()
	}
	it.remote.Close()

	it.logger.Debug("item destroyed")

	if it.onDestroy != nil {
		it.onDestroy(it)
	}
}

// Destroyed reports whether Destroy was called.
func (it *Item) Destroyed() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.destroying
}

// Context returns a context cancelled when the item is destroyed.
func (it *Item) Context() context.Context {
	return it.ctx
}

// signalHandler adapts Item to snidbus.SignalHandler without exporting the
// callbacks on Item itself.
type signalHandler struct {
	it *Item
}

func (h signalHandler) OnItemSignal(name string, body []any) {
	h.it.onItemSignal(name, body)
}

func (h signalHandler) OnPropertiesChanged(changed map[string]dbus.Variant, invalidated []string) {
	h.it.onPropertiesChanged(changed, invalidated)
}

func (h signalHandler) OnNameOwnerChanged(owner string) {
	h.it.onNameOwnerChanged(owner)
}
