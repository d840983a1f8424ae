package dbus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

// SignalHandler receives the notifications a Proxy dispatches.
type SignalHandler interface {
	// OnItemSignal is called for every signal of the item interface.
	OnItemSignal(name string, body []any)
	// OnPropertiesChanged is called for PropertiesChanged on the item interface.
	OnPropertiesChanged(changed map[string]dbus.Variant, invalidated []string)
	// OnNameOwnerChanged is called when the owner of the bus name changes.
	// An empty owner means the name left the bus.
	OnNameOwnerChanged(owner string)
}

// Proxy talks to one StatusNotifierItem object on a bus connection.
type Proxy struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	busName string
	path    dbus.ObjectPath
	logger  *slog.Logger

	mu      sync.RWMutex
	owner   string
	handler SignalHandler
	signals chan *dbus.Signal
	closed  bool
}

// NewProxy creates a proxy for the item at busName and path.
func NewProxy(conn *dbus.Conn, busName string, path dbus.ObjectPath, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = ItemPath
	}
	return &Proxy{
		conn:    conn,
		obj:     conn.Object(busName, path),
		busName: busName,
		path:    path,
		logger:  logger,
	}
}

// BusName returns the bus name the proxy talks to.
func (p *Proxy) BusName() string {
	return p.busName
}

// Path returns the object path of the item.
func (p *Proxy) Path() dbus.ObjectPath {
	return p.path
}

// Subscribe sets the handler that receives dispatched signals.
// It must be called before Init.
func (p *Proxy) Subscribe(handler SignalHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

// Init resolves the current name owner, installs the match rules, starts
// signal dispatch and returns all properties of the item interface.
func (p *Proxy) Init(ctx context.Context) (map[string]dbus.Variant, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("init %s: proxy is closed", p.busName)
	}
	p.mu.Unlock()

	owner, err := p.nameOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", p.busName, err)
	}

	if err := p.addMatches(); err != nil {
		return nil, fmt.Errorf("init %s: %w", p.busName, err)
	}

	p.mu.Lock()
	p.owner = owner
	p.signals = make(chan *dbus.Signal, 128)
	p.conn.Signal(p.signals)
	go p.dispatch(p.signals)
	p.mu.Unlock()

	var props map[string]dbus.Variant
	call := p.obj.CallWithContext(ctx, PropertiesInterface+".GetAll", 0, ItemInterface)
	if call.Err != nil {
		return nil, fmt.Errorf("init %s: failed to get properties: %w", p.busName, call.Err)
	}
	if err := call.Store(&props); err != nil {
		return nil, fmt.Errorf("init %s: invalid properties reply: %w", p.busName, err)
	}

	p.logger.Debug("item proxy initialized", "bus_name", p.busName, "path", p.path,
		"owner", owner, "properties", len(props))
	return props, nil
}

// GetProperty reads one property of the item interface directly from the peer.
func (p *Proxy) GetProperty(ctx context.Context, name string) (dbus.Variant, error) {
	var value dbus.Variant
	call := p.obj.CallWithContext(ctx, PropertiesInterface+".Get", 0, ItemInterface, name)
	if call.Err != nil {
		return value, call.Err
	}
	if err := call.Store(&value); err != nil {
		return value, fmt.Errorf("invalid %s reply: %w", name, err)
	}
	return value, nil
}

// Call invokes a method of the item interface and waits for the reply.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) error {
	return p.obj.CallWithContext(ctx, ItemInterface+"."+method, 0, args...).Err
}

// NameOwner returns the last known unique name owning the bus name.
func (p *Proxy) NameOwner() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

// ProcessCommandLine returns the command line of the process owning the bus name.
func (p *Proxy) ProcessCommandLine(ctx context.Context) (string, error) {
	var pid uint32
	err := p.conn.BusObject().CallWithContext(ctx,
		"org.freedesktop.DBus.GetConnectionUnixProcessID", 0, p.busName).Store(&pid)
	if err != nil {
		return "", fmt.Errorf("failed to get process id: %w", err)
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return "", fmt.Errorf("failed to read command line: %w", err)
	}

	return strings.TrimSpace(strings.ReplaceAll(string(data), "\x00", " ")), nil
}

// Close removes the match rules and stops signal dispatch.
func (p *Proxy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.handler = nil

	if p.signals == nil {
		return
	}

	for _, opts := range p.matchRules() {
		if err := p.conn.RemoveMatchSignal(opts...); err != nil {
			p.logger.Debug("failed to remove match rule", "bus_name", p.busName, "error", err)
		}
	}
	p.conn.RemoveSignal(p.signals)
	close(p.signals)
}

func (p *Proxy) nameOwner(ctx context.Context) (string, error) {
	if strings.HasPrefix(p.busName, ":") {
		return p.busName, nil
	}

	var owner string
	err := p.conn.BusObject().CallWithContext(ctx,
		"org.freedesktop.DBus.GetNameOwner", 0, p.busName).Store(&owner)
	if err != nil {
		if ErrorName(err) == ErrNameNameHasNoOwner {
			return "", nil
		}
		return "", fmt.Errorf("failed to get name owner: %w", err)
	}
	return owner, nil
}

func (p *Proxy) matchRules() [][]dbus.MatchOption {
	return [][]dbus.MatchOption{
		{
			dbus.WithMatchSender(p.busName),
			dbus.WithMatchObjectPath(p.path),
			dbus.WithMatchInterface(ItemInterface),
		},
		{
			dbus.WithMatchSender(p.busName),
			dbus.WithMatchObjectPath(p.path),
			dbus.WithMatchInterface(PropertiesInterface),
			dbus.WithMatchMember("PropertiesChanged"),
		},
		{
			dbus.WithMatchSender("org.freedesktop.DBus"),
			dbus.WithMatchInterface("org.freedesktop.DBus"),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchArg(0, p.busName),
		},
	}
}

func (p *Proxy) addMatches() error {
	for _, opts := range p.matchRules() {
		if err := p.conn.AddMatchSignal(opts...); err != nil {
			return fmt.Errorf("failed to add match rule: %w", err)
		}
	}
	return nil
}

// dispatch forwards signals for this item until the channel is closed.
func (p *Proxy) dispatch(signals <-chan *dbus.Signal) {
	for signal := range signals {
		p.handleSignal(signal)
	}
}

func (p *Proxy) handleSignal(signal *dbus.Signal) {
	p.mu.RLock()
	handler := p.handler
	owner := p.owner
	p.mu.RUnlock()

	if handler == nil {
		return
	}

	if signal.Name == "org.freedesktop.DBus.NameOwnerChanged" {
		if len(signal.Body) < 3 {
			return
		}
		name, _ := signal.Body[0].(string)
		newOwner, _ := signal.Body[2].(string)
		if name != p.busName {
			return
		}
		p.mu.Lock()
		p.owner = newOwner
		p.mu.Unlock()
		handler.OnNameOwnerChanged(newOwner)
		return
	}

	// The connection is shared, so every item sees every matched signal.
	if signal.Path != p.path || (signal.Sender != owner && signal.Sender != p.busName) {
		return
	}

	if signal.Name == PropertiesInterface+".PropertiesChanged" {
		if len(signal.Body) < 2 {
			return
		}
		iface, _ := signal.Body[0].(string)
		if iface != ItemInterface {
			return
		}
		changed, _ := signal.Body[1].(map[string]dbus.Variant)
		var invalidated []string
		if len(signal.Body) > 2 {
			invalidated, _ = signal.Body[2].([]string)
		}
		handler.OnPropertiesChanged(changed, invalidated)
		return
	}

	if member, ok := strings.CutPrefix(signal.Name, ItemInterface+"."); ok {
		handler.OnItemSignal(member, signal.Body)
	}
}

// RegisteredItems returns the items registered with the StatusNotifierWatcher
// as "<busName>/<objectPath>" entries.
func RegisteredItems(ctx context.Context, conn *dbus.Conn) ([]string, error) {
	var value dbus.Variant
	call := conn.Object(WatcherInterface, WatcherPath).CallWithContext(ctx,
		PropertiesInterface+".Get", 0, WatcherInterface, "RegisteredStatusNotifierItems")
	if call.Err != nil {
		return nil, fmt.Errorf("failed to query watcher: %w", call.Err)
	}
	if err := call.Store(&value); err != nil {
		return nil, fmt.Errorf("invalid watcher reply: %w", err)
	}

	items, ok := value.Value().([]string)
	if !ok {
		return nil, fmt.Errorf("invalid RegisteredStatusNotifierItems type %T", value.Value())
	}
	return items, nil
}
