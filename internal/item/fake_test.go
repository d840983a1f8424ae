package item

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/sniclient/internal/config"
	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

type methodCall struct {
	method string
	args   []any
}

type fakeRemote struct {
	mu        sync.Mutex
	handler   snidbus.SignalHandler
	initProps map[string]dbus.Variant
	initErr   error
	owner     string
	props     map[string]dbus.Variant
	propErrs  map[string]error
	gets      map[string]int
	callErrs  map[string]error
	calls     []methodCall
	cmdline   string
	closed    bool
}

func newFakeRemote(props map[string]any) *fakeRemote {
	r := &fakeRemote{
		owner:     ":1.42",
		initProps: make(map[string]dbus.Variant),
		props:     make(map[string]dbus.Variant),
		propErrs:  make(map[string]error),
		gets:      make(map[string]int),
		callErrs:  make(map[string]error),
		cmdline:   "/usr/bin/example --tray",
	}
	for name, value := range props {
		r.initProps[name] = dbus.MakeVariant(value)
		r.props[name] = dbus.MakeVariant(value)
	}
	return r
}

func (r *fakeRemote) Subscribe(handler snidbus.SignalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

func (r *fakeRemote) Init(ctx context.Context) (map[string]dbus.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initErr != nil {
		return nil, r.initErr
	}
	props := make(map[string]dbus.Variant, len(r.initProps))
	for k, v := range r.initProps {
		props[k] = v
	}
	return props, nil
}

func (r *fakeRemote) GetProperty(ctx context.Context, name string) (dbus.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets[name]++
	if err, ok := r.propErrs[name]; ok {
		return dbus.Variant{}, err
	}
	if v, ok := r.props[name]; ok {
		return v, nil
	}
	return dbus.Variant{}, dbus.Error{Name: snidbus.ErrNameUnknownProperty}
}

func (r *fakeRemote) Call(ctx context.Context, method string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, methodCall{method: method, args: args})
	return r.callErrs[method]
}

func (r *fakeRemote) NameOwner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

func (r *fakeRemote) ProcessCommandLine(ctx context.Context) (string, error) {
	return r.cmdline, nil
}

func (r *fakeRemote) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *fakeRemote) setProp(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props[name] = dbus.MakeVariant(value)
}

func (r *fakeRemote) getCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets[name]
}

func (r *fakeRemote) methodCalls() []methodCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]methodCall(nil), r.calls...)
}

func (r *fakeRemote) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *fakeRemote) signals() snidbus.SignalHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handler
}

// eventLog records emitted events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(_ *Item, e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) count(e Event) int {
	n := 0
	for _, got := range l.all() {
		if got == e {
			n++
		}
	}
	return n
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func testTimings() config.Timings {
	return config.Timings{
		Debounce:        config.Duration(20 * time.Millisecond),
		RetryInterval:   config.Duration(10 * time.Millisecond),
		RetryAttempts:   3,
		LivenessGrace:   config.Duration(20 * time.Millisecond),
		CacheLifetime:   config.Duration(time.Second),
		CacheGCInterval: config.Duration(time.Second),
	}
}

func readyProps() map[string]any {
	return map[string]any{
		"Id":       "example",
		"Title":    "Example",
		"Menu":     dbus.ObjectPath("/MenuBar"),
		"Status":   "Active",
		"IconName": "example-icon",
	}
}

// startItem starts an item on r and waits until setup finished.
func startItem(t *testing.T, r *fakeRemote, opts ...Option) (*Item, *eventLog) {
	t.Helper()
	opts = append([]Option{WithTimings(testTimings())}, opts...)
	it := New(r, "org.example.Tray", "org.example.Tray", "/StatusNotifierItem", opts...)
	log := &eventLog{}
	it.Subscribe(log.listen)
	it.Start(context.Background())
	t.Cleanup(it.Destroy)
	return it, log
}
