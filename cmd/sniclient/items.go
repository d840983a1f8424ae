package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
	"github.com/jmylchreest/sniclient/internal/item"
)

// connectBus opens a private session bus connection.
func connectBus() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return conn, nil
}

// targetArgs turns "<service> [path]" arguments into item coordinates.
// A service containing a slash is treated as a watcher entry.
func targetArgs(args []string) (service, busName string, path dbus.ObjectPath) {
	service = args[0]
	busName, path = snidbus.SplitItemName(service)
	if len(args) > 1 {
		path = dbus.ObjectPath(args[1])
	}
	return service, busName, path
}

// newItem creates an item talking to busName and path. It does nothing
// until started.
func newItem(conn *dbus.Conn, service, busName string, path dbus.ObjectPath, opts ...item.Option) *item.Item {
	proxy := snidbus.NewProxy(conn, busName, path, logger)
	opts = append([]item.Option{
		item.WithLogger(logger),
		item.WithTimings(settingsStore.Timings()),
		item.WithActivationTokens(envTokens{}),
	}, opts...)
	return item.New(proxy, service, busName, path, opts...)
}

// openItem creates and starts an item. The item is destroyed when ctx is
// cancelled.
func openItem(ctx context.Context, conn *dbus.Conn, service, busName string, path dbus.ObjectPath) *item.Item {
	it := newItem(conn, service, busName, path)
	it.Start(ctx)
	return it
}

var errItemGone = errors.New("item went away")

// waitReady blocks until it is ready, destroyed, or ctx is done.
func waitReady(ctx context.Context, it *item.Item) error {
	changed := make(chan struct{}, 1)
	unsubscribe := it.Subscribe(func(_ *item.Item, event item.Event) {
		if event == item.EventReady || event == item.EventDestroy {
			select {
			case changed <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	for {
		if it.IsReady() {
			return nil
		}
		if it.Destroyed() {
			return fmt.Errorf("%s: %w", it.UniqueID(), errItemGone)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not ready: %w", it.UniqueID(), ctx.Err())
		case <-changed:
		}
	}
}

// envTokens hands out the activation token sniclient was started with.
type envTokens struct{}

func (envTokens) Token(app item.AppInfo, timestamp uint32) (string, error) {
	token := os.Getenv("XDG_ACTIVATION_TOKEN")
	if token == "" {
		return "", errors.New("XDG_ACTIVATION_TOKEN not set")
	}
	logger.Debug("providing activation token", "app", app.ID, "timestamp", timestamp)
	return token, nil
}

func (envTokens) Failed(token string) {
	logger.Debug("activation token rejected")
}
