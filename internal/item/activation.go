package item

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

type capability int8

const (
	capUnknown capability = iota
	capSupported
	capUnsupported
)

// AppInfo identifies the application an activation token is requested for.
type AppInfo struct {
	ID          string
	CommandLine string
}

// TokenSource hands out activation tokens for items.
type TokenSource interface {
	Token(app AppInfo, timestamp uint32) (string, error)
	// Failed is called when the item rejected a token.
	Failed(token string)
}

func (it *Item) capability(method string) capability {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.caps[method]
}

// Supports reports whether method may be invoked. Methods are assumed
// supported until the peer answers with an unknown-method error.
func (it *Item) Supports(method string) bool {
	return it.capability(method) != capUnsupported
}

// SupportsActivation reports whether the item accepts Activate.
func (it *Item) SupportsActivation() bool {
	return it.Supports("Activate")
}

// callContext returns a context cancelled by either ctx or item destruction.
func (it *Item) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(it.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (it *Item) invoke(ctx context.Context, method string, args ...any) error {
	if it.Destroyed() {
		return ErrDestroyed
	}
	if it.capability(method) == capUnsupported {
		return fmt.Errorf("%s: %w", method, ErrUnsupported)
	}

	ctx, cancel := it.callContext(ctx)
	defer cancel()

	err := it.remote.Call(ctx, method, args...)

	it.mu.Lock()
	defer it.mu.Unlock()
	switch {
	case err == nil:
		it.caps[method] = capSupported
		return nil
	case snidbus.IsUnknownMethod(err):
		it.caps[method] = capUnsupported
		return fmt.Errorf("%s: %w: %w", method, ErrUnsupported, err)
	default:
		return fmt.Errorf("%s: %w", method, err)
	}
}

// ProvideActivationToken offers a fresh activation token to the item. It is
// a no-op without a token source or when the item rejected the method.
func (it *Item) ProvideActivationToken(ctx context.Context, timestamp uint32) {
	const method = "ProvideXdgActivationToken"
	if it.tokens == nil || !it.Supports(method) {
		return
	}

	token, err := it.tokens.Token(AppInfo{ID: it.ItemID(), CommandLine: it.CommandLine()}, timestamp)
	if err != nil {
		it.logger.Debug("failed to get activation token", "error", err)
		return
	}

	if err := it.invoke(ctx, method, token); err != nil {
		it.tokens.Failed(token)
		if !errors.Is(err, ErrUnsupported) && !snidbus.IsCancelled(err) {
			it.logger.Warn("failed to provide activation token", "error", err)
		}
	}
}

// result logs a failed action. Cancellation is not an error.
func (it *Item) result(action string, err error) error {
	if err == nil || snidbus.IsCancelled(err) {
		return nil
	}
	if errors.Is(err, ErrUnsupported) {
		it.logger.Warn("item does not support "+action, "error", err)
		return err
	}
	it.logger.Error("failed to "+action, "error", err)
	return err
}

// Activate performs the primary action of the item at x, y.
func (it *Item) Activate(ctx context.Context, x, y int32, timestamp uint32) error {
	it.ProvideActivationToken(ctx, timestamp)
	return it.result("activate", it.invoke(ctx, "Activate", x, y))
}

// SecondaryActivate performs the secondary action, preferring the vendor
// variant that carries the event timestamp.
func (it *Item) SecondaryActivate(ctx context.Context, x, y int32, timestamp uint32) error {
	it.ProvideActivationToken(ctx, timestamp)

	err := it.invoke(ctx, "XAyatanaSecondaryActivate", timestamp)
	if errors.Is(err, ErrUnsupported) {
		err = it.invoke(ctx, "SecondaryActivate", x, y)
	}
	return it.result("secondary activate", err)
}

// ContextMenu asks the item to show its own context menu at x, y.
func (it *Item) ContextMenu(ctx context.Context, x, y int32) error {
	return it.result("show context menu", it.invoke(ctx, "ContextMenu", x, y))
}

// Scroll sends horizontal and vertical scroll deltas. Zero deltas are not sent.
func (it *Item) Scroll(ctx context.Context, dx, dy int32) error {
	var g errgroup.Group
	if dx != 0 {
		g.Go(func() error {
			return it.invoke(ctx, "Scroll", dx, "horizontal")
		})
	}
	if dy != 0 {
		g.Go(func() error {
			return it.invoke(ctx, "Scroll", dy, "vertical")
		})
	}
	return it.result("scroll", g.Wait())
}
