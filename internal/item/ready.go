package item

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

// IsReady reports whether the item has a name owner and both mandatory
// properties.
func (it *Item) IsReady() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.ready
}

func (it *Item) hasMandatory() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.props.String("Id") != "" && it.props.MenuPath() != ""
}

// checkReady recomputes readiness and the supported property list. It
// returns true only when the item just became ready, in which case ready is
// emitted.
func (it *Item) checkReady() bool {
	it.mu.Lock()
	was := it.ready
	it.ready = it.hasOwner && it.props.String("Id") != "" && it.props.MenuPath() != ""
	it.supported = supportedProperties(it.props)
	becameReady := it.ready && !was
	if becameReady && it.delayStop != nil {
		it.delayStop()
		it.delayStop = nil
	}
	it.mu.Unlock()

	if becameReady {
		it.emit(EventReady)
	}
	return becameReady
}

// ensureMandatory waits for the mandatory properties, refreshing them up to
// the configured number of attempts. It stops early once the item becomes
// ready through another path.
func (it *Item) ensureMandatory(ctx context.Context) (bool, error) {
	if it.hasMandatory() {
		return true, nil
	}

	var lastErr error
	for range it.timings.RetryAttempts {
		delayCtx, stop := context.WithCancel(ctx)
		it.mu.Lock()
		it.delayStop = stop
		it.mu.Unlock()

		err := sleep(delayCtx, it.timings.RetryInterval.Duration())

		it.mu.Lock()
		it.delayStop = nil
		it.mu.Unlock()
		stop()

		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// Readiness was reached while waiting.
			return true, nil
		}

		var g errgroup.Group
		for _, prop := range MandatoryProperties {
			g.Go(func() error {
				return it.refreshProperty(prop, false)
			})
		}
		lastErr = g.Wait()
		if lastErr != nil && snidbus.IsCancelled(lastErr) {
			return false, lastErr
		}

		if it.hasMandatory() {
			return true, nil
		}
	}

	return it.hasMandatory(), lastErr
}

func (it *Item) onNameOwnerChanged(owner string) {
	it.mu.Lock()
	if it.destroying {
		it.mu.Unlock()
		return
	}
	it.hasOwner = owner != ""
	delete(it.props, "Id")
	delete(it.props, "Menu")
	it.mu.Unlock()

	it.logger.Debug("name owner changed", "owner", owner)

	if owner == "" {
		it.cancelRefreshes()
		it.checkReady()
		it.emit(EventNameOwnerChanged)
		return
	}

	go func() {
		if _, err := it.ensureMandatory(it.ctx); err != nil && !snidbus.IsCancelled(err) {
			it.logger.Warn("item did not publish mandatory properties", "error", err)
			it.CheckAlive()
		}
		it.emit(EventNameOwnerChanged)
	}()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
