package item

import (
	"context"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

type probe struct {
	cancel context.CancelFunc
}

// CheckAlive schedules a delayed liveness probe. An active item that just
// became ready cancels any pending probe instead. The item is destroyed when
// the probe reports that the peer no longer exposes it.
func (it *Item) CheckAlive() {
	if it.Status() != snidbus.StatusPassive && it.checkReady() {
		it.mu.Lock()
		if it.probe != nil {
			it.probe.cancel()
			it.probe = nil
		}
		it.mu.Unlock()
		return
	}

	it.mu.Lock()
	if it.probe != nil || it.destroying {
		it.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(it.ctx)
	p := &probe{cancel: cancel}
	it.probe = p
	it.mu.Unlock()

	go it.runProbe(ctx, p)
}

func (it *Item) runProbe(ctx context.Context, p *probe) {
	defer func() {
		p.cancel()
		it.mu.Lock()
		if it.probe == p {
			it.probe = nil
		}
		it.mu.Unlock()
	}()

	it.logger.Debug("item may not respond, scheduling liveness check",
		"grace", it.timings.LivenessGrace.Duration())

	if err := sleep(ctx, it.timings.LivenessGrace.Duration()); err != nil {
		return
	}

	_, err := it.remote.GetProperty(ctx, "Status")
	switch {
	case err == nil:
	case snidbus.IsCancelled(err):
	case snidbus.IsUnknown(err):
		it.logger.Warn("item is not available anymore, removing it", "error", err)
		it.Destroy()
	default:
		it.logger.Warn("liveness check failed", "error", err)
	}
}
