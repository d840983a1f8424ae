package item

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

const vendorPrefix = "XAyatana"

// PropertyForSignal returns the property a change signal refers to:
// NewX maps to X and XAyatanaNewX maps to XAyatanaX. Other signals map to "".
func PropertyForSignal(signal string) string {
	if rest, ok := strings.CutPrefix(signal, vendorPrefix+"New"); ok && rest != "" {
		return vendorPrefix + rest
	}
	if rest, ok := strings.CutPrefix(signal, "New"); ok && rest != "" {
		return rest
	}
	return ""
}

// PropertyGroup returns X and its Name, Pixmap and AccessibleDesc variants.
func PropertyGroup(prop string) []string {
	return []string{prop, prop + "Name", prop + "Pixmap", prop + "AccessibleDesc"}
}

// TranslateSignal returns the supported properties a parameterless change
// signal invalidates.
func TranslateSignal(signal string, supported []string) []string {
	prop := PropertyForSignal(signal)
	if prop == "" {
		return nil
	}

	var props []string
	for _, name := range PropertyGroup(prop) {
		if slices.Contains(supported, name) {
			props = append(props, name)
		}
	}
	return props
}

func (it *Item) onItemSignal(name string, body []any) {
	if prop := PropertyForSignal(name); prop != "" && len(body) > 0 {
		it.queuePropertyUpdate(prop, dbus.MakeVariant(body[0]))
		return
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.destroying {
		return
	}
	it.pendingSignal[name] = struct{}{}
	if it.debounce != nil {
		return
	}
	it.debounce = time.AfterFunc(it.timings.Debounce.Duration(), it.flushSignals)
}

// flushSignals refreshes every property invalidated by the signals received
// during the debounce window.
func (it *Item) flushSignals() {
	it.mu.Lock()
	it.debounce = nil
	if it.destroying {
		it.mu.Unlock()
		return
	}
	signals := slices.Sorted(maps.Keys(it.pendingSignal))
	clear(it.pendingSignal)
	supported := slices.Clone(it.supported)
	it.mu.Unlock()

	seen := make(map[string]bool)
	for _, signal := range signals {
		for _, prop := range TranslateSignal(signal, supported) {
			if seen[prop] {
				continue
			}
			seen[prop] = true
			// Pixmaps can change content without changing identity.
			skipEquality := strings.HasSuffix(prop, "Pixmap")
			go func() {
				if err := it.refreshProperty(prop, skipEquality); err != nil && !snidbus.IsCancelled(err) {
					it.logger.Debug("failed to refresh property", "property", prop, "error", err)
				}
			}()
		}
	}
}

// queuePropertyUpdate records a value carried by a signal. Values queued
// before the next flush coalesce, last one wins.
func (it *Item) queuePropertyUpdate(prop string, value dbus.Variant) {
	it.mu.Lock()
	if it.destroying {
		it.mu.Unlock()
		return
	}
	if it.queued != nil {
		it.queued[prop] = value
		it.mu.Unlock()
		return
	}
	it.queued = map[string]dbus.Variant{prop: value}
	it.mu.Unlock()

	go it.flushQueued()
}

func (it *Item) flushQueued() {
	it.mu.Lock()
	queued := it.queued
	it.queued = nil
	if it.destroying {
		it.mu.Unlock()
		return
	}

	var changed []string
	for _, prop := range slices.Sorted(maps.Keys(queued)) {
		if !IsTracked(prop) {
			continue
		}
		if it.props.set(prop, queued[prop]) {
			changed = append(changed, prop)
		}
	}
	it.mu.Unlock()

	if len(changed) > 0 {
		it.propertiesChanged(changed)
	}
}

func (it *Item) onPropertiesChanged(changed map[string]dbus.Variant, invalidated []string) {
	it.mu.Lock()
	if it.destroying {
		it.mu.Unlock()
		return
	}
	var props []string
	for _, name := range slices.Sorted(maps.Keys(changed)) {
		if IsTracked(name) && it.props.set(name, changed[name]) {
			props = append(props, name)
		}
	}
	it.mu.Unlock()

	for _, name := range invalidated {
		if !IsTracked(name) {
			continue
		}
		go func() {
			if err := it.refreshProperty(name, false); err != nil && !snidbus.IsCancelled(err) {
				it.logger.Debug("failed to refresh invalidated property", "property", name, "error", err)
			}
		}()
	}

	if len(props) > 0 {
		it.propertiesChanged(props)
	}
}

// refreshProperty reads one property from the peer. Concurrent refreshes of
// the same property share one bus call. A property the peer does not know
// is dropped from the snapshot.
func (it *Item) refreshProperty(name string, skipEquality bool) error {
	it.mu.Lock()
	if it.destroying {
		it.mu.Unlock()
		return context.Canceled
	}
	ctx := it.refreshCtx
	key := fmt.Sprintf("%d/%s", it.refreshGen, name)
	it.mu.Unlock()

	v, err, _ := it.refreshGroup.Do(key, func() (any, error) {
		return it.remote.GetProperty(ctx, name)
	})

	if err != nil {
		if snidbus.IsCancelled(err) || ctx.Err() != nil {
			return context.Canceled
		}
		if !snidbus.IsUnknown(err) {
			return fmt.Errorf("refresh %s: %w", name, err)
		}

		it.mu.Lock()
		_, had := it.props[name]
		delete(it.props, name)
		it.mu.Unlock()

		if had {
			it.propertiesChanged([]string{name})
		}
		return nil
	}

	value := v.(dbus.Variant)

	it.mu.Lock()
	if it.destroying {
		it.mu.Unlock()
		return context.Canceled
	}
	changed := it.props.set(name, value)
	it.mu.Unlock()

	if changed || skipEquality {
		it.propertiesChanged([]string{name})
	}
	return nil
}

// cancelRefreshes aborts every pending property refresh.
func (it *Item) cancelRefreshes() {
	it.mu.Lock()
	defer it.mu.Unlock()

	it.refreshStop()
	it.refreshGen++
	it.refreshCtx, it.refreshStop = context.WithCancel(it.ctx)
}
