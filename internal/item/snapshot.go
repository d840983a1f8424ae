package item

import (
	"maps"
	"reflect"
	"slices"

	"github.com/godbus/dbus/v5"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

// ExtensionProperties are vendor properties tracked in addition to the
// declared item interface properties.
var ExtensionProperties = []string{
	"XAyatanaLabel",
	"XAyatanaLabelGuide",
	"XAyatanaOrderingIndex",
	"IconAccessibleDesc",
	"AttentionAccessibleDesc",
}

// MandatoryProperties must be known before an item can become ready.
var MandatoryProperties = []string{"Id", "Menu"}

// IsTracked reports whether a property belongs in the snapshot.
func IsTracked(name string) bool {
	return snidbus.IsDeclaredProperty(name) || slices.Contains(ExtensionProperties, name)
}

// Snapshot is the last known value of every tracked property.
type Snapshot map[string]dbus.Variant

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return maps.Clone(s)
}

// Has reports whether a value is known for name.
func (s Snapshot) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// String returns a string or object path property, or "".
func (s Snapshot) String(name string) string {
	v, ok := s[name]
	if !ok {
		return ""
	}
	switch value := v.Value().(type) {
	case string:
		return value
	case dbus.ObjectPath:
		return string(value)
	default:
		return ""
	}
}

// Int returns an integer property, or 0.
func (s Snapshot) Int(name string) int64 {
	v, ok := s[name]
	if !ok {
		return 0
	}
	switch value := v.Value().(type) {
	case int32:
		return int64(value)
	case uint32:
		return int64(value)
	case int64:
		return value
	case uint64:
		return int64(value)
	default:
		return 0
	}
}

// Pixmaps returns an a(iiay) property decoded into pixmaps.
func (s Snapshot) Pixmaps(name string) []snidbus.Pixmap {
	v, ok := s[name]
	if !ok {
		return nil
	}
	pixmaps, err := snidbus.ParsePixmaps(v.Value())
	if err != nil {
		return nil
	}
	return pixmaps
}

// Status returns the item status. Items that never published one are
// considered passive.
func (s Snapshot) Status() snidbus.Status {
	if !s.Has("Status") {
		return snidbus.StatusPassive
	}
	return snidbus.ParseStatus(s.String("Status"))
}

// MenuPath returns the menu object path, or "" when the item has no menu.
func (s Snapshot) MenuPath() string {
	path := s.String("Menu")
	if path == snidbus.NoMenuPath {
		return ""
	}
	return path
}

// set stores a value and reports whether it differs from the previous one.
func (s Snapshot) set(name string, value dbus.Variant) bool {
	old, ok := s[name]
	s[name] = value
	return !ok || !sameValue(old, value)
}

func sameValue(a, b dbus.Variant) bool {
	return a.Signature() == b.Signature() && reflect.DeepEqual(a.Value(), b.Value())
}

// supportedProperties returns the tracked properties the peer exposes.
// Once the peer exposes any declared property the extension properties are
// considered supported too.
func supportedProperties(s Snapshot) []string {
	var supported []string
	for _, name := range snidbus.DeclaredProperties() {
		if s.Has(name) {
			supported = append(supported, name)
		}
	}
	if len(supported) > 0 {
		supported = append(supported, ExtensionProperties...)
	}
	return supported
}
