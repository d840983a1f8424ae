package dbus

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	// ItemInterface is the StatusNotifierItem interface name.
	ItemInterface = "org.kde.StatusNotifierItem"
	// ItemPath is the default StatusNotifierItem object path.
	ItemPath = "/StatusNotifierItem"
	// WatcherInterface is the StatusNotifierWatcher interface and bus name.
	WatcherInterface = "org.kde.StatusNotifierWatcher"
	// WatcherPath is the StatusNotifierWatcher object path.
	WatcherPath = "/StatusNotifierWatcher"
	// PropertiesInterface is the standard properties interface.
	PropertiesInterface = "org.freedesktop.DBus.Properties"
	// NoMenuPath is the sentinel some items publish when they have no menu.
	NoMenuPath = "/NO_DBUSMENU"
)

// Status is the status of a StatusNotifierItem.
type Status string

const (
	// StatusPassive means the item is idle and may be hidden.
	StatusPassive Status = "Passive"
	// StatusActive means the item should be shown.
	StatusActive Status = "Active"
	// StatusNeedsAttention means the item asks for user attention.
	StatusNeedsAttention Status = "NeedsAttention"
)

// ParseStatus converts a protocol status string, defaulting to StatusActive
// for unknown values.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusPassive:
		return StatusPassive
	case StatusNeedsAttention:
		return StatusNeedsAttention
	default:
		return StatusActive
	}
}

// Pixmap is one entry of an a(iiay) icon pixmap property.
// Data holds Width*Height pixels of 4 bytes each in ARGB order.
type Pixmap struct {
	Width  int32
	Height int32
	Data   []byte
}

// Size returns the number of bytes the pixmap claims to hold.
func (p Pixmap) Size() int {
	return int(p.Width) * int(p.Height) * 4
}

// ParsePixmaps decodes the value of an a(iiay) property.
//
// godbus delivers structs nested in variants as []any, so the usual shape is
// [][]any{{int32, int32, []byte}, ...}. Entries that don't match are skipped.
func ParsePixmaps(value any) ([]Pixmap, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []Pixmap:
		return v, nil
	case [][]any:
		pixmaps := make([]Pixmap, 0, len(v))
		for _, entry := range v {
			if p, err := parsePixmap(entry); err == nil {
				pixmaps = append(pixmaps, p)
			}
		}
		return pixmaps, nil
	case []any:
		pixmaps := make([]Pixmap, 0, len(v))
		for _, entry := range v {
			fields, ok := entry.([]any)
			if !ok {
				continue
			}
			if p, err := parsePixmap(fields); err == nil {
				pixmaps = append(pixmaps, p)
			}
		}
		return pixmaps, nil
	default:
		return nil, fmt.Errorf("invalid pixmap array type %T", value)
	}
}

func parsePixmap(fields []any) (Pixmap, error) {
	if len(fields) != 3 {
		return Pixmap{}, fmt.Errorf("invalid pixmap format: expected 3 fields, got %d", len(fields))
	}

	width, ok := fields[0].(int32)
	if !ok {
		return Pixmap{}, fmt.Errorf("invalid width type: expected int32")
	}

	height, ok := fields[1].(int32)
	if !ok {
		return Pixmap{}, fmt.Errorf("invalid height type: expected int32")
	}

	data, ok := fields[2].([]byte)
	if !ok {
		return Pixmap{}, fmt.Errorf("invalid bytes format: expected []byte")
	}

	return Pixmap{Width: width, Height: height, Data: data}, nil
}

// ParseToolTip extracts the title of a (sa(iiay)ss) tooltip value.
func ParseToolTip(value any) string {
	fields, ok := value.([]any)
	if !ok || len(fields) < 3 {
		return ""
	}
	title, _ := fields[2].(string)
	return title
}

// SplitItemName splits a watcher entry of the form "<busName>/<objectPath>".
// Entries without a path use ItemPath.
func SplitItemName(itemName string) (busName string, path dbus.ObjectPath) {
	name, objectPath, ok := strings.Cut(itemName, "/")
	if !ok {
		return name, ItemPath
	}
	return name, dbus.ObjectPath("/" + objectPath)
}
