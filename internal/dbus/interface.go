package dbus

import (
	"sync"

	"github.com/godbus/dbus/v5/introspect"
)

var (
	interfaceMu   sync.Mutex
	interfaceInfo *introspect.Interface
)

// ItemInterfaceInfo returns the StatusNotifierItem interface descriptor.
// It is built on first use and shared by every item; callers must not
// modify it.
func ItemInterfaceInfo() *introspect.Interface {
	interfaceMu.Lock()
	defer interfaceMu.Unlock()

	if interfaceInfo == nil {
		interfaceInfo = &introspect.Interface{
			Name:       ItemInterface,
			Methods:    itemMethods(),
			Signals:    itemSignals(),
			Properties: itemProperties(),
		}
	}
	return interfaceInfo
}

// ResetInterfaceInfo drops the shared descriptor so the next
// ItemInterfaceInfo call rebuilds it.
func ResetInterfaceInfo() {
	interfaceMu.Lock()
	defer interfaceMu.Unlock()
	interfaceInfo = nil
}

// DeclaredProperties returns the property names of the item interface.
func DeclaredProperties() []string {
	info := ItemInterfaceInfo()
	names := make([]string, 0, len(info.Properties))
	for _, p := range info.Properties {
		names = append(names, p.Name)
	}
	return names
}

// IsDeclaredProperty reports whether name is a property of the item interface.
func IsDeclaredProperty(name string) bool {
	for _, p := range ItemInterfaceInfo().Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// itemProperties returns the property introspection data.
func itemProperties() []introspect.Property {
	prop := func(name, typ string) introspect.Property {
		return introspect.Property{Name: name, Type: typ, Access: "read"}
	}
	return []introspect.Property{
		prop("Category", "s"),
		prop("Id", "s"),
		prop("Title", "s"),
		prop("Status", "s"),
		prop("WindowId", "i"),
		prop("IconThemePath", "s"),
		prop("Menu", "o"),
		prop("ItemIsMenu", "b"),
		prop("IconName", "s"),
		prop("IconPixmap", "a(iiay)"),
		prop("OverlayIconName", "s"),
		prop("OverlayIconPixmap", "a(iiay)"),
		prop("AttentionIconName", "s"),
		prop("AttentionIconPixmap", "a(iiay)"),
		prop("AttentionMovieName", "s"),
		prop("ToolTip", "(sa(iiay)ss)"),
	}
}

// itemMethods returns the method introspection data.
func itemMethods() []introspect.Method {
	xy := []introspect.Arg{
		{Name: "x", Type: "i", Direction: "in"},
		{Name: "y", Type: "i", Direction: "in"},
	}
	return []introspect.Method{
		{Name: "ContextMenu", Args: xy},
		{Name: "Activate", Args: xy},
		{Name: "SecondaryActivate", Args: xy},
		{
			Name: "Scroll",
			Args: []introspect.Arg{
				{Name: "delta", Type: "i", Direction: "in"},
				{Name: "orientation", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "ProvideXdgActivationToken",
			Args: []introspect.Arg{
				{Name: "token", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "XAyatanaSecondaryActivate",
			Args: []introspect.Arg{
				{Name: "timestamp", Type: "u", Direction: "in"},
			},
		},
	}
}

// itemSignals returns the signal introspection data.
func itemSignals() []introspect.Signal {
	return []introspect.Signal{
		{Name: "NewTitle"},
		{Name: "NewIcon"},
		{Name: "NewIconThemePath", Args: []introspect.Arg{{Name: "icon_theme_path", Type: "s"}}},
		{Name: "NewAttentionIcon"},
		{Name: "NewOverlayIcon"},
		{Name: "NewMenu"},
		{Name: "NewToolTip"},
		{Name: "NewStatus", Args: []introspect.Arg{{Name: "status", Type: "s"}}},
		{
			Name: "XAyatanaNewLabel",
			Args: []introspect.Arg{
				{Name: "label", Type: "s"},
				{Name: "guide", Type: "s"},
			},
		},
	}
}
