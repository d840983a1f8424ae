// Package dbus is the bus side of a StatusNotifierItem client.
// It wraps a godbus connection into a Proxy for one remote item: property
// reads, method calls, and dispatch of the item's change signals, the
// batched PropertiesChanged notification and name owner changes. It also
// carries the item interface descriptor and the helpers that classify
// remote errors into "unknown object/interface/method/property",
// cancellation, and everything else.
package dbus
