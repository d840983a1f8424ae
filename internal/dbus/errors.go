package dbus

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
)

// Remote error names that mean the peer does not (or no longer) expose what
// was asked for.
const (
	ErrNameUnknownObject    = "org.freedesktop.DBus.Error.UnknownObject"
	ErrNameUnknownInterface = "org.freedesktop.DBus.Error.UnknownInterface"
	ErrNameUnknownMethod    = "org.freedesktop.DBus.Error.UnknownMethod"
	ErrNameUnknownProperty  = "org.freedesktop.DBus.Error.UnknownProperty"
	ErrNameServiceUnknown   = "org.freedesktop.DBus.Error.ServiceUnknown"
	ErrNameNameHasNoOwner   = "org.freedesktop.DBus.Error.NameHasNoOwner"
)

// ErrorName returns the D-Bus error name carried by err, or "".
func ErrorName(err error) string {
	if err == nil {
		return ""
	}
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name
	}
	var pe *dbus.Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Name
	}
	return ""
}

// IsUnknown reports whether err says the remote object, interface, method
// or property does not exist.
func IsUnknown(err error) bool {
	switch ErrorName(err) {
	case ErrNameUnknownObject, ErrNameUnknownInterface, ErrNameUnknownMethod,
		ErrNameUnknownProperty, ErrNameServiceUnknown:
		return true
	}
	return false
}

// IsUnknownMethod reports whether err is an unknown method reply.
func IsUnknownMethod(err error) bool {
	return ErrorName(err) == ErrNameUnknownMethod
}

// IsUnknownProperty reports whether err is an unknown property reply.
func IsUnknownProperty(err error) bool {
	return ErrorName(err) == ErrNameUnknownProperty
}

// IsCancelled reports whether err comes from a cancelled or expired context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
