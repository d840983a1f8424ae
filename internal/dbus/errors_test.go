package dbus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	remote := func(name string) error { return dbus.Error{Name: name} }

	tests := []struct {
		name            string
		err             error
		unknown         bool
		unknownMethod   bool
		unknownProperty bool
		cancelled       bool
	}{
		{name: "nil", err: nil},
		{name: "unknown object", err: remote(ErrNameUnknownObject), unknown: true},
		{name: "unknown interface", err: remote(ErrNameUnknownInterface), unknown: true},
		{name: "unknown method", err: remote(ErrNameUnknownMethod), unknown: true, unknownMethod: true},
		{name: "unknown property", err: remote(ErrNameUnknownProperty), unknown: true, unknownProperty: true},
		{name: "pointer error", err: &dbus.Error{Name: ErrNameUnknownMethod}, unknown: true, unknownMethod: true},
		{name: "wrapped", err: fmt.Errorf("activate: %w", remote(ErrNameUnknownMethod)), unknown: true, unknownMethod: true},
		{name: "generic remote failure", err: remote("org.freedesktop.DBus.Error.Failed")},
		{name: "io failure", err: errors.New("connection reset")},
		{name: "cancelled", err: context.Canceled, cancelled: true},
		{name: "wrapped deadline", err: fmt.Errorf("get: %w", context.DeadlineExceeded), cancelled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unknown, IsUnknown(tt.err))
			assert.Equal(t, tt.unknownMethod, IsUnknownMethod(tt.err))
			assert.Equal(t, tt.unknownProperty, IsUnknownProperty(tt.err))
			assert.Equal(t, tt.cancelled, IsCancelled(tt.err))
		})
	}
}

func TestErrorName(t *testing.T) {
	assert.Equal(t, "", ErrorName(nil))
	assert.Equal(t, "", ErrorName(errors.New("plain")))
	assert.Equal(t, ErrNameUnknownObject, ErrorName(dbus.Error{Name: ErrNameUnknownObject}))
}
