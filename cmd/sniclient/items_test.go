package main

import (
	"bytes"
	"context"
	"image"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/sniclient/internal/icon"
	"github.com/jmylchreest/sniclient/internal/settings"
)

func TestTargetArgs(t *testing.T) {
	tests := []struct {
		args    []string
		service string
		busName string
		path    dbus.ObjectPath
	}{
		{[]string{"org.kde.StatusNotifierItem-1-1"}, "org.kde.StatusNotifierItem-1-1", "org.kde.StatusNotifierItem-1-1", "/StatusNotifierItem"},
		{[]string{":1.42/org/ayatana/NotificationItem/nm"}, ":1.42/org/ayatana/NotificationItem/nm", ":1.42", "/org/ayatana/NotificationItem/nm"},
		{[]string{"org.example.Tray", "/Tray"}, "org.example.Tray", "org.example.Tray", "/Tray"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			service, busName, path := targetArgs(tt.args)
			assert.Equal(t, tt.service, service)
			assert.Equal(t, tt.busName, busName)
			assert.Equal(t, tt.path, path)
		})
	}
}

func testComposite(id string) *icon.Composite {
	return &icon.Composite{Base: icon.NewImage(id, "", image.NewRGBA(image.Rect(0, 0, 4, 4)))}
}

func TestLatestRendererSettles(t *testing.T) {
	r := newLatestRenderer()
	first := testComposite("normal@4x4")
	second := testComposite("normal@8x8")

	go func() {
		r.SetIcon(first)
		time.Sleep(20 * time.Millisecond)
		r.SetIcon(second)
	}()

	c, err := r.settle(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, c)
}

func TestLatestRendererTimeout(t *testing.T) {
	r := newLatestRenderer()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.settle(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEventPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{w: &buf}

	p.SetIcon(nil)
	p.SetIcon(testComposite("normal@4x4"))
	p.onSettingsChange(settings.ChangeTheme)

	out := buf.String()
	assert.Contains(t, out, "no icon")
	assert.Contains(t, out, "4x4")
	assert.Contains(t, out, "normal@4x4")
	assert.Contains(t, out, settings.ChangeTheme.String())
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}
