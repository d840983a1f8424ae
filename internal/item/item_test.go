package item

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snidbus "github.com/jmylchreest/sniclient/internal/dbus"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func TestID(t *testing.T) {
	tests := []struct {
		name    string
		service string
		busName string
		path    dbus.ObjectPath
		want    string
	}{
		{"distinct well known name", "org.kde.StatusNotifierItem-1-1", ":1.5", "/StatusNotifierItem", "org.kde.StatusNotifierItem-1-1"},
		{"service equals bus name", ":1.5", ":1.5", "/StatusNotifierItem", ":1.5@/StatusNotifierItem"},
		{"service is a path", "/org/ayatana/NotificationItem/foo", ":1.5", "/org/ayatana/NotificationItem/foo", ":1.5@/org/ayatana/NotificationItem/foo"},
		{"empty service", "", ":1.9", "/StatusNotifierItem", ":1.9@/StatusNotifierItem"},
		{"unique name service", ":1.7", ":1.5", "/StatusNotifierItem", ":1.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ID(tt.service, tt.busName, tt.path))
		})
	}
}

func TestItemBecomesReady(t *testing.T) {
	r := newFakeRemote(readyProps())
	it, log := startItem(t, r)

	require.Eventually(t, it.IsReady, waitFor, tick)
	assert.Equal(t, 1, log.count(EventReady))
	assert.Equal(t, "example", it.ItemID())
	assert.Equal(t, "/MenuBar", it.MenuPath())
	assert.Equal(t, snidbus.StatusActive, it.Status())
	assert.Equal(t, "Example", it.AccessibleName())
	assert.Contains(t, it.SupportedProperties(), "IconName")
	assert.Contains(t, it.SupportedProperties(), "XAyatanaLabel")

	assert.Eventually(t, func() bool { return it.CommandLine() != "" }, waitFor, tick)
}

func TestItemStatusDefaultsToPassive(t *testing.T) {
	props := readyProps()
	delete(props, "Status")
	r := newFakeRemote(props)
	it, _ := startItem(t, r)

	require.Eventually(t, it.IsReady, waitFor, tick)
	assert.Equal(t, snidbus.StatusPassive, it.Status())
}

func TestItemNoMenuSentinel(t *testing.T) {
	props := readyProps()
	props["Menu"] = dbus.ObjectPath(snidbus.NoMenuPath)
	r := newFakeRemote(props)
	it, log := startItem(t, r)

	// The mandatory properties are still incomplete, so Menu is retried.
	require.Eventually(t, func() bool { return r.getCount("Menu") > 0 }, waitFor, tick)
	assert.False(t, it.IsReady())
	assert.Empty(t, it.MenuPath())
	assert.Zero(t, log.count(EventReady))
}

func TestItemIgnoresUntrackedProperties(t *testing.T) {
	props := readyProps()
	props["SomethingElse"] = "value"
	r := newFakeRemote(props)
	it, _ := startItem(t, r)

	require.Eventually(t, it.IsReady, waitFor, tick)
	assert.False(t, it.Snapshot().Has("SomethingElse"))
}

func TestItemInitFailureDestroys(t *testing.T) {
	r := newFakeRemote(nil)
	r.initErr = dbus.Error{Name: snidbus.ErrNameServiceUnknown}

	destroyed := make(chan *Item, 1)
	it, log := startItem(t, r, WithOnDestroy(func(it *Item) { destroyed <- it }))

	select {
	case got := <-destroyed:
		assert.Same(t, it, got)
	case <-time.After(waitFor):
		t.Fatal("item was not destroyed")
	}
	assert.Equal(t, []Event{EventDestroy}, log.all())
	assert.True(t, r.isClosed())
}

func TestItemInitCancelledDoesNotDestroy(t *testing.T) {
	r := newFakeRemote(nil)
	r.initErr = context.Canceled
	it, _ := startItem(t, r)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, it.Destroyed())
}

func TestItemRetriesMandatoryProperties(t *testing.T) {
	props := readyProps()
	delete(props, "Id")
	r := newFakeRemote(props)
	r.setProp("Id", "late-id")

	it, log := startItem(t, r)

	require.Eventually(t, it.IsReady, waitFor, tick)
	assert.Equal(t, "late-id", it.ItemID())
	assert.Equal(t, 1, log.count(EventReady))
}

func TestItemRetryGivesUp(t *testing.T) {
	props := readyProps()
	delete(props, "Menu")
	r := newFakeRemote(props)

	it, _ := startItem(t, r)

	require.Eventually(t, func() bool { return r.getCount("Menu") >= 3 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, r.getCount("Menu"))
	assert.False(t, it.IsReady())
	assert.False(t, it.Destroyed())
}

func TestItemNameOwnerLost(t *testing.T) {
	r := newFakeRemote(readyProps())
	it, log := startItem(t, r)
	require.Eventually(t, it.IsReady, waitFor, tick)

	require.True(t, it.HasNameOwner())

	r.signals().OnNameOwnerChanged("")

	assert.False(t, it.IsReady())
	assert.False(t, it.HasNameOwner())
	assert.Empty(t, it.ItemID())
	assert.Empty(t, it.MenuPath())
	assert.Equal(t, 1, log.count(EventNameOwnerChanged))
}

func TestItemNameOwnerRegained(t *testing.T) {
	r := newFakeRemote(readyProps())
	it, log := startItem(t, r)
	require.Eventually(t, it.IsReady, waitFor, tick)

	r.signals().OnNameOwnerChanged("")
	require.False(t, it.IsReady())

	r.signals().OnNameOwnerChanged(":1.99")

	require.Eventually(t, it.IsReady, waitFor, tick)
	assert.Equal(t, 2, log.count(EventReady))
	assert.Eventually(t, func() bool { return log.count(EventNameOwnerChanged) == 2 }, waitFor, tick)
}

func TestItemDestroy(t *testing.T) {
	r := newFakeRemote(readyProps())
	it, log := startItem(t, r)
	require.Eventually(t, it.IsReady, waitFor, tick)
	log.reset()

	it.Destroy()
	it.Destroy()

	assert.Equal(t, []Event{EventDestroy}, log.all())
	assert.True(t, r.isClosed())
	assert.Error(t, it.Context().Err())

	it.Reset()
	assert.Equal(t, []Event{EventDestroy}, log.all())
}

func TestItemDropsEventsDuringDestroy(t *testing.T) {
	r := newFakeRemote(readyProps())
	it, log := startItem(t, r)
	require.Eventually(t, it.IsReady, waitFor, tick)
	log.reset()

	// A refresh finishing while destroy listeners run must not be delivered.
	it.Subscribe(func(it *Item, e Event) {
		if e == EventDestroy {
			it.emit(EventLabel, EventStatus)
			it.Reset()
		}
	})

	it.Destroy()
	assert.Equal(t, []Event{EventDestroy}, log.all())
}

func TestItemDestroyOnParentCancel(t *testing.T) {
	r := newFakeRemote(readyProps())
	it := New(r, "org.example.Tray", "org.example.Tray", "", WithTimings(testTimings()))
	ctx, cancel := context.WithCancel(context.Background())
	it.Start(ctx)

	cancel()
	assert.Eventually(t, it.Destroyed, waitFor, tick)
	assert.Equal(t, dbus.ObjectPath(snidbus.ItemPath), it.Path())
}

func TestSubscribeUnsubscribe(t *testing.T) {
	r := newFakeRemote(readyProps())
	it := New(r, "", ":1.42", "/StatusNotifierItem")
	log := &eventLog{}
	unsubscribe := it.Subscribe(log.listen)

	it.Reset()
	unsubscribe()
	it.Reset()

	assert.Equal(t, []Event{EventReset}, log.all())
}

func TestAccessibleNameFollowsStatus(t *testing.T) {
	props := readyProps()
	props["IconAccessibleDesc"] = "normal description"
	props["AttentionAccessibleDesc"] = "attention description"
	r := newFakeRemote(props)
	it, _ := startItem(t, r)
	require.Eventually(t, it.IsReady, waitFor, tick)

	assert.Equal(t, "normal description", it.AccessibleName())

	r.signals().OnItemSignal("NewStatus", []any{"NeedsAttention"})
	require.Eventually(t, func() bool { return it.Status() == snidbus.StatusNeedsAttention }, waitFor, tick)
	assert.Equal(t, "attention description", it.AccessibleName())
}

func TestItemIconSpecs(t *testing.T) {
	props := readyProps()
	props["IconThemePath"] = "/opt/example/icons"
	props["OverlayIconName"] = "emblem-new"
	props["AttentionIconPixmap"] = []snidbus.Pixmap{{Width: 1, Height: 1, Data: []byte{255, 1, 2, 3}}}
	r := newFakeRemote(props)
	it, _ := startItem(t, r)
	require.Eventually(t, it.IsReady, waitFor, tick)

	icon := it.Icon()
	assert.Equal(t, "example-icon", icon.Name)
	assert.Equal(t, "/opt/example/icons", icon.ThemePath)
	assert.False(t, icon.Empty())

	assert.Equal(t, "emblem-new", it.OverlayIcon().Name)

	attention := it.AttentionIcon()
	require.Len(t, attention.Pixmaps, 1)
	assert.Equal(t, int32(1), attention.Pixmaps[0].Width)

	assert.True(t, IconSpec{}.Empty())
}

func TestItemVendorProperties(t *testing.T) {
	props := readyProps()
	props["XAyatanaLabel"] = "42%"
	props["XAyatanaLabelGuide"] = "100%"
	props["XAyatanaOrderingIndex"] = uint32(7)
	r := newFakeRemote(props)
	it, _ := startItem(t, r)
	require.Eventually(t, it.IsReady, waitFor, tick)

	assert.Equal(t, "42%", it.Label())
	assert.Equal(t, "100%", it.LabelGuide())
	assert.Equal(t, int64(7), it.OrderingIndex())
}
