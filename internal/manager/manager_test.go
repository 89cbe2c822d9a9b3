package manager

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/icarus-itcs/lazyflutter/internal/device"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/metrics"
	"github.com/icarus-itcs/lazyflutter/internal/status"
	"github.com/icarus-itcs/lazyflutter/internal/testutil"
)

var (
	pixel  = device.Device{ID: "emulator-5554", Name: "Pixel 7", Platform: "android-x64", Emulator: true}
	galaxy = device.Device{ID: "R5CT", Name: "Galaxy S24", Platform: "android-arm64"}
)

func TestStatusFollowsDevices(t *testing.T) {
	fd := testutil.NewFakeDaemon()
	fd.Ready = false
	m := New(fd, testutil.NewFakeSurface(), Options{})
	defer m.Close()

	if got := m.Status(); got.Visible {
		t.Errorf("status visible before ready: %+v", got)
	}

	fd.MarkReady()
	if got, want := m.Status(), (status.Status{Text: "No Devices", Visible: true}); got != want {
		t.Errorf("status = %+v, want %+v", got, want)
	}

	fd.Connect(pixel)
	if got, want := m.Status(), (status.Status{Text: "Pixel 7 (android-x64 Emulator)", Tooltip: "1 Device Connected", Visible: true}); got != want {
		t.Errorf("status = %+v, want %+v", got, want)
	}

	fd.Connect(galaxy)
	if got, want := m.Status(), (status.Status{Text: "Pixel 7 (android-x64 Emulator)", Tooltip: "2 Devices Connected", Visible: true}); got != want {
		t.Errorf("status = %+v, want %+v", got, want)
	}

	fd.Disconnect(pixel)
	if got, want := m.Status(), (status.Status{Text: "Galaxy S24 (android-arm64)", Tooltip: "1 Device Connected", Visible: true}); got != want {
		t.Errorf("status = %+v, want %+v", got, want)
	}
}

func TestSelectOnConnectIsReadLive(t *testing.T) {
	fd := testutil.NewFakeDaemon()
	selectNew := false
	m := New(fd, testutil.NewFakeSurface(), Options{SelectOnConnect: func() bool { return selectNew }})
	defer m.Close()

	fd.Connect(pixel)
	fd.Connect(galaxy)
	if cur := m.Registry().Current(); cur.ID != pixel.ID {
		t.Errorf("active = %q, want %q", cur.ID, pixel.ID)
	}

	selectNew = true
	third := device.Device{ID: "ipad", Name: "iPad", Platform: "ios"}
	fd.Connect(third)
	if cur := m.Registry().Current(); cur.ID != third.ID {
		t.Errorf("active = %q, want %q", cur.ID, third.ID)
	}
}

func TestStatusEventsAndMetrics(t *testing.T) {
	fd := testutil.NewFakeDaemon()
	bus := event.NewBus(nil)
	var texts []string
	bus.Subscribe(event.TypeStatusChanged, func(e event.Event) {
		texts = append(texts, e.(event.StatusEvent).Text)
	})
	met := metrics.New()

	m := New(fd, testutil.NewFakeSurface(), Options{Bus: bus, Metrics: met})
	defer m.Close()
	fd.Connect(pixel)
	fd.Connect(galaxy)

	want := []string{"No Devices", "Pixel 7 (android-x64 Emulator)", "Pixel 7 (android-x64 Emulator)"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("status texts = %v, want %v", texts, want)
	}
	if n := promtest.ToFloat64(met.DevicesConnected); n != 2 {
		t.Errorf("devices_connected = %v, want 2", n)
	}
}

func runPicker(m *Manager) <-chan bool {
	out := make(chan bool, 1)
	go func() { out <- m.ShowDevicePicker(context.Background()) }()
	return out
}

func wait(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case ok := <-ch:
		return ok
	case <-time.After(testutil.WaitTimeout):
		t.Fatal("picker did not finish")
		return false
	}
}

func TestStatusSettlesUnderConcurrentChanges(t *testing.T) {
	fd := testutil.NewFakeDaemon()
	bus := event.NewBus(nil)
	var (
		mu   sync.Mutex
		last event.StatusEvent
	)
	bus.Subscribe(event.TypeStatusChanged, func(e event.Event) {
		mu.Lock()
		last = e.(event.StatusEvent)
		mu.Unlock()
	})
	m := New(fd, testutil.NewFakeSurface(), Options{Bus: bus})
	defer m.Close()

	fd.Connect(pixel)
	fd.Connect(galaxy)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.SelectDevice(galaxy.ID)
			m.SelectDevice(pixel.ID)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			fd.Disconnect(galaxy)
			fd.Connect(galaxy)
		}
	}()
	wg.Wait()

	current, count := m.Registry().Snapshot()
	want := status.Compute(current, count, true)
	if got := m.Status(); got != want {
		t.Errorf("stored status = %+v, want %+v", got, want)
	}
	mu.Lock()
	defer mu.Unlock()
	if got := (status.Status{Text: last.Text, Tooltip: last.Tooltip, Visible: last.Visible}); got != want {
		t.Errorf("last published status = %+v, want %+v", got, want)
	}
}

func TestShowDevicePicker(t *testing.T) {
	t.Run("device selects it", func(t *testing.T) {
		fd := testutil.NewFakeDaemon()
		surface := testutil.NewFakeSurface()
		bus := event.NewBus(nil)
		var selected []string
		bus.Subscribe(event.TypeDeviceSelected, func(e event.Event) {
			selected = append(selected, e.(event.DeviceEvent).Device.ID)
		})
		m := New(fd, surface, Options{Bus: bus})
		defer m.Close()
		fd.Connect(pixel)
		fd.Connect(galaxy)

		res := runPicker(m)
		surface.NextList(t).AcceptLabel(t, "Galaxy S24")
		if !wait(t, res) {
			t.Fatal("ShowDevicePicker should succeed")
		}
		if cur := m.Registry().Current(); cur.ID != galaxy.ID {
			t.Errorf("active = %q", cur.ID)
		}
		if !reflect.DeepEqual(selected, []string{galaxy.ID}) {
			t.Errorf("selected events = %v", selected)
		}
		if got := m.Status().Text; got != "Galaxy S24 (android-arm64)" {
			t.Errorf("status text = %q", got)
		}
	})

	t.Run("device gone before accept", func(t *testing.T) {
		fd := testutil.NewFakeDaemon()
		surface := testutil.NewFakeSurface()
		m := New(fd, surface, Options{})
		defer m.Close()
		fd.Connect(pixel)
		fd.Connect(galaxy)

		res := runPicker(m)
		list := surface.NextList(t)
		fd.Disconnect(galaxy)
		list.AcceptLabel(t, "Galaxy S24")
		if wait(t, res) {
			t.Fatal("selecting a disconnected device should fail")
		}
		if cur := m.Registry().Current(); cur.ID != pixel.ID {
			t.Errorf("active = %q", cur.ID)
		}
	})

	t.Run("dismissed", func(t *testing.T) {
		fd := testutil.NewFakeDaemon()
		surface := testutil.NewFakeSurface()
		m := New(fd, surface, Options{})
		defer m.Close()

		res := runPicker(m)
		surface.NextList(t).Dismiss()
		if wait(t, res) {
			t.Fatal("dismissed picker should return false")
		}
	})

	t.Run("creator runs the create flow", func(t *testing.T) {
		fd := testutil.NewFakeDaemon()
		fd.CanCreate = true
		fd.CreateResult.Error = "disk full"
		surface := testutil.NewFakeSurface()
		m := New(fd, surface, Options{})
		defer m.Close()

		res := runPicker(m)
		list := surface.NextList(t)
		list.WaitItems(t, 1)
		list.AcceptLabel(t, "Create Android Emulator")
		if wait(t, res) {
			t.Fatal("failed creation should return false")
		}
		if got := surface.Errors(); !reflect.DeepEqual(got, []string{"disk full"}) {
			t.Errorf("errors = %v", got)
		}
	})
}

func TestClose(t *testing.T) {
	fd := testutil.NewFakeDaemon()
	m := New(fd, testutil.NewFakeSurface(), Options{})
	if n := fd.Bus.SubscriptionCount(); n != 3 {
		t.Fatalf("subscriptions = %d, want 3", n)
	}

	m.Close()
	m.Close()
	if n := fd.Bus.SubscriptionCount(); n != 0 {
		t.Errorf("subscriptions after Close = %d", n)
	}

	fd.Connect(pixel)
	if m.Registry().Len() != 0 {
		t.Error("closed manager still tracks devices")
	}
}
