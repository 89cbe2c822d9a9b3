// Package registry tracks the connected devices and the active device.
//
// The Registry is the only owner of the device set and the active pointer.
// All mutations go through Add, Remove and Select, which are serialized by a
// single lock because each of them reads and then writes the active pointer.
// After every mutation the active device is either nil or a member of the set.
package registry

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/icarus-itcs/lazyflutter/internal/device"
)

// Registry is an ordered set of connected devices with an active pointer.
type Registry struct {
	mu         sync.RWMutex
	devices    []device.Device // insertion order
	current    *device.Device
	generation uint64

	selectOnConnect func() bool
	onChange        func()
}

// Option configures a Registry.
type Option func(*Registry)

// WithSelectOnConnect sets the callback consulted at add time for the
// "select newly connected device" option.
func WithSelectOnConnect(fn func() bool) Option {
	return func(r *Registry) { r.selectOnConnect = fn }
}

// WithOnChange sets a callback invoked after every mutation, outside the lock.
func WithOnChange(fn func()) Option {
	return func(r *Registry) { r.onChange = fn }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		selectOnConnect: func() bool { return false },
		onChange:        func() {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add appends a device. It becomes active when nothing is active yet or
// when select-on-connect is enabled.
func (r *Registry) Add(d device.Device) {
	d.Kind = device.KindDevice

	r.mu.Lock()
	r.devices = append(r.devices, d)
	r.generation++
	if r.current == nil || r.selectOnConnect() {
		active := d
		r.current = &active
	}
	r.mu.Unlock()

	r.onChange()
}

// Remove drops every device with the given ID. If the active device was
// removed, the most recently added remaining device becomes active.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	kept := r.devices[:0]
	for _, d := range r.devices {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	// clear the tail so removed values are not retained
	for i := len(kept); i < len(r.devices); i++ {
		r.devices[i] = device.Device{}
	}
	r.devices = kept

	if r.current != nil && r.current.ID == id {
		r.current = nil
		if n := len(r.devices); n > 0 {
			last := r.devices[n-1]
			r.current = &last
		}
	}
	r.mu.Unlock()

	r.onChange()
}

// Select makes a connected device active. It returns false, leaving the
// active device unchanged, if no device with that ID is connected.
func (r *Registry) Select(id string) bool {
	r.mu.Lock()
	found := false
	for _, d := range r.devices {
		if d.ID == id {
			active := d
			r.current = &active
			found = true
			break
		}
	}
	r.mu.Unlock()

	if found {
		r.onChange()
	}
	return found
}

// Current returns a copy of the active device, or nil.
func (r *Registry) Current() *device.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return nil
	}
	d := *r.current
	return &d
}

// Snapshot returns the active device and the device count read together.
func (r *Registry) Snapshot() (*device.Device, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cur *device.Device
	if r.current != nil {
		d := *r.current
		cur = &d
	}
	return cur, len(r.devices)
}

// Devices returns the devices in insertion order.
func (r *Registry) Devices() []device.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]device.Device(nil), r.devices...)
}

// Len returns the number of connected devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Generation increases by one on every Add. Comparing two readings tells
// whether a device connected in between.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// ListSorted returns the active device first, then the others ordered by
// name, ignoring case. Equal names keep their insertion order.
func (r *Registry) ListSorted() []device.Device {
	r.mu.RLock()
	list := append([]device.Device(nil), r.devices...)
	var activeID string
	hasActive := r.current != nil
	if hasActive {
		activeID = r.current.ID
	}
	r.mu.RUnlock()

	// Collators are not safe for concurrent use; build one per call.
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(list, func(i, j int) bool {
		ai := hasActive && list[i].ID == activeID
		aj := hasActive && list[j].ID == activeID
		if ai != aj {
			return ai
		}
		if ai && aj {
			return false
		}
		return col.CompareString(list[i].Name, list[j].Name) < 0
	})
	return list
}
