// Package picker builds the device pick-list and runs a single selection.
//
// The list opens immediately with the connected devices and fills in the
// emulators once the daemon has listed them. Whichever of "emulators
// arrive" and "user resolves" happens second is a no-op for the other.
package picker

import (
	"context"
	"sync"

	"github.com/icarus-itcs/lazyflutter/internal/daemon"
	"github.com/icarus-itcs/lazyflutter/internal/logging"
	"github.com/icarus-itcs/lazyflutter/internal/metrics"
	"github.com/icarus-itcs/lazyflutter/internal/registry"
)

// Presenter shows the combined device and emulator pick-list.
type Presenter struct {
	registry *registry.Registry
	daemon   daemon.Daemon
	surface  Surface
	logger   *logging.Logger
	metrics  *metrics.Metrics

	// afterFetch, when set, is called once the deferred emulator append
	// has been applied or dropped.
	afterFetch func(applied bool)
}

// NewPresenter creates a presenter. logger and m may be nil.
func NewPresenter(reg *registry.Registry, d daemon.Daemon, surface Surface, logger *logging.Logger, m *metrics.Metrics) *Presenter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Presenter{
		registry: reg,
		daemon:   d,
		surface:  surface,
		logger:   logger.WithComponent("picker"),
		metrics:  m,
	}
}

// session guards a single open list against updates after resolution.
type session struct {
	mu       sync.Mutex
	list     List
	items    []Item
	resolved bool
}

func (s *session) appendItems(more []Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return false
	}
	s.items = append(s.items, more...)
	s.list.SetItems(s.items)
	s.list.SetBusy(false)
	return true
}

func (s *session) resolve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return
	}
	s.resolved = true
	s.list.Close()
}

// PickDevice presents the pick-list and returns the accepted item, or nil
// when the list is dismissed or ctx is cancelled first.
func (p *Presenter) PickDevice(ctx context.Context) *Item {
	items := DeviceItems(p.registry.ListSorted(), p.registry.Current())
	sess := &session{
		list:  p.surface.OpenList(DevicePlaceholder, items, true),
		items: items,
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		emus := EmulatorItems(fetchCtx, p.daemon, true, p.logger, p.metrics)
		applied := sess.appendItems(emus)
		if !applied {
			p.logger.Debug("picker resolved before emulators arrived", "emulators", len(emus))
		}
		if p.afterFetch != nil {
			p.afterFetch(applied)
		}
	}()

	var picked *Item
	select {
	case sel, ok := <-sess.list.Done():
		if ok {
			picked = sel.Item
		}
	case <-ctx.Done():
	}
	sess.resolve()

	if picked == nil {
		p.logger.Debug("device picker dismissed")
	} else {
		p.logger.Debug("device picker accepted", "kind", string(picked.Kind), "label", picked.Label)
	}
	return picked
}
