package lazyflutter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/icarus-itcs/lazyflutter/internal/config"
	"github.com/icarus-itcs/lazyflutter/internal/daemon"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/launch"
	"github.com/icarus-itcs/lazyflutter/internal/logging"
	"github.com/icarus-itcs/lazyflutter/internal/manager"
	"github.com/icarus-itcs/lazyflutter/internal/metrics"
	"github.com/icarus-itcs/lazyflutter/internal/picker"
)

const readyTimeout = 10 * time.Second

var errNotReady = errors.New("device daemon did not become ready")

// session is one daemon connection with everything built on top of it.
type session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	sim     *daemon.Simulator
	manager *manager.Manager
}

func newSession(parent context.Context, surface picker.Surface) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		level := cfg.Logging.Level
		if verbose {
			level = logging.LevelDebug
		}
		if logger, err = logging.NewLogger(config.ConfigDir(), level); err != nil {
			return nil, err
		}
	}

	scenarioPath := cfg.Daemon.Scenario
	if demoMode {
		scenarioPath = ""
	}
	scenario, err := daemon.LoadScenario(scenarioPath)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	m := metrics.New()
	bus := event.NewBus(logger.WithComponent("bus"))
	sim := daemon.NewSimulator(scenario,
		daemon.WithBus(bus),
		daemon.WithLogger(logger.WithComponent("daemon")),
	)
	mgr := manager.New(sim, surface, manager.Options{
		SelectOnConnect: config.SelectOnConnect,
		Bus:             bus,
		Logger:          logger,
		Metrics:         m,
		Launch: []launch.Option{
			launch.WithTimings(cfg.Launch.Timeout, cfg.Launch.PollInterval, cfg.Launch.GracePeriod),
		},
	})

	logger.Info("session started", "scenario", scenarioPath, "select_on_connect", cfg.Devices.SelectOnConnect)
	return &session{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		sim:     sim,
		manager: mgr,
	}, nil
}

// startAndWait starts the daemon and blocks until it reports ready.
func (s *session) startAndWait() error {
	ready := make(chan struct{})
	var once sync.Once
	unsubscribe := s.sim.OnReady(func() { once.Do(func() { close(ready) }) })
	defer unsubscribe()

	s.sim.Start(s.ctx)
	if s.sim.IsReady() {
		return nil
	}

	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-timer.C:
		return errNotReady
	}
}

func (s *session) Close() {
	s.manager.Close()
	s.cancel()
	_ = s.logger.Close()
}
