// scenario-replay runs a simulator scenario without the UI and prints every
// registry and status change, for checking scenario files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/icarus-itcs/lazyflutter/internal/daemon"
	"github.com/icarus-itcs/lazyflutter/internal/event"
	"github.com/icarus-itcs/lazyflutter/internal/logging"
	"github.com/icarus-itcs/lazyflutter/internal/manager"
)

func main() {
	scenarioPath := flag.String("scenario", "", "scenario file (default: built-in demo)")
	duration := flag.Duration("for", 45*time.Second, "how long to run the scenario")
	selectOnConnect := flag.Bool("select-on-connect", false, "make each new device active")
	level := flag.String("log-level", "", "also log to stderr at this level")
	flag.Parse()

	if err := run(*scenarioPath, *duration, *selectOnConnect, *level); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, d time.Duration, selectOnConnect bool, level string) error {
	scenario, err := daemon.LoadScenario(path)
	if err != nil {
		return err
	}

	logger := logging.NopLogger()
	if level != "" {
		logger = logging.New(os.Stderr, level, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	start := time.Now()
	bus := event.NewBus(logger)
	sim := daemon.NewSimulator(scenario, daemon.WithBus(bus), daemon.WithLogger(logger))
	mgr := manager.New(sim, nil, manager.Options{
		SelectOnConnect: func() bool { return selectOnConnect },
		Bus:             bus,
		Logger:          logger,
	})
	defer mgr.Close()

	stamp := func() string { return fmt.Sprintf("[%6.2fs]", time.Since(start).Seconds()) }
	unsubscribe := bus.SubscribeAll(func(e event.Event) {
		switch ev := e.(type) {
		case event.DeviceEvent:
			fmt.Printf("%s %-16s %s [%s]\n", stamp(), e.EventType(), ev.Device.String(), ev.Device.ID)
			if e.EventType() != event.TypeDeviceSelected {
				printRegistry(mgr)
			}
		case event.StatusEvent:
			if ev.Visible {
				fmt.Printf("%s %-16s %s (%s)\n", stamp(), e.EventType(), ev.Text, ev.Tooltip)
			}
		default:
			fmt.Printf("%s %s\n", stamp(), e.EventType())
		}
	})
	defer unsubscribe()

	sim.Start(ctx)
	<-ctx.Done()
	<-sim.Done()
	return nil
}

func printRegistry(mgr *manager.Manager) {
	var ids []string
	for _, d := range mgr.Registry().ListSorted() {
		ids = append(ids, d.ID)
	}
	active := "-"
	if cur := mgr.Registry().Current(); cur != nil {
		active = cur.ID
	}
	fmt.Printf("           devices=[%s] active=%s\n", strings.Join(ids, " "), active)
}
