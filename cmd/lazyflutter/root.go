package lazyflutter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/icarus-itcs/lazyflutter/internal/config"
	"github.com/icarus-itcs/lazyflutter/internal/ui"
)

var (
	appVersion string
	appCommit  string
	appDate    string
	demoMode   bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "lazyflutter",
	Short: "A terminal UI for Flutter devices and emulators",
	Long: `lazyflutter tracks connected Flutter devices, keeps one of them active,
and launches or creates emulators when nothing is connected.

Run 'lazyflutter' in a terminal to open the UI, or use the subcommands
for scripted use.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return runDevices(cmd, "")
		}
		return runApp(cmd.Context())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(versionCmd, devicesCmd, emulatorsCmd, launchCmd, createCmd, doctorCmd)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/lazyflutter/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&demoMode, "demo", false, "use the built-in demo scenario")
	flags.String("scenario", "", "simulator scenario file")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9316")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("daemon.scenario", flags.Lookup("scenario"))
	_ = viper.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("LAZYFLUTTER")
	// LAZYFLUTTER_LAUNCH_TIMEOUT for launch.timeout
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute(version, commit, date string) error {
	appVersion = version
	appCommit = commit
	appDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func runApp(parent context.Context) error {
	surface := ui.NewSurface()
	s, err := newSession(parent, surface)
	if err != nil {
		return err
	}
	defer s.Close()

	if viper.ConfigFileUsed() != "" {
		config.Watch(func(c *config.Config) {
			s.logger.Info("config reloaded", "select_on_connect", c.Devices.SelectOnConnect)
		}, func(err error) {
			s.logger.Warn("config reload rejected", "error", err)
		})
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if addr := s.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: s.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			s.logger.Info("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		model := ui.NewModel(gctx, s.manager, surface, s.sim.Start)
		return ui.Run(gctx, model)
	})

	return g.Wait()
}
