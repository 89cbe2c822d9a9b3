package lazyflutter

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icarus-itcs/lazyflutter/internal/picker"
	"github.com/icarus-itcs/lazyflutter/internal/preflight"
)

var errMissingTools = errors.New("required tools are missing")

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "lazyflutter %s\n", appVersion)
		fmt.Fprintf(out, "  commit: %s\n", appCommit)
		fmt.Fprintf(out, "  built:  %s\n", appDate)
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		return runDevices(cmd, filter)
	},
}

var emulatorsCmd = &cobra.Command{
	Use:   "emulators",
	Short: "List emulators that can be launched",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := startSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		emus, err := s.manager.ListEmulators(s.ctx)
		if err != nil {
			return fmt.Errorf("failed to list emulators: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, e := range emus {
			fmt.Fprintf(out, "%s\t%s\n", e.ID, e.DisplayName())
		}
		if s.sim.Capabilities().CanCreateEmulators {
			fmt.Fprintln(out, "(new emulators can be created with 'lazyflutter create')")
		}
		return nil
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch <emulator-id>",
	Short: "Launch an emulator and wait for it to connect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := startSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		emus, err := s.manager.ListEmulators(s.ctx)
		if err != nil {
			return fmt.Errorf("failed to list emulators: %w", err)
		}
		emu, ok := picker.FindEmulator(emus, args[0])
		if !ok {
			if guess, found := picker.ClosestEmulator(emus, args[0]); found {
				return fmt.Errorf("unknown emulator %q, did you mean %q?", args[0], guess.ID)
			}
			return fmt.Errorf("unknown emulator %q", args[0])
		}

		if !s.manager.LaunchEmulator(s.ctx, emu) {
			return fmt.Errorf("could not launch %s", emu.DisplayName())
		}
		printActive(cmd, s)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an Android emulator and launch it",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := startSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if !s.manager.CreateAndLaunchEmulator(s.ctx) {
			return errors.New("could not create an emulator")
		}
		printActive(cmd, s)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the Flutter toolchain and find Flutter projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		results := preflight.Run()
		results.Version = appVersion

		out := cmd.OutOrStdout()
		checks := append([]preflight.CheckResult{results.VersionCheck()}, results.Checks...)
		for _, c := range checks {
			fmt.Fprintf(out, "%s %-18s %s\n", checkIcon(c.Status), c.Name, c.Message)
		}
		if len(results.Projects) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Flutter projects:")
			for _, p := range results.Projects {
				fmt.Fprintf(out, "  %s\t%s\t%v\n", p.Name, p.Path, p.Platforms)
			}
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, results.Summary())

		if results.HasErrors {
			return errMissingTools
		}
		return nil
	},
}

func init() {
	devicesCmd.Flags().String("filter", "", "only show devices whose id or name matches this glob")
}

func checkIcon(s preflight.Status) string {
	switch s {
	case preflight.StatusOK:
		return "[ok]"
	case preflight.StatusWarning:
		return "[!!]"
	}
	return "[xx]"
}

func startSession(cmd *cobra.Command) (*session, error) {
	s, err := newSession(cmd.Context(), newPlainSurface(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	if err != nil {
		return nil, err
	}
	if err := s.startAndWait(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func runDevices(cmd *cobra.Command, filter string) error {
	s, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	devices, err := picker.FilterDevices(s.manager.Registry().ListSorted(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	current := s.manager.Registry().Current()
	for _, d := range devices {
		marker := " "
		if current != nil && current.ID == d.ID {
			marker = "*"
		}
		kind := "device"
		if d.Emulator {
			kind = "emulator"
		}
		fmt.Fprintf(out, "%s %s\t%s\t%s\t%s\n", marker, d.ID, d.Name, d.Platform, kind)
	}
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices connected")
	}
	return nil
}

func printActive(cmd *cobra.Command, s *session) {
	if cur := s.manager.Registry().Current(); cur != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Active device: %s [%s]\n", cur.String(), cur.ID)
	}
}
