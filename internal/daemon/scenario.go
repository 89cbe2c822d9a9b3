package daemon

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/icarus-itcs/lazyflutter/internal/device"
)

//go:embed demo.yaml
var demoScenario []byte

// Scenario scripts what the simulator reports and how it answers requests.
type Scenario struct {
	ReadyAfter         time.Duration      `yaml:"ready_after"`
	CanCreateEmulators bool               `yaml:"can_create_emulators"`
	ListDelay          time.Duration      `yaml:"list_delay"`
	ListError          string             `yaml:"list_error"`
	Devices            []ScenarioDevice   `yaml:"devices"`
	Emulators          []ScenarioEmulator `yaml:"emulators"`
	Create             CreateBehaviour    `yaml:"create"`
}

// ScenarioDevice is a device that connects (and maybe disconnects) on its own.
type ScenarioDevice struct {
	device.Device   `yaml:",inline"`
	ConnectAfter    time.Duration `yaml:"connect_after"`
	DisconnectAfter time.Duration `yaml:"disconnect_after"` // relative to connect; 0 stays connected
}

// ScenarioEmulator is a launchable emulator.
type ScenarioEmulator struct {
	device.Emulator `yaml:",inline"`
	Platform        string        `yaml:"platform"`
	BootTime        time.Duration `yaml:"boot_time"`
	FailLaunch      string        `yaml:"fail_launch"` // daemon error returned by launch
	NeverBoots      bool          `yaml:"never_boots"`
}

// CreateBehaviour scripts emulator creation.
type CreateBehaviour struct {
	FailWith string        `yaml:"fail_with"`
	Delay    time.Duration `yaml:"delay"`
	Platform string        `yaml:"platform"`
	BootTime time.Duration `yaml:"boot_time"`
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	for i, d := range s.Devices {
		if d.ID == "" {
			return nil, fmt.Errorf("scenario device %d has no id", i)
		}
	}
	for i, e := range s.Emulators {
		if e.ID == "" {
			return nil, fmt.Errorf("scenario emulator %d has no id", i)
		}
	}
	return &s, nil
}

// LoadScenario reads a scenario file. An empty path returns the built-in demo.
func LoadScenario(path string) (*Scenario, error) {
	if path == "" {
		return ParseScenario(demoScenario)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}
