// Package preflight checks the local Flutter toolchain and finds Flutter
// projects below a directory.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// CheckResult represents the result of a single check
type CheckResult struct {
	Name    string
	Status  Status
	Message string
	Path    string
}

// Status represents the status of a check
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Project is a Flutter project found on disk
type Project struct {
	Name        string
	Description string
	Path        string
	Platforms   []string
}

// Results contains all preflight check results
type Results struct {
	Checks      []CheckResult
	Projects    []Project
	HasErrors   bool
	HasWarnings bool
	Version     string
}

// Tool defines an executable to look for
type Tool struct {
	Name        string
	Command     string
	VersionArgs []string
	Required    bool
	Platform    string // "all", "darwin", "linux", "windows"
}

var tools = []Tool{
	{Name: "Flutter SDK", Command: "flutter", VersionArgs: []string{"--version"}, Required: true, Platform: "all"},
	{Name: "Dart", Command: "dart", VersionArgs: []string{"--version"}, Required: true, Platform: "all"},
	{Name: "git", Command: "git", VersionArgs: []string{"--version"}, Required: true, Platform: "all"},

	{Name: "Android ADB", Command: "adb", VersionArgs: []string{"version"}, Required: false, Platform: "all"},
	{Name: "Android Emulator", Command: "emulator", VersionArgs: []string{"-version"}, Required: false, Platform: "all"},
	{Name: "Java", Command: "java", VersionArgs: []string{"-version"}, Required: false, Platform: "all"},

	{Name: "Xcode CLI", Command: "xcrun", Required: false, Platform: "darwin"},
	{Name: "CocoaPods", Command: "pod", VersionArgs: []string{"--version"}, Required: false, Platform: "darwin"},
}

// Checker runs the checks. The zero value is not usable; use NewChecker.
type Checker struct {
	LookPath func(file string) (string, error)
	Output   func(name string, args ...string) ([]byte, error)
	GOOS     string
	MaxDepth int
}

// NewChecker returns a checker that looks at the real system
func NewChecker() *Checker {
	return &Checker{
		LookPath: exec.LookPath,
		Output: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
		GOOS:     runtime.GOOS,
		MaxDepth: 4,
	}
}

// Run executes all preflight checks from the working directory
func Run() *Results {
	return NewChecker().RunAt("")
}

// RunAt executes all preflight checks and looks for projects below baseDir
func (c *Checker) RunAt(baseDir string) *Results {
	results := &Results{Checks: make([]CheckResult, 0, len(tools))}

	for _, tool := range tools {
		if tool.Platform != "all" && tool.Platform != c.GOOS {
			continue
		}
		result := c.checkTool(tool)
		results.Checks = append(results.Checks, result)

		switch result.Status {
		case StatusError:
			results.HasErrors = true
		case StatusWarning:
			results.HasWarnings = true
		}
	}

	if baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			baseDir = wd
		}
	}
	if baseDir != "" {
		results.Projects = walkForProjects(baseDir, 0, c.MaxDepth)
	}
	return results
}

func (c *Checker) checkTool(tool Tool) CheckResult {
	result := CheckResult{Name: tool.Name}

	path, err := c.LookPath(tool.Command)
	if err != nil {
		if tool.Required {
			result.Status = StatusError
			result.Message = "Not found - required"
		} else {
			result.Status = StatusWarning
			result.Message = "Not found - optional"
		}
		return result
	}
	result.Path = path
	result.Status = StatusOK
	result.Message = "OK"

	if len(tool.VersionArgs) == 0 {
		return result
	}
	out, err := c.Output(tool.Command, tool.VersionArgs...)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Found but may not work: %v", err)
		return result
	}
	if v := cleanVersion(string(out)); v != "" {
		result.Message = v
	}
	return result
}

// cleanVersion keeps the first line of a version banner
func cleanVersion(out string) string {
	version := strings.TrimSpace(out)
	if idx := strings.Index(version, "\n"); idx != -1 {
		version = strings.TrimSpace(version[:idx])
	}
	version = strings.TrimPrefix(version, "git version ")
	version = strings.TrimPrefix(version, "Dart SDK version: ")
	version = strings.TrimPrefix(version, "Android Debug Bridge version ")
	version = strings.TrimPrefix(version, "v")

	if len(version) > 40 {
		version = version[:40] + "..."
	}
	return version
}

// Summary returns a short summary of the results
func (r *Results) Summary() string {
	ok, warn, fail := 0, 0, 0
	for _, c := range r.Checks {
		switch c.Status {
		case StatusOK:
			ok++
		case StatusWarning:
			warn++
		case StatusError:
			fail++
		}
	}

	if fail > 0 {
		return fmt.Sprintf("%d errors, %d warnings", fail, warn)
	}
	if warn > 0 {
		return fmt.Sprintf("%d warnings", warn)
	}
	return fmt.Sprintf("%d checks passed", ok)
}

// VersionCheck returns a CheckResult for the running binary
func (r *Results) VersionCheck() CheckResult {
	result := CheckResult{Name: "lazyflutter", Status: StatusOK}
	if r.Version == "" || r.Version == "dev" {
		result.Message = "dev (development build)"
		return result
	}
	result.Message = "v" + strings.TrimPrefix(r.Version, "v")
	return result
}

type pubspec struct {
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description"`
	Dependencies map[string]any `yaml:"dependencies"`
}

var platformDirs = []string{"android", "ios", "web", "macos", "linux", "windows"}

// ParsePubspec reads a pubspec.yaml. ok is false when the file is not a
// Flutter app or plugin (no flutter dependency).
func ParsePubspec(data []byte) (name, description string, ok bool, err error) {
	var ps pubspec
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return "", "", false, fmt.Errorf("failed to parse pubspec: %w", err)
	}
	_, isFlutter := ps.Dependencies["flutter"]
	return ps.Name, ps.Description, isFlutter, nil
}

func walkForProjects(dir string, depth, maxDepth int) []Project {
	if depth > maxDepth {
		return nil
	}

	var projects []Project
	if data, err := os.ReadFile(filepath.Join(dir, "pubspec.yaml")); err == nil {
		if name, desc, ok, err := ParsePubspec(data); err == nil && ok {
			if name == "" {
				name = filepath.Base(dir)
			}
			p := Project{Name: name, Description: desc, Path: dir}
			for _, platform := range platformDirs {
				if info, err := os.Stat(filepath.Join(dir, platform)); err == nil && info.IsDir() {
					p.Platforms = append(p.Platforms, platform)
				}
			}
			projects = append(projects, p)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return projects
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if skipDir(name) {
			continue
		}
		projects = append(projects, walkForProjects(filepath.Join(dir, name), depth+1, maxDepth)...)
	}
	return projects
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "build", "node_modules", "Pods":
		return true
	}
	for _, p := range platformDirs {
		if name == p {
			return true
		}
	}
	return false
}
