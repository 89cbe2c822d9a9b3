package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func fakeChecker(found map[string]string, broken map[string]bool) *Checker {
	return &Checker{
		LookPath: func(file string) (string, error) {
			if _, ok := found[file]; ok {
				return "/usr/bin/" + file, nil
			}
			return "", errors.New("not found")
		},
		Output: func(name string, args ...string) ([]byte, error) {
			if broken[name] {
				return nil, errors.New("exit status 1")
			}
			return []byte(found[name]), nil
		},
		GOOS:     "linux",
		MaxDepth: 4,
	}
}

func checkByName(t *testing.T, r *Results, name string) CheckResult {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no check named %q", name)
	return CheckResult{}
}

func TestRunAtTools(t *testing.T) {
	c := fakeChecker(map[string]string{
		"flutter": "Flutter 3.24.0 • channel stable\nFramework • revision abc",
		"dart":    "Dart SDK version: 3.5.0 (stable)",
		"git":     "git version 2.44.0\n",
		"adb":     "Android Debug Bridge version 1.0.41\nVersion 35.0.1",
		"java":    "",
	}, map[string]bool{"java": true})

	r := c.RunAt(t.TempDir())

	if r.HasErrors {
		t.Error("all required tools are present")
	}
	if !r.HasWarnings {
		t.Error("missing emulator should warn")
	}
	for _, c := range r.Checks {
		if c.Name == "Xcode CLI" || c.Name == "CocoaPods" {
			t.Errorf("darwin-only check %q ran on linux", c.Name)
		}
	}

	tests := []struct {
		name, message string
		status        Status
	}{
		{"Flutter SDK", "Flutter 3.24.0 • channel stable", StatusOK},
		{"Dart", "3.5.0 (stable)", StatusOK},
		{"git", "2.44.0", StatusOK},
		{"Android ADB", "1.0.41", StatusOK},
		{"Android Emulator", "Not found - optional", StatusWarning},
		{"Java", "Found but may not work: exit status 1", StatusWarning},
	}
	for _, tt := range tests {
		got := checkByName(t, r, tt.name)
		if got.Status != tt.status || got.Message != tt.message {
			t.Errorf("%s = %v %q, want %v %q", tt.name, got.Status, got.Message, tt.status, tt.message)
		}
	}
	if got := r.Summary(); got != "2 warnings" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestRunAtMissingFlutter(t *testing.T) {
	r := fakeChecker(map[string]string{"git": "git version 2.44.0"}, nil).RunAt(t.TempDir())
	if !r.HasErrors {
		t.Fatal("missing flutter should be an error")
	}
	if got := checkByName(t, r, "Flutter SDK"); got.Message != "Not found - required" {
		t.Errorf("message = %q", got.Message)
	}
	if !strings.HasPrefix(r.Summary(), "2 errors") {
		t.Errorf("Summary() = %q", r.Summary())
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProjectDiscovery(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "pubspec.yaml"), `
name: shop_app
description: A shop.
dependencies:
  flutter:
    sdk: flutter
`)
	writeFile(t, filepath.Join(root, "app", "android", "build.gradle"), "")
	writeFile(t, filepath.Join(root, "app", "ios", "Podfile"), "")
	writeFile(t, filepath.Join(root, "app", "build", "pubspec.yaml"), "name: ignored\ndependencies:\n  flutter: {}\n")
	writeFile(t, filepath.Join(root, "dart_only", "pubspec.yaml"), "name: cli_tool\ndependencies:\n  args: ^2.0.0\n")
	writeFile(t, filepath.Join(root, ".hidden", "pubspec.yaml"), "name: hidden\ndependencies:\n  flutter: {}\n")

	r := fakeChecker(nil, nil).RunAt(root)
	if len(r.Projects) != 1 {
		t.Fatalf("projects = %+v", r.Projects)
	}
	p := r.Projects[0]
	if p.Name != "shop_app" || p.Description != "A shop." || p.Path != filepath.Join(root, "app") {
		t.Errorf("project = %+v", p)
	}
	if !reflect.DeepEqual(p.Platforms, []string{"android", "ios"}) {
		t.Errorf("platforms = %v", p.Platforms)
	}
}

func TestParsePubspec(t *testing.T) {
	if _, _, _, err := ParsePubspec([]byte("name: [unterminated")); err == nil {
		t.Error("expected parse error")
	}
	name, _, ok, err := ParsePubspec([]byte("name: x\ndependencies:\n  flutter:\n    sdk: flutter\n"))
	if err != nil || !ok || name != "x" {
		t.Errorf("ParsePubspec = %q, %v, %v", name, ok, err)
	}
}

func TestVersionCheck(t *testing.T) {
	for version, want := range map[string]string{
		"":      "dev (development build)",
		"dev":   "dev (development build)",
		"1.2.0": "v1.2.0",
		"v1.2":  "v1.2",
	} {
		r := &Results{Version: version}
		if got := r.VersionCheck().Message; got != want {
			t.Errorf("VersionCheck(%q) = %q, want %q", version, got, want)
		}
	}
}
