package ruby

import (
	"fmt"
	"strings"
	"testing"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// fakeRunner records commands instead of executing them. Captured commands
// reply with captureOut.
type fakeRunner struct {
	commands   []string
	err        error
	captureOut string
	captureErr error
}

func (r *fakeRunner) Run(name string, args []string, environ []string) error {
	r.commands = append(r.commands, name+" "+strings.Join(args, " "))
	return r.err
}

func (r *fakeRunner) Capture(name string, args []string, environ []string) (string, error) {
	r.commands = append(r.commands, name+" "+strings.Join(args, " "))
	return r.captureOut, r.captureErr
}

func buildContext(vars map[string]string) *layers.Context {
	return &layers.Context{
		AppDir:    "/workspace",
		LayersDir: "/layers",
		Stack:     "heroku-22",
		Env:       env.FromMap(vars),
	}
}

func TestBundlerCreateInstallsRequestedVersion(t *testing.T) {
	runner := &fakeRunner{}
	layer := &BundlerLayer{Version: "2.4.10", Runner: runner}
	ctx := buildContext(map[string]string{"GEM_PATH": "/layers/gems"})

	result, err := layer.Create(ctx, "/layers/bundler")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if len(runner.commands) != 1 {
		t.Fatalf("expected 1 command, got %v", runner.commands)
	}
	want := "gem install bundler --force --no-document -v 2.4.10 --install-dir /layers/gems"
	if runner.commands[0] != want {
		t.Errorf("unexpected command:\n got %s\nwant %s", runner.commands[0], want)
	}

	if v, _ := result.Metadata["version"].(string); v != "2.4.10" {
		t.Errorf("expected version metadata, got %v", result.Metadata)
	}
}

func TestBundlerCreateRequiresGemPath(t *testing.T) {
	layer := &BundlerLayer{Version: "2.4.10", Runner: &fakeRunner{}}
	ctx := buildContext(nil)

	if _, err := layer.Create(ctx, "/layers/bundler"); err == nil {
		t.Fatal("expected error when GEM_PATH is unset")
	}
}

func TestBundlerUpdateUninstallsOldVersion(t *testing.T) {
	runner := &fakeRunner{}
	layer := &BundlerLayer{Version: "2.4.10", Runner: runner}
	ctx := buildContext(map[string]string{"GEM_PATH": "/layers/gems"})
	existing := &layers.Existing{
		Path:     "/layers/bundler",
		Metadata: layers.Metadata{"version": "2.3.7"},
	}

	if _, err := layer.Update(ctx, existing); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if len(runner.commands) != 2 {
		t.Fatalf("expected uninstall then install, got %v", runner.commands)
	}
	if !strings.HasPrefix(runner.commands[0], "gem uninstall bundler") {
		t.Errorf("first command should uninstall, got %s", runner.commands[0])
	}
	if !strings.Contains(runner.commands[0], "-v 2.3.7") {
		t.Errorf("uninstall should target the old version, got %s", runner.commands[0])
	}
	if !strings.HasPrefix(runner.commands[1], "gem install bundler") {
		t.Errorf("second command should install, got %s", runner.commands[1])
	}
}

func TestBundlerUpdateWithoutRecordedVersionSkipsUninstall(t *testing.T) {
	runner := &fakeRunner{}
	layer := &BundlerLayer{Version: "2.4.10", Runner: runner}
	ctx := buildContext(map[string]string{"GEM_PATH": "/layers/gems"})
	existing := &layers.Existing{Path: "/layers/bundler", Metadata: layers.Metadata{}}

	if _, err := layer.Update(ctx, existing); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(runner.commands) != 1 {
		t.Fatalf("expected install only, got %v", runner.commands)
	}
}

func TestBundlerUpdateFailurePropagates(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("gem broke")}
	layer := &BundlerLayer{Version: "2.4.10", Runner: runner}
	ctx := buildContext(map[string]string{"GEM_PATH": "/layers/gems"})
	existing := &layers.Existing{
		Path:     "/layers/bundler",
		Metadata: layers.Metadata{"version": "2.3.7"},
	}

	if _, err := layer.Update(ctx, existing); err == nil {
		t.Fatal("expected runner failure to propagate")
	}
}

func TestBundlerStrategy(t *testing.T) {
	layer := &BundlerLayer{Version: "2.4.10"}
	ctx := buildContext(nil)

	strategy, err := layer.ExistingLayerStrategy(ctx, &layers.Existing{
		Metadata: layers.Metadata{"version": "2.4.10"},
	})
	if err != nil {
		t.Fatalf("strategy failed: %v", err)
	}
	if strategy != layers.StrategyKeep {
		t.Errorf("matching version should keep, got %v", strategy)
	}

	strategy, err = layer.ExistingLayerStrategy(ctx, &layers.Existing{
		Metadata: layers.Metadata{"version": "2.3.7"},
	})
	if err != nil {
		t.Fatalf("strategy failed: %v", err)
	}
	if strategy != layers.StrategyUpdate {
		t.Errorf("version change should update, got %v", strategy)
	}
}

func TestBundlerLayerEnv(t *testing.T) {
	runner := &fakeRunner{}
	layer := &BundlerLayer{Version: "2.4.10", Runner: runner}
	ctx := buildContext(map[string]string{"GEM_PATH": "/layers/gems"})

	result, err := layer.Create(ctx, "/layers/bundler")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	applied := result.Env.Apply(env.ScopeBuild, env.NewEnv())
	if v, _ := applied.Get("BUNDLE_GEMFILE"); v != "/workspace/Gemfile" {
		t.Errorf("expected BUNDLE_GEMFILE /workspace/Gemfile, got %q", v)
	}
	if v, _ := applied.Get("BUNDLE_WITHOUT"); v != "development:test" {
		t.Errorf("expected BUNDLE_WITHOUT development:test, got %q", v)
	}
	if v, _ := applied.Get("BUNDLE_DEPLOYMENT"); v != "1" {
		t.Errorf("expected BUNDLE_DEPLOYMENT 1, got %q", v)
	}

	launch := result.Env.Apply(env.ScopeLaunch, env.NewEnv())
	if _, ok := launch.Get("BUNDLE_GEMFILE"); ok {
		t.Error("BUNDLE_GEMFILE is build-scoped and should not reach launch")
	}
}
