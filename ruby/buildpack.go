package ruby

import (
	"fmt"
	"path/filepath"

	"github.com/strataforge/strata/engine"
	"github.com/strataforge/strata/internal/types"
)

// Buildpack builds Ruby applications that manage gems with bundler. A
// project qualifies when its app directory contains a Gemfile.lock; the
// locked ruby and bundler versions select what gets installed, with stack
// defaults filling in when the lockfile does not pin them.
type Buildpack struct{}

func init() {
	engine.RegisterBuildpack(&Buildpack{})
}

func (b *Buildpack) Name() string {
	return "ruby"
}

func (b *Buildpack) Detect(appDir string) bool {
	return Detect(appDir)
}

func (b *Buildpack) Sequence(config *types.BuildConfig, project *types.ProjectConfig) ([]engine.NamedLayer, []types.Process, error) {
	lock, err := ReadGemfileLock(config.AppDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read Gemfile.lock: %v", err)
	}

	assetsPath := filepath.Join(config.AppDir, filepath.FromSlash(AssetsDir))

	sequence := []engine.NamedLayer{
		{Name: "env-defaults", Layer: &DefaultEnvLayer{Vars: StaticVars()}},
		{Name: "secret-key-base", Layer: &SecretKeyBaseLayer{}},
		{Name: "ruby", Layer: &InstallRubyLayer{Version: lock.RubyVersion, Stack: config.Stack}},
		{Name: "gems", Layer: &GemPathLayer{RubyVersion: lock.RubyVersion}},
		{Name: "bundler", Layer: &BundlerLayer{Version: lock.BundlerVersion}},
		{Name: "bundle-install", Layer: &BundleInstallLayer{AppDir: config.AppDir}},
		{Name: "app-cache", Layer: &AppDirCacheLayer{AppDirPath: assetsPath}},
		{Name: "assets-precompile", Layer: &AssetsPrecompileLayer{
			AppDir:   config.AppDir,
			CacheDir: filepath.Join(config.LayersDir, "app-cache"),
		}},
	}

	// The platform assigns the port at launch, so the process goes through a
	// shell to expand PORT, with a default for local runs.
	processes := []types.Process{
		{
			Type:    "web",
			Command: "bash",
			Args:    []string{"-c", `bundle exec rackup --port "${PORT:-8080}" --host 0.0.0.0`},
			Default: true,
		},
	}

	return sequence, processes, nil
}
