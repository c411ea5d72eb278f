package ruby

import (
	"fmt"
	"path/filepath"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// BundlerLayer installs the requested bundler version into the gem path.
// When only the version differs from the cached layer it updates in place:
// the old bundler gem is uninstalled first, then the new one installed.
// The uninstall is deliberately not atomic; a failed update leaves no
// bundler installed and the next build recreates the layer because the
// persisted metadata no longer matches anything desired.
type BundlerLayer struct {
	Version string
	Runner  Runner
}

func (l *BundlerLayer) runner() Runner {
	if l.Runner != nil {
		return l.Runner
	}
	return ExecRunner{}
}

func (l *BundlerLayer) LayerTypes() layers.Types {
	return layers.Types{Build: true, Launch: true, Cache: true}
}

func (l *BundlerLayer) DesiredMetadata() layers.Metadata {
	return layers.Metadata{"version": l.Version}
}

func (l *BundlerLayer) Create(ctx *layers.Context, layerPath string) (*layers.Result, error) {
	gemPath, ok := ctx.Env.Get("GEM_PATH")
	if !ok {
		return nil, fmt.Errorf("GEM_PATH must be set before the bundler layer runs")
	}

	err := l.runner().Run("gem", []string{
		"install", "bundler",
		"--force", "--no-document",
		"-v", l.Version,
		"--install-dir", gemPath,
	}, ctx.Env.Environ())
	if err != nil {
		return nil, err
	}

	return &layers.Result{
		Metadata: l.DesiredMetadata(),
		Env:      l.layerEnv(ctx),
	}, nil
}

// Update uninstalls the previously cached bundler version before installing
// the requested one, keeping the gem path free of stale copies.
func (l *BundlerLayer) Update(ctx *layers.Context, existing *layers.Existing) (*layers.Result, error) {
	gemPath, ok := ctx.Env.Get("GEM_PATH")
	if !ok {
		return nil, fmt.Errorf("GEM_PATH must be set before the bundler layer runs")
	}

	oldVersion, _ := existing.Metadata["version"].(string)
	if oldVersion != "" {
		err := l.runner().Run("gem", []string{
			"uninstall", "bundler",
			"--force",
			"-v", oldVersion,
			"--install-dir", gemPath,
		}, ctx.Env.Environ())
		if err != nil {
			return nil, err
		}
	}

	return l.Create(ctx, existing.Path)
}

// ExistingLayerStrategy keeps a matching bundler untouched and updates any
// other cached version in place.
func (l *BundlerLayer) ExistingLayerStrategy(ctx *layers.Context, existing *layers.Existing) (layers.Strategy, error) {
	if l.DesiredMetadata().Equal(existing.Metadata) {
		return layers.StrategyKeep, nil
	}
	return layers.StrategyUpdate, nil
}

func (l *BundlerLayer) layerEnv(ctx *layers.Context) env.LayerEnv {
	return env.NewLayerEnv().
		Insert(env.ScopeBuild, env.BehaviorDelimiter, "BUNDLE_WITHOUT", ":").
		Insert(env.ScopeAll, env.BehaviorPrepend, "BUNDLE_WITHOUT", "development:test").
		Insert(env.ScopeBuild, env.BehaviorOverride, "BUNDLE_GEMFILE", filepath.Join(ctx.AppDir, "Gemfile")).
		Insert(env.ScopeAll, env.BehaviorOverride, "BUNDLE_CLEAN", "1").
		Insert(env.ScopeAll, env.BehaviorOverride, "BUNDLE_DEPLOYMENT", "1").
		Insert(env.ScopeAll, env.BehaviorOverride, "BUNDLE_GLOBAL_PATH_APPENDS_RUBY_SCOPE", "1").
		Insert(env.ScopeAll, env.BehaviorOverride, "NOKOGIRI_USE_SYSTEM_LIBRARIES", "1")
}
