package ruby

import (
	"path/filepath"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// GemPathLayer owns the directory gems are installed into and exposes it as
// GEM_PATH and BUNDLE_PATH. The gem store is only reusable against the ruby
// it was compiled for, so the reuse decision is keyed on the ruby version:
// a ruby upgrade throws the whole gem store away.
type GemPathLayer struct {
	RubyVersion string
}

func (l *GemPathLayer) LayerTypes() layers.Types {
	return layers.Types{Build: true, Launch: true, Cache: true}
}

func (l *GemPathLayer) DesiredMetadata() layers.Metadata {
	return layers.Metadata{"ruby_version": l.RubyVersion}
}

func (l *GemPathLayer) Create(ctx *layers.Context, layerPath string) (*layers.Result, error) {
	return &layers.Result{
		Metadata: l.DesiredMetadata(),
		Env:      gemPathEnv(layerPath),
	}, nil
}

// ExistingLayerStrategy keeps the gem store only while the ruby version
// matches; any other difference rebuilds it rather than risking native
// extensions compiled against the wrong ruby.
func (l *GemPathLayer) ExistingLayerStrategy(ctx *layers.Context, existing *layers.Existing) (layers.Strategy, error) {
	if l.DesiredMetadata().Equal(existing.Metadata) {
		return layers.StrategyKeep, nil
	}
	return layers.StrategyRecreate, nil
}

func gemPathEnv(layerPath string) env.LayerEnv {
	return env.NewLayerEnv().
		Insert(env.ScopeAll, env.BehaviorDelimiter, "GEM_PATH", ":").
		Insert(env.ScopeAll, env.BehaviorPrepend, "GEM_PATH", layerPath).
		Insert(env.ScopeAll, env.BehaviorOverride, "BUNDLE_PATH", layerPath).
		Insert(env.ScopeAll, env.BehaviorDelimiter, "PATH", ":").
		Insert(env.ScopeAll, env.BehaviorPrepend, "PATH", filepath.Join(layerPath, "bin"))
}
