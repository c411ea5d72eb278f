package ruby

import (
	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// EnvVar is one ordered default environment entry.
type EnvVar struct {
	Key   string
	Value string
}

// DefaultEnvLayer sets default environment values visible to both build and
// launch without installing anything. It is never cached: defaults are cheap
// to recompute and recreating keeps them in sync with the buildpack version.
type DefaultEnvLayer struct {
	Vars []EnvVar
}

// StaticVars are the stack defaults for Ruby applications.
func StaticVars() []EnvVar {
	return []EnvVar{
		{"JRUBY_OPTS", "-Xcompile.invokedynamic=false"},
		{"RACK_ENV", "production"},
		{"RAILS_ENV", "production"},
		{"RAILS_SERVE_STATIC_FILES", "enabled"},
		{"RAILS_LOG_TO_STDOUT", "enabled"},
		{"MALLOC_ARENA_MAX", "2"},
		{"DISABLE_SPRING", "1"},
	}
}

func (l *DefaultEnvLayer) LayerTypes() layers.Types {
	return layers.Types{Build: true, Launch: true, Cache: false}
}

func (l *DefaultEnvLayer) DesiredMetadata() layers.Metadata {
	return layers.Metadata{}
}

func (l *DefaultEnvLayer) Create(ctx *layers.Context, layerPath string) (*layers.Result, error) {
	le := env.NewLayerEnv()
	for _, v := range l.Vars {
		le = le.Insert(env.ScopeAll, env.BehaviorDefault, v.Key, v.Value)
	}
	return &layers.Result{Metadata: layers.Metadata{}, Env: le}, nil
}
