package ruby

import (
	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// AppDirCacheLayer preserves the contents of a directory inside the app dir
// between builds. Layers live outside the app dir, so precompiled assets
// would otherwise be lost on every build; this layer holds them and the
// driver syncs them back in.
//
// The reuse decision is keyed on the cached directory's owner path: the
// metadata can match while the cache actually belongs to a different
// application checkout, in which case the strategy hook forces a rebuild.
type AppDirCacheLayer struct {
	AppDirPath string
}

func (l *AppDirCacheLayer) LayerTypes() layers.Types {
	return layers.Types{Build: true, Launch: true, Cache: true}
}

func (l *AppDirCacheLayer) DesiredMetadata() layers.Metadata {
	return layers.Metadata{"app_dir_path": l.AppDirPath}
}

func (l *AppDirCacheLayer) Create(ctx *layers.Context, layerPath string) (*layers.Result, error) {
	return &layers.Result{Metadata: l.DesiredMetadata(), Env: env.NewLayerEnv()}, nil
}

// ExistingLayerStrategy keeps the cache only when it belongs to the same
// application directory.
func (l *AppDirCacheLayer) ExistingLayerStrategy(ctx *layers.Context, existing *layers.Existing) (layers.Strategy, error) {
	if owner, _ := existing.Metadata["app_dir_path"].(string); owner == l.AppDirPath {
		return layers.StrategyKeep, nil
	}
	return layers.StrategyRecreate, nil
}
