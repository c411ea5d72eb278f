package ruby

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// SecretKeyBaseLayer generates a SECRET_KEY_BASE default once and keeps it
// stable across builds, so sessions survive redeploys. The secret itself
// lives in the persisted environment record; the metadata only marks that a
// secret exists, which makes every later build a structural match.
type SecretKeyBaseLayer struct{}

func (l *SecretKeyBaseLayer) LayerTypes() layers.Types {
	return layers.Types{Build: true, Launch: true, Cache: true}
}

func (l *SecretKeyBaseLayer) DesiredMetadata() layers.Metadata {
	return layers.Metadata{"generated": true}
}

func (l *SecretKeyBaseLayer) Create(ctx *layers.Context, layerPath string) (*layers.Result, error) {
	secret := make([]byte, 64)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating secret: %v", err)
	}

	return &layers.Result{
		Metadata: layers.Metadata{"generated": true},
		Env: env.NewLayerEnv().
			Insert(env.ScopeAll, env.BehaviorDefault, "SECRET_KEY_BASE", hex.EncodeToString(secret)),
	}, nil
}
