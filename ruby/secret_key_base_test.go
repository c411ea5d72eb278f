package ruby

import (
	"testing"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

func TestSecretKeyBaseCreateGeneratesSecret(t *testing.T) {
	layer := &SecretKeyBaseLayer{}

	result, err := layer.Create(buildContext(nil), "/layers/secret-key-base")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	applied := result.Env.Apply(env.ScopeLaunch, env.NewEnv())
	secret, ok := applied.Get("SECRET_KEY_BASE")
	if !ok {
		t.Fatal("expected SECRET_KEY_BASE to be set")
	}
	if len(secret) != 128 {
		t.Errorf("expected 128 hex chars, got %d", len(secret))
	}
}

func TestSecretKeyBaseDoesNotOverrideUserSecret(t *testing.T) {
	layer := &SecretKeyBaseLayer{}

	result, err := layer.Create(buildContext(nil), "/layers/secret-key-base")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	applied := result.Env.Apply(env.ScopeLaunch, env.FromMap(map[string]string{
		"SECRET_KEY_BASE": "user-secret",
	}))
	if v, _ := applied.Get("SECRET_KEY_BASE"); v != "user-secret" {
		t.Errorf("user secret should win, got %q", v)
	}
}

// The metadata never varies, so a cached secret always structurally matches
// and survives rebuilds.
func TestSecretKeyBaseMetadataIsStable(t *testing.T) {
	layer := &SecretKeyBaseLayer{}

	result, err := layer.Create(buildContext(nil), "/layers/secret-key-base")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if !layer.DesiredMetadata().Equal(result.Metadata) {
		t.Error("desired metadata should match created metadata on every build")
	}
	if !layer.DesiredMetadata().Equal(layers.Metadata{"generated": true}) {
		t.Errorf("unexpected metadata %v", layer.DesiredMetadata())
	}
}
