package ruby

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// BundleInstallLayer runs `bundle install` against the app's Gemfile. The
// reuse decision is keyed on a digest of Gemfile.lock: an unchanged lock
// file skips the install entirely, a changed one reruns it against the
// existing gem store so bundler only fetches the difference.
type BundleInstallLayer struct {
	AppDir string
	Runner Runner
}

func (l *BundleInstallLayer) runner() Runner {
	if l.Runner != nil {
		return l.Runner
	}
	return ExecRunner{}
}

func (l *BundleInstallLayer) LayerTypes() layers.Types {
	return layers.Types{Build: true, Launch: true, Cache: true}
}

func (l *BundleInstallLayer) DesiredMetadata() layers.Metadata {
	return layers.Metadata{"gemfile_lock_sha": l.lockDigest()}
}

func (l *BundleInstallLayer) lockDigest() string {
	data, err := os.ReadFile(filepath.Join(l.AppDir, "Gemfile.lock"))
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func (l *BundleInstallLayer) Create(ctx *layers.Context, layerPath string) (*layers.Result, error) {
	if err := l.runner().Run("bundle", []string{"install"}, ctx.Env.Environ()); err != nil {
		return nil, err
	}
	return &layers.Result{Metadata: l.DesiredMetadata(), Env: env.NewLayerEnv()}, nil
}

// Update reruns bundle install over the existing gem store instead of
// refetching everything.
func (l *BundleInstallLayer) Update(ctx *layers.Context, existing *layers.Existing) (*layers.Result, error) {
	return l.Create(ctx, existing.Path)
}
