package ruby

import (
	"io"
	"os"
	"path/filepath"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// AssetsDir is the app-relative directory rake writes precompiled assets to.
const AssetsDir = "public/assets"

// AssetsPrecompileLayer runs `rake assets:precompile` for Rails
// applications. The bundle is inspected with `bundle list`; apps without
// the rails gem skip the step entirely.
//
// Compiled assets land inside the app directory, which is not preserved
// between builds, so they are synced through a cache directory owned by an
// AppDirCacheLayer: restored before rake runs, stored back after. Sprockets
// keeps old asset versions on disk, which lets long-lived references (a
// cached email pointing at a specific asset digest) keep resolving across
// deploys.
//
// The layer itself is never cached: whether to compile is decided fresh
// every build from the bundle contents.
type AssetsPrecompileLayer struct {
	AppDir   string
	CacheDir string
	Runner   Runner
}

func (l *AssetsPrecompileLayer) runner() Runner {
	if l.Runner != nil {
		return l.Runner
	}
	return ExecRunner{}
}

func (l *AssetsPrecompileLayer) LayerTypes() layers.Types {
	return layers.Types{Build: true, Launch: false, Cache: false}
}

func (l *AssetsPrecompileLayer) DesiredMetadata() layers.Metadata {
	return layers.Metadata{}
}

func (l *AssetsPrecompileLayer) Create(ctx *layers.Context, layerPath string) (*layers.Result, error) {
	out, err := l.runner().Capture("bundle", []string{"list"}, ctx.Env.Environ())
	if err != nil {
		return nil, err
	}

	if !ParseGemList(out).Has("rails") {
		return &layers.Result{Metadata: layers.Metadata{}, Env: env.NewLayerEnv()}, nil
	}

	assetsPath := filepath.Join(l.AppDir, filepath.FromSlash(AssetsDir))

	if l.CacheDir != "" {
		if err := copyTree(l.CacheDir, assetsPath); err != nil {
			return nil, err
		}
	}

	if err := l.runner().Run("bundle", []string{"exec", "rake", "assets:precompile"}, ctx.Env.Environ()); err != nil {
		return nil, err
	}

	if l.CacheDir != "" {
		if err := copyTree(assetsPath, l.CacheDir); err != nil {
			return nil, err
		}
	}

	return &layers.Result{Metadata: layers.Metadata{}, Env: env.NewLayerEnv()}, nil
}

// copyTree copies the contents of src into dst, creating dst as needed. A
// missing src is not an error: there is simply nothing to sync yet.
func copyTree(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		// The cache lives inside a layer directory; the store's own
		// records are not asset content.
		if layers.IsRecordFile(filepath.Base(relPath)) {
			return nil
		}

		target := filepath.Join(dst, relPath)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode())
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}
