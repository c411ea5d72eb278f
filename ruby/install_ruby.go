package ruby

import (
	"archive/tar"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/layers"
)

// DefaultRubyBaseURL hosts prebuilt ruby archives per stack.
const DefaultRubyBaseURL = "https://heroku-buildpack-ruby.s3.us-east-1.amazonaws.com"

// InstallRubyLayer downloads and unpacks a prebuilt ruby for the requested
// version and stack. There is no incremental update path: a version change
// recreates the layer from scratch.
type InstallRubyLayer struct {
	Version string
	Stack   string
	BaseURL string
	Client  *http.Client
}

func (l *InstallRubyLayer) LayerTypes() layers.Types {
	return layers.Types{Build: true, Launch: true, Cache: true}
}

func (l *InstallRubyLayer) DesiredMetadata() layers.Metadata {
	return layers.Metadata{
		"version": l.Version,
		"stack":   l.Stack,
	}
}

func (l *InstallRubyLayer) URL() string {
	base := l.BaseURL
	if base == "" {
		base = DefaultRubyBaseURL
	}
	return fmt.Sprintf("%s/%s/ruby-%s.tgz", base, l.Stack, l.Version)
}

func (l *InstallRubyLayer) Create(ctx *layers.Context, layerPath string) (*layers.Result, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(l.URL())
	if err != nil {
		return nil, fmt.Errorf("downloading ruby %s: %v", l.Version, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading ruby %s: unexpected status %s", l.Version, resp.Status)
	}

	if err := untarGz(resp.Body, layerPath); err != nil {
		return nil, fmt.Errorf("unpacking ruby %s: %v", l.Version, err)
	}

	return &layers.Result{
		Metadata: l.DesiredMetadata(),
		Env: env.NewLayerEnv().
			Insert(env.ScopeAll, env.BehaviorDelimiter, "PATH", ":").
			Insert(env.ScopeAll, env.BehaviorPrepend, "PATH", filepath.Join(layerPath, "bin")).
			Insert(env.ScopeAll, env.BehaviorDelimiter, "LD_LIBRARY_PATH", ":").
			Insert(env.ScopeAll, env.BehaviorPrepend, "LD_LIBRARY_PATH", filepath.Join(layerPath, "lib")),
	}, nil
}

// untarGz unpacks a gzip-compressed tar stream into dir, rejecting entries
// that would escape it.
func untarGz(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		cleaned := filepath.Clean(header.Name)
		if cleaned == "." {
			continue
		}
		if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
			return fmt.Errorf("archive entry escapes layer directory: %s", header.Name)
		}
		target := filepath.Join(dir, cleaned)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(file, tr); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		}
	}
}
