package exporters

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/types"
	"github.com/strataforge/strata/layers"
)

// ImageExporter assembles an OCI image from the launch layers and writes
// it as a docker-loadable tarball. Each launch layer becomes one image
// layer rooted at /layers/<name>, and the composed launch environment and
// default process are baked into the image config.
type ImageExporter struct{}

func init() {
	RegisterExporter("image", &ImageExporter{})
}

func (e *ImageExporter) Export(result *types.BuildResult, config *types.BuildConfig, layersDir string) error {
	outputRoot := config.OutputDir
	if outputRoot == "" {
		outputRoot = "output"
	}
	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		return errors.NewExport(fmt.Sprintf("failed to create output directory: %v", err), err)
	}

	tag := "app:latest"
	if len(config.Tags) > 0 {
		tag = config.Tags[0]
	}
	ref, err := name.NewTag(tag)
	if err != nil {
		return errors.NewExport(fmt.Sprintf("invalid image tag %q: %v", tag, err), err)
	}

	tmpDir, err := os.MkdirTemp("", "strata-image-")
	if err != nil {
		return errors.NewExport(fmt.Sprintf("failed to create staging directory: %v", err), err)
	}
	defer os.RemoveAll(tmpDir)

	image, err := e.assembleImage(result, config, tmpDir)
	if err != nil {
		return err
	}

	outputPath := filepath.Join(outputRoot, artifactName(config)+".oci.tar")
	if err := tarball.WriteToFile(outputPath, ref, image); err != nil {
		return errors.NewExport(fmt.Sprintf("failed to write image tarball: %v", err), err)
	}

	result.OutputPath = outputPath
	return nil
}

func (e *ImageExporter) assembleImage(result *types.BuildResult, config *types.BuildConfig, tmpDir string) (v1.Image, error) {
	image := empty.Image

	for i, layer := range launchLayers(result) {
		tarPath := filepath.Join(tmpDir, fmt.Sprintf("layer-%d.tar", i))
		if err := e.writeLayerTar(tarPath, layer); err != nil {
			return nil, errors.NewExport(fmt.Sprintf("failed to stage layer %s: %v", layer.Name, err), err)
		}

		imageLayer, err := tarball.LayerFromFile(tarPath)
		if err != nil {
			return nil, errors.NewExport(fmt.Sprintf("failed to read staged layer %s: %v", layer.Name, err), err)
		}

		image, err = mutate.Append(image, mutate.Addendum{
			Layer: imageLayer,
			History: v1.History{
				Created:   v1.Time{Time: result.CreatedAt},
				CreatedBy: fmt.Sprintf("strata layer %s", layer.Name),
			},
		})
		if err != nil {
			return nil, errors.NewExport(fmt.Sprintf("failed to append layer %s: %v", layer.Name, err), err)
		}
	}

	configFile, err := image.ConfigFile()
	if err != nil {
		return nil, errors.NewExport(fmt.Sprintf("failed to read image config: %v", err), err)
	}
	configFile = configFile.DeepCopy()

	configFile.OS = config.Platform.OS
	configFile.Architecture = config.Platform.Architecture
	configFile.Variant = config.Platform.Variant
	configFile.Created = v1.Time{Time: result.CreatedAt}
	configFile.Config.Env = environList(result.LaunchEnv)
	configFile.Config.WorkingDir = "/workspace"
	if process := result.DefaultProcess(); process != nil {
		configFile.Config.Cmd = append([]string{process.Command}, process.Args...)
	}

	image, err = mutate.ConfigFile(image, configFile)
	if err != nil {
		return nil, errors.NewExport(fmt.Sprintf("failed to set image config: %v", err), err)
	}

	return image, nil
}

// writeLayerTar stages one layer directory as an uncompressed tar rooted
// at /layers/<name>, the path layout the launch environment references.
func (e *ImageExporter) writeLayerTar(tarPath string, layer types.LayerSummary) error {
	tarFile, err := os.Create(tarPath)
	if err != nil {
		return err
	}
	defer tarFile.Close()

	tarWriter := tar.NewWriter(tarFile)
	defer tarWriter.Close()

	prefix := filepath.Join("layers", layer.Name)

	return filepath.Walk(layer.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(layer.Path, path)
		if err != nil {
			return err
		}

		if relPath == "." {
			return nil
		}

		if layers.IsRecordFile(filepath.Base(relPath)) {
			return nil
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(filepath.Join(prefix, relPath))
		header.ModTime = time.Unix(0, 0)

		if info.IsDir() {
			header.Name += "/"
			return tarWriter.WriteHeader(header)
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, err := io.Copy(tarWriter, file); err != nil {
				return err
			}
		}

		return nil
	})
}

func environList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
