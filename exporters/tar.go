package exporters

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/types"
	"github.com/strataforge/strata/layers"
)

// TarExporter packages the launch layers and launch.json into a single
// tarball. Compression defaults to gzip; "zstd" and "none" are also
// accepted via BuildConfig.Compression.
type TarExporter struct{}

func init() {
	RegisterExporter("tar", &TarExporter{})
}

func (e *TarExporter) Export(result *types.BuildResult, config *types.BuildConfig, layersDir string) error {
	outputRoot := config.OutputDir
	if outputRoot == "" {
		outputRoot = "output"
	}
	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		return errors.NewExport(fmt.Sprintf("failed to create output directory: %v", err), err)
	}

	outputPath := filepath.Join(outputRoot, artifactName(config)+".tar"+compressionSuffix(config.Compression))

	tarFile, err := os.Create(outputPath)
	if err != nil {
		return errors.NewExport(fmt.Sprintf("failed to create tar file: %v", err), err)
	}
	defer tarFile.Close()

	compressed, err := wrapCompression(tarFile, config.Compression)
	if err != nil {
		return errors.NewExport(err.Error(), err)
	}

	tarWriter := tar.NewWriter(compressed)

	if err := e.writePayload(tarWriter, result); err != nil {
		tarWriter.Close()
		compressed.Close()
		return errors.NewExport(fmt.Sprintf("failed to write tar payload: %v", err), err)
	}

	if err := tarWriter.Close(); err != nil {
		return errors.NewExport(fmt.Sprintf("failed to finalize tar: %v", err), err)
	}
	if err := compressed.Close(); err != nil {
		return errors.NewExport(fmt.Sprintf("failed to finalize compression: %v", err), err)
	}

	result.OutputPath = outputPath
	return nil
}

func (e *TarExporter) writePayload(tarWriter *tar.Writer, result *types.BuildResult) error {
	manifest, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	header := &tar.Header{
		Name: "launch.json",
		Mode: 0644,
		Size: int64(len(manifest)),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	if _, err := tarWriter.Write(manifest); err != nil {
		return err
	}

	for _, layer := range launchLayers(result) {
		prefix := filepath.Join("layers", layer.Name)
		if err := e.addDirectoryToTar(tarWriter, layer.Path, prefix); err != nil {
			return fmt.Errorf("failed to add layer %s: %v", layer.Name, err)
		}
	}

	return nil
}

func (e *TarExporter) addDirectoryToTar(tarWriter *tar.Writer, srcDir, prefix string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		if relPath == "." {
			return nil
		}

		if layers.IsRecordFile(filepath.Base(relPath)) {
			return nil
		}

		tarPath := filepath.ToSlash(filepath.Join(prefix, relPath))

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
		header.Name = tarPath

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

func compressionSuffix(compression string) string {
	switch compression {
	case "zstd":
		return ".zst"
	case "none":
		return ""
	default:
		return ".gz"
	}
}

// nopWriteCloser lets uncompressed output share the close path with the
// compressing writers without closing the underlying file twice.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func wrapCompression(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case "", "gzip":
		return gzip.NewWriter(w), nil
	case "zstd":
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize zstd writer: %v", err)
		}
		return zw, nil
	case "none":
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
}
