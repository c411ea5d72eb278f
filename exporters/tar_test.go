package exporters

import (
	"archive/tar"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func readTarEntries(t *testing.T, r io.Reader) map[string]bool {
	t.Helper()
	entries := make(map[string]bool)
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read tar: %v", err)
		}
		entries[header.Name] = true
	}
	return entries
}

func TestTarExportGzipDefault(t *testing.T) {
	result, config := writeTestLayers(t)

	exporter := &TarExporter{}
	if err := exporter.Export(result, config, config.LayersDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if !strings.HasSuffix(result.OutputPath, "myapp_latest.tar.gz") {
		t.Fatalf("unexpected output path %s", result.OutputPath)
	}

	f, err := os.Open(result.OutputPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("output is not gzip: %v", err)
	}
	defer gz.Close()

	entries := readTarEntries(t, gz)
	if !entries["launch.json"] {
		t.Error("launch.json missing from tarball")
	}
	if !entries["layers/ruby/bin/ruby"] {
		t.Errorf("launch layer file missing from tarball: %v", entries)
	}
	for name := range entries {
		if strings.HasPrefix(name, "layers/bundler") {
			t.Errorf("build-only layer leaked into tarball: %s", name)
		}
		if strings.HasSuffix(name, ".metadata.json") || strings.HasSuffix(name, ".env.json") {
			t.Errorf("store record leaked into tarball: %s", name)
		}
	}
}

func TestTarExportZstd(t *testing.T) {
	result, config := writeTestLayers(t)
	config.Compression = "zstd"

	exporter := &TarExporter{}
	if err := exporter.Export(result, config, config.LayersDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if !strings.HasSuffix(result.OutputPath, ".tar.zst") {
		t.Fatalf("unexpected output path %s", result.OutputPath)
	}

	f, err := os.Open(result.OutputPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("output is not zstd: %v", err)
	}
	defer zr.Close()

	entries := readTarEntries(t, zr)
	if !entries["layers/ruby/bin/ruby"] {
		t.Errorf("launch layer file missing from tarball: %v", entries)
	}
}

func TestTarExportUncompressed(t *testing.T) {
	result, config := writeTestLayers(t)
	config.Compression = "none"

	exporter := &TarExporter{}
	if err := exporter.Export(result, config, config.LayersDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if !strings.HasSuffix(result.OutputPath, "myapp_latest.tar") {
		t.Fatalf("unexpected output path %s", result.OutputPath)
	}

	f, err := os.Open(result.OutputPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	entries := readTarEntries(t, f)
	if !entries["launch.json"] {
		t.Error("launch.json missing from tarball")
	}
}

func TestTarExportUnsupportedCompression(t *testing.T) {
	result, config := writeTestLayers(t)
	config.Compression = "lzma"

	exporter := &TarExporter{}
	if err := exporter.Export(result, config, config.LayersDir); err == nil {
		t.Fatal("expected error for unsupported compression")
	}
}
