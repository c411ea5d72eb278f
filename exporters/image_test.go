package exporters

import (
	"archive/tar"
	"io"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

func TestImageExportWritesLoadableTarball(t *testing.T) {
	result, config := writeTestLayers(t)

	exporter := &ImageExporter{}
	if err := exporter.Export(result, config, config.LayersDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if !strings.HasSuffix(result.OutputPath, "myapp_latest.oci.tar") {
		t.Fatalf("unexpected output path %s", result.OutputPath)
	}

	tag, err := name.NewTag("myapp:latest")
	if err != nil {
		t.Fatalf("failed to parse tag: %v", err)
	}

	image, err := tarball.ImageFromPath(result.OutputPath, &tag)
	if err != nil {
		t.Fatalf("output is not a loadable image tarball: %v", err)
	}

	imageLayers, err := image.Layers()
	if err != nil {
		t.Fatalf("failed to read image layers: %v", err)
	}
	if len(imageLayers) != 1 {
		t.Fatalf("expected 1 image layer for 1 launch layer, got %d", len(imageLayers))
	}
}

func TestImageExportBakesConfig(t *testing.T) {
	result, config := writeTestLayers(t)

	exporter := &ImageExporter{}
	if err := exporter.Export(result, config, config.LayersDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	tag, err := name.NewTag("myapp:latest")
	if err != nil {
		t.Fatalf("failed to parse tag: %v", err)
	}
	image, err := tarball.ImageFromPath(result.OutputPath, &tag)
	if err != nil {
		t.Fatalf("failed to load image: %v", err)
	}

	configFile, err := image.ConfigFile()
	if err != nil {
		t.Fatalf("failed to read image config: %v", err)
	}

	if configFile.OS != "linux" || configFile.Architecture != "amd64" {
		t.Errorf("unexpected platform %s/%s", configFile.OS, configFile.Architecture)
	}

	envSet := make(map[string]bool)
	for _, e := range configFile.Config.Env {
		envSet[e] = true
	}
	if !envSet["RAILS_ENV=production"] {
		t.Errorf("launch env missing from image config: %v", configFile.Config.Env)
	}
	if !envSet["PATH=/layers/ruby/bin"] {
		t.Errorf("PATH missing from image config: %v", configFile.Config.Env)
	}

	wantCmd := []string{"bundle", "exec", "rackup"}
	if len(configFile.Config.Cmd) != len(wantCmd) {
		t.Fatalf("unexpected cmd %v", configFile.Config.Cmd)
	}
	for i, arg := range wantCmd {
		if configFile.Config.Cmd[i] != arg {
			t.Fatalf("unexpected cmd %v, want %v", configFile.Config.Cmd, wantCmd)
		}
	}
}

func TestImageExportLayerPaths(t *testing.T) {
	result, config := writeTestLayers(t)

	exporter := &ImageExporter{}
	if err := exporter.Export(result, config, config.LayersDir); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	tag, err := name.NewTag("myapp:latest")
	if err != nil {
		t.Fatalf("failed to parse tag: %v", err)
	}
	image, err := tarball.ImageFromPath(result.OutputPath, &tag)
	if err != nil {
		t.Fatalf("failed to load image: %v", err)
	}

	imageLayers, err := image.Layers()
	if err != nil {
		t.Fatalf("failed to read image layers: %v", err)
	}

	rc, err := imageLayers[0].Uncompressed()
	if err != nil {
		t.Fatalf("failed to open layer content: %v", err)
	}
	defer rc.Close()

	found := false
	tr := tar.NewReader(rc)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read layer tar: %v", err)
		}
		if header.Name == "layers/ruby/bin/ruby" {
			found = true
		}
		if strings.HasSuffix(header.Name, ".metadata.json") {
			t.Errorf("store record leaked into image layer: %s", header.Name)
		}
	}
	if !found {
		t.Error("layer content not rooted at layers/ruby")
	}
}

func TestImageExportInvalidTag(t *testing.T) {
	result, config := writeTestLayers(t)
	config.Tags = []string{"UPPER CASE bad tag"}

	exporter := &ImageExporter{}
	if err := exporter.Export(result, config, config.LayersDir); err == nil {
		t.Fatal("expected error for invalid image tag")
	}
}
