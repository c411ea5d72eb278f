// Package exporters turns a finished build into a consumable artifact.
// Each exporter packages the launch layers and the composed launch
// environment in a different shape: a plain directory, a compressed
// tarball, or an OCI image.
package exporters

import (
	"fmt"
	"sort"

	"github.com/strataforge/strata/internal/types"
)

type Exporter interface {
	Export(result *types.BuildResult, config *types.BuildConfig, layersDir string) error
}

var exporters = make(map[string]Exporter)

func RegisterExporter(name string, exporter Exporter) {
	exporters[name] = exporter
}

func GetExporter(name string) (Exporter, error) {
	exporter, exists := exporters[name]
	if !exists {
		return nil, fmt.Errorf("exporter %s not found", name)
	}
	return exporter, nil
}

func ListExporters() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// launchLayers filters the build result down to the layers flagged for
// launch. Only these contribute content to exported artifacts.
func launchLayers(result *types.BuildResult) []types.LayerSummary {
	var out []types.LayerSummary
	for _, l := range result.Layers {
		if l.Launch {
			out = append(out, l)
		}
	}
	return out
}

// artifactName derives the base name of the exported artifact from the
// first tag, with characters that do not survive in file names replaced.
func artifactName(config *types.BuildConfig) string {
	if len(config.Tags) == 0 {
		return "app"
	}
	name := config.Tags[0]
	sanitized := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', ':':
			sanitized = append(sanitized, '_')
		default:
			sanitized = append(sanitized, r)
		}
	}
	return string(sanitized)
}
