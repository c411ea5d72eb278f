package engine

import (
	"fmt"

	"github.com/strataforge/strata/internal/types"
	"github.com/strataforge/strata/layers"
)

// NamedLayer pairs a layer with the name it is handled under. Sequence order
// is execution order.
type NamedLayer struct {
	Name  layers.Name
	Layer layers.Layer
}

// Buildpack supplies the application-specific collaborators the engine
// drives: whether a project qualifies, which layers to run in which order,
// and which processes the finished artifact launches.
type Buildpack interface {
	Name() string

	// Detect reports whether the app directory qualifies for this buildpack.
	Detect(appDir string) bool

	// Sequence declares the ordered layers and launch processes for one
	// build. It runs before any layer and must not touch the layers dir.
	Sequence(config *types.BuildConfig, project *types.ProjectConfig) ([]NamedLayer, []types.Process, error)
}

var (
	buildpacks     = make(map[string]Buildpack)
	buildpackOrder []string
)

// RegisterBuildpack makes a buildpack available to the builder. Detection
// tries buildpacks in registration order.
func RegisterBuildpack(bp Buildpack) {
	if _, exists := buildpacks[bp.Name()]; !exists {
		buildpackOrder = append(buildpackOrder, bp.Name())
	}
	buildpacks[bp.Name()] = bp
}

// GetBuildpack returns a registered buildpack by name.
func GetBuildpack(name string) (Buildpack, error) {
	bp, exists := buildpacks[name]
	if !exists {
		return nil, fmt.Errorf("buildpack %s not found", name)
	}
	return bp, nil
}

// DetectBuildpack returns the first registered buildpack whose Detect
// accepts the app directory.
func DetectBuildpack(appDir string) (Buildpack, bool) {
	for _, name := range buildpackOrder {
		if bp := buildpacks[name]; bp.Detect(appDir) {
			return bp, true
		}
	}
	return nil, false
}

// ListBuildpacks returns the names of registered buildpacks in registration
// order.
func ListBuildpacks() []string {
	names := make([]string, len(buildpackOrder))
	copy(names, buildpackOrder)
	return names
}
