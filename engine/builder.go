package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/exporters"
	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/types"
	"github.com/strataforge/strata/layers"
)

// Builder drives one build: it detects a buildpack, runs its declared layer
// sequence through the layer manager, composes the build- and launch-scope
// environment views, and hands the result to an exporter.
type Builder struct {
	config   *types.BuildConfig
	store    *layers.Store
	manager  *layers.Manager
	exporter exporters.Exporter
	log      *logrus.Logger
}

// NewBuilder prepares a Builder for the given configuration, applying
// defaults for the layers directory and output exporter.
func NewBuilder(config *types.BuildConfig) (*Builder, error) {
	if config.AppDir == "" {
		return nil, errors.NewConfig("app directory is required", nil)
	}

	if config.LayersDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %v", err)
		}
		config.LayersDir = filepath.Join(homeDir, ".strata", "layers")
	}
	if config.Output == "" {
		config.Output = "local"
	}

	if config.NoCache {
		if err := os.RemoveAll(config.LayersDir); err != nil {
			return nil, fmt.Errorf("failed to clear layers directory: %v", err)
		}
	}

	store, err := layers.NewStore(config.LayersDir)
	if err != nil {
		return nil, err
	}

	exporter, err := exporters.GetExporter(config.Output)
	if err != nil {
		return nil, errors.NewConfig("unknown output", err)
	}

	log := logrus.StandardLogger()
	return &Builder{
		config:   config,
		store:    store,
		manager:  layers.NewManager(store, log),
		exporter: exporter,
		log:      log,
	}, nil
}

// Store exposes the layer store for inspection commands.
func (b *Builder) Store() *layers.Store {
	return b.store
}

// Build runs the full pipeline. The first failing layer operation aborts
// the build; no partial launch configuration is produced.
func (b *Builder) Build() (*types.BuildResult, error) {
	start := time.Now()

	project, err := types.LoadProjectConfig(b.config.AppDir)
	if err != nil {
		return nil, err
	}

	bp, ok := DetectBuildpack(b.config.AppDir)
	if !ok {
		return nil, errors.NewDetect(
			fmt.Sprintf("no buildpack recognizes %s", b.config.AppDir), nil)
	}
	b.log.WithField("buildpack", bp.Name()).Info("Detected buildpack")

	sequence, processes, err := bp.Sequence(b.config, project)
	if err != nil {
		return nil, err
	}
	if len(project.Processes) > 0 {
		processes = project.Processes
	}

	// Build env layering: host environ, then strata.yaml env, then flag
	// overrides. Later wins.
	baseEnv := env.FromEnviron(os.Environ())
	for k, v := range project.Env {
		baseEnv = baseEnv.WithVar(k, v)
	}
	for k, v := range b.config.Env {
		baseEnv = baseEnv.WithVar(k, v)
	}

	ctx := &layers.Context{
		AppDir:    b.config.AppDir,
		LayersDir: b.config.LayersDir,
		Stack:     b.config.Stack,
		Env:       baseEnv,
	}

	result := &types.BuildResult{CreatedAt: start}
	handledLayers := make([]*layers.Handled, 0, len(sequence))

	for i, entry := range sequence {
		b.log.WithFields(logrus.Fields{
			"layer": entry.Name.String(),
			"step":  fmt.Sprintf("%d/%d", i+1, len(sequence)),
		}).Info("Handling layer")

		handled, err := b.manager.Handle(ctx, entry.Name, entry.Layer)
		if err != nil {
			result.Error = err.Error()
			return result, err
		}

		handledLayers = append(handledLayers, handled)
		result.Layers = append(result.Layers, types.LayerSummary{
			Name:     handled.Name.String(),
			Path:     handled.Path,
			Decision: string(handled.Decision),
			Build:    handled.Types.Build,
			Launch:   handled.Types.Launch,
			Cache:    handled.Types.Cache,
		})
		if handled.Decision == layers.DecisionReused {
			result.Reused++
		}
	}

	// The launch view is what gets baked into exported artifacts, so it
	// starts from the app's declared env rather than the build host's
	// environ. Only the build view sees the host environment.
	launchEnv := env.FromMap(project.Env)
	for _, handled := range handledLayers {
		if handled.Types.Launch {
			launchEnv = handled.Env.Apply(env.ScopeLaunch, launchEnv)
		}
	}

	result.BuildEnv = ctx.Env.Map()
	result.LaunchEnv = launchEnv.Map()
	result.Processes = processes

	if err := b.exporter.Export(result, b.config, b.config.LayersDir); err != nil {
		result.Error = err.Error()
		return result, err
	}

	result.Success = true
	result.Duration = time.Since(start).String()

	b.log.WithFields(logrus.Fields{
		"duration": result.Duration,
		"reused":   fmt.Sprintf("%d/%d", result.Reused, len(sequence)),
	}).Info("Build completed")

	return result, nil
}
