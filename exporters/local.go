package exporters

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/strataforge/strata/internal/errors"
	"github.com/strataforge/strata/internal/types"
	"github.com/strataforge/strata/layers"
)

// LocalExporter writes the launch layers and a launch.json manifest into a
// plain directory, plus a small launch script that sets the composed launch
// environment and execs the default process.
type LocalExporter struct{}

func init() {
	RegisterExporter("local", &LocalExporter{})
}

func (e *LocalExporter) Export(result *types.BuildResult, config *types.BuildConfig, layersDir string) error {
	outputRoot := config.OutputDir
	if outputRoot == "" {
		outputRoot = "output"
	}
	outputPath := filepath.Join(outputRoot, artifactName(config))

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return errors.NewExport(fmt.Sprintf("failed to create output directory: %v", err), err)
	}

	for _, layer := range launchLayers(result) {
		dest := filepath.Join(outputPath, "layers", layer.Name)
		if err := e.copyLayer(layer.Path, dest); err != nil {
			return errors.NewExport(fmt.Sprintf("failed to copy layer %s: %v", layer.Name, err), err)
		}
	}

	if err := e.writeManifest(result, config, outputPath); err != nil {
		return errors.NewExport(fmt.Sprintf("failed to write launch manifest: %v", err), err)
	}

	if err := e.writeLaunchScript(result, outputPath); err != nil {
		return errors.NewExport(fmt.Sprintf("failed to write launch script: %v", err), err)
	}

	result.OutputPath = outputPath
	return nil
}

func (e *LocalExporter) copyLayer(layerDir, outputDir string) error {
	return filepath.Walk(layerDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(layerDir, path)
		if err != nil {
			return err
		}

		if relPath == "." {
			return os.MkdirAll(outputDir, info.Mode())
		}

		// Store records are bookkeeping, not layer content.
		if layers.IsRecordFile(filepath.Base(relPath)) {
			return nil
		}

		destPath := filepath.Join(outputDir, relPath)

		if info.IsDir() {
			return os.MkdirAll(destPath, info.Mode())
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
				return err
			}
			return os.Symlink(target, destPath)
		}

		if info.Mode().IsRegular() {
			return e.copyFile(path, destPath, info.Mode())
		}

		return nil
	})
}

func (e *LocalExporter) copyFile(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	destFile, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err = io.Copy(destFile, srcFile); err != nil {
		return err
	}

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	if err := os.Chmod(dest, srcInfo.Mode()); err != nil {
		return err
	}

	return os.Chtimes(dest, srcInfo.ModTime(), srcInfo.ModTime())
}

func (e *LocalExporter) writeManifest(result *types.BuildResult, config *types.BuildConfig, outputPath string) error {
	manifest := map[string]interface{}{
		"version":    "1.0",
		"format":     "local-filesystem",
		"created":    result.CreatedAt,
		"launch_env": result.LaunchEnv,
		"processes":  result.Processes,
		"layers":     launchLayers(result),
	}
	if len(config.Tags) > 0 {
		manifest["image_name"] = config.Tags[0]
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputPath, "launch.json"), data, 0644)
}

func (e *LocalExporter) writeLaunchScript(result *types.BuildResult, outputPath string) error {
	process := result.DefaultProcess()
	if process == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\nset -e\n")

	keys := make([]string, 0, len(result.LaunchEnv))
	for k := range result.LaunchEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "export %s=%s\n", k, shellQuote(result.LaunchEnv[k]))
	}

	fmt.Fprintf(&b, "exec %s", process.Command)
	for _, arg := range process.Args {
		b.WriteString(" " + shellQuote(arg))
	}
	b.WriteString("\n")

	return os.WriteFile(filepath.Join(outputPath, "launch"), []byte(b.String()), 0755)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
