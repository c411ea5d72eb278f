package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/strataforge/strata/engine"
	"github.com/strataforge/strata/exporters"
	"github.com/strataforge/strata/internal/types"
	"github.com/strataforge/strata/layers"
	_ "github.com/strataforge/strata/ruby"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "strata",
		Short: "Strata - a layer-caching application builder",
		Long: `Strata builds applications into runnable artifacts through cached layers.
Each build step owns a layer directory that is kept, updated in place, or
recreated depending on whether its recorded inputs still match, so
unchanged steps cost nothing on rebuilds.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newLayersCommand())

	return cmd
}

func defaultLayersDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}
	return filepath.Join(homeDir, ".strata", "layers"), nil
}

func newBuildCommand() *cobra.Command {
	var (
		tags        []string
		output      string
		outputDir   string
		compression string
		layersDir   string
		stack       string
		platform    string
		noCache     bool
		envVars     []string
	)

	cmd := &cobra.Command{
		Use:   "build [app-dir]",
		Short: "Build an application directory into a runnable artifact",
		Long: `Build an application directory. The directory is matched against the
registered buildpacks; the first one that recognizes it declares the layer
sequence to run. Output formats: ` + strings.Join(exporters.ListExporters(), ", ") + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appDir := "."
			if len(args) > 0 {
				appDir = args[0]
			}

			absAppDir, err := filepath.Abs(appDir)
			if err != nil {
				return fmt.Errorf("failed to resolve app directory: %v", err)
			}
			if _, err := os.Stat(absAppDir); os.IsNotExist(err) {
				return fmt.Errorf("app directory does not exist: %s", absAppDir)
			}

			envMap := make(map[string]string)
			for _, e := range envVars {
				parts := strings.SplitN(e, "=", 2)
				if len(parts) == 2 {
					envMap[parts[0]] = parts[1]
				} else {
					envMap[parts[0]] = ""
				}
			}

			config := &types.BuildConfig{
				AppDir:      absAppDir,
				LayersDir:   layersDir,
				Stack:       stack,
				Output:      output,
				OutputDir:   outputDir,
				Compression: compression,
				Tags:        tags,
				Platform:    types.ParsePlatform(platform),
				NoCache:     noCache,
				Env:         envMap,
			}

			builder, err := engine.NewBuilder(config)
			if err != nil {
				return fmt.Errorf("failed to create builder: %v", err)
			}

			result, err := builder.Build()
			if err != nil {
				return fmt.Errorf("build failed: %v", err)
			}

			fmt.Printf("Build completed successfully!\n")
			for _, layer := range result.Layers {
				fmt.Printf("  %-20s %s\n", layer.Name, layer.Decision)
			}
			fmt.Printf("Layers reused: %d/%d\n", result.Reused, len(result.Layers))
			if result.OutputPath != "" {
				fmt.Printf("Output: %s\n", result.OutputPath)
			}
			fmt.Printf("Duration: %s\n", result.Duration)

			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&tags, "tag", "t", []string{}, "Name and optionally a tag in the 'name:tag' format")
	cmd.Flags().StringVarP(&output, "output", "o", "local", "Output type ("+strings.Join(exporters.ListExporters(), ", ")+")")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory to write the artifact into (default: ./output)")
	cmd.Flags().StringVar(&compression, "compression", "", "Tar output compression (gzip, zstd, none)")
	cmd.Flags().StringVar(&layersDir, "layers-dir", "", "Layer cache directory (default: ~/.strata/layers)")
	cmd.Flags().StringVar(&stack, "stack", "heroku-22", "Stack identifier for prebuilt binaries")
	cmd.Flags().StringVar(&platform, "platform", types.GetHostPlatform().String(), "Target platform (e.g., linux/amd64)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Discard all cached layers before building")
	cmd.Flags().StringArrayVarP(&envVars, "env", "e", []string{}, "Build environment overrides in KEY=VALUE format")

	return cmd
}

func newLayersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Manage the layer cache",
		Long:  "Commands for inspecting and clearing cached layers.",
	}

	cmd.AddCommand(newLayersListCommand())
	cmd.AddCommand(newLayersClearCommand())

	return cmd
}

func newLayersListCommand() *cobra.Command {
	var layersDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached layers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if layersDir == "" {
				var err error
				layersDir, err = defaultLayersDir()
				if err != nil {
					return err
				}
			}

			store, err := layers.NewStore(layersDir)
			if err != nil {
				return fmt.Errorf("failed to open layer store: %v", err)
			}

			names, err := store.List()
			if err != nil {
				return fmt.Errorf("failed to list layers: %v", err)
			}
			if len(names) == 0 {
				fmt.Printf("No cached layers in %s\n", layersDir)
				return nil
			}

			fmt.Printf("Cached layers in %s:\n", layersDir)
			for _, name := range names {
				metadata, err := store.LoadMetadata(name)
				if err != nil {
					fmt.Printf("  %-20s (corrupt metadata)\n", name)
					continue
				}
				fmt.Printf("  %-20s %s\n", name, summarizeMetadata(metadata))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&layersDir, "layers-dir", "", "Layer cache directory (default: ~/.strata/layers)")

	return cmd
}

func newLayersClearCommand() *cobra.Command {
	var layersDir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached layers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if layersDir == "" {
				var err error
				layersDir, err = defaultLayersDir()
				if err != nil {
					return err
				}
			}

			if err := os.RemoveAll(layersDir); err != nil {
				return fmt.Errorf("failed to clear layers: %v", err)
			}

			fmt.Printf("Cleared layer cache at %s\n", layersDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&layersDir, "layers-dir", "", "Layer cache directory (default: ~/.strata/layers)")

	return cmd
}

func summarizeMetadata(metadata layers.Metadata) string {
	if len(metadata) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(metadata))
	for k, v := range metadata {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}
