package types

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

type Platform struct {
	OS           string `json:"os" yaml:"os"`
	Architecture string `json:"architecture" yaml:"architecture"`
	Variant      string `json:"variant,omitempty" yaml:"variant,omitempty"`
}

func (p Platform) String() string {
	if p.Variant != "" {
		return fmt.Sprintf("%s/%s/%s", p.OS, p.Architecture, p.Variant)
	}
	return fmt.Sprintf("%s/%s", p.OS, p.Architecture)
}

func ParsePlatform(platform string) Platform {
	parts := strings.Split(platform, "/")
	if len(parts) < 2 {
		return Platform{OS: "linux", Architecture: "amd64"}
	}

	p := Platform{
		OS:           parts[0],
		Architecture: parts[1],
	}
	if len(parts) > 2 {
		p.Variant = parts[2]
	}
	return p
}

func GetHostPlatform() Platform {
	return Platform{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
}

// Process is one launchable process declared by the build, handed back to
// the driver that assembles the runnable artifact.
type Process struct {
	Type    string   `json:"type" yaml:"type"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Default bool     `json:"default,omitempty" yaml:"default,omitempty"`
}

// BuildConfig configures one build invocation.
type BuildConfig struct {
	AppDir      string            `json:"app_dir"`
	LayersDir   string            `json:"layers_dir"`
	Stack       string            `json:"stack"`
	Output      string            `json:"output"`
	OutputDir   string            `json:"output_dir"`
	Compression string            `json:"compression,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Platform    Platform          `json:"platform"`
	NoCache     bool              `json:"no_cache"`
	Env         map[string]string `json:"env,omitempty"`
	Processes   []Process         `json:"processes,omitempty"`
}

// LayerSummary describes one resolved layer in a BuildResult.
type LayerSummary struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Decision string `json:"decision"`
	Build    bool   `json:"build"`
	Launch   bool   `json:"launch"`
	Cache    bool   `json:"cache"`
}

// BuildResult is the outcome of one build invocation: the resolved layers,
// the composed build- and launch-scope environment views, and the declared
// launch processes.
type BuildResult struct {
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Layers     []LayerSummary    `json:"layers"`
	Reused     int               `json:"reused"`
	BuildEnv   map[string]string `json:"build_env,omitempty"`
	LaunchEnv  map[string]string `json:"launch_env,omitempty"`
	Processes  []Process         `json:"processes,omitempty"`
	Duration   string            `json:"duration,omitempty"`
	OutputPath string            `json:"output_path,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// DefaultProcess returns the process marked default, or the first declared
// process when none is marked.
func (r *BuildResult) DefaultProcess() *Process {
	for i := range r.Processes {
		if r.Processes[i].Default {
			return &r.Processes[i]
		}
	}
	if len(r.Processes) > 0 {
		return &r.Processes[0]
	}
	return nil
}
