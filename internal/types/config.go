package types

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/strataforge/strata/internal/errors"
)

// ProjectFile is the optional per-application configuration read from the
// app directory.
const ProjectFile = "strata.yaml"

// ProjectConfig is what an application may declare in strata.yaml: extra
// default environment variables and its launch processes. Everything is
// optional; a project without the file builds with stack defaults.
type ProjectConfig struct {
	Env       map[string]string `yaml:"env,omitempty"`
	Processes []Process         `yaml:"processes,omitempty"`
}

// LoadProjectConfig reads strata.yaml from the app directory. A missing
// file yields an empty config; an unreadable or malformed file is a config
// error.
func LoadProjectConfig(appDir string) (*ProjectConfig, error) {
	path := filepath.Join(appDir, ProjectFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ProjectConfig{}, nil
	}
	if err != nil {
		return nil, errors.NewConfig("reading "+ProjectFile, err)
	}

	var config ProjectConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewConfig("parsing "+ProjectFile, err)
	}

	for i, p := range config.Processes {
		if p.Type == "" || p.Command == "" {
			return nil, errors.NewConfig(
				"parsing "+ProjectFile,
				&invalidProcessError{index: i})
		}
	}
	return &config, nil
}

type invalidProcessError struct {
	index int
}

func (e *invalidProcessError) Error() string {
	return fmt.Sprintf("process entry %d requires both type and command", e.index)
}
