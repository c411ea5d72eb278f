package layers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/internal/errors"
)

// Record files persisted inside each layer directory. Exporters skip them
// when packaging layer contents.
const (
	MetadataFile = ".metadata.json"
	EnvFile      = ".env.json"
)

// IsRecordFile reports whether a file name is one of the store's own
// records rather than layer-produced content.
func IsRecordFile(name string) bool {
	return name == MetadataFile || name == EnvFile
}

// Store persists per-layer metadata records and environment modification
// lists under a layers root directory. Each layer owns one directory named
// after it; the records live inside that directory next to the layer's own
// files, so a later build invocation can read them back.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create layers directory: %v", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the layers root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the on-disk directory for a layer.
func (s *Store) Path(name Name) string {
	return filepath.Join(s.root, name.String())
}

// HasLayer reports whether a layer directory with a metadata record exists.
func (s *Store) HasLayer(name Name) bool {
	info, err := os.Stat(s.Path(name))
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(s.Path(name), MetadataFile))
	return err == nil
}

// LoadMetadata reads a layer's persisted metadata record. A missing record
// returns (nil, nil); a record that exists but cannot be deserialized
// returns a metadata_corrupt error the caller treats as a cache miss.
func (s *Store) LoadMetadata(name Name) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Path(name), MetadataFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewMetadataCorrupt(name.String(), err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, errors.NewMetadataCorrupt(name.String(), err)
	}
	return md, nil
}

// StoreMetadata writes a layer's metadata record, creating the layer
// directory if needed.
func (s *Store) StoreMetadata(name Name, md Metadata) error {
	if err := os.MkdirAll(s.Path(name), 0755); err != nil {
		return fmt.Errorf("failed to create layer directory: %v", err)
	}

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %v", err)
	}
	return os.WriteFile(filepath.Join(s.Path(name), MetadataFile), data, 0644)
}

// LoadEnv reads a layer's persisted environment modification list. A missing
// or unreadable record yields an empty list; a reused layer without one
// simply contributes nothing.
func (s *Store) LoadEnv(name Name) env.LayerEnv {
	data, err := os.ReadFile(filepath.Join(s.Path(name), EnvFile))
	if err != nil {
		return env.NewLayerEnv()
	}

	var mods []env.Modification
	if err := json.Unmarshal(data, &mods); err != nil {
		return env.NewLayerEnv()
	}
	return env.FromModifications(mods)
}

// StoreEnv writes a layer's environment modification list.
func (s *Store) StoreEnv(name Name, le env.LayerEnv) error {
	if err := os.MkdirAll(s.Path(name), 0755); err != nil {
		return fmt.Errorf("failed to create layer directory: %v", err)
	}

	data, err := json.MarshalIndent(le.Modifications(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize env modifications: %v", err)
	}
	return os.WriteFile(filepath.Join(s.Path(name), EnvFile), data, 0644)
}

// Remove deletes a layer's directory together with its records.
func (s *Store) Remove(name Name) error {
	return os.RemoveAll(s.Path(name))
}

// List returns the names of layers that currently have directories, sorted
// for stable output.
func (s *Store) List() ([]Name, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var names []Name
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, err := ParseName(entry.Name())
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}
