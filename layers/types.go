package layers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/strataforge/strata/env"
	"github.com/strataforge/strata/internal/errors"
)

// Name identifies a layer within one build. It doubles as the layer's
// directory name under the layers root, so the character set is restricted
// to names that are safe on disk.
type Name string

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ParseName validates a layer name.
func ParseName(s string) (Name, error) {
	if s == "" {
		return "", errors.NewInvalidName(s, "layer name must not be empty")
	}
	if s == "." || s == ".." {
		return "", errors.NewInvalidName(s, "layer name must not be a path component")
	}
	if !namePattern.MatchString(s) {
		return "", errors.NewInvalidName(s, "layer name may only contain letters, digits, '.', '_' and '-'")
	}
	return Name(s), nil
}

func (n Name) String() string {
	return string(n)
}

// Types declares how a layer's output is used. A layer whose Cache flag is
// false never participates in the reuse decision and is recreated on every
// build.
type Types struct {
	Build  bool `json:"build"`
	Launch bool `json:"launch"`
	Cache  bool `json:"cache"`
}

// Metadata is the implementer-defined record a layer persists next to its
// files. It drives the reuse decision through structural comparison.
type Metadata map[string]interface{}

// Equal reports structural equality between two metadata records. Records
// are compared through their canonical JSON encoding so that a freshly
// computed record and one read back from disk compare equal even when Go
// assigns them different in-memory number types.
func (m Metadata) Equal(other Metadata) bool {
	a, err := json.Marshal(m)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Strategy is the outcome of the reuse decision for an existing layer.
type Strategy int

const (
	// StrategyKeep reuses the existing directory and metadata untouched.
	StrategyKeep Strategy = iota
	// StrategyUpdate runs the layer's Update operation against the existing
	// directory.
	StrategyUpdate
	// StrategyRecreate deletes the existing directory and metadata, then
	// runs Create.
	StrategyRecreate
)

func (s Strategy) String() string {
	switch s {
	case StrategyKeep:
		return "keep"
	case StrategyUpdate:
		return "update"
	case StrategyRecreate:
		return "recreate"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Context carries the per-build inputs a layer's operations may read. Env is
// the build-scope environment snapshot as of this layer; the Manager folds
// each handled layer's build contribution into it before the next layer runs.
type Context struct {
	AppDir    string
	LayersDir string
	Stack     string
	Env       env.Env
}

// Result is what a layer's Create or Update operation hands back to the
// Manager: the metadata to persist and the environment modifications the
// layer contributes. The modification list is immutable once returned.
type Result struct {
	Metadata Metadata
	Env      env.LayerEnv
}

// Existing describes a previously persisted layer passed to Update and
// ExistingLayerStrategy.
type Existing struct {
	Path     string
	Metadata Metadata
}

// Layer is a named unit of build work. Implementations perform the actual
// installation or computation; the Manager only decides whether and how they
// run.
type Layer interface {
	// LayerTypes is consulted first to decide caching eligibility.
	LayerTypes() Types

	// DesiredMetadata cheaply computes the record this layer's output should
	// carry, given only the layer's declared inputs. It must not touch the
	// layer directory.
	DesiredMetadata() Metadata

	// Create populates a fresh layer directory. Any underlying I/O or
	// subprocess failure aborts the build.
	Create(ctx *Context, layerPath string) (*Result, error)
}

// Updater is implemented by layers that can refresh an existing directory
// incrementally instead of rebuilding it. Layers without it are recreated on
// any metadata mismatch.
type Updater interface {
	Update(ctx *Context, existing *Existing) (*Result, error)
}

// Strategist is implemented by layers that refine the reuse decision beyond
// plain structural metadata equality.
type Strategist interface {
	ExistingLayerStrategy(ctx *Context, existing *Existing) (Strategy, error)
}

// Decision records which lifecycle path a handled layer took.
type Decision string

const (
	DecisionCreated Decision = "created"
	DecisionUpdated Decision = "updated"
	DecisionReused  Decision = "reused"
)

// Handled is the resolved state of a layer after Manager.Handle.
type Handled struct {
	Name     Name
	Path     string
	Types    Types
	Metadata Metadata
	Env      env.LayerEnv
	Decision Decision
}
