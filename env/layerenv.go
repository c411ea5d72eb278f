package env

import "fmt"

// Scope controls which build stages see a modification.
type Scope string

const (
	ScopeBuild  Scope = "build"  // visible to subsequent build steps only
	ScopeLaunch Scope = "launch" // visible to the launched process only
	ScopeAll    Scope = "all"    // visible to both
)

// Behavior selects the merge semantics of a modification.
type Behavior string

const (
	BehaviorOverride  Behavior = "override"
	BehaviorDefault   Behavior = "default"
	BehaviorPrepend   Behavior = "prepend"
	BehaviorAppend    Behavior = "append"
	BehaviorDelimiter Behavior = "delim"
)

// Delimiter used for Prepend/Append when no BehaviorDelimiter entry precedes
// them for the same key.
const fallbackDelimiter = " "

// Modification is a single scoped environment change.
type Modification struct {
	Scope    Scope    `json:"scope"`
	Behavior Behavior `json:"behavior"`
	Key      string   `json:"key"`
	Value    string   `json:"value"`
}

// InScope reports whether the modification applies when composing for the
// given stage scope. Entries tagged ScopeAll apply everywhere.
func (m Modification) InScope(scope Scope) bool {
	return m.Scope == ScopeAll || scope == ScopeAll || m.Scope == scope
}

// LayerEnv is an ordered, immutable list of environment modifications
// produced by a layer. Insert returns a new LayerEnv; existing values are
// never mutated, so a LayerEnv returned to the manager is safe to retain.
//
// Order is insertion order and is significant: applying A then B equals
// applying the concatenation of A and B.
type LayerEnv struct {
	mods []Modification
}

// NewLayerEnv creates an empty LayerEnv.
func NewLayerEnv() LayerEnv {
	return LayerEnv{}
}

// FromModifications creates a LayerEnv from an explicit modification list.
// The slice is copied.
func FromModifications(mods []Modification) LayerEnv {
	out := make([]Modification, len(mods))
	copy(out, mods)
	return LayerEnv{mods: out}
}

// Insert returns a new LayerEnv with the modification appended.
func (le LayerEnv) Insert(scope Scope, behavior Behavior, key, value string) LayerEnv {
	mods := make([]Modification, len(le.mods), len(le.mods)+1)
	copy(mods, le.mods)
	return LayerEnv{mods: append(mods, Modification{
		Scope:    scope,
		Behavior: behavior,
		Key:      key,
		Value:    value,
	})}
}

// Concat returns a new LayerEnv holding le's modifications followed by
// other's.
func (le LayerEnv) Concat(other LayerEnv) LayerEnv {
	mods := make([]Modification, 0, len(le.mods)+len(other.mods))
	mods = append(mods, le.mods...)
	mods = append(mods, other.mods...)
	return LayerEnv{mods: mods}
}

// Modifications returns a copy of the ordered modification list.
func (le LayerEnv) Modifications() []Modification {
	out := make([]Modification, len(le.mods))
	copy(out, le.mods)
	return out
}

// Len returns the number of modifications.
func (le LayerEnv) Len() int {
	return len(le.mods)
}

// Apply composes the modifications in scope onto base and returns the
// resulting Env. The base is never modified.
//
// Entries are processed left to right. Override always sets the key. Default
// sets it only when neither the base nor an earlier entry set it. Delimiter
// records the join string for later Prepend/Append entries on the same key;
// a Prepend/Append with no recorded delimiter falls back to a single space.
// Prepend/Append against an unset key behave like Override.
func (le LayerEnv) Apply(scope Scope, base Env) Env {
	result := base.Map()
	delims := map[string]string{}

	for _, mod := range le.mods {
		if !mod.InScope(scope) {
			continue
		}

		switch mod.Behavior {
		case BehaviorOverride:
			result[mod.Key] = mod.Value
		case BehaviorDefault:
			if _, ok := result[mod.Key]; !ok {
				result[mod.Key] = mod.Value
			}
		case BehaviorDelimiter:
			delims[mod.Key] = mod.Value
		case BehaviorPrepend:
			if existing, ok := result[mod.Key]; ok {
				result[mod.Key] = mod.Value + delimiterFor(delims, mod.Key) + existing
			} else {
				result[mod.Key] = mod.Value
			}
		case BehaviorAppend:
			if existing, ok := result[mod.Key]; ok {
				result[mod.Key] = existing + delimiterFor(delims, mod.Key) + mod.Value
			} else {
				result[mod.Key] = mod.Value
			}
		}
	}

	return FromMap(result)
}

func delimiterFor(delims map[string]string, key string) string {
	if d, ok := delims[key]; ok {
		return d
	}
	return fallbackDelimiter
}

// ParseScope converts a string into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeBuild, ScopeLaunch, ScopeAll:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown scope %q", s)
	}
}

// ParseBehavior converts a string into a Behavior.
func ParseBehavior(s string) (Behavior, error) {
	switch Behavior(s) {
	case BehaviorOverride, BehaviorDefault, BehaviorPrepend, BehaviorAppend, BehaviorDelimiter:
		return Behavior(s), nil
	default:
		return "", fmt.Errorf("unknown behavior %q", s)
	}
}
