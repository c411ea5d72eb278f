package env

import (
	"fmt"
	"sort"
	"strings"
)

// Env is an immutable snapshot of environment variables. Operations that
// change an Env return a new value; the receiver is never modified, so a
// snapshot handed to one build layer can never be altered by a later one.
type Env struct {
	vars map[string]string
}

// NewEnv creates an empty Env.
func NewEnv() Env {
	return Env{vars: map[string]string{}}
}

// FromMap creates an Env from a plain map. The map is copied.
func FromMap(vars map[string]string) Env {
	e := Env{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		e.vars[k] = v
	}
	return e
}

// FromEnviron creates an Env from "key=value" entries as returned by
// os.Environ. Malformed entries without a '=' are skipped.
func FromEnviron(environ []string) Env {
	e := Env{vars: make(map[string]string, len(environ))}
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		e.vars[key] = value
	}
	return e
}

// Get returns the value for key and whether it is set.
func (e Env) Get(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// WithVar returns a copy of the Env with key set to value.
func (e Env) WithVar(key, value string) Env {
	out := make(map[string]string, len(e.vars)+1)
	for k, v := range e.vars {
		out[k] = v
	}
	out[key] = value
	return Env{vars: out}
}

// Len returns the number of variables in the Env.
func (e Env) Len() int {
	return len(e.vars)
}

// Environ returns the Env as sorted "key=value" entries suitable for
// exec.Cmd.Env.
func (e Env) Environ() []string {
	entries := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		entries = append(entries, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(entries)
	return entries
}

// Map returns a copy of the Env as a plain map.
func (e Env) Map() map[string]string {
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}
