package ruby

import (
	"regexp"
	"strings"
)

// GemList is an application's resolved gem set as reported by `bundle list`.
// Lookups are case-insensitive.
type GemList struct {
	gems map[string]string
}

var gemEntryPattern = regexp.MustCompile(`  \* (\S+) \(([a-zA-Z0-9.]+)\)`)

// ParseGemList parses `bundle list` output. Lines that are not gem entries
// are ignored.
func ParseGemList(output string) GemList {
	gems := map[string]string{}
	for _, m := range gemEntryPattern.FindAllStringSubmatch(output, -1) {
		gems[strings.ToLower(m[1])] = m[2]
	}
	return GemList{gems: gems}
}

// Has reports whether the bundle includes the named gem.
func (g GemList) Has(name string) bool {
	_, ok := g.gems[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// VersionFor returns the resolved version of the named gem.
func (g GemList) VersionFor(name string) (string, bool) {
	v, ok := g.gems[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// Len returns the number of gems in the bundle.
func (g GemList) Len() int {
	return len(g.gems)
}
