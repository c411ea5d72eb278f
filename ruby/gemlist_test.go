package ruby

import "testing"

const bundleListOutput = `Gems included by the bundle:
  * actionpack (7.0.4)
  * rack (2.2.4)
  * Railties (7.0.4)
`

func TestParseGemList(t *testing.T) {
	list := ParseGemList(bundleListOutput)

	if list.Len() != 3 {
		t.Fatalf("expected 3 gems, got %d", list.Len())
	}
	if !list.Has("rack") {
		t.Error("expected rack to be present")
	}
	if list.Has("rails") {
		t.Error("rails should not be present")
	}
}

func TestGemListCaseInsensitive(t *testing.T) {
	list := ParseGemList(bundleListOutput)

	if !list.Has("RAILTIES") {
		t.Error("lookup should be case-insensitive")
	}
	if !list.Has(" railties ") {
		t.Error("lookup should trim whitespace")
	}
}

func TestGemListVersionFor(t *testing.T) {
	list := ParseGemList(bundleListOutput)

	v, ok := list.VersionFor("actionpack")
	if !ok || v != "7.0.4" {
		t.Errorf("expected actionpack 7.0.4, got %q %v", v, ok)
	}

	if _, ok := list.VersionFor("missing"); ok {
		t.Error("expected missing gem to be absent")
	}
}

func TestParseGemListEmpty(t *testing.T) {
	if ParseGemList("").Len() != 0 {
		t.Error("empty output should produce empty list")
	}
}
