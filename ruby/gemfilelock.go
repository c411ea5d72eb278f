package ruby

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/strataforge/strata/internal/errors"
)

// Versions the stack provides when the lock file does not pin them.
const (
	DefaultRubyVersion    = "3.1.2"
	DefaultBundlerVersion = "2.3.7"
)

// GemfileLock holds the subset of Gemfile.lock this buildpack needs: which
// ruby and which bundler to install. Explicit reports whether the value came
// from the lock file or from the stack default.
type GemfileLock struct {
	RubyVersion     string
	RubyExplicit    bool
	BundlerVersion  string
	BundlerExplicit bool
}

var rubyVersionPattern = regexp.MustCompile(`^ruby (\d+\.\d+\.\d+)`)

// ParseGemfileLock extracts ruby and bundler versions from Gemfile.lock
// contents. The RUBY VERSION section carries a line like "ruby 3.1.2p20";
// the BUNDLED WITH section carries a bare version on the following line.
// Missing sections fall back to the stack defaults.
func ParseGemfileLock(content string) GemfileLock {
	lock := GemfileLock{
		RubyVersion:    DefaultRubyVersion,
		BundlerVersion: DefaultBundlerVersion,
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case "RUBY VERSION":
			if i+1 < len(lines) {
				if m := rubyVersionPattern.FindStringSubmatch(strings.TrimSpace(lines[i+1])); m != nil {
					lock.RubyVersion = m[1]
					lock.RubyExplicit = true
				}
			}
		case "BUNDLED WITH":
			if i+1 < len(lines) {
				if v := strings.TrimSpace(lines[i+1]); v != "" {
					lock.BundlerVersion = v
					lock.BundlerExplicit = true
				}
			}
		}
	}
	return lock
}

// ReadGemfileLock parses the Gemfile.lock inside an application directory.
func ReadGemfileLock(appDir string) (GemfileLock, error) {
	data, err := os.ReadFile(filepath.Join(appDir, "Gemfile.lock"))
	if err != nil {
		return GemfileLock{}, errors.NewDetect("reading Gemfile.lock", err)
	}
	return ParseGemfileLock(string(data)), nil
}

// Detect reports whether an application directory qualifies for this
// buildpack: a Gemfile.lock must be present.
func Detect(appDir string) bool {
	_, err := os.Stat(filepath.Join(appDir, "Gemfile.lock"))
	return err == nil
}
