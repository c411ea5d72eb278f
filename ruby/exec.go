package ruby

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes external commands with an explicit environment. Layers
// depend on this interface so tests can substitute a recorder; the build
// never inherits the ambient process environment.
type Runner interface {
	Run(name string, args []string, environ []string) error

	// Capture runs the command and returns its stdout. Stderr still goes
	// to the build log.
	Capture(name string, args []string, environ []string) (string, error)
}

// ExecRunner runs commands through os/exec, streaming output to the build
// log.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args []string, environ []string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = environ
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %v", name, strings.Join(args, " "), err)
	}
	return nil
}

func (ExecRunner) Capture(name string, args []string, environ []string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = environ
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %v", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}
