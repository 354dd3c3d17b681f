package utils

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const systemPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// StationConsole runs shell commands for the steps and for yip hook stages.
// It satisfies yip's plugins.Console so both share one execution path.
type StationConsole struct{}

func (s StationConsole) Run(cmd string, opts ...func(cmd *exec.Cmd)) (string, error) {
	c := PrepareCommandWithPath(cmd)
	for _, o := range opts {
		o(c)
	}
	Log.Debug().Str("cmd", cmd).Str("dir", c.Dir).Msg("running")
	out, err := c.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("failed to run %s: %w", cmd, err)
	}

	return string(out), nil
}

func (s StationConsole) Start(cmd *exec.Cmd, opts ...func(cmd *exec.Cmd)) error {
	for _, o := range opts {
		o(cmd)
	}
	return cmd.Run()
}

func (s StationConsole) RunTemplate(st []string, template string) error {
	var errs error

	for _, svc := range st {
		out, err := s.Run(fmt.Sprintf(template, svc))
		if err != nil {
			Log.Debug().Str("output", out).Msg("Run template")
			errs = multierror.Append(errs, err)
			continue
		}
	}
	return errs
}

// PrepareCommandWithPath wraps c in a shell with the system sbin dirs on PATH,
// provisioning runs from contexts (cron, rc scripts) with a minimal PATH.
func PrepareCommandWithPath(c string) *exec.Cmd {
	cmd := exec.Command("/bin/sh", "-c", c)
	cmd.Env = os.Environ()
	found := false
	for i, e := range cmd.Env {
		if strings.HasPrefix(e, "PATH=") {
			cmd.Env[i] = e + ":" + systemPath
			found = true
		}
	}
	if !found {
		cmd.Env = append(cmd.Env, "PATH="+systemPath)
	}
	return cmd
}

// InDir runs the command from dir.
func InDir(dir string) func(*exec.Cmd) {
	return func(c *exec.Cmd) {
		c.Dir = dir
	}
}

// WithStdin feeds r to the command standard input.
func WithStdin(r io.Reader) func(*exec.Cmd) {
	return func(c *exec.Cmd) {
		c.Stdin = r
	}
}
