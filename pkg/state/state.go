package state

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	internalUtils "github.com/cosmicwatch/stationcore/internal/utils"
	"github.com/cosmicwatch/stationcore/pkg/op"
	"github.com/cosmicwatch/stationcore/pkg/schema"
	"github.com/hashicorp/go-multierror"
	"github.com/mudler/yip/pkg/plugins"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
)

// State carries what every step needs: the station profile, where files live
// and how commands and downloads happen. The remaining fields are
// observations of the current run only, nothing is read back from an earlier
// run.
type State struct {
	Config  schema.Config
	FS      vfs.FS
	Console plugins.Console
	Fetcher op.Fetcher
	Clone   op.CloneFunc
	Out     io.Writer

	Buses    schema.BusReport
	Bringup  schema.BringupMode
	Builds   []schema.BuildResult
	Degraded []string
	// Aborted is the error of the step that stopped the run.
	Aborted error
}

// NewState wires the real console, fetcher and git client.
func NewState(cfg schema.Config, fs vfs.FS) *State {
	return &State{
		Config:  cfg,
		FS:      fs,
		Console: internalUtils.StationConsole{},
		Fetcher: op.NewHTTPFetcher(),
		Clone:   op.ShallowClone,
		Out:     os.Stdout,
		Buses:   schema.BusReport{},
	}
}

// raw resolves p to the path on the host, for things executed right now
// rather than written for the station to read later.
func (s *State) raw(p string) string {
	r, err := s.FS.RawPath(p)
	if err != nil {
		return p
	}
	return r
}

// guard skips fn once a previous step aborted the run and records fn's
// error as the abort reason.
func (s *State) guard(name string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if s.Aborted != nil {
			internalUtils.Log.Info().Str("step", name).Msg("Skipped, run aborted")
			return nil
		}
		internalUtils.Log.Info().Str("step", name).Msg("Running")
		if err := fn(ctx); err != nil {
			s.Aborted = fmt.Errorf("%s: %w", name, err)
			return err
		}
		return nil
	}
}

// degrade records a step failure that does not stop the run.
func (s *State) degrade(step string, err error) {
	internalUtils.Log.Warn().Err(err).Str("step", step).Msg("Step degraded, continuing")
	s.Degraded = append(s.Degraded, fmt.Sprintf("%s: %s", step, err.Error()))
}

func (s *State) chown(owner, path string, recursive bool) error {
	flag := ""
	if recursive {
		flag = "-R "
	}
	out, err := s.Console.Run(fmt.Sprintf("chown %s%s:%s %s", flag, owner, owner, s.raw(path)))
	if err != nil {
		internalUtils.Log.Debug().Str("out", out).Str("path", path).Msg("chown")
	}
	return err
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, op := range layer {
			if op.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Error.Error(), op.Background, op.WeakDeps, op.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Background, op.WeakDeps, op.Executed)
			}
		}
	}
	return
}

// Failed collects the errors of every step that aborted the run.
func (s *State) Failed(g *herd.Graph) error {
	var errs error
	for _, layer := range g.Analyze() {
		for _, op := range layer {
			if op.Error != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", op.Name, op.Error))
			}
		}
	}
	return errs
}

// Summary is the closing report of a run.
func (s *State) Summary() string {
	var b strings.Builder
	for _, r := range s.Builds {
		fmt.Fprintf(&b, "build %s: %s\n", r.Target, r.Outcome)
	}
	if s.Bringup != "" {
		fmt.Fprintf(&b, "hardware bring-up: %s\n", s.Bringup)
	}
	for _, bus := range s.Config.Buses {
		st, ok := s.Buses[bus.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "bus %s (%s): %s\n", bus.Name, bus.Device, st)
	}
	for _, d := range s.Degraded {
		fmt.Fprintf(&b, "degraded: %s\n", d)
	}
	if s.Buses.AllPresent() {
		b.WriteString("All buses present, no reboot needed\n")
	} else {
		b.WriteString("Reboot advisable: not every bus was confirmed present during this run\n")
	}
	return b.String()
}

// LogIfError will log if there is an error with the given context as message
// Context can be empty.
func (s *State) LogIfError(e error, msgContext string) {
	if e != nil {
		internalUtils.Log.Err(e).Msg(msgContext)
	}
}

// LogIfErrorAndReturn will log if there is an error with the given context as message
// Context can be empty
// Will also return the error.
func (s *State) LogIfErrorAndReturn(e error, msgContext string) error {
	if e != nil {
		internalUtils.Log.Err(e).Msg(msgContext)
	}
	return e
}
