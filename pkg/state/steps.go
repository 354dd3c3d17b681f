package state

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/avast/retry-go"
	cnst "github.com/cosmicwatch/stationcore/internal/constants"
	internalUtils "github.com/cosmicwatch/stationcore/internal/utils"
	"github.com/cosmicwatch/stationcore/pkg/op"
	"github.com/cosmicwatch/stationcore/pkg/schema"
	"github.com/hashicorp/go-multierror"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
)

// HookStageDagStep runs the yip stage of the given name from the hook paths.
func (s *State) HookStageDagStep(g *herd.Graph, name, stage string, opts ...herd.OpOption) error {
	return g.Add(name, append(opts, herd.WithCallback(s.guard(name, s.RunStageOp(name, stage))))...)
}

func (s *State) RunStageOp(name, stage string) func(context.Context) error {
	return func(_ context.Context) error {
		internalUtils.Log.Info().Str("stage", stage).Msg("Running hook stage")
		if err := internalUtils.RunStage(s.FS, stage, s.Console, s.Config.HookPaths...); err != nil {
			s.degrade(name, err)
		}
		return nil
	}
}

// PatchBootDagStep makes the boot configuration enable the buses on every boot.
func (s *State) PatchBootDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpPatchBoot, append(opts, herd.WithCallback(s.guard(cnst.OpPatchBoot, func(_ context.Context) error {
		patched, err := op.ApplyBootConfig(s.FS, s.Config.Boot)
		if err != nil {
			if len(patched) > 0 {
				internalUtils.Log.Info().Strs("files", patched).Msg("Boot configuration patched")
			}
			s.degrade(cnst.OpPatchBoot, err)
			return nil
		}
		found := false
		for _, c := range s.Config.Boot.Candidates {
			if internalUtils.Exists(s.FS, c) {
				found = true
			}
		}
		if !found {
			internalUtils.Log.Warn().Strs("candidates", s.Config.Boot.Candidates).Msg("No boot configuration found")
			return nil
		}
		if len(patched) == 0 {
			internalUtils.Log.Info().Msg("Boot configuration already up to date")
			return nil
		}
		internalUtils.Log.Info().Strs("files", patched).Msg("Boot configuration patched")
		return nil
	})))...)
}

// ActivateBusesDagStep tries to bring the buses up for this session. Nothing
// here can fail the run, the boot configuration covers the next boot anyway.
func (s *State) ActivateBusesDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpActivateBuses, append(opts, herd.WithCallback(s.guard(cnst.OpActivateBuses, func(_ context.Context) error {
		if err := s.activateBuses(); err != nil {
			s.degrade(cnst.OpActivateBuses, err)
		}
		return nil
	})))...)
}

func (s *State) activateBuses() error {
	var errs error
	rt := s.Config.Runtime
	run := func(cmd string) {
		if out, err := s.Console.Run(cmd); err != nil {
			internalUtils.Log.Debug().Str("cmd", cmd).Str("out", out).Msg("runtime activation")
			errs = multierror.Append(errs, err)
		}
	}

	if rt.OverlayFamily != "" {
		out, err := s.Console.Run("dtoverlay -l")
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			for _, name := range op.FamilyOverlays(op.ParseActiveOverlays(out), rt.OverlayFamily) {
				internalUtils.Log.Debug().Str("overlay", name).Msg("Removing active overlay")
				run("dtoverlay -r " + name)
			}
		}
	}
	if rt.Overlay != "" {
		run("dtoverlay " + rt.Overlay)
	}
	for _, m := range rt.Modules {
		run("modprobe " + m)
	}
	run("udevadm settle")
	return errs
}

// ProbeBusesDagStep observes which bus device nodes exist. Nodes can show up
// a little after udev settles, so each one is polled for a while.
func (s *State) ProbeBusesDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpProbeBuses, append(opts, herd.WithCallback(s.guard(cnst.OpProbeBuses, func(ctx context.Context) error {
		s.ProbeBuses(ctx)
		return nil
	})))...)
}

// ProbeBuses refreshes the bus report.
func (s *State) ProbeBuses(ctx context.Context) schema.BusReport {
	attempts := s.Config.Probe.Attempts
	if attempts == 0 {
		attempts = 1
	}
	report := schema.BusReport{}
	for _, bus := range s.Config.Buses {
		err := retry.Do(
			func() error {
				if internalUtils.Exists(s.FS, bus.Device) {
					return nil
				}
				return cnst.ErrBusMissing
			},
			retry.Context(ctx),
			retry.Attempts(attempts),
			retry.Delay(s.Config.Probe.Interval),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
		)
		st := schema.BusPresent
		if err != nil {
			st = schema.BusMissing
		}
		report[bus.Name] = st
		internalUtils.Log.Info().Str("bus", bus.Name).Str("device", bus.Device).Str("state", string(st)).Msg("Bus probed")
	}
	s.Buses = report
	return report
}

// FetchSourceDagStep replaces the firmware tree and logger script with the
// ones of the pinned archive.
func (s *State) FetchSourceDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpFetchSource, append(opts, herd.WithCallback(s.guard(cnst.OpFetchSource, func(ctx context.Context) error {
		src := s.Config.Source
		body, err := s.Fetcher.Fetch(ctx, src.ArchiveURL)
		if err != nil {
			return s.LogIfErrorAndReturn(err, "fetching source archive")
		}
		defer body.Close()

		subpaths := []string{src.FirmwareDir, src.LoggerScript}
		err = op.ExtractSubpaths(s.FS, body, s.Config.Home, src.StripComponents, subpaths)
		if err != nil {
			return s.LogIfErrorAndReturn(err, "extracting source archive")
		}
		for _, p := range subpaths {
			if err := s.chown(s.Config.Account, filepath.Join(s.Config.Home, p), true); err != nil {
				s.degrade(cnst.OpFetchSource, err)
			}
		}
		internalUtils.Log.Info().Str("from", src.ArchiveURL).Strs("paths", subpaths).Msg("Source fetched")
		return nil
	})))...)
}

// BuildDriverDagStep clones the hardware access library from scratch and
// builds it. The control loop links against it so a failure stops the run.
func (s *State) BuildDriverDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpBuildDriver, append(opts, herd.WithCallback(s.guard(cnst.OpBuildDriver, func(ctx context.Context) error {
		d := s.Config.Driver
		if err := s.FS.RemoveAll(d.Dir); err != nil {
			return s.LogIfErrorAndReturn(err, "removing stale clone")
		}
		if err := vfs.MkdirAll(s.FS, filepath.Dir(d.Dir), 0755); err != nil {
			return err
		}

		dir := s.raw(d.Dir)
		commit, err := s.Clone(ctx, d.URL, d.Ref, dir)
		if err != nil {
			return s.LogIfErrorAndReturn(err, "cloning driver library")
		}
		internalUtils.Log.Info().Str("url", d.URL).Str("ref", d.Ref).Str("commit", commit).Msg("Driver library cloned")

		out, err := s.Console.Run(d.BuildCommand, internalUtils.InDir(dir))
		if err != nil {
			internalUtils.Log.Debug().Str("out", out).Msg("driver build output")
			return s.LogIfErrorAndReturn(err, "building driver library")
		}
		internalUtils.Log.Info().Msg("Driver library built")
		return nil
	})))...)
}

// BuildFirmwareDagStep builds every helper. Helper failures are only
// reported, a failed relink aborts the run once every target was tried.
func (s *State) BuildFirmwareDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpBuildFirmware, append(opts, herd.WithCallback(s.guard(cnst.OpBuildFirmware, func(_ context.Context) error {
		targets := make([]schema.BuildTarget, 0, len(s.Config.Targets))
		for _, t := range s.Config.Targets {
			t.Dir = s.raw(t.Dir)
			targets = append(targets, t)
		}

		results, err := op.RunPipeline(s.Console, targets)
		s.Builds = results
		for i, r := range results {
			if r.Outcome == schema.BuildFailed && targets[i].Repair == nil {
				s.degrade(fmt.Sprintf("%s/%s", cnst.OpBuildFirmware, r.Target), r.Err)
			}
		}
		return s.LogIfErrorAndReturn(err, "relinking control loop")
	})))...)
}

// BringupDagStep initializes the hardware once, but only when the primary
// bus is there. Otherwise the autostart script does it on the next boot.
func (s *State) BringupDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpBringup, append(opts, herd.WithCallback(s.guard(cnst.OpBringup, func(_ context.Context) error {
		s.Bringup = s.BringupDecision()
		if s.Bringup == schema.BringupSkip {
			bus, _ := s.Config.PrimaryBus()
			internalUtils.Log.Warn().Str("device", bus.Device).Msg("Primary bus not present, hardware bring-up will run at next boot")
			return nil
		}

		b := s.Config.Bringup
		b.Loader, b.Bitstream, b.HV, b.DAC = s.raw(b.Loader), s.raw(b.Bitstream), s.raw(b.HV), s.raw(b.DAC)
		for _, cmd := range op.BringupCommands(b) {
			out, err := s.Console.Run(cmd)
			if err != nil {
				internalUtils.Log.Debug().Str("out", out).Msg("bring-up output")
				s.degrade(cnst.OpBringup, err)
				return nil
			}
			internalUtils.Log.Info().Str("cmd", cmd).Msg("Bring-up call done")
		}
		return nil
	})))...)
}

// BringupDecision is RUN only when this run saw the primary bus.
func (s *State) BringupDecision() schema.BringupMode {
	bus, ok := s.Config.PrimaryBus()
	if ok && s.Buses[bus.Name] == schema.BusPresent {
		return schema.BringupRun
	}
	return schema.BringupSkip
}

// AutostartDagStep installs the repaired boot script and the unit running it.
func (s *State) AutostartDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpAutostart, append(opts, herd.WithCallback(s.guard(cnst.OpAutostart, func(ctx context.Context) error {
		if err := s.installAutostart(ctx); err != nil {
			s.degrade(cnst.OpAutostart, err)
			return nil
		}
		if err := s.installService(); err != nil {
			s.degrade(cnst.OpAutostart, err)
		}
		return nil
	})))...)
}

func (s *State) installAutostart(ctx context.Context) error {
	a := s.Config.Autostart
	data, from, err := op.FetchFirst(ctx, s.Fetcher, a.Sources)
	if err != nil {
		return fmt.Errorf("fetching autostart script: %w", err)
	}
	internalUtils.Log.Debug().Str("from", from).Msg("Autostart script fetched")

	content := op.RepairAutostart(string(data), a.Interpreter, a.Tasks)
	changed, err := op.WriteIfChanged(s.FS, a.Path, []byte(content), 0755)
	if err != nil {
		return err
	}
	if err := s.chown(s.Config.PrivilegedAccount, a.Path, false); err != nil {
		return err
	}

	var errs error
	for _, dir := range s.logDirs() {
		if err := internalUtils.CreateIfNotExists(s.FS, dir); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if err := s.chown(s.Config.Account, dir, false); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	internalUtils.Log.Info().Str("path", a.Path).Bool("changed", changed).Msg("Autostart script installed")
	return errs
}

func (s *State) logDirs() []string {
	var dirs []string
	for _, t := range s.Config.Autostart.Tasks {
		if t.Log != "" {
			dirs = append(dirs, filepath.Dir(t.Log))
		}
	}
	return internalUtils.UniqueSlice(dirs)
}

// installService enables the boot unit for the next boot only. A unit that is
// already active is stopped first, the hardware was just brought up by hand.
func (s *State) installService() error {
	a := s.Config.Autostart
	unit, err := op.RenderAutostartUnit(a.Path)
	if err != nil {
		return err
	}
	changed, err := op.WriteIfChanged(s.FS, filepath.Join(a.ServiceDir, a.ServiceName), unit, 0644)
	if err != nil {
		return err
	}

	if _, err := s.Console.Run("systemctl is-active --quiet " + a.ServiceName); err == nil {
		internalUtils.Log.Info().Str("unit", a.ServiceName).Msg("Unit active, stopping it")
		for _, cmd := range []string{"systemctl stop ", "systemctl disable "} {
			if _, err := s.Console.Run(cmd + a.ServiceName); err != nil {
				return err
			}
		}
	}
	for _, cmd := range []string{"systemctl daemon-reload", "systemctl enable " + a.ServiceName} {
		if _, err := s.Console.Run(cmd); err != nil {
			return err
		}
	}
	internalUtils.Log.Info().Str("unit", a.ServiceName).Bool("changed", changed).Msg("Unit enabled for next boot")
	return nil
}

// ScheduleDagStep installs the transfer script and its single schedule entry.
func (s *State) ScheduleDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpSchedule, append(opts, herd.WithCallback(s.guard(cnst.OpSchedule, func(ctx context.Context) error {
		if err := s.installSchedule(ctx); err != nil {
			s.degrade(cnst.OpSchedule, err)
		}
		return nil
	})))...)
}

func (s *State) installSchedule(ctx context.Context) error {
	sc := s.Config.Schedule
	if err := op.ValidateCadence(sc.Cadence); err != nil {
		return err
	}

	data, _, err := op.FetchFirst(ctx, s.Fetcher, []string{sc.Source})
	if err != nil {
		return fmt.Errorf("fetching transfer script: %w", err)
	}
	script := op.NormalizeNewlines(string(data))
	if _, err := op.WriteIfChanged(s.FS, sc.Path, []byte(script), 0755); err != nil {
		return err
	}
	if err := s.chown(s.Config.Account, sc.Path, false); err != nil {
		return err
	}

	account := s.Config.Account
	table, err := s.Console.Run(fmt.Sprintf("crontab -u %s -l", account))
	if err != nil {
		if !op.IsNoCrontab(table) {
			return fmt.Errorf("reading schedule of %s: %w", account, err)
		}
		table = ""
	}

	merged := op.MergeSchedule(table, sc.Cadence, sc.Path)
	if merged == op.NormalizeNewlines(table) {
		internalUtils.Log.Info().Str("account", account).Msg("Schedule already up to date")
		return nil
	}
	if out, err := s.Console.Run(fmt.Sprintf("crontab -u %s -", account), internalUtils.WithStdin(strings.NewReader(merged))); err != nil {
		internalUtils.Log.Debug().Str("out", out).Msg("crontab install")
		return fmt.Errorf("installing schedule of %s: %w", account, err)
	}
	internalUtils.Log.Info().Str("account", account).Str("entry", op.ScheduleEntry(sc.Cadence, sc.Path)).Msg("Schedule installed")
	return nil
}

// CredentialDagStep creates the station key once and shows its public half.
func (s *State) CredentialDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpCredential, append(opts, herd.WithCallback(s.guard(cnst.OpCredential, func(_ context.Context) error {
		if err := s.provisionCredential(); err != nil {
			s.degrade(cnst.OpCredential, err)
		}
		return nil
	})))...)
}

func (s *State) provisionCredential() error {
	key := s.Config.Credential.KeyPath
	host := s.Config.Hostname
	if host == "" {
		host = "station"
	}
	comment := fmt.Sprintf("%s@%s", s.Config.Account, host)

	if internalUtils.Exists(s.FS, key) {
		l := internalUtils.Log.Info().Str("path", key)
		if data, err := s.FS.ReadFile(key); err == nil {
			if pub, err := op.PublicFromPrivate(data, comment); err == nil {
				l = l.Str("public", strings.TrimSpace(string(pub)))
			}
		}
		l.Msg("Key already exists, leaving it in place")
		return nil
	}

	priv, pub, err := op.GenerateKeypair(comment)
	if err != nil {
		return err
	}

	dir := filepath.Dir(key)
	if err := vfs.MkdirAll(s.FS, dir, 0700); err != nil {
		return err
	}
	if err := s.FS.Chmod(dir, 0700); err != nil {
		return err
	}
	if _, err := op.WriteIfChanged(s.FS, key, priv, 0600); err != nil {
		return err
	}
	if _, err := op.WriteIfChanged(s.FS, key+".pub", pub, 0644); err != nil {
		return err
	}

	fmt.Fprintf(s.Out, "%s\n%s%s\n", cnst.PublicKeyHeader, pub, cnst.PublicKeyFooter)
	internalUtils.Log.Info().Str("path", key).Msg("Key generated")
	return s.chown(s.Config.Account, dir, true)
}
