package dag

import (
	"fmt"

	cnst "github.com/cosmicwatch/stationcore/internal/constants"
	"github.com/cosmicwatch/stationcore/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

var (
	StageBefore = cnst.StageName + ".before"
	StageAfter  = cnst.StageName + ".after"
)

// Order is the fixed provisioning sequence.
var Order = []string{
	cnst.OpStageBefore,
	cnst.OpPatchBoot,
	cnst.OpActivateBuses,
	cnst.OpProbeBuses,
	cnst.OpFetchSource,
	cnst.OpBuildDriver,
	cnst.OpBuildFirmware,
	cnst.OpBringup,
	cnst.OpAutostart,
	cnst.OpSchedule,
	cnst.OpCredential,
	cnst.OpStageAfter,
}

// RegisterProvision registers every step, each one depending on the one
// before it. A step that fails leaves every later step unexecuted, steps that
// only degrade return nil and let the chain continue.
func RegisterProvision(s *state.State, g *herd.Graph) error {
	var err error

	s.LogIfError(s.HookStageDagStep(g, cnst.OpStageBefore, StageBefore), "before stage")
	s.LogIfError(s.PatchBootDagStep(g, herd.WithDeps(cnst.OpStageBefore)), "boot config")
	s.LogIfError(s.ActivateBusesDagStep(g, herd.WithDeps(cnst.OpPatchBoot)), "bus activation")
	s.LogIfError(s.ProbeBusesDagStep(g, herd.WithDeps(cnst.OpActivateBuses)), "bus probe")

	// Everything after this needs the sources on disk
	if err = s.LogIfErrorAndReturn(s.FetchSourceDagStep(g, herd.WithDeps(cnst.OpProbeBuses)), "fetch source"); err != nil {
		return err
	}
	if err = s.LogIfErrorAndReturn(s.BuildDriverDagStep(g, herd.WithDeps(cnst.OpFetchSource)), "driver build"); err != nil {
		return err
	}
	if err = s.LogIfErrorAndReturn(s.BuildFirmwareDagStep(g, herd.WithDeps(cnst.OpBuildDriver)), "firmware build"); err != nil {
		return err
	}

	s.LogIfError(s.BringupDagStep(g, herd.WithDeps(cnst.OpBuildFirmware)), "hardware bring-up")
	s.LogIfError(s.AutostartDagStep(g, herd.WithDeps(cnst.OpBringup)), "autostart")
	s.LogIfError(s.ScheduleDagStep(g, herd.WithDeps(cnst.OpAutostart)), "schedule")
	s.LogIfError(s.CredentialDagStep(g, herd.WithDeps(cnst.OpSchedule)), "credential")
	s.LogIfError(s.HookStageDagStep(g, cnst.OpStageAfter, StageAfter, herd.WithDeps(cnst.OpCredential)), "after stage")

	return err
}

// RegisterStep registers a single step so it can be re-run on its own. The
// bring-up decision needs a fresh bus report, so the probe runs before it.
func RegisterStep(s *state.State, g *herd.Graph, name string) error {
	switch name {
	case cnst.OpStageBefore:
		return s.HookStageDagStep(g, name, StageBefore)
	case cnst.OpStageAfter:
		return s.HookStageDagStep(g, name, StageAfter)
	case cnst.OpPatchBoot:
		return s.PatchBootDagStep(g)
	case cnst.OpActivateBuses:
		return s.ActivateBusesDagStep(g)
	case cnst.OpProbeBuses:
		return s.ProbeBusesDagStep(g)
	case cnst.OpFetchSource:
		return s.FetchSourceDagStep(g)
	case cnst.OpBuildDriver:
		return s.BuildDriverDagStep(g)
	case cnst.OpBuildFirmware:
		return s.BuildFirmwareDagStep(g)
	case cnst.OpBringup:
		if err := s.ProbeBusesDagStep(g); err != nil {
			return err
		}
		return s.BringupDagStep(g, herd.WithDeps(cnst.OpProbeBuses))
	case cnst.OpAutostart:
		return s.AutostartDagStep(g)
	case cnst.OpSchedule:
		return s.ScheduleDagStep(g)
	case cnst.OpCredential:
		return s.CredentialDagStep(g)
	}
	return fmt.Errorf("%w: %s", cnst.ErrUnknownStep, name)
}
