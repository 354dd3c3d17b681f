package op

import (
	"fmt"
	"strings"

	internalUtils "github.com/cosmicwatch/stationcore/internal/utils"
	"github.com/cosmicwatch/stationcore/pkg/schema"
	"github.com/hashicorp/go-multierror"
	"github.com/mudler/yip/pkg/plugins"
)

// RepairCommands is the relink recipe: drop artifacts, compile the single
// unit, link it explicitly against the library.
func RepairCommands(r schema.RepairRule) []string {
	cc := r.Compiler
	if cc == "" {
		cc = "gcc"
	}
	var cmds []string
	if len(r.Artifacts) > 0 {
		cmds = append(cmds, "rm -f "+strings.Join(r.Artifacts, " "))
	}
	cmds = append(cmds,
		fmt.Sprintf("%s -c %s -o %s", cc, r.Source, r.Object),
		fmt.Sprintf("%s %s -o %s -l%s", cc, r.Object, r.Output, r.Library),
	)
	return cmds
}

// RunTarget builds one target. Clean and primary build failures are
// tolerated. When the target carries a repair rule it always runs after the
// primary attempt, and only its failure is reported as an error.
func RunTarget(c plugins.Console, t schema.BuildTarget) schema.BuildResult {
	l := internalUtils.Log.With().Str("target", t.Name).Str("dir", t.Dir).Logger()
	res := schema.BuildResult{Target: t.Name, Outcome: schema.BuildSuccess}
	inDir := internalUtils.InDir(t.Dir)

	if t.Clean != "" {
		if out, err := c.Run(t.Clean, inDir); err != nil {
			l.Debug().Err(err).Str("out", out).Msg("clean failed, continuing")
		}
	}

	out, buildErr := c.Run(t.Build, inDir)
	if buildErr != nil {
		l.Warn().Err(buildErr).Str("out", out).Msg("build failed")
		res.Outcome = schema.BuildFailed
		res.Err = buildErr
	}

	if t.Repair == nil {
		if buildErr == nil {
			l.Info().Msg("built")
		}
		return res
	}

	for _, cmd := range RepairCommands(*t.Repair) {
		if out, err := c.Run(cmd, inDir); err != nil {
			l.Error().Err(err).Str("cmd", cmd).Str("out", out).Msg("relink failed")
			return schema.BuildResult{
				Target:  t.Name,
				Outcome: schema.BuildFailed,
				Err:     fmt.Errorf("relink of %s failed: %w", t.Name, err),
			}
		}
	}
	if buildErr != nil {
		res.Outcome = schema.BuildFailedRepaired
		res.Err = nil
	}
	l.Info().Str("outcome", string(res.Outcome)).Msg("relinked")
	return res
}

// RunPipeline attempts every target in order. The returned error only
// aggregates failed repairs, plain build failures are left in the results.
func RunPipeline(c plugins.Console, targets []schema.BuildTarget) ([]schema.BuildResult, error) {
	var errs error
	results := make([]schema.BuildResult, 0, len(targets))
	for _, t := range targets {
		res := RunTarget(c, t)
		results = append(results, res)
		if t.Repair != nil && res.Outcome == schema.BuildFailed {
			errs = multierror.Append(errs, res.Err)
		}
	}
	return results, errs
}
