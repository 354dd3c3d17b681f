package utils

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mudler/yip/pkg/executor"
	"github.com/mudler/yip/pkg/plugins"
	"github.com/twpayne/go-vfs/v4"
	"gopkg.in/yaml.v3"
)

// RunStage runs the yip stage found in any of the given paths. Paths that do
// not exist are ignored, so a station without hooks is a no-op.
func RunStage(fs vfs.FS, stage string, console plugins.Console, paths ...string) error {
	var allErrors error
	var existing []string

	for _, p := range paths {
		if Exists(fs, p) {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		Log.Debug().Str("stage", stage).Strs("paths", paths).Msg("No hook paths present")
		return nil
	}

	yip := executor.NewExecutor(executor.WithLogger(KLog))
	if err := yip.Run(stage, fs, console, existing...); err != nil {
		allErrors = checkYAMLError(allErrors, err)
	}

	return allErrors
}

func onlyYAMLPartialErrors(er error) bool {
	var merr *multierror.Error
	if errors.As(er, &merr) {
		for _, e := range merr.Errors {
			// TypeError is thrown when the yaml could be read partially, the
			// rest of the stage still ran.
			var d *yaml.TypeError
			if fmt.Sprintf("%T", e) != fmt.Sprintf("%T", d) {
				return false
			}
		}
		return true
	}
	return false
}

func checkYAMLError(allErrors, err error) error {
	if !onlyYAMLPartialErrors(err) {
		allErrors = multierror.Append(allErrors, err)
	}
	return allErrors
}
