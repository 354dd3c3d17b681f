package op

import (
	"io"

	"github.com/coreos/go-systemd/v22/unit"
)

// RenderAutostartUnit returns a one-shot unit that runs script once at boot
// and stays active without waiting for the tasks it detaches.
func RenderAutostartUnit(script string) ([]byte, error) {
	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", script+" Compatibility"),
		unit.NewUnitOption("Unit", "ConditionPathExists", script),
		unit.NewUnitOption("Unit", "Wants", "network-online.target"),
		unit.NewUnitOption("Unit", "After", "network-online.target"),
		unit.NewUnitOption("Service", "Type", "oneshot"),
		unit.NewUnitOption("Service", "ExecStart", script+" start"),
		unit.NewUnitOption("Service", "TimeoutSec", "0"),
		unit.NewUnitOption("Service", "RemainAfterExit", "yes"),
		unit.NewUnitOption("Service", "GuessMainPID", "no"),
		unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
	}
	return io.ReadAll(unit.Serialize(opts))
}
