package op

import (
	"fmt"

	"github.com/cosmicwatch/stationcore/pkg/schema"
)

// BringupCommands is the one-time hardware initialization in execution
// order: load the bitstream, set the high voltage, then zero every DAC channel.
func BringupCommands(b schema.BringupConfig) []string {
	cmds := []string{
		fmt.Sprintf("%s %s", b.Loader, b.Bitstream),
		fmt.Sprintf("%s %s", b.HV, b.HVValue),
	}
	for ch := 0; ch < b.Channels; ch++ {
		cmds = append(cmds, fmt.Sprintf("%s %d %s", b.DAC, ch, b.DACLevel))
	}
	return cmds
}
