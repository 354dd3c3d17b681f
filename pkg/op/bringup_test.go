package op_test

import (
	"github.com/cosmicwatch/stationcore/pkg/op"
	"github.com/cosmicwatch/stationcore/pkg/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("bring-up plan", func() {
	It("loads, sets the voltage and zeroes every channel in order", func() {
		cmds := op.BringupCommands(schema.BringupConfig{
			Loader: "/fw/load", Bitstream: "/fw/top.bit",
			HV: "/fw/hvset", HVValue: "1700",
			DAC: "/fw/dacset", Channels: 3, DACLevel: "0",
		})
		Expect(cmds).To(Equal([]string{
			"/fw/load /fw/top.bit",
			"/fw/hvset 1700",
			"/fw/dacset 0 0",
			"/fw/dacset 1 0",
			"/fw/dacset 2 0",
		}))
	})
})
