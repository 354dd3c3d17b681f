package op_test

import (
	"github.com/cosmicwatch/stationcore/pkg/op"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("overlay listing", func() {
	It("parses dtoverlay -l output", func() {
		out := "Overlays (in load order):\n0:  spi1-3cs\n1:  w1-gpio\n2:  spi1-1cs  dtparam=foo\n"
		Expect(op.ParseActiveOverlays(out)).To(Equal([]string{"spi1-3cs", "w1-gpio", "spi1-1cs"}))
	})
	It("returns nothing when no overlay is loaded", func() {
		Expect(op.ParseActiveOverlays("No overlays loaded\n")).To(BeEmpty())
	})
	It("selects the family newest first", func() {
		active := []string{"spi1-3cs", "w1-gpio", "spi1-1cs"}
		Expect(op.FamilyOverlays(active, "spi1-")).To(Equal([]string{"spi1-1cs", "spi1-3cs"}))
		Expect(op.FamilyOverlays(active, "")).To(BeEmpty())
	})
})
