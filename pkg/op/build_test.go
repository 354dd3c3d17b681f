package op_test

import (
	"github.com/cosmicwatch/stationcore/internal/mocks"
	"github.com/cosmicwatch/stationcore/pkg/op"
	"github.com/cosmicwatch/stationcore/pkg/profile"
	"github.com/cosmicwatch/stationcore/pkg/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("build pipeline", func() {
	var console *mocks.FakeConsole
	var targets []schema.BuildTarget

	BeforeEach(func() {
		console = mocks.NewFakeConsole()
		targets = profile.Station().Targets
	})

	It("renders the relink recipe", func() {
		Expect(op.RepairCommands(*targets[3].Repair)).To(Equal([]string{
			"rm -f daq daq.o",
			"gcc -c daq.c -o daq.o",
			"gcc daq.o -o daq -lwiringPi",
		}))
	})

	It("builds every target in its own directory", func() {
		results, err := op.RunPipeline(console, targets)
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(4))
		for i, r := range results {
			Expect(r.Target).To(Equal(targets[i].Name))
			Expect(r.Outcome).To(Equal(schema.BuildSuccess))
		}
		for _, c := range console.Calls {
			Expect(c.Dir).ToNot(BeEmpty())
		}
		// clean + build per target, plus the relink
		Expect(console.Calls).To(HaveLen(4*2 + 3))
	})

	It("tolerates clean failures", func() {
		console.FailOn("make clean")
		results, err := op.RunPipeline(console, targets[:1])
		Expect(err).ToNot(HaveOccurred())
		Expect(results[0].Outcome).To(Equal(schema.BuildSuccess))
	})

	It("keeps building after a helper fails", func() {
		console.Handle("make", func(c mocks.Call) (string, error) {
			if c.Cmd == "make" && c.Dir == targets[0].Dir {
				return "boom", errFake
			}
			return "", nil
		})
		results, err := op.RunPipeline(console, targets)
		Expect(err).ToNot(HaveOccurred())
		Expect(results[0].Outcome).To(Equal(schema.BuildFailed))
		Expect(results[1].Outcome).To(Equal(schema.BuildSuccess))
		Expect(results[2].Outcome).To(Equal(schema.BuildSuccess))
		Expect(results[3].Outcome).To(Equal(schema.BuildSuccess))
	})

	It("relinks even when the primary build of the control loop fails", func() {
		daq := targets[3]
		console.Handle("make", func(c mocks.Call) (string, error) {
			if c.Cmd == "make" && c.Dir == daq.Dir {
				return "undefined reference to wiringPiSetup", errFake
			}
			return "", nil
		})
		results, err := op.RunPipeline(console, targets)
		Expect(err).ToNot(HaveOccurred())
		Expect(results[3].Outcome).To(Equal(schema.BuildFailedRepaired))
		Expect(console.Matching("-lwiringPi")).To(HaveLen(1))
	})

	It("fails only the control loop when the relink fails", func() {
		console.FailOn("-lwiringPi")
		results, err := op.RunPipeline(console, targets)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("daq"))
		Expect(results[0].Outcome).To(Equal(schema.BuildSuccess))
		Expect(results[1].Outcome).To(Equal(schema.BuildSuccess))
		Expect(results[2].Outcome).To(Equal(schema.BuildSuccess))
		Expect(results[3].Outcome).To(Equal(schema.BuildFailed))
	})
})
