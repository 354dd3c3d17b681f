package dag_test

import (
	"errors"

	cnst "github.com/cosmicwatch/stationcore/internal/constants"
	"github.com/cosmicwatch/stationcore/pkg/dag"
	"github.com/cosmicwatch/stationcore/pkg/profile"
	"github.com/cosmicwatch/stationcore/pkg/state"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
)

var _ = Describe("provisioning dag", func() {
	var g *herd.Graph
	var s *state.State

	BeforeEach(func() {
		g = herd.DAG(herd.EnableInit)
		Expect(g).ToNot(BeNil())
		s = state.NewState(profile.Station(), vfs.OSFS)
	})

	It("runs one step at a time in the fixed order", func() {
		Expect(dag.RegisterProvision(s, g)).To(Succeed())
		layers := g.Analyze()
		Expect(layers).To(HaveLen(len(dag.Order)+1), s.WriteDAG(g))
		Expect(layers[0][0].Name).To(Equal("init"))
		for i, name := range dag.Order {
			Expect(layers[i+1]).To(HaveLen(1), s.WriteDAG(g))
			Expect(layers[i+1][0].Name).To(Equal(name), s.WriteDAG(g))
		}
	})

	It("registers a lone step", func() {
		Expect(dag.RegisterStep(s, g, cnst.OpSchedule)).To(Succeed())
		layers := g.Analyze()
		Expect(layers).To(HaveLen(2), s.WriteDAG(g))
		Expect(layers[1][0].Name).To(Equal(cnst.OpSchedule))
	})

	It("probes before a lone bring-up", func() {
		Expect(dag.RegisterStep(s, g, cnst.OpBringup)).To(Succeed())
		layers := g.Analyze()
		Expect(layers).To(HaveLen(3), s.WriteDAG(g))
		Expect(layers[1][0].Name).To(Equal(cnst.OpProbeBuses))
		Expect(layers[2][0].Name).To(Equal(cnst.OpBringup))
	})

	It("rejects unknown steps", func() {
		err := dag.RegisterStep(s, g, "reticulate-splines")
		Expect(errors.Is(err, cnst.ErrUnknownStep)).To(BeTrue())
	})
})
