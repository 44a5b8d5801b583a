package scenario_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/scenario"
)

var _ = Describe("Params", func() {
	It("should accept the defaults", func() {
		Expect(scenario.DefaultParams().Validate()).To(Succeed())
	})

	DescribeTable("invalid parameters",
		func(mutate func(p *scenario.Params)) {
			p := scenario.DefaultParams()
			mutate(&p)
			Expect(p.Validate()).To(MatchError(scenario.ErrInvalidConfig))
		},
		Entry("negative payload", func(p *scenario.Params) { p.PayloadSize = -1 }),
		Entry("zero payload", func(p *scenario.Params) { p.PayloadSize = 0 }),
		Entry("zero simulation time", func(p *scenario.Params) { p.SimulationTime = 0 }),
		Entry("no MPDU", func(p *scenario.Params) { p.NMpdus = 0 }),
		Entry("negative packet limit", func(p *scenario.Params) { p.NPackets = -1 }),
		Entry("zero range", func(p *scenario.Params) { p.Range = 0 }),
		Entry("zero interval", func(p *scenario.Params) { p.Interval = 0 }),
		Entry("negative warm-up", func(p *scenario.Params) { p.WarmUp = -1 }),
	)

	It("should map enableRts onto the RTS threshold", func() {
		p := scenario.DefaultParams()
		Expect(p.MACConfig().RTSThreshold).To(Equal(mac.RTSDisabledThreshold))

		p.EnableRts = true
		Expect(p.MACConfig().RTSThreshold).To(Equal(0))
	})

	It("should size aggregates from nMpdus and the payload", func() {
		p := scenario.DefaultParams()
		p.NMpdus = 64

		c := p.MACConfig()
		Expect(c.MaxMPDUs).To(Equal(64))
		Expect(c.MaxAggregateSize).To(Equal(64 * (1472 + 200)))
	})

	It("should run WarmUp + SimulationTime", func() {
		p := scenario.DefaultParams()
		Expect(float64(p.EndTime())).To(BeNumerically("~", 11, 1e-12))
	})

	Context("environment", func() {
		setenv := func(k, v string) {
			Expect(os.Setenv(k, v)).To(Succeed())
			DeferCleanup(os.Unsetenv, k)
		}

		It("should override the defaults", func() {
			setenv(scenario.EnvPayloadSize, "1024")
			setenv(scenario.EnvEnableRts, "true")
			setenv(scenario.EnvSimulationTime, "2.5")
			setenv(scenario.EnvSeed, "42")
			setenv(scenario.EnvScenario, scenario.ScenarioEchoOnce)

			p := scenario.DefaultParams()
			Expect(p.ApplyEnv()).To(Succeed())

			Expect(p.PayloadSize).To(Equal(1024))
			Expect(p.EnableRts).To(BeTrue())
			Expect(p.SimulationTime).To(Equal(2.5))
			Expect(p.Seed).To(Equal(int64(42)))
			Expect(p.Scenario).To(Equal(scenario.ScenarioEchoOnce))
		})

		It("should reject values that do not parse", func() {
			setenv(scenario.EnvNMpdus, "many")

			p := scenario.DefaultParams()
			Expect(p.ApplyEnv()).To(MatchError(scenario.ErrInvalidConfig))
		})

		It("should load .env files and skip missing ones", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, ".env")
			Expect(os.WriteFile(path,
				[]byte(scenario.EnvNPackets+"=7\n"), 0o600)).To(Succeed())
			DeferCleanup(os.Unsetenv, scenario.EnvNPackets)

			Expect(scenario.LoadEnvFiles(
				filepath.Join(dir, "missing.env"), path)).To(Succeed())

			p := scenario.DefaultParams()
			Expect(p.ApplyEnv()).To(Succeed())
			Expect(p.NPackets).To(Equal(7))
		})
	})
})

var _ = Describe("Scenario files", func() {
	It("should read YAML on top of the given parameters", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run.yaml")
		Expect(os.WriteFile(path, []byte(`
params:
  scenario: two-hidden
  nMpdus: 8
  enableRts: true
`), 0o600)).To(Succeed())

		f, err := scenario.LoadFile(path, scenario.DefaultParams())
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Params.NMpdus).To(Equal(8))
		Expect(f.Params.EnableRts).To(BeTrue())
		Expect(f.Params.PayloadSize).To(Equal(1472))

		topo, err := f.Resolve()
		Expect(err).NotTo(HaveOccurred())
		Expect(topo.Stations).To(HaveLen(3))
	})

	It("should read an explicit topology", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run.yaml")
		Expect(os.WriteFile(path, []byte(`
topology:
  stations:
    - {name: AP, role: ap, position: {x: 5, y: 5}}
    - {name: A, role: sta, position: {x: 0, y: 5}}
  servers:
    - {name: sink, station: AP, port: 9, start: 0}
  flows:
    - {name: a, source: A, server: sink, maxPackets: 1}
`), 0o600)).To(Succeed())

		f, err := scenario.LoadFile(path, scenario.DefaultParams())
		Expect(err).NotTo(HaveOccurred())

		topo, err := f.Resolve()
		Expect(err).NotTo(HaveOccurred())
		Expect(topo.Stations[1].Position.X).To(Equal(0.0))
		Expect(topo.Flows[0].MaxPackets).To(Equal(1))
		Expect(topo.Servers[0].Start).To(HaveValue(Equal(0.0)))
		Expect(topo.Flows[0].Start).To(BeNil())
	})

	It("should write and read back JSON", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run.json")
		p := scenario.DefaultParams()
		p.Scenario = scenario.ScenarioEchoStaggered
		topo, err := scenario.Canonical(p)
		Expect(err).NotTo(HaveOccurred())

		Expect(scenario.WriteFile(path,
			scenario.File{Params: p, Topology: &topo})).To(Succeed())

		f, err := scenario.LoadFile(path, scenario.DefaultParams())
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Params.Scenario).To(Equal(scenario.ScenarioEchoStaggered))
		Expect(f.Topology.Flows).To(HaveLen(4))
	})

	It("should reject unknown formats", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run.toml")
		Expect(os.WriteFile(path, []byte("x = 1"), 0o600)).To(Succeed())

		_, err := scenario.LoadFile(path, scenario.DefaultParams())
		Expect(err).To(MatchError(scenario.ErrInvalidConfig))
	})
})
