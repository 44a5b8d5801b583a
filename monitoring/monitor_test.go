package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hiddenstations/scenario"
)

func get(m *Monitor, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	m.Router().ServeHTTP(rec, req)

	return rec
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
		s *scenario.Simulation
	)

	build := func() {
		p := scenario.DefaultParams()
		p.Scenario = scenario.ScenarioTwoHidden
		p.WarmUp = 0.001
		p.SimulationTime = 0.002

		var err error
		s, err = scenario.MakeBuilder().WithParams(p).Build()
		Expect(err).NotTo(HaveOccurred())

		m.RegisterEngine(s.Engine())
		for _, c := range s.Components() {
			m.RegisterComponent(c)
		}
	}

	BeforeEach(func() {
		m = NewMonitor().WithProfileDuration(10 * time.Millisecond)
	})

	It("should ignore privileged ports", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should list the components", func() {
		build()

		var names []string
		rec := get(m, "/api/list_components")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(ContainElements("Medium", "AP.MAC", "STA1.MAC", "STA2.MAC"))
	})

	It("should report the stations", func() {
		build()
		_, err := s.Run()
		Expect(err).NotTo(HaveOccurred())

		var stations []stationRsp
		rec := get(m, "/api/stations")
		Expect(json.Unmarshal(rec.Body.Bytes(), &stations)).To(Succeed())
		Expect(stations).To(HaveLen(3))
		Expect(stations[0].Name).To(Equal("AP.MAC"))
		Expect(stations[1].CW).To(BeNumerically(">=", 15))
		Expect(stations[1].State).NotTo(BeEmpty())
	})

	It("should read the stations while the engine runs", func() {
		build()

		done := make(chan error, 1)
		go func() {
			_, err := s.Run()
			done <- err
		}()

		for i := 0; i < 20; i++ {
			var stations []stationRsp
			rec := get(m, "/api/stations")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(json.Unmarshal(rec.Body.Bytes(), &stations)).To(Succeed())
			Expect(stations).To(HaveLen(3))
		}

		Eventually(done, 10*time.Second).Should(Receive(BeNil()))
	})

	It("should not resume an engine paused through the API", func() {
		build()

		Expect(get(m, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get(m, "/api/stations").Code).To(Equal(http.StatusOK))

		done := make(chan error, 1)
		go func() {
			_, err := s.Run()
			done <- err
		}()

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

		Expect(get(m, "/api/continue").Code).To(Equal(http.StatusOK))
		Eventually(done, 10*time.Second).Should(Receive(BeNil()))
	})

	It("should report the simulated time", func() {
		build()
		_, err := s.Run()
		Expect(err).NotTo(HaveOccurred())

		var rsp struct {
			Now float64 `json:"now"`
		}
		rec := get(m, "/api/now")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Now).To(BeNumerically("~", 0.003, 1e-9))
	})

	It("should answer 404 for an unknown component", func() {
		build()

		Expect(get(m, "/api/component/nothing").Code).
			To(Equal(http.StatusNotFound))
		Expect(get(m, "/api/field/"+url.PathEscape(`{"comp_name":"nothing"}`)).Code).
			To(Equal(http.StatusNotFound))
		Expect(get(m, "/api/field/notjson").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should pause and continue the engine", func() {
		build()

		Expect(get(m, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get(m, "/api/continue").Code).To(Equal(http.StatusOK))

		_, err := s.Run()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should follow the simulated time in a progress bar", func() {
		build()

		tracker := m.TrackSimTime("Simulation", s.Engine(), s.Params().EndTime())
		sub := s.Engine().AcceptHook(tracker)
		defer sub.Unsubscribe()

		_, err := s.Run()
		Expect(err).NotTo(HaveOccurred())

		finished, total := tracker.Bar().Progress()
		Expect(total).To(Equal(uint64(3000)))
		Expect(finished).To(BeNumerically(">", 0))
		Expect(finished).To(BeNumerically("<=", total))

		var bars []progressSnapshot
		rec := get(m, "/api/progress")
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Simulation"))

		m.CompleteProgressBar(tracker.Bar())
		rec = get(m, "/api/progress")
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(BeEmpty())
	})

	It("should report the process resources", func() {
		var rsp resourceRsp
		rec := get(m, "/api/resource")
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a CPU profile", func() {
		rec := get(m, "/api/profile")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
	})

	It("should serve on a local port", func() {
		addr, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer m.StopServer()

		rsp, err := http.Get(addr + "/api/progress")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
