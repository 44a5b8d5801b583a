package scenario

import (
	"errors"
	"fmt"

	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/metrics"
	"github.com/sarchlab/hiddenstations/propagation"
	"github.com/sarchlab/hiddenstations/sim"
	"github.com/sarchlab/hiddenstations/traffic"
)

// seedStride separates the backoff streams of the stations of one run.
const seedStride = 104729

// A Station is one node of the scenario.
type Station struct {
	Name     string
	Role     Role
	Index    int
	Position propagation.Vector
	MAC      *mac.MAC
	Host     *traffic.Host
}

// A Simulation is one built run. It owns its engine, random streams and
// collector, so several simulations can run in parallel.
type Simulation struct {
	params     Params
	engine     *sim.SerialEngine
	medium     *mac.Medium
	vis        *propagation.Visibility
	ap         int
	stations   []*Station
	byName     map[string]*Station
	generators []*traffic.Generator
	servers    []*traffic.Server
	sinks      []*traffic.ReplySink
	collector  *metrics.Collector
	subs       []*sim.Subscription
	ran        bool
}

// Builder can build simulations.
type Builder struct {
	params      Params
	topology    *Topology
	observers   []sim.Hook
	engineHooks []sim.Hook
}

// MakeBuilder returns a builder with the default parameters.
func MakeBuilder() Builder {
	return Builder{params: DefaultParams()}
}

// WithParams sets the parameters.
func (b Builder) WithParams(p Params) Builder {
	b.params = p
	return b
}

// WithTopology sets the topology. Without one the built-in scenario named by
// the parameters is used.
func (b Builder) WithTopology(t Topology) Builder {
	b.topology = &t
	return b
}

// WithObserver subscribes a hook to the medium, every MAC and every
// generator for the duration of the run.
func (b Builder) WithObserver(h sim.Hook) Builder {
	b.observers = append(b.observers[:len(b.observers):len(b.observers)], h)
	return b
}

// WithEngineHook subscribes a hook to the engine for the duration of the
// run.
func (b Builder) WithEngineHook(h sim.Hook) Builder {
	b.engineHooks = append(b.engineHooks[:len(b.engineHooks):len(b.engineHooks)], h)
	return b
}

// Build validates the configuration and creates the simulation. Every
// configuration error is reported here, before any event is scheduled.
func Build(p Params, t Topology) (*Simulation, error) {
	return MakeBuilder().WithParams(p).WithTopology(t).Build()
}

// Build creates the simulation.
func (b Builder) Build() (*Simulation, error) {
	p := b.params
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var topo Topology
	if b.topology != nil {
		topo = *b.topology
	} else {
		t, err := Canonical(p)
		if err != nil {
			return nil, err
		}

		topo = t
	}

	r, err := topo.resolve(p)
	if err != nil {
		return nil, err
	}

	vis := propagation.NewVisibility(
		propagation.RangeModel{MaxRange: p.Range}, r.positions)
	if err := vis.VerifyHidden(r.hidden, r.ap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := &Simulation{
		params:    p,
		engine:    sim.NewSerialEngine(),
		vis:       vis,
		ap:        r.ap,
		byName:    make(map[string]*Station),
		collector: metrics.NewCollector(),
	}
	s.medium = mac.NewMedium("Medium", s.engine, vis)

	idGen := sim.NewSequentialIDGenerator()
	s.buildStations(topo, idGen)

	if err := s.buildServers(r, idGen); err != nil {
		return nil, err
	}

	if err := s.buildFlows(r, idGen); err != nil {
		return nil, err
	}

	for _, h := range b.observers {
		s.Observe(h)
	}

	for _, h := range b.engineHooks {
		s.subs = append(s.subs, s.engine.AcceptHook(h))
	}

	return s, nil
}

func (s *Simulation) buildStations(topo Topology, idGen sim.IDGenerator) {
	cfg := s.params.MACConfig()

	for i, spec := range topo.Stations {
		m := mac.MakeBuilder().
			WithEngine(s.engine).
			WithMedium(s.medium).
			WithConfig(cfg).
			WithSeed(s.params.Seed + int64(i)*seedStride).
			WithIDGenerator(idGen).
			WithStation(i).
			Build(sim.BuildName(spec.Name, "MAC"))

		host := traffic.NewHost(spec.Name, i, m)
		m.SetUpper(host)
		host.SetAccessPoint(s.ap)

		st := &Station{
			Name:     spec.Name,
			Role:     spec.Role,
			Index:    i,
			Position: spec.Position,
			MAC:      m,
			Host:     host,
		}
		s.stations = append(s.stations, st)
		s.byName[spec.Name] = st
	}
}

func (s *Simulation) buildServers(r *resolved, idGen sim.IDGenerator) error {
	payloads := make(map[string]int)
	for _, f := range r.flows {
		for _, c := range r.servers {
			if c.Station == f.Destination && c.Port == f.Port {
				payloads[c.ID] = f.PayloadSize
			}
		}
	}

	for _, c := range r.servers {
		payload, found := payloads[c.ID]
		if !found {
			payload = s.params.PayloadSize
		}

		if err := s.collector.RegisterCounter(c.ID, c.Label, payload); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		srv, err := traffic.NewServer(c, s.stations[c.Station].Host, s.collector, idGen)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		s.servers = append(s.servers, srv)
	}

	return nil
}

func (s *Simulation) buildFlows(r *resolved, idGen sim.IDGenerator) error {
	sinks := make(map[[2]int]bool)

	for _, f := range r.flows {
		src := s.stations[f.Source]

		if f.Mode == traffic.Echo {
			err := s.collector.RegisterCounter(
				f.ReplyCounterID(), f.Label, f.PayloadSize)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}

			key := [2]int{f.Source, f.ReplyPort}
			if !sinks[key] {
				sink, err := traffic.NewReplySink(src.Host, f.ReplyPort, s.collector)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
				}

				sinks[key] = true
				s.sinks = append(s.sinks, sink)
			}
		}

		g := traffic.NewGenerator(
			sim.BuildName(src.Name, "Gen."+f.ID), s.engine, f, src.Host, idGen)
		s.generators = append(s.generators, g)
	}

	return nil
}

// Observe subscribes a hook to the medium, every MAC and every generator.
// The subscriptions end with the run.
func (s *Simulation) Observe(h sim.Hook) {
	s.subs = append(s.subs, s.medium.AcceptHook(h))

	for _, st := range s.stations {
		s.subs = append(s.subs, st.MAC.AcceptHook(h))
	}

	for _, g := range s.generators {
		s.subs = append(s.subs, g.AcceptHook(h))
	}
}

// Run starts the generators, runs until WarmUp + SimulationTime and returns
// the throughput over SimulationTime. A simulation runs once.
func (s *Simulation) Run() (metrics.Report, error) {
	if s.ran {
		return metrics.Report{}, errors.New("simulation has already run")
	}

	s.ran = true
	defer s.teardown()

	for _, g := range s.generators {
		g.Start()
	}

	if err := s.engine.RunUntil(s.params.EndTime()); err != nil {
		return metrics.Report{}, err
	}

	s.engine.Finished()

	return s.collector.Report(sim.VTimeInSec(s.params.SimulationTime)), nil
}

func (s *Simulation) teardown() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	s.subs = nil
}

// Params returns the parameters of the run.
func (s *Simulation) Params() Params {
	return s.params
}

// Engine returns the engine of the run.
func (s *Simulation) Engine() sim.Engine {
	return s.engine
}

// Medium returns the shared channel.
func (s *Simulation) Medium() *mac.Medium {
	return s.medium
}

// Visibility returns the visibility graph.
func (s *Simulation) Visibility() *propagation.Visibility {
	return s.vis
}

// AP returns the access point.
func (s *Simulation) AP() *Station {
	return s.stations[s.ap]
}

// Stations returns every station in index order.
func (s *Simulation) Stations() []*Station {
	return s.stations
}

// Station finds a station by name.
func (s *Simulation) Station(name string) (*Station, bool) {
	st, found := s.byName[name]
	return st, found
}

// Generators returns the traffic generators.
func (s *Simulation) Generators() []*traffic.Generator {
	return s.generators
}

// Servers returns the servers.
func (s *Simulation) Servers() []*traffic.Server {
	return s.servers
}

// Collector returns the delivery counters.
func (s *Simulation) Collector() *metrics.Collector {
	return s.collector
}

// Components lists the simulated components.
func (s *Simulation) Components() []sim.Component {
	comps := []sim.Component{s.medium}
	for _, st := range s.stations {
		comps = append(comps, st.MAC)
	}

	for _, g := range s.generators {
		comps = append(comps, g)
	}

	return comps
}

// ActiveSubscriptions returns the number of hooks that are still attached.
func (s *Simulation) ActiveSubscriptions() int {
	return len(s.subs)
}
