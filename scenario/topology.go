package scenario

import (
	"fmt"

	"github.com/sarchlab/hiddenstations/propagation"
	"github.com/sarchlab/hiddenstations/sim"
	"github.com/sarchlab/hiddenstations/traffic"
)

// Role tells whether a station is the access point or a client.
type Role string

// The roles of a station.
const (
	RoleAP  Role = "ap"
	RoleSTA Role = "sta"
)

// StationSpec places one station.
type StationSpec struct {
	Name     string             `json:"name" yaml:"name"`
	Role     Role               `json:"role" yaml:"role"`
	Position propagation.Vector `json:"position" yaml:"position"`
}

// ServerSpec binds a server to a station port. A missing start or stop takes
// the scenario's server start and end time.
type ServerSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Label   string   `json:"label" yaml:"label"`
	Station string   `json:"station" yaml:"station"`
	Port    int      `json:"port" yaml:"port"`
	Start   *float64 `json:"start,omitempty" yaml:"start,omitempty"`
	Stop    *float64 `json:"stop,omitempty" yaml:"stop,omitempty"`
	Echo    bool     `json:"echo" yaml:"echo"`
}

// FlowSpec sends frames from a station to a server. Zero or missing values
// take the scenario's parameters, except that an explicit start or stop of 0
// means t=0.
type FlowSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Label       string   `json:"label" yaml:"label"`
	Source      string   `json:"source" yaml:"source"`
	Server      string   `json:"server" yaml:"server"`
	PayloadSize int      `json:"payloadSize" yaml:"payloadSize"`
	Interval    float64  `json:"interval" yaml:"interval"`
	MaxPackets  int      `json:"maxPackets" yaml:"maxPackets"`
	Start       *float64 `json:"start,omitempty" yaml:"start,omitempty"`
	Stop        *float64 `json:"stop,omitempty" yaml:"stop,omitempty"`

	// ReplyPort is where the client receives echo replies. Zero reuses the
	// server's port number.
	ReplyPort int `json:"replyPort" yaml:"replyPort"`
}

// A Topology lists the stations, servers and flows of a scenario.
type Topology struct {
	Stations []StationSpec `json:"stations" yaml:"stations"`
	Servers  []ServerSpec  `json:"servers" yaml:"servers"`
	Flows    []FlowSpec    `json:"flows" yaml:"flows"`

	// Hidden lists the station pairs that must be hidden from each other
	// while both reach the AP.
	Hidden [][]string `json:"hidden" yaml:"hidden"`
}

// resolved is a topology checked against the parameters, with names turned
// into indices and defaults filled in.
type resolved struct {
	positions []propagation.Vector
	ap        int
	index     map[string]int
	servers   []traffic.ServerConfig
	flows     []traffic.Flow
	hidden    []propagation.Pair
}

func (t Topology) resolve(p Params) (*resolved, error) {
	r := &resolved{ap: -1, index: make(map[string]int)}

	if err := t.resolveStations(r); err != nil {
		return nil, err
	}

	serverByName, err := t.resolveServers(p, r)
	if err != nil {
		return nil, err
	}

	if err := t.resolveFlows(p, r, serverByName); err != nil {
		return nil, err
	}

	for _, h := range t.Hidden {
		if len(h) != 2 {
			return nil, fmt.Errorf("%w: hidden pair %v does not name two stations",
				ErrInvalidConfig, h)
		}

		a, okA := r.index[h[0]]
		b, okB := r.index[h[1]]
		if !okA || !okB {
			return nil, fmt.Errorf("%w: hidden pair %v names an unknown station",
				ErrInvalidConfig, h)
		}

		switch {
		case a == b:
			return nil, fmt.Errorf("%w: hidden pair %v names one station twice",
				ErrInvalidConfig, h)
		case a == r.ap || b == r.ap:
			return nil, fmt.Errorf("%w: hidden pair %v includes the access point",
				ErrInvalidConfig, h)
		case a > b:
			a, b = b, a
		}

		r.hidden = append(r.hidden, propagation.Pair{A: a, B: b})
	}

	return r, nil
}

func (t Topology) resolveStations(r *resolved) error {
	if len(t.Stations) < 2 {
		return fmt.Errorf("%w: at least two stations are needed", ErrInvalidConfig)
	}

	for i, s := range t.Stations {
		if s.Name == "" {
			return fmt.Errorf("%w: station %d has no name", ErrInvalidConfig, i)
		}

		if err := sim.ValidateElementName(s.Name); err != nil {
			return fmt.Errorf("%w: station %d: %v", ErrInvalidConfig, i, err)
		}

		if _, dup := r.index[s.Name]; dup {
			return fmt.Errorf("%w: duplicate station %q", ErrInvalidConfig, s.Name)
		}

		switch s.Role {
		case RoleAP:
			if r.ap >= 0 {
				return fmt.Errorf("%w: more than one AP", ErrInvalidConfig)
			}

			r.ap = i
		case RoleSTA:
		default:
			return fmt.Errorf("%w: station %q has unknown role %q",
				ErrInvalidConfig, s.Name, s.Role)
		}

		r.index[s.Name] = i
		r.positions = append(r.positions, s.Position)
	}

	if r.ap < 0 {
		return fmt.Errorf("%w: no AP", ErrInvalidConfig)
	}

	return nil
}

func (t Topology) resolveServers(
	p Params,
	r *resolved,
) (map[string]traffic.ServerConfig, error) {
	byName := make(map[string]traffic.ServerConfig)
	ports := make(map[[2]int]string)

	for _, s := range t.Servers {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate server %q", ErrInvalidConfig, s.Name)
		}

		station, found := r.index[s.Station]
		if !found {
			return nil, fmt.Errorf("%w: server %q is on unknown station %q",
				ErrInvalidConfig, s.Name, s.Station)
		}

		key := [2]int{station, s.Port}
		if other, dup := ports[key]; dup {
			return nil, fmt.Errorf("%w: servers %q and %q share port %d",
				ErrInvalidConfig, other, s.Name, s.Port)
		}
		ports[key] = s.Name

		c := traffic.ServerConfig{
			ID:      s.Name,
			Label:   s.Label,
			Station: station,
			Port:    s.Port,
			Start:   instantOr(s.Start, p.ServerStart),
			Stop:    instantOr(s.Stop, float64(p.EndTime())),
			Echo:    s.Echo,
		}
		if c.Label == "" {
			c.Label = s.Name
		}

		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		byName[s.Name] = c
		r.servers = append(r.servers, c)
	}

	return byName, nil
}

func (t Topology) resolveFlows(
	p Params,
	r *resolved,
	servers map[string]traffic.ServerConfig,
) error {
	names := make(map[string]bool)
	payloads := make(map[string]int)
	clientPorts := make(map[[2]int]bool)

	for _, s := range t.Servers {
		st := r.index[s.Station]
		clientPorts[[2]int{st, s.Port}] = true
	}

	for _, fs := range t.Flows {
		if names[fs.Name] {
			return fmt.Errorf("%w: duplicate flow %q", ErrInvalidConfig, fs.Name)
		}
		names[fs.Name] = true

		src, found := r.index[fs.Source]
		if !found {
			return fmt.Errorf("%w: flow %q starts at unknown station %q",
				ErrInvalidConfig, fs.Name, fs.Source)
		}

		server, found := servers[fs.Server]
		if !found {
			return fmt.Errorf("%w: flow %q goes to unknown server %q",
				ErrInvalidConfig, fs.Name, fs.Server)
		}

		f := traffic.Flow{
			ID:          fs.Name,
			Label:       fs.Label,
			Source:      src,
			Destination: server.Station,
			Port:        server.Port,
			PayloadSize: intOr(fs.PayloadSize, p.PayloadSize),
			Interval:    secondsOr(fs.Interval, p.Interval),
			MaxPackets:  intOr(fs.MaxPackets, p.NPackets),
			Start:       instantOr(fs.Start, p.WarmUp),
			Stop:        instantOr(fs.Stop, float64(p.EndTime())),
			ReplyPort:   intOr(fs.ReplyPort, server.Port),
			Mode:        traffic.OneWay,
		}
		if server.Echo {
			f.Mode = traffic.Echo
		}
		if f.Label == "" {
			f.Label = fs.Name
		}

		if err := f.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		if f.Start < server.Start {
			return fmt.Errorf("%w: flow %q starts at %g before server %q at %g",
				ErrInvalidConfig, f.ID, f.Start, server.ID, server.Start)
		}

		if size, seen := payloads[server.ID]; seen && size != f.PayloadSize {
			return fmt.Errorf("%w: flows into server %q differ in payload size",
				ErrInvalidConfig, server.ID)
		}
		payloads[server.ID] = f.PayloadSize

		if f.Mode == traffic.Echo && clientPorts[[2]int{src, f.ReplyPort}] {
			return fmt.Errorf("%w: flow %q needs port %d on %q for replies",
				ErrInvalidConfig, f.ID, f.ReplyPort, fs.Source)
		}

		r.flows = append(r.flows, f)
	}

	return nil
}

func secondsOr(v, def float64) sim.VTimeInSec {
	if v == 0 {
		return sim.VTimeInSec(def)
	}

	return sim.VTimeInSec(v)
}

// instantOr returns the time v points to, or def when v is nil.
func instantOr(v *float64, def float64) sim.VTimeInSec {
	if v == nil {
		return sim.VTimeInSec(def)
	}

	return sim.VTimeInSec(*v)
}

// At returns a pointer to t, for the start and stop of servers and flows.
func At(t float64) *float64 {
	return &t
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}

	return v
}
