package scenario

import (
	"fmt"
	"sort"

	"github.com/sarchlab/hiddenstations/propagation"
)

// The names of the built-in scenarios.
const (
	// ScenarioSaturated has four hidden clients saturating one AP port each.
	ScenarioSaturated = "saturated"

	// ScenarioEchoOnce has four hidden echo clients sending one frame each
	// at the same instant.
	ScenarioEchoOnce = "echo-once"

	// ScenarioEchoStaggered has four hidden echo clients starting one
	// second apart.
	ScenarioEchoStaggered = "echo-staggered"

	// ScenarioTwoHidden has two hidden clients on opposite sides of the AP.
	ScenarioTwoHidden = "two-hidden"

	// ScenarioEchoMesh runs an echo server on every client and has every
	// client echo to the other three through the AP.
	ScenarioEchoMesh = "echo-mesh"
)

// firstReplyPort is the first client port echo replies come back to.
const firstReplyPort = 49153

type builtin func(p Params) Topology

var builtins = map[string]builtin{
	ScenarioSaturated:     saturated,
	ScenarioEchoOnce:      echoOnce,
	ScenarioEchoStaggered: echoStaggered,
	ScenarioTwoHidden:     twoHidden,
	ScenarioEchoMesh:      echoMesh,
}

// Names lists the built-in scenarios.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Canonical returns the topology of the built-in scenario named by the
// parameters.
func Canonical(p Params) (Topology, error) {
	b, found := builtins[p.Scenario]
	if !found {
		return Topology{}, fmt.Errorf("%w: unknown scenario %q, choose one of %v",
			ErrInvalidConfig, p.Scenario, Names())
	}

	return b(p), nil
}

// compass puts the AP in the middle and the clients on the compass points,
// five units away. Neighbouring clients are 7.07 units apart.
func compass() []StationSpec {
	return []StationSpec{
		{Name: "AP", Role: RoleAP, Position: propagation.Vector{X: 5, Y: 5}},
		{Name: "STA1", Role: RoleSTA, Position: propagation.Vector{X: 5, Y: 10}},
		{Name: "STA2", Role: RoleSTA, Position: propagation.Vector{X: 0, Y: 5}},
		{Name: "STA3", Role: RoleSTA, Position: propagation.Vector{X: 5, Y: 0}},
		{Name: "STA4", Role: RoleSTA, Position: propagation.Vector{X: 10, Y: 5}},
	}
}

func allPairs(names ...string) [][]string {
	var pairs [][]string
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			pairs = append(pairs, []string{names[i], names[j]})
		}
	}

	return pairs
}

// perClientServers gives each client its own AP port, starting at 9.
func perClientServers(t *Topology, echo bool) {
	for i, s := range t.Stations {
		if s.Role != RoleSTA {
			continue
		}

		name := fmt.Sprintf("ServerApp%d", len(t.Servers)+1)
		t.Servers = append(t.Servers, ServerSpec{
			Name:    name,
			Label:   name,
			Station: "AP",
			Port:    9 + len(t.Servers),
			Echo:    echo,
		})
		flow := FlowSpec{
			Name:   fmt.Sprintf("%s->%s", s.Name, name),
			Source: t.Stations[i].Name,
			Server: name,
		}
		if echo {
			flow.Label = s.Name + " Echo"
		}

		t.Flows = append(t.Flows, flow)
	}
}

func saturated(p Params) Topology {
	t := Topology{
		Stations: compass(),
		Hidden:   allPairs("STA1", "STA2", "STA3", "STA4"),
	}
	perClientServers(&t, false)

	return t
}

func echoOnce(p Params) Topology {
	t := Topology{
		Stations: compass(),
		Hidden:   allPairs("STA1", "STA2", "STA3", "STA4"),
	}
	perClientServers(&t, true)

	packets := intOr(p.NPackets, 1)
	for i := range t.Flows {
		t.Flows[i].MaxPackets = packets
		t.Flows[i].Interval = 1
	}

	return t
}

func echoStaggered(p Params) Topology {
	t := Topology{
		Stations: compass(),
		Hidden:   allPairs("STA1", "STA2", "STA3", "STA4"),
	}
	perClientServers(&t, true)

	packets := intOr(p.NPackets, 3)
	for i := range t.Flows {
		t.Flows[i].MaxPackets = packets
		t.Flows[i].Interval = 0.1
		t.Flows[i].Start = At(p.WarmUp + float64(i))
	}

	return t
}

func twoHidden(p Params) Topology {
	t := Topology{
		Stations: []StationSpec{
			{Name: "AP", Role: RoleAP, Position: propagation.Vector{X: 5, Y: 5}},
			{Name: "STA1", Role: RoleSTA, Position: propagation.Vector{X: 0, Y: 5}},
			{Name: "STA2", Role: RoleSTA, Position: propagation.Vector{X: 10, Y: 5}},
		},
		Hidden: allPairs("STA1", "STA2"),
	}
	perClientServers(&t, false)

	return t
}

func echoMesh(p Params) Topology {
	t := Topology{
		Stations: compass(),
		Hidden:   allPairs("STA1", "STA2", "STA3", "STA4"),
	}

	var clients []string
	for _, s := range t.Stations {
		if s.Role != RoleSTA {
			continue
		}

		clients = append(clients, s.Name)
		t.Servers = append(t.Servers, ServerSpec{
			Name:    fmt.Sprintf("ServerApp%d", len(t.Servers)+1),
			Station: s.Name,
			Port:    9,
			Echo:    true,
		})
	}

	for _, src := range clients {
		replyPort := firstReplyPort
		for _, srv := range t.Servers {
			if srv.Station == src {
				continue
			}

			t.Flows = append(t.Flows, FlowSpec{
				Name:      fmt.Sprintf("%s->%s", src, srv.Name),
				Label:     fmt.Sprintf("%s Echo from %s", src, srv.Station),
				Source:    src,
				Server:    srv.Name,
				ReplyPort: replyPort,
			})
			replyPort++
		}
	}

	return t
}
