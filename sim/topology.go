package sim

import (
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// RoutingTolerance bounds how far a station's outgoing probabilities may drift from 1.
const RoutingTolerance = 1e-9

// StationSpec describes a station before the network is built.
type StationSpec struct {
	ID           StationID
	Role         Role
	ServiceRate  float64 // μ per server; 0 only for an absorbing sink
	Servers      int     // c >= 1; ignored for an absorbing sink
	Distribution string  // service law, "" = exponential
	Shape        int     // erlang phases
}

func (s StationSpec) absorbing() bool {
	return s.Role == RoleSink && s.ServiceRate == 0
}

// Route is a directed edge of the routing table.
type Route struct {
	From        StationID
	To          StationID
	Probability float64
}

// TopologyBuilder accumulates stations and routes and validates them in Build.
type TopologyBuilder struct {
	specs  []StationSpec
	index  map[StationID]int
	routes []Route
}

// NewTopologyBuilder creates an empty builder.
func NewTopologyBuilder() *TopologyBuilder {
	return &TopologyBuilder{index: make(map[StationID]int)}
}

// AddStation registers a station with exponential service.
func (b *TopologyBuilder) AddStation(id StationID, serviceRate float64, servers int, role Role) error {
	return b.AddStationSpec(StationSpec{ID: id, Role: role, ServiceRate: serviceRate, Servers: servers})
}

// AddStationSpec registers a station. Rates and server counts are checked eagerly.
func (b *TopologyBuilder) AddStationSpec(spec StationSpec) error {
	if spec.ID == "" {
		return &TopologyError{Reason: "station id must not be empty"}
	}
	if _, dup := b.index[spec.ID]; dup {
		return &TopologyError{Station: spec.ID, Reason: "defined twice"}
	}
	if !ValidRoles[spec.Role] {
		return &TopologyError{Station: spec.ID, Reason: fmt.Sprintf("unknown role %q", spec.Role)}
	}
	if !ValidDistributions[spec.Distribution] {
		return &TopologyError{Station: spec.ID, Reason: fmt.Sprintf("unknown distribution %q", spec.Distribution)}
	}
	if !spec.absorbing() {
		if !(spec.ServiceRate > 0) || math.IsInf(spec.ServiceRate, 0) {
			return &InvalidRateError{What: fmt.Sprintf("service (station %q)", spec.ID), Rate: spec.ServiceRate}
		}
		if spec.Servers < 1 {
			return &TopologyError{Station: spec.ID, Reason: fmt.Sprintf("servers must be >= 1, got %d", spec.Servers)}
		}
		if spec.Distribution == DistErlang && spec.Shape < 1 {
			return &TopologyError{Station: spec.ID, Reason: fmt.Sprintf("erlang shape must be >= 1, got %d", spec.Shape)}
		}
	}
	b.index[spec.ID] = len(b.specs)
	b.specs = append(b.specs, spec)
	return nil
}

// AddRoute adds an edge. Station existence is checked in Build so routes may be
// declared before their endpoints.
func (b *TopologyBuilder) AddRoute(from, to StationID, probability float64) error {
	if !(probability > 0 && probability <= 1) {
		return &TopologyError{Station: from, Reason: fmt.Sprintf("route to %q has probability %g outside (0,1]", to, probability)}
	}
	for _, r := range b.routes {
		if r.From == from && r.To == to {
			return &TopologyError{Station: from, Reason: fmt.Sprintf("route to %q defined twice", to)}
		}
	}
	b.routes = append(b.routes, Route{From: from, To: to, Probability: probability})
	return nil
}

// Build validates the network and freezes it. A built Topology is read-only and may be
// shared by concurrently running replicates.
func (b *TopologyBuilder) Build() (*Topology, error) {
	if len(b.specs) == 0 {
		return nil, &TopologyError{Reason: "no stations defined"}
	}
	t := &Topology{
		specs: slices.Clone(b.specs),
		index: make(map[StationID]int, len(b.specs)),
		out:   make(map[StationID][]Route),
		cum:   make(map[StationID][]float64),
	}
	for id, i := range b.index {
		t.index[id] = i
	}

	for _, r := range b.routes {
		if _, ok := t.index[r.From]; !ok {
			return nil, &TopologyError{Station: r.From, Reason: fmt.Sprintf("route to %q starts at an undefined station", r.To)}
		}
		if _, ok := t.index[r.To]; !ok {
			return nil, &TopologyError{Station: r.From, Reason: fmt.Sprintf("route targets undefined station %q", r.To)}
		}
		t.out[r.From] = append(t.out[r.From], r)
	}

	hasSource := false
	for _, spec := range t.specs {
		routes := t.out[spec.ID]
		switch spec.Role {
		case RoleSource:
			hasSource = true
		case RoleSink:
			if len(routes) > 0 {
				return nil, &TopologyError{Station: spec.ID, Reason: "sink stations must not have outgoing routes"}
			}
		case RoleQueue:
			if len(routes) == 0 {
				return nil, &TopologyError{Station: spec.ID, Reason: "station without outgoing routes must be a sink"}
			}
		}
		if len(routes) == 0 {
			continue
		}
		cum := make([]float64, len(routes))
		sum := 0.0
		for i, r := range routes {
			sum += r.Probability
			cum[i] = sum
		}
		if math.Abs(sum-1) > RoutingTolerance {
			return nil, &TopologyError{Station: spec.ID, Reason: fmt.Sprintf("outgoing probabilities sum to %.12g, want 1", sum)}
		}
		cum[len(cum)-1] = 1
		t.cum[spec.ID] = cum
	}
	if !hasSource {
		return nil, &TopologyError{Reason: "network has no source station"}
	}
	if err := t.checkExitsReachable(); err != nil {
		return nil, err
	}
	return t, nil
}

// Topology is a validated, immutable station network with its routing table.
type Topology struct {
	specs []StationSpec
	index map[StationID]int
	out   map[StationID][]Route
	cum   map[StationID][]float64
	graph *simple.WeightedDirectedGraph
}

// checkExitsReachable rejects networks in which a customer could get trapped in a
// cycle with no way out; flow balance has no solution for them.
func (t *Topology) checkExitsReachable() error {
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i := range t.specs {
		g.AddNode(simple.Node(i))
	}
	for from, routes := range t.out {
		for _, r := range routes {
			if r.From == r.To {
				continue // simple graphs have no self loops; they never help reach an exit
			}
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(t.index[from]), simple.Node(t.index[r.To]), r.Probability))
		}
	}
	t.graph = g

	exits := make([]int, 0)
	for i, spec := range t.specs {
		if t.IsExit(spec.ID) {
			exits = append(exits, i)
		}
	}
	for i, spec := range t.specs {
		if t.IsExit(spec.ID) {
			continue
		}
		reachable := false
		for _, e := range exits {
			if topo.PathExistsIn(g, simple.Node(i), simple.Node(e)) {
				reachable = true
				break
			}
		}
		if !reachable {
			return &TopologyError{Station: spec.ID, Reason: "no route leads out of the network"}
		}
	}
	return nil
}

// NextStation draws the next station for a customer leaving from. ok is false when the
// customer leaves the network (from is a sink or has no routes).
func (t *Topology) NextStation(from StationID, rng *rand.Rand) (StationID, bool) {
	routes := t.out[from]
	if len(routes) == 0 {
		return "", false
	}
	cum := t.cum[from]
	u := rng.Float64()
	for i, c := range cum {
		if u < c {
			return routes[i].To, true
		}
	}
	return routes[len(routes)-1].To, true
}

// IsExit reports whether customers leave the network after service at id.
func (t *Topology) IsExit(id StationID) bool {
	return len(t.out[id]) == 0
}

// Station returns the spec of id.
func (t *Topology) Station(id StationID) (StationSpec, bool) {
	i, ok := t.index[id]
	if !ok {
		return StationSpec{}, false
	}
	return t.specs[i], true
}

// Stations returns every station spec in declaration order.
func (t *Topology) Stations() []StationSpec {
	return slices.Clone(t.specs)
}

// StationIDs returns every station ID in declaration order.
func (t *Topology) StationIDs() []StationID {
	ids := make([]StationID, len(t.specs))
	for i, s := range t.specs {
		ids[i] = s.ID
	}
	return ids
}

// Sources returns the IDs of source stations in declaration order.
func (t *Topology) Sources() []StationID {
	ids := make([]StationID, 0)
	for _, s := range t.specs {
		if s.Role == RoleSource {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Routes returns the outgoing edges of id in declaration order.
func (t *Topology) Routes(id StationID) []Route {
	return slices.Clone(t.out[id])
}

// OutgoingSum returns the total outgoing probability of id (0 for exits).
func (t *Topology) OutgoingSum(id StationID) float64 {
	sum := 0.0
	for _, r := range t.out[id] {
		sum += r.Probability
	}
	return sum
}

// Successors returns the distinct stations reachable in one hop from id, excluding id itself.
func (t *Topology) Successors(id StationID) []StationID {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	nodes := t.graph.From(int64(i))
	ids := make([]StationID, 0, nodes.Len())
	for nodes.Next() {
		ids = append(ids, t.specs[nodes.Node().ID()].ID)
	}
	slices.Sort(ids)
	return ids
}

// routingMatrix returns P with P[i][j] the probability of moving from station i to j.
func (t *Topology) routingMatrix() [][]float64 {
	n := len(t.specs)
	p := make([][]float64, n)
	for i := range p {
		p[i] = make([]float64, n)
	}
	for from, routes := range t.out {
		i := t.index[from]
		for _, r := range routes {
			p[i][t.index[r.To]] += r.Probability
		}
	}
	return p
}
