package sim

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// StationID names a station in the network.
type StationID string

// Role tells the driver how a station exchanges customers with the outside world.
type Role string

const (
	// RoleSource stations receive external Poisson arrivals. A source without routes
	// releases customers after service, which is how single-station models are built.
	RoleSource Role = "source"
	// RoleQueue stations are intermediate; they always route onwards.
	RoleQueue Role = "queue"
	// RoleSink stations release customers after service. A sink with a zero service
	// rate is a pure absorber with no servers.
	RoleSink Role = "sink"
)

// ValidRoles is the set of recognized station roles.
var ValidRoles = map[Role]bool{RoleSource: true, RoleQueue: true, RoleSink: true}

// LoadState is the derived occupancy of a station.
type LoadState string

const (
	LoadEmpty           LoadState = "empty"            // no busy servers, empty line
	LoadPartiallyLoaded LoadState = "partially_loaded" // some busy servers, empty line
	LoadSaturated       LoadState = "saturated"        // all servers busy, customers waiting
)

// Station is a service point with Servers parallel servers and an unbounded FIFO line.
// Its state is mutated only by the Simulator that owns it.
type Station struct {
	ID          StationID
	Role        Role
	ServiceRate float64
	Servers     int

	service Distribution
	rng     *rand.Rand
	metrics *Metrics

	slots []*Customer // nil = idle
	free  []int       // stack of idle slot indices, lowest index on top
	busy  int
	line  WaitQueue
}

// StationSnapshot is a read-only copy of a station's occupancy.
type StationSnapshot struct {
	ID      StationID
	Servers int
	Busy    int
	Waiting int
	State   LoadState
}

func newStation(spec StationSpec, rng *rand.Rand, metrics *Metrics) (*Station, error) {
	s := &Station{
		ID:          spec.ID,
		Role:        spec.Role,
		ServiceRate: spec.ServiceRate,
		Servers:     spec.Servers,
		rng:         rng,
		metrics:     metrics,
	}
	if spec.absorbing() {
		s.Servers = 0
		return s, nil
	}
	dist, err := NewDistribution(spec.Distribution, spec.ServiceRate, spec.Shape)
	if err != nil {
		return nil, fmt.Errorf("station %q: %w", spec.ID, err)
	}
	s.service = dist
	s.slots = make([]*Customer, spec.Servers)
	s.free = make([]int, spec.Servers)
	for i := range s.free {
		s.free[i] = spec.Servers - 1 - i
	}
	return s, nil
}

// Absorbing reports whether customers leave the network on arrival, without service.
func (s *Station) Absorbing() bool {
	return s.Servers == 0
}

// OnArrival admits c at time now. If a server is idle the customer starts service
// immediately and the returned event is its departure; otherwise it joins the line
// and nil is returned.
func (s *Station) OnArrival(c *Customer, now float64) (*Event, error) {
	c.visit(s.ID, now)
	if err := s.metrics.RecordArrival(s.ID); err != nil {
		return nil, err
	}
	if s.Absorbing() {
		return nil, nil
	}
	if len(s.free) > 0 {
		slot := s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
		return s.startService(c, slot, now)
	}
	s.line.Enqueue(c)
	logrus.Debugf("[t=%.4f] customer %d waits at %s (line=%d)", now, c.ID, s.ID, s.line.Len())
	return nil, nil
}

// OnDeparture frees slot, which must hold customer id, and hands it to the head of
// the line if anyone is waiting. It returns the departing customer and, when the
// slot was refilled, the new occupant's departure event.
func (s *Station) OnDeparture(slot int, id CustomerID, now float64) (*Customer, *Event, error) {
	if slot < 0 || slot >= len(s.slots) {
		return nil, nil, fmt.Errorf("station %q: slot %d out of range [0,%d)", s.ID, slot, len(s.slots))
	}
	c := s.slots[slot]
	if c == nil || c.ID != id {
		return nil, nil, fmt.Errorf("station %q: slot %d is not held by customer %d", s.ID, slot, id)
	}
	s.slots[slot] = nil
	s.busy--
	if err := s.metrics.RecordDeparture(s.ID, now-c.StationArrival); err != nil {
		return nil, nil, err
	}
	if err := s.metrics.ObserveBusy(s.ID, now, s.busy); err != nil {
		return nil, nil, err
	}

	if next := s.line.Dequeue(); next != nil {
		ev, err := s.startService(next, slot, now)
		return c, ev, err
	}
	s.free = append(s.free, slot)
	return c, nil, nil
}

func (s *Station) startService(c *Customer, slot int, now float64) (*Event, error) {
	s.slots[slot] = c
	s.busy++
	wait := now - c.StationArrival
	c.Waits[s.ID] += wait
	if err := s.metrics.RecordWait(s.ID, wait); err != nil {
		return nil, err
	}
	if err := s.metrics.ObserveBusy(s.ID, now, s.busy); err != nil {
		return nil, err
	}
	ev := NewDepartureEvent(now+s.service.Sample(s.rng), c.ID, s.ID, slot)
	return &ev, nil
}

// Busy returns the number of occupied server slots.
func (s *Station) Busy() int { return s.busy }

// Waiting returns the length of the waiting line.
func (s *Station) Waiting() int { return s.line.Len() }

// InSystem returns customers in service plus customers waiting.
func (s *Station) InSystem() int { return s.busy + s.line.Len() }

// SlotOccupant returns the customer in service at slot, or false if the slot is idle.
func (s *Station) SlotOccupant(slot int) (CustomerID, bool) {
	if slot < 0 || slot >= len(s.slots) || s.slots[slot] == nil {
		return 0, false
	}
	return s.slots[slot].ID, true
}

// State derives the station's LoadState.
func (s *Station) State() LoadState {
	switch {
	case s.busy == 0 && s.line.Len() == 0:
		return LoadEmpty
	case s.line.Len() == 0:
		return LoadPartiallyLoaded
	default:
		return LoadSaturated
	}
}

// WorkConserving reports whether no server idles while customers wait.
func (s *Station) WorkConserving() bool {
	return s.line.Len() == 0 || s.busy == s.Servers
}

// Snapshot copies the station's occupancy.
func (s *Station) Snapshot() StationSnapshot {
	return StationSnapshot{ID: s.ID, Servers: s.Servers, Busy: s.busy, Waiting: s.line.Len(), State: s.State()}
}
