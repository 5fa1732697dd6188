// sim/simulator.go
package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/queuesim/queuesim/sim/trace"
)

// SimState is the driver's lifecycle state.
type SimState string

const (
	StateRunning  SimState = "running"
	StateFinished SimState = "finished"
)

// Observer receives a copy of every processed event together with the resulting
// state of the station it touched. Observers cannot mutate the run.
type Observer func(ev Event, station StationSnapshot)

// SimConfig parameterizes one simulation run.
type SimConfig struct {
	ArrivalRates map[StationID]float64 // external arrival rate λ for every source
	Horizon      float64               // events after this time are not processed; +Inf requires MaxCustomers
	Key          SimulationKey
	MaxCustomers int // cap on external arrivals, 0 = unlimited
	Observer     Observer
	Trace        *trace.SimulationTrace // nil disables routing traces
}

// Simulator is the core object that holds simulation time, station state and the event loop.
// A Simulator is single-use and not safe for concurrent use.
type Simulator struct {
	clock   float64
	horizon float64
	state   SimState

	topo      *Topology
	stations  map[StationID]*Station
	events    *EventQueue
	customers map[CustomerID]*Customer

	rng      *PartitionedRNG
	router   *rand.Rand
	arrivals map[StationID]*Sampler
	rates    map[StationID]float64

	maxCustomers int
	generated    int
	nextCustomer CustomerID

	metrics  *Metrics
	summary  MetricsSummary
	observer Observer
	trace    *trace.SimulationTrace
}

// NewSimulator validates cfg against topo, creates the stations and seeds one external
// arrival per source.
func NewSimulator(topo *Topology, cfg SimConfig) (*Simulator, error) {
	if topo == nil {
		return nil, fmt.Errorf("topology must not be nil")
	}
	if math.IsNaN(cfg.Horizon) || cfg.Horizon <= 0 {
		return nil, fmt.Errorf("horizon must be > 0, got %g", cfg.Horizon)
	}
	if math.IsInf(cfg.Horizon, 1) && cfg.MaxCustomers <= 0 {
		return nil, fmt.Errorf("an infinite horizon needs a positive customer cap")
	}
	if cfg.MaxCustomers < 0 {
		return nil, fmt.Errorf("max customers must be >= 0, got %d", cfg.MaxCustomers)
	}

	s := &Simulator{
		horizon:      cfg.Horizon,
		state:        StateRunning,
		topo:         topo,
		stations:     make(map[StationID]*Station),
		events:       NewEventQueue(),
		customers:    make(map[CustomerID]*Customer),
		rng:          NewPartitionedRNG(cfg.Key),
		arrivals:     make(map[StationID]*Sampler),
		rates:        make(map[StationID]float64),
		maxCustomers: cfg.MaxCustomers,
		metrics:      NewMetrics(topo),
		observer:     cfg.Observer,
		trace:        cfg.Trace,
	}
	s.router = s.rng.ForSubsystem(SubsystemRouter)

	for id := range cfg.ArrivalRates {
		spec, ok := topo.Station(id)
		if !ok {
			return nil, &TopologyError{Station: id, Reason: "arrival rate given for an undefined station"}
		}
		if spec.Role != RoleSource {
			return nil, &TopologyError{Station: id, Reason: "arrival rate given for a non-source station"}
		}
	}

	for _, spec := range topo.Stations() {
		st, err := newStation(spec, s.rng.ForSubsystem(SubsystemService(spec.ID)), s.metrics)
		if err != nil {
			return nil, err
		}
		s.stations[spec.ID] = st
		if spec.Role != RoleSource {
			continue
		}
		rate := cfg.ArrivalRates[spec.ID]
		if !(rate > 0) || math.IsInf(rate, 0) {
			return nil, &InvalidRateError{What: fmt.Sprintf("arrival (source %q)", spec.ID), Rate: rate}
		}
		s.rates[spec.ID] = rate
		s.arrivals[spec.ID] = NewSampler(s.rng.ForSubsystem(SubsystemArrivals(spec.ID)))
	}

	for _, id := range topo.Sources() {
		if err := s.scheduleExternalArrival(id, 0); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Run processes events in time order until none remain or the next one lies beyond the
// horizon, then finalizes the metrics. Any dispatch failure aborts the run with a
// *DispatchError; there is no partial result.
func (s *Simulator) Run() (MetricsSummary, error) {
	if s.state == StateFinished {
		return MetricsSummary{}, fmt.Errorf("simulation already finished")
	}
	logrus.Infof("[t=%.4f] Starting simulation: %d stations, horizon=%g, max customers=%d",
		s.clock, len(s.stations), s.horizon, s.maxCustomers)

	for s.state == StateRunning {
		ev, ok := s.events.PopNext()
		if !ok {
			s.finish(s.clock)
			break
		}
		if ev.Time > s.horizon {
			s.finish(s.horizon)
			break
		}
		if ev.Time < s.clock {
			s.state = StateFinished
			return MetricsSummary{}, &DispatchError{Event: ev, Err: fmt.Errorf("clock went backwards: %g < %g", ev.Time, s.clock)}
		}
		s.clock = ev.Time
		logrus.Debugf("[t=%.4f] Executing %s", s.clock, ev)
		if err := s.dispatch(ev); err != nil {
			s.state = StateFinished
			return MetricsSummary{}, &DispatchError{Event: ev, Err: err}
		}
		s.metrics.EventsProcessed++
	}
	logrus.Infof("[t=%.4f] Simulation ended: %d events, %d customers entered, %d left, %d pending events dropped",
		s.clock, s.metrics.EventsProcessed, s.metrics.ExternalArrivals, s.metrics.Exited, s.events.Len())
	return s.summary, nil
}

func (s *Simulator) finish(end float64) {
	s.clock = end
	s.state = StateFinished
	s.summary = s.metrics.Finalize(end)
}

// dispatch executes ev against its station.
func (s *Simulator) dispatch(ev Event) error {
	st, ok := s.stations[ev.StationID]
	if !ok {
		return &UnknownStationError{Station: ev.StationID}
	}
	var err error
	switch ev.Kind {
	case EventArrival:
		err = s.handleArrival(st, ev)
	case EventDeparture:
		err = s.handleDeparture(st, ev)
	default:
		err = fmt.Errorf("unknown event kind %v", ev.Kind)
	}
	if err != nil {
		return err
	}
	if err := s.metrics.RecordQueueSample(st.ID, s.clock, st.Waiting(), st.InSystem()); err != nil {
		return err
	}
	if !st.WorkConserving() {
		return fmt.Errorf("station %q idles %d servers with %d customers waiting", st.ID, st.Servers-st.Busy(), st.Waiting())
	}
	if s.observer != nil {
		s.observer(ev, st.Snapshot())
	}
	return nil
}

func (s *Simulator) handleArrival(st *Station, ev Event) error {
	var c *Customer
	if ev.External {
		if st.Role != RoleSource {
			return fmt.Errorf("external arrival at non-source station %q", st.ID)
		}
		c = NewCustomer(ev.CustomerID, ev.Time)
		s.customers[c.ID] = c
		s.metrics.ExternalArrivals++
		// Sources keep generating until the horizon or the customer cap.
		if err := s.scheduleExternalArrival(st.ID, ev.Time); err != nil {
			return err
		}
	} else {
		var ok bool
		if c, ok = s.customers[ev.CustomerID]; !ok {
			return fmt.Errorf("arrival of unknown customer %d", ev.CustomerID)
		}
	}

	dep, err := st.OnArrival(c, ev.Time)
	if err != nil {
		return err
	}
	if st.Absorbing() {
		if err := s.metrics.RecordDeparture(st.ID, 0); err != nil {
			return err
		}
		s.release(c, ev.Time)
		return nil
	}
	if dep != nil {
		s.events.Push(*dep)
	}
	return nil
}

func (s *Simulator) handleDeparture(st *Station, ev Event) error {
	c, next, err := st.OnDeparture(ev.Slot, ev.CustomerID, ev.Time)
	if err != nil {
		return err
	}
	if next != nil {
		s.events.Push(*next)
	}

	to, ok := s.topo.NextStation(st.ID, s.router)
	if s.trace != nil {
		s.trace.RecordRouting(trace.RoutingRecord{
			Time:       ev.Time,
			CustomerID: int64(c.ID),
			From:       string(st.ID),
			To:         string(to),
			Exit:       !ok,
		})
	}
	if !ok {
		s.release(c, ev.Time)
		return nil
	}
	if _, known := s.stations[to]; !known {
		return &UnknownStationError{Station: to}
	}
	s.events.Push(NewArrivalEvent(ev.Time, c.ID, to))
	return nil
}

// release finalizes a customer leaving the network.
func (s *Simulator) release(c *Customer, now float64) {
	c.depart(now)
	s.metrics.RecordExit(c)
	delete(s.customers, c.ID)
	logrus.Debugf("[t=%.4f] customer %d left after %.4f via %v", now, c.ID, c.SystemTime(), c.Route)
}

// scheduleExternalArrival arms the next external arrival at source after now.
func (s *Simulator) scheduleExternalArrival(source StationID, now float64) error {
	if s.maxCustomers > 0 && s.generated >= s.maxCustomers {
		return nil
	}
	dt, err := s.arrivals[source].SampleInterarrival(s.rates[source])
	if err != nil {
		return err
	}
	t := now + dt
	if t > s.horizon {
		return nil
	}
	s.generated++
	ev := NewArrivalEvent(t, s.nextCustomer, source)
	ev.External = true
	s.nextCustomer++
	s.events.Push(ev)
	return nil
}

// Clock returns the current simulation time.
func (s *Simulator) Clock() float64 { return s.clock }

// State returns the driver state.
func (s *Simulator) State() SimState { return s.state }

// Pending returns the number of scheduled but unprocessed events.
func (s *Simulator) Pending() int { return s.events.Len() }

// CustomersInSystem returns the customers currently inside the network.
func (s *Simulator) CustomersInSystem() int { return len(s.customers) }

// Snapshot returns the occupancy of station id.
func (s *Simulator) Snapshot(id StationID) (StationSnapshot, bool) {
	st, ok := s.stations[id]
	if !ok {
		return StationSnapshot{}, false
	}
	return st.Snapshot(), true
}
