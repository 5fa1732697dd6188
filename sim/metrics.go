// Tracks per-station and network-wide statistics such as:
// waits, station times, busy-server time and the queue-length time series.

package sim

import "fmt"

// QueueSample is one point of a station's queue-length time series.
type QueueSample struct {
	Time     float64
	Waiting  int // customers in the line
	InSystem int // customers in the line plus customers in service
}

// StationMetrics holds the accumulators of a single station.
type StationMetrics struct {
	ID      StationID
	Servers int

	Arrivals      int     // customers admitted
	Departures    int     // service completions (or absorptions)
	ServiceStarts int     // customers that reached a server
	WaitSum       float64 // sum of (service start - arrival) over service starts
	StationTime   float64 // sum of (departure - arrival) over departures

	busyArea   float64 // ∫ busy servers dt
	busyNow    int
	lastChange float64

	Samples []QueueSample
}

// Metrics aggregates statistics about one simulation run for final reporting.
// Written only by the Simulator that owns it.
type Metrics struct {
	stations map[StationID]*StationMetrics
	order    []StationID

	ExternalArrivals int       // customers created at sources
	Exited           int       // customers that left the network
	SojournSum       float64   // sum of network sojourn times over exited customers
	Sojourns         []float64 // per-customer network sojourn times, in exit order
	EventsProcessed  int
}

// NewMetrics creates a collector with accumulators for every station of topo.
func NewMetrics(topo *Topology) *Metrics {
	m := &Metrics{stations: make(map[StationID]*StationMetrics)}
	for _, spec := range topo.Stations() {
		servers := spec.Servers
		if spec.absorbing() {
			servers = 0
		}
		m.stations[spec.ID] = &StationMetrics{
			ID:      spec.ID,
			Servers: servers,
			Samples: []QueueSample{{Time: 0}},
		}
		m.order = append(m.order, spec.ID)
	}
	return m
}

func (m *Metrics) station(id StationID) (*StationMetrics, error) {
	sm, ok := m.stations[id]
	if !ok {
		return nil, &UnknownStationError{Station: id}
	}
	return sm, nil
}

// Station returns the accumulators of id, or nil if id is unknown.
func (m *Metrics) Station(id StationID) *StationMetrics {
	return m.stations[id]
}

// RecordArrival counts a customer admitted at id.
func (m *Metrics) RecordArrival(id StationID) error {
	sm, err := m.station(id)
	if err != nil {
		return err
	}
	sm.Arrivals++
	return nil
}

// RecordWait records the line wait of a customer starting service at id.
func (m *Metrics) RecordWait(id StationID, duration float64) error {
	sm, err := m.station(id)
	if err != nil {
		return err
	}
	if duration < 0 {
		return fmt.Errorf("negative wait %g at station %q", duration, id)
	}
	sm.ServiceStarts++
	sm.WaitSum += duration
	return nil
}

// RecordDeparture records a departure from id after stationTime spent there.
func (m *Metrics) RecordDeparture(id StationID, stationTime float64) error {
	sm, err := m.station(id)
	if err != nil {
		return err
	}
	sm.Departures++
	sm.StationTime += stationTime
	return nil
}

// ObserveBusy integrates the busy-server count up to now, then sets it to busy.
func (m *Metrics) ObserveBusy(id StationID, now float64, busy int) error {
	sm, err := m.station(id)
	if err != nil {
		return err
	}
	sm.busyArea += float64(sm.busyNow) * (now - sm.lastChange)
	sm.busyNow = busy
	sm.lastChange = now
	return nil
}

// RecordQueueSample appends a point to the queue-length series of id. A sample at the
// same time as the previous one replaces it, so the series holds the state in force
// after all simultaneous transitions.
func (m *Metrics) RecordQueueSample(id StationID, time float64, waiting, inSystem int) error {
	sm, err := m.station(id)
	if err != nil {
		return err
	}
	s := QueueSample{Time: time, Waiting: waiting, InSystem: inSystem}
	if n := len(sm.Samples); n > 0 && sm.Samples[n-1].Time == time {
		sm.Samples[n-1] = s
		return nil
	}
	sm.Samples = append(sm.Samples, s)
	return nil
}

// RecordExit records a customer leaving the network.
func (m *Metrics) RecordExit(c *Customer) {
	m.Exited++
	m.SojournSum += c.SystemTime()
	m.Sojourns = append(m.Sojourns, c.SystemTime())
}

// InSystem returns customers that entered the network and have not left.
func (m *Metrics) InSystem() int {
	return m.ExternalArrivals - m.Exited
}

// StationStats is the finalized per-station result.
type StationStats struct {
	ID               StationID `json:"id"`
	MeanWait         float64   `json:"mean_wait"`         // Wq
	MeanSystemTime   float64   `json:"mean_system_time"`  // W at this station
	MeanQueueLength  float64   `json:"mean_queue_length"` // Lq, time-weighted
	MeanInSystem     float64   `json:"mean_in_system"`    // L, time-weighted
	Utilization      float64   `json:"utilization"`       // busy time / (end time * servers)
	Throughput       float64   `json:"throughput"`        // departures / end time
	ArrivalRate      float64   `json:"arrival_rate"`      // arrivals / end time
	Arrivals         int       `json:"arrivals"`
	Departures       int       `json:"departures"`
	InSystemAtCutoff int       `json:"in_system_at_cutoff"`
}

// MetricsSummary is the finalized result of one run.
type MetricsSummary struct {
	EndTime          float64        `json:"end_time"`
	Stations         []StationStats `json:"per_station"`
	ExternalArrivals int            `json:"external_arrivals"`
	Exited           int            `json:"exited"`
	InSystemAtCutoff int            `json:"in_system_at_cutoff"`
	MeanSojourn      float64        `json:"mean_sojourn"`
	SojournP50       float64        `json:"sojourn_p50"`
	SojournP95       float64        `json:"sojourn_p95"`
	SojournP99       float64        `json:"sojourn_p99"`
	EventsProcessed  int            `json:"events_processed"`
}

// Finalize closes every accumulator at end and computes the summary.
// It must be called once, after the driver has finished.
func (m *Metrics) Finalize(end float64) MetricsSummary {
	out := MetricsSummary{
		EndTime:          end,
		Stations:         make([]StationStats, 0, len(m.order)),
		ExternalArrivals: m.ExternalArrivals,
		Exited:           m.Exited,
		InSystemAtCutoff: m.InSystem(),
		EventsProcessed:  m.EventsProcessed,
	}
	if m.Exited > 0 {
		out.MeanSojourn = m.SojournSum / float64(m.Exited)
		out.SojournP50 = CalculatePercentile(m.Sojourns, 50)
		out.SojournP95 = CalculatePercentile(m.Sojourns, 95)
		out.SojournP99 = CalculatePercentile(m.Sojourns, 99)
	}
	for _, id := range m.order {
		sm := m.stations[id]
		sm.busyArea += float64(sm.busyNow) * (end - sm.lastChange)
		sm.lastChange = end

		st := StationStats{ID: id, Arrivals: sm.Arrivals, Departures: sm.Departures}
		if sm.ServiceStarts > 0 {
			st.MeanWait = sm.WaitSum / float64(sm.ServiceStarts)
		}
		if sm.Departures > 0 {
			st.MeanSystemTime = sm.StationTime / float64(sm.Departures)
		}
		st.MeanQueueLength = TimeWeightedMean(sm.Samples, end, func(s QueueSample) int { return s.Waiting })
		st.MeanInSystem = TimeWeightedMean(sm.Samples, end, func(s QueueSample) int { return s.InSystem })
		if n := len(sm.Samples); n > 0 {
			st.InSystemAtCutoff = sm.Samples[n-1].InSystem
		}
		if end > 0 {
			if sm.Servers > 0 {
				st.Utilization = sm.busyArea / (end * float64(sm.Servers))
			}
			st.Throughput = float64(sm.Departures) / end
			st.ArrivalRate = float64(sm.Arrivals) / end
		}
		out.Stations = append(out.Stations, st)
	}
	return out
}
