package sim

import "fmt"

// EventKind tags an Event as an arrival or a departure.
type EventKind int

const (
	EventArrival EventKind = iota
	EventDeparture
)

func (k EventKind) String() string {
	switch k {
	case EventArrival:
		return "Arrival"
	case EventDeparture:
		return "Departure"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a pending state change at one station. Events are values:
// once scheduled they are never mutated.
type Event struct {
	Time       float64   // Simulation time at which the event fires
	Kind       EventKind // Arrival or Departure
	CustomerID CustomerID
	StationID  StationID
	Slot       int  // Server slot being released (departures only)
	External   bool // Arrival generated by a source's external stream rather than by routing

	seq uint64 // insertion order, assigned by EventQueue.Push
}

// NewArrivalEvent creates an arrival of customer at station.
func NewArrivalEvent(time float64, customer CustomerID, station StationID) Event {
	return Event{Time: time, Kind: EventArrival, CustomerID: customer, StationID: station}
}

// NewDepartureEvent creates a departure of customer from slot at station.
func NewDepartureEvent(time float64, customer CustomerID, station StationID, slot int) Event {
	return Event{Time: time, Kind: EventDeparture, CustomerID: customer, StationID: station, Slot: slot}
}

// Seq returns the insertion sequence number assigned when the event was queued.
func (e Event) Seq() uint64 {
	return e.seq
}

func (e Event) String() string {
	if e.Kind == EventDeparture {
		return fmt.Sprintf("%s{t=%.6f customer=%d station=%s slot=%d}", e.Kind, e.Time, e.CustomerID, e.StationID, e.Slot)
	}
	return fmt.Sprintf("%s{t=%.6f customer=%d station=%s}", e.Kind, e.Time, e.CustomerID, e.StationID)
}
