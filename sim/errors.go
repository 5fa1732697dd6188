package sim

import "fmt"

// InvalidRateError reports a non-positive arrival or service rate.
type InvalidRateError struct {
	What string // "arrival", "service", ...
	Rate float64
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid %s rate %g: must be > 0", e.What, e.Rate)
}

// TopologyError reports a malformed network, detected while building it.
type TopologyError struct {
	Station StationID // empty when the problem is network-wide
	Reason  string
}

func (e *TopologyError) Error() string {
	if e.Station == "" {
		return "topology: " + e.Reason
	}
	return fmt.Sprintf("topology: station %q: %s", e.Station, e.Reason)
}

// UnstableSystemError reports a station whose offered load reaches its capacity (rho >= 1).
type UnstableSystemError struct {
	Station StationID
	Rho     float64
}

func (e *UnstableSystemError) Error() string {
	if e.Station == "" {
		return fmt.Sprintf("unstable system: rho = %.4f >= 1", e.Rho)
	}
	return fmt.Sprintf("unstable system: station %q has rho = %.4f >= 1", e.Station, e.Rho)
}

// UnknownStationError means an event referenced a station the topology does not define.
// It always indicates a bug in event generation.
type UnknownStationError struct {
	Station StationID
}

func (e *UnknownStationError) Error() string {
	return fmt.Sprintf("unknown station %q", e.Station)
}

// DispatchError wraps a fatal failure while executing an event, keeping the event for diagnostics.
type DispatchError struct {
	Event Event
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatching %s: %v", e.Event, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
