// Defines the Customer that flows through the station network.
// Tracks entry time, the route taken so far and the wait incurred at each station.

package sim

// CustomerID identifies a customer within one simulation run.
type CustomerID int64

// Customer models one job's lifecycle in the network:
// created on external arrival at a source, moved station to station by routing draws,
// released when it exits.
type Customer struct {
	ID        CustomerID
	EntryTime float64 // Time the customer entered the network

	// Route lists every station visited, in order. Extended lazily as routing draws are made,
	// so a rework loop shows up as a repeated station ID.
	Route []StationID

	// Waits accumulates time spent in waiting lines per station (service_start - arrival).
	// Repeated visits to the same station add up.
	Waits map[StationID]float64

	StationArrival float64 // Arrival time at the current station

	departed      bool
	DepartureTime float64 // Time the customer left the network; valid once Departed() is true
}

// NewCustomer creates a customer entering the network at time now.
func NewCustomer(id CustomerID, now float64) *Customer {
	return &Customer{
		ID:        id,
		EntryTime: now,
		Route:     make([]StationID, 0, 2),
		Waits:     make(map[StationID]float64),
	}
}

// Current returns the station the customer is at, or "" before its first arrival.
func (c *Customer) Current() StationID {
	if len(c.Route) == 0 {
		return ""
	}
	return c.Route[len(c.Route)-1]
}

// TotalWait sums wait time over every station visited.
func (c *Customer) TotalWait() float64 {
	total := 0.0
	for _, w := range c.Waits {
		total += w
	}
	return total
}

// Departed reports whether the customer has left the network.
func (c *Customer) Departed() bool {
	return c.departed
}

// SystemTime returns the customer's total sojourn time; only meaningful once departed.
func (c *Customer) SystemTime() float64 {
	return c.DepartureTime - c.EntryTime
}

func (c *Customer) visit(station StationID, now float64) {
	c.Route = append(c.Route, station)
	c.StationArrival = now
}

func (c *Customer) depart(now float64) {
	c.departed = true
	c.DepartureTime = now
}
