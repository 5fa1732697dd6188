package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStation builds a deterministic-service station so departure times are exact.
func newTestStation(t *testing.T, servers int) (*Station, *Metrics) {
	t.Helper()
	b := NewTopologyBuilder()
	require.NoError(t, b.AddStationSpec(StationSpec{ID: "desk", Role: RoleSource, ServiceRate: 1, Servers: servers, Distribution: DistDeterministic}))
	topo, err := b.Build()
	require.NoError(t, err)
	spec, _ := topo.Station("desk")
	m := NewMetrics(topo)
	st, err := newStation(spec, NewPartitionedRNG(NewSimulationKey(1)).ForSubsystem(SubsystemService("desk")), m)
	require.NoError(t, err)
	return st, m
}

func TestStation_ArrivalAtIdleServerStartsService(t *testing.T) {
	// GIVEN an empty two-server station
	st, m := newTestStation(t, 2)
	assert.Equal(t, LoadEmpty, st.State())

	// WHEN a customer arrives at t=3
	c := NewCustomer(1, 3)
	ev, err := st.OnArrival(c, 3)

	// THEN service starts immediately with zero wait and ends at t=4
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, EventDeparture, ev.Kind)
	assert.Equal(t, 4.0, ev.Time)
	assert.Equal(t, 0, ev.Slot, "lowest idle slot is used first")
	assert.Equal(t, 1, st.Busy())
	assert.Equal(t, LoadPartiallyLoaded, st.State())
	assert.Equal(t, 0.0, c.Waits["desk"])
	assert.Equal(t, StationID("desk"), c.Current())
	assert.Equal(t, 1, m.Station("desk").Arrivals)
	assert.Equal(t, 1, m.Station("desk").ServiceStarts)
}

func TestStation_SaturatedStationQueuesFIFO(t *testing.T) {
	// GIVEN a single-server station serving customer 1
	st, _ := newTestStation(t, 1)
	c1, c2, c3 := NewCustomer(1, 0), NewCustomer(2, 0.2), NewCustomer(3, 0.5)
	dep1, err := st.OnArrival(c1, 0)
	require.NoError(t, err)

	// WHEN two more arrive while it is busy
	ev, err := st.OnArrival(c2, 0.2)
	require.NoError(t, err)
	assert.Nil(t, ev)
	ev, err = st.OnArrival(c3, 0.5)
	require.NoError(t, err)
	assert.Nil(t, ev)

	// THEN they wait, and the station is saturated but work conserving
	assert.Equal(t, 2, st.Waiting())
	assert.Equal(t, 3, st.InSystem())
	assert.Equal(t, LoadSaturated, st.State())
	assert.True(t, st.WorkConserving())

	// WHEN customer 1 departs at t=1
	left, next, err := st.OnDeparture(dep1.Slot, 1, dep1.Time)
	require.NoError(t, err)

	// THEN customer 2 takes the freed slot after waiting 0.8
	assert.Same(t, c1, left)
	require.NotNil(t, next)
	assert.Equal(t, CustomerID(2), next.CustomerID)
	assert.Equal(t, dep1.Slot, next.Slot)
	assert.InDelta(t, 2.0, next.Time, 1e-12)
	assert.InDelta(t, 0.8, c2.Waits["desk"], 1e-12)
	assert.Equal(t, 1, st.Waiting())
	occupant, busy := st.SlotOccupant(dep1.Slot)
	assert.True(t, busy)
	assert.Equal(t, CustomerID(2), occupant)
}

func TestStation_DepartureWithEmptyLineFreesSlot(t *testing.T) {
	st, m := newTestStation(t, 2)
	dep, err := st.OnArrival(NewCustomer(1, 0), 0)
	require.NoError(t, err)

	_, next, err := st.OnDeparture(dep.Slot, 1, dep.Time)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, 0, st.Busy())
	assert.Equal(t, LoadEmpty, st.State())
	_, busy := st.SlotOccupant(dep.Slot)
	assert.False(t, busy)
	assert.Equal(t, 1, m.Station("desk").Departures)
	assert.InDelta(t, 1.0, m.Station("desk").StationTime, 1e-12)
}

func TestStation_DepartureErrors(t *testing.T) {
	st, _ := newTestStation(t, 1)
	_, _, err := st.OnDeparture(5, 1, 1)
	assert.Error(t, err, "slot out of range")

	_, _, err = st.OnDeparture(0, 1, 1)
	assert.Error(t, err, "idle slot")

	dep, err := st.OnArrival(NewCustomer(1, 0), 0)
	require.NoError(t, err)
	_, _, err = st.OnDeparture(dep.Slot, 99, dep.Time)
	assert.Error(t, err, "wrong occupant")
}

func TestStation_UnknownToMetricsIsReported(t *testing.T) {
	// GIVEN a station whose metrics collector was built for another network
	st, _ := newTestStation(t, 1)
	other := tandem(t, 1, 1)
	st.metrics = NewMetrics(other)

	// WHEN a customer arrives
	_, err := st.OnArrival(NewCustomer(1, 0), 0)

	// THEN the collector rejects the station
	var unknown *UnknownStationError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, StationID("desk"), unknown.Station)
}

func TestStation_Snapshot(t *testing.T) {
	st, _ := newTestStation(t, 3)
	_, err := st.OnArrival(NewCustomer(1, 0), 0)
	require.NoError(t, err)

	snap := st.Snapshot()
	assert.Equal(t, StationSnapshot{ID: "desk", Servers: 3, Busy: 1, Waiting: 0, State: LoadPartiallyLoaded}, snap)
}
