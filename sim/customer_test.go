package sim

import "testing"

func TestCustomer_Lifecycle(t *testing.T) {
	// GIVEN a customer entering at t=2
	c := NewCustomer(7, 2)
	if c.Current() != "" {
		t.Errorf("Current before first visit: got %q, want empty", c.Current())
	}

	// WHEN it visits a, loops back to a, then b, and leaves at t=9
	c.visit("a", 2)
	c.Waits["a"] += 1.5
	c.visit("a", 4)
	c.Waits["a"] += 0.5
	c.visit("b", 6)
	c.Waits["b"] += 2
	if c.Departed() {
		t.Error("Departed before depart()")
	}
	c.depart(9)

	// THEN the route keeps repeats and waits add up per station
	want := []StationID{"a", "a", "b"}
	if len(c.Route) != len(want) {
		t.Fatalf("Route: got %v, want %v", c.Route, want)
	}
	for i := range want {
		if c.Route[i] != want[i] {
			t.Errorf("Route[%d]: got %s, want %s", i, c.Route[i], want[i])
		}
	}
	if c.Current() != "b" {
		t.Errorf("Current: got %s, want b", c.Current())
	}
	if c.Waits["a"] != 2 {
		t.Errorf("Waits[a]: got %v, want 2", c.Waits["a"])
	}
	if c.TotalWait() != 4 {
		t.Errorf("TotalWait: got %v, want 4", c.TotalWait())
	}
	if c.StationArrival != 6 {
		t.Errorf("StationArrival: got %v, want 6", c.StationArrival)
	}
	if !c.Departed() || c.SystemTime() != 7 {
		t.Errorf("after depart: departed=%v systemTime=%v, want true 7", c.Departed(), c.SystemTime())
	}
}
