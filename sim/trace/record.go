// Package trace provides routing-decision recording for queueing-network runs.
// It does not import sim/; it stores plain data types.
package trace

// RoutingRecord captures a single routing draw made when a customer finished service.
type RoutingRecord struct {
	Time       float64
	CustomerID int64
	From       string
	To         string // empty when the customer left the network
	Exit       bool
}
