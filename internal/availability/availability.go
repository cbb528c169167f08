// Package availability decides whether an event can take more tickets.
// It works on already-fetched numbers and never touches storage.
package availability

// Result is the outcome of a single availability check.
type Result struct {
	Available bool `json:"available"`
	Capacity  int  `json:"event_capacity"`
	Booked    int  `json:"booked_tickets"`
	Remaining int  `json:"available_tickets"`
	Requested int  `json:"requested_tickets"`
}

// Check computes remaining = capacity - booked and admits the request
// when remaining >= requested.
func Check(capacity, booked, requested int) Result {
	remaining := capacity - booked
	return Result{
		Available: remaining >= requested,
		Capacity:  capacity,
		Booked:    booked,
		Remaining: remaining,
		Requested: requested,
	}
}

// After returns the remaining tickets once the request is admitted.
func (r Result) After() int {
	return r.Remaining - r.Requested
}
