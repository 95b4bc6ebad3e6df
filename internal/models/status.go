package models

// ProductStatus is the production stage of a guest's item.
// Stages only move forward: not started, WAIT, WORK, DONE, RECEIVED.
type ProductStatus string

const (
	StatusNotStarted ProductStatus = ""
	StatusWaiting    ProductStatus = "WAIT"
	StatusInWork     ProductStatus = "WORK"
	StatusReady      ProductStatus = "DONE"
	StatusReceived   ProductStatus = "RECEIVED"
)

var statusOrder = map[ProductStatus]int{
	StatusNotStarted: 0,
	StatusWaiting:    1,
	StatusInWork:     2,
	StatusReady:      3,
	StatusReceived:   4,
}

// Valid reports whether s is a known status
func (s ProductStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Predecessors returns the statuses an item may be in before moving to s
func (s ProductStatus) Predecessors() []ProductStatus {
	switch s {
	case StatusWaiting:
		return []ProductStatus{StatusNotStarted, StatusWaiting}
	case StatusInWork:
		return []ProductStatus{StatusNotStarted, StatusWaiting}
	case StatusReady:
		return []ProductStatus{StatusInWork}
	case StatusReceived:
		return []ProductStatus{StatusReady}
	}
	return nil
}

// CanTransitionTo reports whether an item in status s may move to next
func (s ProductStatus) CanTransitionTo(next ProductStatus) bool {
	for _, p := range next.Predecessors() {
		if p == s {
			return true
		}
	}
	return false
}

// Label returns a human readable name of the status
func (s ProductStatus) Label() string {
	switch s {
	case StatusWaiting:
		return "Awaiting input"
	case StatusInWork:
		return "In work ⌛"
	case StatusReady:
		return "Ready for pickup 🟡"
	case StatusReceived:
		return "Received ✅"
	}
	return "Not started"
}
