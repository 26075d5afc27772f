package query

// Status is the lifecycle state of a cache entry or mutation.
type Status int

const (
	StatusUninitialized Status = iota
	StatusPending
	StatusFulfilled
	StatusRejected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
