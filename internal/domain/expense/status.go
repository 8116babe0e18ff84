package expense

// Status represents the authorization state of an expense
type Status string

const (
	// StatusPending is the initial state of every expense
	StatusPending Status = "pending"

	// StatusAuth marks an expense as authorized; it counts toward committed project cost
	StatusAuth Status = "auth"

	// StatusReview flags an expense for correction or a pending deletion decision
	StatusReview Status = "review"
)

// StatusDeleted is not a live expense status. It only appears as the new_status
// of the audit entry written when a non-pending expense is physically removed.
const StatusDeleted Status = "deleted"

var validStatuses = map[Status]bool{
	StatusPending: true,
	StatusAuth:    true,
	StatusReview:  true,
}

// IsValid returns true if the status is one an expense row may hold
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
