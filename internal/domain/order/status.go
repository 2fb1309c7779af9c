package order

import (
	"fmt"
)

// Status is the lifecycle state of a medicine order. The zero value is
// StatusUnknown, which is what unrecognised wire labels decode to.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusUploaded
	StatusDoctorApproved
	StatusForwardedToSupplier
	StatusProcessing
	StatusShipped
	StatusDelivered
	StatusRejected
	StatusCancelled
)

var statusLabels = map[Status]string{
	StatusUnknown:             "unknown",
	StatusUploaded:            "uploaded",
	StatusDoctorApproved:      "doctor_approved",
	StatusForwardedToSupplier: "forwarded_to_supplier",
	StatusProcessing:          "processing",
	StatusShipped:             "shipped",
	StatusDelivered:           "delivered",
	StatusRejected:            "rejected",
	StatusCancelled:           "cancelled",
}

// AllStatuses lists every known status in lifecycle order.
var AllStatuses = []Status{
	StatusUploaded,
	StatusDoctorApproved,
	StatusForwardedToSupplier,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusRejected,
	StatusCancelled,
}

// happyPath maps each status to its canonical successor.
var happyPath = map[Status]Status{
	StatusUploaded:            StatusDoctorApproved,
	StatusDoctorApproved:      StatusForwardedToSupplier,
	StatusForwardedToSupplier: StatusProcessing,
	StatusProcessing:          StatusShipped,
	StatusShipped:             StatusDelivered,
}

func (s Status) String() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusUnknown]
}

// ParseStatus maps a wire label to a Status. Unknown labels yield
// StatusUnknown and false.
func ParseStatus(label string) (Status, bool) {
	for s, l := range statusLabels {
		if l == label && s != StatusUnknown {
			return s, true
		}
	}
	return StatusUnknown, false
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText never fails: an unrecognised label becomes StatusUnknown so
// one odd order does not discard the whole list.
func (s *Status) UnmarshalText(b []byte) error {
	*s, _ = ParseStatus(string(b))
	return nil
}

// IsTerminal reports whether no further transition is defined.
func IsTerminal(s Status) bool {
	switch s {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// NextOf returns the happy-path successor of s. It returns false for terminal
// and unknown statuses.
func NextOf(s Status) (Status, bool) {
	next, ok := happyPath[s]
	return next, ok
}

// TransitionError is returned by CanTransition for pairs that are not in the
// lifecycle table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid order transition %s -> %s", e.From, e.To)
}

// CanTransition checks a single step against the lifecycle table:
// the happy path, uploaded -> rejected, and any non-terminal -> cancelled.
// The server remains authoritative; this only decides whether a change is
// rendered as valid.
func CanTransition(from, to Status) error {
	if from == StatusUnknown || to == StatusUnknown || IsTerminal(from) {
		return &TransitionError{From: from, To: to}
	}
	if next, ok := happyPath[from]; ok && next == to {
		return nil
	}
	if from == StatusUploaded && to == StatusRejected {
		return nil
	}
	if to == StatusCancelled {
		return nil
	}
	return &TransitionError{From: from, To: to}
}

// Reachable reports whether to can be reached from from by zero or more
// valid transitions.
func Reachable(from, to Status) bool {
	if from == to {
		return from != StatusUnknown
	}
	cur := from
	for {
		if CanTransition(cur, to) == nil {
			return true
		}
		next, ok := happyPath[cur]
		if !ok {
			return false
		}
		cur = next
	}
}
