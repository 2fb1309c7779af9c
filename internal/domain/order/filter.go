package order

// StatusSet is a set of statuses used to select orders, e.g. a dashboard tab.
type StatusSet map[Status]struct{}

// NewStatusSet builds a StatusSet from the given statuses.
func NewStatusSet(statuses ...Status) StatusSet {
	set := make(StatusSet, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

// Has reports whether s is in the set.
func (set StatusSet) Has(s Status) bool {
	_, ok := set[s]
	return ok
}

// Dashboard tabs.
var (
	TabActive = NewStatusSet(
		StatusUploaded,
		StatusDoctorApproved,
		StatusForwardedToSupplier,
		StatusProcessing,
		StatusShipped,
	)
	TabCompleted = NewStatusSet(StatusDelivered)
	TabCancelled = NewStatusSet(StatusRejected, StatusCancelled)
)

// TabByName resolves a tab name used by the CLI.
func TabByName(name string) (StatusSet, bool) {
	switch name {
	case "active":
		return TabActive, true
	case "completed":
		return TabCompleted, true
	case "cancelled":
		return TabCancelled, true
	}
	return nil, false
}

// FilterByStatus returns the orders whose status is in set. The input slice
// is not modified.
func FilterByStatus(orders []Order, set StatusSet) []Order {
	matched, _ := Partition(orders, set)
	return matched
}

// Partition splits orders into those in set and the rest, preserving order.
// len(matched)+len(excluded) == len(orders).
func Partition(orders []Order, set StatusSet) (matched, excluded []Order) {
	matched = make([]Order, 0, len(orders))
	excluded = make([]Order, 0)
	for _, o := range orders {
		if set.Has(o.Status) {
			matched = append(matched, o)
		} else {
			excluded = append(excluded, o)
		}
	}
	return matched, excluded
}
