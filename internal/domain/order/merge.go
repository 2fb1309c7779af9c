package order

import "fmt"

// ValidateUpdate accepts next as a replacement for prev when the status
// change is one the lifecycle allows. A repeated update with the same status
// is accepted. prev is nil for an order not seen before.
func ValidateUpdate(prev *Order, next Order) error {
	if next.Status == StatusUnknown {
		return fmt.Errorf("order %s: unknown status", next.ID)
	}
	if prev == nil || prev.Status == next.Status {
		return nil
	}
	return CanTransition(prev.Status, next.Status)
}
