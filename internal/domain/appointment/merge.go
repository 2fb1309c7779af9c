package appointment

import "fmt"

// ValidateUpdate accepts next in place of prev when the status change is
// allowed. Updates that keep the status, such as a new meeting link, pass.
func ValidateUpdate(prev *Appointment, next Appointment) error {
	if next.Status == StatusUnknown {
		return fmt.Errorf("appointment %s: unknown status", next.ID)
	}
	if prev == nil || prev.Status == next.Status {
		return nil
	}
	return CanTransition(prev.Status, next.Status)
}
