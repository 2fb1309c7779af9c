package appointment

import "time"

// Appointment is a session between a student and a counselor.
type Appointment struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student"`
	CounselorID string    `json:"counselor"`
	Date        time.Time `json:"date"`
	TimeSlot    string    `json:"timeSlot"`
	Status      Status    `json:"status"`
	Type        Type      `json:"appointmentType"`
	MeetingLink *string   `json:"meetingLink,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (a Appointment) Key() string { return a.ID }

// Upcoming reports whether the appointment is still ahead of now and not
// cancelled.
func (a Appointment) Upcoming(now time.Time) bool {
	return a.Status != StatusCancelled && !a.Date.Before(now.Truncate(24*time.Hour))
}
