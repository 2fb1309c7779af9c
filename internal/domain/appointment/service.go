package appointment

import (
	"context"
	"sort"
	"time"
)

type Service struct {
	appointments Repository
}

func NewService(appointments Repository) *Service {
	return &Service{appointments: appointments}
}

// ListAppointments returns the appointments sorted by date, then time slot.
func (s *Service) ListAppointments(ctx context.Context) ([]Appointment, error) {
	items, err := s.appointments.List(ctx)
	if err != nil {
		return nil, err
	}
	SortByDate(items)
	return items, nil
}

// SortByDate orders appointments by date, then time slot, in place.
func SortByDate(items []Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].TimeSlot < items[j].TimeSlot
	})
}

// Upcoming filters items to those not cancelled and dated today or later.
func Upcoming(items []Appointment, now time.Time) []Appointment {
	out := make([]Appointment, 0, len(items))
	for _, a := range items {
		if a.Upcoming(now) {
			out = append(out, a)
		}
	}
	return out
}
