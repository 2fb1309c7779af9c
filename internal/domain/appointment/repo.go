package appointment

import "context"

type Repository interface {
	List(ctx context.Context) ([]Appointment, error)
}
