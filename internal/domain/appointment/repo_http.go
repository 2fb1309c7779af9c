package appointment

import (
	"context"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

const appointmentsPath = "/api/appointments"

type repoHTTP struct {
	api *apiclient.Client
}

func NewRepoHTTP(api *apiclient.Client) Repository {
	return &repoHTTP{api: api}
}

func (r *repoHTTP) List(ctx context.Context) ([]Appointment, error) {
	var items apiclient.List[Appointment]
	if err := r.api.Get(ctx, appointmentsPath, &items); err != nil {
		return nil, err
	}
	return items, nil
}
