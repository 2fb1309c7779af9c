package order

import (
	"context"
	"strconv"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

const (
	ordersPath = "/api/medicine/orders"
	uploadPath = "/api/medicine/upload"
)

type repoHTTP struct {
	api *apiclient.Client
}

func NewRepoHTTP(api *apiclient.Client) Repository {
	return &repoHTTP{api: api}
}

func (r *repoHTTP) List(ctx context.Context) ([]Order, error) {
	var orders apiclient.List[Order]
	if err := r.api.Get(ctx, ordersPath, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repoHTTP) Upload(ctx context.Context, req UploadRequest) (*Order, error) {
	form := apiclient.Form{
		Fields: map[string]string{
			"deliveryAddress": req.DeliveryAddress,
			"durationInDays":  strconv.Itoa(req.DurationInDays),
		},
		Files: []apiclient.FormFile{{
			Field:    "prescription",
			Filename: req.Filename,
			Content:  req.File,
		}},
	}
	if req.Notes != "" {
		form.Fields["notes"] = req.Notes
	}

	var created Order
	if err := r.api.Upload(ctx, uploadPath, form, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
