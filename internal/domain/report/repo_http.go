package report

import (
	"context"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

const uploadPath = "/api/reports/upload"

type repoHTTP struct {
	api *apiclient.Client
}

func NewRepoHTTP(api *apiclient.Client) Repository {
	return &repoHTTP{api: api}
}

func (r *repoHTTP) Upload(ctx context.Context, req UploadRequest) (*Report, error) {
	form := apiclient.Form{
		Fields: map[string]string{"title": req.Title},
		Files: []apiclient.FormFile{{
			Field:    "report",
			Filename: req.Filename,
			Content:  req.File,
		}},
	}

	var stored Report
	if err := r.api.Upload(ctx, uploadPath, form, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
