package report

import "context"

type Repository interface {
	Upload(ctx context.Context, req UploadRequest) (*Report, error)
}
