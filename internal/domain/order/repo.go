package order

import "context"

type Repository interface {
	List(ctx context.Context) ([]Order, error)
	Upload(ctx context.Context, req UploadRequest) (*Order, error)
}
