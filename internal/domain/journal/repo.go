package journal

import "context"

type Repository interface {
	// Today returns the entry written today. A 404 from the API is returned
	// as is; the service decides what it means.
	Today(ctx context.Context) (*Entry, error)
	Delete(ctx context.Context, id string) error
}
