package journal

import (
	"context"
	"net/url"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

const journalPath = "/api/journal"

type repoHTTP struct {
	api *apiclient.Client
}

func NewRepoHTTP(api *apiclient.Client) Repository {
	return &repoHTTP{api: api}
}

func (r *repoHTTP) Today(ctx context.Context) (*Entry, error) {
	var e Entry
	if err := r.api.Get(ctx, journalPath+"/today", &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoHTTP) Delete(ctx context.Context, id string) error {
	return r.api.Delete(ctx, journalPath+"/"+url.PathEscape(id), nil)
}
