package message

import (
	"context"
	"net/url"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

const messagesPath = "/api/messages"

type repoHTTP struct {
	api *apiclient.Client
}

func NewRepoHTTP(api *apiclient.Client) Repository {
	return &repoHTTP{api: api}
}

func (r *repoHTTP) List(ctx context.Context) ([]Message, error) {
	var msgs apiclient.List[Message]
	if err := r.api.Get(ctx, messagesPath, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *repoHTTP) Send(ctx context.Context, req SendRequest) (*Message, error) {
	var created Message
	if err := r.api.Post(ctx, messagesPath, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repoHTTP) MarkRead(ctx context.Context, id string) error {
	return r.api.Patch(ctx, messagesPath+"/"+url.PathEscape(id)+"/read", nil, nil)
}
