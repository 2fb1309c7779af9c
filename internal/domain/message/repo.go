package message

import "context"

type Repository interface {
	List(ctx context.Context) ([]Message, error)
	Send(ctx context.Context, req SendRequest) (*Message, error)
	MarkRead(ctx context.Context, id string) error
}
