package journal

import (
	"context"
	"fmt"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

type Service struct {
	entries Repository
}

func NewService(entries Repository) *Service {
	return &Service{entries: entries}
}

// Today returns today's entry, or nil when none has been written yet. A 404
// here is an expected answer, not a failure.
func (s *Service) Today(ctx context.Context) (*Entry, error) {
	e, err := s.entries.Today(ctx)
	if apiclient.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load today's journal entry: %w", err)
	}
	return e, nil
}

// Delete removes an entry. Deleting something that does not exist is an
// error the caller should see.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: journal entry id is required", apiclient.ErrValidation)
	}
	if err := s.entries.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete journal entry %s: %w", id, err)
	}
	return nil
}
