package message

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

type Service struct {
	messages Repository
}

func NewService(messages Repository) *Service {
	return &Service{messages: messages}
}

func (s *Service) ListMessages(ctx context.Context) ([]Message, error) {
	return s.messages.List(ctx)
}

// ValidateSend checks a message before it is sent.
func ValidateSend(req SendRequest) error {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return fmt.Errorf("%w: message content is required", apiclient.ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("%w: message content exceeds %d characters", apiclient.ErrValidation, MaxContentLength)
	}
	if req.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", apiclient.ErrValidation)
	}
	if req.Sender != "" && req.Sender == req.Recipient {
		return fmt.Errorf("%w: cannot send a message to yourself", apiclient.ErrValidation)
	}
	if req.RecipientRole != "" && !req.RecipientRole.Valid() {
		return fmt.Errorf("%w: invalid recipient role %q", apiclient.ErrValidation, req.RecipientRole)
	}
	return nil
}

// Send validates and posts a text message.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Message, error) {
	if err := ValidateSend(req); err != nil {
		return nil, err
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.MessageType == "" {
		req.MessageType = TypeText
	}
	m, err := s.messages.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return m, nil
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: message id is required", apiclient.ErrValidation)
	}
	return s.messages.MarkRead(ctx, id)
}
