package message

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

type mockMessageRepo struct {
	sent   []SendRequest
	marked []string
	err    error
}

func (m *mockMessageRepo) List(_ context.Context) ([]Message, error) {
	return nil, m.err
}

func (m *mockMessageRepo) Send(_ context.Context, req SendRequest) (*Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, req)
	return &Message{ID: "m-1", Sender: req.Sender, Recipient: req.Recipient, Content: req.Content, MessageType: req.MessageType}, nil
}

func (m *mockMessageRepo) MarkRead(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.marked = append(m.marked, id)
	return nil
}

func TestSend_Valid(t *testing.T) {
	repo := &mockMessageRepo{}
	svc := NewService(repo)

	m, err := svc.Send(context.Background(), SendRequest{
		Sender:        "student-1",
		Recipient:     "counselor-1",
		RecipientRole: RoleCounselor,
		Content:       "  hello  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Content != "hello" {
		t.Errorf("expected trimmed content, got %q", m.Content)
	}
	if repo.sent[0].MessageType != TypeText {
		t.Errorf("expected default message type text, got %q", repo.sent[0].MessageType)
	}
}

func TestSend_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  SendRequest
	}{
		{"empty content", SendRequest{Sender: "a", Recipient: "b", Content: "   "}},
		{"too long", SendRequest{Sender: "a", Recipient: "b", Content: strings.Repeat("x", MaxContentLength+1)}},
		{"self message", SendRequest{Sender: "a", Recipient: "a", Content: "hi"}},
		{"no recipient", SendRequest{Sender: "a", Content: "hi"}},
		{"bad role", SendRequest{Sender: "a", Recipient: "b", RecipientRole: "Admin", Content: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockMessageRepo{}
			_, err := NewService(repo).Send(context.Background(), tt.req)
			if !errors.Is(err, apiclient.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if len(repo.sent) != 0 {
				t.Error("validation failure must not call the repository")
			}
		})
	}
}

func TestSend_MaxLengthCountsCharacters(t *testing.T) {
	content := strings.Repeat("é", MaxContentLength)
	if err := ValidateSend(SendRequest{Sender: "a", Recipient: "b", Content: content}); err != nil {
		t.Errorf("expected %d runes to be accepted, got %v", MaxContentLength, err)
	}
}

func TestSend_RepoError(t *testing.T) {
	svc := NewService(&mockMessageRepo{err: errors.New("timeout")})
	_, err := svc.Send(context.Background(), SendRequest{Sender: "a", Recipient: "b", Content: "hi"})
	if err == nil || !strings.Contains(err.Error(), "send message: timeout") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	repo := &mockMessageRepo{}
	svc := NewService(repo)
	if err := svc.MarkRead(context.Background(), ""); !errors.Is(err, apiclient.ErrValidation) {
		t.Errorf("expected ErrValidation for empty id, got %v", err)
	}
	if err := svc.MarkRead(context.Background(), "m-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.marked) != 1 || repo.marked[0] != "m-9" {
		t.Errorf("expected m-9 marked, got %v", repo.marked)
	}
}
