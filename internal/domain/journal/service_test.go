package journal

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

type mockJournalRepo struct {
	entry *Entry
	err   error
}

func (m *mockJournalRepo) Today(_ context.Context) (*Entry, error) {
	return m.entry, m.err
}

func (m *mockJournalRepo) Delete(_ context.Context, _ string) error {
	return m.err
}

func notFound() error {
	return &apiclient.Error{Status: http.StatusNotFound, Method: http.MethodGet, Path: "/api/journal/today"}
}

func TestToday_NotFoundIsBenign(t *testing.T) {
	svc := NewService(&mockJournalRepo{err: notFound()})
	e, err := svc.Today(context.Background())
	if err != nil {
		t.Fatalf("expected no error for 404, got %v", err)
	}
	if e != nil {
		t.Errorf("expected nil entry, got %+v", e)
	}
}

func TestToday_Found(t *testing.T) {
	svc := NewService(&mockJournalRepo{entry: &Entry{ID: "j1", Mood: "calm"}})
	e, err := svc.Today(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e == nil || e.ID != "j1" {
		t.Errorf("expected entry j1, got %+v", e)
	}
}

func TestToday_ServerError(t *testing.T) {
	svc := NewService(&mockJournalRepo{err: &apiclient.Error{Status: http.StatusInternalServerError}})
	if _, err := svc.Today(context.Background()); !apiclient.IsServer(err) {
		t.Errorf("expected server error, got %v", err)
	}
}

func TestDelete_NotFoundIsError(t *testing.T) {
	svc := NewService(&mockJournalRepo{err: notFound()})
	err := svc.Delete(context.Background(), "j1")
	if !apiclient.IsNotFound(err) {
		t.Fatalf("expected 404 to surface, got %v", err)
	}
}

func TestDelete_RequiresID(t *testing.T) {
	svc := NewService(&mockJournalRepo{})
	if err := svc.Delete(context.Background(), ""); !errors.Is(err, apiclient.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
