package order

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

type mockOrderRepo struct {
	orders  []Order
	uploads []UploadRequest
	err     error
}

func (m *mockOrderRepo) List(_ context.Context) ([]Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

func (m *mockOrderRepo) Upload(_ context.Context, req UploadRequest) (*Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.uploads = append(m.uploads, req)
	o := Order{
		ID:              "new-order",
		Status:          StatusUploaded,
		DeliveryAddress: req.DeliveryAddress,
		DurationInDays:  req.DurationInDays,
		CreatedAt:       time.Now(),
	}
	m.orders = append(m.orders, o)
	return &o, nil
}

func validUpload() UploadRequest {
	return UploadRequest{
		Filename:        "rx.pdf",
		File:            strings.NewReader("%PDF-1.4"),
		DeliveryAddress: "Hostel B, Room 12",
		DurationInDays:  14,
	}
}

func TestUploadPrescription_Valid(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := NewService(repo)

	o, err := svc.UploadPrescription(context.Background(), validUpload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != StatusUploaded {
		t.Errorf("expected uploaded, got %s", o.Status)
	}
	if len(repo.uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(repo.uploads))
	}
}

func TestUploadPrescription_ValidationNeverReachesRepo(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UploadRequest)
	}{
		{"missing address", func(r *UploadRequest) { r.DeliveryAddress = "   " }},
		{"zero duration", func(r *UploadRequest) { r.DurationInDays = 0 }},
		{"negative duration", func(r *UploadRequest) { r.DurationInDays = -3 }},
		{"missing file", func(r *UploadRequest) { r.File = nil }},
		{"missing filename", func(r *UploadRequest) { r.Filename = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOrderRepo{}
			svc := NewService(repo)
			req := validUpload()
			tt.mutate(&req)

			_, err := svc.UploadPrescription(context.Background(), req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, apiclient.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if len(repo.uploads) != 0 {
				t.Error("validation failure must not call the repository")
			}
		})
	}
}

func TestUploadPrescription_RepoError(t *testing.T) {
	repo := &mockOrderRepo{err: errors.New("connection refused")}
	svc := NewService(repo)

	_, err := svc.UploadPrescription(context.Background(), validUpload())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected wrapped repo error, got %v", err)
	}
}

func TestListOrders(t *testing.T) {
	repo := &mockOrderRepo{orders: sampleOrders()}
	svc := NewService(repo)

	orders, err := svc.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 6 {
		t.Fatalf("expected 6 orders, got %d", len(orders))
	}
}
