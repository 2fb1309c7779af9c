package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

type Service struct {
	orders Repository
}

func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// ValidateUpload checks an upload before it is sent.
func ValidateUpload(req UploadRequest) error {
	if req.File == nil {
		return fmt.Errorf("%w: prescription file is required", apiclient.ErrValidation)
	}
	if strings.TrimSpace(req.Filename) == "" {
		return fmt.Errorf("%w: prescription filename is required", apiclient.ErrValidation)
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return fmt.Errorf("%w: delivery address is required", apiclient.ErrValidation)
	}
	if req.DurationInDays <= 0 {
		return fmt.Errorf("%w: duration in days must be a positive number", apiclient.ErrValidation)
	}
	return nil
}

// UploadPrescription validates req and creates a new order. A validation
// failure never reaches the network.
func (s *Service) UploadPrescription(ctx context.Context, req UploadRequest) (*Order, error) {
	if err := ValidateUpload(req); err != nil {
		return nil, err
	}
	req.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
	o, err := s.orders.Upload(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upload prescription: %w", err)
	}
	return o, nil
}
