package report

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

type Service struct {
	reports Repository
}

func NewService(reports Repository) *Service {
	return &Service{reports: reports}
}

func ValidateUpload(req UploadRequest) error {
	if req.File == nil {
		return fmt.Errorf("%w: report file is required", apiclient.ErrValidation)
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if _, ok := AllowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: unsupported report file type %q", apiclient.ErrValidation, ext)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return fmt.Errorf("%w: report title is required", apiclient.ErrValidation)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("%w: report title exceeds %d characters", apiclient.ErrValidation, MaxTitleLength)
	}
	return nil
}

// Upload validates req and stores the report. The title is trimmed; the
// filename is reduced to its base name.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Report, error) {
	if err := ValidateUpload(req); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Filename = filepath.Base(req.Filename)

	stored, err := s.reports.Upload(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}
	return stored, nil
}
