package order

import "context"

// SummaryReader abstracts repository operations for the service.
type SummaryReader interface {
	GetByID(ctx context.Context, id string) (Summary, error)
	ListRecent(ctx context.Context, limit int) ([]Summary, error)
}

// Service exposes business-level order lookups for the console.
type Service struct {
	repo SummaryReader
}

// NewService builds a Service using the provided repository.
func NewService(repo SummaryReader) *Service {
	return &Service{repo: repo}
}

// GetByID returns the order summary for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Summary, error) {
	return s.repo.GetByID(ctx, id)
}

// ListRecent returns up to limit recently created orders.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	return s.repo.ListRecent(ctx, limit)
}
