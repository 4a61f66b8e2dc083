package pricing

import (
	"context"
	"fmt"

	"github.com/property-booking/backend/internal/storage/models"
)

// PriceSource loads an apartment and its pricing periods.
type PriceSource interface {
	GetByID(ctx context.Context, id int64) (*models.Apartment, error)
	ListPrices(ctx context.Context, apartmentIDs []int64) (map[int64][]models.PricingPeriod, error)
}

// Service prices stays for stored apartments.
type Service struct {
	source PriceSource
}

// NewService creates a new pricing service.
func NewService(source PriceSource) *Service {
	return &Service{source: source}
}

// PriceForUnit returns the price of staying in an apartment.
// It fails with ErrInvalidRange before touching storage, and passes
// storage.ErrNotFound through for unknown apartments.
func (s *Service) PriceForUnit(ctx context.Context, apartmentID int64, stay models.DateRange) (int64, error) {
	if !stay.Valid() {
		return 0, ErrInvalidRange
	}

	if _, err := s.source.GetByID(ctx, apartmentID); err != nil {
		return 0, err
	}

	prices, err := s.source.ListPrices(ctx, []int64{apartmentID})
	if err != nil {
		return 0, fmt.Errorf("loading prices: %w", err)
	}

	return Price(prices[apartmentID], stay)
}
