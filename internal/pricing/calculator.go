// Package pricing computes stay prices from an apartment's pricing periods.
package pricing

import (
	"errors"
	"sort"

	"github.com/property-booking/backend/internal/storage/models"
)

// ErrInvalidRange is returned when a stay ends before it starts or a bound is missing.
var ErrInvalidRange = errors.New("invalid date range")

// Price returns the total price of the stay. Every calendar day in the
// inclusive range is billed once, at the rate of the first period (by id)
// that covers it. Days no period covers cost nothing, so a stay without any
// coverage is priced at 0.
func Price(periods []models.PricingPeriod, stay models.DateRange) (int64, error) {
	if !stay.Valid() {
		return 0, ErrInvalidRange
	}

	covering := make([]models.PricingPeriod, 0, len(periods))
	for _, p := range periods {
		if p.Range().Valid() && p.Range().Overlaps(stay) {
			covering = append(covering, p)
		}
	}
	if len(covering) == 0 {
		return 0, nil
	}
	sort.SliceStable(covering, func(i, j int) bool {
		return covering[i].ID < covering[j].ID
	})

	// Only days inside the covered span can cost anything.
	from, to := stay.Start, stay.End
	first, last := covering[0].StartDate, covering[0].EndDate
	for _, p := range covering[1:] {
		if p.StartDate.Before(first) {
			first = p.StartDate
		}
		if p.EndDate.After(last) {
			last = p.EndDate
		}
	}
	if first.After(from) {
		from = first
	}
	if last.Before(to) {
		to = last
	}

	var total int64
	for d := from; !d.After(to); d = d.AddDays(1) {
		for _, p := range covering {
			if p.Covers(d) {
				total += p.Price
				break
			}
		}
	}

	return total, nil
}

// Nights returns the number of billed days in an inclusive stay.
func Nights(stay models.DateRange) int {
	if !stay.Valid() {
		return 0
	}
	return stay.Start.DaysUntil(stay.End) + 1
}
