package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/property-booking/backend/internal/pricing"
	"github.com/property-booking/backend/internal/storage/models"
)

var d = models.MustParseDate("2030-08-01")

func unit(id int64, adults, children int, bookings ...models.Booking) models.Apartment {
	return models.Apartment{ID: id, CapacityAdults: adults, CapacityChildren: children, Bookings: bookings}
}

func booked(from, to int) models.Booking {
	return models.Booking{StartDate: d.AddDays(from), EndDate: d.AddDays(to)}
}

func stayOf(from, to int) *models.DateRange {
	return &models.DateRange{Start: d.AddDays(from), End: d.AddDays(to)}
}

func TestIsAvailable(t *testing.T) {
	deleted := booked(0, 5)
	now := d.Time()
	deleted.DeletedAt = &now

	tests := []struct {
		name     string
		bookings []models.Booking
		stay     models.DateRange
		want     bool
	}{
		{"no bookings", nil, *stayOf(0, 2), true},
		{"disjoint before", []models.Booking{booked(0, 2)}, *stayOf(3, 5), true},
		{"shares end day", []models.Booking{booked(0, 3)}, *stayOf(3, 5), false},
		{"shares start day", []models.Booking{booked(5, 7)}, *stayOf(3, 5), false},
		{"contained", []models.Booking{booked(0, 10)}, *stayOf(3, 5), false},
		{"soft-deleted ignored", []models.Booking{deleted}, *stayOf(1, 2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAvailable(tt.bookings, tt.stay); got != tt.want {
				t.Errorf("IsAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBestUnit(t *testing.T) {
	tests := []struct {
		name   string
		units  []models.Apartment
		req    Request
		wantID int64
	}{
		{"undersized excluded", []models.Apartment{unit(1, 1, 0)}, Request{Adults: 2, Children: 1}, 0},
		{"only fitting unit", []models.Apartment{unit(1, 1, 0), unit(2, 3, 2)}, Request{Adults: 2, Children: 1}, 2},
		{"smallest fit wins", []models.Apartment{unit(1, 3, 2), unit(2, 2, 1), unit(3, 1, 0)}, Request{Adults: 2, Children: 1}, 2},
		{"children break adult tie", []models.Apartment{unit(1, 2, 3), unit(2, 2, 1)}, Request{Adults: 2}, 2},
		{"id breaks full tie", []models.Apartment{unit(7, 2, 0), unit(4, 2, 0)}, Request{Adults: 1}, 4},
		{
			"booked unit skipped",
			[]models.Apartment{unit(1, 2, 1, booked(2, 4)), unit(2, 3, 2)},
			Request{Adults: 2, Children: 1, Stay: stayOf(3, 6)},
			2,
		},
		{
			"all booked",
			[]models.Apartment{unit(1, 2, 1, booked(2, 4))},
			Request{Adults: 1, Stay: stayOf(0, 2)},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BestUnit(tt.units, tt.req)
			if tt.wantID == 0 {
				if got != nil {
					t.Fatalf("BestUnit() = unit %d, want none", got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Fatalf("BestUnit() = %+v, want unit %d", got, tt.wantID)
			}
		})
	}
}

func TestRequestActive(t *testing.T) {
	if (Request{}).Active() {
		t.Error("empty request should not be active")
	}
	if !(Request{Children: 1}).Active() {
		t.Error("children only should be active")
	}
	if !(Request{Stay: stayOf(0, 1)}).Active() {
		t.Error("stay only should be active")
	}
}

func TestAvailabilityCheckerConflicts(t *testing.T) {
	checker := NewAvailabilityChecker(func(ctx context.Context, ids []int64, stay models.DateRange) (map[int64][]models.Booking, error) {
		b := booked(2, 6)
		b.ID = 11
		return map[int64][]models.Booking{ids[0]: {b}}, nil
	})

	conflicts, err := checker.CheckConflicts(context.Background(), 5, *stayOf(4, 9))
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("CheckConflicts() = %+v, want one conflict", conflicts)
	}
	c := conflicts[0]
	if c.BookingID != 11 || !c.OverlapStart.Equal(d.AddDays(4)) || !c.OverlapEnd.Equal(d.AddDays(6)) {
		t.Errorf("conflict = %+v", c)
	}

	if _, err := checker.CheckConflicts(context.Background(), 5, *stayOf(4, 1)); !errors.Is(err, pricing.ErrInvalidRange) {
		t.Errorf("reversed stay: error = %v, want ErrInvalidRange", err)
	}
}
