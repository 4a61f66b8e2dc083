// Package storagetest provides a migrated SQLite database and fixture
// builders for tests.
package storagetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
)

// NewTestDB opens a fresh, fully migrated SQLite database in a temporary
// directory. It is closed when the test ends.
func NewTestDB(t testing.TB) *storage.DB {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db
}

// Fixtures creates catalog records and fails the test on any error.
type Fixtures struct {
	t   testing.TB
	ctx context.Context
	seq int

	DB         *storage.DB
	Users      *storage.UserRepository
	Locations  *storage.LocationRepository
	Properties *storage.PropertyRepository
	Apartments *storage.ApartmentRepository
	Bookings   *storage.BookingRepository
	Facilities *storage.FacilityRepository
}

// New returns fixtures backed by a new test database.
func New(t testing.TB) *Fixtures {
	return NewWithDB(t, NewTestDB(t))
}

// NewWithDB returns fixtures backed by db.
func NewWithDB(t testing.TB, db *storage.DB) *Fixtures {
	return &Fixtures{
		t:          t,
		ctx:        context.Background(),
		DB:         db,
		Users:      storage.NewUserRepository(db),
		Locations:  storage.NewLocationRepository(db),
		Properties: storage.NewPropertyRepository(db),
		Apartments: storage.NewApartmentRepository(db),
		Bookings:   storage.NewBookingRepository(db),
		Facilities: storage.NewFacilityRepository(db),
	}
}

func (f *Fixtures) next() int {
	f.seq++
	return f.seq
}

func (f *Fixtures) check(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("creating fixture: %v", err)
	}
}

// User creates a user with the given role.
func (f *Fixtures) User(roleID int64) *models.User {
	f.t.Helper()
	n := f.next()
	u := &models.User{
		Name:   fmt.Sprintf("User %d", n),
		Email:  fmt.Sprintf("user%d@example.com", n),
		RoleID: roleID,
	}
	f.check(f.Users.Create(f.ctx, u))
	return u
}

// Owner creates a property owner.
func (f *Fixtures) Owner() *models.User {
	f.t.Helper()
	return f.User(models.RoleOwner)
}

// Guest creates a simple user allowed to book.
func (f *Fixtures) Guest() *models.User {
	f.t.Helper()
	return f.User(models.RoleUser)
}

// Country creates a country at the given reference point.
func (f *Fixtures) Country(lat, long float64) *models.Country {
	f.t.Helper()
	c := &models.Country{Name: fmt.Sprintf("Country %d", f.next()), Lat: lat, Long: long}
	f.check(f.Locations.CreateCountry(f.ctx, c))
	return c
}

// City creates a city in a new country.
func (f *Fixtures) City() *models.City {
	f.t.Helper()
	return f.CityIn(f.Country(0, 0).ID)
}

// CityIn creates a city in the given country.
func (f *Fixtures) CityIn(countryID int64) *models.City {
	f.t.Helper()
	c := &models.City{CountryID: countryID, Name: fmt.Sprintf("City %d", f.next())}
	f.check(f.Locations.CreateCity(f.ctx, c))
	return c
}

// Geoobject creates a point of interest in a city.
func (f *Fixtures) Geoobject(cityID int64, lat, long float64) *models.Geoobject {
	f.t.Helper()
	g := &models.Geoobject{CityID: &cityID, Name: fmt.Sprintf("Landmark %d", f.next()), Lat: lat, Long: long}
	f.check(f.Locations.CreateGeoobject(f.ctx, g))
	return g
}

// Property creates a property in a city. Options adjust it before insert.
func (f *Fixtures) Property(ownerID, cityID int64, opts ...func(*models.Property)) *models.Property {
	f.t.Helper()
	p := &models.Property{
		OwnerID:         ownerID,
		CityID:          cityID,
		Name:            fmt.Sprintf("Property %d", f.next()),
		AddressStreet:   "1 Main Street",
		AddressPostcode: "00000",
	}
	for _, opt := range opts {
		opt(p)
	}
	f.check(f.Properties.Create(f.ctx, p, nil))
	return p
}

// At places a property at the given coordinates.
func At(lat, long float64) func(*models.Property) {
	return func(p *models.Property) {
		p.Lat = lat
		p.Long = long
	}
}

// Apartment creates a unit with the given capacity.
func (f *Fixtures) Apartment(propertyID int64, adults, children int) *models.Apartment {
	f.t.Helper()
	a := &models.Apartment{
		PropertyID:       propertyID,
		Name:             fmt.Sprintf("Apartment %d", f.next()),
		CapacityAdults:   adults,
		CapacityChildren: children,
	}
	f.check(f.Apartments.Create(f.ctx, a, nil))
	return a
}

// Price adds a pricing period to an apartment.
func (f *Fixtures) Price(apartmentID int64, start, end models.Date, price int64) *models.PricingPeriod {
	f.t.Helper()
	p := &models.PricingPeriod{ApartmentID: apartmentID, StartDate: start, EndDate: end, Price: price}
	f.check(f.Apartments.AddPrice(f.ctx, p))
	return p
}

// Room adds a room with one bed per bed type id.
func (f *Fixtures) Room(apartmentID int64, bedTypeIDs ...int64) *models.Room {
	f.t.Helper()
	room := &models.Room{ApartmentID: apartmentID, RoomTypeID: 1, Name: fmt.Sprintf("Room %d", f.next())}
	for _, id := range bedTypeIDs {
		room.Beds = append(room.Beds, models.Bed{BedTypeID: id})
	}
	f.check(f.Apartments.AddRoom(f.ctx, room))
	return room
}

// Booking creates a booking for a user.
func (f *Fixtures) Booking(apartmentID, userID int64, start, end models.Date) *models.Booking {
	f.t.Helper()
	b := &models.Booking{
		ApartmentID:  apartmentID,
		UserID:       userID,
		StartDate:    start,
		EndDate:      end,
		GuestsAdults: 1,
	}
	f.check(f.Bookings.Create(f.ctx, b))
	return b
}

// RatedBooking creates a booking carrying a guest rating.
func (f *Fixtures) RatedBooking(apartmentID, userID int64, start, end models.Date, rating int) *models.Booking {
	f.t.Helper()
	b := f.Booking(apartmentID, userID, start, end)
	f.check(f.Bookings.SetRating(f.ctx, b.ID, &rating))
	b.Rating = &rating
	return b
}

// Facility creates a facility, top-level when categoryID is nil.
func (f *Fixtures) Facility(name string, categoryID *int64) *models.Facility {
	f.t.Helper()
	fac := &models.Facility{Name: name, CategoryID: categoryID}
	f.check(f.Facilities.Create(f.ctx, fac))
	return fac
}

// Category creates a facility category.
func (f *Fixtures) Category(name string) *models.FacilityCategory {
	f.t.Helper()
	c := &models.FacilityCategory{Name: name}
	f.check(f.Facilities.CreateCategory(f.ctx, c))
	return c
}

// Attach links facilities to a property.
func (f *Fixtures) Attach(propertyID int64, facilities ...*models.Facility) {
	f.t.Helper()
	ids := make([]int64, len(facilities))
	for i, fac := range facilities {
		ids[i] = fac.ID
	}
	f.check(f.Properties.AttachFacilities(f.ctx, propertyID, ids...))
}

// SetRating stores a materialized average rating on a property.
func (f *Fixtures) SetRating(propertyID int64, avg float64, count int) {
	f.t.Helper()
	f.check(f.Properties.SetRating(f.ctx, propertyID, &avg, count))
}
