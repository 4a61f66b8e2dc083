package search_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/property-booking/backend/internal/search"
	"github.com/property-booking/backend/internal/storage/models"
	"github.com/property-booking/backend/internal/storage/storagetest"
)

func ptr[T any](v T) *T { return &v }

func newPipeline(f *storagetest.Fixtures) *search.Pipeline {
	return search.NewPipeline(f.DB, f.Locations, f.Properties, f.Apartments, f.Bookings)
}

func resultIDs(res *search.Result) []int64 {
	ids := []int64{}
	for _, p := range res.Properties.Data {
		ids = append(ids, p.ID)
	}
	return ids
}

func runSearch(t *testing.T, p search.Searcher, c search.Criteria) *search.Result {
	t.Helper()
	res, err := p.Search(context.Background(), c)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	return res
}

func TestSearchLocationFilters(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()

	country := f.Country(0, 0)
	cityA := f.CityIn(country.ID)
	cityB := f.CityIn(country.ID)
	other := f.City()

	inA := f.Property(owner.ID, cityA.ID)
	inB := f.Property(owner.ID, cityB.ID)
	f.Property(owner.ID, other.ID)

	p := newPipeline(f)

	if got := resultIDs(runSearch(t, p, search.Criteria{CityID: &cityA.ID})); !reflect.DeepEqual(got, []int64{inA.ID}) {
		t.Errorf("city search = %v, want [%d]", got, inA.ID)
	}
	if got := resultIDs(runSearch(t, p, search.Criteria{CountryID: &country.ID})); !reflect.DeepEqual(got, []int64{inA.ID, inB.ID}) {
		t.Errorf("country search = %v, want [%d %d]", got, inA.ID, inB.ID)
	}
	if got := resultIDs(runSearch(t, p, search.Criteria{})); len(got) != 3 {
		t.Errorf("unfiltered search = %v, want 3 properties", got)
	}
}

func TestSearchGeoobjectRadius(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	city := f.City()

	near := f.Property(owner.ID, city.ID, storagetest.At(50.0, 10.0))
	f.Property(owner.ID, city.ID, storagetest.At(51.0, 10.0))
	landmark := f.Geoobject(city.ID, 50.0, 10.05)

	p := newPipeline(f)

	got := resultIDs(runSearch(t, p, search.Criteria{GeoobjectID: &landmark.ID}))
	if !reflect.DeepEqual(got, []int64{near.ID}) {
		t.Errorf("geo search = %v, want [%d]", got, near.ID)
	}

	unknown := int64(9999)
	if got := resultIDs(runSearch(t, p, search.Criteria{GeoobjectID: &unknown})); len(got) != 2 {
		t.Errorf("unknown geoobject search = %v, want both properties", got)
	}
}

func TestSearchCapacityPicksSmallestUnit(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	city := f.City()

	prop := f.Property(owner.ID, city.ID)
	f.Apartment(prop.ID, 6, 2)
	small := f.Apartment(prop.ID, 2, 0)
	f.Apartment(prop.ID, 1, 0)
	medium := f.Apartment(prop.ID, 2, 1)

	tooSmall := f.Property(owner.ID, city.ID)
	f.Apartment(tooSmall.ID, 1, 0)

	p := newPipeline(f)

	res := runSearch(t, p, search.Criteria{Adults: ptr(2)})
	if got := resultIDs(res); !reflect.DeepEqual(got, []int64{prop.ID}) {
		t.Fatalf("capacity search = %v, want [%d]", got, prop.ID)
	}
	units := res.Properties.Data[0].Apartments
	if len(units) != 1 || units[0].ID != small.ID {
		t.Errorf("best unit = %+v, want apartment %d", units, small.ID)
	}

	res = runSearch(t, p, search.Criteria{Adults: ptr(2), Children: ptr(1)})
	units = res.Properties.Data[0].Apartments
	if len(units) != 1 || units[0].ID != medium.ID {
		t.Errorf("best unit with children = %+v, want apartment %d", units, medium.ID)
	}

	res = runSearch(t, p, search.Criteria{})
	for _, s := range res.Properties.Data {
		if s.ID == prop.ID && len(s.Apartments) != 4 {
			t.Errorf("unconstrained search lists %d apartments, want 4", len(s.Apartments))
		}
	}
}

func TestSearchExcludesBookedUnits(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	guest := f.Guest()
	city := f.City()

	prop := f.Property(owner.ID, city.ID)
	small := f.Apartment(prop.ID, 2, 0)
	large := f.Apartment(prop.ID, 4, 0)
	f.Price(large.ID, models.MustParseDate("2024-06-01"), models.MustParseDate("2024-06-30"), 120)
	f.Booking(small.ID, guest.ID, models.MustParseDate("2024-06-10"), models.MustParseDate("2024-06-12"))

	full := f.Property(owner.ID, city.ID)
	only := f.Apartment(full.ID, 2, 0)
	f.Booking(only.ID, guest.ID, models.MustParseDate("2024-06-12"), models.MustParseDate("2024-06-15"))

	p := newPipeline(f)
	c := search.Criteria{
		Adults:    ptr(2),
		StartDate: ptr(models.MustParseDate("2024-06-12")),
		EndDate:   ptr(models.MustParseDate("2024-06-13")),
	}

	res := runSearch(t, p, c)
	if got := resultIDs(res); !reflect.DeepEqual(got, []int64{prop.ID}) {
		t.Fatalf("availability search = %v, want [%d]", got, prop.ID)
	}
	unit := res.Properties.Data[0].Apartments[0]
	if unit.ID != large.ID {
		t.Errorf("best unit = %d, want %d", unit.ID, large.ID)
	}
	if unit.Price == nil || *unit.Price != 240 {
		t.Errorf("price = %v, want 240", unit.Price)
	}

	// Once both bookings are over, both properties are free again.
	c.StartDate = ptr(models.MustParseDate("2024-06-16"))
	c.EndDate = ptr(models.MustParseDate("2024-06-17"))
	if got := resultIDs(runSearch(t, p, c)); len(got) != 2 {
		t.Errorf("search after bookings = %v, want both properties", got)
	}
}

func TestSearchInvalidRange(t *testing.T) {
	f := storagetest.New(t)
	p := newPipeline(f)

	_, err := p.Search(context.Background(), search.Criteria{
		StartDate: ptr(models.MustParseDate("2024-06-10")),
		EndDate:   ptr(models.MustParseDate("2024-06-01")),
	})
	if err == nil {
		t.Error("Search() accepted a reversed date range")
	}
}

func TestSearchFacilitiesAndFacets(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	city := f.City()

	wifi := f.Facility("Wifi", nil)
	parking := f.Facility("Parking", nil)
	kitchen := f.Category("Kitchen")
	fridge := f.Facility("Fridge", &kitchen.ID)

	p1 := f.Property(owner.ID, city.ID)
	p2 := f.Property(owner.ID, city.ID)
	p3 := f.Property(owner.ID, city.ID)
	f.Attach(p1.ID, wifi, parking, fridge)
	f.Attach(p2.ID, wifi)

	p := newPipeline(f)

	res := runSearch(t, p, search.Criteria{})
	want := search.Facets{
		{FacilityID: wifi.ID, Name: "Wifi", Count: 2},
		{FacilityID: parking.ID, Name: "Parking", Count: 1},
	}
	if !reflect.DeepEqual(res.Facilities, want) {
		t.Errorf("facets = %+v, want %+v", res.Facilities, want)
	}

	// Requiring several facilities keeps only properties having all of them.
	res = runSearch(t, p, search.Criteria{FacilityIDs: []int64{wifi.ID, parking.ID}})
	if got := resultIDs(res); !reflect.DeepEqual(got, []int64{p1.ID}) {
		t.Errorf("facility search = %v, want [%d]", got, p1.ID)
	}

	f.Attach(p3.ID, wifi, parking)
	res = runSearch(t, p, search.Criteria{})
	want = search.Facets{
		{FacilityID: wifi.ID, Name: "Wifi", Count: 3},
		{FacilityID: parking.ID, Name: "Parking", Count: 2},
	}
	if !reflect.DeepEqual(res.Facilities, want) {
		t.Errorf("facets after attach = %+v, want %+v", res.Facilities, want)
	}

	// Facets describe the filtered matches only.
	res = runSearch(t, p, search.Criteria{FacilityIDs: []int64{parking.ID}})
	want = search.Facets{
		{FacilityID: wifi.ID, Name: "Wifi", Count: 2},
		{FacilityID: parking.ID, Name: "Parking", Count: 2},
	}
	if !reflect.DeepEqual(res.Facilities, want) {
		t.Errorf("filtered facets = %+v, want %+v", res.Facilities, want)
	}
}

func TestSearchPriceBounds(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	city := f.City()
	start, end := models.MustParseDate("2024-01-01"), models.MustParseDate("2024-12-31")

	cheap := f.Property(owner.ID, city.ID)
	f.Price(f.Apartment(cheap.ID, 2, 0).ID, start, end, 50)

	pricey := f.Property(owner.ID, city.ID)
	f.Price(f.Apartment(pricey.ID, 2, 0).ID, start, end, 300)

	mixed := f.Property(owner.ID, city.ID)
	apt := f.Apartment(mixed.ID, 2, 0)
	f.Price(apt.ID, start, end, 40)
	f.Price(apt.ID, start, end, 400)

	p := newPipeline(f)

	got := resultIDs(runSearch(t, p, search.Criteria{PriceFrom: ptr(int64(100))}))
	if !reflect.DeepEqual(got, []int64{pricey.ID, mixed.ID}) {
		t.Errorf("price_from search = %v", got)
	}
	got = resultIDs(runSearch(t, p, search.Criteria{PriceTo: ptr(int64(100))}))
	if !reflect.DeepEqual(got, []int64{cheap.ID, mixed.ID}) {
		t.Errorf("price_to search = %v", got)
	}
	// Bounds are checked independently, so a property with one cheap and one
	// expensive period matches a band neither period falls into.
	got = resultIDs(runSearch(t, p, search.Criteria{PriceFrom: ptr(int64(100)), PriceTo: ptr(int64(200))}))
	if !reflect.DeepEqual(got, []int64{mixed.ID}) {
		t.Errorf("price band search = %v, want [%d]", got, mixed.ID)
	}
}

func TestSearchRankingAndPagination(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	city := f.City()

	var unrated []int64
	for i := 0; i < 10; i++ {
		unrated = append(unrated, f.Property(owner.ID, city.ID).ID)
	}
	low := f.Property(owner.ID, city.ID)
	f.SetRating(low.ID, 3, 1)
	high := f.Property(owner.ID, city.ID)
	f.SetRating(high.ID, 9.5, 2)

	p := newPipeline(f)

	first := runSearch(t, p, search.Criteria{})
	meta := first.Properties.Meta
	if meta.Total != 12 || meta.PerPage != 10 || meta.LastPage != 2 || meta.CurrentPage != 1 {
		t.Errorf("meta = %+v", meta)
	}
	ids := resultIDs(first)
	if len(ids) != 10 || ids[0] != high.ID || ids[1] != low.ID || ids[2] != unrated[0] {
		t.Errorf("first page = %v", ids)
	}
	if r := first.Properties.Data[0].AvgRating; r == nil || *r != 9.5 {
		t.Errorf("avg_rating = %v, want 9.5", r)
	}

	second := runSearch(t, p, search.Criteria{Page: 2})
	if got := resultIDs(second); !reflect.DeepEqual(got, unrated[8:]) {
		t.Errorf("second page = %v, want %v", got, unrated[8:])
	}

	beyond := runSearch(t, p, search.Criteria{Page: 5})
	if len(beyond.Properties.Data) != 0 || beyond.Properties.Meta.Total != 12 {
		t.Errorf("page beyond last = %+v", beyond.Properties)
	}

	huge := runSearch(t, p, search.Criteria{Page: 922337203685477582})
	if len(huge.Properties.Data) != 0 || huge.Properties.Meta.Total != 12 {
		t.Errorf("huge page = %+v", huge.Properties)
	}
}

func TestSearchBedsList(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	prop := f.Property(owner.ID, f.City().ID)
	apt := f.Apartment(prop.ID, 4, 0)
	f.Room(apt.ID, 1, 1)
	f.Room(apt.ID, 4, 1)

	res := runSearch(t, newPipeline(f), search.Criteria{})
	if got := res.Properties.Data[0].Apartments[0].BedsList; got != "4 beds (3 Single beds, 1 Sofa bed)" {
		t.Errorf("beds_list = %q", got)
	}
}

type countingSearcher struct {
	calls int
	next  search.Searcher
}

func (s *countingSearcher) Search(ctx context.Context, c search.Criteria) (*search.Result, error) {
	s.calls++
	return s.next.Search(ctx, c)
}

func TestCachedSearcher(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	city := f.City()
	f.Property(owner.ID, city.ID)

	inner := &countingSearcher{next: newPipeline(f)}
	cache := search.NewCache(search.DefaultCacheOptions())
	defer cache.Close()
	s := search.NewCachedSearcher(inner, cache)

	c := search.Criteria{CityID: &city.ID}
	runSearch(t, s, c)
	res := runSearch(t, s, c)
	if inner.calls != 1 {
		t.Errorf("inner searches = %d, want 1", inner.calls)
	}
	if res.Properties.Meta.Total != 1 {
		t.Errorf("cached total = %d, want 1", res.Properties.Meta.Total)
	}

	f.Property(owner.ID, city.ID)
	cache.Invalidate(context.Background())

	res = runSearch(t, s, c)
	if inner.calls != 2 || res.Properties.Meta.Total != 2 {
		t.Errorf("after invalidate: calls=%d total=%d, want 2 and 2", inner.calls, res.Properties.Meta.Total)
	}
}

// writingSearcher changes the catalog and invalidates the cache after its
// inner search has read the database, like a booking landing mid-search.
type writingSearcher struct {
	next  search.Searcher
	write func()
}

func (s *writingSearcher) Search(ctx context.Context, c search.Criteria) (*search.Result, error) {
	res, err := s.next.Search(ctx, c)
	if s.write != nil {
		s.write()
		s.write = nil
	}
	return res, err
}

func TestCachedSearcherKeepsWriteDuringSearch(t *testing.T) {
	f := storagetest.New(t)
	owner := f.Owner()
	city := f.City()
	f.Property(owner.ID, city.ID)

	cache := search.NewCache(search.DefaultCacheOptions())
	defer cache.Close()

	inner := &writingSearcher{next: newPipeline(f)}
	inner.write = func() {
		f.Property(owner.ID, city.ID)
		cache.Invalidate(context.Background())
	}
	s := search.NewCachedSearcher(inner, cache)

	c := search.Criteria{CityID: &city.ID}
	if res := runSearch(t, s, c); res.Properties.Meta.Total != 1 {
		t.Fatalf("first total = %d, want 1", res.Properties.Meta.Total)
	}
	if res := runSearch(t, s, c); res.Properties.Meta.Total != 2 {
		t.Errorf("total after write during search = %d, want 2", res.Properties.Meta.Total)
	}
}
