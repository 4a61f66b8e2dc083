package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/property-booking/backend/internal/api"
	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/auth"
	"github.com/property-booking/backend/internal/rating"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
	"github.com/property-booking/backend/internal/storage/storagetest"
)

type testServer struct {
	t        *testing.T
	f        *storagetest.Fixtures
	tokens   *auth.Tokens
	queue    *rating.DBQueue
	handler  http.Handler
	invalids int
}

func (s *testServer) Invalidate(context.Context) { s.invalids++ }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	f := storagetest.New(t)
	tokens := auth.NewTokens("test-secret", time.Hour)
	recalc := rating.NewRecalculator(f.Properties, f.Bookings)
	queue := rating.NewDBQueue(storage.NewRatingJobRepository(f.DB), recalc, rating.DefaultBatchSize)

	s := &testServer{t: t, f: f, tokens: tokens, queue: queue}
	services := api.NewServices(f.DB, nil, tokens, queue)
	services.Cache = s
	s.handler = api.NewRouter(services)
	return s
}

func (s *testServer) token(u *models.User) string {
	s.t.Helper()
	tok, err := s.tokens.Generate(u.ID, u.RoleID)
	if err != nil {
		s.t.Fatalf("generating token: %v", err)
	}
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if body := decode[middleware.ErrorResponse](t, rec); body.Error != code {
		t.Errorf("error code = %q, want %q", body.Error, code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "healthy" || body["geo_search"] != true {
		t.Errorf("health = %v", body)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	rec = s.do(http.MethodGet, "/api/status", "", nil)
	status := decode[map[string]any](t, rec)
	if status["schema_version"] != "002_reference_data.sql" || status["websocket_clients"] != float64(0) {
		t.Errorf("status = %v", status)
	}
}

func TestSearchEndpoint(t *testing.T) {
	s := newTestServer(t)
	f := s.f
	owner := f.Owner()
	city := f.City()
	wifi := f.Facility("Wifi", nil)

	prop := f.Property(owner.ID, city.ID)
	f.Attach(prop.ID, wifi)
	apt := f.Apartment(prop.ID, 2, 1)
	f.Price(apt.ID, models.MustParseDate("2024-07-01"), models.MustParseDate("2024-07-31"), 90)
	f.Room(apt.ID, 2)

	rec := s.do(http.MethodGet, "/api/search?city="+itoa(city.ID)+"&adults=2&start_date=2024-07-10&end_date=2024-07-11&facilities[]="+itoa(wifi.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Properties struct {
			Data []struct {
				ID         int64 `json:"id"`
				Apartments []struct {
					ID       int64  `json:"id"`
					BedsList string `json:"beds_list"`
					Price    *int64 `json:"price"`
				} `json:"apartments"`
			} `json:"data"`
			Meta struct {
				Total int `json:"total"`
			} `json:"meta"`
		} `json:"properties"`
		Facilities map[string]int `json:"facilities"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	if body.Properties.Meta.Total != 1 || len(body.Properties.Data) != 1 {
		t.Fatalf("properties = %+v", body.Properties)
	}
	unit := body.Properties.Data[0].Apartments[0]
	if unit.ID != apt.ID || unit.BedsList != "1 Large double bed" || unit.Price == nil || *unit.Price != 180 {
		t.Errorf("unit = %+v", unit)
	}
	if body.Facilities["Wifi"] != 1 {
		t.Errorf("facilities = %v", body.Facilities)
	}
}

func TestSearchEndpointErrors(t *testing.T) {
	s := newTestServer(t)

	expectError(t, s.do(http.MethodGet, "/api/search?start_date=2024-07-10&end_date=2024-07-01", "", nil), http.StatusBadRequest, middleware.ErrInvalidRange)
	expectError(t, s.do(http.MethodGet, "/api/search?adults=two", "", nil), http.StatusBadRequest, middleware.ErrBadRequest)
	expectError(t, s.do(http.MethodGet, "/api/search?facilities=1,x", "", nil), http.StatusBadRequest, middleware.ErrBadRequest)
}

func TestPropertyAndApartmentDetail(t *testing.T) {
	s := newTestServer(t)
	f := s.f
	owner := f.Owner()
	prop := f.Property(owner.ID, f.City().ID)
	big := f.Apartment(prop.ID, 4, 2)
	small := f.Apartment(prop.ID, 2, 0)
	f.Room(big.ID, 1, 1, 4)

	kitchen := f.Category("Kitchen")
	fridge := f.Facility("Fridge", &kitchen.ID)
	oven := f.Facility("Oven", &kitchen.ID)
	if err := f.Apartments.Create(context.Background(), &models.Apartment{PropertyID: prop.ID, Name: "Equipped", CapacityAdults: 1}, []int64{fridge.ID, oven.ID}); err != nil {
		t.Fatalf("creating apartment: %v", err)
	}

	rec := s.do(http.MethodGet, "/api/properties/"+itoa(prop.ID)+"?adults=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	detail := decode[struct {
		City       *models.City `json:"city"`
		Apartments []struct {
			ID int64 `json:"id"`
		} `json:"apartments"`
	}](t, rec)
	if detail.City == nil || detail.City.Country == nil {
		t.Errorf("city not hydrated: %+v", detail.City)
	}
	if len(detail.Apartments) != 2 || detail.Apartments[0].ID != small.ID || detail.Apartments[1].ID != big.ID {
		t.Errorf("apartments = %+v, want [%d %d]", detail.Apartments, small.ID, big.ID)
	}

	expectError(t, s.do(http.MethodGet, "/api/properties/9999", "", nil), http.StatusNotFound, middleware.ErrNotFound)
	expectError(t, s.do(http.MethodGet, "/api/properties/abc", "", nil), http.StatusBadRequest, middleware.ErrBadRequest)

	rec = s.do(http.MethodGet, "/api/apartments/"+itoa(big.ID), "", nil)
	apt := decode[struct {
		BedsList string `json:"beds_list"`
	}](t, rec)
	if apt.BedsList != "3 beds (2 Single beds, 1 Sofa bed)" {
		t.Errorf("beds_list = %q", apt.BedsList)
	}

	rec = s.do(http.MethodGet, "/api/apartments/"+itoa(big.ID+2), "", nil)
	equipped := decode[struct {
		FacilityCategories map[string][]string `json:"facility_categories"`
	}](t, rec)
	if got := equipped.FacilityCategories["Kitchen"]; len(got) != 2 {
		t.Errorf("facility_categories = %v", equipped.FacilityCategories)
	}
}

func TestPriceEndpoint(t *testing.T) {
	s := newTestServer(t)
	f := s.f
	prop := f.Property(f.Owner().ID, f.City().ID)
	apt := f.Apartment(prop.ID, 2, 0)
	d := models.MustParseDate("2024-03-01")
	f.Price(apt.ID, d, d.AddDays(2), 100)
	f.Price(apt.ID, d.AddDays(3), d.AddDays(10), 90)

	rec := s.do(http.MethodGet, "/api/apartments/"+itoa(apt.ID)+"/price?start_date=2024-03-01&end_date=2024-03-05", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]int64](t, rec)["price"]; got != 480 {
		t.Errorf("price = %d, want 480", got)
	}

	expectError(t, s.do(http.MethodGet, "/api/apartments/"+itoa(apt.ID)+"/price?start_date=2024-03-05&end_date=2024-03-01", "", nil), http.StatusBadRequest, middleware.ErrInvalidRange)
	expectError(t, s.do(http.MethodGet, "/api/apartments/"+itoa(apt.ID)+"/price?start_date=2024-03-05", "", nil), http.StatusBadRequest, middleware.ErrBadRequest)
	expectError(t, s.do(http.MethodGet, "/api/apartments/9999/price?start_date=2024-03-01&end_date=2024-03-02", "", nil), http.StatusNotFound, middleware.ErrNotFound)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	f := s.f
	owner := f.Owner()
	guest := f.Guest()
	other := f.Guest()
	prop := f.Property(owner.ID, f.City().ID)
	apt := f.Apartment(prop.ID, 2, 0)
	f.Price(apt.ID, models.MustParseDate("2024-08-01"), models.MustParseDate("2024-08-31"), 50)

	guestToken := s.token(guest)
	expectError(t, s.do(http.MethodGet, "/api/user/bookings", "", nil), http.StatusUnauthorized, middleware.ErrUnauthorized)
	expectError(t, s.do(http.MethodGet, "/api/user/bookings", s.token(owner), nil), http.StatusForbidden, middleware.ErrForbidden)

	req := map[string]any{
		"apartment_id":  apt.ID,
		"start_date":    "2024-08-10",
		"end_date":      "2024-08-12",
		"guests_adults": 2,
	}
	rec := s.do(http.MethodPost, "/api/user/bookings", guestToken, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[models.Booking](t, rec)
	if created.TotalPrice != 150 || created.UserID != guest.ID {
		t.Errorf("booking = %+v", created)
	}
	if s.invalids != 1 {
		t.Errorf("cache invalidations = %d, want 1", s.invalids)
	}

	req["start_date"] = "2024-08-12"
	req["end_date"] = "2024-08-14"
	expectError(t, s.do(http.MethodPost, "/api/user/bookings", s.token(other), req), http.StatusConflict, middleware.ErrConflict)

	req["start_date"] = "2024-08-20"
	req["end_date"] = "2024-08-21"
	req["guests_adults"] = 3
	expectError(t, s.do(http.MethodPost, "/api/user/bookings", guestToken, req), http.StatusUnprocessableEntity, middleware.ErrValidation)

	expectError(t, s.do(http.MethodPost, "/api/user/bookings", guestToken, map[string]any{"start_date": "2024-08-20"}), http.StatusUnprocessableEntity, middleware.ErrValidation)

	rec = s.do(http.MethodGet, "/api/user/bookings", guestToken, nil)
	if list := decode[[]models.Booking](t, rec); len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("bookings = %+v", list)
	}

	path := "/api/user/bookings/" + itoa(created.ID)
	expectError(t, s.do(http.MethodPatch, path, guestToken, map[string]any{"rating": 11}), http.StatusUnprocessableEntity, middleware.ErrValidation)
	expectError(t, s.do(http.MethodPatch, path, s.token(other), map[string]any{"rating": 8}), http.StatusForbidden, middleware.ErrForbidden)

	rec = s.do(http.MethodPatch, path, guestToken, map[string]any{"rating": 8})
	if rec.Code != http.StatusOK {
		t.Fatalf("rate status = %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := s.queue.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	stored, err := f.Properties.GetByID(context.Background(), prop.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.AvgRating == nil || *stored.AvgRating != 8 || stored.RatingCount != 1 {
		t.Errorf("rating = %v/%d, want 8/1", stored.AvgRating, stored.RatingCount)
	}

	rec = s.do(http.MethodDelete, path, guestToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	expectError(t, s.do(http.MethodDelete, path, guestToken, nil), http.StatusNotFound, middleware.ErrNotFound)

	// The freed dates can be booked again.
	req["guests_adults"] = 1
	req["start_date"] = "2024-08-11"
	req["end_date"] = "2024-08-11"
	if rec := s.do(http.MethodPost, "/api/user/bookings", s.token(other), req); rec.Code != http.StatusCreated {
		t.Errorf("rebook status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOwnerEndpoints(t *testing.T) {
	s := newTestServer(t)
	f := s.f
	owner := f.Owner()
	rival := f.Owner()
	city := f.City()
	wifi := f.Facility("Wifi", nil)
	ownerToken := s.token(owner)

	expectError(t, s.do(http.MethodPost, "/api/owner/properties", s.token(f.Guest()), map[string]any{}), http.StatusForbidden, middleware.ErrForbidden)
	expectError(t, s.do(http.MethodPost, "/api/owner/properties", ownerToken, map[string]any{"name": "No city"}), http.StatusUnprocessableEntity, middleware.ErrValidation)

	propReq := map[string]any{
		"name":             "Seaside",
		"city_id":          city.ID,
		"address_street":   "1 Beach Road",
		"address_postcode": "12345",
		"lat":              43.7,
		"long":             7.25,
		"facilities":       []int64{wifi.ID},
	}
	badCity := map[string]any{}
	for k, v := range propReq {
		badCity[k] = v
	}
	badCity["city_id"] = 9999
	expectError(t, s.do(http.MethodPost, "/api/owner/properties", ownerToken, badCity), http.StatusUnprocessableEntity, middleware.ErrValidation)

	rec := s.do(http.MethodPost, "/api/owner/properties", ownerToken, propReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create property status = %d: %s", rec.Code, rec.Body.String())
	}
	prop := decode[models.Property](t, rec)
	if prop.OwnerID != owner.ID || prop.City == nil {
		t.Errorf("property = %+v", prop)
	}

	aptReq := map[string]any{
		"name":              "Studio",
		"capacity_adults":   2,
		"capacity_children": 1,
		"rooms": []map[string]any{
			{"room_type_id": 1, "name": "Bedroom", "beds": []int64{2}},
			{"room_type_id": 2, "name": "Living room", "beds": []int64{4}},
		},
	}
	aptPath := "/api/owner/properties/" + itoa(prop.ID) + "/apartments"
	expectError(t, s.do(http.MethodPost, aptPath, s.token(rival), aptReq), http.StatusForbidden, middleware.ErrForbidden)

	rec = s.do(http.MethodPost, aptPath, ownerToken, aptReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create apartment status = %d: %s", rec.Code, rec.Body.String())
	}
	apt := decode[models.Apartment](t, rec)

	pricePath := "/api/owner/apartments/" + itoa(apt.ID) + "/prices"
	expectError(t, s.do(http.MethodPost, pricePath, ownerToken, map[string]any{"start_date": "2024-09-10", "end_date": "2024-09-01", "price": 10}), http.StatusBadRequest, middleware.ErrInvalidRange)
	expectError(t, s.do(http.MethodPost, pricePath, s.token(rival), map[string]any{"start_date": "2024-09-01", "end_date": "2024-09-30", "price": 10}), http.StatusForbidden, middleware.ErrForbidden)

	rec = s.do(http.MethodPost, pricePath, ownerToken, map[string]any{"start_date": "2024-09-01", "end_date": "2024-09-30", "price": 75})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add price status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/api/search?city="+itoa(city.ID)+"&start_date=2024-09-05&end_date=2024-09-06", "", nil)
	body := decode[struct {
		Properties struct {
			Data []struct {
				Apartments []struct {
					BedsList string `json:"beds_list"`
					Price    int64  `json:"price"`
				} `json:"apartments"`
			} `json:"data"`
		} `json:"properties"`
		Facilities map[string]int `json:"facilities"`
	}](t, rec)
	if len(body.Properties.Data) != 1 {
		t.Fatalf("search = %+v", body)
	}
	unit := body.Properties.Data[0].Apartments[0]
	if unit.BedsList != "2 beds (1 Large double bed, 1 Sofa bed)" || unit.Price != 150 {
		t.Errorf("unit = %+v", unit)
	}
	if body.Facilities["Wifi"] != 1 {
		t.Errorf("facilities = %v", body.Facilities)
	}
	if s.invalids != 3 {
		t.Errorf("cache invalidations = %d, want 3", s.invalids)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
