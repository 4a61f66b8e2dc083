// Package models contains the domain models for the application.
package models

import (
	"time"
)

// Property is a listing owned by a single user and located in a single city.
type Property struct {
	ID              int64     `json:"id"`
	OwnerID         int64     `json:"owner_id"`
	Name            string    `json:"name"`
	CityID          int64     `json:"city_id"`
	AddressStreet   string    `json:"address_street"`
	AddressPostcode string    `json:"address_postcode"`
	Lat             float64   `json:"lat"`
	Long            float64   `json:"long"`
	AvgRating       *float64  `json:"avg_rating"`
	RatingCount     int       `json:"rating_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	City       *City       `json:"city,omitempty"`
	Apartments []Apartment `json:"apartments,omitempty"`
	Facilities []Facility  `json:"facilities,omitempty"`
}

// City belongs to a country.
type City struct {
	ID        int64    `json:"id"`
	CountryID int64    `json:"country_id"`
	Name      string   `json:"name"`
	Country   *Country `json:"country,omitempty"`
}

// Country carries a reference point used for distance queries.
type Country struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Geoobject is a named point of interest used as the center of radius searches.
type Geoobject struct {
	ID     int64   `json:"id"`
	CityID *int64  `json:"city_id,omitempty"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Long   float64 `json:"long"`
}
