package models

// Facility is an amenity shared by properties and apartments.
// Facilities without a category are the ones surfaced as search facets.
type Facility struct {
	ID         int64   `json:"id"`
	CategoryID *int64  `json:"category_id,omitempty"`
	Name       string  `json:"name"`
	Category   *string `json:"category,omitempty"`
}

// IsTopLevel reports whether the facility has no parent category.
func (f Facility) IsTopLevel() bool {
	return f.CategoryID == nil
}

// FacilityCategory groups facilities shown on apartment detail pages.
type FacilityCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
