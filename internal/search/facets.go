package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// FacilityLink is one facility attached to one matched property.
type FacilityLink struct {
	FacilityID int64
	Name       string
	CategoryID *int64
	PropertyID int64
}

// FacetCount is the number of matched properties carrying a facility.
type FacetCount struct {
	FacilityID int64
	Name       string
	Count      int
}

// Facets is an ordered list of facility counts. It encodes as a JSON object
// mapping facility name to count, keys kept in list order.
type Facets []FacetCount

// AggregateFacilities counts distinct properties per top-level facility.
// Facilities with no property are absent. The result is ordered by count
// descending, then by facility id ascending.
func AggregateFacilities(links []FacilityLink) Facets {
	type acc struct {
		FacetCount
		seen map[int64]bool
	}

	byID := make(map[int64]*acc)
	for _, l := range links {
		if l.CategoryID != nil {
			continue
		}
		a, ok := byID[l.FacilityID]
		if !ok {
			a = &acc{FacetCount: FacetCount{FacilityID: l.FacilityID, Name: l.Name}, seen: make(map[int64]bool)}
			byID[l.FacilityID] = a
		}
		if !a.seen[l.PropertyID] {
			a.seen[l.PropertyID] = true
			a.Count++
		}
	}

	facets := make(Facets, 0, len(byID))
	for _, a := range byID {
		if a.Count > 0 {
			facets = append(facets, a.FacetCount)
		}
	}
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].Count != facets[j].Count {
			return facets[i].Count > facets[j].Count
		}
		return facets[i].FacilityID < facets[j].FacilityID
	})
	return facets
}

// MarshalJSON encodes the facets as an ordered object.
func (f Facets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fc := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fc.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", fc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object produced by MarshalJSON, keeping key order.
// Facility ids are not part of the encoding and decode as zero.
func (f *Facets) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("facets: expected object, got %v", tok)
	}

	out := Facets{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("facets: expected key, got %v", tok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("facets: count of %q: %w", name, err)
		}
		out = append(out, FacetCount{Name: name, Count: count})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}
