package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/property-booking/backend/internal/storage/models"
)

// SummarizeBeds describes an apartment's sleeping arrangement.
//
//	no beds         ""
//	one bed type    "2 Single beds"
//	several types   "4 beds (3 Single beds, 1 Sofa bed)"
//
// Types are listed by count descending; equal counts keep the order in
// which the type first appears in beds.
func SummarizeBeds(beds []models.BedTypeRef) string {
	if len(beds) == 0 {
		return ""
	}

	type group struct {
		name  string
		count int
	}
	var groups []*group
	byType := make(map[int64]*group)
	for _, b := range beds {
		g, ok := byType[b.BedTypeID]
		if !ok {
			g = &group{name: b.Name}
			byType[b.BedTypeID] = g
			groups = append(groups, g)
		}
		g.count++
	}

	if len(groups) == 1 {
		return countOf(groups[0].count, groups[0].name)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})

	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = countOf(g.count, g.name)
	}
	return fmt.Sprintf("%d beds (%s)", len(beds), strings.Join(parts, ", "))
}

func countOf(n int, name string) string {
	if n != 1 {
		name = inflection.Plural(name)
	}
	return fmt.Sprintf("%d %s", n, name)
}
