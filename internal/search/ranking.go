package search

import "sort"

// Match is a property that passed the filters, with its stored average rating.
type Match struct {
	PropertyID int64
	AvgRating  *float64
}

// RankByRating orders matches by average rating, highest first. Unrated
// properties come after every rated one, including a rating of zero. Equal
// ratings are ordered by property id.
func RankByRating(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		switch {
		case a.AvgRating == nil && b.AvgRating == nil:
			return a.PropertyID < b.PropertyID
		case a.AvgRating == nil:
			return false
		case b.AvgRating == nil:
			return true
		case *a.AvgRating != *b.AvgRating:
			return *a.AvgRating > *b.AvgRating
		default:
			return a.PropertyID < b.PropertyID
		}
	})
}
