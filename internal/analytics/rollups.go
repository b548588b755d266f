package analytics

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"listingpulse/internal/events"
	"listingpulse/internal/listings"
)

// RollupLimit bounds every top-N table.
const RollupLimit = 10

// SearchParam is the query parameter carrying on-site search terms.
const SearchParam = "q"

const uncategorized = "Uncategorized"

type ListingRollup struct {
	ListingID uint   `json:"listing_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Category  string `json:"category"`
	Views     int    `json:"views"`
	Clicks    int    `json:"clicks"`
}

type SearchTerm struct {
	Term     string `json:"term"`
	Visitors int    `json:"visitors"`
	Searches int    `json:"searches"`
}

type CategoryRollup struct {
	Category string `json:"category"`
	Views    int    `json:"views"`
	Clicks   int    `json:"clicks"`
}

// ListingIDs returns the distinct listing ids of the given rows.
func ListingIDs(rows ...[]events.ConversionEvent) []uint {
	seen := make(map[uint]struct{})
	var ids []uint
	for _, set := range rows {
		for _, row := range set {
			if _, ok := seen[row.ListingID]; ok {
				continue
			}
			seen[row.ListingID] = struct{}{}
			ids = append(ids, row.ListingID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TopListings ranks listings by distinct clickers, then distinct viewers.
// Conversions for unknown listings are ignored.
func TopListings(views, clicks []events.ConversionEvent, known map[uint]listings.Listing) []ListingRollup {
	viewers := make(map[uint]identitySet)
	clickers := make(map[uint]identitySet)
	tally := func(target map[uint]identitySet, rows []events.ConversionEvent) {
		for _, row := range rows {
			if _, ok := known[row.ListingID]; !ok {
				continue
			}
			if target[row.ListingID] == nil {
				target[row.ListingID] = make(identitySet)
			}
			target[row.ListingID].add(row.VisitorKey)
		}
	}
	tally(viewers, views)
	tally(clickers, clicks)

	result := make([]ListingRollup, 0, len(known))
	for id, listing := range known {
		v, c := len(viewers[id]), len(clickers[id])
		if v == 0 && c == 0 {
			continue
		}
		result = append(result, ListingRollup{
			ListingID: id,
			Name:      listing.Name,
			Slug:      listing.Slug,
			Category:  listing.Category,
			Views:     v,
			Clicks:    c,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Clicks != result[j].Clicks {
			return result[i].Clicks > result[j].Clicks
		}
		if result[i].Views != result[j].Views {
			return result[i].Views > result[j].Views
		}
		return result[i].ListingID < result[j].ListingID
	})
	if len(result) > RollupLimit {
		result = result[:RollupLimit]
	}
	return result
}

// TopSearchTerms extracts the search parameter from pool visit paths and
// ranks the normalized terms by distinct visitors.
func TopSearchTerms(pool *VisitorPool) []SearchTerm {
	visitorsByTerm := make(map[string]identitySet)
	searches := make(map[string]int)

	for _, v := range pool.Visits {
		term := searchTerm(v.Path)
		if term == "" {
			continue
		}
		if visitorsByTerm[term] == nil {
			visitorsByTerm[term] = make(identitySet)
		}
		visitorsByTerm[term].add(v.Identity)
		searches[term]++
	}

	counts := make(map[string]int, len(visitorsByTerm))
	for term, set := range visitorsByTerm {
		counts[term] = len(set)
	}

	names := sortedCounts(counts)
	if len(names) > RollupLimit {
		names = names[:RollupLimit]
	}
	result := make([]SearchTerm, 0, len(names))
	for _, term := range names {
		result = append(result, SearchTerm{Term: term, Visitors: counts[term], Searches: searches[term]})
	}
	return result
}

func searchTerm(path string) string {
	idx := strings.IndexByte(path, '?')
	if idx < 0 {
		return ""
	}
	values, err := url.ParseQuery(path[idx+1:])
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToLower(values.Get(SearchParam))), " ")
}

// TopCategories sums distinct viewers and clickers per listing category.
func TopCategories(views, clicks []events.ConversionEvent, known map[uint]listings.Listing) []CategoryRollup {
	caser := cases.Title(language.AmericanEnglish)
	category := func(id uint) (string, bool) {
		listing, ok := known[id]
		if !ok {
			return "", false
		}
		name := strings.TrimSpace(listing.Category)
		if name == "" {
			return uncategorized, true
		}
		return caser.String(name), true
	}

	type pair struct {
		category string
		visitor  string
	}
	viewPairs := make(map[pair]struct{})
	clickPairs := make(map[pair]struct{})
	collect := func(target map[pair]struct{}, rows []events.ConversionEvent) {
		for _, row := range rows {
			if name, ok := category(row.ListingID); ok {
				target[pair{category: name, visitor: row.VisitorKey}] = struct{}{}
			}
		}
	}
	collect(viewPairs, views)
	collect(clickPairs, clicks)

	totals := make(map[string]*CategoryRollup)
	get := func(name string) *CategoryRollup {
		if totals[name] == nil {
			totals[name] = &CategoryRollup{Category: name}
		}
		return totals[name]
	}
	for p := range viewPairs {
		get(p.category).Views++
	}
	for p := range clickPairs {
		get(p.category).Clicks++
	}

	result := make([]CategoryRollup, 0, len(totals))
	for _, c := range totals {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].Views+result[i].Clicks, result[j].Views+result[j].Clicks
		if ti != tj {
			return ti > tj
		}
		return result[i].Category < result[j].Category
	})
	if len(result) > RollupLimit {
		result = result[:RollupLimit]
	}
	return result
}
