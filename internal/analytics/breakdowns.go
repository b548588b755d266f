package analytics

import (
	"strings"

	"github.com/pariz/gountries"

	ua "listingpulse/internal/pkg/user_agent"
)

// OtherCountry groups visits without a country code.
const OtherCountry = "Other"

type BreakdownRow struct {
	Name       string `json:"name"`
	Code       string `json:"code,omitempty"`
	Visitors   int    `json:"visitors"`
	Percentage int    `json:"percentage"`
}

type Breakdowns struct {
	Countries        []BreakdownRow `json:"countries"`
	Devices          []BreakdownRow `json:"devices"`
	OperatingSystems []BreakdownRow `json:"operating_systems"`
}

var countryQuery = gountries.New()

// ComputeBreakdowns groups unique pool identities by country, device class
// and OS in one pass. Percentages use pool.UniqueVisitors.
func ComputeBreakdowns(pool *VisitorPool) Breakdowns {
	countries := make(map[string]identitySet)
	devices := make(map[string]identitySet)
	systems := make(map[string]identitySet)

	add := func(groups map[string]identitySet, key, identity string) {
		if groups[key] == nil {
			groups[key] = make(identitySet)
		}
		groups[key].add(identity)
	}

	for _, v := range pool.Visits {
		code := strings.ToUpper(strings.TrimSpace(v.CountryCode))
		if code == "" {
			code = OtherCountry
		}
		add(countries, code, v.Identity)
		add(devices, ua.ParseDevice(v.UserAgent), v.Identity)
		add(systems, ua.ParseOS(v.UserAgent), v.Identity)
	}

	result := Breakdowns{
		Countries:        rows(countries, pool.UniqueVisitors),
		Devices:          rows(devices, pool.UniqueVisitors),
		OperatingSystems: rows(systems, pool.UniqueVisitors),
	}
	for i := range result.Countries {
		row := &result.Countries[i]
		row.Code = row.Name
		row.Name = CountryName(row.Name)
	}
	return result
}

// CountryName resolves an ISO alpha-2 code to its common name, falling back
// to the code itself.
func CountryName(code string) string {
	if code == OtherCountry {
		return code
	}
	country, err := countryQuery.FindCountryByAlpha(code)
	if err != nil {
		return code
	}
	return country.Name.Common
}

func rows(groups map[string]identitySet, uniqueVisitors int) []BreakdownRow {
	counts := make(map[string]int, len(groups))
	for name, set := range groups {
		counts[name] = len(set)
	}

	result := make([]BreakdownRow, 0, len(counts))
	for _, name := range sortedCounts(counts) {
		result = append(result, BreakdownRow{
			Name:       name,
			Visitors:   counts[name],
			Percentage: percentage(counts[name], uniqueVisitors),
		})
	}
	return result
}
