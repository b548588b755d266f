// Package seeder fills a database with demo listings and visitor activity.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/karloscodes/cartridge"

	"listingpulse/internal/analytics"
	"listingpulse/internal/events"
	"listingpulse/internal/listings"
	"listingpulse/internal/visitors"
)

// Seeder generates realistic journeys through the directory: landing pages,
// searches, listing views and outbound clicks.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	EventCount int
	Days       int

	rand *rand.Rand
	now  func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, eventCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		EventCount: eventCount,
		Days:       30,
		rand:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithSeed makes the generated data reproducible.
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.rand = rand.New(rand.NewPCG(seed, seed))
	return s
}

// Stats summarizes one seeding run.
type Stats struct {
	Listings    int
	Sessions    int
	Traffic     int
	Conversions int
}

// Run creates the demo listings if missing, then generates traffic.
func (s *Seeder) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	s.Logger.Info("Seeding database...", slog.Int("eventCount", s.EventCount))

	seeded, err := s.seedListings()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to seed listings: %w", err)
	}

	stats, err := s.generateJourneys(ctx, seeded)
	if err != nil {
		return stats, fmt.Errorf("failed to generate traffic: %w", err)
	}
	stats.Listings = len(seeded)

	s.Logger.Info("Seeding completed",
		slog.Int("listings", stats.Listings),
		slog.Int("sessions", stats.Sessions),
		slog.Int("traffic", stats.Traffic),
		slog.Int("conversions", stats.Conversions),
		slog.Duration("elapsed", time.Since(start)))
	return stats, nil
}

func (s *Seeder) seedListings() ([]listings.Listing, error) {
	db := s.DBManager.GetConnection()
	result := make([]listings.Listing, 0, len(demoListings))

	for i, demo := range demoListings {
		var existing listings.Listing
		if err := db.Where("slug = ?", listings.Slugify(demo.Name)).Limit(1).Find(&existing).Error; err != nil {
			return nil, err
		}
		if existing.ID != 0 {
			result = append(result, existing)
			continue
		}

		listing := demo
		listing.CreatedAt = s.now().Add(-time.Duration(i*3+1) * 24 * time.Hour)
		if err := listings.CreateListing(s.Logger, db, &listing); err != nil {
			return nil, err
		}
		result = append(result, listing)
	}
	return result, nil
}

// visitorProfile is one simulated browser reused across sessions.
type visitorProfile struct {
	ip          string
	userAgent   string
	fingerprint string
	country     string
}

func (s *Seeder) generateJourneys(ctx context.Context, seeded []listings.Listing) (Stats, error) {
	var stats Stats
	if len(seeded) == 0 {
		return stats, nil
	}

	profiles := s.visitorProfiles(max(s.EventCount/20, 10))
	numSessions := max(s.EventCount/4, 10)
	window := time.Duration(max(s.Days, 1)) * 24 * time.Hour

	for session := 0; session < numSessions; session++ {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		profile := profiles[s.rand.IntN(len(profiles))]
		referrer := referrerPool[s.rand.IntN(len(referrerPool))]
		at := s.now().Add(-time.Duration(s.rand.Int64N(int64(window))))
		stats.Sessions++

		for i, page := range s.journey(seeded) {
			if i > 0 {
				at = at.Add(time.Duration(s.rand.IntN(110)+10) * time.Second)
				referrer = ""
			}

			input := &events.CollectTrafficInput{
				IPAddress:   profile.ip,
				Fingerprint: profile.fingerprint,
				UserAgent:   profile.userAgent,
				ReferrerURL: referrer,
				CountryCode: profile.country,
				Path:        page.path,
				Timestamp:   at,
			}
			if _, err := events.CollectTraffic(s.DBManager, s.Logger, input); err != nil {
				s.Logger.Error("Failed to collect traffic during seeding", slog.Any("error", err))
				continue
			}
			stats.Traffic++

			if page.listing == nil {
				continue
			}
			stats.Conversions += s.convert(profile, page.listing.ID, at)
		}
	}
	return stats, nil
}

// convert records a VIEW for the listing page and, sometimes, an outbound CLICK.
func (s *Seeder) convert(profile visitorProfile, listingID uint, at time.Time) int {
	recorded := 0
	for _, kind := range []events.ConversionKind{events.ConversionKindView, events.ConversionKindClick} {
		if kind == events.ConversionKindClick && s.rand.Float64() >= 0.25 {
			break
		}
		input := &events.CollectConversionInput{
			Kind:        kind,
			ListingID:   listingID,
			Fingerprint: profile.fingerprint,
			IPAddress:   profile.ip,
			UserAgent:   profile.userAgent,
			Timestamp:   at.Add(time.Duration(recorded) * 5 * time.Second),
		}
		if _, err := events.CollectConversion(s.DBManager, s.Logger, input); err != nil {
			s.Logger.Error("Failed to collect conversion during seeding", slog.Any("error", err))
			continue
		}
		recorded++
	}
	return recorded
}

type journeyPage struct {
	path    string
	listing *listings.Listing
}

func (s *Seeder) journey(seeded []listings.Listing) []journeyPage {
	pages := []journeyPage{{path: landingPages[s.rand.IntN(len(landingPages))]}}

	if s.rand.Float64() < 0.3 {
		term := searchTerms[s.rand.IntN(len(searchTerms))]
		pages = append(pages, journeyPage{path: "/search?" + url.Values{analytics.SearchParam: {term}}.Encode()})
	}

	for n := s.rand.IntN(4); n > 0; n-- {
		listing := &seeded[s.rand.IntN(len(seeded))]
		pages = append(pages, journeyPage{path: "/programs/" + listing.Slug, listing: listing})
	}
	return pages
}

func (s *Seeder) visitorProfiles(count int) []visitorProfile {
	seen := make(map[string]bool, count)
	profiles := make([]visitorProfile, 0, count)
	for len(profiles) < count {
		ip := fmt.Sprintf("%d.%d.%d.%d", s.rand.IntN(223)+1, s.rand.IntN(256), s.rand.IntN(256), s.rand.IntN(254)+1)
		if seen[ip] {
			continue
		}
		seen[ip] = true

		ua := userAgentPool[s.rand.IntN(len(userAgentPool))]
		fingerprint := ""
		if s.rand.Float64() < 0.6 {
			fingerprint = visitors.HashIdentity(ip, fmt.Sprintf("%s#%d", ua, len(profiles)))
		}
		profiles = append(profiles, visitorProfile{
			ip:          ip,
			userAgent:   ua,
			fingerprint: fingerprint,
			country:     countryPool[s.rand.IntN(len(countryPool))],
		})
	}
	return profiles
}

var landingPages = []string{
	"/",
	"/",
	"/categories",
	"/categories/web-hosting",
	"/new",
	"/trending",
	"/blog/best-affiliate-programs",
}

var searchTerms = []string{
	"web hosting",
	"vpn",
	"email marketing",
	"seo tools",
	"recurring commission",
}

var referrerPool = []string{
	"",
	"",
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://t.co/abc123",
	"https://www.reddit.com/r/juststart/",
	"https://www.facebook.com/",
	"https://news.ycombinator.com/",
	"https://www.producthunt.com/",
	"https://some-blog.example/review",
}

var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"curl/8.4.0",
}

var countryPool = []string{"US", "US", "US", "GB", "DE", "CA", "IN", "FR", "BR", "AU", ""}

var demoListings = []listings.Listing{
	{
		Name:            "HostForge",
		Category:        "Web Hosting",
		LogoURL:         "https://cdn.example.com/logos/hostforge.png",
		Description:     "Managed WordPress hosting with a two-tier partner program.",
		Tagline:         "Hosting that pays you back",
		WebsiteURL:      "https://hostforge.example",
		CommissionRate:  "40%",
		CommissionType:  "recurring",
		CookieDuration:  "90 days",
		PayoutFrequency: "monthly",
		PaymentMethods:  "PayPal, wire",
		MinimumPayout:   "$50",
		AffiliateTier:   "201-1000",
		PayoutTier:      "50k-250k",
	},
	{
		Name:            "TunnelGuard VPN",
		Category:        "VPN",
		LogoURL:         "https://cdn.example.com/logos/tunnelguard.png",
		Description:     "Consumer VPN with apps for every platform.",
		CommissionRate:  "100% first month",
		CommissionType:  "one-time",
		CookieDuration:  "30 days",
		PayoutFrequency: "net-30",
		AffiliateTier:   "1000+",
		PayoutTier:      "250k+",
		ManualBoost:     5,
	},
	{
		Name:           "MailMonkey",
		Category:       "Email Marketing",
		Description:    "Email automation for small shops.",
		WebsiteURL:     "https://mailmonkey.example",
		CommissionRate: "30%",
		CommissionType: "recurring",
		AffiliateTier:  "51-200",
		PayoutTier:     "10k-50k",
	},
	{
		Name:          "RankRadar",
		Category:      "SEO Tools",
		LogoURL:       "https://cdn.example.com/logos/rankradar.png",
		Description:   "N/A",
		AffiliateTier: "11-50",
		PayoutTier:    "1k-10k",
	},
	{
		Name:     "PagePilot",
		Category: "Web Hosting",
	},
	{
		Name:            "CourseCrate",
		Category:        "Education",
		Description:     "Marketplace for self-paced video courses.",
		Tagline:         "Learn anything",
		CommissionRate:  "25%",
		PayoutFrequency: "monthly",
		ContactEmail:    "partners@coursecrate.example",
		AffiliateTier:   "1-10",
		PayoutTier:      "<1k",
	},
}
