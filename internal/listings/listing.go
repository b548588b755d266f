package listings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"listingpulse/internal/trending"
)

var ErrListingNotFound = errors.New("listing not found")

// Listing is a directory entry ranked by its trending score.
type Listing struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Slug     string `gorm:"uniqueIndex;not null" json:"slug"`
	Category string `gorm:"index" json:"category"`
	LogoURL  string `json:"logo_url"`

	Description     string `json:"description"`
	Tagline         string `json:"tagline"`
	WebsiteURL      string `json:"website_url"`
	CommissionRate  string `json:"commission_rate"`
	CommissionType  string `json:"commission_type"`
	CookieDuration  string `json:"cookie_duration"`
	PayoutFrequency string `json:"payout_frequency"`
	PaymentMethods  string `json:"payment_methods"`
	MinimumPayout   string `json:"minimum_payout"`
	ProgramTerms    string `gorm:"type:text" json:"program_terms"`
	ContactEmail    string `json:"contact_email"`
	SocialLinks     string `json:"social_links"`

	AffiliateTier string  `json:"affiliate_tier"` // audience size range key
	PayoutTier    string  `json:"payout_tier"`    // total paid-out range key
	ManualBoost   float64 `gorm:"not null;default:0" json:"manual_boost"`

	TrendingScore   float64    `gorm:"index;not null;default:0" json:"trending_score"`
	ScoreComputedAt *time.Time `json:"score_computed_at"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OptionalFields returns the profile fields that count toward quality, in a
// fixed order.
func (l *Listing) OptionalFields() []string {
	return []string{
		l.Description,
		l.Tagline,
		l.WebsiteURL,
		l.CommissionRate,
		l.CommissionType,
		l.CookieDuration,
		l.PayoutFrequency,
		l.PaymentMethods,
		l.MinimumPayout,
		l.ProgramTerms,
		l.ContactEmail,
		l.SocialLinks,
	}
}

// ScoreInput builds the scoring input from the listing and its engagement.
func (l *Listing) ScoreInput(uniqueViews, outboundClicks int) trending.Input {
	return trending.Input{
		UniqueViews:    uniqueViews,
		OutboundClicks: outboundClicks,
		HasLogo:        strings.TrimSpace(l.LogoURL) != "",
		OptionalFields: l.OptionalFields(),
		AffiliateTier:  l.AffiliateTier,
		PayoutTier:     l.PayoutTier,
		CreatedAt:      l.CreatedAt,
		ManualBoost:    l.ManualBoost,
	}
}

// CreateListing inserts a listing, deriving the slug from the name when empty.
func CreateListing(logger *slog.Logger, db *gorm.DB, listing *Listing) error {
	listing.Name = strings.TrimSpace(listing.Name)
	if listing.Name == "" {
		return fmt.Errorf("listing name is required")
	}
	if listing.Slug == "" {
		listing.Slug = Slugify(listing.Name)
	}

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(listing).Error
	})
}

// GetListing returns the listing with id or ErrListingNotFound.
func GetListing(ctx context.Context, db *gorm.DB, id uint) (*Listing, error) {
	var listing Listing
	if err := db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrListingNotFound, id)
		}
		return nil, fmt.Errorf("unexpected error querying listing: %w", err)
	}
	return &listing, nil
}

// ListByTrendingScore returns up to limit listings, highest score first.
func ListByTrendingScore(ctx context.Context, db *gorm.DB, limit int) ([]Listing, error) {
	var result []Listing
	err := db.WithContext(ctx).
		Order("trending_score DESC, id ASC").
		Limit(limit).
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("list listings by score: %w", err)
	}
	return result, nil
}

// ListBatch returns up to limit listings with id > afterID, ordered by id.
func ListBatch(ctx context.Context, db *gorm.DB, afterID uint, limit int) ([]Listing, error) {
	var result []Listing
	err := db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("list listing batch: %w", err)
	}
	return result, nil
}

// ListCreatedBetween returns the creation times of listings created in [from, to].
func ListCreatedBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]time.Time, error) {
	var created []time.Time
	err := db.WithContext(ctx).Model(&Listing{}).
		Where("created_at >= ? AND created_at <= ?", from.UTC(), to.UTC()).
		Order("created_at ASC").
		Pluck("created_at", &created).Error
	if err != nil {
		return nil, fmt.Errorf("list new listings: %w", err)
	}
	return created, nil
}

// FindByIDs returns the listings with the given ids keyed by id.
func FindByIDs(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]Listing, error) {
	result := make(map[uint]Listing, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []Listing
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

// UpdateTrendingScore writes only the score columns of one listing.
func UpdateTrendingScore(logger *slog.Logger, db *gorm.DB, id uint, score float64, computedAt time.Time) error {
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Model(&Listing{}).
			Where("id = ?", id).
			UpdateColumns(map[string]any{
				"trending_score":    score,
				"score_computed_at": computedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrListingNotFound, id)
		}
		return nil
	})
}

// Slugify lower-cases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
