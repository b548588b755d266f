package trending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    Input
		expected Breakdown
	}{
		{
			name:     "new listing with only a logo",
			input:    Input{HasLogo: true, CreatedAt: now},
			expected: Breakdown{Quality: 10, Recency: 100, Total: 110},
		},
		{
			name:     "placeholder description adds nothing",
			input:    Input{HasLogo: true, OptionalFields: []string{"No description provided."}, CreatedAt: now},
			expected: Breakdown{Quality: 10, Recency: 100, Total: 110},
		},
		{
			name: "engagement weights clicks tenfold",
			input: Input{
				UniqueViews:    25,
				OutboundClicks: 3,
				CreatedAt:      now.Add(-30 * 24 * time.Hour),
			},
			expected: Breakdown{Engagement: 55, Total: 55},
		},
		{
			name: "trust capped at ten",
			input: Input{
				AffiliateTier: "1000+",
				PayoutTier:    "250k+",
				CreatedAt:     now.Add(-10 * 24 * time.Hour),
			},
			expected: Breakdown{Trust: 10, Total: 10},
		},
		{
			name: "recent listing with filled fields and manual boost",
			input: Input{
				OptionalFields: []string{"Great program", "  ", "n/a", "https://example.com", "30%"},
				AffiliateTier:  "11-50",
				PayoutTier:     "unknown",
				CreatedAt:      now.Add(-5 * 24 * time.Hour),
				ManualBoost:    7.5,
			},
			expected: Breakdown{Quality: 15, Trust: 4, Recency: 50, ManualBoost: 7.5, Total: 76.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Score(tt.input, now))
		})
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	in := Input{
		UniqueViews:    12,
		OutboundClicks: 4,
		HasLogo:        true,
		OptionalFields: []string{"desc", "tagline"},
		AffiliateTier:  "51-200",
		PayoutTier:     "1k-10k",
		CreatedAt:      now.Add(-2 * time.Hour),
		ManualBoost:    1,
	}

	first := Score(in, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Score(in, now))
	}
}

func TestRecency(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 100.0, Recency(now.Add(-71*time.Hour), now))
	assert.Equal(t, 50.0, Recency(now.Add(-72*time.Hour), now))
	assert.Equal(t, 50.0, Recency(now.Add(-167*time.Hour), now))
	assert.Equal(t, 0.0, Recency(now.Add(-168*time.Hour), now))
	assert.Equal(t, 0.0, Recency(time.Time{}, now))
}

func TestTrustUnknownKeys(t *testing.T) {
	assert.Equal(t, 0.0, Trust("", ""))
	assert.Equal(t, 0.0, Trust("lots", "plenty"))
	assert.Equal(t, 8.0, Trust(" 201-1000 ", ""))
	assert.Equal(t, 6.0, Trust("", "10K-50K"))
}

func TestIsFilled(t *testing.T) {
	assert.False(t, IsFilled(""))
	assert.False(t, IsFilled("   "))
	assert.False(t, IsFilled("N/A"))
	assert.False(t, IsFilled("Coming Soon"))
	assert.True(t, IsFilled("Weekly payouts via PayPal"))
}
