package throttle

import (
	"time"

	"dropship-gateway/internal/model"
)

// ExtraDelay is the post-dispatch pause applied after a successful call.
// Layered on top of MinInterval; it smooths bursty tiers and never shortens the floor.
func ExtraDelay(tier model.Tier) time.Duration {
	switch tier {
	case model.TierAdvanced:
		return 0
	case model.TierPrime:
		return 100 * time.Millisecond
	case model.TierPlus:
		return 150 * time.Millisecond
	default:
		return 200 * time.Millisecond
	}
}

// RateLimitBackoff is the pause before the single retry after a throttled call.
// Lower tiers get a longer pause.
func RateLimitBackoff(tier model.Tier) time.Duration {
	switch tier {
	case model.TierAdvanced:
		return 5 * time.Second
	case model.TierPrime:
		return 10 * time.Second
	case model.TierPlus:
		return 15 * time.Second
	default:
		return 20 * time.Second
	}
}
