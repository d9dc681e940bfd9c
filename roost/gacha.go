package roost

import (
	"fmt"
	"math"
)

const (
	gachaMaxAttempts = 10000

	// Banner pity model: 2% base 6-star rate, ramping +2% per pull once
	// 50 pulls pass without one, with the rate-up unit taking half of
	// 6-star results (35% on limited banners).
	bannerBaseRate        = 0.02
	bannerPityStart       = 50
	bannerPityIncrease    = 0.02
	bannerRateUpShare     = 0.5
	bannerLimitedShare    = 0.35
	bannerOrundumPerPull  = 600
	bannerOrundumPerPrime = 180
)

// GachaResult summarizes flat-rate pull odds for a number of attempts.
type GachaResult struct {
	Rate              float64 `json:"rate"`
	Attempts          int     `json:"attempts"`
	SuccessChance     float64 `json:"success_chance"`
	FailureChance     float64 `json:"failure_chance"`
	ExpectedSuccesses float64 `json:"expected_successes"`
}

// GachaProbability computes the chance of at least one success in the given
// number of independent attempts at a flat per-pull rate.
func GachaProbability(rate float64, attempts int) (GachaResult, error) {
	var res GachaResult
	if rate <= 0 || rate > 1 {
		return res, fmt.Errorf(
			"%w: rate must be above 0%% and at most 100%%",
			ErrValidation,
		)
	}
	if attempts <= 0 {
		return res, fmt.Errorf("%w: attempts must be at least 1", ErrValidation)
	}
	if attempts > gachaMaxAttempts {
		return res, fmt.Errorf(
			"%w: attempts capped at %d",
			ErrValidation,
			gachaMaxAttempts,
		)
	}

	failure := math.Pow(1-rate, float64(attempts))
	return GachaResult{
		Rate:              rate,
		Attempts:          attempts,
		SuccessChance:     1 - failure,
		FailureChance:     failure,
		ExpectedSuccesses: float64(attempts) * rate,
	}, nil
}

// GachaAttemptsFor returns the number of attempts needed to reach the
// desired success probability at a flat per-pull rate.
func GachaAttemptsFor(rate float64, desired float64) (int, error) {
	if rate <= 0 || rate >= 1 {
		return 0, fmt.Errorf(
			"%w: rate must be above 0%% and below 100%%",
			ErrValidation,
		)
	}
	if desired <= 0 || desired >= 1 {
		return 0, fmt.Errorf(
			"%w: desired probability must be above 0%% and below 100%%",
			ErrValidation,
		)
	}
	attempts := math.Log(1-desired) / math.Log(1-rate)
	return int(math.Ceil(attempts)), nil
}

// BannerResult summarizes pity-adjusted banner odds.
type BannerResult struct {
	Pulls            int     `json:"pulls"`
	Limited          bool    `json:"limited"`
	TargetChance     float64 `json:"target_chance"`
	ExpectedSixStars float64 `json:"expected_six_stars"`
	ExpectedTargets  float64 `json:"expected_targets"`
}

// bannerPullRate is the 6-star rate for a single pull given how many pulls
// have passed without one.
func bannerPullRate(pullsWithoutSixStar int) float64 {
	if pullsWithoutSixStar < bannerPityStart {
		return bannerBaseRate
	}
	rate := bannerBaseRate +
		float64(pullsWithoutSixStar-bannerPityStart)*bannerPityIncrease
	return math.Min(rate, 1)
}

// BannerProbability computes the chance of pulling the rate-up unit at
// least once in the given number of pulls, accounting for the pity ramp.
func BannerProbability(pulls int, limited bool) (BannerResult, error) {
	var res BannerResult
	if pulls <= 0 {
		return res, fmt.Errorf("%w: pulls must be at least 1", ErrValidation)
	}
	if pulls > gachaMaxAttempts {
		return res, fmt.Errorf(
			"%w: pulls capped at %d",
			ErrValidation,
			gachaMaxAttempts,
		)
	}

	rateUpShare := bannerRateUpShare
	if limited {
		rateUpShare = bannerLimitedShare
	}

	probFailure := 1.0
	expectedSixStars := 0.0
	sincePity := 0
	for i := 0; i < pulls; i++ {
		pullRate := bannerPullRate(sincePity)
		probFailure *= 1 - pullRate*rateUpShare
		expectedSixStars += pullRate
		if pullRate >= 1 {
			sincePity = 0
		} else {
			sincePity++
		}
	}

	return BannerResult{
		Pulls:            pulls,
		Limited:          limited,
		TargetChance:     1 - probFailure,
		ExpectedSixStars: expectedSixStars,
		ExpectedTargets:  expectedSixStars * rateUpShare,
	}, nil
}

// BannerPulls converts banner currencies into a total pull count.
func BannerPulls(orundum int, originite int, permits int) int {
	fromOrundum := orundum / bannerOrundumPerPull
	fromOriginite := originite * bannerOrundumPerPrime / bannerOrundumPerPull
	return fromOrundum + fromOriginite + permits
}
