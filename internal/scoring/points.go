// Package scoring turns correctness counts into a weighted point breakdown.
package scoring

import (
	"math"

	"quiz-scoring-service/internal/domain"
)

const (
	// BasePointsPerCorrect is awarded for every correct answer before any
	// multiplier or bonus.
	BasePointsPerCorrect = 10
	// MaxSpeedBonus caps the speed bonus as time spent approaches zero.
	MaxSpeedBonus = 25
	// SpeedThresholdPercent is the fraction of the allotted time within which
	// a speed bonus is still possible.
	SpeedThresholdPercent = 50
)

// levelMultiplier is a small struct holding one tier of the performance
// bonus step function.
type performanceTier struct {
	MinPercent float64
	Bonus      int
}

// Calculator computes point breakdowns. All knobs are plain fields so
// deployments can tune them from config; the zero value is unusable, use
// NewCalculator.
type Calculator struct {
	BasePoints            int
	MaxSpeedBonus         int
	SpeedThresholdPercent int
	TimeBonusEnabled      bool

	levelMultipliers map[int64]float64
	// Tiers are an ordered list, highest first, because the semantics are
	// "highest threshold met", not an exact match.
	performanceTiers []performanceTier
}

// NewCalculator returns a calculator with the production defaults.
func NewCalculator() *Calculator {
	return &Calculator{
		BasePoints:            BasePointsPerCorrect,
		MaxSpeedBonus:         MaxSpeedBonus,
		SpeedThresholdPercent: SpeedThresholdPercent,
		TimeBonusEnabled:      true,
		levelMultipliers: map[int64]float64{
			1: 1.0,
			2: 1.5,
			3: 2.0,
			4: 3.0,
		},
		performanceTiers: []performanceTier{
			{MinPercent: 100, Bonus: 50},
			{MinPercent: 90, Bonus: 30},
			{MinPercent: 80, Bonus: 20},
			{MinPercent: 70, Bonus: 10},
		},
	}
}

// Input is everything the calculation depends on. TimeSpentSeconds is nil
// when the client did not report elapsed time.
type Input struct {
	QuizLevel        int64
	DurationMinutes  int
	CorrectCount     int
	TotalCount       int
	TimeSpentSeconds *int
}

// Calculate produces the full breakdown. It never errors: unknown levels fall
// back to multiplier 1.0 so grading always completes.
func (c *Calculator) Calculate(in Input) domain.PointsBreakdown {
	basePoints := in.CorrectCount * c.BasePoints

	multiplier, ok := c.levelMultipliers[in.QuizLevel]
	if !ok {
		multiplier = 1.0
	}
	// Keep level points fractional until the final total to avoid
	// compounding rounding error.
	levelPoints := float64(basePoints) * multiplier

	successRate := 0.0
	if in.TotalCount > 0 {
		successRate = float64(in.CorrectCount) / float64(in.TotalCount) * 100
	}

	performanceBonus := 0
	for _, tier := range c.performanceTiers {
		if successRate >= tier.MinPercent {
			performanceBonus = tier.Bonus
			break
		}
	}

	speedBonus := c.speedBonus(in)
	// No bonus of any kind without at least one correct answer. The speed
	// bonus is computed independently of correctness, so force it here.
	if in.CorrectCount == 0 {
		performanceBonus = 0
		speedBonus = 0
	}

	return domain.PointsBreakdown{
		BasePoints:       basePoints,
		LevelMultiplier:  multiplier,
		LevelPoints:      levelPoints,
		PerformanceBonus: performanceBonus,
		SpeedBonus:       speedBonus,
		TotalPoints:      int(math.Floor(levelPoints + float64(performanceBonus) + float64(speedBonus))),

		CorrectCount:     in.CorrectCount,
		TotalCount:       in.TotalCount,
		SuccessRate:      math.Round(successRate*100) / 100,
		QuizLevel:        in.QuizLevel,
		TimeSpentSeconds: in.TimeSpentSeconds,
		DurationMinutes:  in.DurationMinutes,
	}
}

// speedBonus rewards finishing within half (by default) of the allotted
// time, scaling linearly up to MaxSpeedBonus as time spent approaches zero.
func (c *Calculator) speedBonus(in Input) int {
	if !c.TimeBonusEnabled || in.TimeSpentSeconds == nil || in.DurationMinutes <= 0 {
		return 0
	}
	thresholdTime := float64(in.DurationMinutes) * 60 * float64(c.SpeedThresholdPercent) / 100
	timeSpent := float64(*in.TimeSpentSeconds)
	// Negative elapsed time never earns a bonus; the cap holds regardless of
	// what callers let through.
	if timeSpent < 0 || timeSpent > thresholdTime || thresholdTime <= 0 {
		return 0
	}
	speedRatio := timeSpent / thresholdTime
	return int((1 - speedRatio) * float64(c.MaxSpeedBonus))
}
