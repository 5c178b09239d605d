package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreClimate_MaximumAchievable(t *testing.T) {
	// Every sub-score clips or lands at 1.0, so the weighted sum is exactly 1.0.
	f := ClimateFeatures{
		WaterYear:          2020,
		FallPrecip:         120, // clips at 100
		WinterSpringPrecip: 200, // clips at 150
		SpringTempMean:     15,  // cold spring, full temperature score
		RainyDays:          30,
		TotalPrecip:        130,
		WhiplashFactor:     30.0 / 130.0,
	}

	s := ScoreClimate(f)

	assert.InDelta(t, 1.0, s.FallScore, 1e-9)
	assert.InDelta(t, 1.0, s.WinterSpringScore, 1e-9)
	assert.InDelta(t, 1.0, s.TempScore, 1e-9)
	assert.InDelta(t, 1.0, s.WhiplashScore, 1e-9)
	assert.InDelta(t, 1.0, s.Final, 1e-9)
}

func TestScoreClimate_DryYear(t *testing.T) {
	// Zero precipitation: whiplash is zero by definition, temperature still
	// scores from its own input.
	f := ClimateFeatures{
		WaterYear:      2021,
		SpringTempMean: 20, // midpoint of the 15-25 range
	}

	s := ScoreClimate(f)

	assert.Zero(t, s.FallScore)
	assert.Zero(t, s.WinterSpringScore)
	assert.Zero(t, s.WhiplashScore)
	assert.InDelta(t, 0.5, s.TempScore, 1e-9)
	assert.InDelta(t, 0.1, s.Final, 1e-9) // 0.2 weight * 0.5 temp score
}

func TestScoreClimate_SubScoresAlwaysBounded(t *testing.T) {
	// Clipping is total: extreme inputs in either direction stay in [0,1].
	tests := []struct {
		name string
		f    ClimateFeatures
	}{
		{"huge values", ClimateFeatures{FallPrecip: 1e9, WinterSpringPrecip: 1e9, SpringTempMean: -50, WhiplashFactor: 1e6}},
		{"negative values", ClimateFeatures{FallPrecip: -10, WinterSpringPrecip: -10, SpringTempMean: 60, WhiplashFactor: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ScoreClimate(tt.f)
			for name, v := range map[string]float64{
				"fall":          s.FallScore,
				"winter-spring": s.WinterSpringScore,
				"temperature":   s.TempScore,
				"whiplash":      s.WhiplashScore,
				"final":         s.Final,
			} {
				assert.GreaterOrEqual(t, v, 0.0, name)
				assert.LessOrEqual(t, v, 1.0, name)
			}
		})
	}
}

func TestClimateWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, weightFallPrecip+weightWinterSpring+weightSpringTemp+weightWhiplash, 1e-12)
}

func TestScoreClimate_WarmSpringScoresLower(t *testing.T) {
	cool := ScoreClimate(ClimateFeatures{SpringTempMean: 16})
	warm := ScoreClimate(ClimateFeatures{SpringTempMean: 24})

	assert.Greater(t, cool.TempScore, warm.TempScore)
	assert.InDelta(t, 0.9, cool.TempScore, 1e-9)
	assert.InDelta(t, 0.1, warm.TempScore, 1e-9)
}

func TestScoreClimateYears_DropsMissingSpringTemp(t *testing.T) {
	features := map[int]ClimateFeatures{
		2019: {WaterYear: 2019, SpringTempMean: 17, FallPrecip: 50},
		2020: {WaterYear: 2020, SpringTempMean: math.NaN()},
		2021: {WaterYear: 2021, SpringTempMean: 18, FallPrecip: 80},
	}

	scores := ScoreClimateYears(features)

	require.Len(t, scores, 2)
	assert.Equal(t, 2019, scores[0].WaterYear)
	assert.Equal(t, 2021, scores[1].WaterYear)
}

func TestScoreClimateYears_ComputedAtFromClock(t *testing.T) {
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	scores := ScoreClimateYears(map[int]ClimateFeatures{
		2020: {WaterYear: 2020, SpringTempMean: 16},
	})

	require.Len(t, scores, 1)
	assert.Equal(t, frozen, scores[0].ComputedAt)
}

func bloomFeature(year int, springNDVI, winterPrecip float64) BloomFeatures {
	return BloomFeatures{Year: year, SpringNDVI: springNDVI, AnnualNDVI: springNDVI, WinterPrecip: winterPrecip}
}

func TestScoreBloomYears_ZScoresCenterOnZero(t *testing.T) {
	features := []BloomFeatures{
		bloomFeature(2019, 0.20, 80),
		bloomFeature(2020, 0.45, 210),
		bloomFeature(2021, 0.30, 120),
		bloomFeature(2022, 0.25, 95),
	}

	result, err := ScoreBloomYears(features)
	require.NoError(t, err)
	require.Len(t, result.Scores, 4)

	var ndviSum, precipSum float64
	for _, s := range result.Scores {
		ndviSum += s.NDVIZScore
		precipSum += s.PrecipZScore
		assert.InDelta(t, s.NDVIZScore+s.PrecipZScore, s.Final, 1e-12)
	}
	assert.InDelta(t, 0, ndviSum, 1e-9)
	assert.InDelta(t, 0, precipSum, 1e-9)
}

func TestScoreBloomYears_AdditiveNotMultiplicative(t *testing.T) {
	// 2021 has the greenest spring but a middling winter; 2020 is strong on
	// both. The additive combiner ranks 2020 first because the sum, not any
	// single feature, decides.
	features := []BloomFeatures{
		bloomFeature(2019, 0.10, 60),
		bloomFeature(2020, 0.40, 250),
		bloomFeature(2021, 0.45, 100),
	}

	result, err := ScoreBloomYears(features)
	require.NoError(t, err)

	ranking, err := RankBloom(result.Scores)
	require.NoError(t, err)
	assert.Equal(t, 2020, ranking.PeakYear)
	assert.Equal(t, 2019, ranking.TroughYear)
}

func TestScoreBloomYears_Correlation(t *testing.T) {
	// Perfectly linear relationship: r = 1.
	features := []BloomFeatures{
		bloomFeature(2019, 0.1, 100),
		bloomFeature(2020, 0.2, 200),
		bloomFeature(2021, 0.3, 300),
	}

	result, err := ScoreBloomYears(features)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.Correlation, 1e-9)
}

func TestScoreBloomYears_EmptySample(t *testing.T) {
	_, err := ScoreBloomYears(nil)
	assert.ErrorIs(t, err, ErrNoScores)
}

func TestScoreBloomYears_DegenerateSamples(t *testing.T) {
	t.Run("single year", func(t *testing.T) {
		_, err := ScoreBloomYears([]BloomFeatures{bloomFeature(2020, 0.4, 150)})
		assert.ErrorIs(t, err, ErrDegenerateSample)
	})

	t.Run("constant NDVI", func(t *testing.T) {
		_, err := ScoreBloomYears([]BloomFeatures{
			bloomFeature(2019, 0.3, 100),
			bloomFeature(2020, 0.3, 200),
		})
		require.ErrorIs(t, err, ErrDegenerateSample)
		assert.Contains(t, err.Error(), "NDVI")
	})

	t.Run("constant precipitation", func(t *testing.T) {
		_, err := ScoreBloomYears([]BloomFeatures{
			bloomFeature(2019, 0.2, 150),
			bloomFeature(2020, 0.4, 150),
		})
		require.ErrorIs(t, err, ErrDegenerateSample)
		assert.Contains(t, err.Error(), "precipitation")
	})
}

func TestRankClimate_PeakAndTrough(t *testing.T) {
	scores := []ClimateScore{
		{WaterYear: 2019, Final: 0.42},
		{WaterYear: 2020, Final: 0.91},
		{WaterYear: 2021, Final: 0.08},
	}

	ranking, err := RankClimate(scores)
	require.NoError(t, err)
	assert.Equal(t, 2020, ranking.PeakYear)
	assert.InDelta(t, 0.91, ranking.PeakScore, 1e-12)
	assert.Equal(t, 2021, ranking.TroughYear)
	assert.InDelta(t, 0.08, ranking.TroughScore, 1e-12)
}

func TestRank_TieBreakEarliestYear(t *testing.T) {
	scores := []ClimateScore{
		{WaterYear: 2022, Final: 0.7},
		{WaterYear: 2019, Final: 0.7},
		{WaterYear: 2020, Final: 0.7},
	}

	ranking, err := RankClimate(scores)
	require.NoError(t, err)
	assert.Equal(t, 2019, ranking.PeakYear)
	assert.Equal(t, 2019, ranking.TroughYear)
}

func TestRank_EmptyIsExplicit(t *testing.T) {
	_, err := RankClimate(nil)
	assert.ErrorIs(t, err, ErrNoScores)

	_, err = RankBloom([]BloomScore{})
	assert.ErrorIs(t, err, ErrNoScores)
}

func TestRank_SingleYear(t *testing.T) {
	ranking, err := RankBloom([]BloomScore{{Year: 2020, Final: 1.3}})
	require.NoError(t, err)
	assert.Equal(t, 2020, ranking.PeakYear)
	assert.Equal(t, 2020, ranking.TroughYear)
}
