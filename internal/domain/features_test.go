package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func precipObs(t time.Time, mm float64) Observation {
	return Observation{Time: t, Value: mm, Metric: MetricPrecipMM}
}

func tempObs(t time.Time, c float64) Observation {
	return Observation{Time: t, Value: c, Metric: MetricTempC}
}

func ndviObs(t time.Time, v float64) Observation {
	return Observation{Time: t, Value: v, Metric: MetricNDVI}
}

func TestAggregateClimate_SeasonalSums(t *testing.T) {
	precip := Series{
		// Water year 2019 exists only to satisfy the Y-1 requirement for 2020.
		precipObs(day(2019, 2, 1), 5),
		// Water year 2020.
		precipObs(day(2019, 10, 5), 20),  // fall
		precipObs(day(2019, 12, 31), 10), // fall
		precipObs(day(2020, 1, 15), 30),  // winter-spring
		precipObs(day(2020, 3, 2), 15),   // winter-spring
		precipObs(day(2020, 6, 1), 0.5),  // summer, below rainy-day threshold
	}
	temp := Series{
		tempObs(day(2020, 2, 10), 12),
		tempObs(day(2020, 3, 10), 16),
		tempObs(day(2020, 4, 10), 20),
	}

	features := AggregateClimate(precip, temp)

	f, ok := features[2020]
	require.True(t, ok)
	assert.Equal(t, 2020, f.WaterYear)
	assert.InDelta(t, 30.0, f.FallPrecip, 1e-9)
	assert.InDelta(t, 45.0, f.WinterSpringPrecip, 1e-9)
	assert.InDelta(t, 16.0, f.SpringTempMean, 1e-9)
	assert.Equal(t, 4, f.RainyDays) // 0.5mm day is not a rain day
	assert.InDelta(t, 75.5, f.TotalPrecip, 1e-9)
	assert.InDelta(t, 4.0/75.5, f.WhiplashFactor, 1e-9)
}

func TestAggregateClimate_BoundaryYearsExcluded(t *testing.T) {
	// Observations span water years 2018-2020 with 2019 absent.
	precip := Series{
		precipObs(day(2018, 1, 1), 10), // water year 2018
		precipObs(day(2020, 1, 1), 10), // water year 2020
	}

	features := AggregateClimate(precip, nil)

	// 2018 lacks 2017, 2020 lacks 2019: nothing qualifies.
	assert.Empty(t, features)
}

func TestAggregateClimate_ConsecutiveYears(t *testing.T) {
	precip := Series{
		precipObs(day(2018, 1, 1), 10), // water year 2018
		precipObs(day(2019, 1, 1), 10), // water year 2019
		precipObs(day(2020, 1, 1), 10), // water year 2020
	}

	features := AggregateClimate(precip, nil)

	assert.NotContains(t, features, 2018)
	assert.Contains(t, features, 2019)
	assert.Contains(t, features, 2020)
}

func TestAggregateClimate_ZeroPrecipZeroWhiplash(t *testing.T) {
	precip := Series{
		precipObs(day(2019, 1, 1), 5), // water year 2019
		precipObs(day(2020, 1, 1), 0), // water year 2020, bone dry
	}

	features := AggregateClimate(precip, nil)

	f := features[2020]
	assert.Zero(t, f.TotalPrecip)
	assert.Zero(t, f.RainyDays)
	assert.Zero(t, f.WhiplashFactor)
}

func TestAggregateClimate_MissingSpringTempIsNaN(t *testing.T) {
	precip := Series{
		precipObs(day(2019, 1, 1), 5),
		precipObs(day(2020, 1, 1), 5),
	}
	// Temperature observations exist but none in Feb-Apr of water year 2020.
	temp := Series{
		tempObs(day(2019, 12, 1), 8),
	}

	features := AggregateClimate(precip, temp)

	f, ok := features[2020]
	require.True(t, ok)
	assert.True(t, math.IsNaN(f.SpringTempMean))
}

func TestAggregateBloom_CalendarYearNDVIWaterYearPrecip(t *testing.T) {
	ndvi := Series{
		ndviObs(day(2020, 3, 1), 0.30),
		ndviObs(day(2020, 4, 1), 0.50),
		ndviObs(day(2020, 5, 1), 0.40),
		ndviObs(day(2020, 8, 1), 0.10), // summer, annual only
	}
	precip := Series{
		precipObs(day(2019, 10, 15), 40), // Oct 2019 -> water year 2020 winter
		precipObs(day(2020, 2, 10), 60),  // Feb 2020 -> water year 2020 winter
		precipObs(day(2020, 7, 1), 99),   // July is not a winter month
	}

	features := AggregateBloom(ndvi, precip)

	require.Len(t, features, 1)
	f := features[0]
	assert.Equal(t, 2020, f.Year)
	assert.InDelta(t, 0.40, f.SpringNDVI, 1e-9)
	assert.InDelta(t, 0.325, f.AnnualNDVI, 1e-9)
	assert.InDelta(t, 100.0, f.WinterPrecip, 1e-9)
}

func TestAggregateBloom_NaNMonthsIgnored(t *testing.T) {
	ndvi := Series{
		ndviObs(day(2020, 3, 1), math.NaN()), // cloudy month, no valid pixels
		ndviObs(day(2020, 4, 1), 0.50),
	}
	precip := Series{
		precipObs(day(2020, 1, 1), 50),
	}

	features := AggregateBloom(ndvi, precip)

	require.Len(t, features, 1)
	assert.InDelta(t, 0.50, features[0].SpringNDVI, 1e-9)
}

func TestAggregateBloom_InnerJoinDropsIncompleteYears(t *testing.T) {
	ndvi := Series{
		ndviObs(day(2019, 4, 1), 0.4),  // NDVI but no winter precip for 2019
		ndviObs(day(2020, 4, 1), 0.5),  // complete
		ndviObs(day(2021, 8, 1), 0.2),  // annual NDVI only, no spring months
		ndviObs(day(2022, 4, 1), math.NaN()), // spring all-NaN
	}
	precip := Series{
		precipObs(day(2020, 1, 1), 50),
		precipObs(day(2021, 1, 1), 30),
		precipObs(day(2022, 1, 1), 20),
	}

	features := AggregateBloom(ndvi, precip)

	require.Len(t, features, 1)
	assert.Equal(t, 2020, features[0].Year)
}

func TestAggregateBloom_SortedByYear(t *testing.T) {
	ndvi := Series{
		ndviObs(day(2022, 4, 1), 0.5),
		ndviObs(day(2020, 4, 1), 0.3),
		ndviObs(day(2021, 4, 1), 0.4),
	}
	precip := Series{
		precipObs(day(2020, 1, 1), 10),
		precipObs(day(2021, 1, 1), 20),
		precipObs(day(2022, 1, 1), 30),
	}

	features := AggregateBloom(ndvi, precip)

	require.Len(t, features, 3)
	assert.Equal(t, []int{2020, 2021, 2022}, []int{features[0].Year, features[1].Year, features[2].Year})
}
