package domain

import (
	"math"
	"sort"
	"time"
)

// rainyDayThresholdMM is the minimum daily precipitation counted as a rain day.
const rainyDayThresholdMM = 1.0

// ClimateFeatures are the per-water-year aggregates feeding the climate-only
// likelihood model. Seasonal means over zero observations are NaN, which marks
// the feature as missing; such years are excluded from scoring rather than
// scored with a substituted value.
type ClimateFeatures struct {
	WaterYear          int     `json:"water_year"`
	FallPrecip         float64 `json:"fall_precip_mm"`          // Oct-Dec precipitation sum
	WinterSpringPrecip float64 `json:"winter_spring_precip_mm"` // Jan-Mar precipitation sum
	SpringTempMean     float64 `json:"spring_temp_mean_c"`      // Feb-Apr mean temperature; NaN when missing
	RainyDays          int     `json:"rainy_days"`              // days with precipitation > 1.0 mm
	TotalPrecip        float64 `json:"total_precip_mm"`         // full water-year precipitation sum
	WhiplashFactor     float64 `json:"whiplash_factor"`         // RainyDays / TotalPrecip; 0 when TotalPrecip is 0
}

// AggregateClimate reduces daily precipitation and temperature series into
// per-water-year climate features. A water year Y is included only when both
// Y and Y-1 appear among the observed water years, which excludes partial
// boundary years at the edges of the data window: a water year whose fall
// season fell before the first observation would otherwise score as bone-dry.
func AggregateClimate(precip, temp Series) map[int]ClimateFeatures {
	observed := waterYears(precip, temp)

	features := make(map[int]ClimateFeatures)
	for year := range observed {
		if !observed[year-1] {
			continue
		}
		features[year] = aggregateClimateYear(year, precip, temp)
	}
	return features
}

func aggregateClimateYear(year int, precip, temp Series) ClimateFeatures {
	f := ClimateFeatures{WaterYear: year}

	for _, obs := range precip {
		if WaterYear(obs.Time) != year {
			continue
		}
		f.TotalPrecip += obs.Value
		if obs.Value > rainyDayThresholdMM {
			f.RainyDays++
		}
		switch obs.Time.Month() {
		case time.October, time.November, time.December:
			f.FallPrecip += obs.Value
		case time.January, time.February, time.March:
			f.WinterSpringPrecip += obs.Value
		}
	}

	var springSum float64
	var springCount int
	for _, obs := range temp {
		if WaterYear(obs.Time) != year {
			continue
		}
		switch obs.Time.Month() {
		case time.February, time.March, time.April:
			springSum += obs.Value
			springCount++
		}
	}
	f.SpringTempMean = math.NaN()
	if springCount > 0 {
		f.SpringTempMean = springSum / float64(springCount)
	}

	// A year with zero total precipitation has zero whiplash by definition,
	// not an undefined one.
	if f.TotalPrecip > 0 {
		f.WhiplashFactor = float64(f.RainyDays) / f.TotalPrecip
	}

	return f
}

// BloomFeatures are the NDVI-plus-precipitation aggregates for one year.
// Spring and annual NDVI follow the calendar year (spring = Mar-May); winter
// precipitation follows the water-year convention (Oct-Mar sum, labeled by
// the ending year). The asymmetry is deliberate and must not be unified:
// folding spring NDVI into water years would silently shift October-December
// greenness into the wrong bloom season.
type BloomFeatures struct {
	Year         int     `json:"year"`
	SpringNDVI   float64 `json:"spring_ndvi"`      // Mar-May calendar-year mean of monthly NDVI
	AnnualNDVI   float64 `json:"annual_ndvi"`      // calendar-year mean of monthly NDVI
	WinterPrecip float64 `json:"winter_precip_mm"` // Oct-Mar water-year precipitation sum
}

// AggregateBloom joins monthly NDVI and daily precipitation into per-year
// bloom features, sorted by year. Only years with a non-missing spring NDVI,
// annual NDVI, and winter precipitation survive the join (inner join on
// year); NaN NDVI values count as absent. Dropping incomplete years here
// matters because the downstream z-score parameters must be computed over
// the jointly-available sample only.
func AggregateBloom(ndvi, precip Series) []BloomFeatures {
	type ndviAccum struct {
		springSum, annualSum     float64
		springCount, annualCount int
	}
	ndviByYear := make(map[int]*ndviAccum)
	for _, obs := range ndvi {
		if math.IsNaN(obs.Value) {
			continue
		}
		a := ndviByYear[obs.Time.Year()]
		if a == nil {
			a = &ndviAccum{}
			ndviByYear[obs.Time.Year()] = a
		}
		a.annualSum += obs.Value
		a.annualCount++
		switch obs.Time.Month() {
		case time.March, time.April, time.May:
			a.springSum += obs.Value
			a.springCount++
		}
	}

	winterByYear := make(map[int]float64)
	for _, obs := range precip {
		m := obs.Time.Month()
		if m >= time.October || m <= time.March {
			winterByYear[WaterYear(obs.Time)] += obs.Value
		}
	}

	var features []BloomFeatures
	for year, a := range ndviByYear {
		winter, ok := winterByYear[year]
		if !ok || a.springCount == 0 || a.annualCount == 0 {
			continue
		}
		features = append(features, BloomFeatures{
			Year:         year,
			SpringNDVI:   a.springSum / float64(a.springCount),
			AnnualNDVI:   a.annualSum / float64(a.annualCount),
			WinterPrecip: winter,
		})
	}

	sort.Slice(features, func(i, j int) bool { return features[i].Year < features[j].Year })
	return features
}
