package domain

import "time"

// Metric identifies the physical signal an observation measures.
type Metric string

const (
	// MetricPrecipMM is daily precipitation in millimeters.
	MetricPrecipMM Metric = "precip_mm"
	// MetricTempC is daily mean air temperature in degrees Celsius.
	MetricTempC Metric = "temp_c"
	// MetricNDVI is monthly mean NDVI, dimensionless in [-1, 1].
	// NaN marks a month with no cloud-free pixels.
	MetricNDVI Metric = "ndvi"
)

// Observation is a single timestamped measurement for one metric.
// Observations are value objects; stages never mutate their inputs.
type Observation struct {
	Time   time.Time `json:"time"`
	Value  float64   `json:"value"`
	Metric Metric    `json:"metric"`
}

// Series is a collection of observations for a single metric. Callers are
// expected to have deduplicated timestamps upstream; the aggregators do not
// depend on sort order.
type Series []Observation

// WaterYear returns the hydrological water year containing t. A water year
// runs October 1 through September 30 and is labeled by the calendar year in
// which it ends, so October-December dates belong to the next year's label.
func WaterYear(t time.Time) int {
	if t.Month() >= time.October {
		return t.Year() + 1
	}
	return t.Year()
}

// waterYears returns the set of water-year labels observed across the given series.
func waterYears(series ...Series) map[int]bool {
	years := make(map[int]bool)
	for _, s := range series {
		for _, obs := range s {
			years[WaterYear(obs.Time)] = true
		}
	}
	return years
}
