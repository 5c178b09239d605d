// Package domain implements the superbloom likelihood scoring engine for a
// Southern California desert study area: water-year partitioning, feature
// aggregation, score normalization, likelihood combination, and peak/trough
// year selection. Every function here is a pure transformation over
// in-memory series; fetching, persistence, and reporting live in the
// adapters.
//
// # Water Years
//
// Precipitation is accounted in hydrological water years: October 1 through
// September 30, labeled by the calendar year in which the period ends. A
// storm on 2022-11-15 belongs to water year 2023. This is the standard USGS
// convention and it keeps a single wet season (fall rains through spring
// bloom) inside one label. See [WaterYear].
//
// # Input Series
//
// Daily precipitation (mm) and temperature (degrees C) come from the Daymet
// single-pixel service at the study area's center point. Monthly mean NDVI
// comes from Sentinel-2 L2A imagery over the study area bounding box, with
// cloud, cloud-shadow, and no-data pixels masked out; a month with no valid
// pixels carries NaN. The engine assumes series arrive fully materialized
// with no duplicate timestamps per metric.
//
// # Scoring Models
//
// Two structurally different formulas share the "superbloom score" name and
// are kept as separately named strategies:
//
// The climate-only model ([ScoreClimate]) works per water year on bounded
// [0,1] sub-scores:
//
//	fall          = clip(fallPrecip/100, 0, 1)
//	winterSpring  = clip(winterSpringPrecip/150, 0, 1)
//	temperature   = 1 - clip((springTempMean-15)/10, 0, 1)
//	whiplash      = clip(10 * rainyDays/totalPrecip, 0, 1)
//	final         = 0.4*fall + 0.3*winterSpring + 0.2*temperature + 0.1*whiplash
//
// The weights sum to 1.0, so the final score is itself in [0,1].
//
// The NDVI+precipitation model ([ScoreBloomYears]) sums two sample
// z-scores per year, spring NDVI and winter precipitation, producing an
// unbounded anomaly index. Its z-scores are relative to the year sample
// passed in, so extending the year range rescales history. The two models'
// outputs are not comparable.
//
// # Missing Data
//
// A season with zero observations yields NaN, the year is dropped before
// normalization, and scoring continues with the remaining years. A z-score
// over a constant or single-year sample fails with [ErrDegenerateSample];
// ranking over zero years fails with [ErrNoScores]. Nothing here substitutes
// defaults for gaps.
package domain
