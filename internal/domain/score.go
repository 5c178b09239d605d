package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Model names the scoring strategy that produced a record. The two models
// yield scores on different scales (bounded [0,1] vs. summed z-scores) and
// must never be compared against each other.
type Model string

const (
	ModelClimate Model = "climate"
	ModelBloom   Model = "bloom"
)

// Climate model weights. The model is a fixed linear combination, not a
// fitted one; the weights sum to 1.0 so the final score stays in [0,1].
const (
	weightFallPrecip   = 0.4
	weightWinterSpring = 0.3
	weightSpringTemp   = 0.2
	weightWhiplash     = 0.1
)

var (
	// ErrNoScores is returned when a ranking is requested over zero scored years.
	ErrNoScores = errors.New("no scored years available")

	// ErrDegenerateSample is returned when a z-score is requested over a
	// sample whose standard deviation is zero or undefined. A silent zero
	// would misrepresent "average" as "certain", so the condition is
	// surfaced instead.
	ErrDegenerateSample = errors.New("degenerate sample: standard deviation is zero or undefined")
)

// ClimateScore is the scored record for one water year under the climate-only
// model. Each sub-score lies in [0,1] and Final is their weighted sum.
type ClimateScore struct {
	WaterYear         int             `json:"water_year"`
	Features          ClimateFeatures `json:"features"`
	FallScore         float64         `json:"fall_score"`
	WinterSpringScore float64         `json:"winter_spring_score"`
	TempScore         float64         `json:"temp_score"`
	WhiplashScore     float64         `json:"whiplash_score"`
	Final             float64         `json:"final_score"`
	ComputedAt        time.Time       `json:"computed_at"`
}

// ScoreClimate normalizes one year's climate features into sub-scores and
// combines them:
//
//	fall:          clip(fallPrecip/100, 0, 1)
//	winter-spring: clip(winterSpringPrecip/150, 0, 1)
//	temperature:   1 - clip((springTempMean-15)/10, 0, 1)  (cooler springs score higher)
//	whiplash:      clip(whiplashFactor*10, 0, 1)
//	final:         0.4*fall + 0.3*winterSpring + 0.2*temp + 0.1*whiplash
func ScoreClimate(f ClimateFeatures) ClimateScore {
	s := ClimateScore{
		WaterYear:         f.WaterYear,
		Features:          f,
		FallScore:         clip(f.FallPrecip/100, 0, 1),
		WinterSpringScore: clip(f.WinterSpringPrecip/150, 0, 1),
		TempScore:         1 - clip((f.SpringTempMean-15)/10, 0, 1),
		WhiplashScore:     clip(f.WhiplashFactor*10, 0, 1),
		ComputedAt:        clock.Now(),
	}
	s.Final = weightFallPrecip*s.FallScore +
		weightWinterSpring*s.WinterSpringScore +
		weightSpringTemp*s.TempScore +
		weightWhiplash*s.WhiplashScore
	return s
}

// ScoreClimateYears scores every feature set with a complete spring
// temperature, ordered by water year. Years whose spring temperature is
// missing (NaN) are dropped here rather than scored with a synthetic value;
// the returned slice may therefore be shorter than the input.
func ScoreClimateYears(features map[int]ClimateFeatures) []ClimateScore {
	years := make([]int, 0, len(features))
	for year := range features {
		years = append(years, year)
	}
	sort.Ints(years)

	scores := make([]ClimateScore, 0, len(years))
	for _, year := range years {
		f := features[year]
		if math.IsNaN(f.SpringTempMean) {
			continue
		}
		scores = append(scores, ScoreClimate(f))
	}
	return scores
}

// BloomScore is the scored record for one year under the NDVI+precipitation
// model. Final is the unweighted sum of the two z-scores: an additive anomaly
// index, unbounded and not comparable to the climate model's [0,1] scale.
type BloomScore struct {
	Year         int           `json:"year"`
	Features     BloomFeatures `json:"features"`
	NDVIZScore   float64       `json:"ndvi_zscore"`
	PrecipZScore float64       `json:"precip_zscore"`
	Final        float64       `json:"final_score"`
	ComputedAt   time.Time     `json:"computed_at"`
}

// BloomResult bundles the scored years with the Pearson correlation between
// spring NDVI and winter precipitation over the same sample.
type BloomResult struct {
	Scores      []BloomScore
	Correlation float64
}

// ScoreBloomYears z-scores the spring-NDVI and winter-precipitation series
// across the joined multi-year sample and sums them per year.
//
// The z-scores are sample-relative: mean and standard deviation are computed
// over exactly the years passed in, so re-running with a different year range
// changes every prior year's score. Callers that persist or compare scores
// must account for this.
//
// Returns ErrNoScores for an empty sample and ErrDegenerateSample when either
// series has zero or undefined standard deviation (a single year, or constant
// values).
func ScoreBloomYears(features []BloomFeatures) (BloomResult, error) {
	if len(features) == 0 {
		return BloomResult{}, ErrNoScores
	}

	ndvi := make([]float64, len(features))
	precip := make([]float64, len(features))
	for i, f := range features {
		ndvi[i] = f.SpringNDVI
		precip[i] = f.WinterPrecip
	}

	ndviMean, ndviStd := stat.Mean(ndvi, nil), stat.StdDev(ndvi, nil)
	precipMean, precipStd := stat.Mean(precip, nil), stat.StdDev(precip, nil)
	if ndviStd == 0 || math.IsNaN(ndviStd) {
		return BloomResult{}, fmt.Errorf("spring NDVI over %d years: %w", len(features), ErrDegenerateSample)
	}
	if precipStd == 0 || math.IsNaN(precipStd) {
		return BloomResult{}, fmt.Errorf("winter precipitation over %d years: %w", len(features), ErrDegenerateSample)
	}

	now := clock.Now()
	scores := make([]BloomScore, len(features))
	for i, f := range features {
		s := BloomScore{
			Year:         f.Year,
			Features:     f,
			NDVIZScore:   (f.SpringNDVI - ndviMean) / ndviStd,
			PrecipZScore: (f.WinterPrecip - precipMean) / precipStd,
			ComputedAt:   now,
		}
		s.Final = s.NDVIZScore + s.PrecipZScore
		scores[i] = s
	}

	return BloomResult{
		Scores:      scores,
		Correlation: stat.Correlation(ndvi, precip, nil),
	}, nil
}

// Ranking identifies the extremal years within one model's scored collection.
type Ranking struct {
	PeakYear    int     `json:"peak_year"`
	PeakScore   float64 `json:"peak_score"`
	TroughYear  int     `json:"trough_year"`
	TroughScore float64 `json:"trough_score"`
}

// RankClimate selects the peak (argmax) and trough (argmin) water years from
// climate scores. On ties the earliest year wins. Returns ErrNoScores for an
// empty collection.
func RankClimate(scores []ClimateScore) (Ranking, error) {
	pairs := make([]yearScore, len(scores))
	for i, s := range scores {
		pairs[i] = yearScore{s.WaterYear, s.Final}
	}
	return rank(pairs)
}

// RankBloom selects the peak and trough years from bloom scores, with the
// same earliest-year tie-break as RankClimate.
func RankBloom(scores []BloomScore) (Ranking, error) {
	pairs := make([]yearScore, len(scores))
	for i, s := range scores {
		pairs[i] = yearScore{s.Year, s.Final}
	}
	return rank(pairs)
}

type yearScore struct {
	year  int
	score float64
}

func rank(pairs []yearScore) (Ranking, error) {
	if len(pairs) == 0 {
		return Ranking{}, ErrNoScores
	}

	// Ascending year order plus strict comparisons makes the earliest year
	// win any tie.
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].year < pairs[j].year })

	r := Ranking{
		PeakYear:    pairs[0].year,
		PeakScore:   pairs[0].score,
		TroughYear:  pairs[0].year,
		TroughScore: pairs[0].score,
	}
	for _, p := range pairs[1:] {
		if p.score > r.PeakScore {
			r.PeakYear, r.PeakScore = p.year, p.score
		}
		if p.score < r.TroughScore {
			r.TroughYear, r.TroughScore = p.year, p.score
		}
	}
	return r, nil
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
