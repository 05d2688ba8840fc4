package widget

import (
	"math"
	"strconv"
)

// RatingSummary aggregates the ratings of a testimonial list.
type RatingSummary struct {
	// Average is the mean of the valid ratings, zero when nobody rated.
	Average float64
	// RatedCount counts testimonials carrying a rating between 1 and 5.
	RatedCount int
	// ReviewCount counts every testimonial, rated or not.
	ReviewCount int
}

// SummarizeRatings computes the average over testimonials with a valid rating only.
func SummarizeRatings(testimonials []Testimonial) RatingSummary {
	summary := RatingSummary{ReviewCount: len(testimonials)}
	total := 0
	for _, testimonial := range testimonials {
		if !testimonial.HasValidRating() {
			continue
		}
		total += *testimonial.Rating
		summary.RatedCount++
	}
	if summary.RatedCount > 0 {
		summary.Average = float64(total) / float64(summary.RatedCount)
	}
	return summary
}

// FilledStars is the average rounded to the nearest whole star.
func (summary RatingSummary) FilledStars() int {
	stars := int(math.Round(summary.Average))
	if stars < 0 {
		return 0
	}
	if stars > maximumRating {
		return maximumRating
	}
	return stars
}

// AverageLabel formats the average with one decimal.
func (summary RatingSummary) AverageLabel() string {
	return strconv.FormatFloat(summary.Average, 'f', 1, 64)
}
