// Package utils provides small helper functions shared across the engine.
package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a unique ID with an optional prefix.
func GenerateID(prefix string) string {
	id := uuid.New().String()
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateContractID generates a unique local correlation ID for a contract
// before the broker's own contract ID is known.
func GenerateContractID() string {
	return GenerateID("ctr")
}

// GenerateRequestID generates a unique request ID for passthrough.req_id correlation.
func GenerateRequestID() string {
	return GenerateID("req")
}

// NormalizeSymbol trims a Deriv symbol (e.g. "frxEURUSD", "R_100",
// "CRYETHUSD") — Deriv symbols are opaque instrument codes, not BASE/QUOTE
// pair notation, so normalization is just whitespace trimming.
func NormalizeSymbol(symbol string) string {
	return strings.TrimSpace(symbol)
}

// CalculateMean calculates the arithmetic mean of a float64 series.
func CalculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// CalculateStdDev calculates the population standard deviation of a float64 series.
func CalculateStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := CalculateMean(values)
	var sumSquares float64
	for _, v := range values {
		d := v - mean
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// PearsonCorrelation computes the Pearson correlation coefficient between
// two equal-length series. Returns 0 when the series differ in length, are
// too short, or either has zero variance.
func PearsonCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	meanA, meanB := CalculateMean(a), CalculateMean(b)
	var num, denomA, denomB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		num += da * db
		denomA += da * da
		denomB += db * db
	}
	if denomA == 0 || denomB == 0 {
		return 0
	}
	return num / math.Sqrt(denomA*denomB)
}

// RoundTo rounds f to the given number of decimal places.
func RoundTo(f float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(f*mult) / mult
}

// PercentageChange calculates percentage change from old to new.
func PercentageChange(old, new float64) float64 {
	if old == 0 {
		return 0
	}
	return (new - old) / old * 100
}
