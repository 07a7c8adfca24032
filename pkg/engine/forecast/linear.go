package forecast

import (
	"errors"
	"math"
)

var (
	errTooFewPoints   = errors.New("insufficient points for regression")
	errNoDaySpread    = errors.New("no time variation in history")
	errNonFiniteInput = errors.New("non-finite value in history")
)

// LinearModel implements the Model interface using ordinary least squares
// on quantity versus day offset.
type LinearModel struct{}

// Fit performs linear regression y = a + bx and scores it with the
// coefficient of determination.
func (m *LinearModel) Fit(points []Point) (Fit, error) {
	if len(points) < 2 {
		return Fit{}, errTooFewPoints
	}

	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(points))

	for _, p := range points {
		if math.IsNaN(p.Quantity) || math.IsInf(p.Quantity, 0) {
			return Fit{}, errNonFiniteInput
		}
		sumX += p.Day
		sumY += p.Quantity
		sumXY += p.Day * p.Quantity
		sumXX += p.Day * p.Day
	}

	// Slope b = (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	denom := n*sumXX - sumX*sumX
	// Same-day observations carry no rate; this is a fit error, not slope 0.
	if denom == 0 {
		return Fit{}, errNoDaySpread
	}
	b := (n*sumXY - sumX*sumY) / denom
	a := (sumY - b*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for _, p := range points {
		residual := p.Quantity - (a + b*p.Day)
		ssRes += residual * residual
		dev := p.Quantity - meanY
		ssTot += dev * dev
	}

	return Fit{Slope: b, Intercept: a, R2: rSquared(ssRes, ssTot)}, nil
}

// rSquared returns 1 - ssRes/ssTot. A constant series is explained perfectly
// by a flat line, so it scores 1 when the residuals vanish and 0 otherwise.
func rSquared(ssRes, ssTot float64) float64 {
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
