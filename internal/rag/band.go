package rag

import "math"

// Score bands shared by every dimension and by the composite.
const (
	GreenFloor = 70.0
	AmberFloor = 40.0

	amberCeiling = 69.0
	redCeiling   = 39.0

	// worstVariance is the lowest variance the 0-100 inputs can produce.
	worstVariance = -100.0
)

// Status is the categorical RAG rating.
type Status string

const (
	StatusGreen Status = "green"
	StatusAmber Status = "amber"
	StatusRed   Status = "red"
)

// StatusFor maps a 0-100 score onto a status. Green >= 70, Amber 40-69, Red < 40.
func StatusFor(score float64) Status {
	switch {
	case score >= GreenFloor:
		return StatusGreen
	case score >= AmberFloor:
		return StatusAmber
	default:
		return StatusRed
	}
}

// Map turns a signed variance into a 0-100 score. The mapping is monotonic and
// piecewise linear:
//
//	variance >= 0            -> 100
//	Amber < variance < 0     -> 70..100  (green)
//	Red <= variance <= Amber -> 40..69   (amber, boundary inclusive)
//	variance < Red           -> 0..39    (red)
func (b Band) Map(variance float64) float64 {
	switch {
	case variance >= 0:
		return 100
	case variance > b.Amber:
		return clamp(lerp(variance, b.Amber, 0, GreenFloor, 100), GreenFloor, 100)
	case variance >= b.Red:
		if b.Amber == b.Red {
			return amberCeiling
		}
		return clamp(lerp(variance, b.Red, b.Amber, AmberFloor, amberCeiling), AmberFloor, amberCeiling)
	case variance <= worstVariance || b.Red <= worstVariance:
		return 0
	default:
		return clamp(lerp(variance, worstVariance, b.Red, 0, redCeiling), 0, redCeiling)
	}
}

func lerp(x, x0, x1, y0, y1 float64) float64 {
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// round keeps outputs reproducible at the precision they are stored with.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
