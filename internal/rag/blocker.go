package rag

// Blocker scores. A single blocker is scored by its age band; two or more are
// scored flat at BlockerScoreMultiple whatever their age, which sits below
// GreenFloor so that several blockers never read as green.
const (
	BlockerScoreNone     = 100.0
	BlockerScoreRecent   = 80.0
	BlockerScoreAging    = 55.0
	BlockerScoreOld      = 25.0
	BlockerScoreMultiple = 40.0
)

type Blocker struct {
	AgeDays int
}

// ScoreBlocker scores the open blockers of a workstream.
func ScoreBlocker(bs []Blocker, bands AgeBands) float64 {
	switch len(bs) {
	case 0:
		return BlockerScoreNone
	case 1:
		age := float64(bs[0].AgeDays)
		switch {
		case age < bands.Mid:
			return BlockerScoreRecent
		case age <= bands.High:
			return BlockerScoreAging
		default:
			return BlockerScoreOld
		}
	default:
		return BlockerScoreMultiple
	}
}
