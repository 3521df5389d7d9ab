package presence

import (
	"github.com/radian-data/presence.report/internal/mmwave"
)

// FilterPoints applies the broad plausibility bounds and, when side info is
// usable, the minimum-SNR rejection. Pure and order-preserving.
//
// Side info is usable only when it aligns 1:1 with the points; on a count
// mismatch it is treated as absent for the whole frame rather than guessing
// an alignment, and the returned SNR slice is nil.
func FilterPoints(points []mmwave.Point, side []mmwave.SideInfo, p Params) ([]mmwave.Point, []int) {
	snrs := alignedSNRs(points, side)

	kept := make([]mmwave.Point, 0, len(points))
	var keptSNRs []int
	if snrs != nil {
		keptSNRs = make([]int, 0, len(points))
	}

	for i, pt := range points {
		if !inBounds(pt, p) {
			continue
		}
		if snrs != nil && snrs[i] < p.MinSNR {
			continue
		}
		kept = append(kept, pt)
		if keptSNRs != nil {
			keptSNRs = append(keptSNRs, snrs[i])
		}
	}

	return kept, keptSNRs
}

func inBounds(pt mmwave.Point, p Params) bool {
	return abs(pt.X) <= p.MaxAbsX &&
		pt.Y >= p.MinY && pt.Y <= p.MaxY &&
		abs(pt.Z) <= p.MaxAbsZ &&
		abs(pt.V) <= p.MaxAbsV
}

// alignedSNRs extracts per-point SNR values when side info aligns with the
// point list, nil otherwise.
func alignedSNRs(points []mmwave.Point, side []mmwave.SideInfo) []int {
	if side == nil || len(side) != len(points) || len(points) == 0 {
		return nil
	}
	snrs := make([]int, len(side))
	for i, s := range side {
		snrs[i] = int(s.SNR)
	}
	return snrs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
