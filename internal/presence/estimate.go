package presence

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/radian-data/presence.report/internal/mmwave"
)

// Scoring weights for cluster selection. Higher score wins: size dominates,
// SNR helps when available, compactness penalizes wall-like sheets, motion
// gives a small boost, and a slight y penalty biases closer within the pool.
// Empirically chosen alongside the confidence weights below.
const (
	scoreSizeWeight     = 1.0
	scoreSNRWeight      = 0.02
	scoreCompactWeight  = 0.8
	scoreMotionWeight   = 0.4
	scoreDepthWeight    = 0.05
	confCountWeight     = 0.55
	confCompactWeight   = 0.40
	confMotionWeight    = 0.05
	confCountSaturation = 20.0
)

// SelectAndEstimate groups the filtered points by cluster label, picks the
// best candidate cluster, and builds the person estimate for the frame.
// snrs may be nil (side info absent); labels must align with points.
func SelectAndEstimate(points []mmwave.Point, snrs []int, labels []int, p Params) PersonEstimate {
	best := pickBestCluster(points, snrs, labels, p)
	if len(best) < p.MinPersonPoints {
		return PersonEstimate{}
	}

	pts := gather(points, best)
	center := robustCenter(pts)
	mr := medianRadius(pts, center)
	medSpeed := median(absVelocities(pts))

	if mr > p.MaxMedianRadius {
		return PersonEstimate{} // too diffuse: wall sheet, not a person
	}
	if p.MinMedianSpeed > 0 && medSpeed < p.MinMedianSpeed {
		return PersonEstimate{}
	}

	return buildPerson(pts, p)
}

// pickBestCluster returns the point indices of the winning cluster, or nil
// when no non-noise cluster exists.
//
// Near preference: clusters whose center-y is within PrefYMax form the
// candidate pool when any exist, so a distant back-wall cluster cannot
// out-score a nearer person purely on point count. This is a soft
// preference, not a hard region of interest.
func pickBestCluster(points []mmwave.Point, snrs []int, labels []int, p Params) []int {
	if len(labels) == 0 {
		return nil
	}

	clusters := make(map[int][]int)
	for i, lab := range labels {
		if lab < 0 {
			continue
		}
		clusters[lab] = append(clusters[lab], i)
	}
	if len(clusters) == 0 {
		return nil
	}

	near := make(map[int][]int)
	for cid, idxs := range clusters {
		if clusterCenterY(points, idxs) <= p.PrefYMax {
			near[cid] = idxs
		}
	}
	pool := clusters
	if len(near) > 0 {
		pool = near
	}

	// Ties break toward the first-assigned (lowest) cluster id.
	cids := make([]int, 0, len(pool))
	for cid := range pool {
		cids = append(cids, cid)
	}
	sort.Ints(cids)

	bestCid := cids[0]
	bestScore := math.Inf(-1)
	for _, cid := range cids {
		if s := clusterScore(points, snrs, pool[cid], p); s > bestScore {
			bestScore = s
			bestCid = cid
		}
	}
	return pool[bestCid]
}

func clusterScore(points []mmwave.Point, snrs []int, idxs []int, p Params) float64 {
	pts := gather(points, idxs)
	center := robustCenter(pts)
	mr := medianRadius(pts, center)
	meanAbsV := stat.Mean(absVelocities(pts), nil)
	cy := clusterCenterY(points, idxs)

	// The SNR term silently becomes 0 when side info is unavailable; the
	// remaining weights are not renormalized.
	meanSNR := 0.0
	if snrs != nil && len(snrs) == len(points) {
		vals := make([]float64, len(idxs))
		for i, idx := range idxs {
			vals[i] = float64(snrs[idx])
		}
		meanSNR = stat.Mean(vals, nil)
	}

	return scoreSizeWeight*float64(len(idxs)) +
		scoreSNRWeight*meanSNR -
		scoreCompactWeight*mr +
		scoreMotionWeight*meanAbsV -
		scoreDepthWeight*cy
}

// buildPerson computes the robust center over the full cluster, caps the
// point list around it, and derives the confidence from the capped set. The
// center is computed before capping so capping cannot bias it.
func buildPerson(pts []mmwave.Point, p Params) PersonEstimate {
	center := robustCenter(pts)
	capped := capNearCenter(pts, center, p.MaxPoints)

	mr := medianRadius(capped, center)
	medSpeed := median(absVelocities(capped))

	confCount := math.Min(1.0, float64(len(capped))/confCountSaturation)
	confCompact := math.Max(0.0, 1.0-mr/math.Max(1e-6, p.MaxMedianRadius))
	confMotion := 1.0
	if p.MinMedianSpeed > 0 {
		confMotion = math.Min(1.0, medSpeed/math.Max(1e-6, p.MinMedianSpeed))
	}

	confidence := confCountWeight*confCount +
		confCompactWeight*confCompact +
		confMotionWeight*confMotion
	confidence = math.Max(0.0, math.Min(1.0, confidence))

	return PersonEstimate{
		Present:    true,
		Confidence: round3(confidence),
		Center: &Center{
			X: round3(center.X),
			Y: round3(center.Y),
			Z: round3(center.Z),
			V: round3(center.V),
		},
		NumPoints: len(capped),
		Points:    toPointRecords(capped),
	}
}

// CapFilteredPoints bounds the filtered-point list carried in every output
// record, keeping the MaxPoints detections nearest the set's own robust
// center.
func CapFilteredPoints(pts []mmwave.Point, maxPoints int) []mmwave.Point {
	if len(pts) <= maxPoints {
		return pts
	}
	return capNearCenter(pts, robustCenter(pts), maxPoints)
}

// robustCenter is the per-axis median of the points. Median over mean
// resists outlier detections within a cluster.
func robustCenter(pts []mmwave.Point) Center {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	zs := make([]float64, len(pts))
	vs := make([]float64, len(pts))
	for i, pt := range pts {
		xs[i], ys[i], zs[i], vs[i] = pt.X, pt.Y, pt.Z, pt.V
	}
	return Center{X: median(xs), Y: median(ys), Z: median(zs), V: median(vs)}
}

// medianRadius is the median Euclidean distance of the points to center.
// Returns +Inf for an empty set so an empty cluster can never pass the
// compactness gate.
func medianRadius(pts []mmwave.Point, c Center) float64 {
	if len(pts) == 0 {
		return math.Inf(1)
	}
	dists := make([]float64, len(pts))
	for i, pt := range pts {
		dx, dy, dz := pt.X-c.X, pt.Y-c.Y, pt.Z-c.Z
		dists[i] = math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return median(dists)
}

// capNearCenter keeps the maxPoints points nearest center by squared
// distance, ascending. The sort is stable so ties keep input order.
func capNearCenter(pts []mmwave.Point, c Center, maxPoints int) []mmwave.Point {
	out := append([]mmwave.Point(nil), pts...)
	sort.SliceStable(out, func(i, j int) bool {
		return squaredDist(out[i], c) < squaredDist(out[j], c)
	})
	if len(out) > maxPoints {
		out = out[:maxPoints]
	}
	return out
}

func squaredDist(pt mmwave.Point, c Center) float64 {
	dx, dy, dz := pt.X-c.X, pt.Y-c.Y, pt.Z-c.Z
	return dx*dx + dy*dy + dz*dz
}

// clusterCenterY is the upper median of the cluster's y coordinates
// (sorted[n/2]), the depth statistic the near-preference partitions on.
func clusterCenterY(points []mmwave.Point, idxs []int) float64 {
	ys := make([]float64, len(idxs))
	for i, idx := range idxs {
		ys[i] = points[idx].Y
	}
	sort.Float64s(ys)
	return ys[len(ys)/2]
}

func gather(points []mmwave.Point, idxs []int) []mmwave.Point {
	out := make([]mmwave.Point, len(idxs))
	for i, idx := range idxs {
		out[i] = points[idx]
	}
	return out
}

func absVelocities(pts []mmwave.Point) []float64 {
	vs := make([]float64, len(pts))
	for i, pt := range pts {
		vs[i] = math.Abs(pt.V)
	}
	return vs
}

// median is the midpoint-average median: the mean of the two middle values
// for even-length input. Returns 0 for an empty slice.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}

func toPointRecords(pts []mmwave.Point) []PointRecord {
	out := make([]PointRecord, len(pts))
	for i, pt := range pts {
		out[i] = PointRecord{
			X: round3(pt.X),
			Y: round3(pt.Y),
			Z: round3(pt.Z),
			V: round3(pt.V),
		}
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
