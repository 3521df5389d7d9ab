package presence

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/radian-data/presence.report/internal/mmwave"
)

// blob returns count points scattered deterministically within ~radius of
// (cx, cy, cz).
func blob(cx, cy, cz float64, radius float64, count int) []mmwave.Point {
	offsets := []struct{ dx, dy, dz float64 }{
		{0, 0, 0}, {1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1}, {0.5, 0.5, 0}, {-0.5, -0.5, 0}, {0.5, -0.5, 0.5},
		{-0.5, 0.5, -0.5}, {0.7, 0, 0.3}, {-0.7, 0, -0.3}, {0, 0.7, 0.3}, {0, -0.7, -0.3},
	}
	pts := make([]mmwave.Point, 0, count)
	for i := 0; i < count; i++ {
		o := offsets[i%len(offsets)]
		pts = append(pts, mmwave.Point{
			X: cx + o.dx*radius,
			Y: cy + o.dy*radius,
			Z: cz + o.dz*radius,
		})
	}
	return pts
}

func TestClusterLabelsTwoSeparatedClusters(t *testing.T) {
	// Two tight blobs far apart must produce exactly two clusters with
	// correct membership.
	pts := append(blob(0, 2, 1, 0.1, 10), blob(0, 5, 1, 0.1, 8)...)

	labels := ClusterLabels(pts, 0.7, 3)
	if len(labels) != len(pts) {
		t.Fatalf("got %d labels for %d points", len(labels), len(pts))
	}

	for i := 0; i < 10; i++ {
		if labels[i] != 0 {
			t.Errorf("labels[%d] = %d, want 0", i, labels[i])
		}
	}
	for i := 10; i < 18; i++ {
		if labels[i] != 1 {
			t.Errorf("labels[%d] = %d, want 1", i, labels[i])
		}
	}
}

func TestClusterLabelsNoisePoints(t *testing.T) {
	// Isolated points far from any blob stay noise.
	pts := append(blob(0, 2, 1, 0.1, 6),
		mmwave.Point{X: 5, Y: 7, Z: -2},
		mmwave.Point{X: -5, Y: 7, Z: 2},
	)

	labels := ClusterLabels(pts, 0.7, 3)
	for i := 0; i < 6; i++ {
		if labels[i] != 0 {
			t.Errorf("labels[%d] = %d, want 0", i, labels[i])
		}
	}
	for i := 6; i < 8; i++ {
		if labels[i] != NoiseLabel {
			t.Errorf("labels[%d] = %d, want noise", i, labels[i])
		}
	}
}

func TestClusterLabelsBorderAbsorption(t *testing.T) {
	// A point within eps of one cluster member but with too few neighbors
	// of its own becomes a border member, not a new cluster.
	pts := append(blob(0, 2, 1, 0.3, 5), mmwave.Point{X: 0.9, Y: 2, Z: 1})

	labels := ClusterLabels(pts, 0.7, 5)
	if labels[5] != 0 {
		t.Errorf("border point label = %d, want 0", labels[5])
	}
}

func TestClusterLabelsBelowMinSamples(t *testing.T) {
	pts := blob(0, 2, 1, 0.1, 2)
	labels := ClusterLabels(pts, 0.7, 3)
	for i, lab := range labels {
		if lab != NoiseLabel {
			t.Errorf("labels[%d] = %d, want noise", i, lab)
		}
	}
}

func TestClusterLabelsDeterministic(t *testing.T) {
	pts := append(blob(0, 2, 1, 0.3, 7), blob(1.5, 4, 0, 0.3, 9)...)

	first := ClusterLabels(pts, 0.7, 3)
	second := ClusterLabels(pts, 0.7, 3)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("labels differ between runs (-first +second):\n%s", diff)
	}
}

func TestClusterLabelsEmptyInput(t *testing.T) {
	if labels := ClusterLabels(nil, 0.7, 3); labels != nil {
		t.Errorf("labels = %v, want nil", labels)
	}
}

func TestClusterLabelsIDAssignmentOrder(t *testing.T) {
	// The first scanned point that seeds a cluster gets id 0, the next new
	// cluster id 1, regardless of cluster size.
	pts := append(blob(0, 5, 1, 0.1, 4), blob(0, 2, 1, 0.1, 8)...)

	labels := ClusterLabels(pts, 0.7, 3)
	if labels[0] != 0 {
		t.Errorf("first blob label = %d, want 0", labels[0])
	}
	if labels[4] != 1 {
		t.Errorf("second blob label = %d, want 1", labels[4])
	}
}
