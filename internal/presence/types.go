// Package presence turns decoded radar frames into a per-frame person
// estimate: plausibility filtering, density clustering, cluster selection,
// and a robust center with a confidence score.
package presence

// Params holds every tunable of the per-frame pipeline. All values are
// explicit; there is no ambient global state.
type Params struct {
	// MaxPoints caps the point lists carried in the output record.
	MaxPoints int

	// Broad physical sanity bounds, not a region of interest.
	MaxAbsX float64
	MinY    float64
	MaxY    float64
	MaxAbsZ float64
	MaxAbsV float64

	// MinSNR rejects weak returns when side info is available.
	MinSNR int

	// Density clustering.
	ClusterEps        float64
	ClusterMinSamples int

	// Cluster selection and gating.
	MinPersonPoints int
	MaxMedianRadius float64
	PrefYMax        float64
	MinMedianSpeed  float64
}

// DefaultParams returns the tuning used by the sensor in the field. The
// scoring weights and thresholds are empirically chosen; they are defaults,
// not derived values.
func DefaultParams() Params {
	return Params{
		MaxPoints:         50,
		MaxAbsX:           6.0,
		MinY:              1.0,
		MaxY:              8.0,
		MaxAbsZ:           3.0,
		MaxAbsV:           6.0,
		MinSNR:            70,
		ClusterEps:        0.7,
		ClusterMinSamples: 3,
		MinPersonPoints:   4,
		MaxMedianRadius:   0.85,
		PrefYMax:          3.5,
		MinMedianSpeed:    0.0,
	}
}

// PointRecord is one detection as it appears in the output record, rounded
// to 3 decimals.
type PointRecord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	V float64 `json:"v"`
}

// Center is the robust (per-axis median) aggregate of a point set.
type Center struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	V float64 `json:"v"`
}

// PersonEstimate is the per-frame best guess. When Present is false the
// remaining fields are omitted from the wire form.
type PersonEstimate struct {
	Present    bool          `json:"present"`
	Confidence float64       `json:"confidence,omitempty"`
	Center     *Center       `json:"center,omitempty"`
	NumPoints  int           `json:"num_points,omitempty"`
	Points     []PointRecord `json:"points,omitempty"`
}

// FrameRecord is the line-delimited output emitted once per frame. The
// filtered points are always included, even when no person is deemed
// present, so downstream consumers can inspect raw detections.
type FrameRecord struct {
	TS            float64        `json:"ts"`
	Frame         uint32         `json:"frame"`
	NumPointsFilt int            `json:"num_points_filt"`
	PointsFilt    []PointRecord  `json:"points_filt"`
	Person        PersonEstimate `json:"person"`
}
