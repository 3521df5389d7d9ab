package presence

import (
	"context"
	"time"

	"github.com/radian-data/presence.report/internal/mmwave"
	"github.com/radian-data/presence.report/internal/monitoring"
	"github.com/radian-data/presence.report/internal/timeutil"
)

// Sink consumes one output record per frame.
type Sink interface {
	Emit(*FrameRecord) error
}

// FrameSource yields complete frames from the data stream. Implemented by
// *mmwave.FrameReader.
type FrameSource interface {
	NextFrame(ctx context.Context) (mmwave.FrameHeader, []byte, error)
}

// Pipeline is the synchronous per-frame pipeline: decode, filter, cluster,
// select, emit. The only state carried across frames is the frame source's
// accumulation buffer and the start-time reference used for the ts field.
type Pipeline struct {
	source FrameSource
	params Params
	clock  timeutil.Clock
	start  time.Time
}

// NewPipeline creates a pipeline over the given frame source. A nil clock
// falls back to the real one.
func NewPipeline(source FrameSource, params Params, clock timeutil.Clock) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{
		source: source,
		params: params,
		clock:  clock,
		start:  clock.Now(),
	}
}

// Process turns one frame into an output record. Malformed TLVs and
// misaligned side info degrade to fewer or no detections; they never fail
// the frame.
func (p *Pipeline) Process(hdr mmwave.FrameHeader, payload []byte) *FrameRecord {
	points, side := mmwave.DecodeTLVs(payload, hdr.NumTLVs)
	filtered, snrs := FilterPoints(points, side, p.params)

	person := PersonEstimate{}
	if len(filtered) >= p.params.MinPersonPoints {
		labels := ClusterLabels(filtered, p.params.ClusterEps, p.params.ClusterMinSamples)
		person = SelectAndEstimate(filtered, snrs, labels, p.params)
	}

	capped := CapFilteredPoints(filtered, p.params.MaxPoints)
	return &FrameRecord{
		TS:            round3(p.clock.Since(p.start).Seconds()),
		Frame:         hdr.FrameNumber,
		NumPointsFilt: len(capped),
		PointsFilt:    toPointRecords(capped),
		Person:        person,
	}
}

// Run pulls frames until ctx is cancelled or the stream fails. One frame is
// fully read, decoded, filtered, clustered, and scored before the next read
// begins; ctx is checked between frames, so shutdown never abandons a
// partially read frame.
func (p *Pipeline) Run(ctx context.Context, sink Sink) error {
	for {
		hdr, payload, err := p.source.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		rec := p.Process(hdr, payload)
		if err := sink.Emit(rec); err != nil {
			// A sink failure loses one record, not the stream.
			monitoring.Logf("emit frame %d: %v", rec.Frame, err)
		}
	}
}
