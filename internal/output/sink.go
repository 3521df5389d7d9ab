// Package output fans pipeline records out to their consumers: the NDJSON
// stream on stdout, the SQLite store, and the in-memory snapshot the HTTP API
// serves.
package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/radian-data/presence.report/internal/db"
	"github.com/radian-data/presence.report/internal/presence"
)

// NDJSONSink writes one JSON object per line to w. Safe for use from one
// pipeline goroutine; the mutex guards against admin handlers writing to the
// same stream.
type NDJSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONSink returns a sink writing line-delimited JSON to w.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{enc: json.NewEncoder(w)}
}

func (s *NDJSONSink) Emit(rec *presence.FrameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(rec)
}

// DBSink records every frame under a run.
type DBSink struct {
	db    *db.DB
	runID string
}

// NewDBSink returns a sink persisting records to database under runID.
func NewDBSink(database *db.DB, runID string) *DBSink {
	return &DBSink{db: database, runID: runID}
}

func (s *DBSink) Emit(rec *presence.FrameRecord) error {
	return s.db.RecordFrame(s.runID, rec)
}

// LatestSink retains the most recent record for synchronous readers. Emit
// never fails.
type LatestSink struct {
	mu     sync.RWMutex
	latest *presence.FrameRecord
}

// NewLatestSink returns an empty snapshot holder.
func NewLatestSink() *LatestSink {
	return &LatestSink{}
}

func (s *LatestSink) Emit(rec *presence.FrameRecord) error {
	s.mu.Lock()
	s.latest = rec
	s.mu.Unlock()
	return nil
}

// Latest returns the most recent record, or nil before the first frame.
func (s *LatestSink) Latest() *presence.FrameRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// MultiSink delivers each record to every child sink. All children see every
// record; the first error is returned after the fanout completes.
type MultiSink struct {
	sinks []presence.Sink
}

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...presence.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (s *MultiSink) Emit(rec *presence.FrameRecord) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Emit(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
