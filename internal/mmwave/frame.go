// Package mmwave decodes the binary UART output stream of TI mmWave demo
// firmware (AWR6843-class sensors) into frames of detected points, and drives
// the sensor's line-based CLI control port.
package mmwave

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// Frame stream format constants for SDK 3.x mmwDemo output.
// Each frame starts with an 8-byte magic word followed by a 40-byte header
// (magic included) and numTLVs type/length-prefixed sub-records.
const (
	FrameHeaderLen = 40    // uint64 magic + 8 × uint32 fields
	MaxFrameLen    = 65536 // safety cap on declared total frame length
	ResyncTailLen  = 4096  // buffer tail kept when trimming a desynced buffer
	ReadChunkLen   = 4096  // max bytes pulled from the stream per read
)

// MagicWord marks the start of every frame on the data stream.
var MagicWord = []byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}

// FrameHeader is the fixed 40-byte header at the start of every frame.
// All fields are little-endian on the wire.
type FrameHeader struct {
	Magic          uint64 // the magic word, reinterpreted as uint64
	Version        uint32 // firmware format version
	TotalPacketLen uint32 // total frame length in bytes, header included
	Platform       uint32 // device platform identifier
	FrameNumber    uint32 // monotonically increasing frame counter
	TimeCPUCycles  uint32 // CPU cycle count at frame emission
	NumDetectedObj uint32 // detected object count declared by the firmware
	NumTLVs        uint32 // number of TLV sub-records in the payload
	SubFrameNumber uint32 // sub-frame index in advanced frame configs
}

// parseFrameHeader decodes the fixed-width header from the start of buf.
// The caller must guarantee len(buf) >= FrameHeaderLen.
func parseFrameHeader(buf []byte) FrameHeader {
	return FrameHeader{
		Magic:          binary.LittleEndian.Uint64(buf[0:8]),
		Version:        binary.LittleEndian.Uint32(buf[8:12]),
		TotalPacketLen: binary.LittleEndian.Uint32(buf[12:16]),
		Platform:       binary.LittleEndian.Uint32(buf[16:20]),
		FrameNumber:    binary.LittleEndian.Uint32(buf[20:24]),
		TimeCPUCycles:  binary.LittleEndian.Uint32(buf[24:28]),
		NumDetectedObj: binary.LittleEndian.Uint32(buf[28:32]),
		NumTLVs:        binary.LittleEndian.Uint32(buf[32:36]),
		SubFrameNumber: binary.LittleEndian.Uint32(buf[36:40]),
	}
}

// FrameReader extracts complete frames from an unbounded byte stream.
//
// The reader owns an accumulation buffer that persists across calls. Reads
// from the underlying stream are expected to have a bounded timeout and may
// legitimately return 0 bytes; the reader keeps polling and checks ctx
// between reads so a stalled stream cannot deadlock shutdown.
type FrameReader struct {
	src   io.Reader
	buf   []byte
	chunk []byte
}

// NewFrameReader returns a FrameReader over src. src should be a serial data
// port (or replay of one) whose Read returns within a bounded time.
func NewFrameReader(src io.Reader) *FrameReader {
	return &FrameReader{
		src:   src,
		chunk: make([]byte, ReadChunkLen),
	}
}

// Buffered returns the number of bytes currently held in the accumulation
// buffer. Used by tests to verify resync trimming.
func (r *FrameReader) Buffered() int { return len(r.buf) }

// NextFrame blocks until a complete, well-formed frame is available and
// returns its parsed header and payload (everything after the 40-byte
// header). Partial frames are never returned.
//
// Corruption is recovered locally: bytes before the magic word are dropped,
// an implausible declared length causes a one-byte advance and re-search, and
// a magic-free buffer is trimmed to its tail once it exceeds the safety cap.
// Only I/O errors from the underlying stream (and ctx cancellation) surface.
func (r *FrameReader) NextFrame(ctx context.Context) (FrameHeader, []byte, error) {
	for {
		if hdr, payload, ok := r.extractFrame(); ok {
			return hdr, payload, nil
		}

		select {
		case <-ctx.Done():
			return FrameHeader{}, nil, ctx.Err()
		default:
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.buf = append(r.buf, r.chunk[:n]...)
			continue
		}
		if err != nil {
			return FrameHeader{}, nil, fmt.Errorf("read data stream: %w", err)
		}
		// n == 0 with nil error is a read timeout; loop and retry.
	}
}

// extractFrame attempts to slice one complete frame out of the accumulation
// buffer, consuming resyncable garbage as it goes. Returns ok=false when more
// bytes are needed.
func (r *FrameReader) extractFrame() (FrameHeader, []byte, bool) {
	for {
		idx := bytes.Index(r.buf, MagicWord)
		if idx < 0 {
			// No frame start in sight. Bound memory under sustained
			// desync; losing at most one frame is fine since frames
			// recur continuously.
			if len(r.buf) > MaxFrameLen {
				r.buf = append(r.buf[:0], r.buf[len(r.buf)-ResyncTailLen:]...)
			}
			return FrameHeader{}, nil, false
		}

		if idx > 0 {
			r.buf = append(r.buf[:0], r.buf[idx:]...)
		}

		if len(r.buf) < FrameHeaderLen {
			return FrameHeader{}, nil, false
		}

		hdr := parseFrameHeader(r.buf)
		totalLen := int(hdr.TotalPacketLen)

		if totalLen < FrameHeaderLen || totalLen > MaxFrameLen {
			// False-positive magic or corrupt header. Advance one byte
			// and resume the search.
			r.buf = append(r.buf[:0], r.buf[1:]...)
			continue
		}

		if len(r.buf) < totalLen {
			return FrameHeader{}, nil, false
		}

		payload := make([]byte, totalLen-FrameHeaderLen)
		copy(payload, r.buf[FrameHeaderLen:totalLen])
		r.buf = append(r.buf[:0], r.buf[totalLen:]...)

		return hdr, payload, true
	}
}
