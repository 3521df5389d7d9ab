package mmwave

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"
)

// buildFrame assembles a well-formed frame with the given frame number and
// raw TLV payload bytes.
func buildFrame(frameNumber uint32, numTLVs uint32, tlvPayload []byte) []byte {
	totalLen := FrameHeaderLen + len(tlvPayload)
	buf := make([]byte, 0, totalLen)
	buf = append(buf, MagicWord...)

	hdr := make([]byte, 32)
	binary.LittleEndian.PutUint32(hdr[0:4], 0x03060000)          // version
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(totalLen))    // totalPacketLen
	binary.LittleEndian.PutUint32(hdr[8:12], 0xA6843)            // platform
	binary.LittleEndian.PutUint32(hdr[12:16], frameNumber)       // frameNumber
	binary.LittleEndian.PutUint32(hdr[16:20], 123456789)         // timeCpuCycles
	binary.LittleEndian.PutUint32(hdr[20:24], 0)                 // numDetectedObj
	binary.LittleEndian.PutUint32(hdr[24:28], numTLVs)           // numTLVs
	binary.LittleEndian.PutUint32(hdr[28:32], 0)                 // subFrameNumber
	buf = append(buf, hdr...)

	return append(buf, tlvPayload...)
}

func TestNextFrameSingle(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	frame := buildFrame(42, 0, payload)

	r := NewFrameReader(bytes.NewReader(frame))
	hdr, got, err := r.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}

	if hdr.FrameNumber != 42 {
		t.Errorf("FrameNumber = %d, want 42", hdr.FrameNumber)
	}
	if hdr.TotalPacketLen != uint32(FrameHeaderLen+len(payload)) {
		t.Errorf("TotalPacketLen = %d, want %d", hdr.TotalPacketLen, FrameHeaderLen+len(payload))
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %x, want %x", got, payload)
	}
}

func TestNextFrameGarbageInterleaved(t *testing.T) {
	// N well-formed frames separated by marker-free garbage must yield
	// exactly the N frames, in order.
	garbage := bytes.Repeat([]byte{0xFF, 0x00, 0x13}, 50)

	var stream []byte
	const n = 5
	for i := uint32(1); i <= n; i++ {
		stream = append(stream, garbage...)
		stream = append(stream, buildFrame(i, 0, []byte{byte(i)})...)
	}
	stream = append(stream, garbage...)

	r := NewFrameReader(bytes.NewReader(stream))
	for i := uint32(1); i <= n; i++ {
		hdr, payload, err := r.NextFrame(context.Background())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if hdr.FrameNumber != i {
			t.Errorf("frame %d: FrameNumber = %d", i, hdr.FrameNumber)
		}
		if len(payload) != 1 || payload[0] != byte(i) {
			t.Errorf("frame %d: payload = %x", i, payload)
		}
	}

	// Only trailing garbage remains; the next read must hit EOF, not
	// fabricate a frame.
	if _, _, err := r.NextFrame(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("after last frame: err = %v, want EOF", err)
	}
}

func TestNextFrameBadLengthResync(t *testing.T) {
	// A frame declaring an absurd total length must be discarded via
	// byte-at-a-time resync, and the following valid frame decoded.
	bogus := buildFrame(7, 0, nil)
	binary.LittleEndian.PutUint32(bogus[12:16], MaxFrameLen+1)

	valid := buildFrame(8, 0, []byte{0xAB})
	stream := append(bogus, valid...)

	r := NewFrameReader(bytes.NewReader(stream))
	hdr, payload, err := r.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if hdr.FrameNumber != 8 {
		t.Errorf("FrameNumber = %d, want 8 (bogus frame must be skipped)", hdr.FrameNumber)
	}
	if len(payload) != 1 || payload[0] != 0xAB {
		t.Errorf("payload = %x, want ab", payload)
	}
}

func TestNextFrameUndersizedLengthResync(t *testing.T) {
	bogus := buildFrame(7, 0, nil)
	binary.LittleEndian.PutUint32(bogus[12:16], FrameHeaderLen-1)

	valid := buildFrame(9, 0, nil)
	r := NewFrameReader(bytes.NewReader(append(bogus, valid...)))

	hdr, _, err := r.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if hdr.FrameNumber != 9 {
		t.Errorf("FrameNumber = %d, want 9", hdr.FrameNumber)
	}
}

func TestNextFrameBackToBack(t *testing.T) {
	// Two frames already buffered must both be returned without another
	// read in between.
	stream := append(buildFrame(1, 0, nil), buildFrame(2, 0, nil)...)
	r := NewFrameReader(&oneShotReader{data: stream})

	for want := uint32(1); want <= 2; want++ {
		hdr, _, err := r.NextFrame(context.Background())
		if err != nil {
			t.Fatalf("frame %d: %v", want, err)
		}
		if hdr.FrameNumber != want {
			t.Errorf("FrameNumber = %d, want %d", hdr.FrameNumber, want)
		}
	}
}

func TestNextFrameSplitReads(t *testing.T) {
	// Frame dribbled in across many short reads must still come out whole.
	frame := buildFrame(3, 0, bytes.Repeat([]byte{0x55}, 100))
	r := NewFrameReader(iotest(frame, 7))

	hdr, payload, err := r.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if hdr.FrameNumber != 3 {
		t.Errorf("FrameNumber = %d, want 3", hdr.FrameNumber)
	}
	if len(payload) != 100 {
		t.Errorf("payload length = %d, want 100", len(payload))
	}
}

func TestNextFrameBufferTrim(t *testing.T) {
	// Marker-free garbage beyond the safety cap must be trimmed so memory
	// stays bounded under sustained desync.
	garbage := bytes.Repeat([]byte{0xAA}, MaxFrameLen+ReadChunkLen)
	r := NewFrameReader(bytes.NewReader(garbage))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, err := r.NextFrame(ctx); err == nil {
		t.Fatal("expected error from garbage-only stream")
	}
	if r.Buffered() > MaxFrameLen {
		t.Errorf("buffered = %d, want <= %d after trim", r.Buffered(), MaxFrameLen)
	}
}

func TestNextFrameTimeoutReads(t *testing.T) {
	// Reads returning (0, nil) model a serial timeout; the reader must keep
	// polling until data arrives.
	frame := buildFrame(5, 0, nil)
	r := NewFrameReader(&timeoutThenData{timeouts: 3, data: frame})

	hdr, _, err := r.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if hdr.FrameNumber != 5 {
		t.Errorf("FrameNumber = %d, want 5", hdr.FrameNumber)
	}
}

func TestNextFrameReadErrorFatal(t *testing.T) {
	wantErr := errors.New("port yanked")
	r := NewFrameReader(&failingReader{err: wantErr})

	if _, _, err := r.NextFrame(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestNextFrameContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewFrameReader(&timeoutThenData{timeouts: 1 << 30})
	if _, _, err := r.NextFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// oneShotReader returns all its data on the first read, then EOF.
type oneShotReader struct {
	data []byte
	done bool
}

func (r *oneShotReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	r.done = true
	return copy(p, r.data), nil
}

// timeoutThenData returns (0, nil) for a number of reads before yielding its
// data, modelling a serial port read timeout.
type timeoutThenData struct {
	timeouts int
	data     []byte
}

func (r *timeoutThenData) Read(p []byte) (int, error) {
	if r.timeouts > 0 {
		r.timeouts--
		return 0, nil
	}
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

type failingReader struct{ err error }

func (r *failingReader) Read(p []byte) (int, error) { return 0, r.err }

// iotest returns a reader that yields data in fixed-size slices.
func iotest(data []byte, chunk int) io.Reader {
	return &chunkedReader{data: data, chunk: chunk}
}

type chunkedReader struct {
	data  []byte
	chunk int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	n = copy(p[:n], r.data[:n])
	r.data = r.data[n:]
	return n, nil
}
