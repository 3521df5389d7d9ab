package mmwave

import (
	"encoding/binary"
	"math"
)

// TLV sub-record format constants. Each sub-record carries an 8-byte
// sub-header (type, length) where the declared length includes the sub-header
// itself.
const (
	TLVHeaderLen = 8

	// TLVDetectedPoints carries 16-byte records of 4 × float32 (x, y, z, v).
	TLVDetectedPoints = 1

	// TLVSideInfoSDK and TLVSideInfoDemo both carry 4-byte records of
	// 2 × int16 (snr, noise). The firmware uses either tag depending on the
	// demo variant.
	TLVSideInfoSDK  = 7
	TLVSideInfoDemo = 12

	pointRecordLen    = 16
	sideInfoRecordLen = 4
)

// Point is a single radar reflection for one frame: position in meters
// relative to the sensor and radial velocity in m/s. Points carry no identity
// across frames.
type Point struct {
	X float64
	Y float64
	Z float64
	V float64
}

// SideInfo is the optional per-point quality record, aligned positionally 1:1
// with the detected points of the same frame when the firmware reports it.
type SideInfo struct {
	SNR   int16
	Noise int16
}

// DecodeTLVs walks exactly numTLVs sub-records of the frame payload and
// returns the detected points and (possibly empty) side info.
//
// Malformed trailing records degrade, never fail: iteration stops early when
// the remaining payload is shorter than a sub-header or a declared length
// would overrun the payload, keeping whatever decoded cleanly before that.
// Unrecognized type tags are skipped by their declared length.
func DecodeTLVs(payload []byte, numTLVs uint32) ([]Point, []SideInfo) {
	var points []Point
	var side []SideInfo

	ofs := 0
	for i := uint32(0); i < numTLVs; i++ {
		if ofs+TLVHeaderLen > len(payload) {
			break
		}
		tlvType := binary.LittleEndian.Uint32(payload[ofs : ofs+4])
		tlvLen := int(binary.LittleEndian.Uint32(payload[ofs+4 : ofs+8]))

		// Declared length includes the 8-byte sub-header.
		if tlvLen < TLVHeaderLen || ofs+tlvLen > len(payload) {
			break
		}
		start := ofs + TLVHeaderLen
		end := ofs + tlvLen

		switch tlvType {
		case TLVDetectedPoints:
			points = decodeDetectedPoints(payload[start:end])
		case TLVSideInfoSDK, TLVSideInfoDemo:
			side = decodeSideInfo(payload[start:end])
		}

		ofs = end
	}

	return points, side
}

// decodeDetectedPoints decodes fixed-width point records, truncating any
// partial trailing record.
func decodeDetectedPoints(data []byte) []Point {
	n := len(data) / pointRecordLen
	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*pointRecordLen:]
		points = append(points, Point{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[0:4]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[4:8]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[8:12]))),
			V: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[12:16]))),
		})
	}
	return points
}

func decodeSideInfo(data []byte) []SideInfo {
	n := len(data) / sideInfoRecordLen
	side := make([]SideInfo, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*sideInfoRecordLen:]
		side = append(side, SideInfo{
			SNR:   int16(binary.LittleEndian.Uint16(rec[0:2])),
			Noise: int16(binary.LittleEndian.Uint16(rec[2:4])),
		})
	}
	return side
}
