package leddar

import "github.com/golang/glog"

const (
	detectionsOffset = 11
	detectionSize    = 4
	countOffset      = 10
)

// Decoder validates and decodes response frames.
type Decoder struct {
	Address       byte
	Function      byte
	MaxDetections int
}

// NewDecoder creates a Decoder for the sensor address.
func NewDecoder(addr byte) Decoder {
	return Decoder{
		Address:       addr,
		Function:      FuncReadInputRegisters,
		MaxDetections: MaxDetections,
	}
}

// Capacity returns the effective detection capacity.
func (d Decoder) Capacity() int {
	if d.MaxDetections <= 0 || d.MaxDetections > MaxDetections {
		return MaxDetections
	}
	return d.MaxDetections
}

// Decode decodes frame[:n] into out. out is only modified on success.
func (d Decoder) Decode(frame []byte, n int, out *Reading) error {
	if n != FrameSize || len(frame) < n {
		return ErrBadResponse
	}
	if frame[0] != d.Address || frame[1] != d.Function {
		return ErrBadResponse
	}
	if !CRC16(frame, n-2, true) {
		return ErrBadChecksum
	}
	count := int(frame[countOffset])
	if count > d.Capacity() {
		return ErrTooManyDetections
	}

	// byte order on the wire is 5, 6, 3, 4.
	out.Timestamp = uint32(frame[5])<<24 | uint32(frame[6])<<16 | uint32(frame[3])<<8 | uint32(frame[4])
	out.Temperature = float32(frame[7]) + float32(frame[8])/256
	out.ClearDetections()
	for i, off := 0, detectionsOffset; i < count; i, off = i+1, off+detectionSize {
		out.detections[i] = Detection{
			Distance:  uint16(frame[off])<<8 | uint16(frame[off+1]),
			Amplitude: float32(frame[off+2]) + float32(frame[off+3])/256,
		}
	}
	out.count = count
	if glog.V(4) {
		glog.Infof("decoded %s", out)
	}
	return nil
}
