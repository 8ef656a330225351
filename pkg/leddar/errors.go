package leddar

import "fmt"

// ErrorCode is the outcome of a failed frame cycle.
type ErrorCode byte

// Error codes, all recovered by resetting and requesting the next frame.
const (
	// ErrOverflow indicates more bytes arrived than a frame can hold.
	ErrOverflow ErrorCode = iota + 1
	// ErrBadResponse indicates wrong length, address or function code.
	ErrBadResponse
	// ErrBadChecksum indicates the frame checksum doesn't match.
	ErrBadChecksum
	// ErrTooManyDetections indicates the detection count exceeds capacity.
	ErrTooManyDetections
)

var errorNames = map[ErrorCode]string{
	ErrOverflow:          "frame overflow",
	ErrBadResponse:       "bad response",
	ErrBadChecksum:       "bad checksum",
	ErrTooManyDetections: "too many detections",
}

// Error implements error.
func (c ErrorCode) Error() string {
	if name, ok := errorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error %d", byte(c))
}

// Code returns the negative status code reported by the sensor SDK.
func (c ErrorCode) Code() int8 {
	return -int8(c)
}
