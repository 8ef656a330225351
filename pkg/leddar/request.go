package leddar

import (
	"encoding/binary"
	"io"
)

// Protocol constants.
const (
	// DefaultAddress is the factory Modbus address of the sensor.
	DefaultAddress byte = 0x01
	// FuncReadInputRegisters is the only function code used.
	FuncReadInputRegisters byte = 0x04
	// DetectionRegister is the first input register of a measurement.
	DetectionRegister uint16 = 20
	// DetectionRegisterCount is the number of registers read per request.
	DetectionRegisterCount uint16 = 10

	// RequestSize is the size of an encoded request including checksum.
	RequestSize = 8
	// FrameSize is the size of a response including checksum.
	FrameSize = 25
	// MaxDetections is the number of detection records a frame can carry.
	MaxDetections = (FrameSize - detectionsOffset - 2) / detectionSize
)

// Request is a read request sent to the sensor.
type Request struct {
	Address  byte
	Function byte
	Register uint16
	Count    uint16
}

// DefaultRequest creates the measurement request for the address.
func DefaultRequest(addr byte) Request {
	return Request{
		Address:  addr,
		Function: FuncReadInputRegisters,
		Register: DetectionRegister,
		Count:    DetectionRegisterCount,
	}
}

// Bytes returns encoded bytes for sending.
func (r Request) Bytes() (b [RequestSize]byte) {
	b[0], b[1] = r.Address, r.Function
	binary.BigEndian.PutUint16(b[2:], r.Register)
	binary.BigEndian.PutUint16(b[4:], r.Count)
	CRC16(b[:], RequestSize-2, false)
	return
}

// WriteTo writes encoded bytes.
func (r Request) WriteTo(w io.Writer) (int64, error) {
	b := r.Bytes()
	n, err := w.Write(b[:])
	return int64(n), err
}
