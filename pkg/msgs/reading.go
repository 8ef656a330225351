package msgs

import (
	"errors"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/leddar.go/pkg/leddar"
)

// Detection is a published detection.
type Detection struct {
	Distance  uint32  `protobuf:"varint,1,opt,name=distance,proto3" json:"distance" cbor:"1,keyasint"`
	Amplitude float32 `protobuf:"fixed32,2,opt,name=amplitude,proto3" json:"amplitude" cbor:"2,keyasint"`
}

// Reset implements proto.Message.
func (m *Detection) Reset() { *m = Detection{} }

// String implements proto.Message.
func (m *Detection) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Detection) ProtoMessage() {}

// Reading is a published reading.
type Reading struct {
	SensorID     string       `protobuf:"bytes,1,opt,name=sensor_id,json=sensorId,proto3" json:"sensor_id" cbor:"1,keyasint"`
	Session      string       `protobuf:"bytes,2,opt,name=session,proto3" json:"session,omitempty" cbor:"2,keyasint,omitempty"`
	Timestamp    uint32       `protobuf:"varint,3,opt,name=timestamp,proto3" json:"timestamp" cbor:"3,keyasint"`
	Temperature  float32      `protobuf:"fixed32,4,opt,name=temperature,proto3" json:"temperature" cbor:"4,keyasint"`
	Detections   []*Detection `protobuf:"bytes,5,rep,name=detections,proto3" json:"detections" cbor:"5,keyasint"`
	ReceivedAtNs int64        `protobuf:"varint,6,opt,name=received_at_ns,json=receivedAtNs,proto3" json:"received_at_ns" cbor:"6,keyasint"`
}

// Reset implements proto.Message.
func (m *Reading) Reset() { *m = Reading{} }

// String implements proto.Message.
func (m *Reading) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Reading) ProtoMessage() {}

// ReceivedAt returns the host time the reading was decoded.
func (m *Reading) ReceivedAt() time.Time {
	return time.Unix(0, m.ReceivedAtNs)
}

// NewReading converts a decoded reading.
func NewReading(sensorID, session string, r leddar.Reading, at time.Time) *Reading {
	m := &Reading{
		SensorID:     sensorID,
		Session:      session,
		Timestamp:    r.Timestamp,
		Temperature:  r.Temperature,
		ReceivedAtNs: at.UnixNano(),
	}
	dets := r.Detections()
	m.Detections = make([]*Detection, len(dets))
	for n, d := range dets {
		m.Detections[n] = &Detection{Distance: uint32(d.Distance), Amplitude: d.Amplitude}
	}
	return m
}

// Leddar converts back to a decoded reading.
func (m *Reading) Leddar() leddar.Reading {
	dets := make([]leddar.Detection, 0, len(m.Detections))
	for _, d := range m.Detections {
		if d != nil {
			dets = append(dets, leddar.Detection{Distance: uint16(d.Distance), Amplitude: d.Amplitude})
		}
	}
	return leddar.NewReading(m.Timestamp, m.Temperature, dets...)
}

// ErrorEvent is published when a frame cycle fails.
type ErrorEvent struct {
	SensorID string `json:"sensor_id"`
	Code     int8   `json:"code"`
	Message  string `json:"message"`
}

// NewErrorEvent creates an ErrorEvent from err.
func NewErrorEvent(sensorID string, err error) *ErrorEvent {
	ev := &ErrorEvent{SensorID: sensorID, Message: err.Error()}
	var code leddar.ErrorCode
	if errors.As(err, &code) {
		ev.Code = code.Code()
	}
	return ev
}
