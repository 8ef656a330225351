package leddar

import "fmt"

// Detection is a single echo reported by the sensor.
type Detection struct {
	// Distance in centimeters.
	Distance uint16
	// Amplitude in 1/256 steps.
	Amplitude float32
}

// Reading is the decoded content of a response frame.
type Reading struct {
	Timestamp   uint32
	Temperature float32

	count      int
	detections [MaxDetections]Detection
}

// Count returns the number of detections.
func (r *Reading) Count() int {
	return r.count
}

// Detections returns the detections in frame order.
// The slice aliases r.
func (r *Reading) Detections() []Detection {
	return r.detections[:r.count]
}

// First returns the first detection if any.
func (r *Reading) First() (Detection, bool) {
	if r.count == 0 {
		return Detection{}, false
	}
	return r.detections[0], true
}

// ClearDetections drops all detections and keeps the rest.
func (r *Reading) ClearDetections() {
	r.detections = [MaxDetections]Detection{}
	r.count = 0
}

// String implements fmt.Stringer.
func (r Reading) String() string {
	s := fmt.Sprintf("ts=%d temp=%.2f", r.Timestamp, r.Temperature)
	for n, d := range r.Detections() {
		s += fmt.Sprintf(" [%d] %dcm/%.2f", n, d.Distance, d.Amplitude)
	}
	return s
}

// NewReading creates a Reading, mostly useful for tests and replay.
// Detections beyond MaxDetections are dropped.
func NewReading(ts uint32, temp float32, dets ...Detection) Reading {
	r := Reading{Timestamp: ts, Temperature: temp}
	r.count = copy(r.detections[:], dets)
	return r
}
