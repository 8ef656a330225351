// Package leddar provides the LeddarOne serial protocol support.
package leddar

// The host issues a fixed 8-byte read request and the sensor answers with a
// 25-byte frame carrying a timestamp, the internal temperature and up to
// three detections. Bytes are consumed one at a time by an Assembler which
// decodes a frame as soon as it is complete, then asks for the next request.
//
// A single missed or corrupted frame costs one measurement cycle, never the
// stream: every completed frame, good or bad, ends with a reset and a new
// request.
//
// Producer: LeddarOne sensor
// Consumer: host controller
