package leddar

// responseFrame builds a valid response for address 1 carrying dets.
// Each detection is given as distance, amplitude integer, amplitude fraction.
func responseFrame(ts [4]byte, temp [2]byte, dets ...[3]int) []byte {
	frame := make([]byte, FrameSize)
	frame[0], frame[1] = DefaultAddress, FuncReadInputRegisters
	frame[3], frame[4], frame[5], frame[6] = ts[0], ts[1], ts[2], ts[3]
	frame[7], frame[8] = temp[0], temp[1]
	frame[countOffset] = byte(len(dets))
	off := detectionsOffset
	for _, d := range dets {
		frame[off], frame[off+1] = byte(d[0]>>8), byte(d[0])
		frame[off+2], frame[off+3] = byte(d[1]), byte(d[2])
		off += detectionSize
	}
	CRC16(frame, FrameSize-2, false)
	return frame
}

// referenceFrame is a single detection at 100cm with amplitude 0.5.
func referenceFrame() []byte {
	frame := []byte{
		0x01, 0x04,
		0x00, 0x14,
		0x00, 0x00,
		0x19, 0x80,
		0x00, 0x00,
		0x01,
		0x00, 0x64, 0x00, 0x80,
		0, 0, 0, 0, 0, 0, 0, 0,
		0xc3, 0xc2,
	}
	return frame
}
