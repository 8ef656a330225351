package leddar

// State is the fill state of the frame buffer.
type State int

const (
	// StateIdle means no byte of the current frame has arrived.
	StateIdle State = iota
	// StateAccumulating means the frame is partially received.
	StateAccumulating
	// StateFull means a complete frame is buffered.
	StateFull
	// StateOverflow means a byte arrived after the frame was full.
	StateOverflow
)

var stateNames = [...]string{"idle", "accumulating", "full", "overflow"}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Result indicates the result after one byte is consumed.
type Result struct {
	State State
	// Frame is true when a complete frame was consumed, successfully or not.
	Frame bool
	// Reading is set on successful decoding. It points into Assembler
	// storage and is valid until the next call to OnByte.
	Reading *Reading
	Err     error
	// SendRequest asks the caller to transmit the next request.
	SendRequest bool
}

// Stats counts frame cycles.
type Stats struct {
	Frames    uint64
	Readings  uint64
	Overflows uint64
	Errors    map[ErrorCode]uint64
}

// Assembler accumulates bytes into a response frame.
// It is not safe for concurrent use: bytes must be delivered sequentially.
type Assembler struct {
	Decoder Decoder

	buf     [FrameSize]byte
	n       int
	state   State
	reading Reading

	frames    uint64
	readings  uint64
	overflows uint64
	errors    [ErrTooManyDetections + 1]uint64
}

// NewAssembler creates an Assembler using the decoder.
func NewAssembler(d Decoder) *Assembler {
	return &Assembler{Decoder: d}
}

// State gets the current state.
func (a *Assembler) State() State {
	return a.state
}

// Len returns the number of buffered bytes.
func (a *Assembler) Len() int {
	return a.n
}

// Frame returns a copy of the buffered bytes.
func (a *Assembler) Frame() []byte {
	return append([]byte(nil), a.buf[:a.n]...)
}

// Reset drops buffered bytes.
func (a *Assembler) Reset() {
	a.n, a.state = 0, StateIdle
}

// Append stores one byte without acting on a complete frame.
// ErrOverflow is returned if the frame is already full, and the byte is dropped.
func (a *Assembler) Append(b byte) (State, error) {
	if a.state == StateOverflow || a.n >= FrameSize {
		a.state = StateOverflow
		return a.state, ErrOverflow
	}
	a.buf[a.n] = b
	a.n++
	if a.n == FrameSize {
		a.state = StateFull
	} else {
		a.state = StateAccumulating
	}
	return a.state, nil
}

// OnByte consumes one received byte.
// A complete frame is decoded immediately, then the buffer is reset and the
// next request is asked for, regardless of the decoding outcome. Detections
// are cleared when a cycle fails, or right before the next frame starts
// after a successful one so that Result.Reading can be handed off.
func (a *Assembler) OnByte(b byte) (r Result) {
	if a.n == 0 {
		a.reading.ClearDetections()
	}
	state, err := a.Append(b)
	switch {
	case err != nil:
		a.overflows++
		a.fail(ErrOverflow)
		r.State, r.Err, r.SendRequest = state, err, true
		return
	case state != StateFull:
		r.State = state
		return
	}

	a.frames++
	r.Frame, r.SendRequest = true, true
	if err = a.Decoder.Decode(a.buf[:], a.n, &a.reading); err != nil {
		r.Err = err
		if code, ok := err.(ErrorCode); ok {
			a.fail(code)
		} else {
			a.fail(0)
		}
	} else {
		a.readings++
		r.Reading = &a.reading
		a.Reset()
	}
	r.State = a.state
	return
}

func (a *Assembler) fail(code ErrorCode) {
	if int(code) < len(a.errors) {
		a.errors[code]++
	}
	a.reading.ClearDetections()
	a.Reset()
}

// ClearDetections drops detections of the last decoded reading.
func (a *Assembler) ClearDetections() {
	a.reading.ClearDetections()
}

// Stats returns frame counters.
func (a *Assembler) Stats() Stats {
	s := Stats{
		Frames:    a.frames,
		Readings:  a.readings,
		Overflows: a.overflows,
		Errors:    make(map[ErrorCode]uint64),
	}
	for code, count := range a.errors {
		if count > 0 {
			s.Errors[ErrorCode(code)] = count
		}
	}
	return s
}
