package leddar

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// ErrNoResponse indicates the sensor didn't answer a request in time.
var ErrNoResponse = errors.New("no response")

// Default timings.
const (
	// DefaultSettleDelay is the pause between a frame and the next request.
	DefaultSettleDelay = time.Millisecond
	// DefaultHandlerQueue is the number of outcomes buffered for handlers.
	DefaultHandlerQueue = 16
)

// ReadingHandler is called when a reading is decoded.
type ReadingHandler interface {
	HandleReading(context.Context, Reading)
}

// HandleReadingFunc is func type of ReadingHandler.
type HandleReadingFunc func(context.Context, Reading)

// HandleReading implements ReadingHandler.
func (f HandleReadingFunc) HandleReading(ctx context.Context, r Reading) {
	f(ctx, r)
}

// ReadingHandlers dispatches a reading to all handlers in order.
type ReadingHandlers []ReadingHandler

// HandleReading implements ReadingHandler.
func (h ReadingHandlers) HandleReading(ctx context.Context, r Reading) {
	for _, handler := range h {
		handler.HandleReading(ctx, r)
	}
}

// ErrorHandler is called when a frame cycle fails.
type ErrorHandler interface {
	HandleError(context.Context, error)
}

// HandleErrorFunc is func type of ErrorHandler.
type HandleErrorFunc func(context.Context, error)

// HandleError implements ErrorHandler.
func (f HandleErrorFunc) HandleError(ctx context.Context, err error) {
	f(ctx, err)
}

// ErrorHandlers dispatches an error to all handlers in order.
type ErrorHandlers []ErrorHandler

// HandleError implements ErrorHandler.
func (h ErrorHandlers) HandleError(ctx context.Context, err error) {
	for _, handler := range h {
		handler.HandleError(ctx, err)
	}
}

// DriverStats extends Stats with request counters.
type DriverStats struct {
	Stats
	Requests uint64
	Timeouts uint64
	// Dropped counts outcomes discarded because handlers fell behind.
	Dropped uint64
}

// Driver requests measurements and feeds received bytes to an Assembler.
// All bytes are consumed by a single goroutine, so the Assembler never sees
// concurrent calls.
type Driver struct {
	ReadWriter   io.ReadWriter
	Decoder      Decoder
	Handler      ReadingHandler
	ErrorHandler ErrorHandler
	// SettleDelay is the wait before sending the next request after a frame.
	SettleDelay time.Duration
	// Timeout re-sends the request if no byte arrives in time.
	// Zero waits forever.
	Timeout time.Duration
	// HandlerQueue bounds outcomes waiting for Handler and ErrorHandler.
	// When full, the oldest outcome is dropped.
	HandlerQueue int

	assembler Assembler
	latest    Reading
	hasLatest bool
	lastErr   error
	requests  uint64
	timeouts  uint64
	dropped   uint64
	lock      sync.RWMutex

	outcomeCh chan outcome

	triggerCh   chan struct{}
	triggerOnce sync.Once
	settleTimer <-chan time.Time
	replyTimer  <-chan time.Time
}

// NewDriver creates a Driver talking to the sensor at DefaultAddress.
func NewDriver(rw io.ReadWriter) *Driver {
	return &Driver{
		ReadWriter:   rw,
		Decoder:      NewDecoder(DefaultAddress),
		SettleDelay:  DefaultSettleDelay,
		HandlerQueue: DefaultHandlerQueue,
	}
}

// outcome is a frame cycle result waiting for handlers.
type outcome struct {
	reading Reading
	err     error
}

// Latest returns the last successfully decoded reading.
func (d *Driver) Latest() (Reading, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.latest, d.hasLatest
}

// LastError returns the outcome of the last frame cycle.
func (d *Driver) LastError() error {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.lastErr
}

// Stats returns counters.
func (d *Driver) Stats() DriverStats {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return DriverStats{
		Stats:    d.assembler.Stats(),
		Requests: d.requests,
		Timeouts: d.timeouts,
		Dropped:  d.dropped,
	}
}

// Trigger drops any partial frame and sends a request immediately.
func (d *Driver) Trigger() {
	select {
	case d.trigger() <- struct{}{}:
	default:
	}
}

func (d *Driver) trigger() chan struct{} {
	d.triggerOnce.Do(func() {
		d.triggerCh = make(chan struct{}, 1)
	})
	return d.triggerCh
}

// Run sends the first request and processes received bytes until ctx is done
// or reading fails.
// Handlers are called from a separate goroutine so slow sinks never delay
// byte intake or the next request.
func (d *Driver) Run(ctx context.Context) error {
	queue := d.HandlerQueue
	if queue <= 0 {
		queue = 1
	}
	d.lock.Lock()
	d.assembler = Assembler{Decoder: d.Decoder}
	d.lock.Unlock()
	d.outcomeCh = make(chan outcome, queue)
	triggerCh := d.trigger()

	subCtx, cancel := context.WithCancel(ctx)
	dispatchDone := make(chan struct{})
	defer func() {
		cancel()
		<-dispatchDone
	}()
	go d.dispatchLoop(subCtx, ctx, dispatchDone)

	if err := d.sendRequest(); err != nil {
		return err
	}

	byteCh, errCh := make(chan byte), make(chan error, 1)
	go d.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case b := <-byteCh:
			if err := d.consume(b); err != nil {
				return err
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-d.settleTimer:
			d.settleTimer = nil
			// bytes before the request is on the wire are noise.
			d.lock.Lock()
			if n := d.assembler.Len(); n > 0 {
				glog.V(2).Infof("%d stray bytes dropped", n)
			}
			d.assembler.Reset()
			d.lock.Unlock()
			if err := d.sendRequest(); err != nil {
				return err
			}
		case <-d.replyTimer:
			if err := d.noResponse(); err != nil {
				return err
			}
		case <-triggerCh:
			d.lock.Lock()
			d.assembler.Reset()
			d.assembler.ClearDetections()
			d.lock.Unlock()
			d.settleTimer = nil
			if err := d.sendRequest(); err != nil {
				return err
			}
		}
	}
}

func (d *Driver) dispatchLoop(ctx, handlerCtx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-d.outcomeCh:
			if o.err == nil {
				if h := d.Handler; h != nil {
					h.HandleReading(handlerCtx, o.reading)
				}
			} else if h := d.ErrorHandler; h != nil {
				h.HandleError(handlerCtx, o.err)
			}
		}
	}
}

// notify queues an outcome for handlers, dropping the oldest when full.
func (d *Driver) notify(o outcome) {
	if d.Handler == nil && d.ErrorHandler == nil {
		return
	}
	for {
		select {
		case d.outcomeCh <- o:
			return
		default:
		}
		select {
		case <-d.outcomeCh:
			d.lock.Lock()
			d.dropped++
			d.lock.Unlock()
		default:
		}
	}
}

func (d *Driver) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 1)
	for {
		n, err := d.ReadWriter.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			// read timeout
			continue
		}
		select {
		case byteCh <- buf[0]:
		case <-ctx.Done():
			return
		}
	}
}

func (d *Driver) consume(b byte) error {
	d.lock.Lock()
	r := d.assembler.OnByte(b)
	var reading Reading
	if r.Frame || r.Err != nil {
		d.lastErr = r.Err
	}
	if r.Reading != nil {
		reading = *r.Reading
		d.latest, d.hasLatest = reading, true
	}
	d.lock.Unlock()

	if d.Timeout > 0 && r.State == StateAccumulating {
		d.replyTimer = time.After(d.Timeout)
	}
	if r.Reading != nil {
		d.notify(outcome{reading: reading})
	} else if r.Err != nil {
		glog.V(2).Infof("frame dropped: %v", r.Err)
		d.notify(outcome{err: r.Err})
	}
	if !r.SendRequest {
		return nil
	}
	d.replyTimer = nil
	if d.SettleDelay <= 0 {
		return d.sendRequest()
	}
	d.settleTimer = time.After(d.SettleDelay)
	return nil
}

func (d *Driver) noResponse() error {
	d.lock.Lock()
	glog.V(2).Infof("no response, %d bytes dropped", d.assembler.Len())
	d.assembler.Reset()
	d.assembler.ClearDetections()
	d.timeouts++
	d.lastErr = ErrNoResponse
	d.lock.Unlock()
	d.notify(outcome{err: ErrNoResponse})
	return d.sendRequest()
}

func (d *Driver) sendRequest() error {
	req := DefaultRequest(d.Decoder.Address)
	req.Function = d.Decoder.Function
	d.lock.Lock()
	d.requests++
	d.lock.Unlock()
	if _, err := req.WriteTo(d.ReadWriter); err != nil {
		return err
	}
	glog.V(4).Infof("request sent to %#02x", req.Address)
	if d.Timeout > 0 {
		d.replyTimer = time.After(d.Timeout)
	} else {
		d.replyTimer = nil
	}
	return nil
}

// DebugPrinter logs the first detection of every reading.
type DebugPrinter struct{}

// HandleReading implements ReadingHandler.
func (DebugPrinter) HandleReading(_ context.Context, r Reading) {
	glog.Infof("Temperature: %.2f", r.Temperature)
	glog.Infof("TimeStamp: %d", r.Timestamp)
	if det, ok := r.First(); ok {
		glog.Infof("Distance: %d", det.Distance)
		glog.Infof("Amplitude: %.2f", det.Amplitude)
	}
}
