package leddar

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanReadWriter struct {
	readCh  chan byte
	writeCh chan byte
}

func (c *chanReadWriter) Read(p []byte) (int, error) {
	b, ok := <-c.readCh
	if !ok {
		return 0, io.EOF
	}
	p[0] = b
	return 1, nil
}

func (c *chanReadWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		c.writeCh <- b
	}
	return len(p), nil
}

type driverTestEnv struct {
	t         *testing.T
	rw        *chanReadWriter
	driver    *Driver
	readingCh chan Reading
	errCh     chan error
	runErrCh  chan error
	cancel    func()
}

func newDriverTestEnv(t *testing.T, setup func(*Driver)) *driverTestEnv {
	env := &driverTestEnv{
		t:         t,
		rw:        &chanReadWriter{readCh: make(chan byte), writeCh: make(chan byte, RequestSize)},
		readingCh: make(chan Reading, 1),
		errCh:     make(chan error, 1),
		runErrCh:  make(chan error, 1),
	}
	env.driver = NewDriver(env.rw)
	env.driver.SettleDelay = 0
	env.driver.Handler = HandleReadingFunc(func(ctx context.Context, r Reading) {
		env.readingCh <- r
	})
	env.driver.ErrorHandler = HandleErrorFunc(func(ctx context.Context, err error) {
		env.errCh <- err
	})
	if setup != nil {
		setup(env.driver)
	}
	ctx, cancel := context.WithCancel(context.TODO())
	env.cancel = cancel
	go func() {
		env.runErrCh <- env.driver.Run(ctx)
	}()
	return env
}

func (e *driverTestEnv) expectRequest() *driverTestEnv {
	expect := DefaultRequest(DefaultAddress).Bytes()
	for n := range expect {
		select {
		case b := <-e.rw.writeCh:
			require.Equalf(e.t, expect[n], b, "request[%d] mismatch", n)
		case <-time.After(500 * time.Millisecond):
			e.t.Fatalf("request[%d] timeout", n)
		}
	}
	return e
}

func (e *driverTestEnv) inject(p []byte) *driverTestEnv {
	for _, b := range p {
		e.rw.readCh <- b
	}
	return e
}

func (e *driverTestEnv) expectReading() Reading {
	select {
	case r := <-e.readingCh:
		return r
	case <-time.After(500 * time.Millisecond):
		e.t.Fatal("expect reading timeout")
	}
	return Reading{}
}

func (e *driverTestEnv) expectError(expected error) *driverTestEnv {
	select {
	case err := <-e.errCh:
		require.Equal(e.t, expected, err)
	case <-time.After(500 * time.Millisecond):
		e.t.Fatal("expect error timeout")
	}
	return e
}

func (e *driverTestEnv) stop() error {
	e.cancel()
	select {
	case err := <-e.runErrCh:
		return err
	case <-time.After(500 * time.Millisecond):
		e.t.Fatal("driver doesn't stop")
	}
	return nil
}

func TestDriverCycle(t *testing.T) {
	env := newDriverTestEnv(t, nil)
	env.expectRequest()
	_, ok := env.driver.Latest()
	require.False(t, ok)

	env.inject(referenceFrame())
	r := env.expectReading()
	require.Equal(t, []Detection{{Distance: 100, Amplitude: 0.5}}, r.Detections())
	env.expectRequest()

	latest, ok := env.driver.Latest()
	require.True(t, ok)
	require.Equal(t, r, latest)
	require.NoError(t, env.driver.LastError())

	bad := referenceFrame()
	bad[FrameSize-1]++
	env.inject(bad).expectError(ErrBadChecksum).expectRequest()
	latest, _ = env.driver.Latest()
	require.Equal(t, r, latest, "latest reading kept on error")
	require.Equal(t, ErrBadChecksum, env.driver.LastError())

	env.inject(referenceFrame())
	env.expectReading()
	env.expectRequest()

	stats := env.driver.Stats()
	require.EqualValues(t, 3, stats.Frames)
	require.EqualValues(t, 2, stats.Readings)
	require.EqualValues(t, 1, stats.Errors[ErrBadChecksum])
	require.EqualValues(t, 4, stats.Requests)
	require.Equal(t, context.Canceled, env.stop())
}

func TestDriverSettleDelay(t *testing.T) {
	env := newDriverTestEnv(t, func(d *Driver) {
		d.SettleDelay = 20 * time.Millisecond
	})
	env.expectRequest()
	env.inject(referenceFrame())
	env.expectReading()
	start := time.Now()
	env.expectRequest()
	require.True(t, time.Since(start) >= 10*time.Millisecond)
	env.stop()
}

func TestDriverTimeout(t *testing.T) {
	env := newDriverTestEnv(t, func(d *Driver) {
		d.Timeout = 100 * time.Millisecond
	})
	env.expectRequest()
	env.inject(referenceFrame()[:10])
	env.expectError(ErrNoResponse).expectRequest()
	require.Equal(t, ErrNoResponse, env.driver.LastError())

	env.inject(referenceFrame())
	env.expectReading()
	env.expectRequest()
	require.EqualValues(t, 1, env.driver.Stats().Timeouts)
	env.stop()
}

func TestDriverTrigger(t *testing.T) {
	env := newDriverTestEnv(t, nil)
	env.expectRequest()
	env.inject(referenceFrame()[:5])
	time.Sleep(20 * time.Millisecond)
	env.driver.Trigger()
	env.expectRequest()

	// partial frame was dropped.
	env.inject(referenceFrame())
	env.expectReading()
	env.expectRequest()
	env.stop()
}

func TestDriverReadError(t *testing.T) {
	env := newDriverTestEnv(t, nil)
	env.expectRequest()
	close(env.rw.readCh)
	select {
	case err := <-env.runErrCh:
		require.Equal(t, io.EOF, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("driver doesn't stop")
	}
	env.cancel()
}

func TestReadingHandlers(t *testing.T) {
	var got []uint32
	h := ReadingHandlers{
		HandleReadingFunc(func(_ context.Context, r Reading) { got = append(got, r.Timestamp) }),
		DebugPrinter{},
		HandleReadingFunc(func(_ context.Context, r Reading) { got = append(got, r.Timestamp+1) }),
	}
	h.HandleReading(context.TODO(), NewReading(5, 20, Detection{Distance: 1}))
	require.Equal(t, []uint32{5, 6}, got)
}

func TestDriverDropsStrayBytes(t *testing.T) {
	env := newDriverTestEnv(t, func(d *Driver) {
		d.SettleDelay = 30 * time.Millisecond
	})
	env.expectRequest()
	// a trailing byte after the response arrives before the next request.
	env.inject(append(referenceFrame(), 0xaa))
	env.expectReading()
	env.expectRequest()

	for i := 0; i < 2; i++ {
		env.inject(referenceFrame())
		r := env.expectReading()
		require.Equal(t, []Detection{{Distance: 100, Amplitude: 0.5}}, r.Detections())
		env.expectRequest()
	}
	require.NoError(t, env.driver.LastError())
	require.Empty(t, env.driver.Stats().Errors)
	env.stop()
}

func TestDriverSlowHandler(t *testing.T) {
	handledCh := make(chan Reading, 1)
	env := newDriverTestEnv(t, func(d *Driver) {
		d.Handler = HandleReadingFunc(func(_ context.Context, r Reading) {
			time.Sleep(200 * time.Millisecond)
			handledCh <- r
		})
	})
	env.expectRequest()
	env.inject(referenceFrame())
	start := time.Now()
	env.expectRequest()
	require.Less(t, time.Since(start), 100*time.Millisecond, "request delayed by handler")
	select {
	case r := <-handledCh:
		require.Equal(t, 1, r.Count())
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	env.stop()
}

func TestDriverHandlerQueueDropsOldest(t *testing.T) {
	entered, release := make(chan struct{}, 1), make(chan struct{})
	var lock sync.Mutex
	var temps []float32
	env := newDriverTestEnv(t, func(d *Driver) {
		d.HandlerQueue = 1
		d.Handler = HandleReadingFunc(func(_ context.Context, r Reading) {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			lock.Lock()
			temps = append(temps, r.Temperature)
			lock.Unlock()
		})
	})
	frame := func(temp byte) []byte {
		return responseFrame([4]byte{0, 0, 0, temp}, [2]byte{temp, 0}, [3]int{100, 1, 0})
	}

	env.expectRequest()
	env.inject(frame(21)).expectRequest()
	select {
	case <-entered:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("handler not called")
	}
	env.inject(frame(22)).expectRequest()
	env.inject(frame(23)).expectRequest()
	require.EqualValues(t, 1, env.driver.Stats().Dropped)
	close(release)

	require.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(temps) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []float32{21, 23}, temps)
	env.stop()
}
