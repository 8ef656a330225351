// Package websocket pushes readings to websocket clients.
package websocket

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/leddar.go/pkg/leddar"
	"github.com/robotalks/leddar.go/pkg/msgs"
)

// Broadcaster sends every reading as JSON to all connected clients.
type Broadcaster struct {
	SensorID string
	// Latest, if set, is sent to a client once it connects.
	Latest func() (leddar.Reading, bool)

	clients map[*websocket.Conn]chan *msgs.Reading
	lock    sync.Mutex
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(sensorID string) *Broadcaster {
	return &Broadcaster{SensorID: sensorID}
}

// Handler returns the http.Handler accepting websocket connections.
func (b *Broadcaster) Handler() http.Handler {
	return websocket.Handler(b.serve)
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.clients)
}

// HandleReading implements leddar.ReadingHandler.
// Slow clients miss readings instead of blocking the driver.
func (b *Broadcaster) HandleReading(_ context.Context, r leddar.Reading) {
	msg := msgs.NewReading(b.SensorID, "", r, time.Now())
	b.lock.Lock()
	defer b.lock.Unlock()
	for conn, ch := range b.clients {
		select {
		case ch <- msg:
		default:
			glog.V(2).Infof("websocket client %s lagging", conn.Request().RemoteAddr)
		}
	}
}

func (b *Broadcaster) serve(conn *websocket.Conn) {
	ch := make(chan *msgs.Reading, 4)
	b.lock.Lock()
	if b.clients == nil {
		b.clients = make(map[*websocket.Conn]chan *msgs.Reading)
	}
	b.clients[conn] = ch
	b.lock.Unlock()
	glog.V(2).Infof("websocket client %s connected", conn.Request().RemoteAddr)

	defer func() {
		b.lock.Lock()
		delete(b.clients, conn)
		b.lock.Unlock()
		conn.Close()
		glog.V(2).Infof("websocket client %s disconnected", conn.Request().RemoteAddr)
	}()

	if b.Latest != nil {
		if r, ok := b.Latest(); ok {
			ch <- msgs.NewReading(b.SensorID, "", r, time.Now())
		}
	}

	closedCh := make(chan struct{})
	go func() {
		defer close(closedCh)
		io.Copy(io.Discard, conn)
	}()
	for {
		select {
		case msg := <-ch:
			if err := websocket.JSON.Send(conn, msg); err != nil {
				return
			}
		case <-closedCh:
			return
		}
	}
}

// Server serves the broadcaster over HTTP.
type Server struct {
	Addr        string
	Broadcaster *Broadcaster
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/readings", s.Broadcaster.Handler())
	srv := &http.Server{Addr: s.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		glog.Infof("websocket listening on %s", s.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		srv.Close()
		<-errCh
		return ctx.Err()
	}
}

// Name implements Named.
func (s *Server) Name() string {
	return "websocket"
}
