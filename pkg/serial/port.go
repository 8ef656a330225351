// Package serial opens the serial port connected to the sensor.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	bugst "go.bug.st/serial"
)

// Port is the minimal interface of an opened serial port.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens a serial port, replaceable for testing.
type Opener func(path string, mode *bugst.Mode) (bugst.Port, error)

// DefaultOpener opens real serial ports.
var DefaultOpener Opener = bugst.Open

// Open opens the port at path with the options.
// A positive readTimeout makes Read return 0 bytes when no data arrives.
func Open(path string, opts PortOptions, readTimeout time.Duration) (Port, error) {
	return OpenWith(DefaultOpener, path, opts, readTimeout)
}

// OpenWith opens the port using the opener.
func OpenWith(opener Opener, path string, opts PortOptions, readTimeout time.Duration) (Port, error) {
	if path == "" {
		return nil, fmt.Errorf("serial port path is required")
	}
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}
	port, err := opener(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if readTimeout > 0 {
		if err = port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
		}
	}
	glog.Infof("opened %s (%s)", path, opts)
	return port, nil
}

// Ports lists available serial ports.
func Ports() ([]string, error) {
	return bugst.GetPortsList()
}
