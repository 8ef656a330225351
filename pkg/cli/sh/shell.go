// Package sh provides an interactive console to a sensor on a local serial port.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/google/uuid"

	"github.com/robotalks/leddar.go/pkg/env"
	fx "github.com/robotalks/leddar.go/pkg/framework"
	"github.com/robotalks/leddar.go/pkg/leddar"
	"github.com/robotalks/leddar.go/pkg/msgs"
	"github.com/robotalks/leddar.go/pkg/serial"
)

// MeasureTimeout is how long measure waits for a reading.
var MeasureTimeout = time.Second

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session

	// Open opens a serial port, replaceable for tests.
	Open func(path string) (serial.Port, error)
}

// Session is a running driver on an opened port.
type Session struct {
	ID     string
	Path   string
	Driver *leddar.Driver

	readingCh chan leddar.Reading
	cancel    func()
	done      chan error
}

const (
	shellKey   = "$shell"
	idlePrompt = "[closed] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&OpenCmd,
		&CloseCmd,
		&LatestCmd,
		&MeasureCmd,
		&StatsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Open:   PortOpener(conf, serial.DefaultOpener),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(idlePrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// PortOpener opens the requested path with the configured port options.
func PortOpener(conf *env.Config, opener serial.Opener) func(path string) (serial.Port, error) {
	return func(path string) (serial.Port, error) {
		return serial.OpenWith(opener, path, conf.Serial.PortOptions, 0)
	}
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an opened port.
func MustBeOpen(fn func(c *ishell.Context, s *Session)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		sess := ShellFrom(c).Session
		if sess == nil {
			c.Err(fmt.Errorf("port not opened"))
			return
		}
		fn(c, sess)
	}
}

// StartSession runs a driver on the port until Close.
func StartSession(conf *env.Config, path string, port serial.Port) *Session {
	sess := &Session{
		ID:        uuid.New().String(),
		Path:      path,
		Driver:    conf.NewDriver(port),
		readingCh: make(chan leddar.Reading, 1),
		done:      make(chan error, 1),
	}
	sess.Driver.Handler = leddar.HandleReadingFunc(sess.handleReading)
	ctx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	go func() {
		sess.done <- fx.RunWithContextCloser(ctx, port, func() error {
			return sess.Driver.Run(ctx)
		})
	}()
	return sess
}

func (s *Session) handleReading(_ context.Context, r leddar.Reading) {
	// keep the newest reading only.
	select {
	case <-s.readingCh:
	default:
	}
	s.readingCh <- r
}

// Measure requests a reading and waits for it.
func (s *Session) Measure(timeout time.Duration) (leddar.Reading, error) {
	select {
	case <-s.readingCh:
	default:
	}
	s.Driver.Trigger()
	select {
	case r := <-s.readingCh:
		return r, nil
	case err := <-s.done:
		s.done <- err
		return leddar.Reading{}, fmt.Errorf("driver stopped: %w", err)
	case <-time.After(timeout):
		if err := s.Driver.LastError(); err != nil {
			return leddar.Reading{}, err
		}
		return leddar.Reading{}, leddar.ErrNoResponse
	}
}

// Close stops the driver and closes the port.
func (s *Session) Close() error {
	s.cancel()
	err := <-s.done
	s.done <- err
	if err == context.Canceled {
		return nil
	}
	return err
}

// OpenPort opens path and starts a session, closing the current one.
func (s *Shell) OpenPort(path string) error {
	port, err := s.Open(path)
	if err != nil {
		return err
	}
	s.ClosePort()
	s.Session = StartSession(s.Config, path, port)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", path))
	return nil
}

// ClosePort closes current session.
func (s *Shell) ClosePort() {
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			log.Printf("%s: %v", s.Session.Path, err)
		}
		s.Session = nil
		s.Shell.SetPrompt(idlePrompt)
	}
}

// PrintReading prints a reading in text or JSON.
func (s *Shell) PrintReading(c *ishell.Context, r leddar.Reading) {
	if !s.OutputJSON {
		c.Println(r.String())
		return
	}
	var session string
	if s.Session != nil {
		session = s.Session.ID
	}
	out, err := json.Marshal(msgs.NewReading(s.Config.ID, session, r, time.Now()))
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.ClosePort()
	if s.Config.Serial.Port != "" {
		if err := s.OpenPort(s.Config.Serial.Port); err != nil {
			if !s.Interactive {
				log.Fatalf("open %q failed: %v", s.Config.Serial.Port, err)
			}
			s.Shell.Printf("open %s: %v\n", s.Config.Serial.Port, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "list serial ports",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ports, err := serial.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if ports == nil {
					ports = []string{}
				}
				out, _ := json.Marshal(ports)
				c.Println(string(out))
				return
			}
			if len(ports) == 0 {
				c.Println("No serial ports found")
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}

	// OpenCmd opens a serial port.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "PORT",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			path := s.Config.Serial.Port
			if len(c.Args) > 0 {
				path = c.Args[0]
			}
			if path == "" {
				c.Err(fmt.Errorf("port expected"))
				return
			}
			if err := s.OpenPort(path); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes current port.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "close the port",
		Func: func(c *ishell.Context) {
			ShellFrom(c).ClosePort()
		},
	}

	// LatestCmd prints the last decoded reading.
	LatestCmd = ishell.Cmd{
		Name:    "latest",
		Aliases: []string{"read", "r"},
		Help:    "print the last reading",
		Func: MustBeOpen(func(c *ishell.Context, sess *Session) {
			r, ok := sess.Driver.Latest()
			if !ok {
				c.Err(fmt.Errorf("no reading yet"))
				return
			}
			ShellFrom(c).PrintReading(c, r)
		}),
	}

	// MeasureCmd requests a fresh reading.
	MeasureCmd = ishell.Cmd{
		Name:    "measure",
		Aliases: []string{"m"},
		Help:    "request a reading and wait for it",
		Func: MustBeOpen(func(c *ishell.Context, sess *Session) {
			r, err := sess.Measure(MeasureTimeout)
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).PrintReading(c, r)
		}),
	}

	// StatsCmd prints driver counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "print frame counters",
		Func: MustBeOpen(func(c *ishell.Context, sess *Session) {
			st := sess.Driver.Stats()
			if ShellFrom(c).OutputJSON {
				out, err := json.Marshal(st)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			c.Printf("requests=%d frames=%d readings=%d timeouts=%d overflows=%d\n",
				st.Requests, st.Frames, st.Readings, st.Timeouts, st.Overflows)
			for code, n := range st.Errors {
				c.Printf("  %v: %d\n", code, n)
			}
			if err := sess.Driver.LastError(); err != nil {
				c.Printf("last error: %v\n", err)
			}
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.MustLoad()).Run(flag.Args()...)
}
