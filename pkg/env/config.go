// Package env provides configuration of the sensor host.
package env

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/leddar.go/pkg/leddar"
	"github.com/robotalks/leddar.go/pkg/msgs"
	"github.com/robotalks/leddar.go/pkg/serial"
	"github.com/robotalks/leddar.go/pkg/sink/influx"
)

// SensorConfig defines the protocol settings.
type SensorConfig struct {
	Address       uint          `yaml:"address"`
	MaxDetections int           `yaml:"max_detections"`
	SettleDelay   time.Duration `yaml:"settle_delay"`
	// Timeout re-sends a request after no reply. Zero waits forever.
	Timeout time.Duration `yaml:"timeout"`
}

// SerialConfig defines the serial port.
type SerialConfig struct {
	Port               string `yaml:"port"`
	serial.PortOptions `yaml:",inline"`
}

// MQTTConfig defines the MQTT publisher.
// e.g. mqtt://host:port/topic-prefix
type MQTTConfig struct {
	URL      string `yaml:"url"`
	Encoding string `yaml:"encoding"`
}

// WebSocketConfig defines the websocket server.
type WebSocketConfig struct {
	Listen string `yaml:"listen"`
}

// Config is the configuration of leddard.
type Config struct {
	// File is the YAML file loaded before flags are applied.
	File string `yaml:"-"`

	ID        string          `yaml:"id"`
	Debug     bool            `yaml:"debug"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Serial    SerialConfig    `yaml:"serial"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Influx    influx.Config   `yaml:"influx"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

var defaultConfig = Config{
	Sensor: SensorConfig{
		Address:       uint(leddar.DefaultAddress),
		MaxDetections: leddar.MaxDetections,
		SettleDelay:   leddar.DefaultSettleDelay,
	},
	Serial: SerialConfig{
		Port:        "/dev/ttyUSB0",
		PortOptions: serial.PortOptions{BaudRate: serial.DefaultBaudRate},
	},
	MQTT: MQTTConfig{Encoding: msgs.CodecProto},
}

func init() {
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(c *Config, getenv func(string) string) {
	if val := getenv("LEDDAR_ID"); val != "" {
		c.ID = val
	}
	if val := getenv("LEDDAR_PORT"); val != "" {
		c.Serial.Port = val
	}
	if val := getenv("LEDDAR_MQTT_URL"); val != "" {
		c.MQTT.URL = val
	}
	if val := getenv("LEDDAR_INFLUX_URL"); val != "" {
		c.Influx.URL = val
	}
	if val := getenv("LEDDAR_INFLUX_TOKEN"); val != "" {
		c.Influx.Token = val
	}
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// SetupFlags sets command line flags on the default config.
func SetupFlags() {
	defaultConfig.AddFlags(flag.CommandLine)
}

// AddFlags binds flags to c.
func (c *Config) AddFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.File, "config", c.File, "YAML config file, flags take precedence.")
	fs.StringVar(&c.ID, "id", c.ID, "Sensor ID, default is derived from machine ID.")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Log every reading.")
	fs.UintVar(&c.Sensor.Address, "addr", c.Sensor.Address, "Sensor Modbus address.")
	fs.IntVar(&c.Sensor.MaxDetections, "max-detections", c.Sensor.MaxDetections, "Max detections accepted in a frame.")
	fs.DurationVar(&c.Sensor.SettleDelay, "settle", c.Sensor.SettleDelay, "Delay before the next request.")
	fs.DurationVar(&c.Sensor.Timeout, "timeout", c.Sensor.Timeout, "Re-send request after no reply, 0 waits forever.")
	fs.StringVar(&c.Serial.Port, "port", c.Serial.Port, "Serial port.")
	fs.IntVar(&c.Serial.BaudRate, "baud", c.Serial.BaudRate, "Serial baud rate.")
	fs.StringVar(&c.Serial.Parity, "parity", c.Serial.Parity, "Serial parity: N, E or O.")
	fs.StringVar(&c.MQTT.URL, "mqtt", c.MQTT.URL, "MQTT broker URL, empty to disable.")
	fs.StringVar(&c.MQTT.Encoding, "encoding", c.MQTT.Encoding, "MQTT payload encoding: proto, json or cbor.")
	fs.StringVar(&c.Influx.URL, "influx", c.Influx.URL, "InfluxDB URL, empty to disable.")
	fs.StringVar(&c.Influx.Org, "influx-org", c.Influx.Org, "InfluxDB organization.")
	fs.StringVar(&c.Influx.Bucket, "influx-bucket", c.Influx.Bucket, "InfluxDB bucket.")
	fs.StringVar(&c.WebSocket.Listen, "ws", c.WebSocket.Listen, "Websocket listen address, empty to disable.")
}

// LoadFile overlays c with the YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Load loads c.File if specified, then re-applies the command line so flags
// take precedence over the file, and validates the result.
func (c *Config) Load(fs *flag.FlagSet, args []string) error {
	if c.File != "" {
		if err := c.LoadFile(c.File); err != nil {
			return err
		}
		if err := fs.Parse(args); err != nil {
			return err
		}
	}
	if c.ID == "" {
		c.ID = MachineID()
	}
	return c.Validate()
}

// MustLoad loads the default config and fails on error.
func MustLoad() *Config {
	if err := defaultConfig.Load(flag.CommandLine, os.Args[1:]); err != nil {
		glog.Exit(err)
	}
	return NewConfig()
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Sensor.Address == 0 || c.Sensor.Address > 247 {
		return fmt.Errorf("invalid sensor address %d: must be between 1 and 247", c.Sensor.Address)
	}
	if c.Sensor.MaxDetections < 0 || c.Sensor.MaxDetections > leddar.MaxDetections {
		return fmt.Errorf("invalid max detections %d: must be between 0 and %d", c.Sensor.MaxDetections, leddar.MaxDetections)
	}
	if c.Sensor.SettleDelay < 0 || c.Sensor.Timeout < 0 {
		return fmt.Errorf("settle delay and timeout must not be negative")
	}
	if _, err := c.Serial.Normalize(); err != nil {
		return err
	}
	if c.MQTT.URL != "" {
		if _, err := msgs.CodecByName(c.MQTT.Encoding); err != nil {
			return err
		}
	}
	return nil
}

// Decoder creates the frame decoder.
func (c *Config) Decoder() leddar.Decoder {
	d := leddar.NewDecoder(byte(c.Sensor.Address))
	if c.Sensor.MaxDetections > 0 {
		d.MaxDetections = c.Sensor.MaxDetections
	}
	return d
}

// NewDriver creates a driver over the opened port.
func (c *Config) NewDriver(port serial.Port) *leddar.Driver {
	d := leddar.NewDriver(port)
	d.Decoder = c.Decoder()
	d.SettleDelay = c.Sensor.SettleDelay
	d.Timeout = c.Sensor.Timeout
	return d
}

// OpenPort opens the configured serial port.
func (c *Config) OpenPort() (serial.Port, error) {
	return serial.Open(c.Serial.Port, c.Serial.PortOptions, 0)
}
