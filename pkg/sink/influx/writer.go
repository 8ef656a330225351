// Package influx stores readings in InfluxDB.
package influx

import (
	"context"
	"strconv"
	"time"

	"github.com/golang/glog"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/robotalks/leddar.go/pkg/leddar"
)

// Measurement names.
const (
	MeasurementReading   = "leddar_reading"
	MeasurementDetection = "leddar_detection"
)

// Config defines the InfluxDB connection.
type Config struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// PointWriter writes points synchronously.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer converts readings into points.
type Writer struct {
	PointWriter PointWriter
	SensorID    string
	Timeout     time.Duration

	client influxdb2.Client
}

// NewWriter connects to InfluxDB.
func (c Config) NewWriter(sensorID string) *Writer {
	client := influxdb2.NewClient(c.URL, c.Token)
	return &Writer{
		PointWriter: client.WriteAPIBlocking(c.Org, c.Bucket),
		SensorID:    sensorID,
		Timeout:     2 * time.Second,
		client:      client,
	}
}

// Points converts a reading into points: one for the reading and one per detection.
func (w *Writer) Points(r leddar.Reading, at time.Time) []*write.Point {
	tags := map[string]string{"sensor": w.SensorID}
	points := []*write.Point{
		influxdb2.NewPoint(MeasurementReading, tags, map[string]interface{}{
			"timestamp":   int64(r.Timestamp),
			"temperature": float64(r.Temperature),
			"detections":  r.Count(),
		}, at),
	}
	for n, d := range r.Detections() {
		points = append(points, influxdb2.NewPoint(MeasurementDetection,
			map[string]string{"sensor": w.SensorID, "index": strconv.Itoa(n)},
			map[string]interface{}{
				"distance":  int64(d.Distance),
				"amplitude": float64(d.Amplitude),
			}, at))
	}
	return points
}

// HandleReading implements leddar.ReadingHandler.
func (w *Writer) HandleReading(ctx context.Context, r leddar.Reading) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	if err := w.PointWriter.WritePoint(ctx, w.Points(r, time.Now())...); err != nil {
		glog.Errorf("influx write error: %v", err)
	}
}

// Close implements io.Closer.
func (w *Writer) Close() error {
	if w.client != nil {
		w.client.Close()
	}
	return nil
}
