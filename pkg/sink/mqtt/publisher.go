package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/leddar.go/pkg/leddar"
	"github.com/robotalks/leddar.go/pkg/msgs"
)

// Topic suffixes under <prefix><sensor-id>/.
const (
	TopicReading = "reading"
	TopicError   = "error"
	TopicStatus  = "status"
)

// Publisher publishes readings and errors of a sensor.
type Publisher struct {
	Queue    *Queue
	SensorID string
	Session  string
	Codec    msgs.Codec
	Timeout  time.Duration
}

// NewPublisher creates a Publisher.
func NewPublisher(brokerURL, sensorID string, codec msgs.Codec) (*Publisher, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+sensorID+"/"+TopicStatus, []byte("offline"), 1, true)
	p := &Publisher{
		Queue:    NewQueue(opts, topicPrefix),
		SensorID: sensorID,
		Session:  uuid.New().String(),
		Codec:    codec,
		Timeout:  time.Second,
	}
	p.Queue.OnConnect = func(q *Queue) {
		q.PubWith(p.Topic(TopicStatus), []byte("online"), 1, true)
	}
	return p, nil
}

// Topic returns the full topic relative to prefix.
func (p *Publisher) Topic(suffix string) string {
	return p.SensorID + "/" + suffix
}

// HandleReading implements leddar.ReadingHandler.
func (p *Publisher) HandleReading(ctx context.Context, r leddar.Reading) {
	payload, err := p.Codec.Marshal(msgs.NewReading(p.SensorID, p.Session, r, time.Now()))
	if err != nil {
		glog.Errorf("encode reading error: %v", err)
		return
	}
	p.publish(TopicReading, payload)
}

// HandleError implements leddar.ErrorHandler.
func (p *Publisher) HandleError(ctx context.Context, err error) {
	payload, encErr := json.Marshal(msgs.NewErrorEvent(p.SensorID, err))
	if encErr != nil {
		glog.Errorf("encode error event error: %v", encErr)
		return
	}
	p.publish(TopicError, payload)
}

func (p *Publisher) publish(suffix string, payload []byte) {
	token := p.Queue.Pub(p.Topic(suffix), payload)
	if p.Timeout > 0 && !token.WaitTimeout(p.Timeout) {
		glog.Warningf("publish %s timeout", suffix)
		return
	}
	if err := token.Error(); err != nil {
		glog.Errorf("publish %s error: %v", suffix, err)
	}
}

// Run implements Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	p.Queue.Connect()
	<-ctx.Done()
	p.Queue.PubWith(p.Topic(TopicStatus), []byte("offline"), 1, true).WaitTimeout(p.Timeout)
	p.Queue.Close()
	return ctx.Err()
}

// Name implements Named.
func (p *Publisher) Name() string {
	return "mqtt"
}
