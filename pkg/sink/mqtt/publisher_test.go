package mqtt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/leddar.go/pkg/leddar"
	"github.com/robotalks/leddar.go/pkg/msgs"
)

func TestPublisher(t *testing.T) {
	client := &fakeClient{}
	p := &Publisher{
		Queue:    &Queue{Client: client, TopicPrefix: "leddar/"},
		SensorID: "s1",
		Session:  "abc",
		Codec:    msgs.Codecs[msgs.CodecJSON],
	}

	p.HandleReading(context.TODO(), leddar.NewReading(42, 25.5, leddar.Detection{Distance: 100, Amplitude: 0.5}))
	p.HandleError(context.TODO(), leddar.ErrTooManyDetections)
	require.Len(t, client.published, 2)

	require.Equal(t, "leddar/s1/reading", client.published[0].topic)
	var reading msgs.Reading
	require.NoError(t, p.Codec.Unmarshal(client.published[0].payload, &reading))
	require.Equal(t, "s1", reading.SensorID)
	require.Equal(t, "abc", reading.Session)
	require.Equal(t, uint32(42), reading.Timestamp)
	require.Equal(t, []*msgs.Detection{{Distance: 100, Amplitude: 0.5}}, reading.Detections)

	require.Equal(t, "leddar/s1/error", client.published[1].topic)
	var ev msgs.ErrorEvent
	require.NoError(t, json.Unmarshal(client.published[1].payload, &ev))
	require.Equal(t, msgs.ErrorEvent{SensorID: "s1", Code: -4, Message: "too many detections"}, ev)
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher("mqtt://localhost:1883/leddar/", "s2", msgs.Codecs[msgs.CodecProto])
	require.NoError(t, err)
	require.Equal(t, "leddar/", p.Queue.TopicPrefix)
	require.Equal(t, "s2/reading", p.Topic(TopicReading))
	require.NotEmpty(t, p.Session)

	_, err = NewPublisher("://bad", "s2", msgs.Codecs[msgs.CodecProto])
	require.Error(t, err)
}
