package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/leddar.go/pkg/msgs"
	"github.com/robotalks/leddar.go/pkg/sink/mqtt"
)

var (
	mqttURL  = "mqtt://localhost:1883/leddar/"
	encoding = msgs.CodecProto
)

func init() {
	if val := os.Getenv("LEDDAR_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&encoding, "encoding", encoding, "Reading encoding: proto, json or cbor.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	codec, err := msgs.CodecByName(encoding)
	if err != nil {
		log.Fatalln(err)
	}
	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub("+/"+mqtt.TopicReading, mqtt.Handler(func(topic string, payload []byte) {
		var m msgs.Reading
		if err := codec.Unmarshal(payload, &m); err != nil {
			log.Printf("%s: bad reading: %v", topic, err)
			return
		}
		log.Printf("%s: [%s] %s", topic, m.Session, m.Leddar())
	}))
	q.Sub("+/"+mqtt.TopicError, mqtt.Handler(func(topic string, payload []byte) {
		var ev msgs.ErrorEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Printf("%s: bad error event: %v", topic, err)
			return
		}
		log.Printf("%s: code=%d %s", topic, ev.Code, ev.Message)
	}))
	q.Sub("+/"+mqtt.TopicStatus, mqtt.Handler(func(topic string, payload []byte) {
		log.Printf("%s: %s", topic, strings.TrimSpace(string(payload)))
	}))
	<-(chan struct{})(nil)
}
