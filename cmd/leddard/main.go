package main

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/leddar.go/pkg/env"
	fx "github.com/robotalks/leddar.go/pkg/framework"
	"github.com/robotalks/leddar.go/pkg/leddar"
	"github.com/robotalks/leddar.go/pkg/msgs"
	"github.com/robotalks/leddar.go/pkg/sink/mqtt"
	"github.com/robotalks/leddar.go/pkg/sink/websocket"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.MustLoad()
	port, err := conf.OpenPort()
	if err != nil {
		glog.Exitf("open %s: %v", conf.Serial.Port, err)
	}
	glog.Infof("sensor %s on %s (%s)", conf.ID, conf.Serial.Port, conf.Serial.PortOptions)

	driver := conf.NewDriver(port)
	runner := fx.NewRunner().HandleSignals()
	runner.StopOnError = true

	var readingHandlers leddar.ReadingHandlers
	errorHandlers := leddar.ErrorHandlers{
		leddar.HandleErrorFunc(func(_ context.Context, err error) {
			glog.Warningf("frame error: %v", err)
		}),
	}
	if conf.Debug {
		readingHandlers = append(readingHandlers, leddar.DebugPrinter{})
	}
	if conf.MQTT.URL != "" {
		codec, err := msgs.CodecByName(conf.MQTT.Encoding)
		if err != nil {
			glog.Exit(err)
		}
		pub, err := mqtt.NewPublisher(conf.MQTT.URL, conf.ID, codec)
		if err != nil {
			glog.Exit(err)
		}
		readingHandlers = append(readingHandlers, pub)
		errorHandlers = append(errorHandlers, pub)
		runner.Go(pub)
	}
	if conf.Influx.URL != "" {
		w := conf.Influx.NewWriter(conf.ID)
		defer w.Close()
		readingHandlers = append(readingHandlers, w)
	}
	if conf.WebSocket.Listen != "" {
		b := websocket.NewBroadcaster(conf.ID)
		b.Latest = driver.Latest
		readingHandlers = append(readingHandlers, b)
		runner.Go(&websocket.Server{Addr: conf.WebSocket.Listen, Broadcaster: b})
	}
	driver.Handler = readingHandlers
	driver.ErrorHandler = errorHandlers

	runner.Go(fx.NamedRun("driver", fx.RunFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, port, func() error {
			return driver.Run(ctx)
		})
	})))
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
