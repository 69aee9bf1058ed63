package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/antenna"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/config"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/port"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/publish"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/replay"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/udp"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/web"
)

func main() {
	var configPath string
	var configureAntenna bool
	flag.StringVar(&configPath, "config", "./gnss.yaml", "Path to YAML config")
	flag.BoolVar(&configureAntenna, "configure-antenna", false, "Run the antenna configuration workflow before logging")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, cfg, logs, configureAntenna); err != nil {
		cancel()
		log.Fatalf("%v", err)
	}
}

// run owns the receiver from open to close. Every return path releases the
// bus before main exits.
func run(ctx context.Context, cancel context.CancelFunc, cfg config.Config, logs *web.LogBuffer, configureAntenna bool) error {
	var recs teeRecorder
	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("capture create failed: %w", err)
		}
		defer w.Close()
		recs = append(recs, w)
		log.Printf("gnss-logger: recording to %s", cfg.Record.Path)
	}
	if cfg.Forward.Enable {
		fw, err := udp.NewForwarder(cfg.Forward.Dest)
		if err != nil {
			return fmt.Errorf("nmea forwarder init failed: %w", err)
		}
		defer fw.Close()
		recs = append(recs, fw)
		log.Printf("gnss-logger: forwarding nmea to %s", cfg.Forward.Dest)
	}
	var rec gnss.Recorder
	if len(recs) > 0 {
		rec = recs
	}

	p, err := port.Open(cfg)
	if err != nil {
		return fmt.Errorf("receiver open failed: %w", err)
	}
	rx := p.Receiver(cfg, rec)
	defer rx.Close()

	status := web.NewStatus(cfg.Diagnostics.Top)
	status.SetSource(rx)
	status.SetInfo(web.ReceiverInfo{
		Driver:  p.Driver,
		Bus:     p.Bus,
		Address: p.AddressString(),
		Mode:    p.Mode,
	})
	bc := web.NewBroadcaster()

	var pub *publish.Publisher
	if cfg.MQTT.Enable {
		c, err := publish.Dial(publish.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			QoS:      cfg.MQTT.QoS,
			Retain:   cfg.MQTT.Retain,
		})
		if err != nil {
			return fmt.Errorf("mqtt connect failed: %w", err)
		}
		pub = publish.NewPublisher(c, cfg.MQTT.TopicPrefix)
		defer pub.Close()
	}

	if cfg.Web.Enable {
		go func() {
			err := web.Serve(ctx, cfg.Web.Listen, web.Handler(status, logs, bc))
			if err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
				cancel()
			}
		}()
		log.Printf("gnss-logger: web listen=%s", cfg.Web.Listen)
	}

	log.Printf("gnss-logger starting mode=%s poll_interval=%s", p.Mode, cfg.Receiver.PollInterval)

	if configureAntenna {
		rep, err := antenna.New(rx, port.AntennaOptions(cfg)).Run(ctx)
		if err != nil {
			return fmt.Errorf("antenna workflow failed: %w", err)
		}
		for _, line := range rep.Lines() {
			log.Printf("antenna: %s", line)
		}
		status.SetReport(rep)
		if pub != nil {
			if err := pub.PublishReport(rep); err != nil {
				log.Printf("gnss-logger: publish report: %v", err)
			}
		}
	}

	sink := newSnapshotSink(status, bc, pub)
	published := make(chan struct{})
	go func() {
		defer close(published)
		sink.run(ctx)
	}()

	rx.Run(ctx, cfg.Receiver.PollInterval, func() {
		sink.handle(rx.Snapshot(cfg.Diagnostics.Top), time.Now().UTC())
		if p.Replay != nil && p.Replay.Done() {
			log.Printf("gnss-logger: replay finished")
			cancel()
		}
	})
	cancel()
	<-published

	log.Printf("gnss-logger stopping")
	return nil
}
