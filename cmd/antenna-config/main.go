package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/antenna"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/config"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/port"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/publish"
)

func main() {
	var (
		configPath string
		candidates string
		persist    bool
		noPersist  bool
		asJSON     bool
		list       bool
	)
	flag.StringVar(&configPath, "config", "./gnss.yaml", "Path to YAML config")
	flag.StringVar(&candidates, "candidates", "", "Comma-separated CFG-ANT candidates, overriding antenna.candidates")
	flag.BoolVar(&persist, "persist", false, "Save the configuration to non-volatile memory")
	flag.BoolVar(&noPersist, "no-persist", false, "Do not save, even if antenna.persist is set")
	flag.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	flag.BoolVar(&list, "list", false, "List candidate presets and exit")
	flag.Parse()

	if list {
		printPresets()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	opts, err := workflowOptions(cfg, candidates, persist, noPersist)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := port.Open(cfg)
	if err != nil {
		log.Fatalf("receiver open failed: %v", err)
	}
	rx := p.Receiver(cfg, nil)

	rep, err := antenna.New(rx, opts).Run(ctx)
	_ = rx.Close()
	if err != nil {
		log.Fatalf("antenna workflow failed: %v", err)
	}

	if cfg.MQTT.Enable {
		c, err := publish.Dial(publish.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID + "-antenna",
			QoS:      cfg.MQTT.QoS,
			Retain:   cfg.MQTT.Retain,
		})
		if err != nil {
			log.Printf("antenna-config: mqtt: %v", err)
		} else {
			pub := publish.NewPublisher(c, cfg.MQTT.TopicPrefix)
			if err := pub.PublishReport(rep); err != nil {
				log.Printf("antenna-config: publish report: %v", err)
			}
			pub.Close()
		}
	}

	if asJSON {
		b, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			log.Fatalf("marshal report: %v", err)
		}
		fmt.Println(string(b))
	} else {
		for _, line := range rep.Lines() {
			fmt.Println(line)
		}
	}
	if !rep.OK() {
		os.Exit(1)
	}
}

// workflowOptions applies the command-line overrides on top of the config.
func workflowOptions(cfg config.Config, candidates string, persist, noPersist bool) (antenna.Options, error) {
	if persist && noPersist {
		return antenna.Options{}, fmt.Errorf("-persist and -no-persist are mutually exclusive")
	}
	opts := port.AntennaOptions(cfg)
	if s := strings.TrimSpace(candidates); s != "" {
		var names []string
		for _, n := range strings.Split(s, ",") {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			if _, ok := antenna.LookupPreset(n); !ok && n != antenna.ReadModify {
				return antenna.Options{}, fmt.Errorf("unknown candidate %q (see -list)", n)
			}
			names = append(names, n)
		}
		opts.Candidates = names
	}
	switch {
	case persist:
		opts.Persist = true
	case noPersist:
		opts.Persist = false
	}
	return opts, nil
}

func printPresets() {
	for _, name := range antenna.PresetNames() {
		if name == antenna.ReadModify {
			fmt.Printf("%-12s poll the current setting and enable supply control\n", name)
			continue
		}
		p, _ := antenna.LookupPreset(name)
		fmt.Printf("%-12s flags=0x%04X pins=0x%04X  %s\n", name, uint16(p.Config.Flags), p.Config.Pins, p.Description)
	}
}
