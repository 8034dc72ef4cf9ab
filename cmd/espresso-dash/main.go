// Command espresso-dash subscribes to an espresso machine controller over
// MQTT and serves a live dashboard with setpoint editing over HTTP and,
// optionally, in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/config"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/editor"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/metrics"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/mqtt"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/reconcile"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/status"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/tui"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/web"
)

const (
	eventQueueSize = 256
	summaryEvery   = time.Minute
)

func main() {
	cfg, logFile, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg, logFile); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// parseFlags loads the optional config file and applies explicitly set
// flags on top of it.
func parseFlags(args []string) (*config.Config, string, error) {
	flagSet := pflag.NewFlagSet("espresso-dash", pflag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", "", "path to YAML config file")
	broker := flagSet.String("broker", "", "MQTT broker URL")
	clientID := flagSet.String("client-id", "", "MQTT client ID")
	prefix := flagSet.String("prefix", "", "MQTT topic prefix")
	httpAddr := flagSet.String("http", "", `HTTP listen address ("off" disables)`)
	capacity := flagSet.Int("capacity", 0, "telemetry samples kept in memory")
	horizon := flagSet.Int("horizon", 0, "chart window in seconds")
	tick := flagSet.Duration("tick", 0, "dashboard refresh interval")
	useTUI := flagSet.Bool("tui", false, "show the terminal dashboard")
	logFile := flagSet.String("log-file", "espresso-dash.log", "log destination while the terminal dashboard is open")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetOutput(os.Stderr)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
		}
		return nil, "", err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil, "", pflag.ErrHelp
	}
	if flagSet.NArg() > 0 {
		return nil, "", fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if flagSet.Changed("broker") {
		cfg.Broker = *broker
	}
	if flagSet.Changed("client-id") {
		cfg.ClientID = *clientID
	}
	if flagSet.Changed("prefix") {
		cfg.TopicPrefix = *prefix
	}
	if flagSet.Changed("http") {
		cfg.HTTPAddr = *httpAddr
	}
	if flagSet.Changed("capacity") {
		cfg.Capacity = *capacity
	}
	if flagSet.Changed("horizon") {
		cfg.HorizonSeconds = *horizon
	}
	if flagSet.Changed("tick") {
		cfg.Tick = *tick
	}
	if flagSet.Changed("tui") {
		cfg.TUI = *useTUI
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, *logFile, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `espresso-dash: live dashboard for an MQTT-connected espresso machine.

Settings come from the optional --config YAML file; flags that are set
explicitly override it.

Usage:
  espresso-dash [flags]

Examples:
  espresso-dash --broker tcp://kahvipi.local:1883
  espresso-dash --config /etc/espresso/dash.yaml --tui

Flags:
`)
	flagSet.PrintDefaults()
}

func run(cfg *config.Config, logFile string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	events := make(chan reconcile.Event, eventQueueSize)
	client := mqtt.NewRealClient(mqtt.Options{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Topics:   mqtt.NewTopics(cfg.TopicPrefix),
	}, events)
	defer client.Close()

	rec := reconcile.New(cfg.Capacity, client, reconcile.WithObserver(m))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx, events)

	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:         cfg.Broker,
		TopicPrefix:    cfg.TopicPrefix,
		HTTPAddr:       cfg.HTTPAddr,
		Capacity:       cfg.Capacity,
		HorizonSeconds: cfg.HorizonSeconds,
	}, rec, editor.New())

	if cfg.TUI {
		f, err := tea.LogToFile(logFile, "")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
	}

	if cfg.HTTPAddr != "" && cfg.HTTPAddr != "off" {
		srv := web.New(cfg.HTTPAddr, tracker, reg, cfg.Tick)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http dashboard listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: broker=%s prefix=%s capacity=%d horizon=%ds", cfg.Broker, cfg.TopicPrefix, cfg.Capacity, cfg.HorizonSeconds)

	if cfg.TUI {
		program := tea.NewProgram(tui.New(tracker, cfg.Tick), tea.WithAltScreen())
		_, err := program.Run()
		return err
	}

	ticker := time.NewTicker(summaryEvery)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(tracker, ticker.C, sigCh)
}

// runLoop logs a periodic summary until a signal arrives.
func runLoop(tracker *status.Tracker, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			return nil
		case <-tick:
			log.Print(summary(tracker.Snapshot()))
		}
	}
}

func summary(snap status.Snapshot) string {
	line := fmt.Sprintf("status: connected=%v samples=%d/%d", snap.Connected, snap.Buffered, snap.Config.Capacity)
	if snap.HasLatest {
		line += fmt.Sprintf(" temp=%.1f set=%.1f duty=%.0f%%", snap.Latest.Temperature, snap.Latest.Setpoint, snap.Latest.DutyCycle*100)
	}
	if snap.HasConfig {
		line += fmt.Sprintf(" brew=%.0f steam=%.0f shot_limit=%.0f",
			snap.Controller.BrewSetpoint, snap.Controller.SteamSetpoint, snap.Controller.ShotTimeLimit)
	}
	return line
}
