// Command espresso-sim publishes simulated controller telemetry to MQTT and
// obeys setpoint commands, for running the dashboard without a machine.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/mqtt"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/sim"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
)

// commandQueueSize bounds commands waiting for the run loop. Commands
// arriving while it is full are dropped.
const commandQueueSize = 16

type command struct {
	name    string
	payload []byte
}

func main() {
	flagSet := pflag.NewFlagSet("espresso-sim", pflag.ContinueOnError)
	broker := flagSet.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	clientID := flagSet.String("client-id", "espresso-sim", "MQTT client ID")
	prefix := flagSet.String("prefix", mqtt.DefaultPrefix, "MQTT topic prefix")
	interval := flagSet.Duration("interval", time.Second, "telemetry interval")
	historySize := flagSet.Int("history", telemetry.DefaultCapacity, "samples kept for backfill")
	flagSet.SetOutput(os.Stderr)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if *interval <= 0 {
		fmt.Fprintln(os.Stderr, "error: --interval must be positive")
		os.Exit(2)
	}

	opts := mqtt.Options{Broker: *broker, ClientID: *clientID, Topics: mqtt.NewTopics(*prefix)}
	if err := run(opts, *interval, *historySize); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts mqtt.Options, interval time.Duration, historySize int) error {
	commands := make(chan command, commandQueueSize)
	publisher, err := mqtt.NewRealPublisher(opts, func(name string, payload []byte) {
		// Runs on the MQTT client's goroutine; never block it.
		select {
		case commands <- command{name: name, payload: payload}:
		default:
			log.Printf("command queue full, dropping %s", name)
		}
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	ctrl := sim.NewController(sim.DefaultConfig, historySize)
	if err := publisher.PublishConfig(ctrl.Config()); err != nil {
		log.Printf("failed to publish initial config: %v", err)
	}

	log.Printf("started: broker=%s prefix=%s interval=%v", opts.Broker, opts.Topics.Prefix, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, publisher, time.Now, ticker.C, commands, sigCh)
}

func runLoop(ctrl *sim.Controller, publisher mqtt.Publisher, now func() time.Time, tick <-chan time.Time, commands <-chan command, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			return nil

		case <-tick:
			s := ctrl.Step(now())
			if err := publisher.PublishTelemetry(s); err != nil {
				log.Printf("publish error: %v", err)
			}

		case cmd := <-commands:
			handleCommand(ctrl, publisher, cmd)
		}
	}
}

func handleCommand(ctrl *sim.Controller, publisher mqtt.Publisher, cmd command) {
	if cmd.name == mqtt.CommandRequestHistory {
		hist := ctrl.History()
		log.Printf("command: %s, sending %d samples", cmd.name, len(hist))
		if err := publisher.PublishHistory(hist); err != nil {
			log.Printf("history publish error: %v", err)
		}
		return
	}

	value, err := mqtt.ParseCommand(cmd.payload)
	if err != nil {
		log.Printf("command %s: %v", cmd.name, err)
		return
	}
	accepted, err := ctrl.ApplyCommand(cmd.name, value)
	if err != nil {
		log.Printf("command %s: %v", cmd.name, err)
		return
	}
	log.Printf("command: %s=%v accepted=%v", cmd.name, value, accepted)

	// Always echo the config so a refused value shows up as a reset.
	if err := publisher.PublishConfig(ctrl.Config()); err != nil {
		log.Printf("config publish error: %v", err)
	}
}
