package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/reconcile"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned by Send when the broker connection is down.
// The command is dropped, not queued.
var ErrNotConnected = errors.New("not connected to broker")

// Options configures a broker connection.
type Options struct {
	Broker   string
	ClientID string
	Topics   Topics
}

func (o Options) clientOptions() *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(3 * time.Second).
		SetOrderMatters(true).
		SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
			log.Printf("mqtt: reconnecting to %s", o.Broker)
		})
}

// RealClient is the dashboard's connection to an actual MQTT broker.
// Decoded messages and connection changes are delivered to the events
// channel in arrival order.
type RealClient struct {
	client paho.Client
	topics Topics
	events chan<- reconcile.Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewRealClient starts connecting to the broker and returns immediately.
// Connection attempts are retried in the background; the events channel
// sees Connected once the broker is reachable.
func NewRealClient(opts Options, events chan<- reconcile.Event) *RealClient {
	c := &RealClient{
		topics: opts.Topics,
		events: events,
		done:   make(chan struct{}),
	}

	po := opts.clientOptions().
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	c.client = paho.NewClient(po)

	token := c.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			log.Printf("mqtt: connect to %s: %v", opts.Broker, err)
		}
	}()
	return c
}

func (c *RealClient) onConnect(client paho.Client) {
	log.Printf("mqtt: connected")
	c.emit(reconcile.Connected())

	filters := map[string]byte{
		c.topics.Telemetry(): 0,
		c.topics.History():   1,
		c.topics.Config():    1,
	}
	token := client.SubscribeMultiple(filters, c.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: subscribe timeout")
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe: %v", err)
	}

	// Ask for backfill covering whatever we missed while disconnected.
	client.Publish(c.topics.Command(CommandRequestHistory), 0, false, []byte{})
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	c.emit(reconcile.Disconnected())
}

func (c *RealClient) onMessage(_ paho.Client, msg paho.Message) {
	ev, errs, err := Route(c.topics, msg.Topic(), msg.Payload())
	if err != nil {
		log.Printf("mqtt: dropping message on %s: %v", msg.Topic(), err)
		return
	}
	for _, e := range errs {
		log.Printf("mqtt: history %v", e)
	}
	c.emit(ev)
}

func (c *RealClient) emit(ev reconcile.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Send publishes a setpoint command. QoS 0 (at-most-once), not retained, and
// the delivery outcome is only logged: the controller's answer is a later
// config snapshot. The publish is attempted even while the connection is
// down; paho refuses it and the command is dropped, not queued.
func (c *RealClient) Send(param telemetry.Param, value float64) error {
	topic := c.topics.Command(param.Command())
	token := c.client.Publish(topic, 0, false, FormatCommand(value))
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			if errors.Is(err, paho.ErrNotConnected) {
				err = ErrNotConnected
			}
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	default:
		go func() {
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				log.Printf("mqtt: publish %s: %v", topic, token.Error())
			}
		}()
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker and stops delivering events.
func (c *RealClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.client.Disconnect(1000) // 1 second timeout
	})
	return nil
}

// RealPublisher is the controller side of the transport, connected to an
// actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topics Topics
}

// CommandHandler receives a command name and its raw payload.
type CommandHandler func(name string, payload []byte)

// NewRealPublisher connects to the broker and subscribes to command topics.
func NewRealPublisher(opts Options, onCommand CommandHandler) (*RealPublisher, error) {
	p := &RealPublisher{topics: opts.Topics}

	po := opts.clientOptions().
		SetOnConnectHandler(func(client paho.Client) {
			log.Printf("mqtt: connected, subscribing to %s", p.topics.Commands())
			client.Subscribe(p.topics.Commands(), 1, func(_ paho.Client, msg paho.Message) {
				name, ok := p.topics.CommandName(msg.Topic())
				if !ok {
					log.Printf("mqtt: ignoring command topic %s", msg.Topic())
					return
				}
				onCommand(name, msg.Payload())
			})
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	p.client = paho.NewClient(po)

	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// PublishTelemetry sends a sample. QoS 0: a lost sample is replaced by the
// next one a second later.
func (p *RealPublisher) PublishTelemetry(s telemetry.Sample) error {
	payload, err := FormatTelemetry(s)
	if err != nil {
		return fmt.Errorf("format telemetry: %w", err)
	}
	return p.publish(p.topics.Telemetry(), 0, false, payload)
}

// PublishHistory sends a backfill batch.
func (p *RealPublisher) PublishHistory(samples []telemetry.Sample) error {
	payload, err := FormatHistory(samples)
	if err != nil {
		return fmt.Errorf("format history: %w", err)
	}
	return p.publish(p.topics.History(), 1, false, payload)
}

// PublishConfig sends a config snapshot, retained so new subscribers get
// the current config immediately.
func (p *RealPublisher) PublishConfig(cfg telemetry.ControllerConfig) error {
	payload, err := FormatConfig(cfg)
	if err != nil {
		return fmt.Errorf("format config: %w", err)
	}
	return p.publish(p.topics.Config(), 1, true, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
