// Package bus wraps an MQTT session with the publish resilience and
// lifecycle conventions the rest of the agent depends on: a
// last-will-backed presence contract, a circuit breaker around
// publish to absorb transient broker hiccups, and a timeout-bounded
// connect sequence.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Sentinel errors surfaced by Session.
var (
	ErrConnectTimeout  = errors.New("bus: timed out waiting for broker connection")
	ErrCircuitOpen     = gobreaker.ErrOpenState
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

const (
	connectTimeout = 5 * time.Second

	cbMinRequests     = 4
	cbFailureRatio    = 0.6
	cbOpenTimeout     = 15 * time.Second
	cbHalfOpenMaxReqs = 2
	cbCountInterval   = 10 * time.Second
)

// Session owns one MQTT client connection for a single sensor agent.
type Session struct {
	client  mqtt.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger

	connected chan struct{}
}

// Options configures a new Session.
type Options struct {
	Broker     string
	Port       int
	ClientID   string
	LWTTopic   string
	LWTPayload []byte
}

// New constructs a Session and its underlying MQTT client, registering
// the last-will-and-testament before any connection attempt is made so
// an ungraceful disconnect is always observable by peers. log should
// already be scoped to this session's owner.
func New(opts Options, log zerolog.Logger) *Session {
	s := &Session{
		log:       log,
		connected: make(chan struct{}, 1),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port)).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetKeepAlive(60 * time.Second).
		SetWill(opts.LWTTopic, string(opts.LWTPayload), 1, true)

	clientOpts.OnConnect = func(mqtt.Client) {
		select {
		case s.connected <- struct{}{}:
		default:
		}
	}
	clientOpts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.log.Warn().Err(err).Msg("broker connection lost")
	}

	s.client = mqtt.NewClient(clientOpts)
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bus_publish_" + opts.ClientID,
		MaxRequests: cbHalfOpenMaxReqs,
		Interval:    cbCountInterval,
		Timeout:     cbOpenTimeout,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("publish circuit breaker state change")
		},
	})

	return s
}

// Connect dials the broker and blocks until the connection callback
// fires or connectTimeout elapses.
func (s *Session) Connect(ctx context.Context) error {
	token := s.client.Connect()
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	select {
	case <-s.connected:
		return nil
	case <-ctx.Done():
		return ErrConnectTimeout
	case <-waitToken(token):
		if err := token.Error(); err != nil {
			return fmt.Errorf("bus: connect: %w", err)
		}
		select {
		case <-s.connected:
			return nil
		case <-ctx.Done():
			return ErrConnectTimeout
		}
	}
}

func waitToken(token mqtt.Token) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	return done
}

// IsConnected reports the underlying client's live connection state.
func (s *Session) IsConnected() bool {
	return s.client.IsConnected()
}

// Subscribe registers a handler for topic at the given QoS.
func (s *Session) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	token := s.client.Subscribe(topic, qos, handler)
	token.Wait()
	return token.Error()
}

// Publish sends payload to topic at the given QoS, routed through the
// circuit breaker so a broker outage degrades to fast failures instead
// of stalling the publish loop.
func (s *Session) Publish(topic string, qos byte, retain bool, payload []byte) error {
	_, err := s.breaker.Execute(func() (any, error) {
		token := s.client.Publish(topic, qos, retain, payload)
		token.Wait()
		return nil, token.Error()
	})
	return err
}

// BreakerState exposes the current circuit breaker state for metrics.
func (s *Session) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// readyToTrip decides whether the publish circuit breaker should open,
// extracted as a pure function so the threshold logic can be unit
// tested without a live broker.
func readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cbMinRequests {
		return false
	}
	ratio := float64(counts.TotalFailures) / float64(counts.Requests)
	return ratio >= cbFailureRatio
}

// Disconnect closes the connection, giving the broker waitMs
// milliseconds to flush in-flight packets first.
func (s *Session) Disconnect(waitMs uint) {
	s.client.Disconnect(waitMs)
}
