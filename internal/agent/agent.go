// Package agent drives a single sensor's lifecycle: connect to the
// broker, await sector assignment, then run the autonomous
// measure-decide-publish loop until shut down, dispatching inbound
// control, feedback, and neighbor-belief messages as they arrive.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/weathermesh/sentinel/internal/brain"
	"github.com/weathermesh/sentinel/internal/bus"
	"github.com/weathermesh/sentinel/internal/config"
	"github.com/weathermesh/sentinel/internal/metrics"
	"github.com/weathermesh/sentinel/internal/sampler"
	"github.com/weathermesh/sentinel/internal/topics"
	"github.com/weathermesh/sentinel/internal/wire"
)

const (
	assignmentTimeout = 30 * time.Second
	disconnectWaitMs  = 250
)

// Agent coordinates one sensor's brain, broker session, and sampler
// through its full admission-to-shutdown lifecycle.
type Agent struct {
	id         string
	sensorType string
	sectorHint string

	mu     sync.Mutex
	state  State
	sector string

	brain   *brain.Brain
	session *bus.Session
	sample  sampler.Sampler
	metrics *metrics.AgentMetrics
	limiter *rate.Limiter
	log     zerolog.Logger

	baseInterval int

	assigned chan struct{}
	rejected chan wire.RejectionPayload
	shutdown chan wire.ShutdownControl
}

// Params bundles the dependencies New needs to assemble an Agent.
type Params struct {
	SensorID     string
	SensorType   string
	SectorHint   string
	Broker       string
	Port         int
	BaseInterval int
	Sample       sampler.Sampler
	Metrics      *metrics.AgentMetrics
	Log          zerolog.Logger
}

// New builds an Agent and its broker session. The session's
// last-will announces this sensor offline under the "pending" sector;
// the will is fixed here and is not updated when a sector is assigned.
func New(p Params) *Agent {
	a := &Agent{
		id:           p.SensorID,
		sensorType:   p.SensorType,
		sectorHint:   p.SectorHint,
		sector:       wire.PendingSector,
		brain:        brain.New(p.SensorID, p.BaseInterval),
		sample:       p.Sample,
		metrics:      p.Metrics,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		log:          p.Log,
		baseInterval: p.BaseInterval,
		assigned:     make(chan struct{}),
		rejected:     make(chan wire.RejectionPayload, 1),
		shutdown:     make(chan wire.ShutdownControl, 1),
	}

	lwt, _ := json.Marshal(wire.PresencePayload{
		SensorID:   p.SensorID,
		Status:     wire.StatusOffline,
		SensorType: p.SensorType,
		Sector:     wire.PendingSector,
		Timestamp:  time.Now().Unix(),
		Reason:     "connection_lost",
	})

	a.session = bus.New(bus.Options{
		Broker:     p.Broker,
		Port:       p.Port,
		ClientID:   p.SensorID,
		LWTTopic:   topics.Status(wire.PendingSector, p.SensorType, p.SensorID),
		LWTPayload: lwt,
	}, config.NewBusLogger(p.SensorID))

	return a
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// HealthStatus snapshots the agent for the health endpoints. The agent
// is ready only while assigned, connected, and its publish circuit
// breaker is not open.
func (a *Agent) HealthStatus() metrics.AgentStatus {
	a.mu.Lock()
	state := a.state
	sector := a.sector
	a.mu.Unlock()

	connected := a.session.IsConnected()
	breaker := a.session.BreakerState()
	return metrics.AgentStatus{
		SensorID:        a.id,
		State:           state.String(),
		Sector:          sector,
		BrokerConnected: connected,
		PublishBreaker:  breaker.String(),
		Ready:           state == StateConnectedAssigned && connected && breaker != gobreaker.StateOpen,
	}
}

// Connect dials the broker, subscribes to the admission topics, and
// announces presence. Admission subscriptions are registered before
// the presence announcement so a fast rejection cannot be missed.
func (a *Agent) Connect(ctx context.Context) error {
	if err := a.session.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	}

	if err := a.session.Subscribe(topics.Reject(a.id), 2, a.onMessage); err != nil {
		return fmt.Errorf("agent: subscribing to rejection topic: %w", err)
	}
	if err := a.session.Subscribe(topics.Assign(a.id), 2, a.onMessage); err != nil {
		return fmt.Errorf("agent: subscribing to assignment topic: %w", err)
	}

	presence, _ := json.Marshal(wire.PresencePayload{
		SensorID:   a.id,
		Status:     wire.StatusOnline,
		SensorType: a.sensorType,
		Sector:     wire.PendingSector,
		Timestamp:  time.Now().Unix(),
	})
	if err := a.session.Publish(topics.Status(wire.PendingSector, a.sensorType, a.id), 1, true, presence); err != nil {
		a.log.Warn().Err(err).Msg("failed to publish online presence")
	}

	a.mu.Lock()
	a.state = StateConnectedUnassigned
	a.mu.Unlock()
	a.metrics.AgentStatus.Set(0)

	a.log.Info().Str("sector_hint", a.sectorHint).Msg("connected, awaiting sector assignment")
	return nil
}

// onMessage classifies an inbound publish by topic and routes it to
// the matching handler, in the tie-break order reject, assign,
// belief, feedback, control.
func (a *Agent) onMessage(_ mqtt.Client, msg mqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().
				Interface("panic", r).
				Str("topic", msg.Topic()).
				Bytes("stack", debug.Stack()).
				Msg("dispatcher recovered from panic")
		}
	}()

	parsed := topics.Parse(msg.Topic())
	switch parsed.Kind {
	case topics.KindReject:
		a.handleRejection(msg.Payload())
	case topics.KindAssign:
		a.handleAssignment(msg.Payload())
	case topics.KindBelief:
		a.handleBelief(msg.Payload())
	case topics.KindFeedback:
		a.handleFeedback(msg.Payload())
	case topics.KindControlSingle, topics.KindControlGroup:
		a.handleControl(msg.Payload())
	default:
		a.log.Debug().Str("topic", msg.Topic()).Msg("unhandled message")
	}
}

func (a *Agent) handleRejection(payload []byte) {
	var rej wire.RejectionPayload
	if err := json.Unmarshal(payload, &rej); err != nil {
		a.log.Error().Err(err).Msg("malformed rejection payload")
		return
	}
	a.mu.Lock()
	a.state = StateRejected
	a.mu.Unlock()
	a.log.Error().Str("reason", rej.Reason).Int("retry_after", rej.RetryAfter).Msg("connection rejected by monitor")
	select {
	case a.rejected <- rej:
	default:
	}
}

func (a *Agent) handleAssignment(payload []byte) {
	var assign wire.AssignmentPayload
	if err := json.Unmarshal(payload, &assign); err != nil {
		a.log.Error().Err(err).Msg("malformed assignment payload")
		return
	}
	if assign.Sector == "" {
		a.log.Error().Msg("received empty sector assignment")
		return
	}

	a.mu.Lock()
	alreadyAssigned := a.state == StateConnectedAssigned
	a.sector = assign.Sector
	a.state = StateConnectedAssigned
	a.mu.Unlock()

	if alreadyAssigned {
		return
	}

	// Subscribing waits on broker acknowledgements, so it runs off the
	// message callback goroutine.
	go func(sector string) {
		if err := a.session.Subscribe(topics.ControlSingle(sector, a.sensorType, a.id), 1, a.onMessage); err != nil {
			a.log.Error().Err(err).Msg("failed to subscribe to control topic")
		}
		if err := a.session.Subscribe(topics.ControlGroup(sector, a.sensorType), 1, a.onMessage); err != nil {
			a.log.Error().Err(err).Msg("failed to subscribe to group control topic")
		}
		if err := a.session.Subscribe(topics.BeliefWildcard(sector, a.sensorType), 1, a.onMessage); err != nil {
			a.log.Error().Err(err).Msg("failed to subscribe to neighbor beliefs")
		}
		if err := a.session.Subscribe(topics.Feedback(sector, a.sensorType, a.id), 1, a.onMessage); err != nil {
			a.log.Error().Err(err).Msg("failed to subscribe to feedback topic")
		}
	}(assign.Sector)

	a.log.Info().Str("sector", assign.Sector).Msg("sector assigned by monitor")
	a.metrics.AgentStatus.Set(1)
	close(a.assigned)
}

func (a *Agent) handleBelief(payload []byte) {
	var belief wire.BeliefPayload
	if err := json.Unmarshal(payload, &belief); err != nil {
		a.log.Error().Err(err).Msg("malformed belief payload")
		return
	}
	if belief.SensorID == a.id {
		return
	}
	a.mu.Lock()
	a.brain.UpdateNeighborBelief(belief.SensorID, belief.LocalRisk)
	count := a.brain.ActiveNeighborsCount()
	a.mu.Unlock()
	a.metrics.NeighborCount.Set(float64(count))
	a.log.Debug().Str("neighbor", belief.SensorID).Float64("risk", belief.LocalRisk).Msg("received neighbor belief")
}

func (a *Agent) handleFeedback(payload []byte) {
	var fb wire.FeedbackPayload
	if err := json.Unmarshal(payload, &fb); err != nil {
		a.log.Error().Err(err).Msg("malformed feedback payload")
		return
	}
	a.mu.Lock()
	a.brain.ProcessFeedback(fb.Type)
	sensitivity := a.brain.Sensitivity()
	a.mu.Unlock()
	a.metrics.Sensitivity.Set(sensitivity)
	a.log.Info().Str("type", fb.Type).Float64("sensitivity", sensitivity).Msg("processed feedback")
}

func (a *Agent) handleControl(payload []byte) {
	var ctrl wire.ControlPayload
	if err := json.Unmarshal(payload, &ctrl); err != nil {
		a.log.Error().Err(err).Msg("malformed control payload")
		return
	}

	switch ctrl.Command {
	case wire.ControlAdjustInterval:
		var adjust wire.AdjustIntervalControl
		if err := json.Unmarshal(payload, &adjust); err != nil {
			a.log.Error().Err(err).Msg("malformed adjust_interval payload")
			return
		}
		a.mu.Lock()
		a.baseInterval = adjust.Interval
		a.mu.Unlock()
		a.log.Info().Int("interval", adjust.Interval).Msg("interval adjusted by control command")

	case wire.ControlResetLearning:
		a.mu.Lock()
		a.brain.ResetLearning()
		a.mu.Unlock()
		a.log.Info().Msg("learning parameters reset by control command")

	case wire.ControlShutdown:
		var sd wire.ShutdownControl
		if err := json.Unmarshal(payload, &sd); err != nil {
			sd.Reason = "monitor shutdown"
		}
		a.log.Warn().Str("reason", sd.Reason).Msg("shutdown command received")
		select {
		case a.shutdown <- sd:
		default:
		}
	}
}

// Run waits for sector assignment (or a rejection, or timeout) and
// then executes the adaptive publish loop until ctx is cancelled, a
// SHUTDOWN command arrives, or the monitor rejects this agent.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.awaitAssignment(ctx); err != nil {
		a.disconnect()
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.publishLoop(gCtx)
	})

	err := g.Wait()
	a.disconnect()
	return err
}

func (a *Agent) awaitAssignment(ctx context.Context) error {
	timeout := time.NewTimer(assignmentTimeout)
	defer timeout.Stop()

	select {
	case <-a.assigned:
		return nil
	case rej := <-a.rejected:
		return fmt.Errorf("%w: %s", ErrRejected, rej.Reason)
	case <-timeout.C:
		return ErrAssignmentTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) publishLoop(ctx context.Context) error {
	for {
		start := time.Now()
		a.publishTick()
		a.metrics.StepsTotal.Inc()
		a.metrics.StepDuration.Observe(time.Since(start).Seconds())

		a.mu.Lock()
		interval := a.brain.AdaptiveInterval(a.baseInterval)
		neighbors := a.brain.ActiveNeighborsCount()
		a.mu.Unlock()
		if interval != a.baseInterval {
			a.log.Info().Int("interval", interval).Int("neighbors", neighbors).Msg("adaptive interval")
		}

		select {
		case <-time.After(time.Duration(interval) * time.Second):
		case rej := <-a.rejected:
			return fmt.Errorf("%w: %s", ErrRejected, rej.Reason)
		case <-a.shutdown:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// publishTick runs one measure-decide-publish cycle. The decision
// triad (compute local risk, snapshot belief, decide whether to
// alert) is computed under the brain mutex so a neighbor belief
// arriving mid-cycle cannot split the triad across two different
// neighbor-table states; the network publishes themselves happen
// after the lock is released.
func (a *Agent) publishTick() {
	if !a.session.IsConnected() {
		a.log.Warn().Msg("not connected, skipping publish")
		return
	}

	m := a.sample.Sample()

	a.mu.Lock()
	sector := a.sector
	a.brain.AddMeasurement(m.TemperatureC, m.PressureHPa, m.HumidityPct)
	risk := a.brain.ComputeLocalRisk()
	summary := a.brain.BeliefSummary()
	shouldAlert := a.brain.ShouldAlert()
	a.mu.Unlock()

	a.metrics.LocalRisk.Set(risk)

	reservation := a.limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		time.Sleep(delay)
	}

	data := wire.DataPayload{
		SensorID:     a.id,
		Timestamp:    time.Now().Unix(),
		TemperatureC: m.TemperatureC,
		PressureHPa:  m.PressureHPa,
		HumidityPct:  m.HumidityPct,
	}
	a.publishJSON(topics.Data(sector, a.sensorType, a.id), data)
	a.log.Info().Float64("temp_c", m.TemperatureC).Float64("pressure_hpa", m.PressureHPa).Float64("humidity_pct", m.HumidityPct).Msg("published data")

	belief := wire.BeliefPayload{
		SensorID:         summary.SensorID,
		Timestamp:        time.Now().Unix(),
		LocalRisk:        summary.LocalRisk,
		RiskLevel:        summary.RiskLevel,
		NeighborCount:    summary.NeighborCount,
		NeighborAvgRisk:  summary.NeighborAvgRisk,
		Sensitivity:      summary.Sensitivity,
		FalseAlarmCount:  summary.FalseAlarmCount,
		MissedEventCount: summary.MissedEventCount,
		WouldAlert:       summary.WouldAlert,
	}
	a.publishJSON(topics.Belief(sector, a.sensorType, a.id), belief)
	a.log.Info().Float64("risk", risk).Str("level", belief.RiskLevel).Msg("published belief")

	if shouldAlert {
		alert := wire.AlertPayload{
			SensorID:  a.id,
			Timestamp: time.Now().Unix(),
			AlertType: "weather_risk",
			RiskLevel: risk,
			Message:   fmt.Sprintf("high risk detected (local:%.2f, neighbors agree)", risk),
			Measurements: wire.Measurements{
				TemperatureC: m.TemperatureC,
				PressureHPa:  m.PressureHPa,
				HumidityPct:  m.HumidityPct,
			},
		}
		a.publishJSON(topics.Alert(sector, a.sensorType, a.id), alert)
		a.metrics.AlertsTotal.Inc()
		a.log.Warn().Float64("risk", risk).Msg("alert generated")
	}

	a.metrics.CircuitBreakerSt.Set(float64(a.session.BreakerState()))
}

func (a *Agent) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		a.log.Error().Err(err).Str("topic", topic).Msg("failed to marshal payload")
		return
	}
	if err := a.session.Publish(topic, 1, false, payload); err != nil {
		a.metrics.PublishErrors.Inc()
		a.log.Error().Err(err).Str("topic", topic).Msg("publish failed")
		return
	}
	a.metrics.PublishesTotal.Inc()
}

// disconnect publishes a final offline presence and closes the
// session. Idempotent: a second call after termination is a no-op.
func (a *Agent) disconnect() {
	a.mu.Lock()
	if a.state == StateTerminated {
		a.mu.Unlock()
		return
	}
	a.state = StateShuttingDown
	sector := a.sector
	a.mu.Unlock()

	a.log.Info().Msg("disconnecting")

	offline, _ := json.Marshal(wire.PresencePayload{
		SensorID:   a.id,
		Status:     wire.StatusOffline,
		SensorType: a.sensorType,
		Sector:     sector,
		Timestamp:  time.Now().Unix(),
	})
	if err := a.session.Publish(topics.Status(sector, a.sensorType, a.id), 1, false, offline); err != nil {
		a.log.Warn().Err(err).Msg("failed to publish offline presence")
	}

	a.session.Disconnect(disconnectWaitMs)
	a.metrics.AgentStatus.Set(0)

	a.mu.Lock()
	a.state = StateTerminated
	a.mu.Unlock()
}
