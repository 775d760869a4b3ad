// Package brain implements the per-agent autonomous decision engine:
// rolling measurement history, local risk scoring, neighbor-belief
// aggregation, consensus-gated alerting, adaptive publish pacing, and
// online sensitivity learning from monitor feedback.
//
// A Brain is not safe for concurrent use by itself; internal/agent
// serializes access to it with a single mutex so the
// compute-then-decide-then-publish triad observes a consistent
// (local_risk, neighbor_table) pair, per the concurrency model.
package brain

import (
	"math"
)

const (
	// HistorySize is the default rolling window capacity (N=10).
	HistorySize = 10

	// RiskThreshold is the local-risk floor below which no alert is
	// ever raised, regardless of neighbor consensus.
	RiskThreshold = 0.6

	// ConsensusThreshold is the minimum neighbor-average risk required
	// to corroborate an alert once the local threshold is crossed.
	ConsensusThreshold = 0.4

	// SensitivityMin and SensitivityMax bound the learned sensitivity
	// multiplier.
	SensitivityMin = 0.5
	SensitivityMax = 1.5

	sensitivityDefault = 1.0
	sensitivityStep    = 0.1
	sensitivityDecay   = 0.05

	pressureDropWeight = 0.4
	coldWetWeight      = 0.3
	extremesWeight     = 0.3

	pressureDropThreshold = 5.0
	coldWetTempMax        = 2.0
	coldWetHumidityMin    = 80.0
	extremeTempMin        = -10.0
	extremeTempMax        = 35.0
	extremePressureMin    = 970.0
)

// Brain holds one sensor's evidence, beliefs, and learning state.
type Brain struct {
	sensorID string

	temperature window
	pressure    window
	humidity    window

	localRisk        float64
	sensitivity      float64
	falseAlarmCount  int
	missedEventCount int
	neighborBeliefs  map[string]float64
	baseInterval     int
}

// New creates a Brain for sensorID with the default history size.
func New(sensorID string, baseInterval int) *Brain {
	return &Brain{
		sensorID:        sensorID,
		temperature:     newWindow(HistorySize),
		pressure:        newWindow(HistorySize),
		humidity:        newWindow(HistorySize),
		sensitivity:     sensitivityDefault,
		neighborBeliefs: make(map[string]float64),
		baseInterval:    baseInterval,
	}
}

// SensorID returns this brain's stable identity.
func (b *Brain) SensorID() string { return b.sensorID }

// LocalRisk returns the last computed risk without recomputing it.
func (b *Brain) LocalRisk() float64 { return b.localRisk }

// Sensitivity returns the current learning multiplier.
func (b *Brain) Sensitivity() float64 { return b.sensitivity }

// Counters returns the monotonically non-decreasing feedback counters.
func (b *Brain) Counters() (falseAlarms, missedEvents int) {
	return b.falseAlarmCount, b.missedEventCount
}

// AddMeasurement appends one sample to each rolling window, evicting
// the oldest entry per window once at capacity. The three windows
// always have equal length after this call returns.
func (b *Brain) AddMeasurement(tempC, pressureHPa, humidityPct float64) {
	b.temperature.push(tempC)
	b.pressure.push(pressureHPa)
	b.humidity.push(humidityPct)
}

// ComputeLocalRisk derives local_risk from the current windows and
// sensitivity. It returns 0 with fewer than 2 samples. Otherwise it
// sums three independently-weighted boolean factors, multiplies by
// sensitivity, and clamps to 1.0.
func (b *Brain) ComputeLocalRisk() float64 {
	if b.temperature.len() < 2 {
		b.localRisk = 0
		return 0
	}

	risk := 0.0
	if b.pressureDropped() {
		risk += pressureDropWeight
	}
	if b.coldAndWet() {
		risk += coldWetWeight
	}
	if b.atExtremes() {
		risk += extremesWeight
	}

	risk = math.Min(1.0, risk*b.sensitivity)
	b.localRisk = risk
	return risk
}

// pressureDropped is true iff at least 3 pressure samples exist and
// the pressure 3 samples ago minus the latest exceeds 5.0 hPa (strict).
func (b *Brain) pressureDropped() bool {
	if b.pressure.len() < 3 {
		return false
	}
	older, _ := b.pressure.last(3)
	latest, _ := b.pressure.last(1)
	return older-latest > pressureDropThreshold
}

// coldAndWet is true iff the latest temperature is below 2.0C and the
// latest humidity exceeds 80.0% (both strict).
func (b *Brain) coldAndWet() bool {
	temp, ok := b.temperature.last(1)
	if !ok {
		return false
	}
	hum, ok := b.humidity.last(1)
	if !ok {
		return false
	}
	return temp < coldWetTempMax && hum > coldWetHumidityMin
}

// atExtremes is true iff the latest temperature or pressure falls
// outside the safe operating band.
func (b *Brain) atExtremes() bool {
	temp, ok := b.temperature.last(1)
	if !ok {
		return false
	}
	pressure, ok := b.pressure.last(1)
	if !ok {
		return false
	}
	return temp < extremeTempMin || temp > extremeTempMax || pressure < extremePressureMin
}

// UpdateNeighborBelief upserts a neighbor's reported risk. A belief
// from this brain's own id is silently ignored — own id must never
// appear in the neighbor table.
func (b *Brain) UpdateNeighborBelief(neighborID string, risk float64) {
	if neighborID == b.sensorID {
		return
	}
	b.neighborBeliefs[neighborID] = risk
}

// ActiveNeighborsCount is the size of the neighbor-belief table.
func (b *Brain) ActiveNeighborsCount() int {
	return len(b.neighborBeliefs)
}

// NeighborsAvg returns the arithmetic mean of the neighbor table, or
// ok=false if the table is empty.
func (b *Brain) NeighborsAvg() (avg float64, ok bool) {
	if len(b.neighborBeliefs) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, r := range b.neighborBeliefs {
		sum += r
	}
	return sum / float64(len(b.neighborBeliefs)), true
}

// ShouldAlert applies the consensus decision rule: local_risk must
// clear the threshold, and then either there are no neighbors to
// disagree (alert alone) or the neighbor average corroborates it.
func (b *Brain) ShouldAlert() bool {
	if b.localRisk < RiskThreshold {
		return false
	}
	avg, ok := b.NeighborsAvg()
	if !ok {
		return true
	}
	return avg >= ConsensusThreshold
}

// AdaptiveInterval derives the effective publish period from the
// current neighbor count: more active neighbors means a longer period,
// to avoid flooding a crowded sector.
func (b *Brain) AdaptiveInterval(base int) int {
	switch n := b.ActiveNeighborsCount(); {
	case n <= 2:
		return base
	case n <= 5:
		return int(math.Floor(float64(base) * 1.5))
	default:
		return base * 2
	}
}

// ProcessFeedback updates sensitivity and the feedback counters
// according to the monitor's judgement of a prior alert decision.
func (b *Brain) ProcessFeedback(kind string) {
	switch kind {
	case "false_alarm":
		b.falseAlarmCount++
		b.sensitivity = math.Max(SensitivityMin, b.sensitivity-sensitivityStep)
	case "missed_event":
		b.missedEventCount++
		b.sensitivity = math.Min(SensitivityMax, b.sensitivity+sensitivityStep)
	case "correct":
		switch {
		case b.sensitivity < sensitivityDefault:
			b.sensitivity = math.Min(sensitivityDefault, b.sensitivity+sensitivityDecay)
		case b.sensitivity > sensitivityDefault:
			b.sensitivity = math.Max(sensitivityDefault, b.sensitivity-sensitivityDecay)
		}
	}
}

// ResetLearning clears sensitivity to 1.0 and both feedback counters,
// used by the reset_learning control command.
func (b *Brain) ResetLearning() {
	b.sensitivity = sensitivityDefault
	b.falseAlarmCount = 0
	b.missedEventCount = 0
}

// Summary is the snapshot published as a belief for neighbor gossip
// and dashboard consumption.
type Summary struct {
	SensorID         string
	LocalRisk        float64
	RiskLevel        string
	NeighborCount    int
	NeighborAvgRisk  *float64
	Sensitivity      float64
	FalseAlarmCount  int
	MissedEventCount int
	WouldAlert       bool
}

// BeliefSummary snapshots the current state for gossip. WouldAlert
// reflects the decision as of this snapshot, computed before any
// alert is actually published in the same tick.
func (b *Brain) BeliefSummary() Summary {
	var avgPtr *float64
	if avg, ok := b.NeighborsAvg(); ok {
		rounded := round3(avg)
		avgPtr = &rounded
	}
	return Summary{
		SensorID:         b.sensorID,
		LocalRisk:        round3(b.localRisk),
		RiskLevel:        RiskLabel(b.localRisk),
		NeighborCount:    b.ActiveNeighborsCount(),
		NeighborAvgRisk:  avgPtr,
		Sensitivity:      round2(b.sensitivity),
		FalseAlarmCount:  b.falseAlarmCount,
		MissedEventCount: b.missedEventCount,
		WouldAlert:       b.ShouldAlert(),
	}
}

// Stats is a debug/metrics snapshot, not part of any wire payload.
type Stats struct {
	MeasurementsCount int
	LocalRisk         float64
	Neighbors         int
	Sensitivity       float64
	FalseAlarms       int
	MissedEvents      int
}

// Stats reports the brain's current state as a debug snapshot. The
// agent does not call it; it sets its metrics gauges directly.
func (b *Brain) Stats() Stats {
	return Stats{
		MeasurementsCount: b.temperature.len(),
		LocalRisk:         b.localRisk,
		Neighbors:         b.ActiveNeighborsCount(),
		Sensitivity:       b.sensitivity,
		FalseAlarms:       b.falseAlarmCount,
		MissedEvents:      b.missedEventCount,
	}
}

// RiskLabel maps a risk value to its closed-interval label.
func RiskLabel(r float64) string {
	switch {
	case r < 0.3:
		return "stable"
	case r < 0.6:
		return "moderate"
	case r < 0.8:
		return "high"
	default:
		return "critical"
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
