package brain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLocalRisk_InsufficientSamples(t *testing.T) {
	b := New("s1", 5)
	assert.Equal(t, 0.0, b.ComputeLocalRisk())

	b.AddMeasurement(10, 1000, 50)
	assert.Equal(t, 0.0, b.ComputeLocalRisk(), "a single sample is still insufficient")
}

func TestComputeLocalRisk_PressureDropBoundary(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(10, 1000, 50)
	b.AddMeasurement(10, 998, 50)
	// drop of exactly 5.0 (not > 5.0) must not trigger the factor.
	b.AddMeasurement(10, 995, 50)
	assert.Equal(t, 0.0, b.ComputeLocalRisk(), "an exact 5.0 drop is not a strict drop")

	b2 := New("s2", 5)
	b2.AddMeasurement(10, 1000, 50)
	b2.AddMeasurement(10, 998, 50)
	b2.AddMeasurement(10, 994.9, 50)
	assert.InDelta(t, 0.4, b2.ComputeLocalRisk(), 1e-9, "a drop just over 5.0 triggers the factor alone")
}

func TestComputeLocalRisk_ColdWetBoundary(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(2.0, 1000, 80.0)
	b.AddMeasurement(2.0, 1000, 80.0)
	assert.Equal(t, 0.0, b.ComputeLocalRisk(), "temp==2.0 and humidity==80.0 are both non-strict, inactive")

	b2 := New("s2", 5)
	b2.AddMeasurement(1.9, 1000, 80.1)
	b2.AddMeasurement(1.9, 1000, 80.1)
	assert.InDelta(t, 0.3, b2.ComputeLocalRisk(), 1e-9)
}

func TestComputeLocalRisk_Extremes(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(-10.1, 1000, 50)
	b.AddMeasurement(-10.1, 1000, 50)
	assert.InDelta(t, 0.3, b.ComputeLocalRisk(), 1e-9)

	b2 := New("s2", 5)
	b2.AddMeasurement(36, 969, 50)
	b2.AddMeasurement(36, 969, 50)
	// both temp>35 and pressure<970 are true, but it's a single extremes factor, not additive.
	assert.InDelta(t, 0.3, b2.ComputeLocalRisk(), 1e-9)
}

func TestComputeLocalRisk_ClampedToOne(t *testing.T) {
	b := New("s1", 5)
	b.sensitivity = SensitivityMax
	b.AddMeasurement(-20, 1050, 90)
	b.AddMeasurement(-20, 1044, 90)
	b.AddMeasurement(-20, 1030, 90)
	risk := b.ComputeLocalRisk()
	assert.LessOrEqual(t, risk, 1.0)
	assert.InDelta(t, 1.0, risk, 1e-9)
}

func TestWindowsStayEqualLength(t *testing.T) {
	b := New("s1", 5)
	for i := 0; i < HistorySize+5; i++ {
		b.AddMeasurement(float64(i), float64(i), float64(i))
	}
	assert.Equal(t, HistorySize, b.temperature.len())
	assert.Equal(t, b.temperature.len(), b.pressure.len())
	assert.Equal(t, b.pressure.len(), b.humidity.len())
}

func TestUpdateNeighborBelief_ExcludesSelf(t *testing.T) {
	b := New("self-1", 5)
	b.UpdateNeighborBelief("self-1", 0.9)
	assert.Equal(t, 0, b.ActiveNeighborsCount(), "own id must never enter the neighbor table")

	b.UpdateNeighborBelief("peer-1", 0.5)
	assert.Equal(t, 1, b.ActiveNeighborsCount())
	_, hasSelf := b.neighborBeliefs["self-1"]
	assert.False(t, hasSelf)
}

func TestNeighborsAvg_EmptyIsNone(t *testing.T) {
	b := New("s1", 5)
	_, ok := b.NeighborsAvg()
	assert.False(t, ok)

	b.UpdateNeighborBelief("p1", 0.2)
	b.UpdateNeighborBelief("p2", 0.6)
	avg, ok := b.NeighborsAvg()
	require.True(t, ok)
	assert.InDelta(t, 0.4, avg, 1e-9)
}

func TestShouldAlert_BelowThresholdNeverAlerts(t *testing.T) {
	b := New("s1", 5)
	b.localRisk = 0.59
	assert.False(t, b.ShouldAlert())
}

func TestShouldAlert_AloneWithoutNeighbors(t *testing.T) {
	b := New("s1", 5)
	b.localRisk = 0.9
	assert.True(t, b.ShouldAlert())
}

func TestShouldAlert_ConsensusGate(t *testing.T) {
	b := New("s1", 5)
	b.localRisk = 0.9
	b.UpdateNeighborBelief("p1", 0.1)
	b.UpdateNeighborBelief("p2", 0.1)
	assert.False(t, b.ShouldAlert(), "local risk high but neighbors disagree")

	b.UpdateNeighborBelief("p1", 0.8)
	assert.True(t, b.ShouldAlert(), "average now clears the consensus threshold")
}

func TestShouldAlert_Invariant(t *testing.T) {
	b := New("s1", 5)
	b.localRisk = 0.2
	assert.False(t, b.ShouldAlert())
	if b.ShouldAlert() {
		assert.GreaterOrEqual(t, b.localRisk, RiskThreshold)
	}
}

func TestAdaptiveInterval_StepsByNeighborCount(t *testing.T) {
	b := New("s1", 5)
	assert.Equal(t, 5, b.AdaptiveInterval(5), "no neighbors uses base")

	b.UpdateNeighborBelief("p1", 0.1)
	b.UpdateNeighborBelief("p2", 0.1)
	assert.Equal(t, 5, b.AdaptiveInterval(5), "2 neighbors still uses base")

	b.UpdateNeighborBelief("p3", 0.1)
	assert.Equal(t, 7, b.AdaptiveInterval(5), "3 neighbors steps to 1.5x, floored")

	b.UpdateNeighborBelief("p4", 0.1)
	b.UpdateNeighborBelief("p5", 0.1)
	assert.Equal(t, 7, b.AdaptiveInterval(5), "5 neighbors still in the mid band")

	b.UpdateNeighborBelief("p6", 0.1)
	assert.Equal(t, 10, b.AdaptiveInterval(5), "6 neighbors doubles the base")
}

func TestProcessFeedback_SensitivityBounds(t *testing.T) {
	b := New("s1", 5)
	for i := 0; i < 20; i++ {
		b.ProcessFeedback("false_alarm")
	}
	assert.Equal(t, SensitivityMin, b.sensitivity)
	assert.Equal(t, 20, b.falseAlarmCount)

	b2 := New("s2", 5)
	for i := 0; i < 20; i++ {
		b2.ProcessFeedback("missed_event")
	}
	assert.Equal(t, SensitivityMax, b2.sensitivity)
	assert.Equal(t, 20, b2.missedEventCount)
}

func TestProcessFeedback_LearningSequenceConverges(t *testing.T) {
	b := New("s1", 5)
	b.ProcessFeedback("false_alarm")
	b.ProcessFeedback("false_alarm")
	b.ProcessFeedback("missed_event")
	assert.InDelta(t, 0.9, b.sensitivity, 1e-9)

	b.ProcessFeedback("correct")
	assert.InDelta(t, 0.95, b.sensitivity, 1e-9)
	b.ProcessFeedback("correct")
	assert.InDelta(t, 1.00, b.sensitivity, 1e-9)
	b.ProcessFeedback("correct")
	assert.InDelta(t, 1.00, b.sensitivity, 1e-9, "correct feedback at 1.0 is a fixed point")
}

func TestProcessFeedback_CorrectConvergesFromAbove(t *testing.T) {
	b := New("s1", 5)
	b.sensitivity = 1.2
	b.ProcessFeedback("correct")
	assert.InDelta(t, 1.15, b.sensitivity, 1e-9)
}

func TestResetLearning(t *testing.T) {
	b := New("s1", 5)
	b.ProcessFeedback("false_alarm")
	b.ProcessFeedback("missed_event")
	b.ResetLearning()
	assert.Equal(t, sensitivityDefault, b.sensitivity)
	assert.Equal(t, 0, b.falseAlarmCount)
	assert.Equal(t, 0, b.missedEventCount)
}

func TestRiskLabel_ClosedIntervals(t *testing.T) {
	cases := []struct {
		risk  float64
		label string
	}{
		{0.0, "stable"},
		{0.29, "stable"},
		{0.3, "moderate"},
		{0.59, "moderate"},
		{0.6, "high"},
		{0.79, "high"},
		{0.8, "critical"},
		{1.0, "critical"},
	}
	for _, c := range cases {
		assert.Equal(t, c.label, RiskLabel(c.risk), "risk=%v", c.risk)
	}
}

func TestSensorIDNeverAppearsAsNeighbor(t *testing.T) {
	b := New("sector1-meteo-123", 5)
	for i := 0; i < 10; i++ {
		b.UpdateNeighborBelief("sector1-meteo-123", 0.5)
	}
	assert.Equal(t, 0, b.ActiveNeighborsCount())
}

// Scenario: cold-wet conditions alone give 0.3 risk, which with no
// neighbors still stays below the alert threshold.
func TestScenario_ColdWetNoNeighbors(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(1.0, 1010, 85)
	b.AddMeasurement(1.0, 1010, 85)
	risk := b.ComputeLocalRisk()
	assert.InDelta(t, 0.3, risk, 1e-9)
	assert.False(t, b.ShouldAlert(), "0.3 does not clear the 0.6 threshold by itself")
}

// Scenario: alone, above threshold, no neighbors to disagree.
func TestScenario_AlertingAlone(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(-15, 1050, 90)
	b.AddMeasurement(-15, 1040, 90)
	b.AddMeasurement(-15, 1020, 90)
	risk := b.ComputeLocalRisk()
	require.GreaterOrEqual(t, risk, RiskThreshold)
	assert.True(t, b.ShouldAlert())
}

// Scenario: above threshold, neighbor consensus corroborates.
func TestScenario_AlertingWithConsensus(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(-15, 1050, 90)
	b.AddMeasurement(-15, 1040, 90)
	b.AddMeasurement(-15, 1020, 90)
	b.ComputeLocalRisk()
	b.UpdateNeighborBelief("p1", 0.5)
	b.UpdateNeighborBelief("p2", 0.5)
	assert.True(t, b.ShouldAlert())
}

// Scenario: above threshold but neighbors disagree, so the alert is blocked.
func TestScenario_BlockedByDisagreement(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(-15, 1050, 90)
	b.AddMeasurement(-15, 1040, 90)
	b.AddMeasurement(-15, 1020, 90)
	risk := b.ComputeLocalRisk()
	require.GreaterOrEqual(t, risk, RiskThreshold)
	b.UpdateNeighborBelief("p1", 0.0)
	b.UpdateNeighborBelief("p2", 0.1)
	assert.False(t, b.ShouldAlert())
}

// Scenario: feedback-learning sequence per the documented worked example.
func TestScenario_FeedbackLearningSequence(t *testing.T) {
	b := New("s1", 5)
	b.ProcessFeedback("false_alarm")
	b.ProcessFeedback("false_alarm")
	b.ProcessFeedback("missed_event")
	assert.InDelta(t, 0.9, b.sensitivity, 1e-9)

	b.ProcessFeedback("correct")
	assert.InDelta(t, 0.95, b.sensitivity, 1e-9)
	b.ProcessFeedback("correct")
	assert.InDelta(t, 1.00, b.sensitivity, 1e-9)
	b.ProcessFeedback("correct")
	assert.InDelta(t, 1.00, b.sensitivity, 1e-9)
}

func TestBeliefSummary_NeighborAvgIsNilWhenEmpty(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(10, 1000, 50)
	b.AddMeasurement(10, 1000, 50)
	b.ComputeLocalRisk()
	summary := b.BeliefSummary()
	assert.Nil(t, summary.NeighborAvgRisk)
	assert.Equal(t, "s1", summary.SensorID)
}

func TestBeliefSummary_NeighborAvgPresent(t *testing.T) {
	b := New("s1", 5)
	b.UpdateNeighborBelief("p1", 0.4)
	summary := b.BeliefSummary()
	require.NotNil(t, summary.NeighborAvgRisk)
	assert.InDelta(t, 0.4, *summary.NeighborAvgRisk, 1e-9)
}

func TestStats_ReflectsState(t *testing.T) {
	b := New("s1", 5)
	b.AddMeasurement(10, 1000, 50)
	b.UpdateNeighborBelief("p1", 0.3)
	b.ProcessFeedback("false_alarm")
	stats := b.Stats()
	assert.Equal(t, 1, stats.MeasurementsCount)
	assert.Equal(t, 1, stats.Neighbors)
	assert.Equal(t, 1, stats.FalseAlarms)
	assert.InDelta(t, 0.9, stats.Sensitivity, 1e-9)
}
