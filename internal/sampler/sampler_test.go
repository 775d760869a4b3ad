package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandom_StaysWithinRanges(t *testing.T) {
	s := NewDefaultRandom(42)
	for i := 0; i < 500; i++ {
		m := s.Sample()
		assert.GreaterOrEqual(t, m.TemperatureC, MeteoRanges.Temperature.Min)
		assert.LessOrEqual(t, m.TemperatureC, MeteoRanges.Temperature.Max)
		assert.GreaterOrEqual(t, m.PressureHPa, MeteoRanges.Pressure.Min)
		assert.LessOrEqual(t, m.PressureHPa, MeteoRanges.Pressure.Max)
		assert.GreaterOrEqual(t, m.HumidityPct, MeteoRanges.Humidity.Min)
		assert.LessOrEqual(t, m.HumidityPct, MeteoRanges.Humidity.Max)
	}
}

func TestRandom_Deterministic(t *testing.T) {
	a := NewDefaultRandom(7)
	b := NewDefaultRandom(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Sample(), b.Sample())
	}
}

func TestRandom_TemperatureRoundsCorrectlyIncludingNegatives(t *testing.T) {
	s := NewRandom(1, Range{Min: -15.04, Max: -15.04}, MeteoRanges.Pressure, MeteoRanges.Humidity)
	m := s.Sample()
	assert.Equal(t, -15.0, m.TemperatureC)
}

func TestRandom_HumidityIsWholeNumber(t *testing.T) {
	s := NewDefaultRandom(3)
	m := s.Sample()
	assert.Equal(t, m.HumidityPct, float64(int(m.HumidityPct)))
}
