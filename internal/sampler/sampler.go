// Package sampler produces synthetic weather measurements from an
// explicit, injectable random source so sampling is reproducible in
// tests.
package sampler

import (
	"math"
	"math/rand"
)

// Range bounds a single sampled variable, inclusive on both ends.
type Range struct {
	Min, Max float64
}

// Measurement is one (temperature, pressure, humidity) tuple.
type Measurement struct {
	TemperatureC float64
	PressureHPa  float64
	HumidityPct  float64
}

// Sampler produces one Measurement per call to Sample.
type Sampler interface {
	Sample() Measurement
}

// MeteoRanges bounds the "meteo" sensor type: temperature -15..30C,
// pressure 930..1030hPa, humidity 20..100%.
var MeteoRanges = struct {
	Temperature Range
	Pressure    Range
	Humidity    Range
}{
	Temperature: Range{Min: -15, Max: 30},
	Pressure:    Range{Min: 930, Max: 1030},
	Humidity:    Range{Min: 20, Max: 100},
}

// Random is a Sampler backed by a seeded *rand.Rand, bounded by the
// given ranges. Temperature and pressure are sampled to one decimal
// place; humidity is sampled as a whole percentage.
type Random struct {
	rng         *rand.Rand
	temperature Range
	pressure    Range
	humidity    Range
}

// NewRandom builds a Random sampler. seed of 0 still produces a
// deterministic (but fixed) sequence; callers that want true
// nondeterminism should derive a seed from time.Now().UnixNano()
// themselves before calling this constructor.
func NewRandom(seed int64, temperature, pressure, humidity Range) *Random {
	return &Random{
		rng:         rand.New(rand.NewSource(seed)),
		temperature: temperature,
		pressure:    pressure,
		humidity:    humidity,
	}
}

// NewDefaultRandom builds a Random sampler over the meteo sensor ranges.
func NewDefaultRandom(seed int64) *Random {
	return NewRandom(seed, MeteoRanges.Temperature, MeteoRanges.Pressure, MeteoRanges.Humidity)
}

func (r *Random) Sample() Measurement {
	return Measurement{
		TemperatureC: roundTo(uniform(r.rng, r.temperature), 1),
		PressureHPa:  roundTo(uniform(r.rng, r.pressure), 1),
		HumidityPct:  float64(int(uniform(r.rng, r.humidity))),
	}
}

func uniform(rng *rand.Rand, r Range) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

func roundTo(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}
