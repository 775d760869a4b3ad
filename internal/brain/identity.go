package brain

import (
	"fmt"
	"math/rand"
	"time"
)

// NewSensorID builds a stable identity string in the form
// "<type>-<ms-suffix>-<nonce>": the suffix is the millisecond
// timestamp modulo 100000, so it wraps every 100 seconds, and a
// three-digit nonce disambiguates ids minted within the same
// millisecond.
func NewSensorID(sensorType string, rng *rand.Rand) string {
	msSuffix := time.Now().UnixMilli() % 100000
	nonce := 100 + rng.Intn(900)
	return fmt.Sprintf("%s-%d-%d", sensorType, msSuffix, nonce)
}
