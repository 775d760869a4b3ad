// Package wire defines the JSON payload shapes exchanged over the
// broker. These are the external contract the monitor and the
// dashboard also speak; this package implements only the shapes, never
// the monitor's or dashboard's own behavior.
package wire

// Sectors lists the predefined geographic partitions a sensor may be
// assigned to. The monitor is the source of truth at runtime; this
// list exists for validating CLI-supplied sector hints and for tests.
var Sectors = []string{"sector1", "sector2", "sector3", "sector4", "sector5", "sector6"}

// PendingSector is the placeholder sector used for presence messaging
// before the monitor has assigned a real sector.
const PendingSector = "pending"

// DataPayload is published on the Data topic once per publish tick.
type DataPayload struct {
	SensorID     string  `json:"sensor_id"`
	Timestamp    int64   `json:"timestamp"`
	TemperatureC float64 `json:"temperature_c"`
	PressureHPa  float64 `json:"pressure_hpa"`
	HumidityPct  float64 `json:"humidity_pct"`
}

// BeliefPayload is published on the Belief topic once per publish tick
// and consumed both by neighbor sensors and by passive dashboards.
type BeliefPayload struct {
	SensorID         string   `json:"sensor_id"`
	Timestamp        int64    `json:"timestamp"`
	LocalRisk        float64  `json:"local_risk"`
	RiskLevel        string   `json:"risk_level"`
	NeighborCount    int      `json:"neighbor_count"`
	NeighborAvgRisk  *float64 `json:"neighbor_avg_risk"`
	Sensitivity      float64  `json:"sensitivity"`
	FalseAlarmCount  int      `json:"false_alarm_count"`
	MissedEventCount int      `json:"missed_event_count"`
	WouldAlert       bool     `json:"would_alert"`
}

// AlertPayload is published on the Alert topic when should_alert is true.
type AlertPayload struct {
	SensorID     string       `json:"sensor_id"`
	Timestamp    int64        `json:"timestamp"`
	AlertType    string       `json:"alert_type"`
	RiskLevel    float64      `json:"risk_level"`
	Message      string       `json:"message"`
	Measurements Measurements `json:"measurements"`
}

// Measurements mirrors the three sampled fields for embedding in an alert.
type Measurements struct {
	TemperatureC float64 `json:"temperature_c"`
	PressureHPa  float64 `json:"pressure_hpa"`
	HumidityPct  float64 `json:"humidity_pct"`
}

// Status values for PresencePayload.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresencePayload is published, retained, on the Presence topic for
// online announcements and registered as the MQTT last-will for
// offline detection.
type PresencePayload struct {
	SensorID   string `json:"sensor_id"`
	Status     string `json:"status"`
	SensorType string `json:"sensor_type"`
	Sector     string `json:"sector"`
	Timestamp  int64  `json:"timestamp"`
	Reason     string `json:"reason,omitempty"`
}

// AssignmentPayload arrives on the per-sensor Assignment topic.
type AssignmentPayload struct {
	Sector string `json:"sector"`
}

// RejectionPayload arrives on the per-sensor Rejection topic.
type RejectionPayload struct {
	Reason     string `json:"reason"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// FeedbackPayload arrives on the per-sensor Feedback topic.
type FeedbackPayload struct {
	Type string `json:"type"`
}

// Feedback kinds recognized by Brain.ProcessFeedback.
const (
	FeedbackFalseAlarm  = "false_alarm"
	FeedbackMissedEvent = "missed_event"
	FeedbackCorrect     = "correct"
)

// ControlPayload arrives on the control-single or control-group topics.
// Only the command name is decoded here; the handler decodes the same
// payload again into the command's own shape, since the command name
// determines which fields are meaningful.
type ControlPayload struct {
	Command string `json:"command"`
}

// Control commands recognized by the agent's control handler.
const (
	ControlAdjustInterval = "adjust_interval"
	ControlResetLearning  = "reset_learning"
	ControlShutdown       = "SHUTDOWN"
)

// AdjustIntervalControl is the shape of an adjust_interval control message.
type AdjustIntervalControl struct {
	Command  string `json:"command"`
	Interval int    `json:"interval"`
}

// ShutdownControl is the shape of a SHUTDOWN control message.
type ShutdownControl struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}
