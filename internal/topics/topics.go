// Package topics implements the bidirectional mapping between
// structural (kind, sector, sensor-type, sensor-id) tuples and the flat
// topic strings used by the broker.
package topics

import (
	"strings"
)

// Kind tags the structural meaning of a topic, replacing substring
// matching on the raw path with a parsed, comparable value.
type Kind int

const (
	KindUnknown Kind = iota
	KindData
	KindBelief
	KindAlert
	KindStatus
	KindControlSingle
	KindControlGroup
	KindFeedback
	KindAssign
	KindReject
)

const (
	prefix   = "weather"
	allGroup = "all"
)

// Data returns the per-sensor Data topic.
func Data(sector, sensorType, sensorID string) string {
	return join(prefix, "data", sector, sensorType, sensorID)
}

// Belief returns the per-sensor Belief topic.
func Belief(sector, sensorType, sensorID string) string {
	return join(prefix, "belief", sector, sensorType, sensorID)
}

// BeliefWildcard returns the site-wide Belief subscription filter.
func BeliefWildcard(sector, sensorType string) string {
	return join(prefix, "belief", sector, sensorType, "+")
}

// Alert returns the per-sensor Alert topic.
func Alert(sector, sensorType, sensorID string) string {
	return join(prefix, "alert", sector, sensorType, sensorID)
}

// Status returns the per-sensor Presence topic.
func Status(sector, sensorType, sensorID string) string {
	return join(prefix, "status", sector, sensorType, sensorID)
}

// ControlSingle returns the per-sensor Control topic.
func ControlSingle(sector, sensorType, sensorID string) string {
	return join(prefix, "control", sector, sensorType, sensorID)
}

// ControlGroup returns the sector-wide Control topic.
func ControlGroup(sector, sensorType string) string {
	return join(prefix, "control", sector, sensorType, allGroup)
}

// Feedback returns the per-sensor Feedback topic.
func Feedback(sector, sensorType, sensorID string) string {
	return join(prefix, "feedback", sector, sensorType, sensorID)
}

// Assign returns the per-sensor Assignment topic.
func Assign(sensorID string) string {
	return join(prefix, "assign", sensorID)
}

// Reject returns the per-sensor Rejection topic.
func Reject(sensorID string) string {
	return join(prefix, "reject", sensorID)
}

func join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Parsed is the structural decomposition of a topic string.
type Parsed struct {
	Kind       Kind
	Sector     string
	SensorType string
	SensorID   string
}

// Parse classifies a topic path and extracts its structural fields.
// Classification uses positional segment matching rather than
// substring search, so a sensor-id containing "assign" or "belief"
// cannot be misclassified the way naive substring matching would.
// Each kind owns a distinct second segment, except that control-single
// and control-group share "control" and are told apart by the last
// segment ("all" for the group), so no tie-breaking is needed.
func Parse(topic string) Parsed {
	segs := strings.Split(topic, "/")
	if len(segs) < 2 || segs[0] != prefix {
		return Parsed{Kind: KindUnknown}
	}

	switch segs[1] {
	case "reject":
		if len(segs) == 3 {
			return Parsed{Kind: KindReject, SensorID: segs[2]}
		}
	case "assign":
		if len(segs) == 3 {
			return Parsed{Kind: KindAssign, SensorID: segs[2]}
		}
	case "belief":
		if len(segs) == 5 {
			return Parsed{Kind: KindBelief, Sector: segs[2], SensorType: segs[3], SensorID: segs[4]}
		}
	case "feedback":
		if len(segs) == 5 {
			return Parsed{Kind: KindFeedback, Sector: segs[2], SensorType: segs[3], SensorID: segs[4]}
		}
	case "control":
		if len(segs) == 5 {
			if segs[4] == allGroup {
				return Parsed{Kind: KindControlGroup, Sector: segs[2], SensorType: segs[3]}
			}
			return Parsed{Kind: KindControlSingle, Sector: segs[2], SensorType: segs[3], SensorID: segs[4]}
		}
	case "data":
		if len(segs) == 5 {
			return Parsed{Kind: KindData, Sector: segs[2], SensorType: segs[3], SensorID: segs[4]}
		}
	case "alert":
		if len(segs) == 5 {
			return Parsed{Kind: KindAlert, Sector: segs[2], SensorType: segs[3], SensorID: segs[4]}
		}
	case "status":
		if len(segs) == 5 {
			return Parsed{Kind: KindStatus, Sector: segs[2], SensorType: segs[3], SensorID: segs[4]}
		}
	}

	return Parsed{Kind: KindUnknown}
}

// String renders a Kind for logging.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindBelief:
		return "belief"
	case KindAlert:
		return "alert"
	case KindStatus:
		return "status"
	case KindControlSingle:
		return "control_single"
	case KindControlGroup:
		return "control_group"
	case KindFeedback:
		return "feedback"
	case KindAssign:
		return "assign"
	case KindReject:
		return "reject"
	default:
		return "unknown"
	}
}
