package assess

import (
	"time"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/fieldtriage/internal/vitals"
)

// Level is the risk classification carried by a verdict.
type Level string

const (
	// LevelClear means the scale shows no concerning findings.
	LevelClear Level = "clear"

	// LevelCaution means incomplete input or intermediate findings.
	LevelCaution Level = "caution"

	// LevelHighRisk means the scale demands escalation.
	LevelHighRisk Level = "high_risk"
)

// severity orders levels for aggregation: high_risk > caution > clear.
func (l Level) severity() int {
	switch l {
	case LevelHighRisk:
		return 2
	case LevelCaution:
		return 1
	default:
		return 0
	}
}

// ScaleID identifies one clinical scale.
type ScaleID string

const (
	ScaleStroke         ScaleID = "stroke"         // FAST stroke screen
	ScaleConsciousness  ScaleID = "consciousness"  // GCS sum score
	ScaleResponsiveness ScaleID = "responsiveness" // AVPU
	ScaleRedFlags       ScaleID = "red_flags"      // injury red-flag checklist
	ScaleFallRisk       ScaleID = "fall_risk"      // FRAT score
)

// FieldID is the stable key of one answerable input.
type FieldID string

const (
	FieldStrokeFace         FieldID = "stroke.face"
	FieldStrokeArm          FieldID = "stroke.arm"
	FieldStrokeSpeech       FieldID = "stroke.speech"
	FieldStrokeOnset        FieldID = "stroke.onset_time"
	FieldStrokeBloodThinner FieldID = "stroke.blood_thinner"

	FieldGCSEye    FieldID = "gcs.eye"
	FieldGCSVerbal FieldID = "gcs.verbal"
	FieldGCSMotor  FieldID = "gcs.motor"

	FieldAVPULevel FieldID = "avpu.level"

	FieldFlagPain     FieldID = "flag.pain"
	FieldFlagSpine    FieldID = "flag.spine"
	FieldFlagTingling FieldID = "flag.tingling"
	FieldFlagAltered  FieldID = "flag.altered_mental_state"
	FieldFlagMobility FieldID = "flag.mobility"
	FieldFlagBleed    FieldID = "flag.bleed_anticoagulant"
	FieldFlagUnwell   FieldID = "flag.unwell"
	FieldFlagTrauma   FieldID = "flag.trauma"

	FieldFallsPrevious  FieldID = "frat.falls"
	FieldFallsMedicated FieldID = "frat.medication"
	FieldFallsGait      FieldID = "frat.gait"
	FieldFallsCognition FieldID = "frat.cognition"
)

// Answer values for Yes/No/Unknown fields. The empty string means unset.
const (
	AnswerYes     = "Yes"
	AnswerNo      = "No"
	AnswerUnknown = "Unknown"
)

// Responsiveness (AVPU) levels, ordered from best to worst.
const (
	AVPUAlert        = "Alert"
	AVPUVoice        = "Voice"
	AVPUPain         = "Pain"
	AVPUUnresponsive = "Unresponsive"
)

// TriggerKey names a cross-scale trigger condition fired by a verdict.
type TriggerKey string

const (
	// TriggerAnticoagulant fires when anticoagulant use is confirmed.
	TriggerAnticoagulant TriggerKey = "anticoagulant_confirmed"

	// TriggerConsciousnessCritical fires on a high-risk consciousness sum
	// or any sub-score at its worst (no-response) value.
	TriggerConsciousnessCritical TriggerKey = "consciousness_critical"

	// TriggerUnresponsive fires when the responsiveness level is Unresponsive.
	TriggerUnresponsive TriggerKey = "unresponsive"
)

// Domain is the set of values a field accepts. A nil Allowed slice means
// unconstrained free text. The empty string (unset) is always accepted.
type Domain struct {
	Allowed []string
}

// Contains reports whether v is a member of the domain.
func (d Domain) Contains(v string) bool {
	if v == "" || d.Allowed == nil {
		return true
	}
	for _, a := range d.Allowed {
		if a == v {
			return true
		}
	}
	return false
}

// Field is a single answerable input. Fields are created at session start
// and never destroyed; values change by user input or forced trigger writes.
type Field struct {
	ID      FieldID `json:"id"`
	Scale   ScaleID `json:"scale"`
	Label   string  `json:"label"`
	Value   string  `json:"value"`
	Comment string  `json:"comment,omitempty"`

	Domain Domain `json:"-"`
}

// Verdict is the outcome of evaluating one scale. Immutable once produced;
// re-evaluation replaces it wholesale.
type Verdict struct {
	Scale          ScaleID `json:"scale"`
	Level          Level   `json:"level"`
	Message        string  `json:"message"`
	Score          int     `json:"score,omitempty"`
	Incomplete     bool    `json:"incomplete,omitempty"`
	AlertRequested bool    `json:"alert_requested,omitempty"`

	// Triggers are the outbound trigger keys fired by this verdict.
	Triggers []TriggerKey `json:"-"`
}

func (v Verdict) fired(k TriggerKey) bool {
	for _, t := range v.Triggers {
		if t == k {
			return true
		}
	}
	return false
}

func (v *Verdict) addTrigger(k TriggerKey) {
	if !v.fired(k) {
		v.Triggers = append(v.Triggers, k)
	}
}

// ScaleState is the field set owned by one evaluator plus its last verdict.
type ScaleState struct {
	ID      ScaleID
	Fields  []*Field
	Verdict Verdict
}

func (s *ScaleState) field(id FieldID) *Field {
	for _, f := range s.Fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func (s *ScaleState) value(id FieldID) string {
	if f := s.field(id); f != nil {
		return f.Value
	}
	return ""
}

// FieldWrite is one applied field mutation, user-initiated or forced by the
// trigger router.
type FieldWrite struct {
	Field  FieldID `json:"field_id"`
	Value  string  `json:"value"`
	Forced bool    `json:"forced,omitempty"`
}

// Alert is an immediate cue request raised during a cascade, independent of
// the owning scale's aggregate verdict.
type Alert struct {
	Scale   ScaleID `json:"scale"`
	Message string  `json:"message"`
}

// ChangeSet is everything a single field update caused: the write itself,
// every forced write from the trigger cascade, the replaced verdicts, any
// immediate alerts, and the recomputed overall risk. The UI applies it
// atomically.
type ChangeSet struct {
	Applied     FieldWrite          `json:"applied"`
	Forced      []FieldWrite        `json:"forced,omitempty"`
	Verdicts    map[ScaleID]Verdict `json:"verdicts"`
	Alerts      []Alert             `json:"alerts,omitempty"`
	OverallRisk Level               `json:"overall_risk"`
}

// Observation is one banded vital-sign reading within a named set.
type Observation struct {
	Set    string      `json:"set"`
	Metric string      `json:"metric"`
	Value  string      `json:"value"`
	Band   vitals.Band `json:"band"`
	At     time.Time   `json:"at"`
}

// FieldValue is the persisted state of one field.
type FieldValue struct {
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// Record is the serializable snapshot of a session: enough to rebuild the
// full session state deterministically by re-evaluating every scale.
type Record struct {
	ID           string                 `json:"id"`
	CreatedAt    time.Time              `json:"created_at"`
	Fields       map[FieldID]FieldValue `json:"fields"`
	Observations []Observation          `json:"observations,omitempty"`
}

// Sentinel errors for rejected writes. All are recoverable: the field keeps
// its prior value and the session stays usable.
var (
	// ErrUnknownField means the field ID matches no configured field.
	ErrUnknownField = xerrors.New("unknown field")

	// ErrInvalidValue means the value is outside the field's domain.
	ErrInvalidValue = xerrors.New("value not in field domain")

	// ErrSessionNotFound means the session ID matches no live session.
	ErrSessionNotFound = xerrors.New("session not found")
)
