package assess

import (
	"fmt"
	"strconv"
)

// Policy selects between rule variants that drifted apart across revisions
// of the paper protocol. Callers must pick one explicitly.
type Policy struct {
	// StrictGCS raises the consciousness high-risk cutoff from "sum <= 8"
	// to "sum below 15" (anything short of a full score escalates).
	StrictGCS bool
}

const (
	gcsHighRiskMax  = 8
	gcsFullScore    = 15
	worstSubScore   = 1
	fallRiskHighMin = 15
	fallRiskMedMin  = 5
)

// Verdict messages. The transport message is a distinct high-risk variant;
// callers must not collapse it into the generic red-flag message.
const (
	MsgFASTPositive  = "FAST positive – possible stroke, call emergency services"
	MsgFASTNegative  = "FAST negative"
	MsgRedFlags      = "Red flags present – do not lift"
	MsgNoTransport   = "Transport not authorized – anticoagulant use with possible trauma, await clinical review"
	MsgSeekAdvice    = "Anticoagulant use reported – seek clinical advice before moving"
	MsgNoRedFlags    = "No red flags – proceed to lift"
	MsgUnresponsive  = "Patient unresponsive – emergency"
	MsgGCSIncomplete = "Consciousness score incomplete – record eye, verbal and motor responses"
)

func yesNoUnknown() Domain {
	return Domain{Allowed: []string{AnswerYes, AnswerNo, AnswerUnknown}}
}

func ordinal(lo, hi int) Domain {
	var vals []string
	for i := lo; i <= hi; i++ {
		vals = append(vals, strconv.Itoa(i))
	}
	return Domain{Allowed: vals}
}

// defaultScales builds the session's scale states with every field unset.
func defaultScales() []*ScaleState {
	return []*ScaleState{
		{
			ID: ScaleStroke,
			Fields: []*Field{
				{ID: FieldStrokeFace, Scale: ScaleStroke, Label: "Facial weakness", Domain: yesNoUnknown()},
				{ID: FieldStrokeArm, Scale: ScaleStroke, Label: "Arm weakness", Domain: yesNoUnknown()},
				{ID: FieldStrokeSpeech, Scale: ScaleStroke, Label: "Speech difficulty", Domain: yesNoUnknown()},
				{ID: FieldStrokeOnset, Scale: ScaleStroke, Label: "Time of onset", Domain: Domain{}},
				{ID: FieldStrokeBloodThinner, Scale: ScaleStroke, Label: "On blood thinners", Domain: Domain{Allowed: []string{AnswerYes, AnswerNo}}},
			},
		},
		{
			ID: ScaleConsciousness,
			Fields: []*Field{
				{ID: FieldGCSEye, Scale: ScaleConsciousness, Label: "Eye opening (E)", Domain: ordinal(1, 4)},
				{ID: FieldGCSVerbal, Scale: ScaleConsciousness, Label: "Verbal response (V)", Domain: ordinal(1, 5)},
				{ID: FieldGCSMotor, Scale: ScaleConsciousness, Label: "Motor response (M)", Domain: ordinal(1, 6)},
			},
		},
		{
			ID: ScaleResponsiveness,
			Fields: []*Field{
				{ID: FieldAVPULevel, Scale: ScaleResponsiveness, Label: "AVPU", Domain: Domain{Allowed: []string{AVPUAlert, AVPUVoice, AVPUPain, AVPUUnresponsive}}},
			},
		},
		{
			ID: ScaleRedFlags,
			Fields: []*Field{
				{ID: FieldFlagPain, Scale: ScaleRedFlags, Label: "Intense pain", Domain: yesNoUnknown()},
				{ID: FieldFlagSpine, Scale: ScaleRedFlags, Label: "Spinal pain", Domain: yesNoUnknown()},
				{ID: FieldFlagTingling, Scale: ScaleRedFlags, Label: "Tingling or numbness", Domain: yesNoUnknown()},
				{ID: FieldFlagAltered, Scale: ScaleRedFlags, Label: "Unconscious or altered mental state", Domain: yesNoUnknown()},
				{ID: FieldFlagMobility, Scale: ScaleRedFlags, Label: "Mobility impaired", Domain: yesNoUnknown()},
				{ID: FieldFlagBleed, Scale: ScaleRedFlags, Label: "Bleeding or anticoagulant use", Domain: yesNoUnknown()},
				{ID: FieldFlagUnwell, Scale: ScaleRedFlags, Label: "Generally unwell", Domain: yesNoUnknown()},
				{ID: FieldFlagTrauma, Scale: ScaleRedFlags, Label: "Signs of trauma", Domain: yesNoUnknown()},
			},
		},
		{
			ID: ScaleFallRisk,
			Fields: []*Field{
				{ID: FieldFallsPrevious, Scale: ScaleFallRisk, Label: "Previous falls in last 12 months", Domain: Domain{Allowed: []string{"0", "5", "10"}}},
				{ID: FieldFallsMedicated, Scale: ScaleFallRisk, Label: "On 4+ medications", Domain: Domain{Allowed: []string{"0", "5"}}},
				{ID: FieldFallsGait, Scale: ScaleFallRisk, Label: "Impaired gait or balance", Domain: Domain{Allowed: []string{"0", "5"}}},
				{ID: FieldFallsCognition, Scale: ScaleFallRisk, Label: "Cognitive impairment", Domain: Domain{Allowed: []string{"0", "5"}}},
			},
		},
	}
}

// evaluate is a pure function of the scale's current field values. Calling
// it twice without intervening writes yields identical verdicts.
func evaluate(st *ScaleState, p Policy) Verdict {
	switch st.ID {
	case ScaleStroke:
		return evaluateStroke(st)
	case ScaleConsciousness:
		return evaluateConsciousness(st, p)
	case ScaleResponsiveness:
		return evaluateResponsiveness(st)
	case ScaleRedFlags:
		return evaluateRedFlags(st)
	case ScaleFallRisk:
		return evaluateFallRisk(st)
	default:
		return Verdict{Scale: st.ID, Level: LevelCaution, Message: "unknown scale"}
	}
}

// evaluateStroke: high-risk on any of face/arm/speech = Yes. The onset-time
// field is informational and never gates the verdict. A confirmed blood
// thinner fires the anticoagulant trigger regardless of the FAST outcome.
func evaluateStroke(st *ScaleState) Verdict {
	v := Verdict{Scale: ScaleStroke}

	if st.value(FieldStrokeBloodThinner) == AnswerYes {
		v.addTrigger(TriggerAnticoagulant)
	}

	positive := st.value(FieldStrokeFace) == AnswerYes ||
		st.value(FieldStrokeArm) == AnswerYes ||
		st.value(FieldStrokeSpeech) == AnswerYes

	if positive {
		v.Level = LevelHighRisk
		v.Message = MsgFASTPositive
		v.AlertRequested = true
	} else {
		v.Level = LevelClear
		v.Message = MsgFASTNegative
	}
	return v
}

// evaluateConsciousness sums the three GCS sub-scores. The verdict stays a
// non-alarming "incomplete" caution until all three are set. Any sub-score
// at its worst value fires the critical trigger independently of the sum.
func evaluateConsciousness(st *ScaleState, p Policy) Verdict {
	v := Verdict{Scale: ScaleConsciousness}

	eye, eyeOK := subScore(st, FieldGCSEye)
	verbal, verbalOK := subScore(st, FieldGCSVerbal)
	motor, motorOK := subScore(st, FieldGCSMotor)

	if (eyeOK && eye == worstSubScore) || (verbalOK && verbal == worstSubScore) || (motorOK && motor == worstSubScore) {
		v.addTrigger(TriggerConsciousnessCritical)
	}

	if !eyeOK || !verbalOK || !motorOK {
		v.Level = LevelCaution
		v.Incomplete = true
		v.Message = MsgGCSIncomplete
		return v
	}

	sum := eye + verbal + motor
	v.Score = sum
	v.Message = fmt.Sprintf("GCS score: %d", sum)

	highRisk := sum <= gcsHighRiskMax
	if p.StrictGCS {
		highRisk = sum < gcsFullScore
	}
	if highRisk {
		v.Level = LevelHighRisk
		v.addTrigger(TriggerConsciousnessCritical)
	} else {
		v.Level = LevelClear
	}
	return v
}

func subScore(st *ScaleState, id FieldID) (int, bool) {
	raw := st.value(id)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// evaluateResponsiveness: Unresponsive is high-risk with an audible cue,
// Alert is clear, anything in between (or no selection) is caution.
func evaluateResponsiveness(st *ScaleState) Verdict {
	v := Verdict{Scale: ScaleResponsiveness}

	switch val := st.value(FieldAVPULevel); val {
	case AVPUUnresponsive:
		v.Level = LevelHighRisk
		v.Message = MsgUnresponsive
		v.AlertRequested = true
		v.addTrigger(TriggerUnresponsive)
	case AVPUAlert:
		v.Level = LevelClear
		v.Message = "AVPU: Alert"
	case "":
		v.Level = LevelCaution
		v.Incomplete = true
		v.Message = "No responsiveness level recorded"
	default:
		v.Level = LevelCaution
		v.Message = "AVPU: " + val
	}
	return v
}

// evaluateRedFlags applies the checklist policy. For the combined
// anticoagulant rule, Unknown gates the same as Yes, never as No; the
// generic any-Yes rule matches literal Yes only.
func evaluateRedFlags(st *ScaleState) Verdict {
	v := Verdict{Scale: ScaleRedFlags}

	gates := func(id FieldID) bool {
		val := st.value(id)
		return val == AnswerYes || val == AnswerUnknown
	}

	anticoagulant := gates(FieldFlagBleed)
	trauma := gates(FieldFlagTrauma)

	var otherYes bool
	for _, f := range st.Fields {
		if f.ID != FieldFlagBleed && f.Value == AnswerYes {
			otherYes = true
			break
		}
	}

	switch {
	case anticoagulant && trauma:
		v.Level = LevelHighRisk
		v.Message = MsgNoTransport
		v.AlertRequested = true
	case otherYes:
		v.Level = LevelHighRisk
		v.Message = MsgRedFlags
		v.AlertRequested = true
	case anticoagulant:
		v.Level = LevelCaution
		v.Message = MsgSeekAdvice
	default:
		v.Level = LevelClear
		v.Message = MsgNoRedFlags
	}
	return v
}

// evaluateFallRisk sums the four scored fields. An unanswered item is
// indistinguishable from a genuine zero, so the score only computes once
// every field carries a value.
func evaluateFallRisk(st *ScaleState) Verdict {
	v := Verdict{Scale: ScaleFallRisk}

	var total int
	for _, f := range st.Fields {
		if f.Value == "" {
			v.Level = LevelCaution
			v.Incomplete = true
			v.Message = "Fall-risk score incomplete – answer all items"
			return v
		}
		n, err := strconv.Atoi(f.Value)
		if err != nil {
			v.Level = LevelCaution
			v.Incomplete = true
			v.Message = "Fall-risk score incomplete – answer all items"
			return v
		}
		total += n
	}

	v.Score = total
	switch {
	case total >= fallRiskHighMin:
		v.Level = LevelHighRisk
		v.Message = fmt.Sprintf("FRAT score %d – high falls risk", total)
	case total >= fallRiskMedMin:
		v.Level = LevelCaution
		v.Message = fmt.Sprintf("FRAT score %d – medium falls risk", total)
	default:
		v.Level = LevelClear
		v.Message = fmt.Sprintf("FRAT score %d – low falls risk", total)
	}
	return v
}
