package assess

// TriggerRule propagates a verdict from one scale into another scale's
// input. Rules are static configuration, not session state.
type TriggerRule struct {
	Source ScaleID
	When   func(Verdict) bool
	Target FieldID
	Forced string
}

// onTrigger matches verdicts that fired the given trigger key.
func onTrigger(k TriggerKey) func(Verdict) bool {
	return func(v Verdict) bool { return v.fired(k) }
}

// DefaultTriggerRules returns the configured cross-scale triggers:
//
//   - confirmed anticoagulant use forces the red-flag bleed field to Yes
//   - a critical consciousness outcome forces responsiveness to
//     Unresponsive and the altered-mental-state flag to Yes
//   - an Unresponsive responsiveness level forces the altered-mental-state
//     flag to Yes
func DefaultTriggerRules() []TriggerRule {
	return []TriggerRule{
		{Source: ScaleStroke, When: onTrigger(TriggerAnticoagulant), Target: FieldFlagBleed, Forced: AnswerYes},
		{Source: ScaleConsciousness, When: onTrigger(TriggerConsciousnessCritical), Target: FieldAVPULevel, Forced: AVPUUnresponsive},
		{Source: ScaleConsciousness, When: onTrigger(TriggerConsciousnessCritical), Target: FieldFlagAltered, Forced: AnswerYes},
		{Source: ScaleResponsiveness, When: onTrigger(TriggerUnresponsive), Target: FieldFlagAltered, Forced: AnswerYes},
	}
}

// route returns the forced writes produced by a verdict under the given
// rules. It does not apply them; the session decides whether each write
// changes anything.
func route(rules []TriggerRule, v Verdict) []FieldWrite {
	var writes []FieldWrite
	for _, r := range rules {
		if r.Source != v.Scale {
			continue
		}
		if r.When == nil || !r.When(v) {
			continue
		}
		writes = append(writes, FieldWrite{Field: r.Target, Value: r.Forced, Forced: true})
	}
	return writes
}
