package assess

import (
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/fieldtriage/internal/vitals"
)

// maxCascadeSteps bounds the trigger cascade. The configured rules reach a
// fixed point long before this; the cap only guards against a future rule
// set that forces a field back and forth.
const maxCascadeSteps = 64

// Session is the session-scoped aggregate holding every scale's state.
// All mutation goes through ApplyField so the cascade completes atomically
// before any caller observes the result.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	scales       []*ScaleState
	byScale      map[ScaleID]*ScaleState
	fields       map[FieldID]*Field
	rules        []TriggerRule
	policy       Policy
	observations []Observation
}

// NewSession creates a session with every field unset and every scale
// evaluated once, so initial verdicts exist before the first input.
func NewSession(id string, policy Policy, rules []TriggerRule) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		scales:    defaultScales(),
		byScale:   make(map[ScaleID]*ScaleState),
		fields:    make(map[FieldID]*Field),
		rules:     rules,
		policy:    policy,
	}
	for _, st := range s.scales {
		s.byScale[st.ID] = st
		for _, f := range st.Fields {
			s.fields[f.ID] = f
		}
		st.Verdict = evaluate(st, policy)
	}
	return s
}

// ApplyField writes a value to a field and runs the trigger cascade to a
// fixed point. The returned ChangeSet carries every forced write and every
// replaced verdict. Writing a value the field already holds produces no
// cascade. A value outside the field's domain is rejected and the field
// keeps its prior value.
func (s *Session) ApplyField(fieldID FieldID, value, comment string) (*ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[fieldID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	if !f.Domain.Contains(value) {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, fieldID, value)
	}

	cs := &ChangeSet{
		Applied:  FieldWrite{Field: fieldID, Value: value},
		Verdicts: make(map[ScaleID]Verdict),
	}
	f.Comment = comment

	if f.Value == value {
		cs.OverallRisk = s.overallRisk()
		return cs, nil
	}

	f.Value = value
	s.noteAlert(cs, f)
	s.cascade(cs, f.Scale)
	cs.OverallRisk = s.overallRisk()
	return cs, nil
}

// cascade re-evaluates the starting scale and follows forced writes until
// no write changes a field. A forced write that does not change its target
// never re-triggers evaluation, which is what makes the loop terminate.
func (s *Session) cascade(cs *ChangeSet, start ScaleID) {
	queue := []ScaleID{start}
	for steps := 0; len(queue) > 0 && steps < maxCascadeSteps; steps++ {
		id := queue[0]
		queue = queue[1:]

		st := s.byScale[id]
		v := evaluate(st, s.policy)
		st.Verdict = v
		cs.Verdicts[id] = v

		for _, w := range route(s.rules, v) {
			target, ok := s.fields[w.Field]
			if !ok || !target.Domain.Contains(w.Value) {
				// Misconfigured rule; the target keeps its value.
				continue
			}
			if target.Value == w.Value {
				continue
			}
			target.Value = w.Value
			cs.Forced = append(cs.Forced, w)
			s.noteAlert(cs, target)
			queue = append(queue, target.Scale)
		}
	}
}

// noteAlert records the immediate per-flag cue: every red-flag answered Yes
// alerts on its own, not just through the checklist verdict.
func (s *Session) noteAlert(cs *ChangeSet, f *Field) {
	if f.Scale == ScaleRedFlags && f.Value == AnswerYes {
		cs.Alerts = append(cs.Alerts, Alert{
			Scale:   ScaleRedFlags,
			Message: "Red flag: " + f.Label,
		})
	}
}

// Verdict returns the last computed verdict for a scale.
func (s *Session) Verdict(id ScaleID) (Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byScale[id]
	if !ok {
		return Verdict{}, false
	}
	return st.Verdict, true
}

// Verdicts returns a copy of every scale's current verdict.
func (s *Session) Verdicts() map[ScaleID]Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ScaleID]Verdict, len(s.scales))
	for _, st := range s.scales {
		out[st.ID] = st.Verdict
	}
	return out
}

// OverallRisk aggregates the current scale verdicts into one overall
// classification.
func (s *Session) OverallRisk() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overallRisk()
}

// overallRisk is the maximum severity across all scale verdicts. It reads
// only each scale's verdict, never raw fields, so every cross-scale effect
// is already visible when the aggregate is computed.
func (s *Session) overallRisk() Level {
	risk := LevelClear
	for _, st := range s.scales {
		if st.Verdict.Level.severity() > risk.severity() {
			risk = st.Verdict.Level
		}
	}
	return risk
}

// RecordObservation bands and stores one vital reading in a named set.
func (s *Session) RecordObservation(set, metric, value string, band vitals.Band) Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := Observation{Set: set, Metric: metric, Value: value, Band: band, At: time.Now()}
	s.observations = append(s.observations, obs)
	return obs
}

// Record snapshots the session for persistence.
func (s *Session) Record() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Fields:    make(map[FieldID]FieldValue, len(s.fields)),
	}
	for id, f := range s.fields {
		if f.Value == "" && f.Comment == "" {
			continue
		}
		rec.Fields[id] = FieldValue{Value: f.Value, Comment: f.Comment}
	}
	rec.Observations = append(rec.Observations, s.observations...)
	return rec
}

// RestoreSession rebuilds a session from a persisted record. Stored values
// already include any forced writes, so fields are set directly and each
// scale is evaluated exactly once; replaying the original input sequence
// would yield the same state.
func RestoreSession(rec *Record, policy Policy, rules []TriggerRule) *Session {
	s := NewSession(rec.ID, policy, rules)
	s.CreatedAt = rec.CreatedAt
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, fv := range rec.Fields {
		f, ok := s.fields[id]
		if !ok || !f.Domain.Contains(fv.Value) {
			continue
		}
		f.Value = fv.Value
		f.Comment = fv.Comment
	}
	for _, st := range s.scales {
		st.Verdict = evaluate(st, policy)
	}
	s.observations = append(s.observations, rec.Observations...)
	return s
}
