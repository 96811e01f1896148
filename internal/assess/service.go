package assess

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/fieldtriage/internal/recheck"
	"github.com/linnemanlabs/fieldtriage/internal/vitals"
)

// Escalation is a cue the service hands to the external notifier: the
// audible/visual collaborator lives outside the engine.
type Escalation struct {
	Kind    string `json:"kind"` // "red_flag", "no_transport", "high_risk", "recheck_due"
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier delivers escalations to an external channel. Best effort; a
// failed notification never affects triage state.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, e Escalation) error
}

// Snapshot is a full read view of one session for display and reporting.
type Snapshot struct {
	Record      *Record             `json:"record"`
	Verdicts    map[ScaleID]Verdict `json:"verdicts"`
	OverallRisk Level               `json:"overall_risk"`
	Recheck     recheck.State       `json:"recheck"`
}

// Options configures the service's decision policy.
type Options struct {
	Policy  Policy
	Rules   []TriggerRule
	Vitals  vitals.Table
	Recheck recheck.Config
}

// Service is the business boundary for assessment sessions. It owns the
// session lifecycle, runs the recheck countdowns on a shared one-second
// ticker, and dispatches escalation notifications.
type Service struct {
	store    Store
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	policy   Policy
	rules    []TriggerRule
	vitals   vitals.Table
	recheck  recheck.Config

	mu     sync.Mutex
	timers map[string]*recheck.Timer
}

// NewService creates a new assessment service.
func NewService(store Store, logger log.Logger, metrics *Metrics, notifier Notifier, opts Options) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultTriggerRules()
	}
	table := opts.Vitals
	if table == nil {
		table = vitals.Default()
	}
	return &Service{
		store:    store,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		policy:   opts.Policy,
		rules:    rules,
		vitals:   table,
		recheck:  opts.Recheck,
		timers:   make(map[string]*recheck.Timer),
	}
}

// Create starts a fresh session and persists its initial record.
func (s *Service) Create(ctx context.Context) (*Snapshot, error) {
	id := ulid.Make().String()
	sess := NewSession(id, s.policy, s.rules)

	if err := s.store.Put(ctx, sess.Record()); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
	}
	s.logger.Info(ctx, "session created", "session_id", id)
	return s.snapshot(sess), nil
}

// Snapshot returns the full current state of a session.
func (s *Service) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(sess), nil
}

// ApplyField runs the evaluation cascade for one field write and persists
// the outcome. The returned ChangeSet is what the UI must reflect.
func (s *Service) ApplyField(ctx context.Context, id string, fieldID FieldID, value, comment string) (*ChangeSet, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	cs, err := sess.ApplyField(fieldID, value, comment)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RejectedWrites.Inc()
		}
		return nil, err
	}

	if err := s.store.Put(ctx, sess.Record()); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.observeChange(scaleOfField(fieldID), cs)
	}
	s.notifyEscalations(ctx, id, cs)

	return cs, nil
}

// Verdicts returns every scale verdict plus the overall risk.
func (s *Service) Verdicts(ctx context.Context, id string) (map[ScaleID]Verdict, Level, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	verdicts := sess.Verdicts()
	return verdicts, Aggregate(verdicts), nil
}

// Observe bands a vital reading, records it in the session, and persists.
func (s *Service) Observe(ctx context.Context, id, set, metric, value string) (Observation, error) {
	if !s.vitals.Known(metric) {
		return Observation{}, fmt.Errorf("%w: vital metric %q", ErrUnknownField, metric)
	}
	sess, err := s.load(ctx, id)
	if err != nil {
		return Observation{}, err
	}

	obs := sess.RecordObservation(set, metric, value, s.vitals.Classify(metric, value))
	if err := s.store.Put(ctx, sess.Record()); err != nil {
		return Observation{}, fmt.Errorf("persist session: %w", err)
	}
	return obs, nil
}

// StartRecheck starts (or restarts) the session's recheck countdown. At
// most one countdown runs per session; restarting supersedes it.
func (s *Service) StartRecheck(ctx context.Context, id string) (recheck.State, error) {
	if _, err := s.load(ctx, id); err != nil {
		return recheck.State{}, err
	}

	s.mu.Lock()
	tm, ok := s.timers[id]
	if !ok {
		tm = recheck.New(s.recheck)
		s.timers[id] = tm
	}
	state := tm.Start()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecheckStarts.Inc()
	}
	s.logger.Info(ctx, "recheck started", "session_id", id, "seconds", state.RemainingSeconds)
	return state, nil
}

// RecheckState returns the session's current countdown state.
func (s *Service) RecheckState(ctx context.Context, id string) (recheck.State, error) {
	if _, err := s.load(ctx, id); err != nil {
		return recheck.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tm, ok := s.timers[id]; ok {
		return tm.State(), nil
	}
	return recheck.New(s.recheck).State(), nil
}

// End closes a session: the record and any countdown are deleted. No
// assessment history is kept.
func (s *Service) End(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SessionsEnded.Inc()
	}
	s.logger.Info(ctx, "session ended", "session_id", id)
	return nil
}

// RunTicker drives all recheck countdowns at one tick per second until the
// context is cancelled. Run it once, from main.
func (s *Service) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickAll(ctx)
		}
	}
}

// tickAll advances every countdown by one second and raises cues.
func (s *Service) tickAll(ctx context.Context) {
	type due struct {
		id      string
		expired bool
	}
	var cues []due

	s.mu.Lock()
	for id, tm := range s.timers {
		st := tm.Tick()
		if st.CueRequested {
			cues = append(cues, due{id: id, expired: st.Expired})
		}
	}
	s.mu.Unlock()

	for _, c := range cues {
		if s.metrics != nil {
			s.metrics.RecheckCues.Inc()
			if c.expired {
				s.metrics.RecheckExpiries.Inc()
			}
		}
		s.escalate(ctx, c.id, Escalation{
			Kind:    "recheck_due",
			Level:   LevelCaution,
			Message: "Time to recheck observations",
		})
	}
}

// notifyEscalations raises cues for the alerts and verdicts in a change set.
func (s *Service) notifyEscalations(ctx context.Context, id string, cs *ChangeSet) {
	for _, a := range cs.Alerts {
		s.escalate(ctx, id, Escalation{Kind: "red_flag", Level: LevelHighRisk, Message: a.Message})
	}
	for _, v := range cs.Verdicts {
		if v.Message == MsgNoTransport {
			s.escalate(ctx, id, Escalation{Kind: "no_transport", Level: v.Level, Message: v.Message})
		} else if v.AlertRequested && v.Level == LevelHighRisk {
			s.escalate(ctx, id, Escalation{Kind: "high_risk", Level: v.Level, Message: v.Message})
		}
	}
}

// escalate counts the escalation and hands it to the notifier, async so a
// slow webhook never blocks a cascade or a tick.
func (s *Service) escalate(ctx context.Context, id string, e Escalation) {
	if s.metrics != nil {
		s.metrics.EscalationsTotal.WithLabelValues(e.Kind).Inc()
	}
	if s.notifier == nil {
		return
	}
	go func(ctx context.Context) {
		if err := s.notifier.Notify(ctx, id, e); err != nil {
			s.logger.Error(ctx, err, "escalation notify failed", "session_id", id, "kind", e.Kind)
		}
	}(context.WithoutCancel(ctx))
}

func (s *Service) load(ctx context.Context, id string) (*Session, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return RestoreSession(rec, s.policy, s.rules), nil
}

func (s *Service) snapshot(sess *Session) *Snapshot {
	verdicts := sess.Verdicts()

	s.mu.Lock()
	var rc recheck.State
	if tm, ok := s.timers[sess.ID]; ok {
		rc = tm.State()
	} else {
		rc = recheck.New(s.recheck).State()
	}
	s.mu.Unlock()

	return &Snapshot{
		Record:      sess.Record(),
		Verdicts:    verdicts,
		OverallRisk: Aggregate(verdicts),
		Recheck:     rc,
	}
}
