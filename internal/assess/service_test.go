package assess

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/fieldtriage/internal/recheck"
)

// fakeStore is a minimal in-memory Store for service tests. The real
// in-memory implementation lives in its own package and cannot be imported
// here without a cycle.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*Record
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*Record)}
}

func (f *fakeStore) Get(_ context.Context, id string) (*Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r, ok, nil
}

func (f *fakeStore) Put(_ context.Context, rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

// captureNotifier records escalations and signals each arrival.
type captureNotifier struct {
	mu   sync.Mutex
	got  []Escalation
	seen chan Escalation
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{seen: make(chan Escalation, 16)}
}

func (n *captureNotifier) Notify(_ context.Context, _ string, e Escalation) error {
	n.mu.Lock()
	n.got = append(n.got, e)
	n.mu.Unlock()
	n.seen <- e
	return nil
}

func (n *captureNotifier) wait(t *testing.T) Escalation {
	t.Helper()
	select {
	case e := <-n.seen:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for escalation")
		return Escalation{}
	}
}

func newTestService(t *testing.T, notifier Notifier) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc := NewService(store, nil, nil, notifier, Options{
		Recheck: recheck.Config{Seconds: 5, CueRepeat: 1, CueIntervalSeconds: 1},
	})
	return svc, store
}

func TestService_CreateAndSnapshot(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, nil)
	ctx := context.Background()

	snap, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if snap.Record.ID == "" {
		t.Fatal("expected a session ID")
	}
	if len(snap.Verdicts) != 5 {
		t.Errorf("verdicts = %d, want 5", len(snap.Verdicts))
	}
	if snap.Recheck.Status != recheck.StatusIdle {
		t.Errorf("recheck status = %q, want idle", snap.Recheck.Status)
	}
	if _, ok := store.records[snap.Record.ID]; !ok {
		t.Error("expected new session to be persisted")
	}

	again, err := svc.Snapshot(ctx, snap.Record.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if again.Record.ID != snap.Record.ID {
		t.Errorf("snapshot ID = %q, want %q", again.Record.ID, snap.Record.ID)
	}
}

func TestService_SnapshotMissingSession(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	if _, err := svc.Snapshot(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestService_ApplyFieldPersistsCascade(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, nil)
	ctx := context.Background()

	snap, _ := svc.Create(ctx)
	id := snap.Record.ID

	cs, err := svc.ApplyField(ctx, id, FieldStrokeBloodThinner, AnswerYes, "apixaban")
	if err != nil {
		t.Fatalf("ApplyField: %v", err)
	}
	if len(cs.Forced) != 1 || cs.Forced[0].Field != FieldFlagBleed {
		t.Fatalf("forced = %+v, want bleed flag", cs.Forced)
	}

	rec := store.records[id]
	if rec.Fields[FieldFlagBleed].Value != AnswerYes {
		t.Error("forced bleed flag not persisted")
	}
	if rec.Fields[FieldStrokeBloodThinner].Comment != "apixaban" {
		t.Errorf("comment = %q, want apixaban", rec.Fields[FieldStrokeBloodThinner].Comment)
	}

	// A later load sees the forced value without re-running the cascade.
	verdicts, overall, err := svc.Verdicts(ctx, id)
	if err != nil {
		t.Fatalf("Verdicts: %v", err)
	}
	if verdicts[ScaleRedFlags].Message != MsgSeekAdvice {
		t.Errorf("red flags message = %q, want %q", verdicts[ScaleRedFlags].Message, MsgSeekAdvice)
	}
	if overall != LevelCaution {
		t.Errorf("overall = %q, want caution", overall)
	}
}

func TestService_ApplyFieldRejectsBadValue(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	snap, _ := svc.Create(ctx)

	if _, err := svc.ApplyField(ctx, snap.Record.ID, FieldGCSEye, "12", ""); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("err = %v, want ErrInvalidValue", err)
	}
}

func TestService_EscalatesRedFlag(t *testing.T) {
	t.Parallel()

	notifier := newCaptureNotifier()
	svc, _ := newTestService(t, notifier)
	ctx := context.Background()
	snap, _ := svc.Create(ctx)

	if _, err := svc.ApplyField(ctx, snap.Record.ID, FieldFlagSpine, AnswerYes, ""); err != nil {
		t.Fatalf("ApplyField: %v", err)
	}

	kinds := map[string]bool{}
	kinds[notifier.wait(t).Kind] = true
	if !kinds["red_flag"] {
		// The checklist verdict may arrive before the per-flag cue.
		kinds[notifier.wait(t).Kind] = true
	}
	if !kinds["red_flag"] {
		t.Errorf("escalation kinds = %v, want red_flag", kinds)
	}
}

func TestService_EscalatesNoTransport(t *testing.T) {
	t.Parallel()

	notifier := newCaptureNotifier()
	svc, _ := newTestService(t, notifier)
	ctx := context.Background()
	snap, _ := svc.Create(ctx)
	id := snap.Record.ID

	if _, err := svc.ApplyField(ctx, id, FieldFlagTrauma, AnswerYes, ""); err != nil {
		t.Fatalf("ApplyField trauma: %v", err)
	}
	notifier.wait(t) // red_flag cue for trauma

	if _, err := svc.ApplyField(ctx, id, FieldFlagBleed, AnswerYes, ""); err != nil {
		t.Fatalf("ApplyField bleed: %v", err)
	}

	var sawNoTransport bool
	for range 3 {
		if notifier.wait(t).Kind == "no_transport" {
			sawNoTransport = true
			break
		}
	}
	if !sawNoTransport {
		t.Error("expected a no_transport escalation")
	}
}

func TestService_Observe(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, nil)
	ctx := context.Background()
	snap, _ := svc.Create(ctx)

	obs, err := svc.Observe(ctx, snap.Record.ID, "OBS1", "spo2", "89")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if obs.Band != "critical" {
		t.Errorf("band = %q, want critical", obs.Band)
	}

	if _, err := svc.Observe(ctx, snap.Record.ID, "OBS1", "blood_sugar", "5"); err == nil {
		t.Fatal("expected error for unknown metric")
	}

	rec := store.records[snap.Record.ID]
	if len(rec.Observations) != 1 {
		t.Errorf("persisted observations = %d, want 1", len(rec.Observations))
	}
}

func TestService_RecheckLifecycle(t *testing.T) {
	t.Parallel()

	notifier := newCaptureNotifier()
	svc, _ := newTestService(t, notifier)
	ctx := context.Background()
	snap, _ := svc.Create(ctx)
	id := snap.Record.ID

	st, err := svc.StartRecheck(ctx, id)
	if err != nil {
		t.Fatalf("StartRecheck: %v", err)
	}
	if st.Status != recheck.StatusRunning || st.RemainingSeconds != 5 {
		t.Fatalf("state = %+v, want running with 5s", st)
	}

	// Drive the countdown directly instead of waiting on the wall clock.
	for range 5 {
		svc.tickAll(ctx)
	}

	st, err = svc.RecheckState(ctx, id)
	if err != nil {
		t.Fatalf("RecheckState: %v", err)
	}
	if st.Status != recheck.StatusExpired {
		t.Errorf("status = %q after 5 ticks, want expired", st.Status)
	}
	if e := notifier.wait(t); e.Kind != "recheck_due" {
		t.Errorf("escalation kind = %q, want recheck_due", e.Kind)
	}

	// Restart supersedes the expired countdown.
	st, _ = svc.StartRecheck(ctx, id)
	if st.Status != recheck.StatusRunning || st.RemainingSeconds != 5 {
		t.Errorf("restarted state = %+v, want running with 5s", st)
	}
}

func TestService_End(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, nil)
	ctx := context.Background()
	snap, _ := svc.Create(ctx)
	id := snap.Record.ID

	if _, err := svc.StartRecheck(ctx, id); err != nil {
		t.Fatalf("StartRecheck: %v", err)
	}
	if err := svc.End(ctx, id); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, ok := store.records[id]; ok {
		t.Error("record still present after End")
	}
	if _, ok := svc.timers[id]; ok {
		t.Error("timer still present after End")
	}
	if _, err := svc.Snapshot(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}
