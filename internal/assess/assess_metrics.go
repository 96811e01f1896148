package assess

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the assessment subsystem.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsEnded    prometheus.Counter
	FieldUpdates     *prometheus.CounterVec
	ForcedWrites     *prometheus.CounterVec
	RejectedWrites   prometheus.Counter
	CascadeWrites    prometheus.Histogram
	VerdictsTotal    *prometheus.CounterVec
	EscalationsTotal *prometheus.CounterVec
	RecheckStarts    prometheus.Counter
	RecheckExpiries  prometheus.Counter
	RecheckCues      prometheus.Counter
}

// NewMetrics registers and returns assessment metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_sessions_started_total",
			Help: "Total assessment sessions created.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_sessions_ended_total",
			Help: "Total assessment sessions closed.",
		}),
		FieldUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldtriage_field_updates_total",
			Help: "Total user field writes by owning scale.",
		}, []string{"scale"}),
		ForcedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldtriage_forced_writes_total",
			Help: "Total trigger-forced field writes by target scale.",
		}, []string{"scale"}),
		RejectedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_rejected_writes_total",
			Help: "Total writes rejected for violating a field domain.",
		}),
		CascadeWrites: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldtriage_cascade_forced_writes",
			Help:    "Forced writes produced per field update cascade.",
			Buckets: prometheus.LinearBuckets(0, 1, 8), // 0 .. 7
		}),
		VerdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldtriage_verdicts_total",
			Help: "Total verdicts produced by scale and level.",
		}, []string{"scale", "level"}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldtriage_escalations_total",
			Help: "Total escalations raised by kind.",
		}, []string{"kind"}),
		RecheckStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_recheck_starts_total",
			Help: "Total recheck countdowns started.",
		}),
		RecheckExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_recheck_expiries_total",
			Help: "Total recheck countdowns that expired.",
		}),
		RecheckCues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtriage_recheck_cues_total",
			Help: "Total recheck cues requested, including repeats.",
		}),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsEnded,
		m.FieldUpdates,
		m.ForcedWrites,
		m.RejectedWrites,
		m.CascadeWrites,
		m.VerdictsTotal,
		m.EscalationsTotal,
		m.RecheckStarts,
		m.RecheckExpiries,
		m.RecheckCues,
	)

	return m
}

// observeChange records the cascade outcome of one applied field update.
func (m *Metrics) observeChange(owner ScaleID, cs *ChangeSet) {
	if m == nil {
		return
	}
	m.FieldUpdates.WithLabelValues(string(owner)).Inc()
	m.CascadeWrites.Observe(float64(len(cs.Forced)))
	for _, w := range cs.Forced {
		m.ForcedWrites.WithLabelValues(string(scaleOfField(w.Field))).Inc()
	}
	for id, v := range cs.Verdicts {
		m.VerdictsTotal.WithLabelValues(string(id), string(v.Level)).Inc()
	}
}

var fieldOwner = func() map[FieldID]ScaleID {
	owner := make(map[FieldID]ScaleID)
	for _, st := range defaultScales() {
		for _, f := range st.Fields {
			owner[f.ID] = st.ID
		}
	}
	return owner
}()

// scaleOfField maps a field to its owning scale.
func scaleOfField(id FieldID) ScaleID {
	return fieldOwner[id]
}
