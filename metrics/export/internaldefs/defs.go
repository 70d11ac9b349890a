package internaldefs

import (
	goGate "github.com/MrEthical07/goGate"
)

// Source is what both exporters read from. [goGate.Store] satisfies it.
type Source interface {
	MetricsSnapshot() goGate.MetricsSnapshot
	AuditDropped() uint64
	IsAuthenticated() bool
}

// Kind is the exposition type of a family.
type Kind uint8

const (
	KindCounter Kind = iota
	KindGauge
)

// Label is one name="value" pair on a series.
type Label struct {
	Name  string
	Value string
}

// SeriesDef binds one store counter to the labels it is exported under.
type SeriesDef struct {
	ID     goGate.MetricID
	Labels []Label
}

// FamilyDef is one exported metric name and the store counters behind it.
// Families without Series are filled in by [Walk] from non-counter state.
type FamilyDef struct {
	Name   string
	Help   string
	Kind   Kind
	Series []SeriesDef
}

const (
	FamilySessionsEstablished = "gogate_sessions_established_total"
	FamilyLogout              = "gogate_logout_total"
	FamilyHydrate             = "gogate_hydrate_total"
	FamilyRouteDecisions      = "gogate_route_decisions_total"
	FamilySessionActive       = "gogate_session_active"
	FamilyAuditDropped        = "gogate_audit_dropped_total"
)

// Families lists every scalar family in output order.
var Families = []FamilyDef{
	{
		Name: FamilySessionsEstablished,
		Help: "Login and signup attempts by result.",
		Kind: KindCounter,
		Series: []SeriesDef{
			{ID: goGate.MetricLoginSuccess, Labels: []Label{{"operation", "login"}, {"result", "success"}}},
			{ID: goGate.MetricLoginFailure, Labels: []Label{{"operation", "login"}, {"result", "failure"}}},
			{ID: goGate.MetricSignupSuccess, Labels: []Label{{"operation", "signup"}, {"result", "success"}}},
			{ID: goGate.MetricSignupFailure, Labels: []Label{{"operation", "signup"}, {"result", "failure"}}},
		},
	},
	{
		Name:   FamilyLogout,
		Help:   "Logout calls, including ones made while logged out.",
		Kind:   KindCounter,
		Series: []SeriesDef{{ID: goGate.MetricLogout}},
	},
	{
		Name: FamilyHydrate,
		Help: "Startup restores by outcome.",
		Kind: KindCounter,
		Series: []SeriesDef{
			{ID: goGate.MetricHydrateRestored, Labels: []Label{{"outcome", "restored"}}},
			{ID: goGate.MetricHydrateEmpty, Labels: []Label{{"outcome", "empty"}}},
			{ID: goGate.MetricHydrateFailure, Labels: []Label{{"outcome", "failure"}}},
		},
	},
	{
		Name: FamilyRouteDecisions,
		Help: "Restricted-route checks by decision.",
		Kind: KindCounter,
		Series: []SeriesDef{
			{ID: goGate.MetricRouteAllowed, Labels: []Label{{"decision", "allowed"}}},
			{ID: goGate.MetricRouteRedirected, Labels: []Label{{"decision", "redirected"}}},
		},
	},
	{
		Name: FamilySessionActive,
		Help: "1 while a session is held, 0 otherwise.",
		Kind: KindGauge,
	},
	{
		Name: FamilyAuditDropped,
		Help: "Audit events dropped on a full dispatcher buffer.",
		Kind: KindCounter,
	},
}

// LatencyName and LatencyHelp describe the authenticator round-trip histogram.
const (
	LatencyName = "gogate_authenticate_latency_seconds"
	LatencyHelp = "Login and signup authenticator round trip."
)

// HistogramBounds are the upper bounds of the eight buckets, in seconds.
var HistogramBounds = [8]string{"0.01", "0.05", "0.1", "0.25", "0.5", "1", "2.5", "+Inf"}

// Point is one observed series value.
type Point struct {
	Labels []Label
	Value  uint64
}

// FamilySample is a [FamilyDef] with its values for one collection.
type FamilySample struct {
	FamilyDef
	Points []Point
}

// Sample is everything an exporter writes for one scrape or callback.
type Sample struct {
	Families []FamilySample
	// Latency holds cumulative bucket counts; ok is false when histograms
	// are disabled.
	Latency   [8]uint64
	LatencyOK bool
	// Empty is true when metrics are disabled and nothing was dropped.
	Empty bool
}

// Walk reads src once and lays the values out along [Families]. Families
// appear in definition order and series in their declared order.
func Walk(src Source) Sample {
	snap := src.MetricsSnapshot()
	dropped := src.AuditDropped()

	out := Sample{
		Families: make([]FamilySample, 0, len(Families)),
		Empty:    len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0,
	}

	for _, def := range Families {
		fs := FamilySample{FamilyDef: def}
		switch def.Name {
		case FamilySessionActive:
			var v uint64
			if src.IsAuthenticated() {
				v = 1
			}
			fs.Points = []Point{{Value: v}}
		case FamilyAuditDropped:
			fs.Points = []Point{{Value: dropped}}
		default:
			fs.Points = make([]Point, 0, len(def.Series))
			for _, s := range def.Series {
				fs.Points = append(fs.Points, Point{Labels: s.Labels, Value: snap.Counters[s.ID]})
			}
		}
		out.Families = append(out.Families, fs)
	}

	if raw, ok := snap.Histograms[goGate.MetricAuthenticateLatency]; ok {
		out.Latency = CumulativeBuckets(NormalizeBuckets(raw))
		out.LatencyOK = true
	}

	return out
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
