package otel

import (
	"context"
	"errors"
	"fmt"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter and ErrNilSource reject incomplete construction.
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// OTelExporter publishes store metrics through asynchronous instruments
// observed in one callback per collection. Each family is one instrument;
// its labels become attributes.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration

	// families[i] observes internaldefs.Families[i].
	families []metric.Int64Observable
	// attrs[i][j] is the attribute set of series j in family i.
	attrs [][]metric.ObserveOption

	latencyBuckets metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	bucketAttrs    [8]metric.ObserveOption
}

// NewOTelExporter registers instruments on meter that read from store.
func NewOTelExporter(meter metric.Meter, store *goGate.Store) (*OTelExporter, error) {
	if store == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, store)
}

// NewOTelExporterFromSource is for sources other than a Store.
func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		families: make([]metric.Int64Observable, 0, len(internaldefs.Families)),
		attrs:    make([][]metric.ObserveOption, 0, len(internaldefs.Families)),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.Families)+2)

	for _, def := range internaldefs.Families {
		ins, err := newFamilyInstrument(meter, def)
		if err != nil {
			return nil, err
		}
		e.families = append(e.families, ins)
		observables = append(observables, ins)

		opts := make([]metric.ObserveOption, 0, len(def.Series))
		for _, s := range def.Series {
			opts = append(opts, metric.WithAttributeSet(toAttributes(s.Labels)))
		}
		e.attrs = append(e.attrs, opts)
	}

	var err error
	e.latencyBuckets, err = meter.Int64ObservableGauge(
		internaldefs.LatencyName+"_bucket",
		metric.WithDescription("Cumulative authenticator round-trip bucket counts by upper bound."),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	e.latencyCount, err = meter.Int64ObservableGauge(
		internaldefs.LatencyName+"_count",
		metric.WithDescription(internaldefs.LatencyHelp),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	for i, le := range internaldefs.HistogramBounds {
		e.bucketAttrs[i] = metric.WithAttributes(attribute.String("le", le))
	}
	observables = append(observables, e.latencyBuckets, e.latencyCount)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newFamilyInstrument(meter metric.Meter, def internaldefs.FamilyDef) (metric.Int64Observable, error) {
	if def.Kind == internaldefs.KindGauge {
		ins, err := meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", def.Name, err)
		}
		return ins, nil
	}
	ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
	}
	return ins, nil
}

func toAttributes(labels []internaldefs.Label) attribute.Set {
	kvs := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		kvs = append(kvs, attribute.String(l.Name, l.Value))
	}
	return attribute.NewSet(kvs...)
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	sample := internaldefs.Walk(e.source)

	for i, fam := range sample.Families {
		ins := e.families[i]
		for j, pt := range fam.Points {
			if j < len(e.attrs[i]) {
				o.ObserveInt64(ins, int64(pt.Value), e.attrs[i][j])
			} else {
				o.ObserveInt64(ins, int64(pt.Value))
			}
		}
	}

	if sample.LatencyOK {
		for i, v := range sample.Latency {
			o.ObserveInt64(e.latencyBuckets, int64(v), e.bucketAttrs[i])
		}
		o.ObserveInt64(e.latencyCount, int64(sample.Latency[len(sample.Latency)-1]))
	}
	return nil
}

// Close unregisters the callback. The instruments stay on the meter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
