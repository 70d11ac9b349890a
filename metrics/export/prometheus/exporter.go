package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/internaldefs"
)

// PrometheusExporter renders store metrics in the Prometheus text format.
type PrometheusExporter struct {
	source internaldefs.Source
}

// NewPrometheusExporter reads from store on every scrape.
func NewPrometheusExporter(store *goGate.Store) *PrometheusExporter {
	return &PrometheusExporter{source: store}
}

// NewPrometheusExporterFromSource is for sources other than a Store.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves [PrometheusExporter.Render] for mounting at /metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text, or "" when metrics are disabled and
// nothing was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	sample := internaldefs.Walk(p.source)
	if sample.Empty {
		return ""
	}

	var b strings.Builder
	b.Grow(2048)

	for _, fam := range sample.Families {
		writeHeader(&b, fam.Name, fam.Help, typeName(fam.Kind))
		for _, pt := range fam.Points {
			b.WriteString(fam.Name)
			writeLabels(&b, pt.Labels)
			b.WriteByte(' ')
			b.WriteString(strconv.FormatUint(pt.Value, 10))
			b.WriteByte('\n')
		}
	}

	if sample.LatencyOK {
		writeLatency(&b, sample.Latency)
	}

	return b.String()
}

func typeName(k internaldefs.Kind) string {
	if k == internaldefs.KindGauge {
		return "gauge"
	}
	return "counter"
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeLabels(b *strings.Builder, labels []internaldefs.Label) {
	if len(labels) == 0 {
		return
	}
	b.WriteByte('{')
	for i, l := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Name)
		b.WriteString(`="`)
		b.WriteString(escapeLabel(l.Value))
		b.WriteByte('"')
	}
	b.WriteByte('}')
}

func writeLatency(b *strings.Builder, cumulative [8]uint64) {
	name := internaldefs.LatencyName
	writeHeader(b, name, internaldefs.LatencyHelp, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket")
		writeLabels(b, []internaldefs.Label{{Name: "le", Value: le}})
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')

	// Buckets only; the store keeps no running sum.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	return strings.ReplaceAll(help, "\n", "\\n")
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return strings.ReplaceAll(v, "\n", "\\n")
}
