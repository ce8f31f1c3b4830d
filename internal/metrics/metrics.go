// Package metrics содержит счётчики Prometheus для бота. Все методы допускают nil-получатель.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EgorLis/autoreply/internal/keywords"
)

const namespace = "autoreply"

type Metrics struct {
	reg *prometheus.Registry

	messages *prometheus.CounterVec
	verdicts *prometheus.CounterVec
	commands *prometheus.CounterVec
	ocr      *prometheus.CounterVec
	gateway  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Incoming chat messages by outcome.",
		}, []string{"outcome"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_verdicts_total",
			Help:      "Throttle gate verdicts.",
		}, []string{"verdict"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Admin commands by name and result.",
		}, []string{"command", "result"}),
		ocr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_requests_total",
			Help:      "OCR lookups by result.",
		}, []string{"result"}),
		gateway: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_events_total",
			Help:      "Gateway connection events.",
		}, []string{"event"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages, m.verdicts, m.commands, m.ocr, m.gateway,
	)
	return m
}

// WatchStore публикует размеры хранилища как gauge.
func (m *Metrics) WatchStore(s *keywords.Store) {
	if m == nil || s == nil {
		return
	}
	gauge := func(name, help string, pick func(keywords.Stats) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(s.Stats())) })
	}
	m.reg.MustRegister(
		gauge("keywords", "Canonical keywords in the store.", func(st keywords.Stats) int { return st.Keywords }),
		gauge("aliases", "Aliases in the store.", func(st keywords.Stats) int { return st.Aliases }),
		gauge("ocr_triggers", "OCR triggers in the store.", func(st keywords.Stats) int { return st.OCRTriggers }),
	)
}

func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Verdict(verdict string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) Command(command string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) OCR(result string) {
	if m == nil {
		return
	}
	m.ocr.WithLabelValues(result).Inc()
}

func (m *Metrics) Gateway(event string) {
	if m == nil {
		return
	}
	m.gateway.WithLabelValues(event).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
