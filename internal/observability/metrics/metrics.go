package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "clinic"

// SchedulingMetrics exposes counters/histograms for the intake and booking flow.
type SchedulingMetrics struct {
	turnsTotal         *prometheus.CounterVec
	turnLatency        *prometheus.HistogramVec
	lookupsTotal       *prometheus.CounterVec
	bookingsTotal      *prometheus.CounterVec
	remindersTotal     *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Conversation turns handled, by the step that handled them",
		}, []string{"step"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "resolved_total",
			Help:      "Patient lookups by resulting patient type",
		}, []string{"patient_type"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "events_total",
			Help:      "Reminder lifecycle events by status",
		}, []string{"status"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sends_total",
			Help:      "Outbound notifications by channel and outcome",
		}, []string{"channel", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.lookupsTotal, m.bookingsTotal, m.remindersTotal, m.notificationsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveTurn(step string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(step).Inc()
	m.turnLatency.WithLabelValues(step).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveLookup(patientType string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(patientType).Inc()
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveReminder(status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(status).Inc()
}

func (m *SchedulingMetrics) ObserveNotification(channel string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if delivered {
		outcome = "delivered"
	}
	m.notificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// CounterTotals sums a counter family by the joined values of its labels.
// Used by the stats endpoint to report without scraping /metrics.
func CounterTotals(g prometheus.Gatherer, fullName string) (map[string]float64, error) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}
	var family *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == fullName {
			family = f
			break
		}
	}
	totals := make(map[string]float64)
	if family == nil {
		return totals, nil
	}
	for _, metric := range family.GetMetric() {
		totals[labelKey(metric)] += metric.GetCounter().GetValue()
	}
	return totals, nil
}

func labelKey(metric *dto.Metric) string {
	pairs := metric.GetLabel()
	values := make([]string, 0, len(pairs))
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].GetName() < pairs[j].GetName() })
	for _, p := range pairs {
		values = append(values, p.GetValue())
	}
	return strings.Join(values, "/")
}
