package notify

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	emailsTotal *prometheus.CounterVec
}

// NewMetrics registers the email counters on reg. A nil reg keeps them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		emailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_emails_total",
				Help: "Email send attempts by template and outcome.",
			},
			[]string{"template", "status"},
		),
	}

	if reg != nil {
		if err := reg.Register(m.emailsTotal); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					m.emailsTotal = existing
				}
			}
		}
	}
	return m
}

func (m *Metrics) observe(template TemplateName, status string) {
	if m == nil {
		return
	}
	m.emailsTotal.WithLabelValues(string(template), status).Inc()
}
